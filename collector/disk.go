package collector

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ftahirops/spikemon/model"
	"github.com/ftahirops/spikemon/util"
)

// sectorSize is the fixed unit of the sector counters in /proc/diskstats,
// independent of the device's real block size.
const sectorSize = 512

type diskTotals struct {
	at           time.Time
	readBytes    uint64
	writtenBytes uint64
}

// DiskCollector derives host-wide read/write throughput from the sector
// counters of whole disks in /proc/diskstats. Partitions are skipped so
// that traffic is not counted twice.
type DiskCollector struct {
	path string
	prev *diskTotals
}

// NewDiskCollector creates a collector reading <procRoot>/diskstats.
func NewDiskCollector(procRoot string) *DiskCollector {
	return &DiskCollector{path: filepath.Join(procRoot, "diskstats")}
}

func (d *DiskCollector) Name() string { return "disk" }

// Optional marks disk stats as best effort: some containers hide them.
func (d *DiskCollector) Optional() bool { return true }

func (d *DiskCollector) Collect(snap *model.Snapshot) error {
	lines, err := util.ReadFileLines(d.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", d.path, err)
	}

	curr := diskTotals{at: snap.Timestamp}
	for _, line := range lines {
		name, read, written, ok := parseDiskstatLine(line)
		if !ok || !isWholeDisk(name) {
			continue
		}
		curr.readBytes += read * sectorSize
		curr.writtenBytes += written * sectorSize
	}

	if d.prev != nil {
		dt := curr.at.Sub(d.prev.at)
		snap.IOReadBytesPerSec = util.Rate(d.prev.readBytes, curr.readBytes, dt)
		snap.IOWriteBytesPerSec = util.Rate(d.prev.writtenBytes, curr.writtenBytes, dt)
	}
	d.prev = &curr
	return nil
}

// parseDiskstatLine returns the device name and the sectors read/written
// fields of one /proc/diskstats line.
// Format: major minor name reads_completed reads_merged sectors_read read_time
//         writes_completed writes_merged sectors_written ...
func parseDiskstatLine(line string) (name string, sectorsRead, sectorsWritten uint64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 14 {
		return "", 0, 0, false
	}
	return fields[2], util.ParseUint64(fields[5]), util.ParseUint64(fields[9]), true
}

// isWholeDisk returns true if the name looks like a whole disk device (not a
// partition, loop or device-mapper node stacked on another disk).
func isWholeDisk(name string) bool {
	if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") || strings.HasPrefix(name, "dm-") {
		return false
	}
	// nvme0n1 is a disk, nvme0n1p1 is a partition
	if strings.HasPrefix(name, "nvme") || strings.HasPrefix(name, "mmcblk") {
		return !strings.Contains(name[4:], "p")
	}
	for _, prefix := range []string{"sd", "vd", "xvd", "hd"} {
		if strings.HasPrefix(name, prefix) {
			suffix := name[len(prefix):]
			for _, ch := range suffix {
				if ch < 'a' || ch > 'z' {
					return false
				}
			}
			return suffix != ""
		}
	}
	return false
}
