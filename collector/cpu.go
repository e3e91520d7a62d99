package collector

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ftahirops/spikemon/model"
	"github.com/ftahirops/spikemon/util"
)

// cpuTimes is the aggregate "cpu " line of /proc/stat reduced to the two
// sums needed for a busy percentage.
type cpuTimes struct {
	idle  uint64 // idle + iowait
	total uint64
}

// CPUCollector computes host CPU busy % from consecutive /proc/stat reads.
// The first call has nothing to compare against and reports 0.
type CPUCollector struct {
	path string
	prev *cpuTimes
}

// NewCPUCollector creates a collector reading <procRoot>/stat.
func NewCPUCollector(procRoot string) *CPUCollector {
	return &CPUCollector{path: filepath.Join(procRoot, "stat")}
}

func (c *CPUCollector) Name() string { return "cpu" }

func (c *CPUCollector) Collect(snap *model.Snapshot) error {
	curr, _, err := readCPUTimes(c.path)
	if err != nil {
		return err
	}
	if c.prev != nil {
		snap.CPUPercent = util.BusyPct(c.prev.idle, curr.idle, c.prev.total, curr.total)
	}
	c.prev = &curr
	return nil
}

// readCPUTimes parses the aggregate cpu line and counts per-CPU lines.
func readCPUTimes(path string) (cpuTimes, int, error) {
	lines, err := util.ReadFileLines(path)
	if err != nil {
		return cpuTimes{}, 0, fmt.Errorf("read %s: %w", path, err)
	}
	var (
		agg   cpuTimes
		found bool
		ncpu  int
	)
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "cpu "):
			agg, err = parseCPULine(line)
			if err != nil {
				return cpuTimes{}, 0, err
			}
			found = true
		case strings.HasPrefix(line, "cpu"):
			ncpu++
		}
	}
	if !found {
		return cpuTimes{}, 0, fmt.Errorf("no aggregate cpu line in %s", path)
	}
	if ncpu == 0 {
		ncpu = 1
	}
	return agg, ncpu, nil
}

// parseCPULine reads "cpu user nice system idle iowait irq softirq steal ...".
// Guest time is already included in user/nice and is not added again.
func parseCPULine(line string) (cpuTimes, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return cpuTimes{}, fmt.Errorf("cpu line has %d fields, want at least 5", len(fields))
	}
	field := func(i int) uint64 {
		if i < len(fields) {
			return util.ParseUint64(fields[i])
		}
		return 0
	}
	user, nice, system, idle := field(1), field(2), field(3), field(4)
	iowait, irq, softirq, steal := field(5), field(6), field(7), field(8)

	idleAll := idle + iowait
	busy := user + nice + system + irq + softirq + steal
	return cpuTimes{idle: idleAll, total: idleAll + busy}, nil
}
