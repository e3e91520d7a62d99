package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ftahirops/spikemon/model"
	"github.com/ftahirops/spikemon/util"
)

// ProcessCollector ranks processes by CPU share since the previous call
// and keeps the top N. CPU% follows top(1): 100% is one full core.
type ProcessCollector struct {
	root string
	topN int

	primed    bool
	prevTotal uint64         // aggregate cpu ticks at the previous call
	prevTicks map[int]uint64 // utime+stime per PID at the previous call
}

// NewProcessCollector creates a collector scanning procRoot.
func NewProcessCollector(procRoot string, topN int) *ProcessCollector {
	return &ProcessCollector{
		root:      procRoot,
		topN:      topN,
		prevTicks: make(map[int]uint64),
	}
}

func (p *ProcessCollector) Name() string { return "process" }

// Optional marks the process list as best effort.
func (p *ProcessCollector) Optional() bool { return true }

type procReading struct {
	pid   int
	comm  string
	ticks uint64
	rss   uint64
}

func (p *ProcessCollector) Collect(snap *model.Snapshot) error {
	agg, ncpu, err := readCPUTimes(filepath.Join(p.root, "stat"))
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return fmt.Errorf("read %s: %w", p.root, err)
	}

	var readings []procReading
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid := util.ParseInt(e.Name())
		if pid <= 0 {
			continue
		}
		r, err := readProcess(filepath.Join(p.root, e.Name()), pid)
		if err != nil {
			continue // process exited between ReadDir and open
		}
		readings = append(readings, r)
	}

	dtotal := util.Delta(p.prevTotal, agg.total)

	next := make(map[int]uint64, len(readings))
	samples := make([]model.ProcessSample, 0, len(readings))
	for _, r := range readings {
		next[r.pid] = r.ticks
		var cpuPct float64
		if prev, ok := p.prevTicks[r.pid]; ok && p.primed && dtotal > 0 {
			cpuPct = float64(util.Delta(prev, r.ticks)) / float64(dtotal) * 100 * float64(ncpu)
		}
		samples = append(samples, model.ProcessSample{
			PID:        r.pid,
			Name:       r.comm,
			CPUPercent: cpuPct,
			RAMBytes:   r.rss,
		})
	}
	p.prevTicks = next
	p.prevTotal = agg.total
	p.primed = true

	snap.TopProcesses = rankProcesses(samples, p.topN)
	return nil
}

// rankProcesses sorts by CPU% then RSS, both descending, and keeps n.
func rankProcesses(samples []model.ProcessSample, n int) []model.ProcessSample {
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].CPUPercent != samples[j].CPUPercent {
			return samples[i].CPUPercent > samples[j].CPUPercent
		}
		if samples[i].RAMBytes != samples[j].RAMBytes {
			return samples[i].RAMBytes > samples[j].RAMBytes
		}
		return samples[i].PID < samples[j].PID
	})
	if n >= 0 && len(samples) > n {
		samples = samples[:n]
	}
	return samples
}

func readProcess(pidDir string, pid int) (procReading, error) {
	r := procReading{pid: pid}
	content, err := util.ReadFileString(filepath.Join(pidDir, "stat"))
	if err != nil {
		return r, err
	}

	// /proc/[pid]/stat: pid (comm) state ppid ...
	// comm can contain spaces and parens, so split on the last ')'.
	openIdx := strings.IndexByte(content, '(')
	closeIdx := strings.LastIndexByte(content, ')')
	if openIdx < 0 || closeIdx < openIdx || closeIdx+2 > len(content) {
		return r, fmt.Errorf("bad stat format for pid %d", pid)
	}
	r.comm = content[openIdx+1 : closeIdx]
	rest := strings.Fields(content[closeIdx+2:])
	if len(rest) < 13 {
		return r, fmt.Errorf("stat too short for pid %d", pid)
	}
	r.ticks = util.ParseUint64(rest[11]) + util.ParseUint64(rest[12])

	// Kernel threads have no VmRSS; that is fine.
	if kv, err := util.ParseKeyValueFile(filepath.Join(pidDir, "status")); err == nil {
		r.rss = util.ParseKB(kv["VmRSS"])
	}
	return r, nil
}
