package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/ftahirops/spikemon/model"
)

// PortableSampler samples through gopsutil instead of parsing procfs
// directly. It works where /proc has a different layout and keeps its
// previous CPU and disk readings on the struct, like the procfs collectors.
type PortableSampler struct {
	topN int
	now  func() time.Time

	prevCPU  *cpu.TimesStat
	prevDisk *diskTotals
	procs    map[int32]*process.Process
}

// NewPortableSampler creates a gopsutil-backed sampler.
func NewPortableSampler(topN int) *PortableSampler {
	return &PortableSampler{
		topN:  topN,
		now:   time.Now,
		procs: make(map[int32]*process.Process),
	}
}

// Sample implements Sampler.
func (s *PortableSampler) Sample(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{Timestamp: s.now()}

	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("cpu times: %w", err)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("cpu times: empty result")
	}
	curr := times[0]
	if s.prevCPU != nil {
		snap.CPUPercent = busyPctFromTimes(*s.prevCPU, curr)
	}
	s.prevCPU = &curr

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	if vm.Total > 0 && vm.Available <= vm.Total {
		snap.RAMPercent = float64(vm.Total-vm.Available) / float64(vm.Total) * 100
	}

	if err := s.sampleDisk(ctx, snap); err != nil {
		snap.Errors = append(snap.Errors, "disk: "+err.Error())
	}
	if s.topN > 0 {
		if err := s.sampleProcesses(ctx, snap); err != nil {
			snap.Errors = append(snap.Errors, "process: "+err.Error())
		}
	}
	return snap, nil
}

func (s *PortableSampler) sampleDisk(ctx context.Context, snap *model.Snapshot) error {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return err
	}
	curr := diskTotals{at: snap.Timestamp}
	for name, c := range counters {
		if !isWholeDisk(name) {
			continue
		}
		curr.readBytes += c.ReadBytes
		curr.writtenBytes += c.WriteBytes
	}
	if s.prevDisk != nil {
		dt := curr.at.Sub(s.prevDisk.at).Seconds()
		if dt > 0 {
			if curr.readBytes >= s.prevDisk.readBytes {
				snap.IOReadBytesPerSec = float64(curr.readBytes-s.prevDisk.readBytes) / dt
			}
			if curr.writtenBytes >= s.prevDisk.writtenBytes {
				snap.IOWriteBytesPerSec = float64(curr.writtenBytes-s.prevDisk.writtenBytes) / dt
			}
		}
	}
	s.prevDisk = &curr
	return nil
}

// sampleProcesses reuses Process handles across calls so that
// PercentWithContext(ctx, 0) measures the interval since the last sample.
func (s *PortableSampler) sampleProcesses(ctx context.Context, snap *model.Snapshot) error {
	list, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return err
	}
	next := make(map[int32]*process.Process, len(list))
	samples := make([]model.ProcessSample, 0, len(list))
	for _, p := range list {
		if cached, ok := s.procs[p.Pid]; ok {
			p = cached
		}
		next[p.Pid] = p

		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		pct, _ := p.PercentWithContext(ctx, 0)
		var rss uint64
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			rss = mi.RSS
		}
		samples = append(samples, model.ProcessSample{
			PID:        int(p.Pid),
			Name:       name,
			CPUPercent: pct,
			RAMBytes:   rss,
		})
	}
	s.procs = next
	snap.TopProcesses = rankProcesses(samples, s.topN)
	return nil
}

func busyPctFromTimes(prev, curr cpu.TimesStat) float64 {
	idle := func(t cpu.TimesStat) float64 { return t.Idle + t.Iowait }
	total := func(t cpu.TimesStat) float64 {
		return t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	}
	dtotal := total(curr) - total(prev)
	didle := idle(curr) - idle(prev)
	if dtotal <= 0 || didle < 0 || didle > dtotal {
		return 0
	}
	return (dtotal - didle) / dtotal * 100
}
