package model

import "time"

// Snapshot holds one timestamped reading of host utilization.
// A Snapshot is never modified after the sampler returns it.
type Snapshot struct {
	Timestamp          time.Time
	CPUPercent         float64
	RAMPercent         float64
	IOReadBytesPerSec  float64
	IOWriteBytesPerSec float64
	TopProcesses       []ProcessSample

	// Errors holds soft failures from optional collectors (e.g. disk stats
	// missing inside a container). The snapshot is still usable.
	Errors []string
}

// ProcessSample is one entry of the ranked process list.
// The JSON field names are part of the event log format.
type ProcessSample struct {
	PID        int     `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu"`
	RAMBytes   uint64  `json:"ram_bytes"`
}

// IOMBps returns combined read+write throughput in megabytes (10^6) per second.
func (s *Snapshot) IOMBps() float64 {
	return (s.IOReadBytesPerSec + s.IOWriteBytesPerSec) / 1_000_000
}

// Value returns the sampled value for r in the resource's display unit.
func (s *Snapshot) Value(r ResourceKind) float64 {
	switch r {
	case ResourceCPU:
		return s.CPUPercent
	case ResourceRAM:
		return s.RAMPercent
	case ResourceIO:
		return s.IOMBps()
	}
	return 0
}
