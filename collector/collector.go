package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/ftahirops/spikemon/model"
)

// DefaultProcRoot is where procfs is mounted.
const DefaultProcRoot = "/proc"

// Collector fills part of a snapshot. Implementations keep whatever
// previous counter reading they need for deltas as their own state.
type Collector interface {
	Name() string
	Collect(snap *model.Snapshot) error
}

// Optional is implemented by collectors whose failure must not fail the
// whole sample (the value just stays zero).
type Optional interface {
	Optional() bool
}

// Sampler produces one snapshot per call. A Sampler is not safe for
// concurrent use: the caller owns it exclusively.
type Sampler interface {
	Sample(ctx context.Context) (*model.Snapshot, error)
}

// Registry is the procfs Sampler: it runs its collectors in order against
// a fresh snapshot.
type Registry struct {
	collectors []Collector
	now        func() time.Time
}

// NewRegistry creates a registry reading from procRoot. The process
// collector is only registered when topN > 0.
func NewRegistry(procRoot string, topN int) *Registry {
	if procRoot == "" {
		procRoot = DefaultProcRoot
	}
	r := &Registry{
		collectors: []Collector{
			NewCPUCollector(procRoot),
			NewMemoryCollector(procRoot),
			NewDiskCollector(procRoot),
		},
		now: time.Now,
	}
	if topN > 0 {
		r.Add(NewProcessCollector(procRoot, topN))
	}
	return r
}

// Add registers an additional collector.
func (r *Registry) Add(c Collector) {
	r.collectors = append(r.collectors, c)
}

// Sample runs all collectors. A required collector's error aborts the
// sample; optional collector errors are recorded in snap.Errors.
func (r *Registry) Sample(ctx context.Context) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := &model.Snapshot{Timestamp: r.now()}
	for _, c := range r.collectors {
		err := c.Collect(snap)
		if err == nil {
			continue
		}
		if o, ok := c.(Optional); ok && o.Optional() {
			snap.Errors = append(snap.Errors, fmt.Sprintf("%s: %v", c.Name(), err))
			continue
		}
		return nil, fmt.Errorf("%s collector: %w", c.Name(), err)
	}
	return snap, nil
}
