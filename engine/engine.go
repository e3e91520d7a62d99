package engine

import (
	"context"

	"github.com/ftahirops/spikemon/collector"
	"github.com/ftahirops/spikemon/model"
)

// Ticker abstracts one sample-and-detect cycle.
type Ticker interface {
	Tick(ctx context.Context) (*model.Snapshot, []model.SpikeEvent, error)
}

// Engine wires a Sampler to a Detector. Both are owned exclusively by the
// Engine; Tick must not be called concurrently.
type Engine struct {
	sampler  collector.Sampler
	detector *Detector
}

// NewEngine creates an engine.
func NewEngine(sampler collector.Sampler, detector *Detector) *Engine {
	return &Engine{sampler: sampler, detector: detector}
}

// Tick samples once and runs detection. On an acquisition failure it
// returns an *AcquisitionError and leaves detector state unchanged.
func (e *Engine) Tick(ctx context.Context) (*model.Snapshot, []model.SpikeEvent, error) {
	snap, err := e.sampler.Sample(ctx)
	if err != nil {
		return nil, nil, &AcquisitionError{Err: err}
	}
	return snap, e.detector.Analyze(snap), nil
}

// Detector returns the engine's detector.
func (e *Engine) Detector() *Detector { return e.detector }
