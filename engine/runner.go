package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ftahirops/spikemon/model"
)

// Reporter renders snapshots and closed spikes for the operator.
type Reporter interface {
	Snapshot(snap *model.Snapshot)
	Event(ev model.SpikeEvent)
}

type teeReporter []Reporter

// TeeReporter fans every call out to each non-nil reporter in order.
func TeeReporter(rs ...Reporter) Reporter {
	var t teeReporter
	for _, r := range rs {
		if r != nil {
			t = append(t, r)
		}
	}
	return t
}

func (t teeReporter) Snapshot(snap *model.Snapshot) {
	for _, r := range t {
		r.Snapshot(snap)
	}
}

func (t teeReporter) Event(ev model.SpikeEvent) {
	for _, r := range t {
		r.Event(ev)
	}
}

// EventSink persists closed spikes.
type EventSink interface {
	Append(ev model.SpikeEvent) error
}

// RunLimit bounds a run. The zero value runs until the context is cancelled.
type RunLimit struct {
	Samples  uint64
	Duration time.Duration
}

// Bounded reports whether the limit ends the run on its own.
func (l RunLimit) Bounded() bool { return l.Samples > 0 || l.Duration > 0 }

// RunnerConfig configures the sampling loop.
type RunnerConfig struct {
	Interval time.Duration
	Limit    RunLimit
	Reporter Reporter
	Sink     EventSink // optional
	Notifier *Notifier // optional
	Logger   *slog.Logger
}

// RunStats summarizes a finished run.
type RunStats struct {
	Ticks   uint64 // iterations attempted
	Skipped uint64 // iterations lost to acquisition errors
	Events  uint64 // spike events emitted
	Elapsed time.Duration
}

// Runner drives sample -> detect -> report -> log on a single goroutine.
type Runner struct {
	ticker Ticker
	cfg    RunnerConfig
	now    func() time.Time
}

// NewRunner creates a runner around ticker.
func NewRunner(ticker Ticker, cfg RunnerConfig) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{ticker: ticker, cfg: cfg, now: time.Now}
}

// Run loops until the limit is reached or ctx is cancelled. Cancellation is
// a normal way to stop and is not reported as an error.
func (r *Runner) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats
	start := r.now()
	defer r.cfg.Notifier.Wait()

	for {
		stats.Elapsed = r.now().Sub(start)
		if r.limitReached(stats) {
			return stats, nil
		}
		if err := sleepCtx(ctx, r.cfg.Interval); err != nil {
			return stats, nil
		}

		stats.Ticks++
		snap, events, err := r.ticker.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return stats, nil
			}
			stats.Skipped++
			r.cfg.Logger.Warn("sample skipped", "error", err)
			continue
		}
		for _, e := range snap.Errors {
			r.cfg.Logger.Debug("partial sample", "detail", e)
		}

		if r.cfg.Reporter != nil {
			r.cfg.Reporter.Snapshot(snap)
		}
		for _, ev := range events {
			stats.Events++
			r.dispatch(ev)
		}
	}
}

func (r *Runner) dispatch(ev model.SpikeEvent) {
	if r.cfg.Reporter != nil {
		r.cfg.Reporter.Event(ev)
	}
	if r.cfg.Sink != nil {
		if err := r.cfg.Sink.Append(ev); err != nil {
			var pe *PersistenceError
			if errors.As(err, &pe) {
				r.cfg.Logger.Error("spike event not persisted", "path", pe.Path, "error", pe.Err)
			} else {
				r.cfg.Logger.Error("spike event not persisted", "error", err)
			}
		}
	}
	r.cfg.Notifier.Notify(ev)
}

func (r *Runner) limitReached(stats RunStats) bool {
	l := r.cfg.Limit
	if l.Duration > 0 && stats.Elapsed >= l.Duration {
		return true
	}
	if l.Samples > 0 && stats.Ticks >= l.Samples {
		return true
	}
	return false
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
