package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ftahirops/spikemon/model"
)

// scriptedSampler replays a fixed list of results.
type scriptedSampler struct {
	snaps []*model.Snapshot
	errs  []error
	i     int
}

func (s *scriptedSampler) Sample(ctx context.Context) (*model.Snapshot, error) {
	i := s.i
	s.i++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.snaps) {
		return s.snaps[i], nil
	}
	return &model.Snapshot{Timestamp: t0.Add(time.Duration(i) * time.Second)}, nil
}

type recordingReporter struct {
	snaps  []*model.Snapshot
	events []model.SpikeEvent
}

func (r *recordingReporter) Snapshot(s *model.Snapshot) { r.snaps = append(r.snaps, s) }
func (r *recordingReporter) Event(e model.SpikeEvent)   { r.events = append(r.events, e) }

type failingSink struct{ calls int }

func (f *failingSink) Append(model.SpikeEvent) error {
	f.calls++
	return &PersistenceError{Path: "/dev/full", Err: errors.New("no space left on device")}
}

func TestRunnerBatchSamples(t *testing.T) {
	sampler := &scriptedSampler{snaps: []*model.Snapshot{
		cpuSnap(0, 60), cpuSnap(1, 85), cpuSnap(2, 90), cpuSnap(3, 88), cpuSnap(4, 70),
	}}
	eng := NewEngine(sampler, NewDetector(DetectorConfig{
		Thresholds:           model.Thresholds{CPU: model.Threshold(80)},
		MinSpikeDurationSecs: 3,
	}))
	rep := &recordingReporter{}
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := OpenEventLog(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	stats, err := NewRunner(eng, RunnerConfig{
		Limit:    RunLimit{Samples: 5},
		Reporter: rep,
		Sink:     sink,
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Ticks != 5 || stats.Events != 1 || stats.Skipped != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(rep.snaps) != 5 || len(rep.events) != 1 {
		t.Fatalf("reported %d snapshots, %d events", len(rep.snaps), len(rep.events))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "\n"); got != 1 {
		t.Fatalf("expected 1 logged event, got %d lines", got)
	}
}

func TestRunnerSkipsFailedSamples(t *testing.T) {
	sampler := &scriptedSampler{
		snaps: []*model.Snapshot{cpuSnap(0, 90), nil, cpuSnap(2, 95), cpuSnap(3, 10)},
		errs:  []error{nil, errors.New("/proc/stat: permission denied")},
	}
	det := NewDetector(DetectorConfig{Thresholds: model.Thresholds{CPU: model.Threshold(80)}})
	rep := &recordingReporter{}

	stats, err := NewRunner(NewEngine(sampler, det), RunnerConfig{
		Limit:    RunLimit{Samples: 4},
		Reporter: rep,
	}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 || stats.Ticks != 4 {
		t.Fatalf("stats = %+v", stats)
	}
	// The failed tick must not have closed or reset the open spike.
	if len(rep.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rep.events))
	}
	ev := rep.events[0]
	if !ev.Start.Equal(t0) || ev.Peak != 95 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestRunnerPersistenceFailureContinues(t *testing.T) {
	sampler := &scriptedSampler{snaps: []*model.Snapshot{
		cpuSnap(0, 90), cpuSnap(1, 10), cpuSnap(2, 90), cpuSnap(3, 10),
	}}
	det := NewDetector(DetectorConfig{Thresholds: model.Thresholds{CPU: model.Threshold(80)}})
	sink := &failingSink{}
	rep := &recordingReporter{}

	stats, err := NewRunner(NewEngine(sampler, det), RunnerConfig{
		Limit:    RunLimit{Samples: 4},
		Reporter: rep,
		Sink:     sink,
	}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sink.calls != 2 || stats.Events != 2 || len(rep.events) != 2 {
		t.Fatalf("sink calls = %d, stats = %+v", sink.calls, stats)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := NewRunner(NewEngine(&scriptedSampler{}, NewDetector(DetectorConfig{})), RunnerConfig{
		Interval: time.Hour,
	}).Run(ctx)
	if err != nil {
		t.Fatalf("cancellation should not be an error: %v", err)
	}
	if stats.Ticks != 0 {
		t.Fatalf("expected no ticks, got %d", stats.Ticks)
	}
}

func TestRunnerDurationLimit(t *testing.T) {
	r := NewRunner(NewEngine(&scriptedSampler{}, NewDetector(DetectorConfig{})), RunnerConfig{
		Limit: RunLimit{Duration: 3 * time.Second},
	})
	clock := t0
	r.now = func() time.Time {
		now := clock
		clock = clock.Add(time.Second)
		return now
	}
	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// start=0; checks at 1s and 2s pass, the check at 3s stops the run.
	if stats.Ticks != 2 {
		t.Fatalf("Ticks = %d, want 2", stats.Ticks)
	}
}

func TestRunLimitBounded(t *testing.T) {
	if (RunLimit{}).Bounded() {
		t.Fatal("zero limit must be unbounded")
	}
	if !(RunLimit{Samples: 1}).Bounded() || !(RunLimit{Duration: time.Second}).Bounded() {
		t.Fatal("non-zero limit must be bounded")
	}
}

func TestEngineTickWrapsAcquisitionError(t *testing.T) {
	cause := errors.New("boom")
	eng := NewEngine(&scriptedSampler{errs: []error{cause}}, NewDetector(DetectorConfig{}))
	_, _, err := eng.Tick(context.Background())
	var ae *AcquisitionError
	if !errors.As(err, &ae) || !errors.Is(err, cause) {
		t.Fatalf("expected AcquisitionError wrapping cause, got %v", err)
	}
}
