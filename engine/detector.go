package engine

import (
	"time"

	"github.com/ftahirops/spikemon/model"
)

// spikeWindow is the payload of the Spiking state.
type spikeWindow struct {
	start    time.Time
	peak     float64
	peakSnap *model.Snapshot
}

// SpikeMachine is the per-resource state machine. It is either Idle
// (spiking == nil) or Spiking, so a start time exists exactly when a spike
// is open.
//
// Entry uses >= and exit uses <, so a value sitting on the threshold
// extends a spike but never ends one.
type SpikeMachine struct {
	resource model.ResourceKind
	spiking  *spikeWindow
}

// NewSpikeMachine returns an Idle machine for r.
func NewSpikeMachine(r model.ResourceKind) *SpikeMachine {
	return &SpikeMachine{resource: r}
}

// Spiking reports whether a spike is open.
func (m *SpikeMachine) Spiking() bool { return m.spiking != nil }

// Reset returns the machine to Idle, dropping any open spike.
func (m *SpikeMachine) Reset() { m.spiking = nil }

// Step feeds one value sampled at snap.Timestamp. A closed spike is
// returned only if it lasted at least minSecs whole seconds; shorter
// spikes are dropped, and either way the machine is Idle afterwards.
func (m *SpikeMachine) Step(snap *model.Snapshot, value, threshold float64, minSecs int64) *model.SpikeEvent {
	now := snap.Timestamp

	if m.spiking == nil {
		if value >= threshold {
			m.spiking = &spikeWindow{start: now, peak: value, peakSnap: snap}
		}
		return nil
	}

	if value >= threshold {
		// Ties keep the earlier peak snapshot.
		if value > m.spiking.peak {
			m.spiking.peak = value
			m.spiking.peakSnap = snap
		}
		return nil
	}

	w := m.spiking
	m.spiking = nil

	ev := model.SpikeEvent{
		Resource:  m.resource,
		Start:     w.start,
		End:       now,
		Peak:      w.peak,
		Threshold: threshold,
	}
	if ev.DurationSecs() < minSecs {
		return nil
	}
	ev.TopProcesses = []model.ProcessSample{}
	if w.peakSnap != nil && len(w.peakSnap.TopProcesses) > 0 {
		ev.TopProcesses = append(ev.TopProcesses, w.peakSnap.TopProcesses...)
	}
	return &ev
}

// SpikeStatus is a read-only view of one machine.
type SpikeStatus struct {
	Resource  model.ResourceKind
	Enabled   bool
	Threshold float64
	Spiking   bool
	Start     time.Time
	Peak      float64
}

// DetectorConfig is fixed for the lifetime of a run.
type DetectorConfig struct {
	Thresholds           model.Thresholds
	MinSpikeDurationSecs int64
}

// Detector runs one independent SpikeMachine per resource. It is a pure
// in-memory transformation with no locking: the driving loop owns it.
type Detector struct {
	cfg      DetectorConfig
	machines map[model.ResourceKind]*SpikeMachine
}

// NewDetector creates a detector with every resource Idle.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.MinSpikeDurationSecs < 0 {
		cfg.MinSpikeDurationSecs = 0
	}
	d := &Detector{
		cfg:      cfg,
		machines: make(map[model.ResourceKind]*SpikeMachine, len(model.Resources)),
	}
	for _, r := range model.Resources {
		d.machines[r] = NewSpikeMachine(r)
	}
	return d
}

// Analyze feeds snap to every machine and returns the spikes that closed on
// this tick (0 to 3). Resources without a threshold are forced to Idle; an
// open spike on such a resource is discarded without an event.
func (d *Detector) Analyze(snap *model.Snapshot) []model.SpikeEvent {
	var events []model.SpikeEvent
	for _, r := range model.Resources {
		m := d.machines[r]
		threshold, ok := d.cfg.Thresholds.For(r)
		if !ok {
			m.Reset()
			continue
		}
		if ev := m.Step(snap, snap.Value(r), threshold, d.cfg.MinSpikeDurationSecs); ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

// SetThresholds replaces the thresholds used from the next Analyze call.
func (d *Detector) SetThresholds(t model.Thresholds) {
	d.cfg.Thresholds = t
}

// Config returns the detector configuration.
func (d *Detector) Config() DetectorConfig { return d.cfg }

// States returns a copy of every machine's state in evaluation order.
func (d *Detector) States() []SpikeStatus {
	out := make([]SpikeStatus, 0, len(model.Resources))
	for _, r := range model.Resources {
		m := d.machines[r]
		st := SpikeStatus{Resource: r}
		st.Threshold, st.Enabled = d.cfg.Thresholds.For(r)
		if m.spiking != nil {
			st.Spiking = true
			st.Start = m.spiking.start
			st.Peak = m.spiking.peak
		}
		out = append(out, st)
	}
	return out
}
