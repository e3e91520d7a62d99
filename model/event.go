package model

import "time"

// SpikeEvent is the closed, reportable record of a spike that lasted at
// least the configured minimum duration.
type SpikeEvent struct {
	Resource     ResourceKind
	Start        time.Time
	End          time.Time
	Peak         float64
	Threshold    float64
	TopProcesses []ProcessSample
}

// Duration returns End-Start, or zero if the clock went backwards.
func (e *SpikeEvent) Duration() time.Duration {
	d := e.End.Sub(e.Start)
	if d < 0 {
		return 0
	}
	return d
}

// DurationSecs returns the duration in whole seconds.
func (e *SpikeEvent) DurationSecs() int64 {
	return int64(e.Duration() / time.Second)
}

// LogRecord is one line of the JSON-lines event log.
// Resource is kept as a string so unknown kinds in old logs still decode.
type LogRecord struct {
	Resource     string          `json:"resource"`
	TsStart      int64           `json:"ts_start"`
	TsEnd        int64           `json:"ts_end"`
	DurationSecs int64           `json:"duration_secs"`
	Peak         float64         `json:"peak"`
	Threshold    float64         `json:"threshold"`
	Top          []ProcessSample `json:"top"`
}

// NewLogRecord converts a spike event to its durable form.
func NewLogRecord(e SpikeEvent) LogRecord {
	top := e.TopProcesses
	if top == nil {
		top = []ProcessSample{}
	}
	return LogRecord{
		Resource:     e.Resource.String(),
		TsStart:      epochSecs(e.Start),
		TsEnd:        epochSecs(e.End),
		DurationSecs: e.DurationSecs(),
		Peak:         e.Peak,
		Threshold:    e.Threshold,
		Top:          top,
	}
}

// Kind resolves the record's resource, ok=false for unknown names.
func (r *LogRecord) Kind() (ResourceKind, bool) {
	k, err := ParseResourceKind(r.Resource)
	return k, err == nil
}

// epochSecs returns seconds since the Unix epoch, clamping pre-epoch times to 0.
func epochSecs(t time.Time) int64 {
	s := t.Unix()
	if s < 0 {
		return 0
	}
	return s
}
