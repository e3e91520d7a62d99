package model

import (
	"testing"
	"time"
)

func TestSpikeEventDurationClampsBackwardClock(t *testing.T) {
	start := time.Unix(1000, 0)
	e := SpikeEvent{Start: start, End: start.Add(-5 * time.Second)}
	if d := e.Duration(); d != 0 {
		t.Fatalf("Duration() = %v, want 0", d)
	}
	if s := e.DurationSecs(); s != 0 {
		t.Fatalf("DurationSecs() = %d, want 0", s)
	}
}

func TestSpikeEventDurationSecsTruncates(t *testing.T) {
	start := time.Unix(1000, 0)
	e := SpikeEvent{Start: start, End: start.Add(2900 * time.Millisecond)}
	if s := e.DurationSecs(); s != 2 {
		t.Fatalf("DurationSecs() = %d, want 2", s)
	}
}

func TestNewLogRecord(t *testing.T) {
	e := SpikeEvent{
		Resource:  ResourceIO,
		Start:     time.Unix(100, 0),
		End:       time.Unix(104, 500),
		Peak:      12.5,
		Threshold: 10,
	}
	r := NewLogRecord(e)
	if r.Resource != "io" || r.TsStart != 100 || r.TsEnd != 104 || r.DurationSecs != 4 {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.Top == nil || len(r.Top) != 0 {
		t.Fatalf("expected empty non-nil top list, got %#v", r.Top)
	}
	k, ok := r.Kind()
	if !ok || k != ResourceIO {
		t.Fatalf("Kind() = %v, %v", k, ok)
	}
}

func TestParseResourceKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ResourceKind
		wantErr bool
	}{
		{"cpu", ResourceCPU, false},
		{"ram", ResourceRAM, false},
		{"io", ResourceIO, false},
		{"CPU", 0, true},
		{"disk", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseResourceKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseResourceKind(%q) err = %v", tt.in, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("ParseResourceKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSnapshotValue(t *testing.T) {
	s := Snapshot{
		CPUPercent:         42,
		RAMPercent:         61.5,
		IOReadBytesPerSec:  1_500_000,
		IOWriteBytesPerSec: 500_000,
	}
	if v := s.Value(ResourceCPU); v != 42 {
		t.Errorf("cpu = %v", v)
	}
	if v := s.Value(ResourceRAM); v != 61.5 {
		t.Errorf("ram = %v", v)
	}
	if v := s.Value(ResourceIO); v != 2 {
		t.Errorf("io = %v, want 2 MB/s", v)
	}
}

func TestThresholdsFor(t *testing.T) {
	th := Thresholds{CPU: Threshold(80)}
	if v, ok := th.For(ResourceCPU); !ok || v != 80 {
		t.Fatalf("cpu threshold = %v, %v", v, ok)
	}
	if _, ok := th.For(ResourceRAM); ok {
		t.Fatal("ram threshold should be disabled")
	}
	if !th.Any() {
		t.Fatal("Any() = false")
	}
	if (Thresholds{}).Any() {
		t.Fatal("empty thresholds report Any() = true")
	}
}
