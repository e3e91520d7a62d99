package engine

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ftahirops/spikemon/model"
)

// MetricsStore holds the latest sample and per-resource event counters for
// the Prometheus text exporter. It implements Reporter.
type MetricsStore struct {
	mu      sync.RWMutex
	states  func() []SpikeStatus
	snap    *model.Snapshot
	status  []SpikeStatus
	samples uint64
	events  map[model.ResourceKind]uint64
	ts      time.Time
}

// NewMetricsStore creates a store. states, when non-nil, is read after each
// snapshot on the caller's goroutine.
func NewMetricsStore(states func() []SpikeStatus) *MetricsStore {
	return &MetricsStore{
		states: states,
		events: make(map[model.ResourceKind]uint64, len(model.Resources)),
	}
}

// Snapshot stores the latest sample.
func (s *MetricsStore) Snapshot(snap *model.Snapshot) {
	var status []SpikeStatus
	if s.states != nil {
		status = s.states()
	}
	s.mu.Lock()
	s.snap = snap
	s.status = status
	s.samples++
	s.ts = time.Now()
	s.mu.Unlock()
}

// Event counts a closed spike.
func (s *MetricsStore) Event(ev model.SpikeEvent) {
	s.mu.Lock()
	s.events[ev.Resource]++
	s.mu.Unlock()
}

// Handler exposes Prometheus metrics for the latest sample.
func (s *MetricsStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.snap == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("# no data yet\n"))
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s.writePrometheus(w)
	})
}

func (s *MetricsStore) writePrometheus(w io.Writer) {
	write := func(format string, args ...interface{}) {
		_, _ = fmt.Fprintf(w, format, args...)
	}
	snap := s.snap

	write("# TYPE spikemon_up gauge\n")
	write("spikemon_up 1\n")
	write("# TYPE spikemon_samples_total counter\n")
	write("spikemon_samples_total %d\n", s.samples)
	write("# TYPE spikemon_last_sample_timestamp_seconds gauge\n")
	write("spikemon_last_sample_timestamp_seconds %d\n", snap.Timestamp.Unix())

	write("# TYPE spikemon_cpu_percent gauge\n")
	write("spikemon_cpu_percent %f\n", snap.CPUPercent)
	write("# TYPE spikemon_ram_percent gauge\n")
	write("spikemon_ram_percent %f\n", snap.RAMPercent)
	write("# TYPE spikemon_io_read_bytes_per_second gauge\n")
	write("spikemon_io_read_bytes_per_second %f\n", snap.IOReadBytesPerSec)
	write("# TYPE spikemon_io_write_bytes_per_second gauge\n")
	write("spikemon_io_write_bytes_per_second %f\n", snap.IOWriteBytesPerSec)

	write("# TYPE spikemon_spike_events_total counter\n")
	for _, r := range model.Resources {
		write("spikemon_spike_events_total{resource=%q} %d\n", r.String(), s.events[r])
	}

	if len(s.status) == 0 {
		return
	}
	write("# TYPE spikemon_threshold gauge\n")
	for _, st := range s.status {
		if st.Enabled {
			write("spikemon_threshold{resource=%q} %f\n", st.Resource.String(), st.Threshold)
		}
	}
	write("# TYPE spikemon_spiking gauge\n")
	for _, st := range s.status {
		v := 0
		if st.Spiking {
			v = 1
		}
		write("spikemon_spiking{resource=%q} %d\n", st.Resource.String(), v)
	}
}
