package output

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"

	"github.com/ftahirops/spikemon/engine"
	"github.com/ftahirops/spikemon/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter writes one line (or block) per snapshot, event or record.
// It implements engine.Reporter.
type Reporter struct {
	w      io.Writer
	format Format
	st     styles
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer, format Format) *Reporter {
	return &Reporter{w: w, format: format, st: newStyles(w)}
}

// snapshotLine is the JSON form of a snapshot.
type snapshotLine struct {
	Ts      int64   `json:"ts"`
	CPU     float64 `json:"cpu"`
	RAM     float64 `json:"ram"`
	IORead  float64 `json:"io_read"`
	IOWrite float64 `json:"io_write"`
}

// Snapshot prints the current readings.
func (r *Reporter) Snapshot(s *model.Snapshot) {
	if r.format == FormatJSON {
		r.writeJSON(snapshotLine{
			Ts:      s.Timestamp.Unix(),
			CPU:     round(s.CPUPercent, 1),
			RAM:     round(s.RAMPercent, 1),
			IORead:  round(s.IOReadBytesPerSec, 2),
			IOWrite: round(s.IOWriteBytesPerSec, 2),
		})
		return
	}
	fmt.Fprintf(r.w, "%s %s: %.1f%% | %s: %.1f%% | %s: %s/s r, %s/s w\n",
		r.st.dim.Render("["+strconv.FormatInt(s.Timestamp.Unix(), 10)+"]"),
		r.st.cpu.Render("CPU"), s.CPUPercent,
		r.st.ram.Render("RAM"), s.RAMPercent,
		r.st.io.Render("IO"),
		humanize.Bytes(uint64(math.Max(s.IOReadBytesPerSec, 0))),
		humanize.Bytes(uint64(math.Max(s.IOWriteBytesPerSec, 0))),
	)
}

// Event prints a closed spike.
func (r *Reporter) Event(ev model.SpikeEvent) {
	rec := model.NewLogRecord(ev)
	if r.format == FormatJSON {
		r.writeJSON(rec)
		return
	}
	unit := ev.Resource.Unit()
	header := fmt.Sprintf(">>> %s spike: start=%d end=%d duration=%ds peak=%.2f%s (threshold=%.2f%s)",
		ev.Resource.Label(), rec.TsStart, rec.TsEnd, rec.DurationSecs,
		ev.Peak, unit, ev.Threshold, unit)
	fmt.Fprintln(r.w, r.st.alert.Render(header))
	if len(ev.TopProcesses) > 0 {
		fmt.Fprintln(r.w, r.st.header.Render("    Top processes at peak:"))
		r.writeProcesses("      ", ev.TopProcesses)
	}
}

// Record prints a replayed log record. JSON mode reproduces the raw line.
func (r *Reporter) Record(rr engine.ReplayedRecord) {
	if r.format == FormatJSON {
		fmt.Fprintln(r.w, rr.Raw)
		return
	}
	rec := rr.Record
	label, unit := "UNKNOWN", ""
	if k, ok := rec.Kind(); ok {
		label, unit = k.Label(), k.Unit()
	}
	fmt.Fprintf(r.w, "[LOG] %s spike: start=%d end=%d duration=%ds peak=%.2f%s (threshold=%.2f%s)\n",
		label, rec.TsStart, rec.TsEnd, rec.DurationSecs, rec.Peak, unit, rec.Threshold, unit)
	if len(rec.Top) > 0 {
		fmt.Fprintln(r.w, "      Top processes at peak (from log):")
		r.writeProcesses("        ", rec.Top)
	}
}

// Summary prints the end-of-run counters of a bounded run.
func (r *Reporter) Summary(stats engine.RunStats) {
	if r.format == FormatJSON {
		r.writeJSON(map[string]interface{}{
			"ticks":        stats.Ticks,
			"skipped":      stats.Skipped,
			"events":       stats.Events,
			"elapsed_secs": round(stats.Elapsed.Seconds(), 1),
		})
		return
	}
	fmt.Fprintln(r.w, r.st.ok.Render(fmt.Sprintf("done: %d samples (%d skipped), %d spike events in %s",
		stats.Ticks, stats.Skipped, stats.Events, stats.Elapsed.Round(100_000_000))))
}

func (r *Reporter) writeProcesses(indent string, procs []model.ProcessSample) {
	for _, p := range procs {
		fmt.Fprintf(r.w, "%sPID %s (%s) CPU=%.1f%% RAM=%s\n",
			indent, r.st.pid.Render(strconv.Itoa(p.PID)), p.Name, p.CPUPercent, humanize.IBytes(p.RAMBytes))
	}
}

func (r *Reporter) writeJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = r.w.Write(data)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
