// Package ui implements the interactive dashboard for live monitoring.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/ftahirops/spikemon/engine"
	"github.com/ftahirops/spikemon/model"
)

const (
	historyLen = 120
	maxEvents  = 10
	maxLogs    = 4
	colLabel   = 5
)

type snapshotMsg struct {
	snap   *model.Snapshot
	states []engine.SpikeStatus
}

type eventMsg struct {
	ev model.SpikeEvent
}

type logMsg string

// Model is the bubbletea model of the dashboard. It only renders what the
// runner sends it; sampling and detection stay on the runner goroutine.
type Model struct {
	interval time.Duration
	snap     *model.Snapshot
	states   []engine.SpikeStatus
	history  map[model.ResourceKind][]float64
	events   []model.SpikeEvent // newest first
	logs     []string
	samples  uint64
	width    int
	height   int
	paused   bool
	keys     KeyMap
	help     help.Model
}

// NewModel creates a dashboard for a runner sampling every interval.
func NewModel(interval time.Duration) Model {
	return Model{
		interval: interval,
		history:  make(map[model.ResourceKind][]float64, len(model.Resources)),
		keys:     DefaultKeyMap(),
		help:     help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.events = nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
	case snapshotMsg:
		m.samples++
		for _, r := range model.Resources {
			h := append(m.history[r], msg.snap.Value(r))
			if len(h) > historyLen {
				h = h[len(h)-historyLen:]
			}
			m.history[r] = h
		}
		if !m.paused {
			m.snap = msg.snap
			m.states = msg.states
		}
	case eventMsg:
		m.events = append([]model.SpikeEvent{msg.ev}, m.events...)
		if len(m.events) > maxEvents {
			m.events = m.events[:maxEvents]
		}
	case logMsg:
		m.logs = append(m.logs, string(msg))
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.snap == nil {
		return "Collecting first sample..."
	}

	innerW := m.width - 6
	if innerW < 40 {
		innerW = 40
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader() + "\n")
	sb.WriteString(boxSection("Resources", m.renderResources(innerW), innerW))
	if len(m.snap.TopProcesses) > 0 {
		sb.WriteString(boxSection("Top processes", renderProcesses(m.snap.TopProcesses), innerW))
	}
	sb.WriteString(boxSection("Spike events", m.renderEvents(), innerW))
	if len(m.logs) > 0 {
		lines := make([]string, len(m.logs))
		for i, l := range m.logs {
			lines[i] = dimStyle.Render(truncate(l, innerW))
		}
		sb.WriteString(boxSection("Log", lines, innerW))
	}

	helpView := " " + m.help.View(m.keys)
	content := sb.String()
	if room := m.height - lipgloss.Height(helpView); room > 0 {
		lines := strings.Split(content, "\n")
		if len(lines) > room {
			content = strings.Join(lines[:room], "\n") + "\n"
		}
	}
	return content + helpView
}

func (m Model) renderHeader() string {
	h := " " + titleStyle.Render("spikemon") +
		dimStyle.Render(fmt.Sprintf("  every %s  samples %d  ", m.interval, m.samples)) +
		valueStyle.Render(m.snap.Timestamp.Format("15:04:05"))
	if m.paused {
		h += "  " + warnStyle.Render("[PAUSED]")
	}
	return h
}

func (m Model) renderResources(innerW int) []string {
	sparkW := innerW - 52
	if sparkW < 10 {
		sparkW = 10
	}
	lines := make([]string, 0, len(m.states))
	for _, st := range m.states {
		r := st.Resource
		v := m.snap.Value(r)

		thr := dimStyle.Render("off")
		if st.Enabled {
			thr = fmt.Sprintf("thr %.1f%s", st.Threshold, r.Unit())
		}
		state := okStyle.Render("idle")
		switch {
		case !st.Enabled:
			state = dimStyle.Render("-")
		case st.Spiking:
			dur := m.snap.Timestamp.Sub(st.Start).Truncate(time.Second)
			state = critStyle.Render(fmt.Sprintf("SPIKE %s peak %.1f", dur, st.Peak))
		}

		maxVal := 100.0
		if r == model.ResourceIO {
			maxVal = maxOf(m.history[r])
			if st.Enabled && st.Threshold > maxVal {
				maxVal = st.Threshold
			}
		}

		lines = append(lines, fmt.Sprintf("%s %s %s %s %s",
			styledPad(headerStyle.Render(r.Label()), colLabel),
			styledPad(loadStyle(v, st.Threshold, st.Enabled).Render(fmt.Sprintf("%.1f%s", v, r.Unit())), 11),
			styledPad(thr, 14),
			styledPad(state, 20),
			sparkline(m.history[r], sparkW, maxVal, st.Threshold, st.Enabled),
		))
	}
	return lines
}

func renderProcesses(procs []model.ProcessSample) []string {
	lines := make([]string, 0, len(procs))
	for _, p := range procs {
		lines = append(lines, fmt.Sprintf("%7d  %-20s %6.1f%%  %s",
			p.PID, truncate(p.Name, 20), p.CPUPercent, humanize.IBytes(p.RAMBytes)))
	}
	return lines
}

func (m Model) renderEvents() []string {
	if len(m.events) == 0 {
		return []string{dimStyle.Render("none yet")}
	}
	lines := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		unit := ev.Resource.Unit()
		lines = append(lines, fmt.Sprintf("%s %s %s peak %.2f%s thr %.2f%s %ds",
			dimStyle.Render(ev.Start.Format("15:04:05")),
			dimStyle.Render("->"),
			critStyle.Render(ev.Resource.Label()),
			ev.Peak, unit, ev.Threshold, unit, ev.DurationSecs()))
	}
	return lines
}

func maxOf(data []float64) float64 {
	m := 0.0
	for _, v := range data {
		if v > m {
			m = v
		}
	}
	return m
}

// Reporter forwards runner output to a running program. It implements
// engine.Reporter and is called on the runner goroutine.
type Reporter struct {
	send   func(tea.Msg)
	states func() []engine.SpikeStatus
}

// NewReporter creates a reporter for p. states is read after every
// snapshot, on the same goroutine that mutates the detector.
func NewReporter(p *tea.Program, states func() []engine.SpikeStatus) *Reporter {
	return &Reporter{send: p.Send, states: states}
}

func (r *Reporter) Snapshot(snap *model.Snapshot) {
	var states []engine.SpikeStatus
	if r.states != nil {
		states = r.states()
	}
	r.send(snapshotMsg{snap: snap, states: states})
}

func (r *Reporter) Event(ev model.SpikeEvent) {
	r.send(eventMsg{ev: ev})
}

type logWriter struct {
	send func(tea.Msg)
}

// NewLogWriter returns a writer that shows each written line in the
// dashboard's log box. Use it as the slog output while the program owns
// the terminal.
func NewLogWriter(p *tea.Program) io.Writer {
	return logWriter{send: p.Send}
}

func (w logWriter) Write(b []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		if line != "" {
			w.send(logMsg(line))
		}
	}
	return len(b), nil
}
