package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorRed     = lipgloss.Color("#FF5555")
	colorYellow  = lipgloss.Color("#F1FA8C")
	colorGreen   = lipgloss.Color("#50FA7B")
	colorCyan    = lipgloss.Color("#8BE9FD")
	colorMagenta = lipgloss.Color("#FF79C6")
	colorGray    = lipgloss.Color("#6272A4")
)

// styles is bound to one writer so color detection follows that writer
// (no escape codes when stdout is a pipe).
type styles struct {
	dim    lipgloss.Style
	cpu    lipgloss.Style
	ram    lipgloss.Style
	io     lipgloss.Style
	alert  lipgloss.Style
	header lipgloss.Style
	pid    lipgloss.Style
	ok     lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		dim:    r.NewStyle().Foreground(colorGray),
		cpu:    r.NewStyle().Foreground(colorCyan).Bold(true),
		ram:    r.NewStyle().Foreground(colorGreen).Bold(true),
		io:     r.NewStyle().Foreground(colorMagenta).Bold(true),
		alert:  r.NewStyle().Foreground(colorRed).Bold(true),
		header: r.NewStyle().Foreground(colorYellow),
		pid:    r.NewStyle().Foreground(colorCyan),
		ok:     r.NewStyle().Foreground(colorGreen),
	}
}
