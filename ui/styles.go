package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	colorRed     = lipgloss.Color("#FF5555")
	colorYellow  = lipgloss.Color("#F1FA8C")
	colorGreen   = lipgloss.Color("#50FA7B")
	colorCyan    = lipgloss.Color("#8BE9FD")
	colorMagenta = lipgloss.Color("#FF79C6")
	colorWhite   = lipgloss.Color("#F8F8F2")
	colorGray    = lipgloss.Color("#6272A4")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	valueStyle  = lipgloss.NewStyle().Foreground(colorWhite)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	critStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	headerStyle = lipgloss.NewStyle().Foreground(colorMagenta).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorGray)
)

// loadStyle colors a value by how close it is to its threshold.
func loadStyle(v, threshold float64, enabled bool) lipgloss.Style {
	switch {
	case !enabled:
		return valueStyle
	case v >= threshold:
		return critStyle
	case v >= threshold*0.8:
		return warnStyle
	default:
		return okStyle
	}
}
