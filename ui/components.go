package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styledPad pads a styled string to the given visual width using spaces.
// Unlike fmt.Sprintf("%-Xs"), this accounts for ANSI escape codes.
func styledPad(styled string, width int) string {
	visW := lipgloss.Width(styled)
	if visW >= width {
		return styled
	}
	return styled + strings.Repeat(" ", width-visW)
}

// boxTop renders the top border of a rounded box with a title.
func boxTop(title string, innerW int) string {
	label := "─ " + title + " "
	fill := innerW + 2 - lipgloss.Width(label)
	if fill < 0 {
		fill = 0
	}
	return " " + dimStyle.Render("╭"+label+strings.Repeat("─", fill)+"╮")
}

// boxBot renders the bottom border of a rounded box.
func boxBot(innerW int) string {
	return " " + dimStyle.Render("╰"+strings.Repeat("─", innerW+2)+"╯")
}

// boxRow renders one content line inside a box, padded to innerW.
func boxRow(content string, innerW int) string {
	visW := lipgloss.Width(content)
	pad := innerW - visW
	if pad < 0 {
		pad = 0
	}
	return " " + dimStyle.Render("│") + " " + content + strings.Repeat(" ", pad) + " " + dimStyle.Render("│")
}

// boxSection renders lines inside a titled box.
func boxSection(title string, lines []string, innerW int) string {
	var sb strings.Builder
	sb.WriteString(boxTop(title, innerW) + "\n")
	for _, l := range lines {
		sb.WriteString(boxRow(l, innerW) + "\n")
	}
	sb.WriteString(boxBot(innerW) + "\n")
	return sb.String()
}

// sparkline renders a single-line chart of data scaled to [0, maxVal].
// Points at or above mark are drawn in the alert color.
func sparkline(data []float64, width int, maxVal, mark float64, marked bool) string {
	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	if maxVal <= 0 {
		maxVal = 1
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	var sb strings.Builder
	for _, v := range data {
		ratio := v / maxVal
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
		idx := int(ratio * float64(len(blocks)-1))
		ch := string(blocks[idx])
		if marked && v >= mark {
			sb.WriteString(critStyle.Render(ch))
		} else {
			sb.WriteString(okStyle.Render(ch))
		}
	}
	if pad := width - len(data); pad > 0 {
		sb.WriteString(strings.Repeat(" ", pad))
	}
	return sb.String()
}

// truncate shortens s to maxLen characters with ellipsis if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
