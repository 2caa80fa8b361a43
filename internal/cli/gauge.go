package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"nci-backend/internal/criteria"
	"nci-backend/internal/session"
)

const gaugeWidth = 40

var (
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boldStyle = lipgloss.NewStyle().Bold(true)
)

func tierStyle(r criteria.ScoreRange) lipgloss.Style {
	if noColor || r.Color == "" {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(r.Color))
}

func plain(style lipgloss.Style) lipgloss.Style {
	if noColor {
		return lipgloss.NewStyle()
	}
	return style
}

// renderGauge draws a horizontal bar filled in proportion to total out of
// the maximum reachable score.
func renderGauge(total int, tier criteria.ScoreRange) string {
	maxTotal := criteria.Count * criteria.MaxScore
	if total < 0 {
		total = 0
	}
	if total > maxTotal {
		total = maxTotal
	}
	filled := total * gaugeWidth / maxTotal
	bar := tierStyle(tier).Render(strings.Repeat("█", filled)) +
		plain(dimStyle).Render(strings.Repeat("░", gaugeWidth-filled))
	return fmt.Sprintf("[%s] %d/%d", bar, total, maxTotal)
}

func renderReport(out io.Writer, view session.View) {
	fmt.Fprintln(out, renderGauge(view.Total, view.Tier))
	fmt.Fprintln(out, tierStyle(view.Tier).Bold(!noColor).Render(view.TierLabel))
	fmt.Fprintln(out)

	for _, c := range criteria.All() {
		score := view.Scores[c.ID]
		fmt.Fprintf(out, "%2d %-28s %s\n", c.ID, c.Category, plain(boldStyle).Render(fmt.Sprintf("%d/%d", score, criteria.MaxScore)))
		if reason := strings.TrimSpace(view.Reasoning[c.ID]); reason != "" {
			fmt.Fprintf(out, "   %s\n", plain(dimStyle).Render(reason))
		}
	}
	if view.Notice != "" {
		fmt.Fprintf(out, "\n%s\n", view.Notice)
	}
}
