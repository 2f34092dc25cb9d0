package main

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nvandessel/sisweep/internal/store"
	"github.com/nvandessel/sisweep/internal/sweep"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// renderPrevalence lays the result table out with one row per beta and one
// column per mu.
func renderPrevalence(t *sweep.Table) string {
	headers := []string{"β"}
	for _, mu := range t.Mus() {
		headers = append(headers, "µ="+formatFloat(mu))
	}
	tbl := newTable(headers...)
	for bi, beta := range t.Betas {
		row := []string{formatFloat(beta)}
		for _, s := range t.Series {
			row = append(row, strconv.FormatFloat(s.Values[bi], 'f', 4, 64))
		}
		tbl.Row(row...)
	}
	return tbl.String()
}

// renderSummaries lists stored sweeps.
func renderSummaries(sums []store.Summary) string {
	tbl := newTable("ID", "Name", "Nodes", "β", "µ", "Repeats", "Degenerate", "Created")
	for _, s := range sums {
		tbl.Row(
			shortID(s.ID),
			s.Name,
			strconv.Itoa(s.Nodes),
			strconv.Itoa(s.Betas),
			strconv.Itoa(s.Mus),
			strconv.Itoa(s.Repeats),
			strconv.Itoa(s.Diagnostics),
			s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	return tbl.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
