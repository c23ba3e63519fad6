package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"blockbudget/internal/budget"
	"blockbudget/internal/core"
)

var analysisHeaders = []string{"CATEGORY", "BUDGET", "ACTUAL", "DELTA", "STATUS"}

// RenderAnalysis writes the category table and the month summary.
func RenderAnalysis(w io.Writer, month core.Month, a budget.Analysis) error {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Budget " + month.String()))
	b.WriteString("\n\n")

	if len(a.Rows) == 0 {
		b.WriteString(SubtleStyle.Render("No active categories."))
		b.WriteString("\n")
	} else {
		writeTable(&b, a.Rows)
	}

	b.WriteString("\n")
	for _, line := range summaryLines(a) {
		b.WriteString(line)
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeTable(b *strings.Builder, rows []budget.Row) {
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			r.Category.Name,
			core.FormatUSD(r.Category.MonthlyBudget),
			core.FormatUSD(r.Actual),
			core.FormatUSD(r.Delta),
			string(r.Status),
		})
	}

	widths := make([]int, len(analysisHeaders))
	for i, h := range analysisHeaders {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range cells {
		for i, c := range row {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	header := make([]string, len(analysisHeaders))
	for i, h := range analysisHeaders {
		header[i] = cell(TableHeaderStyle, widths[i], i).Render(h)
	}
	b.WriteString(strings.Join(header, "  "))
	b.WriteString("\n")

	for ri, row := range cells {
		out := make([]string, len(row))
		for i, c := range row {
			style := lipgloss.NewStyle()
			if i == len(row)-1 {
				style = statusStyle(rows[ri].Status)
			}
			out[i] = cell(style, widths[i], i).Render(c)
		}
		b.WriteString(strings.Join(out, "  "))
		b.WriteString("\n")
	}
}

// cell pads to width. Money columns are right aligned.
func cell(style lipgloss.Style, width, col int) lipgloss.Style {
	style = style.Width(width)
	if col > 0 && col < len(analysisHeaders)-1 {
		style = style.Align(lipgloss.Right)
	}
	return style
}

func statusStyle(s budget.Status) lipgloss.Style {
	switch s {
	case budget.StatusOver:
		return overStyle
	case budget.StatusUnder:
		return underStyle
	default:
		return evenStyle
	}
}

func summaryLines(a budget.Analysis) []string {
	lines := []string{
		fmt.Sprintf("Total budget:   %s", core.FormatUSD(a.TotalBudget)),
		fmt.Sprintf("Total spent:    %s", core.FormatUSD(a.TotalActual)),
	}
	if a.HasIncome {
		lines = append(lines,
			fmt.Sprintf("Left of income: %s", core.FormatUSD(a.Leftover)),
			fmt.Sprintf("Income used:    %d%%", a.PercentUsed),
			fmt.Sprintf("Unallocated:    %s", core.FormatUSD(a.Unallocated)),
		)
	} else {
		lines = append(lines,
			fmt.Sprintf("Left of budget: %s", core.FormatUSD(a.Leftover)),
			fmt.Sprintf("Budget used:    %d%%", a.PercentUsed),
			SubtleStyle.Render("No income set."),
		)
	}
	return lines
}
