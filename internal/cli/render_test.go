package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockbudget/internal/budget"
	"blockbudget/internal/core"
)

func TestRenderAnalysis(t *testing.T) {
	categories := []core.Category{
		{ID: "rent", Name: "RENT", MonthlyBudget: core.Money{Cents: 100000}},
		{ID: "food", Name: "FOOD", MonthlyBudget: core.Money{Cents: 30000}},
	}
	expenses := []core.Expense{
		{CategoryID: "rent", Amount: core.Money{Cents: 100000}},
		{CategoryID: "food", Amount: core.Money{Cents: 45050}},
	}
	income := core.Money{Cents: 300000}
	a := budget.Analyze(categories, expenses, &income)

	var buf bytes.Buffer
	require.NoError(t, RenderAnalysis(&buf, core.Month{Year: 2024, Month: 3}, a))
	out := buf.String()

	assert.Contains(t, out, "Budget 2024-03")
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "$1,000.00")
	assert.Contains(t, out, "-$150.50")
	assert.Contains(t, out, "OVER")
	assert.Contains(t, out, "EVEN")
	assert.Contains(t, out, "Income used:    48%")
	assert.Contains(t, out, "Unallocated:    $1,700.00")

	rentLine := lineWith(out, "RENT")
	foodLine := lineWith(out, "FOOD")
	assert.Equal(t, len(rentLine), len(foodLine), "rows should be padded to the same width")
}

func TestRenderAnalysis_NoCategoriesNoIncome(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderAnalysis(&buf, core.Month{Year: 2024, Month: 1}, budget.Analyze(nil, nil, nil)))

	out := buf.String()
	assert.Contains(t, out, "No active categories.")
	assert.Contains(t, out, "No income set.")
	assert.NotContains(t, out, "CATEGORY")
}

func lineWith(out, needle string) string {
	for _, l := range strings.Split(out, "\n") {
		if strings.Contains(l, needle) {
			return l
		}
	}
	return ""
}
