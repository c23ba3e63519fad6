// Package budget computes the monthly budget analysis: which expenses fall
// into a month and how the month's spending compares to the category
// budgets and the optional income.
//
// Everything here is pure. Callers load the snapshot, this package only
// folds it.
package budget

import (
	"fmt"
	"math"
	"math/big"

	"blockbudget/internal/core"
)

type Status string

const (
	StatusOver  Status = "OVER"
	StatusUnder Status = "UNDER"
	StatusEven  Status = "EVEN"
)

// Row is the analysis of one active category.
type Row struct {
	Category core.Category
	Actual   core.Money
	Delta    core.Money // budget - actual
	Status   Status
}

// Analysis is the month summary.
type Analysis struct {
	Rows        []Row
	TotalBudget core.Money
	TotalActual core.Money
	Leftover    core.Money
	PercentUsed int64
	Unallocated core.Money
	// HasIncome reports whether Leftover and PercentUsed are relative to the
	// income instead of the total budget.
	HasIncome bool
}

// RecurringExpenseID is the identifier carried by the synthetic expense a
// rule materialises into for month.
func RecurringExpenseID(ruleID string, month core.Month) string {
	return fmt.Sprintf("recurring:%s:%s", ruleID, month)
}

// MonthExpenses returns the stored expenses dated in month followed by one
// synthetic expense per active rule. Synthetic expenses are not deduplicated
// against manual ones.
func MonthExpenses(expenses []core.Expense, month core.Month, rules []core.RecurringRule) []core.Expense {
	out := make([]core.Expense, 0, len(expenses)+len(rules))
	for _, e := range expenses {
		if month.Contains(e.Date) {
			out = append(out, e)
		}
	}
	for _, r := range rules {
		if !r.Active {
			continue
		}
		out = append(out, core.Expense{
			ID:         RecurringExpenseID(r.ID, month),
			CategoryID: r.CategoryID,
			Amount:     r.Amount,
			Note:       r.Note,
			Date:       month.DateOn(r.DayOfMonth),
			Recurring:  true,
		})
	}
	return out
}

// Analyze folds the month's expenses against the categories. A nil or
// non-positive income means no income constraint.
func Analyze(categories []core.Category, monthExpenses []core.Expense, income *core.Money) Analysis {
	var a Analysis

	spend := make(map[string]int64, len(categories))
	for _, e := range monthExpenses {
		a.TotalActual.Cents += e.Amount.Cents
		spend[e.CategoryID] += e.Amount.Cents
	}

	a.Rows = make([]Row, 0, len(categories))
	for _, c := range categories {
		if c.Archived {
			continue
		}
		actual := core.Money{Cents: spend[c.ID]}
		delta := c.MonthlyBudget.Sub(actual)
		a.Rows = append(a.Rows, Row{
			Category: c,
			Actual:   actual,
			Delta:    delta,
			Status:   statusOf(delta),
		})
		a.TotalBudget.Cents += c.MonthlyBudget.Cents
	}

	if income != nil && income.Cents > 0 {
		a.HasIncome = true
		a.Leftover = income.Sub(a.TotalActual)
		a.PercentUsed = percentOf(a.TotalActual.Cents, income.Cents)
		a.Unallocated = income.Sub(a.TotalBudget)
		return a
	}

	a.Leftover = a.TotalBudget.Sub(a.TotalActual)
	if a.TotalBudget.Cents > 0 {
		a.PercentUsed = percentOf(a.TotalActual.Cents, a.TotalBudget.Cents)
	}
	return a
}

// OverBudget returns the rows whose status is OVER.
func (a Analysis) OverBudget() []Row {
	var out []Row
	for _, r := range a.Rows {
		if r.Status == StatusOver {
			out = append(out, r)
		}
	}
	return out
}

func statusOf(delta core.Money) Status {
	switch {
	case delta.Cents < 0:
		return StatusOver
	case delta.Cents > 0:
		return StatusUnder
	default:
		return StatusEven
	}
}

// Operands within these bounds keep 200*part + whole inside int64.
const (
	maxFastPart  = math.MaxInt64 / 400
	maxFastWhole = math.MaxInt64 / 4
)

// percentOf returns floor(part/whole*100 + 0.5) computed exactly on
// integers. whole must be positive. Results beyond int64 saturate.
func percentOf(part, whole int64) int64 {
	if part <= maxFastPart && part >= -maxFastPart && whole <= maxFastWhole {
		return floorDiv(200*part+whole, 2*whole)
	}

	num := new(big.Int).Mul(big.NewInt(part), big.NewInt(200))
	num.Add(num, big.NewInt(whole))
	den := new(big.Int).Mul(big.NewInt(whole), big.NewInt(2))
	// Euclidean division floors for a positive divisor.
	q := num.Div(num, den)
	switch {
	case q.IsInt64():
		return q.Int64()
	case q.Sign() > 0:
		return math.MaxInt64
	default:
		return math.MinInt64
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
