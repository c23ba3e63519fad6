// Package export flattens expenses into rows and writes them as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"blockbudget/internal/core"
	"blockbudget/internal/ports"
)

// UnknownCategory names expenses whose category no longer exists.
const UnknownCategory = "UNKNOWN"

var header = []string{"date", "category", "amount", "note"}

// Rows maps each expense to a row, resolving the category name among all
// categories, archived ones included.
func Rows(categories []core.Category, expenses []core.Expense) []ports.ExpenseRow {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	rows := make([]ports.ExpenseRow, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, RowFor(e, names[e.CategoryID]))
	}
	return rows
}

// RowFor builds the row of one expense. An empty category name becomes
// UnknownCategory.
func RowFor(e core.Expense, categoryName string) ports.ExpenseRow {
	if categoryName == "" {
		categoryName = UnknownCategory
	}
	return ports.ExpenseRow{
		Date:     e.Date,
		Category: categoryName,
		Amount:   e.Amount,
		Note:     e.Note,
	}
}

// WriteCSV writes the header and one line per row. Fields containing a
// comma, quote or newline are quoted with embedded quotes doubled.
func WriteCSV(w io.Writer, rows []ports.ExpenseRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Date, r.Category, core.FormatAmount(r.Amount), r.Note}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
