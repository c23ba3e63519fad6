// Package ports declares the outbound interfaces the budget service and the
// sync worker depend on. Every store operation is scoped to one user.
package ports

import (
	"context"
	"errors"

	"blockbudget/internal/core"
)

// ErrNotFound is returned when the addressed row does not exist for the user.
var ErrNotFound = errors.New("not found")

type (
	CategoryStore interface {
		// ListCategories returns the user's categories in creation order.
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		GetCategory(ctx context.Context, userID, id string) (core.Category, error)
		CreateCategory(ctx context.Context, userID string, c core.Category) error
		UpdateCategory(ctx context.Context, userID string, c core.Category) error
		DeleteCategory(ctx context.Context, userID, id string) error
	}

	ExpenseStore interface {
		// ListExpenses returns the user's stored expenses in creation order.
		ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
		GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
		CreateExpense(ctx context.Context, userID string, e core.Expense) error
		DeleteExpense(ctx context.Context, userID, id string) error
	}

	RecurringStore interface {
		ListRecurring(ctx context.Context, userID string) ([]core.RecurringRule, error)
		GetRecurring(ctx context.Context, userID, id string) (core.RecurringRule, error)
		CreateRecurring(ctx context.Context, userID string, r core.RecurringRule) error
		SetRecurringActive(ctx context.Context, userID, id string, active bool) error
		DeleteRecurring(ctx context.Context, userID, id string) error
	}

	IncomeStore interface {
		// GetIncome returns nil when the user has no income set.
		GetIncome(ctx context.Context, userID string) (*core.Money, error)
		// SetIncome upserts the income, nil clears it.
		SetIncome(ctx context.Context, userID string, income *core.Money) error
	}

	// SyncQueue tracks which expenses still have to reach the spreadsheet.
	SyncQueue interface {
		PendingSync(ctx context.Context, limit int) ([]PendingExpense, error)
		// IsSynced returns ErrNotFound for an unknown expense.
		IsSynced(ctx context.Context, userID, id string) (bool, error)
		MarkSynced(ctx context.Context, userID, id string) error
		MarkSyncError(ctx context.Context, userID, id string) error
	}

	// Store is the full persistence surface.
	Store interface {
		CategoryStore
		ExpenseStore
		RecurringStore
		IncomeStore
		SyncQueue
		Close() error
	}

	// ExpenseRowWriter appends one expense row to an external sheet.
	ExpenseRowWriter interface {
		AppendExpense(ctx context.Context, row ExpenseRow) error
	}
)

// PendingExpense is an unsynced expense together with its owner.
type PendingExpense struct {
	UserID  string
	Expense core.Expense
}

// ExpenseRow is the flattened form of an expense shared by the CSV export
// and the spreadsheet sync.
type ExpenseRow struct {
	Date     string
	Category string
	Amount   core.Money
	Note     string
}
