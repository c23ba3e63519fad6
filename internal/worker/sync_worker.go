package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blockbudget/internal/amqp"
	"blockbudget/internal/budget"
	"blockbudget/internal/core"
	"blockbudget/internal/export"
	"blockbudget/internal/ports"
)

// Analyzer runs the month analysis of a user. Implemented by
// *services.BudgetService.
type Analyzer interface {
	AnalyzeMonth(ctx context.Context, userID string, month core.Month) (budget.Analysis, error)
}

// SyncWorker copies new expenses to the spreadsheet and reports categories
// that went over budget.
type SyncWorker struct {
	store     ports.Store
	sheets    ports.ExpenseRowWriter
	analyzer  Analyzer
	batchSize int
}

func NewSyncWorker(store ports.Store, sheets ports.ExpenseRowWriter, analyzer Analyzer, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		sheets:    sheets,
		analyzer:  analyzer,
		batchSize: batchSize,
	}
}

// HandleEvent processes one budget event from AMQP. Only expense.created
// needs work, every other type is acknowledged as is.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.BudgetEvent) error {
	if ev.Type != amqp.ExpenseCreated {
		slog.DebugContext(ctx, "Ignoring budget event", "type", ev.Type, "entity_id", ev.EntityID)
		return nil
	}

	slog.InfoContext(ctx, "Processing expense event",
		"user_id", ev.UserID,
		"id", ev.EntityID)

	expense, err := w.store.GetExpense(ctx, ev.UserID, ev.EntityID)
	if errors.Is(err, ports.ErrNotFound) {
		slog.InfoContext(ctx, "Expense deleted before sync, skipping", "id", ev.EntityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	// Redeliveries and the pending pass may have synced it already.
	synced, err := w.store.IsSynced(ctx, ev.UserID, ev.EntityID)
	if errors.Is(err, ports.ErrNotFound) {
		slog.InfoContext(ctx, "Expense deleted before sync, skipping", "id", ev.EntityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense sync status: %w", err)
	}
	if synced {
		slog.InfoContext(ctx, "Expense already synced, skipping", "id", ev.EntityID)
		return nil
	}

	if err := w.syncExpense(ctx, ev.UserID, expense); err != nil {
		return err
	}

	w.reportOverBudget(ctx, ev.UserID, expense.Date)
	return nil
}

// ProcessPending syncs up to one batch of expenses the event path missed.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.PendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending expenses: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending expenses", "count", len(pending))

	synced := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.syncExpense(ctx, p.UserID, p.Expense); err != nil {
			slog.ErrorContext(ctx, "Failed to sync expense", "id", p.Expense.ID, "error", err)
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", len(pending)-synced)
	return nil
}

func (w *SyncWorker) syncExpense(ctx context.Context, userID string, e core.Expense) error {
	name := ""
	c, err := w.store.GetCategory(ctx, userID, e.CategoryID)
	switch {
	case err == nil:
		name = c.Name
	case !errors.Is(err, ports.ErrNotFound):
		return fmt.Errorf("get category: %w", err)
	}

	if err := w.sheets.AppendExpense(ctx, export.RowFor(e, name)); err != nil {
		if markErr := w.store.MarkSyncError(ctx, userID, e.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", e.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// The row is already appended, a failed mark only means a duplicate
	// row on the next pending pass.
	if err := w.store.MarkSynced(ctx, userID, e.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", e.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced expense",
		"id", e.ID,
		"user_id", userID,
		"amount_cents", e.Amount.Cents,
		"date", e.Date)
	return nil
}

func (w *SyncWorker) reportOverBudget(ctx context.Context, userID, date string) {
	if w.analyzer == nil {
		return
	}
	month, err := core.MonthOfDate(date)
	if err != nil {
		return
	}
	a, err := w.analyzer.AnalyzeMonth(ctx, userID, month)
	if err != nil {
		slog.WarnContext(ctx, "Failed to analyze month after sync",
			"user_id", userID,
			"month", month.String(),
			"error", err)
		return
	}
	for _, row := range a.OverBudget() {
		slog.WarnContext(ctx, "Category over budget",
			"user_id", userID,
			"month", month.String(),
			"category", row.Category.Name,
			"budget", core.FormatAmount(row.Category.MonthlyBudget),
			"actual", core.FormatAmount(row.Actual),
			"over_by", core.FormatAmount(core.Money{Cents: -row.Delta.Cents}))
	}
}
