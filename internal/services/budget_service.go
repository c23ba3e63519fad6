package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"blockbudget/internal/amqp"
	"blockbudget/internal/budget"
	"blockbudget/internal/core"
	"blockbudget/internal/export"
	"blockbudget/internal/ports"
)

// ErrValidation wraps every input error returned by BudgetService.
var ErrValidation = errors.New("validation failed")

var ErrUnknownCategory = errors.New("unknown category")

// EventPublisher is implemented by *amqp.Client.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.BudgetEvent) error
}

// BudgetService orchestrates budget operations across the store and the
// event bus. Writes persist first, then publish best effort.
type BudgetService struct {
	store  ports.Store
	events EventPublisher
	now    func() time.Time
}

// NewBudgetService builds the service. events may be nil, writes are then
// not announced.
func NewBudgetService(store ports.Store, events EventPublisher) *BudgetService {
	return &BudgetService{
		store:  store,
		events: events,
		now:    time.Now,
	}
}

// CategoryPatch carries the fields of an update. Nil fields are left alone.
type CategoryPatch struct {
	Name   *string
	Budget *string
}

func (p CategoryPatch) empty() bool { return p.Name == nil && p.Budget == nil }

// ExpenseInput is a raw expense as submitted by a user.
type ExpenseInput struct {
	CategoryID string
	Amount     string
	Note       string
	// Date is YYYY-MM-DD, empty means today.
	Date string
	// MakeRecurring also creates an active rule on today's day of month.
	MakeRecurring bool
}

// RecurringInput is a raw recurring rule as submitted by a user.
type RecurringInput struct {
	CategoryID string
	Amount     string
	Note       string
	DayOfMonth int
}

// Snapshot is everything the analysis of a user needs.
type Snapshot struct {
	Categories []core.Category
	Expenses   []core.Expense
	Recurring  []core.RecurringRule
	Income     *core.Money
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Categories

func (s *BudgetService) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *BudgetService) CreateCategory(ctx context.Context, userID, name, budgetStr string) (core.Category, error) {
	amount, err := core.ParseBudget(budgetStr)
	if err != nil {
		return core.Category{}, invalid(err)
	}
	c := core.Category{
		ID:            uuid.NewString(),
		Name:          core.NormalizeCategoryName(name),
		MonthlyBudget: amount,
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, invalid(err)
	}

	if err := s.store.CreateCategory(ctx, userID, c); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}

	s.publish(ctx, amqp.CategoryCreated, userID, c.ID, "")
	return c, nil
}

// UpdateCategory renames and/or re-budgets a category. An empty patch
// returns the category unchanged.
func (s *BudgetService) UpdateCategory(ctx context.Context, userID, id string, patch CategoryPatch) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	if patch.empty() {
		return c, nil
	}

	if patch.Name != nil {
		c.Name = core.NormalizeCategoryName(*patch.Name)
	}
	if patch.Budget != nil {
		amount, err := core.ParseBudget(*patch.Budget)
		if err != nil {
			return core.Category{}, invalid(err)
		}
		c.MonthlyBudget = amount
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, invalid(err)
	}

	if err := s.store.UpdateCategory(ctx, userID, c); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}

	s.publish(ctx, amqp.CategoryUpdated, userID, c.ID, "")
	return c, nil
}

func (s *BudgetService) ArchiveCategory(ctx context.Context, userID, id string) (core.Category, error) {
	return s.setArchived(ctx, userID, id, true)
}

func (s *BudgetService) UnarchiveCategory(ctx context.Context, userID, id string) (core.Category, error) {
	return s.setArchived(ctx, userID, id, false)
}

func (s *BudgetService) setArchived(ctx context.Context, userID, id string, archived bool) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	c.Archived = archived
	if err := s.store.UpdateCategory(ctx, userID, c); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}

	evType := amqp.CategoryUnarchived
	if archived {
		evType = amqp.CategoryArchived
	}
	s.publish(ctx, evType, userID, c.ID, "")
	return c, nil
}

// DeleteCategory removes the category. Its expenses and rules are kept.
func (s *BudgetService) DeleteCategory(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteCategory(ctx, userID, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.publish(ctx, amqp.CategoryDeleted, userID, id, "")
	return nil
}

// Expenses

func (s *BudgetService) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	list, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return list, nil
}

// RecordExpense stores a new expense. With MakeRecurring it also creates a
// rule; a failure there is logged since the expense is already saved.
func (s *BudgetService) RecordExpense(ctx context.Context, userID string, in ExpenseInput) (core.Expense, error) {
	now := s.now()

	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Expense{}, invalid(err)
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = core.FormatDate(now)
	}
	e := core.Expense{
		ID:         uuid.NewString(),
		CategoryID: strings.TrimSpace(in.CategoryID),
		Amount:     amount,
		Note:       strings.TrimSpace(in.Note),
		Date:       date,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}
	if err := s.requireCategory(ctx, userID, e.CategoryID); err != nil {
		return core.Expense{}, err
	}

	if err := s.store.CreateExpense(ctx, userID, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.publish(ctx, amqp.ExpenseCreated, userID, e.ID, monthOf(e.Date))

	if in.MakeRecurring {
		rule := core.RecurringRule{
			ID:         uuid.NewString(),
			CategoryID: e.CategoryID,
			Amount:     e.Amount,
			Note:       e.Note,
			DayOfMonth: core.ClampRecurringDay(now.Day()),
			Active:     true,
		}
		if err := s.store.CreateRecurring(ctx, userID, rule); err != nil {
			slog.ErrorContext(ctx, "Failed to create recurring rule from expense",
				"expense_id", e.ID,
				"user_id", userID,
				"error", err)
		} else {
			s.publish(ctx, amqp.RecurringCreated, userID, rule.ID, "")
		}
	}

	return e, nil
}

func (s *BudgetService) DeleteExpense(ctx context.Context, userID, id string) error {
	e, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.publish(ctx, amqp.ExpenseDeleted, userID, id, monthOf(e.Date))
	return nil
}

// Recurring rules

func (s *BudgetService) ListRecurring(ctx context.Context, userID string) ([]core.RecurringRule, error) {
	rules, err := s.store.ListRecurring(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	return rules, nil
}

func (s *BudgetService) CreateRecurring(ctx context.Context, userID string, in RecurringInput) (core.RecurringRule, error) {
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.RecurringRule{}, invalid(err)
	}
	r := core.RecurringRule{
		ID:         uuid.NewString(),
		CategoryID: strings.TrimSpace(in.CategoryID),
		Amount:     amount,
		Note:       strings.TrimSpace(in.Note),
		DayOfMonth: in.DayOfMonth,
		Active:     true,
	}
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, invalid(err)
	}
	if err := s.requireCategory(ctx, userID, r.CategoryID); err != nil {
		return core.RecurringRule{}, err
	}

	if err := s.store.CreateRecurring(ctx, userID, r); err != nil {
		return core.RecurringRule{}, fmt.Errorf("save recurring rule: %w", err)
	}
	s.publish(ctx, amqp.RecurringCreated, userID, r.ID, "")
	return r, nil
}

// ToggleRecurring flips the rule's active flag and returns the updated rule.
func (s *BudgetService) ToggleRecurring(ctx context.Context, userID, id string) (core.RecurringRule, error) {
	r, err := s.store.GetRecurring(ctx, userID, id)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get recurring rule: %w", err)
	}
	r.Active = !r.Active
	if err := s.store.SetRecurringActive(ctx, userID, id, r.Active); err != nil {
		return core.RecurringRule{}, fmt.Errorf("toggle recurring rule: %w", err)
	}
	s.publish(ctx, amqp.RecurringToggled, userID, id, "")
	return r, nil
}

func (s *BudgetService) DeleteRecurring(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteRecurring(ctx, userID, id); err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	s.publish(ctx, amqp.RecurringDeleted, userID, id, "")
	return nil
}

// Income

func (s *BudgetService) GetIncome(ctx context.Context, userID string) (*core.Money, error) {
	income, err := s.store.GetIncome(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get income: %w", err)
	}
	return income, nil
}

// SetIncome stores the monthly income. A blank value clears it.
func (s *BudgetService) SetIncome(ctx context.Context, userID, raw string) (*core.Money, error) {
	var income *core.Money
	if strings.TrimSpace(raw) != "" {
		amount, err := core.ParseBudget(raw)
		if err != nil {
			return nil, invalid(err)
		}
		income = &amount
	}

	if err := s.store.SetIncome(ctx, userID, income); err != nil {
		return nil, fmt.Errorf("set income: %w", err)
	}
	s.publish(ctx, amqp.IncomeUpdated, userID, "", "")
	return income, nil
}

// Analysis

// Snapshot loads categories, expenses, rules and income concurrently. The
// first failure cancels the remaining loads.
func (s *BudgetService) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cats, err := s.store.ListCategories(gctx, userID)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		snap.Categories = cats
		return nil
	})
	g.Go(func() error {
		expenses, err := s.store.ListExpenses(gctx, userID)
		if err != nil {
			return fmt.Errorf("load expenses: %w", err)
		}
		snap.Expenses = expenses
		return nil
	})
	g.Go(func() error {
		rules, err := s.store.ListRecurring(gctx, userID)
		if err != nil {
			return fmt.Errorf("load recurring rules: %w", err)
		}
		snap.Recurring = rules
		return nil
	})
	g.Go(func() error {
		income, err := s.store.GetIncome(gctx, userID)
		if err != nil {
			return fmt.Errorf("load income: %w", err)
		}
		snap.Income = income
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// AnalyzeMonth runs the budget analysis of one month for the user.
func (s *BudgetService) AnalyzeMonth(ctx context.Context, userID string, month core.Month) (budget.Analysis, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return budget.Analysis{}, err
	}
	monthExpenses := budget.MonthExpenses(snap.Expenses, month, snap.Recurring)
	return budget.Analyze(snap.Categories, monthExpenses, snap.Income), nil
}

// CurrentMonth is the month containing the service clock's now.
func (s *BudgetService) CurrentMonth() core.Month {
	return core.CurrentMonth(s.now())
}

// ExportCSV writes every stored expense of the user as CSV. Recurring rules
// are not materialised.
func (s *BudgetService) ExportCSV(ctx context.Context, w io.Writer, userID string) error {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(w, export.Rows(snap.Categories, snap.Expenses)); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}

func (s *BudgetService) requireCategory(ctx context.Context, userID, id string) error {
	_, err := s.store.GetCategory(ctx, userID, id)
	if errors.Is(err, ports.ErrNotFound) {
		return invalid(ErrUnknownCategory)
	}
	if err != nil {
		return fmt.Errorf("get category: %w", err)
	}
	return nil
}

func (s *BudgetService) publish(ctx context.Context, t amqp.EventType, userID, entityID, month string) {
	if s.events == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping budget event", "type", t)
		return
	}
	if err := s.events.PublishEvent(ctx, amqp.NewBudgetEvent(t, userID, entityID, month)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget event",
			"type", t,
			"user_id", userID,
			"entity_id", entityID,
			"error", err)
	}
}

// Close closes the store.
func (s *BudgetService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

func monthOf(date string) string {
	m, err := core.MonthOfDate(date)
	if err != nil {
		return ""
	}
	return m.String()
}
