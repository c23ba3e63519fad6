package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"blockbudget/internal/core"
	"blockbudget/internal/ports"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements ports.Store on a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Categories

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, monthly_budget_cents, archived
		FROM categories
		WHERE user_id = ?
		ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.MonthlyBudget.Cents, &c.Archived); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, monthly_budget_cents, archived
		FROM categories
		WHERE user_id = ? AND id = ?`, userID, id).
		Scan(&c.ID, &c.Name, &c.MonthlyBudget.Cents, &c.Archived)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ports.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, userID string, c core.Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, monthly_budget_cents, archived)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, userID, c.Name, c.MonthlyBudget.Cents, boolToInt(c.Archived))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category saved to SQLite",
		"id", c.ID,
		"user_id", userID,
		"name", c.Name,
		"budget_cents", c.MonthlyBudget.Cents)
	return nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, userID string, c core.Category) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, monthly_budget_cents = ?, archived = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND id = ?`,
		c.Name, c.MonthlyBudget.Cents, boolToInt(c.Archived), userID, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectOneRow(res)
}

// Expenses

const expenseColumns = `id, category_id, amount_cents, note, date`

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE user_id = ?
		ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE user_id = ? AND id = ?`, userID, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ports.ErrNotFound
	}
	return e, err
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, userID string, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, category_id, amount_cents, note, date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, userID, e.CategoryID, e.Amount.Cents, e.Note, e.Date)
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", userID,
		"category_id", e.CategoryID,
		"amount_cents", e.Amount.Cents,
		"date", e.Date)
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return expectOneRow(res)
}

// Recurring rules

func (r *SQLiteRepository) ListRecurring(ctx context.Context, userID string) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category_id, amount_cents, note, day_of_month, active
		FROM recurring_rules
		WHERE user_id = ?
		ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		rule, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring rules: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetRecurring(ctx context.Context, userID, id string) (core.RecurringRule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, category_id, amount_cents, note, day_of_month, active
		FROM recurring_rules
		WHERE user_id = ? AND id = ?`, userID, id)
	rule, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, ports.ErrNotFound
	}
	return rule, err
}

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, userID string, rule core.RecurringRule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules (id, user_id, category_id, amount_cents, note, day_of_month, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, userID, rule.CategoryID, rule.Amount.Cents, rule.Note, rule.DayOfMonth, boolToInt(rule.Active))
	if err != nil {
		return fmt.Errorf("create recurring rule: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule saved to SQLite",
		"id", rule.ID,
		"user_id", userID,
		"category_id", rule.CategoryID,
		"amount_cents", rule.Amount.Cents,
		"day_of_month", rule.DayOfMonth)
	return nil
}

func (r *SQLiteRepository) SetRecurringActive(ctx context.Context, userID, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules SET active = ? WHERE user_id = ? AND id = ?`,
		boolToInt(active), userID, id)
	if err != nil {
		return fmt.Errorf("set recurring rule active: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) DeleteRecurring(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	return expectOneRow(res)
}

// Income

func (r *SQLiteRepository) GetIncome(ctx context.Context, userID string) (*core.Money, error) {
	var cents sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT monthly_income_cents FROM profiles WHERE user_id = ?`, userID).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get income: %w", err)
	}
	if !cents.Valid {
		return nil, nil
	}
	return &core.Money{Cents: cents.Int64}, nil
}

func (r *SQLiteRepository) SetIncome(ctx context.Context, userID string, income *core.Money) error {
	var cents sql.NullInt64
	if income != nil {
		cents = sql.NullInt64{Int64: income.Cents, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, monthly_income_cents)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			monthly_income_cents = excluded.monthly_income_cents,
			updated_at = CURRENT_TIMESTAMP`,
		userID, cents)
	if err != nil {
		return fmt.Errorf("set income: %w", err)
	}
	return nil
}

// Sync queue

// PendingSync returns up to limit expenses not yet synced, oldest first.
// Expenses whose last attempt failed are retried.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]ports.PendingExpense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, `+expenseColumns+`
		FROM expenses
		WHERE sync_status IN ('pending', 'error')
		ORDER BY rowid
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync expenses: %w", err)
	}
	defer rows.Close()

	var out []ports.PendingExpense
	for rows.Next() {
		var p ports.PendingExpense
		e := &p.Expense
		if err := rows.Scan(&p.UserID, &e.ID, &e.CategoryID, &e.Amount.Cents, &e.Note, &e.Date); err != nil {
			return nil, fmt.Errorf("scan pending expense: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending expenses: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) IsSynced(ctx context.Context, userID, id string) (bool, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT sync_status FROM expenses WHERE user_id = ? AND id = ?`, userID, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ports.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get expense sync status: %w", err)
	}
	return status == "synced", nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET sync_status = 'synced', synced_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense marked as synced", "id", id, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET sync_status = 'error' WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	slog.WarnContext(ctx, "Expense marked with sync error", "id", id, "user_id", userID)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var e core.Expense
	if err := s.Scan(&e.ID, &e.CategoryID, &e.Amount.Cents, &e.Note, &e.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	return e, nil
}

func scanRecurring(s scanner) (core.RecurringRule, error) {
	var rule core.RecurringRule
	if err := s.Scan(&rule.ID, &rule.CategoryID, &rule.Amount.Cents, &rule.Note, &rule.DayOfMonth, &rule.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.RecurringRule{}, err
		}
		return core.RecurringRule{}, fmt.Errorf("scan recurring rule: %w", err)
	}
	return rule, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
