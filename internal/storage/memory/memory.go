// Package memory is an in-process ports.Store for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"blockbudget/internal/core"
	"blockbudget/internal/ports"
)

type expenseEntry struct {
	userID  string
	expense core.Expense
	synced  bool
}

type Store struct {
	mu         sync.Mutex
	categories map[string][]core.Category
	recurring  map[string][]core.RecurringRule
	income     map[string]core.Money
	// expenses keeps every user's rows in one slice so PendingSync can
	// report them oldest first.
	expenses []expenseEntry
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		categories: make(map[string][]core.Category),
		recurring:  make(map[string][]core.RecurringRule),
		income:     make(map[string]core.Money),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories[userID]), nil
}

func (s *Store) GetCategory(_ context.Context, userID, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.categoryIndex(userID, id)
	if i < 0 {
		return core.Category{}, ports.ErrNotFound
	}
	return s.categories[userID][i], nil
}

func (s *Store) CreateCategory(_ context.Context, userID string, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[userID] = append(s.categories[userID], c)
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, userID string, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.categoryIndex(userID, c.ID)
	if i < 0 {
		return ports.ErrNotFound
	}
	s.categories[userID][i] = c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.categoryIndex(userID, id)
	if i < 0 {
		return ports.ErrNotFound
	}
	s.categories[userID] = slices.Delete(s.categories[userID], i, i+1)
	return nil
}

func (s *Store) categoryIndex(userID, id string) int {
	return slices.IndexFunc(s.categories[userID], func(c core.Category) bool { return c.ID == id })
}

func (s *Store) ListExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.userID == userID {
			out = append(out, e.expense)
		}
	}
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.expenseIndex(userID, id)
	if i < 0 {
		return core.Expense{}, ports.ErrNotFound
	}
	return s.expenses[i].expense, nil
}

func (s *Store) CreateExpense(_ context.Context, userID string, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, expenseEntry{userID: userID, expense: e})
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.expenseIndex(userID, id)
	if i < 0 {
		return ports.ErrNotFound
	}
	s.expenses = slices.Delete(s.expenses, i, i+1)
	return nil
}

func (s *Store) expenseIndex(userID, id string) int {
	return slices.IndexFunc(s.expenses, func(e expenseEntry) bool {
		return e.userID == userID && e.expense.ID == id
	})
}

func (s *Store) ListRecurring(_ context.Context, userID string) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.recurring[userID]), nil
}

func (s *Store) GetRecurring(_ context.Context, userID, id string) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.recurringIndex(userID, id)
	if i < 0 {
		return core.RecurringRule{}, ports.ErrNotFound
	}
	return s.recurring[userID][i], nil
}

func (s *Store) CreateRecurring(_ context.Context, userID string, r core.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recurring[userID] = append(s.recurring[userID], r)
	return nil
}

func (s *Store) SetRecurringActive(_ context.Context, userID, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.recurringIndex(userID, id)
	if i < 0 {
		return ports.ErrNotFound
	}
	s.recurring[userID][i].Active = active
	return nil
}

func (s *Store) DeleteRecurring(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.recurringIndex(userID, id)
	if i < 0 {
		return ports.ErrNotFound
	}
	s.recurring[userID] = slices.Delete(s.recurring[userID], i, i+1)
	return nil
}

func (s *Store) recurringIndex(userID, id string) int {
	return slices.IndexFunc(s.recurring[userID], func(r core.RecurringRule) bool { return r.ID == id })
}

func (s *Store) GetIncome(_ context.Context, userID string) (*core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.income[userID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) SetIncome(_ context.Context, userID string, income *core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if income == nil {
		delete(s.income, userID)
		return nil
	}
	s.income[userID] = *income
	return nil
}

func (s *Store) PendingSync(_ context.Context, limit int) ([]ports.PendingExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.PendingExpense
	for _, e := range s.expenses {
		if len(out) >= limit {
			break
		}
		if !e.synced {
			out = append(out, ports.PendingExpense{UserID: e.userID, Expense: e.expense})
		}
	}
	return out, nil
}

func (s *Store) IsSynced(_ context.Context, userID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.expenseIndex(userID, id)
	if i < 0 {
		return false, ports.ErrNotFound
	}
	return s.expenses[i].synced, nil
}

func (s *Store) MarkSynced(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.expenseIndex(userID, id)
	if i < 0 {
		return ports.ErrNotFound
	}
	s.expenses[i].synced = true
	return nil
}

// MarkSyncError leaves the expense pending so the next batch retries it.
func (s *Store) MarkSyncError(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expenseIndex(userID, id) < 0 {
		return ports.ErrNotFound
	}
	return nil
}
