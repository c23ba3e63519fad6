package core

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeCategoryName(t *testing.T) {
	cases := map[string]string{
		"  groceries ": "GROCERIES",
		"Rent":         "RENT",
		"":             "",
	}
	for in, want := range cases {
		if got := NormalizeCategoryName(in); got != want {
			t.Fatalf("%q expected %q, got %q", in, want, got)
		}
	}
}

func TestCategoryValidate(t *testing.T) {
	cases := []struct {
		c   Category
		err error
	}{
		{Category{Name: "FOOD", MonthlyBudget: Money{Cents: 0}}, nil},
		{Category{Name: "FOOD", MonthlyBudget: Money{Cents: 50000}}, nil},
		{Category{Name: "   "}, ErrEmptyName},
		{Category{Name: strings.Repeat("X", 101)}, ErrNameTooLong},
		{Category{Name: "FOOD", MonthlyBudget: Money{Cents: -1}}, ErrInvalidBudget},
	}
	for i, tc := range cases {
		err := tc.c.Validate()
		if !errors.Is(err, tc.err) {
			t.Fatalf("case %d expected %v, got %v", i, tc.err, err)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{CategoryID: "c1", Amount: Money{Cents: 100}, Date: "2024-03-05", Note: "ok"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		e   Expense
		err error
	}{
		{Expense{CategoryID: "", Amount: Money{Cents: 1}, Date: "2024-03-05"}, ErrEmptyCategory},
		{Expense{CategoryID: "c1", Amount: Money{Cents: 0}, Date: "2024-03-05"}, ErrInvalidAmount},
		{Expense{CategoryID: "c1", Amount: Money{Cents: -5}, Date: "2024-03-05"}, ErrInvalidAmount},
		{Expense{CategoryID: "c1", Amount: Money{Cents: 1}, Date: "2024-02-30"}, ErrInvalidDate},
		{Expense{CategoryID: "c1", Amount: Money{Cents: 1}, Date: ""}, ErrInvalidDate},
		{Expense{CategoryID: "c1", Amount: Money{Cents: 1}, Date: "2024-03-05", Note: strings.Repeat("n", 201)}, ErrNoteTooLong},
	}
	for i, tc := range bads {
		if err := tc.e.Validate(); !errors.Is(err, tc.err) {
			t.Fatalf("case %d expected %v, got %v", i, tc.err, err)
		}
	}
}

func TestRecurringRuleValidate(t *testing.T) {
	for _, day := range []int{1, 15, 28} {
		r := RecurringRule{CategoryID: "c1", Amount: Money{Cents: 999}, DayOfMonth: day}
		if err := r.Validate(); err != nil {
			t.Fatalf("day %d expected ok, got %v", day, err)
		}
	}
	for _, day := range []int{0, 29, 31, -1} {
		r := RecurringRule{CategoryID: "c1", Amount: Money{Cents: 999}, DayOfMonth: day}
		if err := r.Validate(); !errors.Is(err, ErrInvalidDay) {
			t.Fatalf("day %d expected ErrInvalidDay, got %v", day, err)
		}
	}
	r := RecurringRule{CategoryID: "c1", Amount: Money{}, DayOfMonth: 3}
	if err := r.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestClampRecurringDay(t *testing.T) {
	cases := map[int]int{-3: 1, 0: 1, 1: 1, 17: 17, 28: 28, 29: 28, 31: 28}
	for in, want := range cases {
		if got := ClampRecurringDay(in); got != want {
			t.Fatalf("%d expected %d, got %d", in, want, got)
		}
	}
}
