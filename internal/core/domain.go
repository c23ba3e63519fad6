package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// MinRecurringDay and MaxRecurringDay bound a recurring rule's day of
	// month. Day 28 exists in every month.
	MinRecurringDay = 1
	MaxRecurringDay = 28

	maxNameLength = 100
	maxNoteLength = 200

	dateLayout = "2006-01-02"
)

type (
	Category struct {
		ID            string
		Name          string
		MonthlyBudget Money
		Archived      bool
	}

	Expense struct {
		ID         string
		CategoryID string // soft reference, the category may no longer exist
		Amount     Money
		Note       string
		Date       string // YYYY-MM-DD
		// Recurring marks a synthetic expense materialised from a rule.
		Recurring bool
	}

	RecurringRule struct {
		ID         string
		CategoryID string
		Amount     Money
		Note       string
		DayOfMonth int
		Active     bool
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidBudget = errors.New("invalid budget")
	ErrInvalidDay    = errors.New("invalid day of month")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrEmptyName     = errors.New("empty category name")
	ErrNameTooLong   = errors.New("category name too long (max 100 characters)")
	ErrEmptyCategory = errors.New("empty category reference")
	ErrNoteTooLong   = errors.New("note too long (max 200 characters)")
)

// NormalizeCategoryName trims and upper-cases a category name.
func NormalizeCategoryName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	if c.MonthlyBudget.Cents < 0 {
		return ErrInvalidBudget
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if e.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if err := ValidateDate(e.Date); err != nil {
		return err
	}
	if len(e.Note) > maxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if r.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if r.DayOfMonth < MinRecurringDay || r.DayOfMonth > MaxRecurringDay {
		return ErrInvalidDay
	}
	if len(r.Note) > maxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

// ValidateDate checks a YYYY-MM-DD calendar date.
func ValidateDate(s string) error {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ClampRecurringDay maps any day of month onto the range a rule accepts.
func ClampRecurringDay(day int) int {
	if day < MinRecurringDay {
		return MinRecurringDay
	}
	if day > MaxRecurringDay {
		return MaxRecurringDay
	}
	return day
}
