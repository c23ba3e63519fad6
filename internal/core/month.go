package core

import (
	"fmt"
	"strings"
	"time"
)

// Month identifies a calendar month, rendered as YYYY-MM.
type Month struct {
	Year  int
	Month int // 1-12
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	return Month{Year: t.Year(), Month: int(t.Month())}, nil
}

// CurrentMonth returns the month containing now.
func CurrentMonth(now time.Time) Month {
	return Month{Year: now.Year(), Month: int(now.Month())}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// DateOn returns the YYYY-MM-DD date for day in this month.
func (m Month) DateOn(day int) string {
	return fmt.Sprintf("%s-%02d", m.String(), day)
}

// Contains reports whether a YYYY-MM-DD date string falls in this month.
func (m Month) Contains(date string) bool {
	return date != "" && strings.HasPrefix(date, m.String())
}

// MonthOfDate returns the month of a YYYY-MM-DD date string.
func MonthOfDate(date string) (Month, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return Month{}, ErrInvalidDate
	}
	return CurrentMonth(t), nil
}
