package inventory

import (
	"fmt"
	"time"
)

// Period is one calendar month of invoices.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod accepts "2025-09" and "09/2025".
func ParsePeriod(s string) (Period, error) {
	for _, layout := range []string{"2006-01", "01/2006", "2006/01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Period{Year: t.Year(), Month: t.Month()}, nil
		}
	}
	return Period{}, fmt.Errorf("invalid period %q, expected YYYY-MM", s)
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the month.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
