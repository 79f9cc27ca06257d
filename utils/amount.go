package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyMarks = []string{"BOB", "Bs.", "Bs", "bs"}

// ParseAmount accepts report-formatted money like "1,234.50", "Bs 20" or "-3.1".
// Empty input returns ErrInvalidAmount so callers can tell missing from zero.
func ParseAmount(value string) (decimal.Decimal, error) {
	s := strings.TrimSpace(value)
	for _, mark := range currencyMarks {
		s = strings.ReplaceAll(s, mark, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	for i, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || (r == '-' && i == 0) {
			continue
		}
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	return d, nil
}

// RoundMoney rounds to the 2 decimal places used by the ledger.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
