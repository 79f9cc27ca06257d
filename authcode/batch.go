package authcode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/sirupsen/logrus"
)

const (
	FailureInvalidLength = "invalid_code_length"
	FailureInvalidHex    = "invalid_hex_encoding"
	FailureTooShort      = "decoded_string_too_short"
)

// FillStats summarizes one decoding pass over a batch.
type FillStats struct {
	Total    int            `json:"total"`
	Decoded  int            `json:"decoded"`
	Filled   map[string]int `json:"filled"`
	Failures map[string]int `json:"failures"`
}

// FillRate is the share of rows (0..1) that ended up with a non-empty value for field.
func (s FillStats) FillRate(field string) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Filled[field]) / float64(s.Total)
}

func (s FillStats) Failed() int {
	return s.Total - s.Decoded
}

func (s FillStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "decoded %d/%d authorization codes", s.Decoded, s.Total)
	for _, name := range FieldNames() {
		fmt.Fprintf(&b, "\n  %-16s %6.2f%%", name, s.FillRate(name)*100)
	}
	return b.String()
}

// DecodeAll decodes every row in place. A row that fails keeps Decoded == nil
// and the batch continues.
func DecodeAll(rows []models.InvoiceRecord, logger *logrus.Logger) FillStats {
	stats := FillStats{
		Total:    len(rows),
		Filled:   make(map[string]int, len(layout)),
		Failures: map[string]int{},
	}

	for i := range rows {
		decoded, err := Decode(rows[i].AuthorizationCode)
		if err != nil {
			rows[i].Decoded = nil
			stats.Failures[failureKind(err)]++
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"module": "authcode",
					"row":    rows[i].Row,
				}).Debug(err.Error())
			}
			continue
		}
		rows[i].Decoded = &decoded
		stats.Decoded++
		for _, f := range layout {
			if fieldValue(&decoded, f.name) != "" {
				stats.Filled[f.name]++
			}
		}
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"module":   "authcode",
			"total":    stats.Total,
			"decoded":  stats.Decoded,
			"failures": stats.Failures,
		}).Info("authorization codes decoded")
	}
	return stats
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCodeLength):
		return FailureInvalidLength
	case errors.Is(err, ErrInvalidHexEncoding):
		return FailureInvalidHex
	case errors.Is(err, ErrDecodedStringTooShort):
		return FailureTooShort
	default:
		return "unknown"
	}
}
