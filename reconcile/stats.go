package reconcile

import (
	"fmt"
	"strings"

	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/mmdatafocus/taxsales_validator/utils"
	"github.com/shopspring/decimal"
)

// ComparisonStats is derived from one ComparisonResult and never stored.
type ComparisonStats struct {
	TotalSourceRead    int `json:"total_source_read"`
	ExcludedByModality int `json:"excluded_by_modality"`
	TotalSource        int `json:"total_source"`
	TotalReference     int `json:"total_reference"`

	Matched            int `json:"matched"`
	PerfectMatches     int `json:"perfect_matches"`
	AmountMismatches   int `json:"amount_mismatches"`
	CustomerMismatches int `json:"customer_mismatches"`
	OtherMismatches    int `json:"other_mismatches"`
	OnlySource         int `json:"only_source"`
	OnlyReference      int `json:"only_reference"`
	DuplicateSource    int `json:"duplicate_source"`
	DuplicateReference int `json:"duplicate_reference"`
	// AmountUncomparable counts matched pairs whose source total did not parse.
	// Their category ignores the amount.
	AmountUncomparable int `json:"amount_uncomparable"`

	// MatchRate is matched / TotalSource in percent.
	MatchRate        float64 `json:"match_rate"`
	PerfectMatchRate float64 `json:"perfect_match_rate"`

	TotalSourceAmount    decimal.Decimal `json:"total_source_amount"`
	TotalReferenceAmount decimal.Decimal `json:"total_reference_amount"`
	// AmountDifference is |source total - reference total|; the percentage is against the reference total.
	AmountDifference    decimal.Decimal `json:"amount_difference"`
	AmountDifferencePct float64         `json:"amount_difference_pct"`
	// MismatchAmount adds up |source - reference| over the amount mismatches; the percentage is against the source total.
	MismatchAmount    decimal.Decimal `json:"mismatch_amount"`
	MismatchAmountPct float64         `json:"mismatch_amount_pct"`
}

// Discrepancies counts invoices present on one side only.
func (s ComparisonStats) Discrepancies() int {
	return s.OnlySource + s.OnlyReference
}

// IsCritical reports whether the totals of both datasets drift more than pct percent apart.
func (s ComparisonStats) IsCritical(pct float64) bool {
	return s.AmountDifferencePct > pct
}

// Aggregate computes the statistics of a classified result. totalRead is the
// number of source rows before the modality filter.
func Aggregate(result *ComparisonResult, totalRead int, filteredSource []models.InvoiceRecord, reference []models.InventoryRecord, match Match) ComparisonStats {
	stats := ComparisonStats{
		TotalSourceRead:    totalRead,
		ExcludedByModality: len(result.ExcludedByModality),
		TotalSource:        len(filteredSource),
		TotalReference:     len(reference),
		Matched:            len(result.Matched),
		OnlySource:         len(result.OnlySource),
		OnlyReference:      len(result.OnlyReference),
		DuplicateSource:    match.DuplicateSource,
		DuplicateReference: match.DuplicateReference,
		MismatchAmount:     decimal.Zero,
	}

	for _, p := range result.Matched {
		if !p.AmountComparable {
			stats.AmountUncomparable++
		}
		switch p.Category {
		case CategoryPerfect:
			stats.PerfectMatches++
		case CategoryAmount:
			stats.AmountMismatches++
			stats.MismatchAmount = stats.MismatchAmount.Add(p.AmountDifference.Abs())
		case CategoryCustomer:
			stats.CustomerMismatches++
		case CategoryOther:
			stats.OtherMismatches++
		}
	}

	if stats.TotalSource > 0 {
		stats.MatchRate = float64(stats.Matched) / float64(stats.TotalSource) * 100
		stats.PerfectMatchRate = float64(stats.PerfectMatches) / float64(stats.TotalSource) * 100
	}

	stats.TotalSourceAmount = decimal.Zero
	for _, r := range filteredSource {
		if amt, err := utils.ParseAmount(r.TotalSaleAmount); err == nil {
			stats.TotalSourceAmount = stats.TotalSourceAmount.Add(amt)
		}
	}
	stats.TotalReferenceAmount = decimal.Zero
	for _, r := range reference {
		stats.TotalReferenceAmount = stats.TotalReferenceAmount.Add(r.Total)
	}

	stats.AmountDifference = stats.TotalSourceAmount.Sub(stats.TotalReferenceAmount).Abs()
	stats.AmountDifferencePct = percentOf(stats.AmountDifference, stats.TotalReferenceAmount)
	stats.MismatchAmountPct = percentOf(stats.MismatchAmount, stats.TotalSourceAmount)
	return stats
}

// percentOf returns part/whole*100; a non-zero part of a zero whole is 100%.
func percentOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		if part.IsZero() {
			return 0
		}
		return 100
	}
	return part.Div(whole.Abs()).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// Summary renders the statistics for the console.
func (s ComparisonStats) Summary() string {
	var b strings.Builder
	line := strings.Repeat("=", 72)
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "RECONCILIATION SUMMARY")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Source rows read:            %d\n", s.TotalSourceRead)
	fmt.Fprintf(&b, "Excluded by modality:        %d\n", s.ExcludedByModality)
	fmt.Fprintf(&b, "Source rows compared:        %d\n", s.TotalSource)
	fmt.Fprintf(&b, "Reference rows:              %d\n", s.TotalReference)
	fmt.Fprintf(&b, "Matched:                     %d (%.1f%%)\n", s.Matched, s.MatchRate)
	fmt.Fprintf(&b, "  Perfect matches:           %d (%.1f%%)\n", s.PerfectMatches, s.PerfectMatchRate)
	fmt.Fprintf(&b, "  Amount mismatches:         %d\n", s.AmountMismatches)
	fmt.Fprintf(&b, "  Customer mismatches:       %d\n", s.CustomerMismatches)
	fmt.Fprintf(&b, "  Other mismatches:          %d\n", s.OtherMismatches)
	fmt.Fprintf(&b, "Only in tax report:          %d\n", s.OnlySource)
	fmt.Fprintf(&b, "Only in inventory:           %d\n", s.OnlyReference)
	if s.AmountUncomparable > 0 {
		fmt.Fprintf(&b, "Amount not comparable:       %d\n", s.AmountUncomparable)
	}
	if s.DuplicateSource > 0 || s.DuplicateReference > 0 {
		fmt.Fprintf(&b, "Duplicate keys ignored:      %d source / %d reference\n", s.DuplicateSource, s.DuplicateReference)
	}
	fmt.Fprintf(&b, "Tax report total:            %s\n", s.TotalSourceAmount.StringFixed(2))
	fmt.Fprintf(&b, "Inventory total:             %s\n", s.TotalReferenceAmount.StringFixed(2))
	fmt.Fprintf(&b, "Total difference:            %s (%.2f%%)\n", s.AmountDifference.StringFixed(2), s.AmountDifferencePct)
	fmt.Fprintf(&b, "Amount mismatch magnitude:   %s (%.2f%%)\n", s.MismatchAmount.StringFixed(2), s.MismatchAmountPct)
	fmt.Fprint(&b, line)
	return b.String()
}
