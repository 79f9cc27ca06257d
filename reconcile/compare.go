package reconcile

import (
	"strconv"
	"strings"

	"github.com/mmdatafocus/taxsales_validator/utils"
	"github.com/shopspring/decimal"
)

// Config is passed by value; the engine never changes it.
type Config struct {
	// Modality is the only billing channel comparable against the inventory system.
	Modality string
	// AmountTolerance is the largest total difference still counted as equal.
	AmountTolerance decimal.Decimal
	// CompareCustomerName adds the customer name to the customer check.
	CompareCustomerName bool
}

const DefaultModality = "2"

func DefaultConfig() Config {
	return Config{
		Modality:            DefaultModality,
		AmountTolerance:     decimal.NewFromFloat(0.01),
		CompareCustomerName: true,
	}
}

// CompareFields classifies every pair into exactly one category using the
// priority amount > customer > other > perfect. All differences found stay in
// Pair.Diffs. The input slice is not modified.
func CompareFields(pairs []Pair, cfg Config) []Pair {
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		out[i] = comparePair(p, cfg)
	}
	return out
}

func comparePair(p Pair, cfg Config) Pair {
	p.Diffs = nil
	p.AmountDifference = decimal.Zero
	p.AmountComparable = false

	var amountBad, customerBad, otherBad bool

	if src, err := utils.ParseAmount(p.Source.TotalSaleAmount); err == nil {
		p.AmountComparable = true
		p.AmountDifference = src.Sub(p.Reference.Total)
		if p.AmountDifference.Abs().GreaterThan(cfg.AmountTolerance) {
			amountBad = true
			p.Diffs = append(p.Diffs, FieldDiff{FieldTotalAmount, src.StringFixed(2), p.Reference.Total.StringFixed(2)})
		}
	}

	if s, r := NormalizeNit(p.Source.CustomerNit), NormalizeNit(p.Reference.CustomerNit); s != r {
		customerBad = true
		p.Diffs = append(p.Diffs, FieldDiff{FieldCustomerNit, p.Source.CustomerNit, p.Reference.CustomerNit})
	}
	if cfg.CompareCustomerName {
		s, r := utils.CollapseSpaces(p.Source.CustomerName), utils.CollapseSpaces(p.Reference.CustomerName)
		if s != "" && r != "" && s != r {
			customerBad = true
			p.Diffs = append(p.Diffs, FieldDiff{FieldCustomerName, p.Source.CustomerName, p.Reference.CustomerName})
		}
	}

	if s, r := strings.TrimSpace(p.Source.AuthorizationCode), strings.TrimSpace(p.Reference.AuthorizationCode); s != r {
		otherBad = true
		p.Diffs = append(p.Diffs, FieldDiff{FieldAuthorizationCode, s, r})
	}
	if s, sok := utils.ParseLooseInt(p.Source.EffectiveInvoiceNumber()); sok {
		if r, rok := utils.ParseLooseInt(p.Reference.InvoiceNumber); rok && s != r {
			otherBad = true
			p.Diffs = append(p.Diffs, FieldDiff{FieldInvoiceNumber, strconv.FormatInt(s, 10), strconv.FormatInt(r, 10)})
		}
	}
	if s, sok := utils.ParseLooseInt(p.Source.BranchOffice()); sok {
		if r, rok := utils.ParseLooseInt(p.Reference.BranchCode); rok && s != r {
			otherBad = true
			p.Diffs = append(p.Diffs, FieldDiff{FieldBranch, strconv.FormatInt(s, 10), strconv.FormatInt(r, 10)})
		}
	}
	if s, err := utils.ParseDate(p.Source.InvoiceDate); err == nil && p.Reference.InvoiceDate != nil {
		if r := utils.DateOnly(*p.Reference.InvoiceDate); !s.Equal(r) {
			otherBad = true
			p.Diffs = append(p.Diffs, FieldDiff{FieldInvoiceDate, s.Format("2006-01-02"), r.Format("2006-01-02")})
		}
	}
	if s, r := normalizeStatus(p.Source.Status), normalizeStatus(p.Reference.Status); s != "" && r != "" && s != r {
		otherBad = true
		p.Diffs = append(p.Diffs, FieldDiff{FieldStatus, p.Source.Status, p.Reference.Status})
	}

	switch {
	case amountBad:
		p.Category = CategoryAmount
	case customerBad:
		p.Category = CategoryCustomer
	case otherBad:
		p.Category = CategoryOther
	default:
		p.Category = CategoryPerfect
	}
	return p
}

// NormalizeNit removes the formatting people add to tax ids (spaces, dashes, dots).
func NormalizeNit(nit string) string {
	nit = strings.ToUpper(strings.TrimSpace(nit))
	return strings.NewReplacer(" ", "", "-", "", ".", "").Replace(nit)
}

func normalizeStatus(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "V", "VALID", "VALIDO", "VÁLIDA", "VALIDA":
		return "VALIDA"
	case "A", "ANULADO", "ANULADA", "CANCELED", "CANCELLED":
		return "ANULADA"
	}
	return s
}
