// Package salesmap turns validated tax report rows into sales_registers rows.
package salesmap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/mmdatafocus/taxsales_validator/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Column widths of sales_registers.
const (
	maxAuthorizationCode = 64
	maxCustomerNit       = 15
	maxComplement        = 5
	maxCustomerName      = 240
	maxInvoiceNumber     = 15
	maxShortCode         = 10
	maxStatus            = 50
)

// Note is a non-fatal transformation remark (truncation, defaulted amount).
type Note struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Failure excludes one row from the sync set.
type Failure struct {
	Row    int    `json:"row"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

func (f Failure) String() string {
	return fmt.Sprintf("row %d (%s): %s", f.Row, f.Key, f.Reason)
}

// RowResult is either a mapped record or the reason the row was rejected.
type RowResult struct {
	Row     int
	Record  *models.SalesRegister
	Failure *Failure
	Notes   []Note
}

func (r RowResult) OK() bool {
	return r.Record != nil && r.Failure == nil
}

// Report summarizes a MapAll pass.
type Report struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failures  []Failure `json:"failures"`
	Notes     []Note    `json:"notes"`
}

func (r Report) Failed() int {
	return len(r.Failures)
}

type Mapper struct {
	validate *validator.Validate
	logger   *logrus.Logger
}

func NewMapper(logger *logrus.Logger) *Mapper {
	if logger == nil {
		logger = logrus.New()
	}
	return &Mapper{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// MapAll maps every row; failing rows are reported and skipped, never fatal.
// Valid records keep the input order.
func (m *Mapper) MapAll(rows []models.InvoiceRecord) ([]models.SalesRegister, Report) {
	report := Report{Total: len(rows)}
	records := make([]models.SalesRegister, 0, len(rows))

	for i, row := range rows {
		if row.Row == 0 {
			row.Row = i + 1
		}
		res := m.Map(row)
		report.Notes = append(report.Notes, res.Notes...)
		if !res.OK() {
			report.Failures = append(report.Failures, *res.Failure)
			m.logger.WithFields(logrus.Fields{
				"module": "salesmap",
				"row":    res.Failure.Row,
				"key":    res.Failure.Key,
			}).Warn(res.Failure.Reason)
			continue
		}
		records = append(records, *res.Record)
		report.Succeeded++
	}

	m.logger.WithFields(logrus.Fields{
		"module":    "salesmap",
		"total":     report.Total,
		"succeeded": report.Succeeded,
		"failed":    report.Failed(),
		"notes":     len(report.Notes),
	}).Info("sales register mapping completed")
	return records, report
}

// Map transforms one row and runs the validation pass on the result.
func (m *Mapper) Map(row models.InvoiceRecord) RowResult {
	res := RowResult{Row: row.Row}
	key := strings.TrimSpace(row.AuthorizationCode)
	fail := func(reason string) RowResult {
		res.Record = nil
		res.Failure = &Failure{Row: row.Row, Key: key, Reason: reason}
		return res
	}
	note := func(field, msg string) {
		res.Notes = append(res.Notes, Note{Row: row.Row, Field: field, Message: msg})
	}
	text := func(field, value string, max int) string {
		v := strings.TrimSpace(value)
		if cut, truncated := utils.Truncate(v, max); truncated {
			note(field, fmt.Sprintf("truncated from %d to %d characters", len([]rune(v)), max))
			return cut
		}
		return v
	}
	optionalText := func(field, value string, max int) *string {
		v := text(field, value, max)
		if v == "" {
			return nil
		}
		return &v
	}
	amount := func(field, value string) decimal.Decimal {
		if strings.TrimSpace(value) == "" {
			return decimal.Zero.Round(2)
		}
		d, err := utils.ParseAmount(value)
		if err != nil {
			note(field, fmt.Sprintf("unparseable amount %q defaulted to 0.00", value))
			return decimal.Zero.Round(2)
		}
		return utils.RoundMoney(d)
	}

	if n := len([]rune(key)); n > maxAuthorizationCode {
		return fail(fmt.Sprintf("authorization_code: %d characters, limit %d", n, maxAuthorizationCode))
	}
	invoiceDate, err := utils.ParseDate(row.InvoiceDate)
	if err != nil {
		return fail(fmt.Sprintf("invoice_date: %v", err))
	}
	total, err := utils.ParseAmount(row.TotalSaleAmount)
	if err != nil {
		return fail(fmt.Sprintf("total_sale_amount: %v", err))
	}

	rec := &models.SalesRegister{
		InvoiceDate:       invoiceDate,
		AuthorizationCode: key,
		CustomerNit:       text("customer_nit", utils.DigitsOnly(row.CustomerNit), maxCustomerNit),
		Complement:        optionalText("complement", row.Complement, maxComplement),
		CustomerName:      text("customer_name", row.CustomerName, maxCustomerName),

		TotalSaleAmount:                   utils.RoundMoney(total),
		IceAmount:                         amount("ice_amount", row.IceAmount),
		IehdAmount:                        amount("iehd_amount", row.IehdAmount),
		IpjAmount:                         amount("ipj_amount", row.IpjAmount),
		Fees:                              amount("fees", row.Fees),
		OtherNonVatItems:                  amount("other_non_vat_items", row.OtherNonVatItems),
		ExportsExemptOperations:           amount("exports_exempt_operations", row.ExportsExempt),
		ZeroRateTaxedSales:                amount("zero_rate_taxed_sales", row.ZeroRateTaxedSales),
		Subtotal:                          amount("subtotal", row.Subtotal),
		DiscountsBonusesRebatesSubjectVat: amount("discounts_bonuses_rebates_subject_to_vat", row.DiscountsSubjectVat),
		GiftCardAmount:                    amount("gift_card_amount", row.GiftCardAmount),
		DebitTaxBaseAmount:                amount("debit_tax_base_amount", row.DebitTaxBaseAmount),
		DebitTax:                          amount("debit_tax", row.DebitTax),

		Status:              text("status", row.Status, maxStatus),
		ControlCode:         text("control_code", controlCode(row.ControlCode), maxStatus),
		SaleType:            text("sale_type", row.SaleType, maxStatus),
		ConsolidationStatus: text("consolidation_status", row.ConsolidationStatus, maxStatus),

		InvoiceNumber: text("invoice_number", utils.TrimLeadingZeros(row.EffectiveInvoiceNumber()), maxInvoiceNumber),

		Author: models.SalesRegisterAuthor,
	}
	rec.RightToTaxCredit = rec.DebitTax.GreaterThan(decimal.Zero)

	if d := row.Decoded; d != nil {
		rec.BranchOffice = optionalText("branch_office", utils.TrimLeadingZeros(d.BranchOffice), maxShortCode)
		rec.Modality = optionalText("modality", d.Modality, maxShortCode)
		rec.EmissionType = optionalText("emission_type", d.EmissionType, maxShortCode)
		rec.InvoiceType = optionalText("invoice_type", d.InvoiceType, maxShortCode)
		rec.Sector = optionalText("sector", utils.TrimLeadingZeros(d.Sector), maxShortCode)
	}

	if err := m.validate.Struct(rec); err != nil {
		return fail(describeValidation(err))
	}

	res.Record = rec
	return res
}

func controlCode(v string) string {
	if strings.TrimSpace(v) == "" {
		return "0"
	}
	return v
}

func describeValidation(err error) string {
	fields := utils.ProcessValidationErrors(err)
	if len(fields) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(fields))
	for _, name := range sortedKeys(fields) {
		parts = append(parts, fmt.Sprintf("%s failed %q", name, fields[name]))
	}
	return "validation: " + strings.Join(parts, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
