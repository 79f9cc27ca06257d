// Package report writes the reconciliation workbook and archives it.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/mmdatafocus/taxsales_validator/reconcile"
	"github.com/mmdatafocus/taxsales_validator/utils"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary            = "Summary"
	SheetPerfectMatches     = "Perfect Matches"
	SheetOnlySource         = "Only in SIAT"
	SheetOnlyReference      = "Only in Inventory"
	SheetAmountMismatches   = "Amount Mismatches"
	SheetCustomerMismatches = "Customer Mismatches"
	SheetOtherMismatches    = "Other Mismatches"
)

// FileName returns validation_report_<YYYYMMDD_HHMMSS>.xlsx for t.
func FileName(t time.Time) string {
	return fmt.Sprintf("validation_report_%s.xlsx", t.Format("20060102_150405"))
}

// WriteWorkbook saves the workbook under dir and returns its path.
func WriteWorkbook(dir string, result *reconcile.ComparisonResult, stats reconcile.ComparisonStats, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}
	f, err := Build(result, stats)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(now))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save report %s: %w", path, err)
	}
	return path, nil
}

// Build lays out the summary sheet plus one sheet per non-empty category.
func Build(result *reconcile.ComparisonResult, stats reconcile.ComparisonStats) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	writeSummary(f, stats)

	sheets := []struct {
		name string
		rows int
		fill func(sheet string)
	}{
		{SheetPerfectMatches, len(result.Perfect()), func(s string) { writePairs(f, s, result.Perfect()) }},
		{SheetOnlySource, len(result.OnlySource), func(s string) { writeInvoices(f, s, result.OnlySource) }},
		{SheetOnlyReference, len(result.OnlyReference), func(s string) { writeInventory(f, s, result.OnlyReference) }},
		{SheetAmountMismatches, len(result.AmountMismatches()), func(s string) { writePairs(f, s, result.AmountMismatches()) }},
		{SheetCustomerMismatches, len(result.CustomerMismatches()), func(s string) { writePairs(f, s, result.CustomerMismatches()) }},
		{SheetOtherMismatches, len(result.OtherMismatches()), func(s string) { writePairs(f, s, result.OtherMismatches()) }},
	}
	for _, s := range sheets {
		if s.rows == 0 {
			continue
		}
		if _, err := f.NewSheet(s.name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to add sheet %s: %w", s.name, err)
		}
		s.fill(s.name)
	}
	return f, nil
}

func writeSummary(f *excelize.File, s reconcile.ComparisonStats) {
	rows := [][2]interface{}{
		{"Metric", "Value"},
		{"Total tax report rows read", s.TotalSourceRead},
		{"Excluded by modality", s.ExcludedByModality},
		{"Total tax report (compared)", s.TotalSource},
		{"Total inventory", s.TotalReference},
		{"Matched", s.Matched},
		{"Perfect matches", s.PerfectMatches},
		{"Match rate (%)", fmt.Sprintf("%.2f", s.MatchRate)},
		{"", ""},
		{"Tax report total amount (Bs.)", s.TotalSourceAmount.StringFixed(2)},
		{"Inventory total amount (Bs.)", s.TotalReferenceAmount.StringFixed(2)},
		{"Amount difference (Bs.)", s.AmountDifference.StringFixed(2)},
		{"Amount difference (%)", fmt.Sprintf("%.4f", s.AmountDifferencePct)},
		{"Amount mismatch magnitude (Bs.)", s.MismatchAmount.StringFixed(2)},
		{"Amount mismatch magnitude (%)", fmt.Sprintf("%.4f", s.MismatchAmountPct)},
		{"", ""},
		{"Only in tax report", s.OnlySource},
		{"Only in inventory", s.OnlyReference},
		{"Amount mismatches", s.AmountMismatches},
		{"Customer mismatches", s.CustomerMismatches},
		{"Other mismatches", s.OtherMismatches},
		{"Total issues", s.OnlySource + s.OnlyReference + s.AmountMismatches + s.CustomerMismatches + s.OtherMismatches},
	}
	for i, r := range rows {
		f.SetCellValue(SheetSummary, "A"+fmt.Sprint(i+1), r[0])
		f.SetCellValue(SheetSummary, "B"+fmt.Sprint(i+1), r[1])
	}
	f.SetColWidth(SheetSummary, "A", "A", 36)
	f.SetColWidth(SheetSummary, "B", "B", 20)
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheet, cell, v)
	}
}

var pairHeaders = []string{
	"Authorization code", "Category",
	"SIAT row", "SIAT invoice date", "SIAT invoice number", "SIAT NIT", "SIAT customer", "SIAT total", "SIAT status",
	"Inventory invoice date", "Inventory invoice number", "Inventory NIT", "Inventory customer", "Inventory total", "Inventory status",
	"Amount difference", "Differences",
}

func writePairs(f *excelize.File, sheet string, pairs []reconcile.Pair) {
	writeHeader(f, sheet, pairHeaders)
	for i, p := range pairs {
		diff := ""
		if p.AmountComparable {
			diff = p.AmountDifference.StringFixed(2)
		}
		writeRow(f, sheet, i+2, []interface{}{
			p.Key, string(p.Category),
			p.Source.Row, p.Source.InvoiceDate, p.Source.EffectiveInvoiceNumber(), p.Source.CustomerNit, p.Source.CustomerName, p.Source.TotalSaleAmount, p.Source.Status,
			formatDate(p.Reference.InvoiceDate), p.Reference.InvoiceNumber, p.Reference.CustomerNit, p.Reference.CustomerName, p.Reference.Total.StringFixed(2), p.Reference.Status,
			diff, describeDiffs(p.Diffs),
		})
	}
}

var invoiceHeaders = []string{
	"Row", "Authorization code", "Invoice date", "Invoice number", "NIT", "Customer", "Total", "Status",
	"Branch office", "Modality", "Emission type", "Invoice type", "Sector", "Point of sale",
}

func writeInvoices(f *excelize.File, sheet string, rows []models.InvoiceRecord) {
	writeHeader(f, sheet, invoiceHeaders)
	for i, r := range rows {
		d := utils.DereferencePtr(r.Decoded, models.DecodedFields{})
		writeRow(f, sheet, i+2, []interface{}{
			r.Row, r.AuthorizationCode, r.InvoiceDate, r.EffectiveInvoiceNumber(), r.CustomerNit, r.CustomerName, r.TotalSaleAmount, r.Status,
			d.BranchOffice, d.Modality, d.EmissionType, d.InvoiceType, d.Sector, d.PointOfSale,
		})
	}
}

var inventoryHeaders = []string{
	"cuf", "fechaFac", "numeroFactura", "ClienteNit", "ClienteFactura", "total", "estado", "codigoSucursal", "codigoPuntoVenta",
}

func writeInventory(f *excelize.File, sheet string, rows []models.InventoryRecord) {
	writeHeader(f, sheet, inventoryHeaders)
	for i, r := range rows {
		writeRow(f, sheet, i+2, []interface{}{
			r.AuthorizationCode, formatDate(r.InvoiceDate), r.InvoiceNumber, r.CustomerNit, r.CustomerName, r.Total.StringFixed(2), r.Status, r.BranchCode, r.PointOfSale,
		})
	}
}

func describeDiffs(diffs []reconcile.FieldDiff) string {
	out := ""
	for i, d := range diffs {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s: %q vs %q", d.Field, d.Source, d.Reference)
	}
	return out
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
