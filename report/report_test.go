package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/mmdatafocus/taxsales_validator/reconcile"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func sampleResult() (*reconcile.ComparisonResult, reconcile.ComparisonStats) {
	src := func(key, total string) models.InvoiceRecord {
		return models.InvoiceRecord{Row: 1, AuthorizationCode: key, TotalSaleAmount: total, CustomerName: "C " + key}
	}
	ref := func(key string, total int64) models.InventoryRecord {
		return models.InventoryRecord{AuthorizationCode: key, Total: decimal.NewFromInt(total)}
	}
	result := &reconcile.ComparisonResult{
		Matched: []reconcile.Pair{
			{Key: "A", Source: src("A", "100"), Reference: ref("A", 100), Category: reconcile.CategoryPerfect, AmountComparable: true},
			{Key: "B", Source: src("B", "50"), Reference: ref("B", 55), Category: reconcile.CategoryAmount, AmountComparable: true,
				AmountDifference: decimal.NewFromInt(-5),
				Diffs:            []reconcile.FieldDiff{{Field: reconcile.FieldTotalAmount, Source: "50", Reference: "55"}}},
		},
		OnlySource:    []models.InvoiceRecord{src("C", "10")},
		OnlyReference: []models.InventoryRecord{ref("D", 20)},
	}
	stats := reconcile.ComparisonStats{
		TotalSource: 3, TotalReference: 3, Matched: 2, PerfectMatches: 1, AmountMismatches: 1, OnlySource: 1, OnlyReference: 1,
		TotalSourceAmount: decimal.NewFromInt(160), TotalReferenceAmount: decimal.NewFromInt(175),
		AmountDifference: decimal.NewFromInt(15), MismatchAmount: decimal.NewFromInt(5),
	}
	return result, stats
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2025, 10, 3, 14, 5, 9, 0, time.UTC))
	if got != "validation_report_20251003_140509.xlsx" {
		t.Fatalf("got %s", got)
	}
}

func TestWriteWorkbook(t *testing.T) {
	result, stats := sampleResult()
	dir := filepath.Join(t.TempDir(), "reports")

	path, err := WriteWorkbook(dir, result, stats, time.Date(2025, 10, 3, 14, 5, 9, 0, time.UTC))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	want := []string{SheetSummary, SheetPerfectMatches, SheetOnlySource, SheetOnlyReference, SheetAmountMismatches}
	got := f.GetSheetList()
	if len(got) != len(want) {
		t.Fatalf("sheets = %v, want %v (empty categories are skipped)", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sheets = %v, want %v", got, want)
		}
	}

	rows, err := f.GetRows(SheetAmountMismatches)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "B" || rows[1][15] != "-5.00" {
		t.Fatalf("unexpected amount mismatch rows %v", rows)
	}

	summary, _ := f.GetRows(SheetSummary)
	found := false
	for _, r := range summary {
		if len(r) == 2 && r[0] == "Total issues" && r[1] == "3" {
			found = true
		}
	}
	if !found {
		t.Fatalf("summary total issues missing: %v", summary)
	}
}

type fakeUploader struct {
	objects map[string][]byte
	err     error
}

func (u *fakeUploader) Upload(ctx context.Context, objectName string, r io.Reader) error {
	if u.err != nil {
		return u.err
	}
	var buf bytes.Buffer
	io.Copy(&buf, r)
	u.objects[objectName] = buf.Bytes()
	return nil
}

func TestArchiver(t *testing.T) {
	result, stats := sampleResult()
	path, err := WriteWorkbook(t.TempDir(), result, stats, time.Now())
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	up := &fakeUploader{objects: map[string][]byte{}}
	a := NewArchiver(up, "reports", nil)
	name, err := a.Archive(context.Background(), "2025-09", path)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if name != "reports/2025-09/"+filepath.Base(path) || len(up.objects[name]) == 0 {
		t.Fatalf("unexpected object %s (%d bytes)", name, len(up.objects[name]))
	}

	up.err = errors.New("403 forbidden")
	if _, err := a.Archive(context.Background(), "2025-09", path); err == nil {
		t.Fatalf("expected upload error")
	}
}
