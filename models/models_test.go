package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDataFormatError(t *testing.T) {
	err := fmt.Errorf("load: %w", &DataFormatError{Dataset: "siat", Column: "authorization_code", Row: 4, Detail: "empty key"})
	if !errors.Is(err, ErrDataFormat) {
		t.Fatalf("expected errors.Is ErrDataFormat")
	}
	var dfe *DataFormatError
	if !errors.As(err, &dfe) || dfe.Row != 4 {
		t.Fatalf("expected *DataFormatError with row 4, got %v", err)
	}
	for _, want := range []string{`"siat"`, `"authorization_code"`, "row 4", "empty key"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestInventoryStatus(t *testing.T) {
	cases := map[string]string{
		"1":     InventoryStatusCanceled,
		"true":  InventoryStatusCanceled,
		"SI":    InventoryStatusCanceled,
		"0":     InventoryStatusValid,
		"":      InventoryStatusValid,
		"NO":    InventoryStatusValid,
		"OTHER": "OTHER",
	}
	for in, want := range cases {
		if got := InventoryStatus(in); got != want {
			t.Fatalf("InventoryStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInvoiceRecordDecodedAccessors(t *testing.T) {
	r := InvoiceRecord{InvoiceNumber: "77"}
	if r.Modality() != "" || r.BranchOffice() != "" {
		t.Fatalf("undecoded record must report empty fields")
	}
	if r.EffectiveInvoiceNumber() != "77" {
		t.Fatalf("expected reported number, got %q", r.EffectiveInvoiceNumber())
	}

	r.Decoded = &DecodedFields{Modality: "2", BranchOffice: "0003", SequenceNumber: "0000000078"}
	if r.Modality() != "2" || r.BranchOffice() != "0003" {
		t.Fatalf("unexpected decoded accessors: %q %q", r.Modality(), r.BranchOffice())
	}
	if r.EffectiveInvoiceNumber() != "0000000078" {
		t.Fatalf("expected decoded sequence number, got %q", r.EffectiveInvoiceNumber())
	}
}

func TestSalesRegisterUpdateColumns_KeepIdentity(t *testing.T) {
	cols := map[string]bool{}
	for _, c := range SalesRegisterUpdateColumns() {
		if cols[c] {
			t.Fatalf("duplicate column %s", c)
		}
		cols[c] = true
	}
	for _, kept := range []string{"id", "authorization_code", "author", "created_at"} {
		if cols[kept] {
			t.Fatalf("%s must not be rewritten on update", kept)
		}
	}
	if !cols["total_sale_amount"] || !cols["updated_at"] {
		t.Fatalf("expected amount and updated_at to be rewritten")
	}
}
