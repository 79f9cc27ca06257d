// Package authcode decodes the authorization code (CUF) printed on every
// electronic invoice into the structured values it packs.
//
// The first 42 characters are a hexadecimal number. Its decimal form carries
// the fields at fixed positions starting at offset 27.
package authcode

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/mmdatafocus/taxsales_validator/models"
)

const (
	HexLength       = 42
	FieldsOffset    = 27
	FieldsWidth     = 24
	MinDecimalWidth = FieldsOffset + FieldsWidth
)

var (
	ErrInvalidCodeLength     = errors.New("authorization code shorter than 42 characters")
	ErrInvalidHexEncoding    = errors.New("authorization code is not hexadecimal")
	ErrDecodedStringTooShort = errors.New("decoded authorization code shorter than 51 digits")
)

// DecodeError carries the offending code together with one of the sentinel errors.
type DecodeError struct {
	Code string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Code, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type field struct {
	name   string
	start  int
	length int
}

// Positions are relative to FieldsOffset.
var layout = []field{
	{FieldBranchOffice, 0, 4},
	{FieldModality, 4, 1},
	{FieldEmissionType, 5, 1},
	{FieldInvoiceType, 6, 1},
	{FieldSector, 7, 2},
	{FieldSequenceNumber, 9, 10},
	{FieldPointOfSale, 19, 4},
	{FieldCheckDigit, 23, 1},
}

const (
	FieldBranchOffice   = "branch_office"
	FieldModality       = "modality"
	FieldEmissionType   = "emission_type"
	FieldInvoiceType    = "invoice_type"
	FieldSector         = "sector"
	FieldSequenceNumber = "sequence_number"
	FieldPointOfSale    = "point_of_sale"
	FieldCheckDigit     = "check_digit"
)

// FieldNames lists the decoded fields in layout order.
func FieldNames() []string {
	names := make([]string, len(layout))
	for i, f := range layout {
		names[i] = f.name
	}
	return names
}

// Decode extracts the eight fields packed in code. It has no side effects.
func Decode(code string) (models.DecodedFields, error) {
	code = strings.TrimSpace(code)
	if len(code) < HexLength {
		return models.DecodedFields{}, &DecodeError{Code: code, Err: ErrInvalidCodeLength}
	}

	head := code[:HexLength]
	if !isHex(head) {
		return models.DecodedFields{}, &DecodeError{Code: code, Err: ErrInvalidHexEncoding}
	}
	n, ok := new(big.Int).SetString(head, 16)
	if !ok {
		return models.DecodedFields{}, &DecodeError{Code: code, Err: ErrInvalidHexEncoding}
	}

	digits := n.Text(10)
	if len(digits) < MinDecimalWidth {
		return models.DecodedFields{}, &DecodeError{Code: code, Err: ErrDecodedStringTooShort}
	}

	values := make(map[string]string, len(layout))
	for _, f := range layout {
		start := FieldsOffset + f.start
		values[f.name] = digits[start : start+f.length]
	}

	return models.DecodedFields{
		BranchOffice:   values[FieldBranchOffice],
		Modality:       values[FieldModality],
		EmissionType:   values[FieldEmissionType],
		InvoiceType:    values[FieldInvoiceType],
		Sector:         values[FieldSector],
		SequenceNumber: values[FieldSequenceNumber],
		PointOfSale:    values[FieldPointOfSale],
		CheckDigit:     values[FieldCheckDigit],
	}, nil
}

func fieldValue(d *models.DecodedFields, name string) string {
	if d == nil {
		return ""
	}
	switch name {
	case FieldBranchOffice:
		return d.BranchOffice
	case FieldModality:
		return d.Modality
	case FieldEmissionType:
		return d.EmissionType
	case FieldInvoiceType:
		return d.InvoiceType
	case FieldSector:
		return d.Sector
	case FieldSequenceNumber:
		return d.SequenceNumber
	case FieldPointOfSale:
		return d.PointOfSale
	case FieldCheckDigit:
		return d.CheckDigit
	}
	return ""
}

// big.Int.SetString also accepts a sign, so the alphabet is checked first.
func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			continue
		}
		return false
	}
	return true
}
