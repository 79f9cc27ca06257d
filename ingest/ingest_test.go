package ingest

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/xuri/excelize/v2"
)

const siatHeader = "Nº,ESPECIFICACION,FECHA DE LA FACTURA,Nro. DE LA FACTURA,CODIGO DE AUTORIZACIÓN,NIT / CI CLIENTE,COMPLEMENTO,NOMBRE O RAZON SOCIAL,IMPORTE TOTAL DE LA VENTA,DEBITO FISCAL,ESTADO"

func TestReadCSV_CommaWithBOM(t *testing.T) {
	data := "\xef\xbb\xbf" + siatHeader + "\n" +
		"1,2,15/01/2025,6737,ABCDEF,1234567,,CLIENTE UNO,\"1,150.00\",149.50,VALIDA\n" +
		"\n" +
		"2,2,16/01/2025,6738,ABCDEG,7654321,1A,CLIENTE DOS,20.00,2.60,ANULADA\n"

	tbl, err := ReadCSV("siat.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	rows, err := ParseInvoices(tbl)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (blank line skipped), got %d", len(rows))
	}
	r := rows[0]
	if r.Row != 1 || r.AuthorizationCode != "ABCDEF" || r.InvoiceNumber != "6737" || r.TotalSaleAmount != "1,150.00" {
		t.Fatalf("unexpected first row %+v", r)
	}
	if rows[1].Row != 2 || rows[1].Complement != "1A" || rows[1].Status != "ANULADA" {
		t.Fatalf("unexpected second row %+v", rows[1])
	}
	if r.IceAmount != "" {
		t.Fatalf("absent column should map to empty, got %q", r.IceAmount)
	}
}

func TestReadCSV_SemicolonWindows1252(t *testing.T) {
	// "CÓDIGO" with Ó as the single byte 0xD3.
	data := "FECHA DE LA FACTURA;C\xd3DIGO DE AUTORIZACI\xd3N;IMPORTE TOTAL DE LA VENTA\n15/01/2025;XYZ;10,50\n"
	tbl, err := ReadCSV("legacy.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tbl.Headers[1] != "CÓDIGO DE AUTORIZACIÓN" {
		t.Fatalf("header not decoded: %q", tbl.Headers[1])
	}
	rows, err := ParseInvoices(tbl)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rows[0].AuthorizationCode != "XYZ" || rows[0].TotalSaleAmount != "10,50" {
		t.Fatalf("unexpected row %+v", rows[0])
	}
}

func TestParseInvoices_MissingKeyColumn(t *testing.T) {
	tbl, err := ReadCSV("bad.csv", strings.NewReader("FECHA DE LA FACTURA,TOTAL\n15/01/2025,10\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	_, err = ParseInvoices(tbl)
	if !errors.Is(err, models.ErrDataFormat) {
		t.Fatalf("expected data format error, got %v", err)
	}
	var dfe *models.DataFormatError
	if !errors.As(err, &dfe) || dfe.Column != "authorization_code" || dfe.Dataset != DatasetSiat {
		t.Fatalf("unexpected error detail %+v", dfe)
	}
}

func TestReadCSV_EmptyFile(t *testing.T) {
	if _, err := ReadCSV("empty.csv", strings.NewReader("\n\n")); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func TestReadZip_FirstCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ventas.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("LEAME.txt")
	w.Write([]byte("ignored"))
	w, _ = zw.Create("sub/ventas_012025.csv")
	w.Write([]byte(siatHeader + "\n1,2,15/01/2025,1,KEY1,1,,A,10.00,1.30,VALIDA\n"))
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	f.Close()

	rows, err := LoadInvoices(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 || rows[0].AuthorizationCode != "KEY1" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestReadZip_NoCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.zip")
	f, _ := os.Create(path)
	zw := zip.NewWriter(f)
	w, _ := zw.Create("readme.txt")
	w.Write([]byte("x"))
	zw.Close()
	f.Close()

	if _, err := ReadZip(path); !errors.Is(err, ErrNoCSVInArchive) {
		t.Fatalf("expected ErrNoCSVInArchive, got %v", err)
	}
}

func TestReadXLSX_FirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ventas.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"CODIGO DE AUTORIZACION", "FECHA DE LA FACTURA", "IMPORTE TOTAL DE LA VENTA"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	f.SetCellValue(sheet, "A2", "KEYX")
	f.SetCellValue(sheet, "B2", "2025-01-15")
	f.SetCellValue(sheet, "C2", "99.90")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	rows, err := LoadInvoices(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 || rows[0].AuthorizationCode != "KEYX" || rows[0].TotalSaleAmount != "99.90" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestReadFile_Unsupported(t *testing.T) {
	if _, err := ReadFile("report.pdf"); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("expected ErrUnsupportedFile, got %v", err)
	}
}

func TestNormalizeHeader(t *testing.T) {
	if NormalizeHeader("Código de Autorización") != NormalizeHeader("CODIGO DE AUTORIZACION") {
		t.Fatalf("accent folding failed")
	}
	if NormalizeHeader("NIT / CI CLIENTE") != "NITCICLIENTE" {
		t.Fatalf("got %q", NormalizeHeader("NIT / CI CLIENTE"))
	}
}
