package ingest

import (
	"github.com/mmdatafocus/taxsales_validator/models"
)

const (
	DatasetSiat      = "siat"
	DatasetInventory = "inventory"
)

// siatColumns maps each InvoiceRecord field to the headers the tax portal
// has used for it. The second authorization code header is the portal's
// mis-encoded variant.
var siatColumns = map[string][]string{
	"authorization_code":   {"CODIGO DE AUTORIZACIÓN", "CODIGO DE AUTORIZACI√ìN", "CUF", "authorization_code"},
	"invoice_date":         {"FECHA DE LA FACTURA", "FECHA", "invoice_date"},
	"invoice_number":       {"Nro. DE LA FACTURA", "NRO DE LA FACTURA", "NUMERO DE FACTURA", "invoice_number"},
	"customer_nit":         {"NIT / CI CLIENTE", "NIT CI CLIENTE", "customer_nit"},
	"complement":           {"COMPLEMENTO", "complement"},
	"customer_name":        {"NOMBRE O RAZON SOCIAL", "customer_name"},
	"total_sale_amount":    {"IMPORTE TOTAL DE LA VENTA", "total_sale_amount"},
	"ice_amount":           {"IMPORTE ICE"},
	"iehd_amount":          {"IMPORTE IEHD"},
	"ipj_amount":           {"IMPORTE IPJ"},
	"fees":                 {"TASAS"},
	"other_non_vat_items":  {"OTROS NO SUJETOS AL IVA"},
	"exports_exempt":       {"EXPORTACIONES Y OPERACIONES EXENTAS"},
	"zero_rate":            {"VENTAS GRAVADAS A TASA CERO"},
	"subtotal":             {"SUBTOTAL"},
	"discounts":            {"DESCUENTOS BONIFICACIONES Y REBAJAS SUJETAS AL IVA"},
	"gift_card":            {"IMPORTE GIFT CARD"},
	"debit_tax_base":       {"IMPORTE BASE PARA DEBITO FISCAL"},
	"debit_tax":            {"DEBITO FISCAL"},
	"status":               {"ESTADO", "status"},
	"control_code":         {"CODIGO DE CONTROL"},
	"sale_type":            {"TIPO DE VENTA"},
	"consolidation_status": {"ESTADO CONSOLIDACION"},
}

// LoadInvoices reads a tax portal export (.csv, .zip or .xlsx).
func LoadInvoices(path string) ([]models.InvoiceRecord, error) {
	t, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseInvoices(t)
}

// ParseInvoices maps the table by header. The authorization code column is
// mandatory; any other missing column leaves its field empty. Row numbers
// start at 1 with the first data row.
func ParseInvoices(t *Table) ([]models.InvoiceRecord, error) {
	cols := make(map[string]int, len(siatColumns))
	for field, names := range siatColumns {
		cols[field] = t.Column(names...)
	}
	if cols["authorization_code"] < 0 {
		return nil, &models.DataFormatError{
			Dataset: DatasetSiat,
			Column:  "authorization_code",
			Detail:  "column CODIGO DE AUTORIZACIÓN not found in " + t.Source,
		}
	}

	out := make([]models.InvoiceRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		get := func(field string) string {
			if c := cols[field]; c >= 0 {
				return row[c]
			}
			return ""
		}
		out = append(out, models.InvoiceRecord{
			Row:                 i + 1,
			AuthorizationCode:   get("authorization_code"),
			InvoiceDate:         get("invoice_date"),
			InvoiceNumber:       get("invoice_number"),
			CustomerNit:         get("customer_nit"),
			Complement:          get("complement"),
			CustomerName:        get("customer_name"),
			TotalSaleAmount:     get("total_sale_amount"),
			IceAmount:           get("ice_amount"),
			IehdAmount:          get("iehd_amount"),
			IpjAmount:           get("ipj_amount"),
			Fees:                get("fees"),
			OtherNonVatItems:    get("other_non_vat_items"),
			ExportsExempt:       get("exports_exempt"),
			ZeroRateTaxedSales:  get("zero_rate"),
			Subtotal:            get("subtotal"),
			DiscountsSubjectVat: get("discounts"),
			GiftCardAmount:      get("gift_card"),
			DebitTaxBaseAmount:  get("debit_tax_base"),
			DebitTax:            get("debit_tax"),
			Status:              get("status"),
			ControlCode:         get("control_code"),
			SaleType:            get("sale_type"),
			ConsolidationStatus: get("consolidation_status"),
		})
	}
	return out, nil
}
