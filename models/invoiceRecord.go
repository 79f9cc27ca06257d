package models

// DecodedFields holds the structured values packed inside an authorization code (CUF).
// Values keep their zero padding exactly as sliced from the decimal form.
type DecodedFields struct {
	BranchOffice   string `json:"branch_office"`
	Modality       string `json:"modality"`
	EmissionType   string `json:"emission_type"`
	InvoiceType    string `json:"invoice_type"`
	Sector         string `json:"sector"`
	SequenceNumber string `json:"sequence_number"`
	PointOfSale    string `json:"point_of_sale"`
	CheckDigit     string `json:"check_digit"`
}

// InvoiceRecord is one row of the tax authority (SIAT) sales report.
// Monetary columns are kept as reported; parsing happens where the value is used.
type InvoiceRecord struct {
	Row int `json:"row"`

	AuthorizationCode   string `json:"authorization_code"`
	InvoiceDate         string `json:"invoice_date"`
	InvoiceNumber       string `json:"invoice_number"`
	CustomerNit         string `json:"customer_nit"`
	Complement          string `json:"complement"`
	CustomerName        string `json:"customer_name"`
	TotalSaleAmount     string `json:"total_sale_amount"`
	IceAmount           string `json:"ice_amount"`
	IehdAmount          string `json:"iehd_amount"`
	IpjAmount           string `json:"ipj_amount"`
	Fees                string `json:"fees"`
	OtherNonVatItems    string `json:"other_non_vat_items"`
	ExportsExempt       string `json:"exports_exempt_operations"`
	ZeroRateTaxedSales  string `json:"zero_rate_taxed_sales"`
	Subtotal            string `json:"subtotal"`
	DiscountsSubjectVat string `json:"discounts_bonuses_rebates_subject_to_vat"`
	GiftCardAmount      string `json:"gift_card_amount"`
	DebitTaxBaseAmount  string `json:"debit_tax_base_amount"`
	DebitTax            string `json:"debit_tax"`
	Status              string `json:"status"`
	ControlCode         string `json:"control_code"`
	SaleType            string `json:"sale_type"`
	ConsolidationStatus string `json:"consolidation_status"`

	// Decoded is nil when the authorization code could not be decoded.
	Decoded *DecodedFields `json:"decoded,omitempty"`
}

// EffectiveInvoiceNumber prefers the sequence number packed in the authorization code
// and falls back to the reported invoice number.
func (r InvoiceRecord) EffectiveInvoiceNumber() string {
	if r.Decoded != nil && r.Decoded.SequenceNumber != "" {
		return r.Decoded.SequenceNumber
	}
	return r.InvoiceNumber
}

// Modality returns the decoded billing channel or "" when the code was not decoded.
func (r InvoiceRecord) Modality() string {
	if r.Decoded == nil {
		return ""
	}
	return r.Decoded.Modality
}

// BranchOffice returns the decoded branch office or "" when the code was not decoded.
func (r InvoiceRecord) BranchOffice() string {
	if r.Decoded == nil {
		return ""
	}
	return r.Decoded.BranchOffice
}
