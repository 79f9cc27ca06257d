package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const SalesRegisterAuthor = "TaxSalesValidator"

// SalesRegister is one row of the accounting ledger's sales_registers table.
// AuthorizationCode is the upsert key.
type SalesRegister struct {
	ID uint `gorm:"primary_key" json:"id"`

	InvoiceDate       time.Time `gorm:"type:date;not null" json:"invoice_date" validate:"required"`
	AuthorizationCode string    `gorm:"size:64;uniqueIndex;not null" json:"authorization_code" validate:"required,max=64"`
	CustomerNit       string    `gorm:"size:15;not null" json:"customer_nit" validate:"required,max=15,numeric"`
	Complement        *string   `gorm:"size:5" json:"complement" validate:"omitempty,max=5"`
	CustomerName      string    `gorm:"size:240;not null" json:"customer_name" validate:"required,max=240"`

	TotalSaleAmount                   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_sale_amount"`
	IceAmount                         decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"ice_amount"`
	IehdAmount                        decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"iehd_amount"`
	IpjAmount                         decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"ipj_amount"`
	Fees                              decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"fees"`
	OtherNonVatItems                  decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"other_non_vat_items"`
	ExportsExemptOperations           decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"exports_exempt_operations"`
	ZeroRateTaxedSales                decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"zero_rate_taxed_sales"`
	Subtotal                          decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"subtotal"`
	DiscountsBonusesRebatesSubjectVat decimal.Decimal `gorm:"column:discounts_bonuses_rebates_subject_to_vat;type:decimal(15,2);default:0" json:"discounts_bonuses_rebates_subject_to_vat"`
	GiftCardAmount                    decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"gift_card_amount"`
	DebitTaxBaseAmount                decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"debit_tax_base_amount"`
	DebitTax                          decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"debit_tax"`

	Status              string `gorm:"size:50" json:"status" validate:"max=50"`
	ControlCode         string `gorm:"size:50" json:"control_code" validate:"max=50"`
	SaleType            string `gorm:"size:50" json:"sale_type" validate:"max=50"`
	ConsolidationStatus string `gorm:"size:50" json:"consolidation_status" validate:"max=50"`

	InvoiceNumber string  `gorm:"size:15;index;not null" json:"invoice_number" validate:"required,max=15"`
	BranchOffice  *string `gorm:"size:10" json:"branch_office" validate:"omitempty,max=10"`
	Modality      *string `gorm:"size:10" json:"modality" validate:"omitempty,max=10"`
	EmissionType  *string `gorm:"size:10" json:"emission_type" validate:"omitempty,max=10"`
	InvoiceType   *string `gorm:"size:10" json:"invoice_type" validate:"omitempty,max=10"`
	Sector        *string `gorm:"size:10" json:"sector" validate:"omitempty,max=10"`

	RightToTaxCredit bool    `json:"right_to_tax_credit"`
	Author           string  `gorm:"size:100" json:"author" validate:"required,max=100"`
	Obs              *string `gorm:"type:text" json:"obs"`
	Observations     *string `gorm:"type:text" json:"observations"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SalesRegister) TableName() string {
	return "sales_registers"
}

// SalesRegisterUpdateColumns lists the columns rewritten when an existing
// authorization code is synced again. The key, the writer tag and the
// creation time are kept.
func SalesRegisterUpdateColumns() []string {
	return []string{
		"invoice_date", "customer_nit", "complement", "customer_name",
		"total_sale_amount", "ice_amount", "iehd_amount", "ipj_amount", "fees",
		"other_non_vat_items", "exports_exempt_operations", "zero_rate_taxed_sales",
		"subtotal", "discounts_bonuses_rebates_subject_to_vat", "gift_card_amount",
		"debit_tax_base_amount", "debit_tax",
		"status", "control_code", "sale_type", "consolidation_status",
		"invoice_number", "branch_office", "modality", "emission_type", "invoice_type", "sector",
		"right_to_tax_credit", "obs", "observations",
		"updated_at",
	}
}
