package reconcile

import (
	"sort"

	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryPerfect  Category = "perfect_match"
	CategoryAmount   Category = "amount_mismatch"
	CategoryCustomer Category = "customer_mismatch"
	CategoryOther    Category = "other_mismatch"
)

// Field names used in FieldDiff.
const (
	FieldAuthorizationCode = "authorization_code"
	FieldTotalAmount       = "total_amount"
	FieldCustomerNit       = "customer_nit"
	FieldCustomerName      = "customer_name"
	FieldInvoiceNumber     = "invoice_number"
	FieldInvoiceDate       = "invoice_date"
	FieldBranch            = "branch"
	FieldStatus            = "status"
)

type FieldDiff struct {
	Field     string `json:"field"`
	Source    string `json:"source"`
	Reference string `json:"reference"`
}

// Pair is one invoice present in both datasets.
type Pair struct {
	Key       string                 `json:"key"`
	Source    models.InvoiceRecord   `json:"source"`
	Reference models.InventoryRecord `json:"reference"`

	// Set by CompareFields.
	Category         Category        `json:"category"`
	Diffs            []FieldDiff     `json:"diffs,omitempty"`
	AmountDifference decimal.Decimal `json:"amount_difference"`
	AmountComparable bool            `json:"amount_comparable"`
}

// ComparisonResult partitions the joined key space of one run.
// Every matched pair carries exactly one Category.
type ComparisonResult struct {
	Matched            []Pair                   `json:"matched"`
	OnlySource         []models.InvoiceRecord   `json:"only_source"`
	OnlyReference      []models.InventoryRecord `json:"only_reference"`
	ExcludedByModality []models.InvoiceRecord   `json:"excluded_by_modality"`
}

func (r *ComparisonResult) ByCategory(c Category) []Pair {
	var out []Pair
	for _, p := range r.Matched {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out
}

func (r *ComparisonResult) Perfect() []Pair            { return r.ByCategory(CategoryPerfect) }
func (r *ComparisonResult) AmountMismatches() []Pair   { return r.ByCategory(CategoryAmount) }
func (r *ComparisonResult) CustomerMismatches() []Pair { return r.ByCategory(CategoryCustomer) }
func (r *ComparisonResult) OtherMismatches() []Pair    { return r.ByCategory(CategoryOther) }

// SyncEligible returns the source rows that go to the ledger: every matched
// invoice plus the invoices only the tax authority knows about. Rows only in
// the inventory system have not been reported yet and are left out.
// Output is ordered by key.
func (r *ComparisonResult) SyncEligible() []models.InvoiceRecord {
	type keyed struct {
		key string
		row models.InvoiceRecord
	}
	rows := make([]keyed, 0, len(r.Matched)+len(r.OnlySource))
	for _, p := range r.Matched {
		rows = append(rows, keyed{p.Key, p.Source})
	}
	for _, s := range r.OnlySource {
		rows = append(rows, keyed{NormalizeKey(s.AuthorizationCode), s})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].key < rows[j].key })

	out := make([]models.InvoiceRecord, len(rows))
	for i, k := range rows {
		out[i] = k.row
	}
	return out
}
