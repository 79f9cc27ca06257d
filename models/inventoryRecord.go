package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	InventoryStatusValid    = "VALIDA"
	InventoryStatusCanceled = "ANULADA"
)

// InventoryRecord is one invoice as recorded by the inventory system.
// Column tags match the aliases of the inventory period query.
type InventoryRecord struct {
	Row int `gorm:"-" json:"row"`

	AuthorizationCode string          `gorm:"column:cuf" json:"cuf"`
	InvoiceDate       *time.Time      `gorm:"column:fechaFac" json:"fechaFac"`
	InvoiceNumber     string          `gorm:"column:numeroFactura" json:"numeroFactura"`
	CustomerNit       string          `gorm:"column:ClienteNit" json:"ClienteNit"`
	CustomerName      string          `gorm:"column:ClienteFactura" json:"ClienteFactura"`
	Total             decimal.Decimal `gorm:"column:total" json:"total"`
	Status            string          `gorm:"column:estado" json:"estado"`
	BranchCode        string          `gorm:"column:codigoSucursal" json:"codigoSucursal"`
	PointOfSale       string          `gorm:"column:codigoPuntoVenta" json:"codigoPuntoVenta"`
}

// InventoryStatus maps the inventory "anulada" flag to the status wording used by the tax report.
func InventoryStatus(canceled string) string {
	switch canceled {
	case "1", "true", "TRUE", "S", "SI":
		return InventoryStatusCanceled
	case "0", "false", "FALSE", "N", "NO", "":
		return InventoryStatusValid
	default:
		return canceled
	}
}
