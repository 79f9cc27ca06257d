// Package inventory loads the reference invoices recorded by the inventory
// system for one period.
package inventory

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/taxsales_validator/ingest"
	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/mmdatafocus/taxsales_validator/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Loader returns the inventory invoices of a period.
type Loader interface {
	Load(ctx context.Context, period Period) ([]models.InventoryRecord, error)
}

// periodQuery selects the invoices issued through the tax portal integration
// (lote 0 is electronic, 138 the manual batch synced later).
const periodQuery = `
SELECT
  fs.cuf,
  f.fechaFac,
  f.nFactura AS numeroFactura,
  f.ClienteNit,
  f.ClienteFactura,
  f.total,
  CAST(f.anulada AS CHAR) AS estado,
  CAST(fs.codigoSucursal AS CHAR) AS codigoSucursal,
  CAST(fs.codigoPuntoVenta AS CHAR) AS codigoPuntoVenta
FROM factura f
  INNER JOIN factura_siat fs ON fs.factura_id = f.idFactura
WHERE f.fechaFac BETWEEN ? AND ?
  AND (f.lote = 0 OR f.lote = '138')
GROUP BY f.idFactura
ORDER BY f.fechaFac DESC, f.nFactura DESC, f.idFactura DESC`

type DBLoader struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewDBLoader(db *gorm.DB, logger *logrus.Logger) *DBLoader {
	if logger == nil {
		logger = logrus.New()
	}
	return &DBLoader{db: db, logger: logger}
}

func (l *DBLoader) Load(ctx context.Context, period Period) ([]models.InventoryRecord, error) {
	var rows []models.InventoryRecord
	err := l.db.WithContext(ctx).
		Raw(periodQuery, period.Start().Format("2006-01-02"), period.End().Format("2006-01-02")).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("inventory query for %s: %w", period, err)
	}
	for i := range rows {
		rows[i].Row = i + 1
		rows[i].Status = models.InventoryStatus(rows[i].Status)
	}
	l.logger.WithFields(logrus.Fields{
		"module": "inventory",
		"period": period.String(),
		"rows":   len(rows),
	}).Info("inventory invoices loaded")
	return rows, nil
}

// FileLoader reads a reference export instead of querying the database.
// The period is not used to filter the file.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(ctx context.Context, period Period) ([]models.InventoryRecord, error) {
	return LoadFile(l.Path)
}

// LoadFile reads an inventory export (.csv, .zip or .xlsx) with the column
// names of the period query.
func LoadFile(path string) ([]models.InventoryRecord, error) {
	t, err := ingest.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseInventory(t)
}

func ParseInventory(t *ingest.Table) ([]models.InventoryRecord, error) {
	col := map[string]int{
		"cuf":              t.Column("cuf", "codigo de autorizacion"),
		"fechaFac":         t.Column("fechaFac", "fecha"),
		"numeroFactura":    t.Column("numeroFactura", "nFactura"),
		"ClienteNit":       t.Column("ClienteNit", "nit"),
		"ClienteFactura":   t.Column("ClienteFactura", "cliente"),
		"total":            t.Column("total"),
		"estado":           t.Column("estado", "anulada"),
		"codigoSucursal":   t.Column("codigoSucursal", "sucursal"),
		"codigoPuntoVenta": t.Column("codigoPuntoVenta"),
	}
	if col["cuf"] < 0 {
		return nil, &models.DataFormatError{
			Dataset: ingest.DatasetInventory,
			Column:  "cuf",
			Detail:  "column cuf not found in " + t.Source,
		}
	}

	out := make([]models.InventoryRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		get := func(name string) string {
			if c := col[name]; c >= 0 {
				return row[c]
			}
			return ""
		}
		rec := models.InventoryRecord{
			Row:               i + 1,
			AuthorizationCode: get("cuf"),
			InvoiceNumber:     get("numeroFactura"),
			CustomerNit:       get("ClienteNit"),
			CustomerName:      get("ClienteFactura"),
			Status:            models.InventoryStatus(get("estado")),
			BranchCode:        get("codigoSucursal"),
			PointOfSale:       get("codigoPuntoVenta"),
			Total:             decimal.Zero,
		}
		if v := get("fechaFac"); v != "" {
			d, err := utils.ParseDate(v)
			if err != nil {
				return nil, &models.DataFormatError{Dataset: ingest.DatasetInventory, Column: "fechaFac", Row: i + 1, Detail: err.Error()}
			}
			rec.InvoiceDate = &d
		}
		if v := get("total"); v != "" {
			amt, err := utils.ParseAmount(v)
			if err != nil {
				return nil, &models.DataFormatError{Dataset: ingest.DatasetInventory, Column: "total", Row: i + 1, Detail: err.Error()}
			}
			rec.Total = amt
		}
		out = append(out, rec)
	}
	return out, nil
}
