// Package reconcile matches the invoices reported to the tax authority with
// the invoices recorded by the inventory system and classifies every
// difference.
package reconcile

import (
	"strings"

	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/sirupsen/logrus"
)

type Engine struct {
	cfg    Config
	logger *logrus.Logger
}

func NewEngine(cfg Config, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{cfg: cfg, logger: logger}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Run filters, matches, compares and aggregates. Discrepancies are results;
// the only error is a *models.DataFormatError for rows without a key.
func (e *Engine) Run(source []models.InvoiceRecord, reference []models.InventoryRecord) (*ComparisonResult, ComparisonStats, error) {
	if err := checkKeys(source, reference); err != nil {
		e.logger.WithFields(logrus.Fields{
			"module":   "reconcile",
			"funcName": "Run",
		}).Error(err.Error())
		return nil, ComparisonStats{}, err
	}

	filtered, excluded := FilterByModality(source, e.cfg.Modality)
	e.logger.WithFields(logrus.Fields{
		"module":   "reconcile",
		"modality": e.cfg.Modality,
		"kept":     len(filtered),
		"excluded": len(excluded),
	}).Info("source filtered by modality")

	match := MatchByKey(filtered, reference)
	result := &ComparisonResult{
		Matched:            CompareFields(match.Pairs, e.cfg),
		OnlySource:         match.OnlySource,
		OnlyReference:      match.OnlyReference,
		ExcludedByModality: excluded,
	}
	for _, p := range result.Matched {
		if !p.AmountComparable {
			e.logger.WithFields(logrus.Fields{
				"module": "reconcile",
				"key":    p.Key,
				"total":  p.Source.TotalSaleAmount,
			}).Warn("source total is not a number; amount not compared")
		}
	}
	stats := Aggregate(result, len(source), filtered, reference, match)

	e.logger.WithFields(logrus.Fields{
		"module":              "reconcile",
		"matched":             stats.Matched,
		"perfect":             stats.PerfectMatches,
		"amount_mismatches":   stats.AmountMismatches,
		"customer_mismatches": stats.CustomerMismatches,
		"other_mismatches":    stats.OtherMismatches,
		"only_source":         stats.OnlySource,
		"only_reference":      stats.OnlyReference,
		"amount_uncomparable": stats.AmountUncomparable,
		"match_rate":          stats.MatchRate,
	}).Info("reconciliation completed")

	return result, stats, nil
}

func checkKeys(source []models.InvoiceRecord, reference []models.InventoryRecord) error {
	for i, r := range source {
		if strings.TrimSpace(r.AuthorizationCode) == "" {
			return &models.DataFormatError{Dataset: "source", Column: "authorization_code", Row: rowRef(r.Row, i), Detail: "missing key"}
		}
	}
	for i, r := range reference {
		if strings.TrimSpace(r.AuthorizationCode) == "" {
			return &models.DataFormatError{Dataset: "reference", Column: "cuf", Row: rowRef(r.Row, i), Detail: "missing key"}
		}
	}
	return nil
}

func rowRef(row, index int) int {
	if row > 0 {
		return row
	}
	return index + 1
}
