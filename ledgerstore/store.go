// Package ledgerstore implements ledgersync.Store on the accounting MySQL
// database through gorm.
package ledgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmdatafocus/taxsales_validator/ledgersync"
	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProbeChunkSize bounds the number of keys in one IN clause.
const ProbeChunkSize = 500

type GormStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var (
	_ ledgersync.Store       = (*GormStore)(nil)
	_ ledgersync.RunRecorder = (*GormStore)(nil)
)

func NewGormStore(db *gorm.DB, logger *logrus.Logger) *GormStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &GormStore{db: db, logger: logger}
}

func (s *GormStore) TestConnection(ctx context.Context) error {
	if s.db == nil {
		return errors.New("ledger database handle is nil")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping ledger database: %w", err)
	}
	if !s.db.WithContext(ctx).Migrator().HasTable(&models.SalesRegister{}) {
		return fmt.Errorf("table %s does not exist", models.SalesRegister{}.TableName())
	}
	return nil
}

func (s *GormStore) ProbeExisting(ctx context.Context, keys []string) (map[string]struct{}, error) {
	return existingKeys(s.db.WithContext(ctx), keys)
}

func (s *GormStore) WithinTransaction(ctx context.Context, fn func(tx ledgersync.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

// RecordRun writes the audit row on its own connection, outside any sync transaction.
func (s *GormStore) RecordRun(ctx context.Context, res *ledgersync.SyncResult) error {
	run := syncRunFrom(res)
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("record sync run %s: %w", res.RunId, err)
	}
	return nil
}

type gormTx struct {
	db *gorm.DB
}

// Upsert writes records one by one so a failure points at a single row.
// Existing keys are read first, inside the transaction, to tell inserts from updates.
func (t *gormTx) Upsert(ctx context.Context, records []models.SalesRegister) (ledgersync.UpsertCounts, error) {
	var counts ledgersync.UpsertCounts
	if len(records) == 0 {
		return counts, nil
	}
	db := t.db.WithContext(ctx)

	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.AuthorizationCode
	}
	existing, err := existingKeys(db, keys)
	if err != nil {
		return counts, err
	}

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "authorization_code"}},
		DoUpdates: clause.AssignmentColumns(models.SalesRegisterUpdateColumns()),
	}
	for i := range records {
		rec := records[i]
		if err := db.Clauses(onConflict).Create(&rec).Error; err != nil {
			return counts, &ledgersync.RowWriteError{Index: i, Key: rec.AuthorizationCode, Err: err}
		}
		if _, ok := existing[rec.AuthorizationCode]; ok {
			counts.Updated++
		} else {
			counts.Inserted++
			existing[rec.AuthorizationCode] = struct{}{}
		}
	}
	return counts, nil
}

func existingKeys(db *gorm.DB, keys []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(keys))
	for start := 0; start < len(keys); start += ProbeChunkSize {
		end := min(start+ProbeChunkSize, len(keys))
		var found []string
		err := db.Model(&models.SalesRegister{}).
			Where("authorization_code IN ?", keys[start:end]).
			Pluck("authorization_code", &found).Error
		if err != nil {
			return nil, fmt.Errorf("probe existing authorization codes: %w", err)
		}
		for _, k := range found {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

type runStats struct {
	Mode         ledgersync.Mode    `json:"mode"`
	Transitions  []ledgersync.State `json:"transitions"`
	MappingTotal int                `json:"mapping_total"`
	Notes        int                `json:"notes"`
}

func syncRunFrom(res *ledgersync.SyncResult) models.SyncRun {
	status := models.SyncRunStatusRolledBack
	if res.State == ledgersync.StateCommitted {
		status = models.SyncRunStatusCommitted
	}
	stats, _ := json.Marshal(runStats{
		Mode:         res.Mode,
		Transitions:  res.Transitions,
		MappingTotal: res.Mapping.Total,
		Notes:        len(res.Mapping.Notes),
	})

	run := models.SyncRun{
		RunId:        res.RunId,
		Period:       res.Period,
		Status:       status,
		Attempted:    res.Attempted,
		Inserted:     res.Inserted,
		Updated:      res.Updated,
		MappingFails: res.Mapping.Failed(),
		FailedKey:    res.FailedKey,
		StatsJSON:    stats,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.StartedAt.Add(res.Duration),
		DurationMs:   res.Duration.Milliseconds(),
	}
	if res.FailedRow > 0 {
		row := res.FailedRow
		run.FailedRow = &row
	}
	if res.Cause != nil {
		run.ErrorMessage = res.Cause.Error()
	}
	return run
}
