package ledgerstore

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/taxsales_validator/config"
	"github.com/mmdatafocus/taxsales_validator/ledgersync"
	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/mmdatafocus/taxsales_validator/reconcile"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	name, port := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(name) })

	logg := logrus.New()
	logg.SetLevel(logrus.WarnLevel)
	db, err := config.OpenDB(context.Background(), config.DatabaseConfig{
		Host:            "127.0.0.1",
		Port:            port,
		Name:            "sas_test",
		User:            "root",
		Password:        "testpw",
		ConnectAttempts: 5,
	}, logg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = config.CloseDB(db) })

	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func register(key, name string, total string) models.SalesRegister {
	return models.SalesRegister{
		InvoiceDate:       time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		AuthorizationCode: key,
		CustomerNit:       "1234567",
		CustomerName:      name,
		TotalSaleAmount:   decimal.RequireFromString(total),
		Status:            "VALIDA",
		ControlCode:       "0",
		InvoiceNumber:     "1",
		Author:            models.SalesRegisterAuthor,
	}
}

func countRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.SalesRegister{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestGormStore_UpsertCountsInsertsAndUpdates(t *testing.T) {
	db := openTestDB(t)
	store := NewGormStore(db, nil)
	ctx := context.Background()

	if err := store.TestConnection(ctx); err != nil {
		t.Fatalf("test connection: %v", err)
	}

	err := store.WithinTransaction(ctx, func(tx ledgersync.Tx) error {
		_, err := tx.Upsert(ctx, []models.SalesRegister{register("AAA", "FIRST", "10.00")})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var counts ledgersync.UpsertCounts
	err = store.WithinTransaction(ctx, func(tx ledgersync.Tx) error {
		var err error
		counts, err = tx.Upsert(ctx, []models.SalesRegister{
			register("AAA", "RENAMED", "12.00"),
			register("BBB", "SECOND", "20.00"),
		})
		return err
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if counts.Inserted != 1 || counts.Updated != 1 {
		t.Fatalf("expected 1 insert / 1 update, got %+v", counts)
	}

	var got models.SalesRegister
	if err := db.Where("authorization_code = ?", "AAA").First(&got).Error; err != nil {
		t.Fatalf("load AAA: %v", err)
	}
	if got.CustomerName != "RENAMED" || !got.TotalSaleAmount.Equal(decimal.RequireFromString("12")) {
		t.Fatalf("existing row not updated: %+v", got)
	}

	existing, err := store.ProbeExisting(ctx, []string{"AAA", "BBB", "CCC"})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if len(existing) != 2 {
		t.Fatalf("expected 2 existing keys, got %v", existing)
	}
}

func TestGormStore_FailedRowRollsBackWholeBatch(t *testing.T) {
	db := openTestDB(t)
	store := NewGormStore(db, nil)
	ctx := context.Background()

	tooLong := register("CCC", strings.Repeat("X", 300), "5.00")
	err := store.WithinTransaction(ctx, func(tx ledgersync.Tx) error {
		_, err := tx.Upsert(ctx, []models.SalesRegister{
			register("AAA", "FIRST", "10.00"),
			register("BBB", "SECOND", "20.00"),
			tooLong,
		})
		return err
	})

	var rowErr *ledgersync.RowWriteError
	if !errors.As(err, &rowErr) || rowErr.Index != 2 || rowErr.Key != "CCC" {
		t.Fatalf("expected RowWriteError at index 2, got %v", err)
	}
	if n := countRows(t, db); n != 0 {
		t.Fatalf("expected rollback to leave 0 rows, found %d", n)
	}
}

func TestGormStore_SyncerEndToEnd(t *testing.T) {
	db := openTestDB(t)
	store := NewGormStore(db, nil)

	rows := []models.InvoiceRecord{
		{Row: 1, AuthorizationCode: "AAA", InvoiceDate: "15/01/2025", InvoiceNumber: "1", CustomerNit: "123", CustomerName: "UNO", TotalSaleAmount: "100.00", DebitTax: "13"},
		{Row: 2, AuthorizationCode: "BBB", InvoiceDate: "16/01/2025", InvoiceNumber: "2", CustomerNit: "456", CustomerName: "DOS", TotalSaleAmount: "50.00"},
	}
	result := &reconcile.ComparisonResult{}
	for _, r := range rows {
		result.Matched = append(result.Matched, reconcile.Pair{Key: r.AuthorizationCode, Source: r, Category: reconcile.CategoryPerfect})
	}

	syncer := ledgersync.NewSyncer(store, nil, ledgersync.Options{DryRun: false, AuditRuns: true}, nil)
	res := syncer.Sync(context.Background(), result, reconcile.ComparisonStats{})
	if res.State != ledgersync.StateCommitted || res.Inserted != 2 {
		t.Fatalf("expected 2 committed inserts, got %s %+v (%v)", res.State, res, res.Err())
	}
	if n := countRows(t, db); n != 2 {
		t.Fatalf("expected 2 rows, found %d", n)
	}

	var run models.SyncRun
	if err := db.Where("run_id = ?", res.RunId).First(&run).Error; err != nil {
		t.Fatalf("audit row missing: %v", err)
	}
	if run.Status != models.SyncRunStatusCommitted || run.Inserted != 2 {
		t.Fatalf("unexpected audit row %+v", run)
	}

	dry := ledgersync.NewSyncer(store, nil, ledgersync.Options{DryRun: true}, nil)
	res = dry.Sync(context.Background(), result, reconcile.ComparisonStats{})
	if res.State != ledgersync.StateSimulated || res.Updated != 2 || res.Inserted != 0 {
		t.Fatalf("dry run estimate wrong: %s %d/%d", res.State, res.Inserted, res.Updated)
	}
}
