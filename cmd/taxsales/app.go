package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/taxsales_validator/config"
	"github.com/mmdatafocus/taxsales_validator/inventory"
	"github.com/mmdatafocus/taxsales_validator/ledgerstore"
	"github.com/mmdatafocus/taxsales_validator/ledgersync"
	"github.com/mmdatafocus/taxsales_validator/notify"
	"github.com/mmdatafocus/taxsales_validator/reconcile"
	"github.com/mmdatafocus/taxsales_validator/report"
	"github.com/mmdatafocus/taxsales_validator/workflow"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// runFlags are shared by reconcile and sync.
type runFlags struct {
	source        string
	inventoryFile string
	period        string
	reportDir     string
	noReport      bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.source, "source", "", "Required: SIAT sales report (.csv, .zip or .xlsx)")
	cmd.Flags().StringVar(&f.inventoryFile, "inventory-file", "", "Read inventory invoices from this export instead of the inventory database")
	cmd.Flags().StringVar(&f.period, "period", "", "Month to reconcile (YYYY-MM). Defaults to the previous month.")
	cmd.Flags().StringVar(&f.reportDir, "report-dir", "", "Directory for the Excel report (overrides REPORT_DIR)")
	cmd.Flags().BoolVar(&f.noReport, "no-report", false, "Skip the Excel report")
}

func (f *runFlags) resolvePeriod(now time.Time) (inventory.Period, error) {
	if strings.TrimSpace(f.period) == "" {
		return inventory.PeriodOf(now.AddDate(0, -1, 0)), nil
	}
	return inventory.ParsePeriod(strings.TrimSpace(f.period))
}

// app owns the process-wide resources opened for one command.
type app struct {
	cfg     config.Config
	logger  *logrus.Logger
	closers []func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: config.NewLogger(cfg.LogLevel)}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warn("close failed")
		}
	}
}

func (a *app) openDB(ctx context.Context, d config.DatabaseConfig) (*gorm.DB, error) {
	db, err := config.OpenDB(ctx, d, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { return config.CloseDB(db) })
	return db, nil
}

func (a *app) inventoryLoader(ctx context.Context, file string) (inventory.Loader, error) {
	if file != "" {
		return inventory.FileLoader{Path: file}, nil
	}
	if !a.cfg.IsInventoryConfigured() {
		return nil, fmt.Errorf("inventory database is not configured: set DB_HOST, DB_NAME, DB_USER and DB_PASSWORD or pass --inventory-file")
	}
	db, err := a.openDB(ctx, a.cfg.Inventory)
	if err != nil {
		return nil, fmt.Errorf("inventory database: %w", err)
	}
	return inventory.NewDBLoader(db, a.logger), nil
}

// ledgerStore returns a nil interface when the ledger is not configured, so
// the syncer blocks with BlockStoreNotConfigured. A configured ledger that
// cannot be opened yields a store whose connection test reports the open
// error, so the syncer blocks with BlockStoreUnreachable.
func (a *app) ledgerStore(ctx context.Context) ledgersync.Store {
	if !a.cfg.IsLedgerConfigured() {
		return nil
	}
	db, err := a.openDB(ctx, a.cfg.Ledger)
	if err != nil {
		config.LogError(a.logger, "taxsales", "ledgerStore", "opening ledger database", a.cfg.Ledger.Host, err)
		return unreachableStore{err: err}
	}
	return ledgerstore.NewGormStore(db, a.logger)
}

// unreachableStore stands in for a configured ledger that failed to open.
type unreachableStore struct {
	err error
}

func (s unreachableStore) TestConnection(ctx context.Context) error {
	return fmt.Errorf("accounting database is not reachable: %w", s.err)
}

func (s unreachableStore) ProbeExisting(ctx context.Context, keys []string) (map[string]struct{}, error) {
	return nil, s.TestConnection(ctx)
}

func (s unreachableStore) WithinTransaction(ctx context.Context, fn func(tx ledgersync.Tx) error) error {
	return s.TestConnection(ctx)
}

func (a *app) archiver(ctx context.Context) *report.Archiver {
	if a.cfg.Output.ReportBucket == "" {
		return nil
	}
	arch, closeFn, err := report.NewGCSArchiver(ctx, a.cfg.Output.ReportBucket, a.cfg.Output.GCSCredentialsJSON, a.logger)
	if err != nil {
		a.logger.WithError(err).Warn("report archive disabled")
		return nil
	}
	a.closers = append(a.closers, closeFn)
	return arch
}

func (a *app) publisher(ctx context.Context) *notify.Publisher {
	if a.cfg.Output.SyncEventsTopic == "" {
		return nil
	}
	pub, closeFn, err := notify.NewPubSubPublisher(ctx, a.cfg.Output, a.logger)
	if err != nil {
		a.logger.WithError(err).Warn("sync events disabled")
		return nil
	}
	a.closers = append(a.closers, closeFn)
	return pub
}

func (a *app) pipeline(ctx context.Context, f *runFlags) (*workflow.Pipeline, error) {
	loader, err := a.inventoryLoader(ctx, f.inventoryFile)
	if err != nil {
		return nil, err
	}
	engine := reconcile.NewEngine(reconcile.Config{
		Modality:            a.cfg.Reconcile.Modality,
		AmountTolerance:     a.cfg.Reconcile.AmountTolerance,
		CompareCustomerName: a.cfg.Reconcile.CompareCustomerName,
	}, a.logger)

	p := &workflow.Pipeline{
		Engine:    engine,
		Inventory: loader,
		Logger:    a.logger,
	}
	if !f.noReport {
		p.ReportDir = a.cfg.Output.ReportDir
		if f.reportDir != "" {
			p.ReportDir = f.reportDir
		}
		p.Archiver = a.archiver(ctx)
	}
	return p, nil
}
