package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/taxsales_validator/inventory"
	"github.com/mmdatafocus/taxsales_validator/ledgersync"
	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/mmdatafocus/taxsales_validator/reconcile"
	"github.com/mmdatafocus/taxsales_validator/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// cuf builds an authorization code for branch 1 with the given modality and sequence number.
func cuf(t *testing.T, modality string, seq int) string {
	t.Helper()
	fields := "0001" + modality + "1" + "1" + "01" + fmt.Sprintf("%010d", seq) + "0000" + "5"
	n, ok := new(big.Int).SetString("123456789012345678901234567"+fields, 10)
	if !ok {
		t.Fatalf("bad decimal for sequence %d", seq)
	}
	return fmt.Sprintf("%042X", n) + "A1B2C3"
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

type fixture struct {
	dir       string
	source    string
	inventory string
	matched   string
	onlySiat  string
}

// newFixture writes a tax report with one matched invoice, one invoice unknown
// to inventory and one invoice from another modality, plus an inventory export
// with the matched invoice and one invoice not reported yet.
func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:      dir,
		matched:  cuf(t, "2", 11),
		onlySiat: cuf(t, "2", 12),
	}
	other := cuf(t, "1", 13)
	notReported := cuf(t, "2", 14)

	var src strings.Builder
	src.WriteString("CODIGO DE AUTORIZACIÓN,FECHA DE LA FACTURA,Nro. DE LA FACTURA,NIT / CI CLIENTE,NOMBRE O RAZON SOCIAL,IMPORTE TOTAL DE LA VENTA,ESTADO\n")
	src.WriteString(f.matched + ",05/03/2024,11,1234567,ACME SRL,100.00,VALIDA\n")
	src.WriteString(f.onlySiat + ",06/03/2024,12,7654321,BETA LTDA,50.00,VALIDA\n")
	src.WriteString(other + ",07/03/2024,13,1111111,GAMMA SA,20.00,VALIDA\n")
	f.source = writeFile(t, dir, "siat.csv", src.String())

	var inv strings.Builder
	inv.WriteString("cuf,fechaFac,numeroFactura,ClienteNit,ClienteFactura,total,codigoSucursal\n")
	inv.WriteString(f.matched + ",2024-03-05,11,1234567,ACME SRL,100.00,1\n")
	inv.WriteString(notReported + ",2024-03-08,14,2222222,DELTA SRL,30.00,1\n")
	f.inventory = writeFile(t, dir, "inventory.csv", inv.String())
	return f
}

func testConfig() reconcile.Config {
	return reconcile.Config{
		Modality:            "2",
		AmountTolerance:     decimal.NewFromFloat(0.01),
		CompareCustomerName: true,
	}
}

type probeStore struct {
	existing map[string]struct{}
	txCalls  int
}

func (s *probeStore) TestConnection(ctx context.Context) error { return nil }

func (s *probeStore) ProbeExisting(ctx context.Context, keys []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for _, k := range keys {
		if _, ok := s.existing[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

func (s *probeStore) WithinTransaction(ctx context.Context, fn func(tx ledgersync.Tx) error) error {
	s.txCalls++
	return errors.New("dry run must not open a transaction")
}

func period() inventory.Period {
	return inventory.Period{Year: 2024, Month: time.March}
}

func TestPipelineRun_ReconcilesAndWritesReport(t *testing.T) {
	f := newFixture(t)
	logger := quietLogger()
	p := &Pipeline{
		Engine:    reconcile.NewEngine(testConfig(), logger),
		Inventory: inventory.FileLoader{Path: f.inventory},
		ReportDir: filepath.Join(f.dir, "reports"),
		Logger:    logger,
		Now:       func() time.Time { return time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC) },
	}

	out, err := p.Run(context.Background(), Input{SourcePath: f.source, Period: period()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.RunId == "" || out.Period != "2024-03" {
		t.Fatalf("unexpected run identity: %q %q", out.RunId, out.Period)
	}
	if out.Decode.Failed() != 0 {
		t.Fatalf("expected every code to decode, got %s", out.Decode)
	}
	s := out.Stats
	if s.TotalSourceRead != 3 || s.ExcludedByModality != 1 || s.Matched != 1 || s.PerfectMatches != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.OnlySource != 1 || s.OnlyReference != 1 {
		t.Fatalf("expected one discrepancy each side, got %d/%d", s.OnlySource, s.OnlyReference)
	}
	want := filepath.Join(f.dir, "reports", "validation_report_20240401_093000.xlsx")
	if out.ReportPath != want {
		t.Fatalf("expected report at %s, got %s", want, out.ReportPath)
	}
	if _, err := os.Stat(out.ReportPath); err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if out.Sync != nil {
		t.Fatalf("no syncer configured, expected nil sync result")
	}
}

func TestPipelineRun_KeepsRunIdFromContext(t *testing.T) {
	f := newFixture(t)
	logger := quietLogger()
	p := &Pipeline{
		Engine:    reconcile.NewEngine(testConfig(), logger),
		Inventory: inventory.FileLoader{Path: f.inventory},
		Logger:    logger,
	}
	ctx := utils.SetRunIdInContext(context.Background(), "run-42")

	out, err := p.Run(ctx, Input{SourcePath: f.source, Period: period()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.RunId != "run-42" {
		t.Fatalf("expected run-42, got %s", out.RunId)
	}
	if out.ReportPath != "" {
		t.Fatalf("report dir empty, expected no report, got %s", out.ReportPath)
	}
}

func TestPipelineRun_DryRunSync(t *testing.T) {
	f := newFixture(t)
	logger := quietLogger()
	store := &probeStore{existing: map[string]struct{}{f.matched: {}}}
	opts := ledgersync.DefaultOptions()
	opts.Override = true

	p := &Pipeline{
		Engine:    reconcile.NewEngine(testConfig(), logger),
		Inventory: inventory.FileLoader{Path: f.inventory},
		Syncer:    ledgersync.NewSyncer(store, nil, opts, logger),
		Logger:    logger,
	}
	out, err := p.Run(context.Background(), Input{SourcePath: f.source, Period: period()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := out.Sync
	if res == nil || res.State != ledgersync.StateSimulated {
		t.Fatalf("expected simulated sync, got %+v", res)
	}
	if res.RunId != out.RunId || res.Period != "2024-03" {
		t.Fatalf("sync did not inherit run context: %q %q", res.RunId, res.Period)
	}
	if res.Attempted != 2 || res.Updated != 1 || res.Inserted != 1 {
		t.Fatalf("expected 2 attempted (1 update, 1 insert), got %d (%d, %d)", res.Attempted, res.Updated, res.Inserted)
	}
	if store.txCalls != 0 {
		t.Fatalf("dry run opened %d transactions", store.txCalls)
	}
}

func TestPipelineRun_SyncBlockedByDiscrepancies(t *testing.T) {
	f := newFixture(t)
	logger := quietLogger()
	p := &Pipeline{
		Engine:    reconcile.NewEngine(testConfig(), logger),
		Inventory: inventory.FileLoader{Path: f.inventory},
		Syncer:    ledgersync.NewSyncer(&probeStore{}, nil, ledgersync.DefaultOptions(), logger),
		Logger:    logger,
	}
	out, err := p.Run(context.Background(), Input{SourcePath: f.source, Period: period()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Sync.State != ledgersync.StateBlocked || out.Sync.BlockReason != ledgersync.BlockDiscrepancies {
		t.Fatalf("expected discrepancy block, got %s %s", out.Sync.State, out.Sync.BlockReason)
	}
}

type failingLoader struct{ err error }

func (l failingLoader) Load(ctx context.Context, p inventory.Period) ([]models.InventoryRecord, error) {
	return nil, l.err
}

func TestPipelineRun_InventoryErrorStopsRun(t *testing.T) {
	f := newFixture(t)
	logger := quietLogger()
	boom := errors.New("connection refused")
	p := &Pipeline{
		Engine:    reconcile.NewEngine(testConfig(), logger),
		Inventory: failingLoader{err: boom},
		Logger:    logger,
	}
	_, err := p.Run(context.Background(), Input{SourcePath: f.source, Period: period()})
	if !errors.Is(err, boom) {
		t.Fatalf("expected inventory error, got %v", err)
	}
}

func TestPipelineRun_MissingSourceFile(t *testing.T) {
	logger := quietLogger()
	p := &Pipeline{
		Engine:    reconcile.NewEngine(testConfig(), logger),
		Inventory: failingLoader{err: errors.New("not reached")},
		Logger:    logger,
	}
	_, err := p.Run(context.Background(), Input{SourcePath: filepath.Join(t.TempDir(), "missing.csv"), Period: period()})
	if err == nil || !strings.Contains(err.Error(), "load tax report") {
		t.Fatalf("expected load error, got %v", err)
	}
}
