package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
		"SAS_DB_HOST", "SAS_DB_PORT", "SAS_DB_NAME", "SAS_DB_USER", "SAS_DB_PASSWORD",
		"SAS_SYNC_BATCH_SIZE", "SAS_SYNC_TIMEOUT", "SAS_SYNC_AMOUNT_TOLERANCE_PCT",
		"RECONCILE_MODALITY", "RECONCILE_AMOUNT_TOLERANCE", "RECONCILE_COMPARE_CUSTOMER_NAME",
		"SYNC_RUN_AUDIT", "REPORT_DIR", "REPORT_GCS_BUCKET", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	// Keep a developer .env out of the test.
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Reconcile.Modality != "2" || cfg.Reconcile.AmountTolerance.String() != "0.01" || !cfg.Reconcile.CompareCustomerName {
		t.Fatalf("unexpected reconcile defaults %+v", cfg.Reconcile)
	}
	if cfg.Sync.BatchSize != 100 || cfg.Sync.Timeout != 300*time.Second || cfg.Sync.AmountTolerancePct != 0.5 || cfg.Sync.AuditRuns {
		t.Fatalf("unexpected sync defaults %+v", cfg.Sync)
	}
	if cfg.IsLedgerConfigured() {
		t.Fatalf("ledger must not be configured without credentials")
	}
	if cfg.Ledger.Port != "3306" {
		t.Fatalf("expected default port 3306, got %q", cfg.Ledger.Port)
	}
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
log_level: debug
reconcile:
  modality: "1"
  amount_tolerance: "0.05"
  compare_customer_name: false
sync:
  batch_size: 50
  timeout_seconds: 60
  amount_tolerance_pct: 1.5
report:
  dir: /tmp/out
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SAS_SYNC_BATCH_SIZE", "25")
	t.Setenv("SYNC_RUN_AUDIT", "yes")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Reconcile.Modality != "1" || cfg.Reconcile.AmountTolerance.String() != "0.05" || cfg.Reconcile.CompareCustomerName {
		t.Fatalf("file overlay not applied: %+v", cfg.Reconcile)
	}
	if cfg.Sync.BatchSize != 25 {
		t.Fatalf("env should win over file, got batch size %d", cfg.Sync.BatchSize)
	}
	if cfg.Sync.Timeout != time.Minute || cfg.Sync.AmountTolerancePct != 1.5 || !cfg.Sync.AuditRuns {
		t.Fatalf("unexpected sync config %+v", cfg.Sync)
	}
	if cfg.Output.ReportDir != "/tmp/out" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected output/log config %+v %s", cfg.Output, cfg.LogLevel)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECONCILE_AMOUNT_TOLERANCE", "abc")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for a non-numeric tolerance")
	}

	t.Setenv("RECONCILE_AMOUNT_TOLERANCE", "")
	t.Setenv("SAS_SYNC_BATCH_SIZE", "-1")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for a negative batch size")
	}
}

func TestLedgerConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv("SAS_DB_HOST", "10.0.0.5")
	t.Setenv("SAS_DB_NAME", "sas")
	t.Setenv("SAS_DB_USER", "sync")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IsLedgerConfigured() {
		t.Fatalf("a missing password must leave the ledger unconfigured")
	}

	t.Setenv("SAS_DB_PASSWORD", "secret")
	cfg, _ = Load("")
	if !cfg.IsLedgerConfigured() {
		t.Fatalf("expected ledger to be configured")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db.local", Port: "3307", Name: "sas", User: "u", Password: "p@ss"}
	dsn := d.DSN()
	for _, want := range []string{"u:p@ss@tcp(db.local:3307)/sas", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q does not contain %q", dsn, want)
		}
	}

	d.Host = "/cloudsql/proj:region:inst"
	if dsn := d.DSN(); !strings.Contains(dsn, "@unix(/cloudsql/proj:region:inst)/sas") {
		t.Fatalf("expected unix socket dsn, got %q", dsn)
	}
}

func TestFlagFromEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"TRUE", false, true},
		{"y", false, true},
		{"0", true, false},
		{"off", true, false},
	}
	for _, c := range cases {
		t.Setenv("SYNC_RUN_AUDIT", c.value)
		if got := SyncRunAuditEnabled(c.def); got != c.want {
			t.Fatalf("SYNC_RUN_AUDIT=%q def=%v: got %v", c.value, c.def, got)
		}
	}
}
