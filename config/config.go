package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModality           = "2"
	DefaultReconcileTolerance = "0.01"
	DefaultSyncBatchSize      = 100
	DefaultSyncTimeoutSeconds = 300
	DefaultSyncTolerancePct   = 0.5
	DefaultReportDir          = "./reports"
	DefaultLogLevel           = "info"
)

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectAttempts int
}

// Configured reports whether enough is set to attempt a connection.
func (d DatabaseConfig) Configured() bool {
	return d.Host != "" && d.Name != "" && d.User != "" && d.Password != ""
}

type ReconcileConfig struct {
	Modality            string
	AmountTolerance     decimal.Decimal
	CompareCustomerName bool
}

type SyncConfig struct {
	BatchSize          int
	Timeout            time.Duration
	AmountTolerancePct float64
	AuditRuns          bool
}

type OutputConfig struct {
	ReportDir          string
	ReportBucket       string
	GCSCredentialsJSON string

	PubSubProjectID       string
	PubSubCredentialsJSON string
	SyncEventsTopic       string
}

// Config is resolved once per process and passed by value.
type Config struct {
	Inventory DatabaseConfig
	Ledger    DatabaseConfig
	Reconcile ReconcileConfig
	Sync      SyncConfig
	Output    OutputConfig
	LogLevel  string
}

func (c Config) IsLedgerConfigured() bool {
	return c.Ledger.Configured()
}

func (c Config) IsInventoryConfigured() bool {
	return c.Inventory.Configured()
}

// fileConfig is the optional YAML overlay. Unset keys keep their defaults.
type fileConfig struct {
	LogLevel  *string `yaml:"log_level"`
	Reconcile struct {
		Modality            *string `yaml:"modality"`
		AmountTolerance     *string `yaml:"amount_tolerance"`
		CompareCustomerName *bool   `yaml:"compare_customer_name"`
	} `yaml:"reconcile"`
	Sync struct {
		BatchSize          *int     `yaml:"batch_size"`
		TimeoutSeconds     *int     `yaml:"timeout_seconds"`
		AmountTolerancePct *float64 `yaml:"amount_tolerance_pct"`
		AuditRuns          *bool    `yaml:"audit_runs"`
	} `yaml:"sync"`
	Report struct {
		Dir       *string `yaml:"dir"`
		GCSBucket *string `yaml:"gcs_bucket"`
	} `yaml:"report"`
}

// Load reads .env, then the YAML file at path when path is not empty, then
// the process environment. Environment variables win over the file.
func Load(path string) (Config, error) {
	godotenv.Load()

	cfg := defaults()
	if path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := overlayEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Reconcile: ReconcileConfig{
			Modality:            DefaultModality,
			AmountTolerance:     decimal.RequireFromString(DefaultReconcileTolerance),
			CompareCustomerName: true,
		},
		Sync: SyncConfig{
			BatchSize:          DefaultSyncBatchSize,
			Timeout:            DefaultSyncTimeoutSeconds * time.Second,
			AmountTolerancePct: DefaultSyncTolerancePct,
		},
		Output:   OutputConfig{ReportDir: DefaultReportDir},
		LogLevel: DefaultLogLevel,
	}
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if v := fc.Reconcile.Modality; v != nil {
		cfg.Reconcile.Modality = *v
	}
	if v := fc.Reconcile.AmountTolerance; v != nil {
		d, err := decimal.NewFromString(*v)
		if err != nil {
			return fmt.Errorf("reconcile.amount_tolerance: %w", err)
		}
		cfg.Reconcile.AmountTolerance = d
	}
	if v := fc.Reconcile.CompareCustomerName; v != nil {
		cfg.Reconcile.CompareCustomerName = *v
	}
	if v := fc.Sync.BatchSize; v != nil {
		cfg.Sync.BatchSize = *v
	}
	if v := fc.Sync.TimeoutSeconds; v != nil {
		cfg.Sync.Timeout = time.Duration(*v) * time.Second
	}
	if v := fc.Sync.AmountTolerancePct; v != nil {
		cfg.Sync.AmountTolerancePct = *v
	}
	if v := fc.Sync.AuditRuns; v != nil {
		cfg.Sync.AuditRuns = *v
	}
	if v := fc.Report.Dir; v != nil {
		cfg.Output.ReportDir = *v
	}
	if v := fc.Report.GCSBucket; v != nil {
		cfg.Output.ReportBucket = *v
	}
	return nil
}

func overlayEnv(cfg *Config) error {
	cfg.Inventory = databaseFromEnv("DB_")
	cfg.Ledger = databaseFromEnv("SAS_DB_")

	if v := stringFromEnv("RECONCILE_MODALITY"); v != "" {
		cfg.Reconcile.Modality = v
	}
	if v := stringFromEnv("RECONCILE_AMOUNT_TOLERANCE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("RECONCILE_AMOUNT_TOLERANCE: %w", err)
		}
		cfg.Reconcile.AmountTolerance = d
	}
	cfg.Reconcile.CompareCustomerName = CompareCustomerNameEnabled(cfg.Reconcile.CompareCustomerName)

	cfg.Sync.BatchSize = intFromEnv("SAS_SYNC_BATCH_SIZE", cfg.Sync.BatchSize)
	cfg.Sync.Timeout = time.Duration(intFromEnv("SAS_SYNC_TIMEOUT", int(cfg.Sync.Timeout/time.Second))) * time.Second
	cfg.Sync.AmountTolerancePct = floatFromEnv("SAS_SYNC_AMOUNT_TOLERANCE_PCT", cfg.Sync.AmountTolerancePct)
	cfg.Sync.AuditRuns = SyncRunAuditEnabled(cfg.Sync.AuditRuns)

	if v := stringFromEnv("REPORT_DIR"); v != "" {
		cfg.Output.ReportDir = v
	}
	if v := stringFromEnv("REPORT_GCS_BUCKET"); v != "" {
		cfg.Output.ReportBucket = v
	}
	cfg.Output.GCSCredentialsJSON = os.Getenv("GCS_CREDENTIALS_JSON")
	cfg.Output.PubSubProjectID = pubSubProjectID()
	cfg.Output.PubSubCredentialsJSON = os.Getenv("PUBSUB_CREDENTIALS_JSON")
	cfg.Output.SyncEventsTopic = stringFromEnv("SYNC_EVENTS_TOPIC")

	if v := stringFromEnv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

func databaseFromEnv(prefix string) DatabaseConfig {
	port := stringFromEnv(prefix + "PORT")
	if port == "" {
		port = "3306"
	}
	return DatabaseConfig{
		Host:            stringFromEnv(prefix + "HOST"),
		Port:            port,
		Name:            stringFromEnv(prefix + "NAME"),
		User:            stringFromEnv(prefix + "USER"),
		Password:        os.Getenv(prefix + "PASSWORD"),
		MaxOpenConns:    intFromEnv("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    intFromEnv("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		ConnMaxIdleTime: time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second,
		ConnectAttempts: intFromEnv("DB_CONNECT_ATTEMPTS", 3),
	}
}

func validate(cfg Config) error {
	if cfg.Reconcile.AmountTolerance.IsNegative() {
		return fmt.Errorf("reconcile amount tolerance must not be negative")
	}
	if cfg.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync batch size must be positive, got %d", cfg.Sync.BatchSize)
	}
	if cfg.Sync.Timeout <= 0 {
		return fmt.Errorf("sync timeout must be positive")
	}
	if cfg.Sync.AmountTolerancePct < 0 {
		return fmt.Errorf("sync amount tolerance must not be negative")
	}
	return nil
}

func pubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return os.Getenv("GCP_PROJECT")
}

func stringFromEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
