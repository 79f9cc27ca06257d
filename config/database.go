package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"time"

	drivermysql "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var ErrDatabaseNotConfigured = errors.New("database is not configured")

// DSN builds the driver connection string. A host of the form
// "/cloudsql/<CONNECTION_NAME>" connects through the Cloud SQL unix socket.
func (d DatabaseConfig) DSN() string {
	c := drivermysql.NewConfig()
	c.User = d.User
	c.Passwd = d.Password
	c.DBName = d.Name
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(d.Host, d.Port)
	if strings.HasPrefix(d.Host, "/cloudsql/") {
		c.Net = "unix"
		c.Addr = d.Host
	}
	c.ParseTime = true
	c.Loc = time.UTC
	c.MultiStatements = true
	c.Timeout = 10 * time.Second
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// OpenDB connects with exponential backoff, giving up after d.ConnectAttempts.
func OpenDB(ctx context.Context, d DatabaseConfig, logg *logrus.Logger) (*gorm.DB, error) {
	if !d.Configured() {
		return nil, ErrDatabaseNotConfigured
	}
	attempts := d.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := connect(ctx, d)
		if err == nil {
			logg.WithFields(logrus.Fields{
				"module":  "config",
				"host":    d.Host,
				"db":      d.Name,
				"attempt": attempt,
			}).Info("connected to database")
			return db, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logg.WithFields(logrus.Fields{
			"module":  "config",
			"host":    d.Host,
			"attempt": attempt,
		}).Warnf("failed to connect database: %v; retrying in %s", err, sleep)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, fmt.Errorf("connect %s@%s/%s after %d attempts: %w", d.User, d.Host, d.Name, attempts, lastErr)
}

func connect(ctx context.Context, d DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(d.DSN()), initConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if d.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(d.MaxOpenConns)
	}
	if d.MaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(d.MaxIdleConns)
	}
	if d.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(d.ConnMaxLifetime)
	}
	if d.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(d.ConnMaxIdleTime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
		log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
	}
	return db, nil
}

// CloseDB releases the pool behind db. A nil db is a no-op.
func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         writeGormLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}

// writeGormLog sends every statement to the file named by GORM_LOG, if set.
func writeGormLog() logger.Interface {
	logFile := os.Getenv("GORM_LOG")
	if logFile == "" {
		return initLog()
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return initLog()
	}
	return logger.New(log.New(io.MultiWriter(f), "\r\n", log.LstdFlags), logger.Config{
		Colorful:      false,
		LogLevel:      logger.Info,
		SlowThreshold: time.Second,
	})
}
