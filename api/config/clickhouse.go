package config

import (
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pressly/goose/v3"

	"github.com/meridianlabs/dealdesk/utils/pkg/retry"
)

//go:embed chmigrations/*.sql
var chMigrations embed.FS

// CHConn is the global ClickHouse connection ("events" store). The driver
// maintains its own connection pool behind this handle.
var CHConn driver.Conn

type chConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Secure   bool
}

func loadCHConfig() chConfig {
	cfg := chConfig{
		Addr:     os.Getenv("CLICKHOUSE_ADDR"),
		Database: os.Getenv("CLICKHOUSE_DATABASE"),
		Username: os.Getenv("CLICKHOUSE_USERNAME"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Secure:   os.Getenv("CLICKHOUSE_SECURE") == "true",
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:9000"
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	return cfg
}

func chOptions(cfg chConfig) *clickhouse.Options {
	options := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
	}
	// TLS for ClickHouse Cloud (port 9440)
	if cfg.Secure {
		options.TLS = &tls.Config{}
	}
	return options
}

// LoadClickHouse initializes the ClickHouse connection for the events store.
// Connectivity failures during startup are retried with backoff.
func LoadClickHouse(ctx context.Context, log *slog.Logger) error {
	cfg := loadCHConfig()

	log.Info("connecting to ClickHouse", "addr", cfg.Addr, "database", cfg.Database, "secure", cfg.Secure)

	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		conn, err := clickhouse.Open(chOptions(cfg))
		if err != nil {
			return fmt.Errorf("failed to open ClickHouse connection: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := conn.Ping(pingCtx); err != nil {
			conn.Close()
			return fmt.Errorf("failed to ping ClickHouse: %w", err)
		}
		CHConn = conn
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("connected to ClickHouse")

	if os.Getenv("CLICKHOUSE_RUN_MIGRATIONS") == "true" {
		if err := runCHMigrations(log, cfg); err != nil {
			return fmt.Errorf("failed to run ClickHouse migrations: %w", err)
		}
	}

	return nil
}

// runCHMigrations runs events-store migrations using goose's clickhouse
// dialect over the driver's database/sql adapter.
func runCHMigrations(log *slog.Logger, cfg chConfig) error {
	log.Info("running ClickHouse migrations")

	db := clickhouse.OpenDB(chOptions(cfg))
	defer db.Close()

	goose.SetLogger(newGooseLogger(log))
	goose.SetBaseFS(chMigrations)

	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "chmigrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("ClickHouse migrations completed")
	return nil
}

// CloseClickHouse closes the ClickHouse connection.
func CloseClickHouse() {
	if CHConn != nil {
		_ = CHConn.Close()
	}
}
