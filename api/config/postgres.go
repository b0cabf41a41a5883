package config

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver with database/sql
	"github.com/pressly/goose/v3"

	"github.com/meridianlabs/dealdesk/utils/pkg/retry"
)

//go:embed migrations/*.sql
var pgMigrations embed.FS

// PgPool is the global PostgreSQL connection pool ("primary" store).
var PgPool *pgxpool.Pool

// PgConfig holds the PostgreSQL configuration.
type PgConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
}

var pgCfg PgConfig

// LoadPostgres initializes the PostgreSQL connection pool for the primary
// store. Connectivity failures during startup are retried with backoff.
func LoadPostgres(ctx context.Context, log *slog.Logger) error {
	pgCfg.Host = os.Getenv("POSTGRES_HOST")
	if pgCfg.Host == "" {
		pgCfg.Host = "localhost"
	}

	pgCfg.Port = os.Getenv("POSTGRES_PORT")
	if pgCfg.Port == "" {
		pgCfg.Port = "5432"
	}

	pgCfg.Database = os.Getenv("POSTGRES_DB")
	if pgCfg.Database == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	pgCfg.Username = os.Getenv("POSTGRES_USER")
	if pgCfg.Username == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}

	pgCfg.Password = os.Getenv("POSTGRES_PASSWORD")
	if pgCfg.Password == "" {
		return fmt.Errorf("POSTGRES_PASSWORD is required")
	}

	sslMode := os.Getenv("POSTGRES_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		pgCfg.Username, pgCfg.Password, pgCfg.Host, pgCfg.Port, pgCfg.Database, sslMode,
	)

	log.Info("connecting to PostgreSQL",
		"host", pgCfg.Host, "port", pgCfg.Port, "database", pgCfg.Database, "username", pgCfg.Username)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		if err != nil {
			return fmt.Errorf("failed to create postgres pool: %w", err)
		}
		if err := pool.Ping(connectCtx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to ping postgres: %w", err)
		}
		PgPool = pool
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("connected to PostgreSQL")

	// Run migrations only if explicitly enabled
	if os.Getenv("POSTGRES_RUN_MIGRATIONS") == "true" {
		if err := runPgMigrations(log, connStr); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return nil
}

// runPgMigrations runs primary-store migrations using goose.
func runPgMigrations(log *slog.Logger, connStr string) error {
	log.Info("running PostgreSQL migrations")

	goose.SetLogger(newGooseLogger(log))
	goose.SetBaseFS(pgMigrations)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("PostgreSQL migrations completed")
	return nil
}

// ClosePostgres closes the PostgreSQL connection pool.
func ClosePostgres() {
	if PgPool != nil {
		PgPool.Close()
	}
}
