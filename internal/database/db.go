package database

import (
	"context"
	"embed"
	"fmt"
	"net/url"
	"strings"
	"time"

	// Internal schema bootstrap
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var bootstrapFS embed.FS

// DB wraps the Postgres database connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	MaxConns int32  `mapstructure:"maxconns"`
}

// DSN returns the postgres connection string for this configuration.
// The password is URL-encoded to handle special characters (/, +, =, etc.)
func (cfg Config) DSN() string {
	encodedPassword := url.QueryEscape(cfg.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, encodedPassword, cfg.Host, cfg.Port, cfg.Name)
}

// NewDB creates a new database connection pool and bootstraps the internal
// schema (migration ledger) from the embedded migration set.
func NewDB(cfg Config) (*DB, error) {
	return connect(cfg.DSN(), cfg.MaxConns)
}

// Connect opens a pool from a raw connection string and bootstraps the
// internal schema, same as NewDB.
func Connect(dsn string) (*DB, error) {
	return connect(dsn, 0)
}

func connect(dsn string, maxConns int32) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := bootstrap(dsn); err != nil {
		pool.Close()
		return nil, err
	}

	return &DB{Pool: pool}, nil
}

// bootstrap applies the embedded internal migrations (ledger table etc.).
// Caller-namespace migrations are handled by the migration executor, not here.
func bootstrap(dsn string) error {
	src, err := iofs.New(bootstrapFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dsn))
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return fmt.Errorf("failed to close migration source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close migration connection: %w", dbErr)
	}
	return nil
}

// migrateURL rewrites a postgres connection URL onto the scheme that
// selects golang-migrate's pgx/v5 driver.
func migrateURL(dsn string) string {
	trimmed := strings.TrimPrefix(dsn, "postgresql://")
	trimmed = strings.TrimPrefix(trimmed, "postgres://")
	return "pgx5://" + trimmed
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}
