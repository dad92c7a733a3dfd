package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/noah-isme/leadflow-api/pkg/config"
)

// Open returns a pooled sqlx handle for the configured SQL driver.
func Open(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.Persistence.Driver {
	case config.DriverPostgres:
		return NewPostgres(cfg.Database)
	case config.DriverSQLite:
		return NewSQLite(cfg.Persistence.SQLitePath)
	default:
		return nil, fmt.Errorf("driver %q is not backed by SQL", cfg.Persistence.Driver)
	}
}

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// NewSQLite opens a file backed SQLite database. A single connection keeps
// writers serialised, which SQLite requires anyway.
func NewSQLite(path string) (*sqlx.DB, error) {
	if path == "" {
		path = "leadflow.db"
	}
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
