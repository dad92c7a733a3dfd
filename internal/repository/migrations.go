package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var leadMigrations = []string{
	`CREATE TABLE IF NOT EXISTS leads (
        id TEXT PRIMARY KEY,
        position INTEGER NOT NULL,
        student_name TEXT NOT NULL,
        phone_number TEXT NOT NULL,
        inquiry_date {{ts}} NOT NULL,
        course_selected TEXT NOT NULL,
        stage TEXT NOT NULL,
        origin TEXT NOT NULL,
        assigned_to TEXT NULL,
        last_updated {{ts}} NULL,
        remarks TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE TABLE IF NOT EXISTS lead_history (
        lead_id TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
        position INTEGER NOT NULL,
        entry_type TEXT NOT NULL,
        content TEXT NOT NULL,
        recorded_at {{ts}} NOT NULL,
        author TEXT NOT NULL,
        from_stage TEXT NULL,
        to_stage TEXT NULL,
        PRIMARY KEY (lead_id, position)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_leads_assigned_to ON leads (assigned_to)`,
}

// EnsureSchema applies the lead schema idempotently for postgres or sqlite.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	ts := "TIMESTAMP"
	if db.DriverName() == "postgres" {
		ts = "TIMESTAMPTZ"
	}
	for i, stmt := range leadMigrations {
		if _, err := db.ExecContext(ctx, strings.ReplaceAll(stmt, "{{ts}}", ts)); err != nil {
			return fmt.Errorf("apply lead migration %d: %w", i+1, err)
		}
	}
	return nil
}
