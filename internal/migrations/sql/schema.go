package sql

import (
	"context"
	"database/sql"
	"fmt"

	"hotelops/internal/migrations"
	"hotelops/internal/slots/repository"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + repository.TableName + ` (
		id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		slot_number  INTEGER      NOT NULL CHECK (slot_number > 0),
		occupant_ref VARCHAR(64)  NOT NULL,
		allocated_at TIMESTAMPTZ  NOT NULL,
		released_at  TIMESTAMPTZ  NULL,
		CHECK (released_at IS NULL OR released_at >= allocated_at)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + repository.ActiveSlotIndexName + `
		ON ` + repository.TableName + ` (slot_number)
		WHERE released_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_slot_allocations_latest
		ON ` + repository.TableName + ` (slot_number, allocated_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_slot_allocations_log
		ON ` + repository.TableName + ` (allocated_at DESC, id DESC)`,
}

// go-sqlite3 only converts columns declared as DATE, DATETIME or TIMESTAMP
// back into time.Time.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + repository.TableName + ` (
		id           INTEGER   PRIMARY KEY AUTOINCREMENT,
		slot_number  INTEGER   NOT NULL CHECK (slot_number > 0),
		occupant_ref TEXT      NOT NULL,
		allocated_at TIMESTAMP NOT NULL,
		released_at  TIMESTAMP NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + repository.ActiveSlotIndexName + `
		ON ` + repository.TableName + ` (slot_number)
		WHERE released_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_slot_allocations_latest
		ON ` + repository.TableName + ` (slot_number, allocated_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_slot_allocations_log
		ON ` + repository.TableName + ` (allocated_at DESC, id DESC)`,
}

// Statements returns the DDL for dialect. Every statement is idempotent.
func Statements(dialect string) ([]string, error) {
	switch dialect {
	case repository.DialectPostgres:
		return postgresSchema, nil
	case repository.DialectSQLite:
		return sqliteSchema, nil
	default:
		return nil, fmt.Errorf("unsupported SQL dialect: %s", dialect)
	}
}

// Migrate applies the allocation schema inside one transaction.
func Migrate(ctx context.Context, db *sql.DB, dialect string, report *migrations.Reporter) error {
	statements, err := Statements(dialect)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	if report != nil {
		report.Successf("Applied %d %s statements to %s", len(statements), dialect, repository.TableName)
	}
	return nil
}
