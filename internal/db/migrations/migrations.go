package migrations

import (
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed 001_initial_schema.sql
var initialSchemaSQL string

//go:embed 002_indexes.sql
var indexesSQL string

// All contains all migrations in order. Each migration's index+1 is its version number.
var All = []string{
	initialSchemaSQL, // version 1
	indexesSQL,       // version 2
}

// Latest returns the schema version reached after all migrations ran
func Latest() int {
	return len(All)
}

// Migrate brings the history log schema up to Latest.
// The current version lives in PRAGMA user_version; every pending migration
// runs in its own transaction and the first failure stops the run.
func Migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i := version; i < len(All); i++ {
		if err := apply(db, i); err != nil {
			return err
		}
	}

	return nil
}

func apply(db *sql.DB, i int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", i+1, err)
	}

	if _, err := tx.Exec(All[i]); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d failed: %w", i+1, err)
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to set schema version to %d: %w", i+1, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", i+1, err)
	}
	return nil
}
