package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/chris/hbrowse/internal/db/migrations"
	"github.com/chris/hbrowse/pkg/models"
)

const defaultDBPath = "~/.local/share/hbrowse/history.db"

// ErrNotFound is returned when an entry id does not exist
var ErrNotFound = errors.New("entry not found")

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	path string
}

// Options configures database connection behavior
type Options struct {
	// SkipSchemaCheck opens the database without verifying schema exists.
	// Use this for init-db command which creates the schema.
	SkipSchemaCheck bool
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	return NewWithOptions(dbPath, Options{})
}

// ResolvePath expands the default location and a leading tilde
func ResolvePath(dbPath string) (string, error) {
	if dbPath == "" || dbPath == defaultDBPath {
		// Use XDG_DATA_HOME if set, otherwise fallback to ~/.local/share
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get user home directory: %w", err)
			}
			dataDir = filepath.Join(home, ".local/share")
		}
		return filepath.Join(dataDir, "hbrowse/history.db"), nil
	}
	if dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		return filepath.Join(home, dbPath[1:]), nil
	}
	return dbPath, nil
}

// NewWithOptions creates a new database connection with configurable options
func NewWithOptions(dbPath string, opts Options) (*DB, error) {
	dbPath, err := ResolvePath(dbPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set busy timeout first, before any other operations that might need write locks
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if !opts.SkipSchemaCheck {
		var version int
		if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to check schema version: %w", err)
		}
		if version == 0 {
			conn.Close()
			return nil, fmt.Errorf("database not initialized, run: hbrowse init-db")
		}
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// NewForTesting creates a new database with schema initialized.
// This is a convenience function for tests.
func NewForTesting(dbPath string) (*DB, error) {
	db, err := NewWithOptions(dbPath, Options{SkipSchemaCheck: true})
	if err != nil {
		return nil, err
	}

	if _, err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// InitSchema runs pending migrations.
// Returns true if the schema was created, false if it already existed.
func (db *DB) InitSchema() (bool, error) {
	var version int
	if err := db.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return false, fmt.Errorf("failed to check schema version: %w", err)
	}

	if err := migrations.Migrate(db.conn); err != nil {
		return false, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return version == 0, nil
}

// getOrCreateMapset returns the ID for a mapset, creating it if needed
func (db *DB) getOrCreateMapset(name string) (int64, error) {
	var id int64
	err := db.conn.QueryRow("SELECT id FROM mapsets WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to query mapset: %w", err)
	}

	result, err := db.conn.Exec("INSERT INTO mapsets (name) VALUES (?)", name)
	if err != nil {
		// Handle race condition - another connection may have inserted
		err2 := db.conn.QueryRow("SELECT id FROM mapsets WHERE name = ?", name).Scan(&id)
		if err2 == nil {
			return id, nil
		}
		return 0, fmt.Errorf("failed to insert mapset: %w", err)
	}

	return result.LastInsertId()
}

// InsertEntry appends an entry to the log and returns its id
func (db *DB) InsertEntry(e *models.Entry) (int64, error) {
	if e.Command == "" {
		return 0, fmt.Errorf("failed to insert entry: empty command")
	}
	status := e.Status
	if status == "" {
		status = models.StatusUnknown
	}

	mapsetID, err := db.getOrCreateMapset(e.Mapset)
	if err != nil {
		return 0, fmt.Errorf("failed to get mapset_id: %w", err)
	}

	result, err := db.conn.Exec(
		`INSERT INTO entries (timestamp, mapset_id, command_text, status, runtime)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Timestamp, mapsetID, e.Command, string(status), e.Runtime,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get entry id: %w", err)
	}
	return id, nil
}

// entrySelect is the common SELECT clause for entry queries
const entrySelect = `
	SELECT e.id, e.timestamp, m.name, e.command_text, e.status, e.runtime
	FROM entries e
	JOIN mapsets m ON e.mapset_id = m.id
`

func scanEntry(scanner interface{ Scan(...any) error }) (*models.Entry, error) {
	e := &models.Entry{}
	var status string
	if err := scanner.Scan(&e.ID, &e.Timestamp, &e.Mapset, &e.Command, &status, &e.Runtime); err != nil {
		return nil, err
	}
	e.Status = models.Status(status)
	return e, nil
}

// GetEntry retrieves an entry by ID
func (db *DB) GetEntry(id int64) (*models.Entry, error) {
	e, err := scanEntry(db.conn.QueryRow(entrySelect+" WHERE e.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %d: %w", id, err)
	}
	return e, nil
}

// CountEntries returns the number of entries in a mapset, or in the whole log
// when mapset is empty
func (db *DB) CountEntries(mapset string) (int, error) {
	var count int
	var err error
	if mapset == "" {
		err = db.conn.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count)
	} else {
		err = db.conn.QueryRow(
			"SELECT COUNT(*) FROM entries e JOIN mapsets m ON e.mapset_id = m.id WHERE m.name = ?",
			mapset,
		).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// LoadEntries returns every entry of the mapset in log order (oldest first).
// An empty mapset loads the whole log.
func (db *DB) LoadEntries(ctx context.Context, mapset string) ([]models.Entry, error) {
	var rows *sql.Rows
	var err error
	if mapset == "" {
		rows, err = db.conn.QueryContext(ctx, entrySelect+" ORDER BY e.id ASC")
	} else {
		rows, err = db.conn.QueryContext(ctx, entrySelect+" WHERE m.name = ? ORDER BY e.id ASC", mapset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	return entries, nil
}

// ListMapsets returns the names of all mapsets that have history, sorted by name
func (db *DB) ListMapsets() ([]string, error) {
	rows, err := db.conn.Query("SELECT name FROM mapsets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query mapsets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan mapset: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SchemaVersion returns the value of PRAGMA user_version
func (db *DB) SchemaVersion() (int, error) {
	var version int
	if err := db.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to check schema version: %w", err)
	}
	return version, nil
}
