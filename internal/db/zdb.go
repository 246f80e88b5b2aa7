package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/chris/hbrowse/internal/db/migrations"
	"github.com/chris/hbrowse/pkg/models"
)

// ZDB wraps the zombiezen SQLite database connection.
// A ZDB is not safe for concurrent use.
type ZDB struct {
	conn *sqlite.Conn
	path string
}

// NewZ opens a database using zombiezen.com/go/sqlite and migrates the schema
func NewZ(dbPath string) (*ZDB, error) {
	dbPath, err := ResolvePath(dbPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sqlite.OpenConn(dbPath, sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout=5000", nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	zdb := &ZDB{conn: conn, path: dbPath}
	if err := zdb.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return zdb, nil
}

// migrate applies the same migrations as DB.InitSchema
func (zdb *ZDB) migrate() error {
	version, err := zdb.SchemaVersion()
	if err != nil {
		return err
	}

	for i := version; i < len(migrations.All); i++ {
		if err := zdb.applyMigration(i); err != nil {
			return err
		}
	}
	return nil
}

func (zdb *ZDB) applyMigration(i int) (err error) {
	defer sqlitex.Save(zdb.conn)(&err)

	if err := sqlitex.ExecuteScript(zdb.conn, migrations.All[i], nil); err != nil {
		return fmt.Errorf("migration %d failed: %w", i+1, err)
	}
	if err := sqlitex.ExecuteTransient(zdb.conn, fmt.Sprintf("PRAGMA user_version = %d", i+1), nil); err != nil {
		return fmt.Errorf("failed to set schema version to %d: %w", i+1, err)
	}
	return nil
}

// Close closes the database connection
func (zdb *ZDB) Close() error {
	return zdb.conn.Close()
}

// Path returns the database file path
func (zdb *ZDB) Path() string {
	return zdb.path
}

// SchemaVersion returns the value of PRAGMA user_version
func (zdb *ZDB) SchemaVersion() (int, error) {
	var version int
	err := sqlitex.ExecuteTransient(zdb.conn, "PRAGMA user_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to check schema version: %w", err)
	}
	return version, nil
}

func (zdb *ZDB) getOrCreateMapset(name string) (int64, error) {
	var id int64
	found := false
	err := sqlitex.Execute(zdb.conn, "SELECT id FROM mapsets WHERE name = ?", &sqlitex.ExecOptions{
		Args: []any{name},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id = stmt.ColumnInt64(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query mapset: %w", err)
	}
	if found {
		return id, nil
	}

	if err := sqlitex.Execute(zdb.conn, "INSERT INTO mapsets (name) VALUES (?)", &sqlitex.ExecOptions{
		Args: []any{name},
	}); err != nil {
		return 0, fmt.Errorf("failed to insert mapset: %w", err)
	}
	return zdb.conn.LastInsertRowID(), nil
}

// InsertEntry appends an entry to the log and returns its id
func (zdb *ZDB) InsertEntry(e *models.Entry) (int64, error) {
	if e.Command == "" {
		return 0, fmt.Errorf("failed to insert entry: empty command")
	}
	status := e.Status
	if status == "" {
		status = models.StatusUnknown
	}

	mapsetID, err := zdb.getOrCreateMapset(e.Mapset)
	if err != nil {
		return 0, fmt.Errorf("failed to get mapset_id: %w", err)
	}

	var runtime any
	if e.Runtime != nil {
		runtime = *e.Runtime
	}

	err = sqlitex.Execute(zdb.conn,
		`INSERT INTO entries (timestamp, mapset_id, command_text, status, runtime)
		 VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{e.Timestamp, mapsetID, e.Command, string(status), runtime},
		})
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}

	return zdb.conn.LastInsertRowID(), nil
}

// GetEntry retrieves an entry by ID
func (zdb *ZDB) GetEntry(id int64) (*models.Entry, error) {
	var found *models.Entry
	err := sqlitex.Execute(zdb.conn, entrySelect+" WHERE e.id = ?", &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = zdb.scanEntry(stmt)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %d: %w", id, err)
	}
	if found == nil {
		return nil, fmt.Errorf("failed to get entry %d: %w", id, ErrNotFound)
	}
	return found, nil
}

// CountEntries returns the number of entries in a mapset, or in the whole log
// when mapset is empty
func (zdb *ZDB) CountEntries(mapset string) (int, error) {
	query := "SELECT COUNT(*) FROM entries"
	var args []any
	if mapset != "" {
		query = "SELECT COUNT(*) FROM entries e JOIN mapsets m ON e.mapset_id = m.id WHERE m.name = ?"
		args = []any{mapset}
	}

	var count int
	err := sqlitex.Execute(zdb.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// LoadEntries returns every entry of the mapset in log order (oldest first).
// Cancelling ctx interrupts the running query.
func (zdb *ZDB) LoadEntries(ctx context.Context, mapset string) ([]models.Entry, error) {
	zdb.conn.SetInterrupt(ctx.Done())
	defer zdb.conn.SetInterrupt(nil)

	query := entrySelect + " ORDER BY e.id ASC"
	var args []any
	if mapset != "" {
		query = entrySelect + " WHERE m.name = ? ORDER BY e.id ASC"
		args = []any{mapset}
	}

	var entries []models.Entry
	err := sqlitex.Execute(zdb.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entries = append(entries, *zdb.scanEntry(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	return entries, nil
}

// ListMapsets returns the names of all mapsets that have history, sorted by name
func (zdb *ZDB) ListMapsets() ([]string, error) {
	var names []string
	err := sqlitex.Execute(zdb.conn, "SELECT name FROM mapsets ORDER BY name", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			names = append(names, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query mapsets: %w", err)
	}
	return names, nil
}

func (zdb *ZDB) scanEntry(stmt *sqlite.Stmt) *models.Entry {
	e := &models.Entry{
		ID:        stmt.ColumnInt64(0),
		Timestamp: stmt.ColumnInt64(1),
		Mapset:    stmt.ColumnText(2),
		Command:   stmt.ColumnText(3),
		Status:    models.Status(stmt.ColumnText(4)),
	}

	if stmt.ColumnType(5) != sqlite.TypeNull {
		runtime := stmt.ColumnInt64(5)
		e.Runtime = &runtime
	}

	return e
}
