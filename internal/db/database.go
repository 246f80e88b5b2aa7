package db

import (
	"context"
	"os"

	"github.com/chris/hbrowse/pkg/models"
)

// Database is the common interface for both DB and ZDB
type Database interface {
	Close() error
	Path() string
	SchemaVersion() (int, error)
	InsertEntry(e *models.Entry) (int64, error)
	GetEntry(id int64) (*models.Entry, error)
	CountEntries(mapset string) (int, error)
	LoadEntries(ctx context.Context, mapset string) ([]models.Entry, error)
	ListMapsets() ([]string, error)
}

var (
	_ Database = (*DB)(nil)
	_ Database = (*ZDB)(nil)
)

// ImplEnv selects the database implementation.
// HBROWSE_DB_IMPL=zombiezen uses ZDB (zombiezen.com/go/sqlite);
// anything else uses DB (modernc.org/sqlite).
const ImplEnv = "HBROWSE_DB_IMPL"

// DbType returns the implementation name selected by ImplEnv
func DbType() string {
	if os.Getenv(ImplEnv) == "zombiezen" {
		return "zombiezen"
	}
	return "modernc"
}

// Open opens the history log with the implementation selected by ImplEnv
func Open(dbPath string) (Database, error) {
	if DbType() == "zombiezen" {
		return NewZ(dbPath)
	}
	return New(dbPath)
}
