// Package db persists survey runs: imported ground truth, reconciliation
// results, and their match records, in a local SQLite database.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL handle with the survey-specific queries.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the SQLite database at path. Callers
// should run MigrateUp before issuing queries.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; queue instead of failing on contention.
	if _, err := conn.Exec(`PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return &DB{conn}, nil
}
