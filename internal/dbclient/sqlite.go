package dbclient

import (
	"fmt"

	_ "modernc.org/sqlite"

	"sfetl/internal/etl"
)

// newSQLiteConnector creates a connector for a SQLite target file, named by
// the database field (host is accepted as a fallback).
func newSQLiteConnector(cfg etl.TargetDB) (*sqlConnector, error) {
	path := cfg.Database
	if path == "" {
		path = cfg.Host
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite target: database path is required")
	}
	return newSQLConnector(DriverSQLite, "file:"+path+"?_pragma=busy_timeout(5000)")
}
