package dbclient

import (
	"context"
	"fmt"

	"sfetl/internal/etl"
)

// Supported target drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SchemaInfo contains the target database schema.
type SchemaInfo struct {
	Tables []TableInfo `json:"tables"`
}

// TableInfo describes a table.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnInfo describes a column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ColumnNames returns the column names of t in ordinal order.
func (t TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Connector abstracts interaction with the target database.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// Introspect returns the tables and columns of the target schema.
	Introspect(ctx context.Context) (*SchemaInfo, error)

	// Close closes the connection pool.
	Close() error
}

// Driver returns the effective driver of cfg; an empty driver means MySQL.
func Driver(cfg etl.TargetDB) string {
	if cfg.Driver == "" {
		return DriverMySQL
	}
	return cfg.Driver
}

// NewConnector creates a Connector for the target connection block.
func NewConnector(cfg etl.TargetDB) (Connector, error) {
	switch Driver(cfg) {
	case DriverSQLite:
		return newSQLiteConnector(cfg)
	case DriverMySQL:
		return newSQLConnector(DriverMySQL, buildMySQLDSN(cfg))
	case DriverPostgres:
		return newSQLConnector(DriverPostgres, buildPostgresDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}
