package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	driverName string
	db         *sql.DB
}

// newSQLConnector creates a generic SQL connector.
func newSQLConnector(driverName, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	// Short-lived CLI use: a couple of connections is plenty.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &sqlConnector{driverName: driverName, db: db}, nil
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *sqlConnector) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch c.driverName {
	case DriverSQLite:
		return c.introspectSQLite(ctx)
	default:
		return c.introspectInfoSchema(ctx)
	}
}

// infoSchemaQueries returns the table and column queries for the driver.
func (c *sqlConnector) infoSchemaQueries() (tables, columns string) {
	if c.driverName == DriverPostgres {
		return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
			 WHERE TABLE_SCHEMA = CURRENT_SCHEMA() AND TABLE_TYPE = 'BASE TABLE'
			 ORDER BY TABLE_NAME`,
			`SELECT COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS
			 WHERE TABLE_SCHEMA = CURRENT_SCHEMA() AND TABLE_NAME = $1 ORDER BY ORDINAL_POSITION`
	}
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		 ORDER BY TABLE_NAME`,
		`SELECT COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`
}

// introspectInfoSchema works for MySQL and Postgres via INFORMATION_SCHEMA.
func (c *sqlConnector) introspectInfoSchema(ctx context.Context) (*SchemaInfo, error) {
	tablesQ, columnsQ := c.infoSchemaQueries()
	tableNames, err := c.names(ctx, tablesQ)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	schema := &SchemaInfo{}
	for _, tbl := range tableNames {
		colRows, err := c.db.QueryContext(ctx, columnsQ, tbl)
		if err != nil {
			return nil, fmt.Errorf("list columns of %s: %w", tbl, err)
		}
		var cols []ColumnInfo
		for colRows.Next() {
			var ci ColumnInfo
			if err := colRows.Scan(&ci.Name, &ci.Type); err != nil {
				colRows.Close()
				return nil, fmt.Errorf("scan column of %s: %w", tbl, err)
			}
			cols = append(cols, ci)
		}
		err = colRows.Err()
		colRows.Close()
		if err != nil {
			return nil, fmt.Errorf("list columns of %s: %w", tbl, err)
		}
		schema.Tables = append(schema.Tables, TableInfo{Name: tbl, Columns: cols})
	}
	return schema, nil
}

// introspectSQLite uses sqlite_master + PRAGMA table_info.
func (c *sqlConnector) introspectSQLite(ctx context.Context) (*SchemaInfo, error) {
	tableNames, err := c.names(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	schema := &SchemaInfo{}
	for _, tbl := range tableNames {
		pragmaRows, err := c.db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", tbl)
		if err != nil {
			return nil, fmt.Errorf("list columns of %s: %w", tbl, err)
		}
		var cols []ColumnInfo
		for pragmaRows.Next() {
			var ci ColumnInfo
			if err := pragmaRows.Scan(&ci.Name, &ci.Type); err != nil {
				pragmaRows.Close()
				return nil, fmt.Errorf("scan column of %s: %w", tbl, err)
			}
			cols = append(cols, ci)
		}
		pragmaRows.Close()
		schema.Tables = append(schema.Tables, TableInfo{Name: tbl, Columns: cols})
	}
	return schema, nil
}

func (c *sqlConnector) names(ctx context.Context, query string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}
