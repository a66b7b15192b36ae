package app

// ─────────────────────────────────────────────────────────────
// Target Adapter Bridge
// ─────────────────────────────────────────────────────────────
//
// The etl package only knows the TargetCatalog interface. This file
// satisfies it with a dbclient connector opened from the document's
// target_db section, one short-lived connection per call.

import (
	"context"
	"fmt"
	"time"

	"sfetl/internal/dbclient"
	"sfetl/internal/etl"
)

const targetTimeout = 15 * time.Second

// TargetCatalog lists target tables by introspecting the target database.
type TargetCatalog struct {
	DB etl.TargetDB
}

func (t *TargetCatalog) ListTargetTables(ctx context.Context) ([]etl.TableInfo, error) {
	schema, err := IntrospectTarget(ctx, t.DB)
	if err != nil {
		return nil, err
	}
	out := make([]etl.TableInfo, len(schema.Tables))
	for i, tbl := range schema.Tables {
		out[i] = etl.TableInfo{Name: tbl.Name, Columns: tbl.ColumnNames()}
	}
	return out, nil
}

// TestTarget opens a connection to db and pings it.
func TestTarget(ctx context.Context, db etl.TargetDB) error {
	return withConnector(ctx, db, func(ctx context.Context, c dbclient.Connector) error {
		return c.TestConnection(ctx)
	})
}

// IntrospectTarget returns the tables and columns of db.
func IntrospectTarget(ctx context.Context, db etl.TargetDB) (*dbclient.SchemaInfo, error) {
	var schema *dbclient.SchemaInfo
	err := withConnector(ctx, db, func(ctx context.Context, c dbclient.Connector) error {
		var err error
		schema, err = c.Introspect(ctx)
		return err
	})
	return schema, err
}

func withConnector(ctx context.Context, db etl.TargetDB, fn func(context.Context, dbclient.Connector) error) error {
	c, err := dbclient.NewConnector(db)
	if err != nil {
		return fmt.Errorf("target %s: %w", dbclient.Driver(db), err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, targetTimeout)
	defer cancel()
	if err := fn(ctx, c); err != nil {
		return fmt.Errorf("target %s: %w", dbclient.Driver(db), err)
	}
	return nil
}
