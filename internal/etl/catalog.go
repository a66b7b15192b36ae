package etl

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ── Schema Catalog ─────────────────────────────────────────
// Read-only metadata the editing components validate against:
// source objects (and their fields, fetched lazily) and target tables.
// When the provider fails the catalog degrades instead of failing:
// the affected half stops validating but editing keeps working.

// SourceCatalog lists source objects and their fields.
type SourceCatalog interface {
	ListObjects(ctx context.Context) ([]ObjectInfo, error)
	ListFields(ctx context.Context, object string) ([]FieldInfo, error)
}

// TargetCatalog lists target tables and their columns.
type TargetCatalog interface {
	ListTargetTables(ctx context.Context) ([]TableInfo, error)
}

// CatalogProvider is the external metadata provider.
type CatalogProvider interface {
	SourceCatalog
	TargetCatalog
}

// CombinedProvider joins a source connector and a target connector.
type CombinedProvider struct {
	Source SourceCatalog
	Target TargetCatalog
}

var errNotConfigured = errors.New("not configured")

func (p CombinedProvider) ListObjects(ctx context.Context) ([]ObjectInfo, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("source connector %w", errNotConfigured)
	}
	return p.Source.ListObjects(ctx)
}

func (p CombinedProvider) ListFields(ctx context.Context, object string) ([]FieldInfo, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("source connector %w", errNotConfigured)
	}
	return p.Source.ListFields(ctx, object)
}

func (p CombinedProvider) ListTargetTables(ctx context.Context) ([]TableInfo, error) {
	if p.Target == nil {
		return nil, fmt.Errorf("target connector %w", errNotConfigured)
	}
	return p.Target.ListTargetTables(ctx)
}

// StaticProvider serves fixed metadata. Useful offline and in tests.
type StaticProvider struct {
	Objects []ObjectInfo
	Fields  map[string][]FieldInfo
	Tables  []TableInfo
}

func (p *StaticProvider) ListObjects(context.Context) ([]ObjectInfo, error) {
	return append([]ObjectInfo(nil), p.Objects...), nil
}

func (p *StaticProvider) ListFields(_ context.Context, object string) ([]FieldInfo, error) {
	fs, ok := p.Fields[object]
	if !ok {
		return nil, fmt.Errorf("unknown object %q", object)
	}
	return append([]FieldInfo(nil), fs...), nil
}

func (p *StaticProvider) ListTargetTables(context.Context) ([]TableInfo, error) {
	out := make([]TableInfo, len(p.Tables))
	for i, t := range p.Tables {
		out[i] = TableInfo{Name: t.Name, Columns: append([]string(nil), t.Columns...)}
	}
	return out, nil
}

// DefaultTargetTables returns the staging schema used when no target
// database is introspected.
func DefaultTargetTables() []TableInfo {
	return []TableInfo{
		{Name: "stg_sf_account", Columns: []string{"id", "sf_id", "name", "type", "industry", "phone", "website", "created_at"}},
		{Name: "stg_sf_contact", Columns: []string{"id", "sf_id", "first_name", "last_name", "email", "phone", "account_id", "created_at"}},
		{Name: "stg_sf_opportunity", Columns: []string{"id", "sf_id", "name", "amount", "stage", "close_date", "account_id", "created_at"}},
		{Name: "stg_sf_lead", Columns: []string{"id", "sf_id", "name", "company", "email", "status", "source", "created_at"}},
		{Name: "stg_sf_case", Columns: []string{"id", "sf_id", "subject", "status", "priority", "description", "account_id", "created_at"}},
		{Name: "stg_sf_user", Columns: []string{"id", "sf_id", "username", "email", "full_name", "is_active", "profile_id", "created_at"}},
	}
}

// Catalog is a snapshot of provider metadata plus a lazy field cache.
type Catalog struct {
	provider CatalogProvider

	objects      []ObjectInfo
	objectSet    map[string]bool
	objectsKnown bool

	tables      []TableInfo
	tableCols   map[string][]string
	tablesKnown bool

	fields  map[string][]FieldInfo
	pending map[string]bool // objects still referenced; applied on next field access
}

// LoadCatalog snapshots objects and target tables from p. It always returns
// a usable catalog; a non-nil error (matching ErrCatalogUnavailable) means
// part of it is degraded.
func LoadCatalog(ctx context.Context, p CatalogProvider) (*Catalog, error) {
	c := &Catalog{provider: p, fields: make(map[string][]FieldInfo)}
	if p == nil {
		return c, &CatalogError{Op: "load", Err: errors.New("no provider")}
	}

	var errs []error
	if objs, err := p.ListObjects(ctx); err != nil {
		errs = append(errs, &CatalogError{Op: "list objects", Err: err})
	} else {
		c.setObjects(objs)
	}
	if tables, err := p.ListTargetTables(ctx); err != nil {
		errs = append(errs, &CatalogError{Op: "list target tables", Err: err})
	} else {
		c.setTables(tables)
	}
	return c, errors.Join(errs...)
}

// OfflineCatalog returns a fully degraded catalog that validates nothing.
func OfflineCatalog() *Catalog {
	return &Catalog{fields: make(map[string][]FieldInfo)}
}

func (c *Catalog) setObjects(objs []ObjectInfo) {
	c.objects = append([]ObjectInfo(nil), objs...)
	c.objectSet = make(map[string]bool, len(objs))
	for _, o := range objs {
		c.objectSet[o.Name] = true
	}
	c.objectsKnown = true
}

func (c *Catalog) setTables(tables []TableInfo) {
	c.tables = make([]TableInfo, len(tables))
	c.tableCols = make(map[string][]string, len(tables))
	for i, t := range tables {
		cols := append([]string(nil), t.Columns...)
		c.tables[i] = TableInfo{Name: t.Name, Columns: cols}
		c.tableCols[t.Name] = cols
	}
	c.tablesKnown = true
}

// Degraded reports whether any part of the catalog could not be loaded.
func (c *Catalog) Degraded() bool { return !c.objectsKnown || !c.tablesKnown }

// Objects returns the known source objects.
func (c *Catalog) Objects() []ObjectInfo { return append([]ObjectInfo(nil), c.objects...) }

// Tables returns the known target tables.
func (c *Catalog) Tables() []TableInfo {
	out := make([]TableInfo, len(c.tables))
	for i, t := range c.tables {
		out[i] = TableInfo{Name: t.Name, Columns: append([]string(nil), t.Columns...)}
	}
	return out
}

// Columns returns the columns of table. ok is false when the table is
// unknown or the target half is degraded.
func (c *Catalog) Columns(table string) (cols []string, ok bool) {
	if !c.tablesKnown {
		return nil, false
	}
	cols, ok = c.tableCols[table]
	return cols, ok
}

func (c *Catalog) checkObject(name string) error {
	if !c.objectsKnown || c.objectSet[name] {
		return nil
	}
	return invalid("object", "%q is not in the schema catalog", name)
}

func (c *Catalog) checkTable(name string) error {
	if !c.tablesKnown {
		return nil
	}
	if _, ok := c.tableCols[name]; ok {
		return nil
	}
	return invalid("target_table", "%q is not in the schema catalog", name)
}

func (c *Catalog) checkColumn(table, column string) error {
	cols, ok := c.Columns(table)
	if !ok || contains(cols, column) {
		return nil
	}
	return invalid("target_column", "%q is not a column of %s", column, table)
}

// Fields returns the fields of object, fetching them on first use.
func (c *Catalog) Fields(ctx context.Context, object string) ([]FieldInfo, error) {
	c.prune()
	if fs, ok := c.fields[object]; ok {
		return fs, nil
	}
	if c.provider == nil {
		return nil, &CatalogError{Op: "list fields", Err: errors.New("no provider")}
	}
	fs, err := c.provider.ListFields(ctx, object)
	if err != nil {
		return nil, &CatalogError{Op: "list fields " + object, Err: err}
	}
	c.fields[object] = fs
	return fs, nil
}

func (c *Catalog) knownFields(object string) ([]FieldInfo, bool) {
	fs, ok := c.fields[object]
	return fs, ok
}

// Invalidate records the set of objects still referenced by mappings.
// Cached field lists for other objects are dropped on the next access.
func (c *Catalog) Invalidate(referenced []string) {
	c.pending = make(map[string]bool, len(referenced))
	for _, o := range referenced {
		c.pending[o] = true
	}
}

func (c *Catalog) prune() {
	if c.pending == nil {
		return
	}
	for o := range c.fields {
		if !c.pending[o] {
			delete(c.fields, o)
		}
	}
	c.pending = nil
}

// CachedObjects lists objects whose field lists are currently cached.
func (c *Catalog) CachedObjects() []string {
	out := make([]string, 0, len(c.fields))
	for o := range c.fields {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
