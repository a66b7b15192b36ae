package etl

// ── Record ─────────────────────────────────────────────────
// Common metadata and row shapes shared by the catalog, the source
// connectors and the preview path.

// ObjectInfo describes a source entity (e.g. a Salesforce sObject).
type ObjectInfo struct {
	Name  string `json:"name" yaml:"name"`
	Label string `json:"label" yaml:"label"`
}

// FieldInfo describes a single field of a source entity.
type FieldInfo struct {
	Name  string `json:"name" yaml:"name"`
	Label string `json:"label" yaml:"label"`
}

// TableInfo describes a target table and its ordered columns.
type TableInfo struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// FieldNames returns the names of fs in order.
func FieldNames(fs []FieldInfo) []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// Record is a single row returned by a source preview query.
type Record struct {
	Data map[string]any `json:"data"`
}
