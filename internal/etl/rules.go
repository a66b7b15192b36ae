package etl

import (
	"fmt"
	"sort"
	"strings"
)

// ── Transformation Rules ───────────────────────────────────
// Per mapped object: the target table, the field → column bindings and the
// per-field transform. Keyed by object name, independent of the
// positional mapping registry.

// ObjectTransform is the transformation entry of one object.
type ObjectTransform struct {
	TargetTable  string                     `json:"target_table"`
	FieldMap     map[string]*string         `json:"field_map"`
	FieldConfigs map[string]TransformConfig `json:"field_configs"`
	LoadStrategy LoadStrategy               `json:"load_strategy,omitempty"`
	MatchKey     *string                    `json:"match_key"`
}

func (o *ObjectTransform) clone() *ObjectTransform {
	if o == nil {
		return nil
	}
	out := &ObjectTransform{
		TargetTable:  o.TargetTable,
		LoadStrategy: o.LoadStrategy,
		MatchKey:     cloneStr(o.MatchKey),
	}
	if o.FieldMap != nil {
		out.FieldMap = make(map[string]*string, len(o.FieldMap))
		for f, col := range o.FieldMap {
			out.FieldMap[f] = cloneStr(col)
		}
	}
	if o.FieldConfigs != nil {
		out.FieldConfigs = make(map[string]TransformConfig, len(o.FieldConfigs))
		for f, cfg := range o.FieldConfigs {
			out.FieldConfigs[f] = cfg.clone()
		}
	}
	return out
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Binding is an effective field → column binding.
type Binding struct {
	Field     string          `json:"field" yaml:"field"`
	Column    string          `json:"column" yaml:"column"`
	Transform TransformConfig `json:"transform" yaml:"transform"`
}

// FieldStatus reports whether a field is bound to a column.
type FieldStatus string

const (
	StatusMapped   FieldStatus = "Mapped"
	StatusUnmapped FieldStatus = "Unmapped"
)

// Rules holds the transformation entries by object name.
type Rules map[string]*ObjectTransform

func (r Rules) clone() Rules {
	if r == nil {
		return nil
	}
	out := make(Rules, len(r))
	for o, t := range r {
		out[o] = t.clone()
	}
	return out
}

func (r Rules) entry(object string) *ObjectTransform {
	t, ok := r[object]
	if !ok || t == nil {
		t = &ObjectTransform{}
		r[object] = t
	}
	if t.FieldMap == nil {
		t.FieldMap = make(map[string]*string)
	}
	if t.FieldConfigs == nil {
		t.FieldConfigs = make(map[string]TransformConfig)
	}
	return t
}

func requireMapped(reg Registry, object string) error {
	if !reg.References(object) {
		return invalid("object", "%q is not mapped", object)
	}
	return nil
}

func requireMappedField(reg Registry, object, field string) error {
	if err := requireMapped(reg, object); err != nil {
		return err
	}
	if !contains(reg.FieldsOf(object), field) {
		return invalid("field", "%q is not a mapped field of %s", field, object)
	}
	return nil
}

// SetTargetTable assigns the target table of object. Existing bindings are
// kept even if they name columns of the previous table.
func (r Rules) SetTargetTable(c *Catalog, reg Registry, object, table string) error {
	table = strings.TrimSpace(table)
	if table == "" {
		return invalid("target_table", "required")
	}
	if err := requireMapped(reg, object); err != nil {
		return err
	}
	if err := c.checkTable(table); err != nil {
		return err
	}
	r.entry(object).TargetTable = table
	return nil
}

// BindField binds field to column, or marks it skipped when column is nil.
// Two fields may share a column; the load step reports the clash.
func (r Rules) BindField(c *Catalog, reg Registry, object, field string, column *string) error {
	if err := requireMappedField(reg, object, field); err != nil {
		return err
	}
	if column == nil {
		r.entry(object).FieldMap[field] = nil
		return nil
	}

	col := strings.TrimSpace(*column)
	if col == "" {
		return invalid("target_column", "blank column (use null to skip the field)")
	}
	var table string
	if t := r[object]; t != nil {
		table = t.TargetTable
	}
	if table == "" {
		return invalid("target_table", "set a target table for %s before binding fields", object)
	}
	if err := c.checkColumn(table, col); err != nil {
		return err
	}
	r.entry(object).FieldMap[field] = &col
	return nil
}

// SetTransform validates cfg and stores it for field. A transform may be
// configured before the field is bound to a column.
func (r Rules) SetTransform(reg Registry, object, field string, cfg TransformConfig) error {
	if err := requireMappedField(reg, object, field); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Type == "" {
		cfg.Type = TransformNone
	}
	r.entry(object).FieldConfigs[field] = cfg.clone()
	return nil
}

// Status reports whether field of object has a target column.
func (r Rules) Status(object, field string) FieldStatus {
	t := r[object]
	if t == nil {
		return StatusUnmapped
	}
	if col := t.FieldMap[field]; col != nil {
		return StatusMapped
	}
	return StatusUnmapped
}

// Transform returns the configured transform of field, defaulting to none.
func (r Rules) Transform(object, field string) TransformConfig {
	if t := r[object]; t != nil {
		if cfg, ok := t.FieldConfigs[field]; ok {
			return cfg.clone()
		}
	}
	return TransformConfig{Type: TransformNone}
}

// Effective returns the bindings of object that take part in a load: the
// field is mapped, bound to a column, and the column belongs to the current
// target table when that table's columns are known. Order follows the
// mapped field order.
func (r Rules) Effective(c *Catalog, reg Registry, object string) []Binding {
	t := r[object]
	if t == nil || t.TargetTable == "" {
		return nil
	}
	cols, known := c.Columns(t.TargetTable)
	var out []Binding
	for _, f := range reg.FieldsOf(object) {
		col := t.FieldMap[f]
		if col == nil || *col == "" {
			continue
		}
		if known && !contains(cols, *col) {
			continue
		}
		out = append(out, Binding{Field: f, Column: *col, Transform: r.Transform(object, f)})
	}
	return out
}

// MappedColumns returns the distinct effective target columns of object, sorted.
func (r Rules) MappedColumns(c *Catalog, reg Registry, object string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range r.Effective(c, reg, object) {
		if !seen[b.Column] {
			seen[b.Column] = true
			out = append(out, b.Column)
		}
	}
	sort.Strings(out)
	return out
}

// Diagnostic is a non-fatal inconsistency in the rules.
type Diagnostic struct {
	Object string `json:"object"`
	Field  string `json:"field,omitempty"`
	Msg    string `json:"msg"`
}

func (d Diagnostic) String() string {
	if d.Field == "" {
		return fmt.Sprintf("%s: %s", d.Object, d.Msg)
	}
	return fmt.Sprintf("%s.%s: %s", d.Object, d.Field, d.Msg)
}

// Diagnostics lists bindings that are retained but ignored by the planner:
// columns missing from the current target table, bindings of fields that
// are no longer mapped, and entries for objects no mapping references.
func (r Rules) Diagnostics(c *Catalog, reg Registry) []Diagnostic {
	objects := make([]string, 0, len(r))
	for o := range r {
		objects = append(objects, o)
	}
	sort.Strings(objects)

	var out []Diagnostic
	for _, o := range objects {
		t := r[o]
		if t == nil {
			continue
		}
		if !reg.References(o) {
			out = append(out, Diagnostic{Object: o, Msg: "transformation kept for an object no mapping references"})
			continue
		}
		mapped := reg.FieldsOf(o)
		cols, known := c.Columns(t.TargetTable)

		fields := make([]string, 0, len(t.FieldMap))
		for f := range t.FieldMap {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			col := t.FieldMap[f]
			switch {
			case col == nil:
			case !contains(mapped, f):
				out = append(out, Diagnostic{Object: o, Field: f, Msg: "bound field is no longer mapped"})
			case t.TargetTable == "":
				out = append(out, Diagnostic{Object: o, Field: f, Msg: "bound without a target table"})
			case known && !contains(cols, *col):
				out = append(out, Diagnostic{Object: o, Field: f,
					Msg: fmt.Sprintf("column %q is not in %s", *col, t.TargetTable)})
			}
		}
	}
	return out
}
