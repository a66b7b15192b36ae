package sources

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sfetl/internal/etl"
)

// ── Fixture Source ──────────────────────────────────────────
// Serves objects, fields, sample rows and (optionally) target tables from a
// YAML or JSON file. Stands in for the source system when working offline.
//
//	objects:
//	  - name: Account
//	    label: Account
//	    fields:
//	      - {name: Id, label: Account ID}
//	    rows:
//	      - {Id: "001", Name: Acme}
//	tables:
//	  - {name: stg_sf_account, columns: [id, sf_id, name]}

// Fixture is the decoded fixture file.
type Fixture struct {
	Objects []FixtureObject `yaml:"objects"`
	Tables  []etl.TableInfo `yaml:"tables"`
}

// FixtureObject is one source object with its fields and sample rows.
type FixtureObject struct {
	Name   string           `yaml:"name"`
	Label  string           `yaml:"label"`
	Fields []etl.FieldInfo  `yaml:"fields"`
	Rows   []map[string]any `yaml:"rows"`
}

// TypeFixture is the registered source type.
const TypeFixture = "fixture"

func init() {
	etl.RegisterSource(etl.SourceSpec{
		Type:  TypeFixture,
		Label: "Fixture File",
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "YAML or JSON fixture describing objects, fields and rows"},
		},
	}, func(cfg etl.SourceConfig) (etl.Source, error) {
		path, _ := cfg["filePath"].(string)
		return LoadFixture(path)
	})
}

// LoadFixture reads and validates a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	if path == "" {
		return nil, fmt.Errorf("filePath is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes fixture YAML (JSON is accepted as a YAML subset).
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	seen := make(map[string]bool, len(f.Objects))
	for i, o := range f.Objects {
		if o.Name == "" {
			return nil, fmt.Errorf("parse fixture: object %d has no name", i)
		}
		if seen[o.Name] {
			return nil, fmt.Errorf("parse fixture: object %q listed twice", o.Name)
		}
		seen[o.Name] = true
		if o.Label == "" {
			f.Objects[i].Label = o.Name
		}
	}
	return &f, nil
}

func (f *Fixture) object(name string) (*FixtureObject, error) {
	for i := range f.Objects {
		if f.Objects[i].Name == name {
			return &f.Objects[i], nil
		}
	}
	return nil, fmt.Errorf("unknown object %q", name)
}

func (f *Fixture) ListObjects(context.Context) ([]etl.ObjectInfo, error) {
	out := make([]etl.ObjectInfo, len(f.Objects))
	for i, o := range f.Objects {
		out[i] = etl.ObjectInfo{Name: o.Name, Label: o.Label}
	}
	return out, nil
}

func (f *Fixture) ListFields(_ context.Context, object string) ([]etl.FieldInfo, error) {
	o, err := f.object(object)
	if err != nil {
		return nil, err
	}
	out := make([]etl.FieldInfo, len(o.Fields))
	for i, fi := range o.Fields {
		if fi.Label == "" {
			fi.Label = fi.Name
		}
		out[i] = fi
	}
	return out, nil
}

// ListTargetTables returns the fixture's tables, or the default staging
// schema when the fixture declares none.
func (f *Fixture) ListTargetTables(context.Context) ([]etl.TableInfo, error) {
	if len(f.Tables) == 0 {
		return etl.DefaultTargetTables(), nil
	}
	out := make([]etl.TableInfo, len(f.Tables))
	for i, t := range f.Tables {
		out[i] = etl.TableInfo{Name: t.Name, Columns: append([]string(nil), t.Columns...)}
	}
	return out, nil
}

func (f *Fixture) Query(ctx context.Context, object string, fields []string, limit int) ([]etl.Record, error) {
	o, err := f.object(object)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(o.Fields))
	for _, fi := range o.Fields {
		known[fi.Name] = true
	}
	for _, name := range fields {
		if !known[name] {
			return nil, fmt.Errorf("%s has no field %q", object, name)
		}
	}

	var out []etl.Record
	for _, row := range o.Rows {
		if limit > 0 && len(out) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, project(row, fields))
	}
	return out, nil
}

// project keeps only fields of row; missing fields come back as nil.
func project(row map[string]any, fields []string) etl.Record {
	data := make(map[string]any, len(fields))
	for _, name := range fields {
		data[name] = row[name]
	}
	return etl.Record{Data: data}
}
