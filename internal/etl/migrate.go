package etl

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ── Config Migrator ────────────────────────────────────────
// Upgrades a stored document to the current shape by rewriting only the
// affected paths of the raw JSON, so keys this version does not know are
// carried over untouched. A current document comes back byte-identical.

var errNotObject = errors.New("configuration document must be a JSON object")

var legacyKeys = []struct{ from, to string }{
	{"src_fmt", "source_format"},
	{"tgt_fmt", "target_format"},
	{"tz_convert", "timezone_convert"},
	{"src_tz", "source_tz"},
	{"tgt_tz", "target_tz"},
	{"handle_null", "null_strategy"},
	{"true_val", "true_values"},
	{"false_val", "false_values"},
}

var transformKinds = map[string]TransformKind{
	"none":         TransformNone,
	"to_number":    TransformToNumber,
	"to_date":      TransformToDate,
	"to_datetime":  TransformToDateTime,
	"to_boolean":   TransformToBoolean,
	"enum_mapping": TransformEnumMapping,
}

var nullStrategies = map[string]NullStrategy{
	"zero":      NullZero,
	"keep_null": NullKeepNull,
	"default":   NullDefault,
}

type migration struct {
	doc      []byte
	changed  bool
	warnings []MigrationWarning
	err      error
}

// Migrate upgrades raw to the current document shape. It fails only when
// raw is not a JSON object; values it cannot carry over are replaced by
// documented defaults and reported as warnings.
func Migrate(raw []byte) ([]byte, []MigrationWarning, error) {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, nil, errNotObject
	}
	m := &migration{doc: raw}
	if gjson.GetBytes(m.doc, "etl_config").IsObject() {
		m.selection("etl_config.")
	}
	m.rootSelection()
	m.runTime()
	m.transformations()
	if m.err != nil {
		return nil, nil, m.err
	}
	if !m.changed {
		return raw, m.warnings, nil
	}
	return m.doc, m.warnings, nil
}

func (m *migration) warn(path, format string, args ...any) {
	m.warnings = append(m.warnings, MigrationWarning{Path: path, Msg: fmt.Sprintf(format, args...)})
}

func (m *migration) set(path string, value any) {
	if m.err != nil {
		return
	}
	out, err := sjson.SetBytes(m.doc, path, value)
	if err != nil {
		m.err = err
		return
	}
	m.doc, m.changed = out, true
}

func (m *migration) setRaw(path, raw string) {
	if m.err != nil {
		return
	}
	out, err := sjson.SetRawBytes(m.doc, path, []byte(raw))
	if err != nil {
		m.err = err
		return
	}
	m.doc, m.changed = out, true
}

func (m *migration) del(path string) {
	if m.err != nil {
		return
	}
	out, err := sjson.DeleteBytes(m.doc, path)
	if err != nil {
		m.err = err
		return
	}
	m.doc, m.changed = out, true
}

// legacySelection reads the selected_object/selected_fields pair under
// prefix. ok is false when neither key is present.
func (m *migration) legacySelection(prefix string) (mappings []Mapping, ok bool) {
	obj := gjson.GetBytes(m.doc, prefix+"selected_object")
	fields := gjson.GetBytes(m.doc, prefix+"selected_fields")
	if !obj.Exists() && !fields.Exists() {
		return nil, false
	}

	var names []string
	for _, f := range fields.Array() {
		if s := strings.TrimSpace(f.String()); s != "" {
			names = append(names, s)
		}
	}
	object := strings.TrimSpace(obj.String())

	mappings = []Mapping{}
	switch {
	case object == "" && len(names) > 0:
		m.warn(prefix+"selected_fields", "fields selected without an object were dropped")
	case object == "":
	case len(names) == 0:
		m.warn(prefix+"selected_object", "legacy selection of %s had no fields and was dropped", object)
	default:
		mappings = append(mappings, Mapping{Object: object, Fields: names})
	}
	return mappings, true
}

func (m *migration) dropSelection(prefix string) {
	m.del(prefix + "selected_object")
	m.del(prefix + "selected_fields")
}

// selection rewrites a legacy selection inside etl_config into its
// mappings list. A config that already carries mappings passes through.
func (m *migration) selection(prefix string) {
	if gjson.GetBytes(m.doc, prefix+"mappings").Exists() {
		return
	}
	mappings, ok := m.legacySelection(prefix)
	if !ok {
		return
	}
	m.setMappings(prefix+"mappings", mappings)
	m.dropSelection(prefix)
}

// rootSelection moves a selection stored at the top level of the document
// into etl_config.mappings, after the mappings already there.
func (m *migration) rootSelection() {
	if m.err != nil {
		return
	}
	ec := gjson.GetBytes(m.doc, "etl_config")
	if ec.Exists() && !ec.IsObject() {
		if gjson.GetBytes(m.doc, "selected_object").Exists() || gjson.GetBytes(m.doc, "selected_fields").Exists() {
			m.warn("selected_object", "etl_config is not an object, legacy selection left in place")
		}
		return
	}
	legacy, ok := m.legacySelection("")
	if !ok {
		return
	}

	var merged []Mapping
	if existing := ec.Get("mappings"); existing.IsArray() {
		if err := json.Unmarshal([]byte(existing.Raw), &merged); err != nil {
			m.warn("etl_config.mappings", "unreadable mappings, legacy selection left in place")
			return
		}
	}
	if merged == nil {
		merged = []Mapping{}
	}
	for _, lm := range legacy {
		if !hasMapping(merged, lm) {
			merged = append(merged, lm)
		}
	}
	m.setMappings("etl_config.mappings", merged)
	m.dropSelection("")
}

func (m *migration) setMappings(path string, mappings []Mapping) {
	raw, err := json.Marshal(mappings)
	if err != nil {
		m.err = err
		return
	}
	m.setRaw(path, string(raw))
}

func hasMapping(ms []Mapping, want Mapping) bool {
	for _, mp := range ms {
		if mp.Object == want.Object && slices.Equal(mp.Fields, want.Fields) {
			return true
		}
	}
	return false
}

func (m *migration) runTime() {
	const path = "schedule_config.run_time"
	if !gjson.GetBytes(m.doc, "schedule_config").IsObject() {
		return
	}
	rt := gjson.GetBytes(m.doc, path)
	if !rt.Exists() {
		return
	}
	if rt.Type == gjson.String {
		if c, err := ParseClock(rt.Str); err == nil {
			if c.String() != rt.Str {
				m.set(path, c.String())
			}
			return
		}
	}
	m.warn(path, "unparsable run time %s, using %s", rt.Raw, DefaultRunTime)
	m.set(path, DefaultRunTime.String())
}

func (m *migration) transformations() {
	base := "etl_config.transformations"
	tr := gjson.GetBytes(m.doc, base)
	if !tr.IsObject() {
		return
	}
	tr.ForEach(func(key, entry gjson.Result) bool {
		if !entry.IsObject() {
			return true
		}
		objPath := base + "." + escapeKey(key.String())

		if ls := entry.Get("load_strategy"); ls.Type == gjson.String && ls.Str != "" {
			if st, err := ParseStrategy(ls.Str); err == nil && string(st) != ls.Str {
				m.set(objPath+".load_strategy", string(st))
			}
		}

		entry.Get("field_configs").ForEach(func(field, cfg gjson.Result) bool {
			if cfg.IsObject() {
				m.fieldConfig(objPath+".field_configs."+escapeKey(field.String()), cfg)
			}
			return m.err == nil
		})
		return m.err == nil
	})
}

func (m *migration) fieldConfig(path string, cfg gjson.Result) {
	for _, k := range legacyKeys {
		old := cfg.Get(k.from)
		if !old.Exists() {
			continue
		}
		if !cfg.Get(k.to).Exists() {
			if (k.to == "true_values" || k.to == "false_values") && old.Type == gjson.String {
				m.set(path+"."+k.to, splitCSV(old.Str))
			} else {
				m.setRaw(path+"."+k.to, old.Raw)
			}
		}
		m.del(path + "." + k.from)
	}
	cfg = gjson.GetBytes(m.doc, path)

	if t := cfg.Get("type"); t.Type == gjson.String {
		if kind, ok := transformKinds[token(t.Str)]; ok && string(kind) != t.Str {
			m.set(path+".type", string(kind))
		}
	}
	if n := cfg.Get("null_strategy"); n.Type == gjson.String {
		if ns, ok := nullStrategies[token(n.Str)]; ok && string(ns) != n.Str {
			m.set(path+".null_strategy", string(ns))
		}
	}
}

// token folds a display name ("Keep Null", "To Number") to its snake_case form.
func token(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func splitCSV(s string) []string {
	out := []string{}
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// escapeKey escapes a literal object key for use in a gjson/sjson path.
func escapeKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		switch r {
		case '.', '*', '?', '|', '#', '@', '!', '=', '<', '>', '%', '\\', ':', ',', '(', ')', '[', ']', '{', '}', '"':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
