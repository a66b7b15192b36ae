package etl

import "strings"

// ── Mapping Registry ───────────────────────────────────────
// Ordered source-object selections. Identity is positional: the same
// object may be selected twice, and removing an entry shifts later ones
// down. Transformation state is keyed by object name in a separate
// keyspace, so removing a mapping never cascades into it.

// Mapping selects one source object and an ordered set of its fields.
type Mapping struct {
	Object string   `json:"object"`
	Fields []string `json:"fields"`
}

func (m Mapping) clone() Mapping {
	return Mapping{Object: m.Object, Fields: append([]string(nil), m.Fields...)}
}

// Registry is the ordered collection of mappings.
type Registry []Mapping

func (r Registry) clone() Registry {
	if r == nil {
		return nil
	}
	out := make(Registry, len(r))
	for i, m := range r {
		out[i] = m.clone()
	}
	return out
}

// At returns the mapping at position i.
func (r Registry) At(i int) (Mapping, error) {
	if i < 0 || i >= len(r) {
		return Mapping{}, &IndexError{Index: i, Len: len(r)}
	}
	return r[i].clone(), nil
}

// Add appends a mapping.
func (r *Registry) Add(c *Catalog, object string, fields []string) error {
	m, err := newMapping(c, object, fields)
	if err != nil {
		return err
	}
	*r = append(*r, m)
	return nil
}

// Replace swaps the mapping at position i wholesale.
func (r *Registry) Replace(c *Catalog, i int, object string, fields []string) error {
	if i < 0 || i >= len(*r) {
		return &IndexError{Index: i, Len: len(*r)}
	}
	m, err := newMapping(c, object, fields)
	if err != nil {
		return err
	}
	(*r)[i] = m
	return nil
}

// Remove deletes the mapping at position i.
func (r *Registry) Remove(i int) error {
	if i < 0 || i >= len(*r) {
		return &IndexError{Index: i, Len: len(*r)}
	}
	*r = append((*r)[:i:i], (*r)[i+1:]...)
	return nil
}

// Objects returns the distinct mapped objects in order of first appearance.
func (r Registry) Objects() []string {
	seen := make(map[string]bool, len(r))
	var out []string
	for _, m := range r {
		if !seen[m.Object] {
			seen[m.Object] = true
			out = append(out, m.Object)
		}
	}
	return out
}

// References reports whether any mapping selects object.
func (r Registry) References(object string) bool {
	for _, m := range r {
		if m.Object == object {
			return true
		}
	}
	return false
}

// FieldsOf returns the union of fields selected for object across all
// mappings, in order of first appearance.
func (r Registry) FieldsOf(object string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range r {
		if m.Object != object {
			continue
		}
		for _, f := range m.Fields {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func newMapping(c *Catalog, object string, fields []string) (Mapping, error) {
	object = strings.TrimSpace(object)
	if object == "" {
		return Mapping{}, invalid("object", "required")
	}
	if err := c.checkObject(object); err != nil {
		return Mapping{}, err
	}
	if len(fields) == 0 {
		return Mapping{}, invalid("fields", "select at least one field of %s", object)
	}

	known, haveKnown := c.knownFields(object)
	var knownSet map[string]bool
	if haveKnown {
		knownSet = make(map[string]bool, len(known))
		for _, f := range known {
			knownSet[f.Name] = true
		}
	}

	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		switch {
		case f == "":
			return Mapping{}, invalid("fields", "blank field name")
		case seen[f]:
			return Mapping{}, invalid("fields", "%q selected twice", f)
		case haveKnown && !knownSet[f]:
			return Mapping{}, invalid("fields", "%s has no field %q", object, f)
		}
		seen[f] = true
		out = append(out, f)
	}
	return Mapping{Object: object, Fields: out}, nil
}
