package etl

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ── Load Planner ───────────────────────────────────────────
// The load order is derived, never edited directly except by adjacent
// swaps: it always equals the set of loadable objects, keeps the relative
// order of objects it already knew and appends newcomers.

// LoadStrategy is how a step writes into its target table.
type LoadStrategy string

const (
	StrategyInsert    LoadStrategy = "insert"
	StrategyBulkLoad  LoadStrategy = "bulk_load"
	StrategyUpsert    LoadStrategy = "upsert"
	StrategyOverwrite LoadStrategy = "overwrite"
)

// Strategies lists the supported strategies in display order.
var Strategies = []LoadStrategy{StrategyInsert, StrategyBulkLoad, StrategyUpsert, StrategyOverwrite}

// ParseStrategy accepts a current token or a legacy display name
// ("MERGE (UPSERT)", "BULK LOAD / COPY", ...), case-insensitively.
func ParseStrategy(s string) (LoadStrategy, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, st := range Strategies {
		if key == string(st) {
			return st, nil
		}
	}
	if st, ok := legacyStrategies[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", invalid("strategy", "unknown load strategy %q (want insert, bulk_load, upsert or overwrite)", s)
}

var legacyStrategies = map[string]LoadStrategy{
	"INSERT":           StrategyInsert,
	"BULK LOAD / COPY": StrategyBulkLoad,
	"BULK LOAD":        StrategyBulkLoad,
	"MERGE (UPSERT)":   StrategyUpsert,
	"MERGE":            StrategyUpsert,
	"UPSERT":           StrategyUpsert,
	"OVERWRITE":        StrategyOverwrite,
}

func (s LoadStrategy) orDefault() LoadStrategy {
	if s == "" {
		return StrategyInsert
	}
	return s
}

// Batch size bounds. Zero in a persisted document means DefaultBatchSize.
const (
	MinBatchSize     = 1
	MaxBatchSize     = 10000
	DefaultBatchSize = 1000
)

// ── State ──────────────────────────────────────────────────

// State is the editable ETL configuration.
type State struct {
	Mappings        Registry
	Transformations Rules
	LoadOrder       []string
	BatchSize       int
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Mappings:        s.Mappings.clone(),
		Transformations: s.Transformations.clone(),
		BatchSize:       s.BatchSize,
	}
	if s.LoadOrder != nil {
		out.LoadOrder = append([]string{}, s.LoadOrder...)
	}
	return out
}

// Loadable returns the objects with a target table and at least one
// effective binding, in order of first appearance in the mappings.
func Loadable(s State, c *Catalog) []string {
	var out []string
	for _, o := range s.Mappings.Objects() {
		if len(s.Transformations.Effective(c, s.Mappings, o)) > 0 {
			out = append(out, o)
		}
	}
	return out
}

func reorder(old, loadable []string) []string {
	in := make(map[string]bool, len(loadable))
	for _, o := range loadable {
		in[o] = true
	}
	out := make([]string, 0, len(loadable))
	placed := make(map[string]bool, len(loadable))
	for _, o := range old {
		if in[o] && !placed[o] {
			placed[o] = true
			out = append(out, o)
		}
	}
	for _, o := range loadable {
		if !placed[o] {
			placed[o] = true
			out = append(out, o)
		}
	}
	return out
}

// Recompute derives the load order and normalises match keys. It does not
// modify s, and Recompute(Recompute(s)) == Recompute(s).
func Recompute(s State, c *Catalog) State {
	out := s.Clone()
	out.LoadOrder = reorder(out.LoadOrder, Loadable(out, c))
	for o, t := range out.Transformations {
		if t == nil || t.MatchKey == nil {
			continue
		}
		if t.LoadStrategy != StrategyUpsert ||
			!contains(out.Transformations.MappedColumns(c, out.Mappings, o), *t.MatchKey) {
			t.MatchKey = nil
		}
	}
	return out
}

// ── Steps ──────────────────────────────────────────────────

// LoadStep is one loadable object's position and strategy.
type LoadStep struct {
	Object      string       `json:"object" yaml:"object"`
	TargetTable string       `json:"target_table" yaml:"target_table"`
	Strategy    LoadStrategy `json:"strategy" yaml:"strategy"`
	MatchKey    *string      `json:"match_key" yaml:"match_key"`
	Columns     int          `json:"columns" yaml:"columns"`
	Valid       bool         `json:"valid" yaml:"valid"`
	Problems    []string     `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// Steps describes every entry of the load order. s is expected to be
// recomputed.
func Steps(s State, c *Catalog) []LoadStep {
	steps := make([]LoadStep, 0, len(s.LoadOrder))
	for _, o := range s.LoadOrder {
		steps = append(steps, step(s, c, o))
	}
	return steps
}

func step(s State, c *Catalog, object string) LoadStep {
	t := s.Transformations[object]
	if t == nil {
		t = &ObjectTransform{}
	}
	bindings := s.Transformations.Effective(c, s.Mappings, object)
	st := LoadStep{
		Object:      object,
		TargetTable: t.TargetTable,
		Strategy:    t.LoadStrategy.orDefault(),
		MatchKey:    cloneStr(t.MatchKey),
		Columns:     len(bindings),
	}

	if len(bindings) == 0 {
		st.Problems = append(st.Problems, "no mapped columns")
	}
	if st.Strategy == StrategyUpsert && st.MatchKey == nil {
		st.Problems = append(st.Problems, "upsert requires a match key")
	}
	seen := make(map[string]string, len(bindings))
	for _, b := range bindings {
		if prev, dup := seen[b.Column]; dup {
			st.Problems = append(st.Problems, fmt.Sprintf("column %q bound by both %s and %s", b.Column, prev, b.Field))
		}
		seen[b.Column] = b.Field
		if err := b.Transform.Validate(); err != nil {
			st.Problems = append(st.Problems, fmt.Sprintf("%s: %v", b.Field, err))
		}
	}
	st.Valid = len(st.Problems) == 0
	return st
}

// FlowSummary renders the order as "Account (insert) → Contact (upsert)".
func FlowSummary(steps []LoadStep) string {
	parts := make([]string, len(steps))
	for i, st := range steps {
		parts[i] = fmt.Sprintf("%s (%s)", st.Object, st.Strategy)
	}
	return strings.Join(parts, " → ")
}

// ── Plan ───────────────────────────────────────────────────
// The value handed to a Loader. Built only from a state whose every step
// is valid.

// PlanColumn is one field → column copy with its transform.
type PlanColumn struct {
	Field     string          `json:"field" yaml:"field"`
	Column    string          `json:"column" yaml:"column"`
	Transform TransformConfig `json:"transform" yaml:"transform"`
}

// PlanStep is one object's load.
type PlanStep struct {
	Object      string       `json:"object" yaml:"object"`
	TargetTable string       `json:"target_table" yaml:"target_table"`
	Strategy    LoadStrategy `json:"strategy" yaml:"strategy"`
	MatchKey    string       `json:"match_key,omitempty" yaml:"match_key,omitempty"`
	Columns     []PlanColumn `json:"columns" yaml:"columns"`
}

// LoadPlan is the executable load description.
type LoadPlan struct {
	ID        string     `json:"id" yaml:"id"`
	BatchSize int        `json:"batch_size" yaml:"batch_size"`
	Steps     []PlanStep `json:"steps" yaml:"steps"`
}

// BuildPlan produces the load plan of a recomputed state.
func BuildPlan(s State, c *Catalog) (*LoadPlan, error) {
	if len(s.LoadOrder) == 0 {
		return nil, invalid("load_order", "no loadable objects: map fields and assign a target table first")
	}
	batch := s.BatchSize
	if batch == 0 {
		batch = DefaultBatchSize
	}
	plan := &LoadPlan{ID: uuid.NewString(), BatchSize: batch}
	for _, o := range s.LoadOrder {
		st := step(s, c, o)
		if !st.Valid {
			return nil, invalid("load_order", "step %s is invalid: %s", o, strings.Join(st.Problems, "; "))
		}
		ps := PlanStep{Object: o, TargetTable: st.TargetTable, Strategy: st.Strategy}
		if st.MatchKey != nil {
			ps.MatchKey = *st.MatchKey
		}
		for _, b := range s.Transformations.Effective(c, s.Mappings, o) {
			ps.Columns = append(ps.Columns, PlanColumn{Field: b.Field, Column: b.Column, Transform: b.Transform})
		}
		plan.Steps = append(plan.Steps, ps)
	}
	return plan, nil
}
