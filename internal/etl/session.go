package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ── Session ────────────────────────────────────────────────
// One loaded configuration owned by a single editor. Every edit runs on a
// clone of the state, is followed by Recompute, and is committed only when
// it succeeds: a rejected edit leaves the session exactly as it was.

// Session is an editable configuration document.
type Session struct {
	catalog *Catalog
	state   State

	auth     SourceAuth
	target   TargetDB
	schedule ScheduleConfig
	extra    map[string]json.RawMessage
}

// NewSession takes ownership of a copy of doc. Values outside their legal
// range are normalised and reported.
func NewSession(doc *Document, c *Catalog) (*Session, []MigrationWarning) {
	if doc == nil {
		doc = DefaultDocument()
	}
	if c == nil {
		c = OfflineCatalog()
	}
	var warnings []MigrationWarning

	st := State{
		Mappings:        doc.ETL.Mappings.clone(),
		Transformations: doc.ETL.Transformations.clone(),
		LoadOrder:       append([]string{}, doc.ETL.LoadOrder...),
		BatchSize:       doc.ETL.BatchSize,
	}
	if st.Mappings == nil {
		st.Mappings = Registry{}
	}
	if st.Transformations == nil {
		st.Transformations = Rules{}
	}

	switch {
	case st.BatchSize == 0:
		st.BatchSize = DefaultBatchSize
	case st.BatchSize < MinBatchSize:
		warnings = append(warnings, MigrationWarning{Path: "etl_config.batch_size",
			Msg: fmt.Sprintf("batch size %d below %d, clamped", st.BatchSize, MinBatchSize)})
		st.BatchSize = MinBatchSize
	case st.BatchSize > MaxBatchSize:
		warnings = append(warnings, MigrationWarning{Path: "etl_config.batch_size",
			Msg: fmt.Sprintf("batch size %d above %d, clamped", st.BatchSize, MaxBatchSize)})
		st.BatchSize = MaxBatchSize
	}

	objects := make([]string, 0, len(st.Transformations))
	for o := range st.Transformations {
		objects = append(objects, o)
	}
	sort.Strings(objects)
	for _, o := range objects {
		t := st.Transformations[o]
		if t == nil {
			continue
		}
		path := "etl_config.transformations." + o
		if t.LoadStrategy != "" {
			parsed, err := ParseStrategy(string(t.LoadStrategy))
			if err != nil {
				warnings = append(warnings, MigrationWarning{Path: path + ".load_strategy",
					Msg: fmt.Sprintf("unknown load strategy %q, using %s", t.LoadStrategy, StrategyInsert)})
				parsed = StrategyInsert
			}
			t.LoadStrategy = parsed
		}
		if t.MatchKey != nil && t.LoadStrategy.orDefault() != StrategyUpsert {
			warnings = append(warnings, MigrationWarning{Path: path + ".match_key",
				Msg: fmt.Sprintf("match key %q ignored for %s strategy", *t.MatchKey, t.LoadStrategy.orDefault())})
		}
	}

	s := &Session{
		catalog:  c,
		state:    Recompute(st, c),
		auth:     doc.SourceAuth,
		target:   doc.TargetDB,
		schedule: doc.Schedule,
	}
	if len(doc.Extra) > 0 {
		s.extra = make(map[string]json.RawMessage, len(doc.Extra))
		for k, v := range doc.Extra {
			s.extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	c.Invalidate(s.state.Mappings.Objects())
	return s, warnings
}

func (s *Session) apply(edit func(*State) error) error {
	next := s.state.Clone()
	if err := edit(&next); err != nil {
		return err
	}
	s.state = Recompute(next, s.catalog)
	return nil
}

// Catalog returns the schema catalog the session validates against.
func (s *Session) Catalog() *Catalog { return s.catalog }

// State returns a copy of the current state.
func (s *Session) State() State { return s.state.Clone() }

// Fields returns the fields of object from the catalog.
func (s *Session) Fields(ctx context.Context, object string) ([]FieldInfo, error) {
	return s.catalog.Fields(ctx, object)
}

// ── Mapping operations ─────────────────────────────────────

// Mappings returns a copy of the mapping registry.
func (s *Session) Mappings() Registry { return s.state.Mappings.clone() }

func (s *Session) AddMapping(object string, fields []string) error {
	return s.mutateMappings(func(r *Registry) error { return r.Add(s.catalog, object, fields) })
}

func (s *Session) ReplaceMapping(i int, object string, fields []string) error {
	return s.mutateMappings(func(r *Registry) error { return r.Replace(s.catalog, i, object, fields) })
}

// RemoveMapping deletes the mapping at position i. Transformation entries
// keyed by its object are retained.
func (s *Session) RemoveMapping(i int) error {
	return s.mutateMappings(func(r *Registry) error { return r.Remove(i) })
}

func (s *Session) mutateMappings(edit func(*Registry) error) error {
	err := s.apply(func(st *State) error { return edit(&st.Mappings) })
	if err == nil {
		s.catalog.Invalidate(s.state.Mappings.Objects())
	}
	return err
}

// ── Transformation operations ──────────────────────────────

func (s *Session) SetTargetTable(object, table string) error {
	return s.apply(func(st *State) error {
		return st.Transformations.SetTargetTable(s.catalog, st.Mappings, object, table)
	})
}

// BindField binds field to column; a nil column marks it skipped.
func (s *Session) BindField(object, field string, column *string) error {
	return s.apply(func(st *State) error {
		return st.Transformations.BindField(s.catalog, st.Mappings, object, field, column)
	})
}

func (s *Session) SetTransform(object, field string, cfg TransformConfig) error {
	return s.apply(func(st *State) error {
		return st.Transformations.SetTransform(st.Mappings, object, field, cfg)
	})
}

func (s *Session) Status(object, field string) FieldStatus {
	return s.state.Transformations.Status(object, field)
}

// Transformation returns a copy of the entry for object, or nil.
func (s *Session) Transformation(object string) *ObjectTransform {
	return s.state.Transformations[object].clone()
}

// Bindings returns the effective bindings of object.
func (s *Session) Bindings(object string) []Binding {
	return s.state.Transformations.Effective(s.catalog, s.state.Mappings, object)
}

// MappedColumns returns the effective target columns of object, sorted.
func (s *Session) MappedColumns(object string) []string {
	return s.state.Transformations.MappedColumns(s.catalog, s.state.Mappings, object)
}

func (s *Session) Diagnostics() []Diagnostic {
	return s.state.Transformations.Diagnostics(s.catalog, s.state.Mappings)
}

// ── Load planning operations ───────────────────────────────

// LoadOrder returns the current load order.
func (s *Session) LoadOrder() []string { return append([]string{}, s.state.LoadOrder...) }

func (s *Session) Steps() []LoadStep { return Steps(s.state, s.catalog) }

// Step returns the step of object, if it is loadable.
func (s *Session) Step(object string) (LoadStep, bool) {
	if !contains(s.state.LoadOrder, object) {
		return LoadStep{}, false
	}
	return step(s.state, s.catalog, object), true
}

// MoveUp swaps step i with the one before it. Out-of-range positions,
// the first included, leave the order as it is.
func (s *Session) MoveUp(i int) error {
	return s.apply(func(st *State) error {
		if i > 0 && i < len(st.LoadOrder) {
			st.LoadOrder[i-1], st.LoadOrder[i] = st.LoadOrder[i], st.LoadOrder[i-1]
		}
		return nil
	})
}

// MoveDown swaps step i with the one after it.
func (s *Session) MoveDown(i int) error {
	return s.apply(func(st *State) error {
		if i >= 0 && i < len(st.LoadOrder)-1 {
			st.LoadOrder[i], st.LoadOrder[i+1] = st.LoadOrder[i+1], st.LoadOrder[i]
		}
		return nil
	})
}

// SetStrategy sets the load strategy of a mapped object. Switching to
// upsert keeps the match key only while its column is still mapped. The
// returned step is flagged invalid while the object has no mapped columns
// or an upsert lacks its match key.
func (s *Session) SetStrategy(object string, strategy LoadStrategy) (LoadStep, error) {
	err := s.apply(func(st *State) error {
		parsed, err := ParseStrategy(string(strategy))
		if err != nil {
			return err
		}
		if err := requireMapped(st.Mappings, object); err != nil {
			return err
		}
		t := st.Transformations.entry(object)
		t.LoadStrategy = parsed
		if parsed != StrategyUpsert {
			t.MatchKey = nil
		}
		return nil
	})
	if err != nil {
		return LoadStep{}, err
	}
	return step(s.state, s.catalog, object), nil
}

// SetMatchKey chooses the upsert match key of object among its mapped columns.
func (s *Session) SetMatchKey(object, column string) error {
	return s.apply(func(st *State) error {
		if err := requireMapped(st.Mappings, object); err != nil {
			return err
		}
		t := st.Transformations.entry(object)
		if t.LoadStrategy != StrategyUpsert {
			return invalid("match_key", "only upsert uses a match key (strategy of %s is %s)", object, t.LoadStrategy.orDefault())
		}
		mapped := st.Transformations.MappedColumns(s.catalog, st.Mappings, object)
		if !contains(mapped, column) {
			return invalid("match_key", "%q is not a mapped column of %s (mapped: %s)", column, object, strings.Join(mapped, ", "))
		}
		t.MatchKey = &column
		return nil
	})
}

func (s *Session) BatchSize() int { return s.state.BatchSize }

func (s *Session) SetBatchSize(n int) error {
	return s.apply(func(st *State) error {
		if n < MinBatchSize || n > MaxBatchSize {
			return invalid("batch_size", "must be between %d and %d, got %d", MinBatchSize, MaxBatchSize, n)
		}
		st.BatchSize = n
		return nil
	})
}

// Plan builds the executable load plan.
func (s *Session) Plan() (*LoadPlan, error) { return BuildPlan(s.state, s.catalog) }

// FlowSummary renders the load order with strategies.
func (s *Session) FlowSummary() string { return FlowSummary(s.Steps()) }

// ── Document sections ──────────────────────────────────────

func (s *Session) SourceAuth() SourceAuth { return s.auth }

func (s *Session) SetSourceAuth(a SourceAuth) { s.auth = a }

func (s *Session) TargetDB() TargetDB { return s.target }

func (s *Session) SetTargetDB(t TargetDB) error {
	if strings.TrimSpace(t.Host) == "" && t.Driver != "sqlite" {
		return invalid("host", "required")
	}
	if t.Port < 0 || t.Port > 65535 {
		return invalid("port", "must be between 0 and 65535, got %d", t.Port)
	}
	s.target = t
	return nil
}

func (s *Session) Schedule() ScheduleConfig { return s.schedule }

// SetSchedule stores sc after checking the frequency and weekday. Cron
// expressions are checked by the caller that understands them.
func (s *Session) SetSchedule(sc ScheduleConfig) error {
	switch sc.Frequency {
	case FrequencyDaily, FrequencyHourly, FrequencyWeekly:
	case FrequencyCron:
		if strings.TrimSpace(sc.CronExpr) == "" {
			return invalid("cron_expr", "required for %s", FrequencyCron)
		}
	default:
		return invalid("frequency", "unknown frequency %q", sc.Frequency)
	}
	if sc.Weekday != "" {
		if _, ok := ParseWeekday(sc.Weekday); !ok {
			return invalid("weekday", "unknown weekday %q", sc.Weekday)
		}
	}
	if sc.RunTime.Hour < 0 || sc.RunTime.Hour > 23 || sc.RunTime.Minute < 0 || sc.RunTime.Minute > 59 ||
		sc.RunTime.Second < 0 || sc.RunTime.Second > 59 {
		return invalid("run_time", "out of range: %s", sc.RunTime)
	}
	s.schedule = sc
	return nil
}

// Document returns the persisted form of the session. The result shares
// nothing with the session.
func (s *Session) Document() *Document {
	st := s.state.Clone()
	doc := &Document{
		SourceAuth: s.auth,
		TargetDB:   s.target,
		ETL: ETLConfig{
			Mappings:        st.Mappings,
			Transformations: st.Transformations,
			LoadOrder:       st.LoadOrder,
			BatchSize:       st.BatchSize,
		},
		Schedule: s.schedule,
	}
	if doc.ETL.LoadOrder == nil {
		doc.ETL.LoadOrder = []string{}
	}
	if len(s.extra) > 0 {
		doc.Extra = make(map[string]json.RawMessage, len(s.extra))
		for k, v := range s.extra {
			doc.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return doc
}
