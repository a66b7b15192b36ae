package etl

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A source connector describes the objects it exposes and answers preview
// queries. Implementations live in etl/sources/, one file per type.

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Type     string `json:"type"` // "string" | "file" | "password"
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// SourceSpec describes a source type and its configuration inputs.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Querier runs preview queries against a source.
type Querier interface {
	Query(ctx context.Context, object string, fields []string, limit int) ([]Record, error)
}

// Source is an opened source connector.
type Source interface {
	SourceCatalog
	Querier
}

// SourceFactory opens a source from its configuration.
type SourceFactory func(cfg SourceConfig) (Source, error)

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

type registration struct {
	spec    SourceSpec
	factory SourceFactory
}

var (
	registryMu sync.RWMutex
	registry   = map[string]registration{}
)

// RegisterSource registers a source type.
// Called from init() in each source implementation file.
func RegisterSource(spec SourceSpec, f SourceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[spec.Type] = registration{spec: spec, factory: f}
}

// OpenSource opens a registered source type with cfg.
func OpenSource(typ string, cfg SourceConfig) (Source, error) {
	registryMu.RLock()
	reg, ok := registry[typ]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	for _, f := range reg.spec.ConfigFields {
		if !f.Required {
			continue
		}
		if v, _ := cfg[f.Key].(string); v == "" {
			return nil, fmt.Errorf("%s: %s is required", typ, f.Key)
		}
	}
	return reg.factory(cfg)
}

// ListSources returns the specs of all registered sources, sorted by type.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, r := range registry {
		specs = append(specs, r.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}
