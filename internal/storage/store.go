package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"sfetl/internal/etl"
)

// ── Config Store ───────────────────────────────────────────
// Joins a sink with the migrator and the document codec. Load always
// migrates before decoding; Save always writes the current shape.

// ConfigStore loads and saves one configuration document.
type ConfigStore struct {
	sink Sink
	key  string
}

// NewConfigStore returns a store for key on sink. An empty key means DefaultKey.
func NewConfigStore(sink Sink, key string) *ConfigStore {
	if key == "" {
		key = DefaultKey
	}
	return &ConfigStore{sink: sink, key: key}
}

// Key returns the document key.
func (s *ConfigStore) Key() string { return s.key }

// Sink returns the underlying sink.
func (s *ConfigStore) Sink() Sink { return s.sink }

// Load returns the stored document, or nil when nothing was stored yet.
// An empty stored value loads as an empty document.
func (s *ConfigStore) Load(ctx context.Context) (*etl.Document, []etl.MigrationWarning, error) {
	raw, found, err := s.sink.Get(ctx, s.key)
	if err != nil {
		return nil, nil, &etl.PersistenceError{Op: "load", Err: err}
	}
	if !found {
		return nil, nil, nil
	}
	return Decode(raw)
}

// Decode migrates and decodes raw document bytes.
func Decode(raw []byte) (*etl.Document, []etl.MigrationWarning, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	migrated, warnings, err := etl.Migrate(raw)
	if err != nil {
		return nil, nil, &etl.PersistenceError{Op: "migrate", Err: err}
	}
	var doc etl.Document
	if err := json.Unmarshal(migrated, &doc); err != nil {
		return nil, warnings, &etl.PersistenceError{Op: "decode", Err: err}
	}
	return &doc, warnings, nil
}

// Encode renders doc as indented JSON.
func Encode(doc *etl.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes doc. On failure the previous durable version is untouched.
func (s *ConfigStore) Save(ctx context.Context, doc *etl.Document) error {
	if doc == nil {
		return &etl.PersistenceError{Op: "save", Err: fmt.Errorf("nil document")}
	}
	data, err := Encode(doc)
	if err != nil {
		return &etl.PersistenceError{Op: "save", Err: err}
	}
	if err := s.sink.Put(ctx, s.key, data); err != nil {
		return &etl.PersistenceError{Op: "save", Err: err}
	}
	return nil
}
