package storage

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/config.schema.json
var configSchema string

var (
	schemaOnce sync.Once
	schemaErr  error
	compiled   *gojsonschema.Schema
)

func documentSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiled, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(configSchema))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to parse JSON schema: %w", schemaErr)
		}
	})
	return compiled, schemaErr
}

// Lint checks raw against the current document schema and returns one
// message per violation. Legacy documents should be migrated first.
func Lint(raw []byte) ([]string, error) {
	schema, err := documentSchema()
	if err != nil {
		return nil, err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("JSON schema validation error: %w", err)
	}
	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return problems, nil
}
