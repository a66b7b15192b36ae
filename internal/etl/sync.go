package etl

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ── Engine ─────────────────────────────────────────────────
// Hands plans to a Loader and previews source rows. The engine never
// talks to a target itself; the Loader owns statement execution.

// Loader executes a load plan against a target.
type Loader interface {
	ExecuteLoad(ctx context.Context, plan *LoadPlan) (*LoadReport, error)
}

// StepReport is the outcome of one plan step.
type StepReport struct {
	Object      string       `json:"object" yaml:"object"`
	TargetTable string       `json:"target_table" yaml:"target_table"`
	Strategy    LoadStrategy `json:"strategy" yaml:"strategy"`
	Statements  []string     `json:"statements" yaml:"statements"`
	RowsRead    int          `json:"rows_read" yaml:"rows_read"`
	RowsWritten int          `json:"rows_written" yaml:"rows_written"`
	Error       string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// LoadReport is the outcome of running a plan.
type LoadReport struct {
	PlanID   string        `json:"plan_id" yaml:"plan_id"`
	Status   string        `json:"status" yaml:"status"` // "success" | "error"
	Steps    []StepReport  `json:"steps" yaml:"steps"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Preview row limits.
const (
	DefaultPreviewRows = 5
	MaxPreviewRows     = 200
)

var errNoLoader = errors.New("no loader configured")

// Engine previews source rows and runs load plans.
type Engine struct {
	Source Querier
	Loader Loader
}

// Run executes plan end-to-end through the Loader.
func (e *Engine) Run(ctx context.Context, plan *LoadPlan) (*LoadReport, error) {
	start := time.Now()
	if plan == nil || len(plan.Steps) == 0 {
		return nil, invalid("plan", "empty load plan")
	}
	if e.Loader == nil {
		return nil, errNoLoader
	}

	report, err := e.Loader.ExecuteLoad(ctx, plan)
	if report == nil {
		report = &LoadReport{PlanID: plan.ID}
	}
	report.Duration = time.Since(start)
	if err != nil {
		report.Status = "error"
		report.Error = err.Error()
		return report, fmt.Errorf("execute load: %w", err)
	}
	report.Status = "success"
	return report, nil
}

// Preview returns up to limit rows of object restricted to fields.
// A non-positive limit means DefaultPreviewRows.
func (e *Engine) Preview(ctx context.Context, object string, fields []string, limit int) ([]Record, error) {
	if e.Source == nil {
		return nil, &CatalogError{Op: "preview " + object, Err: errNotConfigured}
	}
	if len(fields) == 0 {
		return nil, invalid("fields", "select at least one field to preview")
	}
	switch {
	case limit <= 0:
		limit = DefaultPreviewRows
	case limit > MaxPreviewRows:
		limit = MaxPreviewRows
	}

	rows, err := e.Source.Query(ctx, object, fields, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", object, err)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
