package etl

import (
	"context"
	"fmt"
	"strings"
)

// ── Destination ────────────────────────────────────────────
// DryRunLoader renders the statements each plan step would issue against
// a MySQL/MariaDB target without touching it. When Source is set it also
// reads up to one batch per step so the report carries row counts.

// DryRunLoader implements Loader without executing anything.
type DryRunLoader struct {
	Source Querier
}

func (l *DryRunLoader) ExecuteLoad(ctx context.Context, plan *LoadPlan) (*LoadReport, error) {
	report := &LoadReport{PlanID: plan.ID}
	for _, st := range plan.Steps {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		sr := StepReport{
			Object:      st.Object,
			TargetTable: st.TargetTable,
			Strategy:    st.Strategy,
			Statements:  Statements(st),
		}
		if l.Source != nil {
			fields := make([]string, len(st.Columns))
			for i, c := range st.Columns {
				fields[i] = c.Field
			}
			rows, err := l.Source.Query(ctx, st.Object, fields, plan.BatchSize)
			if err != nil {
				sr.Error = err.Error()
				report.Steps = append(report.Steps, sr)
				return report, fmt.Errorf("read %s: %w", st.Object, err)
			}
			sr.RowsRead = len(rows)
		}
		report.Steps = append(report.Steps, sr)
	}
	return report, nil
}

// Statements renders the SQL a step issues, with ? placeholders.
func Statements(st PlanStep) []string {
	cols := make([]string, len(st.Columns))
	marks := make([]string, len(st.Columns))
	for i, c := range st.Columns {
		cols[i] = quoteIdent(c.Column)
		marks[i] = "?"
	}
	table := quoteIdent(st.TargetTable)
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(marks, ", "))

	switch st.Strategy {
	case StrategyBulkLoad:
		return []string{fmt.Sprintf(
			"LOAD DATA LOCAL INFILE %s INTO TABLE %s FIELDS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '\"' (%s)",
			quoteString(dataFile(st.Object)), table, strings.Join(cols, ", "))}
	case StrategyUpsert:
		var sets []string
		for _, c := range st.Columns {
			if c.Column == st.MatchKey {
				continue
			}
			q := quoteIdent(c.Column)
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", q, q))
		}
		if len(sets) == 0 {
			q := quoteIdent(st.MatchKey)
			sets = append(sets, fmt.Sprintf("%s = %s", q, q))
		}
		return []string{insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")}
	case StrategyOverwrite:
		return []string{"TRUNCATE TABLE " + table, insert}
	default:
		return []string{insert}
	}
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

var (
	pathSeparators = strings.NewReplacer("/", "_", `\`, "_")
	stringEscapes  = strings.NewReplacer(`\`, `\\`, "'", `\'`)
)

// dataFile names the CSV export a bulk load reads for object. It never
// leaves the working directory.
func dataFile(object string) string {
	return strings.ToLower(pathSeparators.Replace(object)) + ".csv"
}

// quoteString renders s as a MySQL string literal.
func quoteString(s string) string {
	return "'" + stringEscapes.Replace(s) + "'"
}
