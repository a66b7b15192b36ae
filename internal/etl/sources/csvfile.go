package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"sfetl/internal/etl"
)

// ── CSV Directory Source ────────────────────────────────────
// Each <Object>.csv file in a directory is one source object; the header
// row lists its fields.

// CSVDir is a directory of per-object CSV exports.
type CSVDir struct {
	Dir       string
	Delimiter rune
}

// TypeCSVDir is the registered source type.
const TypeCSVDir = "csv_dir"

func init() {
	etl.RegisterSource(etl.SourceSpec{
		Type:  TypeCSVDir,
		Label: "CSV Directory",
		ConfigFields: []etl.ConfigField{
			{Key: "dirPath", Label: "Directory", Type: "file", Required: true, Help: "Directory holding one <Object>.csv per source object"},
			{Key: "delimiter", Label: "Delimiter", Type: "string", Required: false, Default: ",", Help: "Column delimiter (default: comma)"},
		},
	}, func(cfg etl.SourceConfig) (etl.Source, error) {
		dir, _ := cfg["dirPath"].(string)
		s := &CSVDir{Dir: dir, Delimiter: ','}
		if delim, ok := cfg["delimiter"].(string); ok && len(delim) > 0 {
			s.Delimiter = rune(delim[0])
		}
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("open csv dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("open csv dir: %s is not a directory", dir)
		}
		return s, nil
	})
}

func (s *CSVDir) ListObjects(context.Context) ([]etl.ObjectInfo, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	out := make([]etl.ObjectInfo, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), ".csv")
		out = append(out, etl.ObjectInfo{Name: name, Label: name})
	}
	return out, nil
}

func (s *CSVDir) ListFields(_ context.Context, object string) ([]etl.FieldInfo, error) {
	headers, _, err := s.read(object, -1)
	if err != nil {
		return nil, err
	}
	out := make([]etl.FieldInfo, len(headers))
	for i, h := range headers {
		out[i] = etl.FieldInfo{Name: h, Label: h}
	}
	return out, nil
}

func (s *CSVDir) Query(ctx context.Context, object string, fields []string, limit int) ([]etl.Record, error) {
	headers, rows, err := s.read(object, limit)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[h] = i
	}
	for _, f := range fields {
		if _, ok := idx[f]; !ok {
			return nil, fmt.Errorf("%s has no field %q", object, f)
		}
	}

	out := make([]etl.Record, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		data := make(map[string]any, len(fields))
		for _, f := range fields {
			if j := idx[f]; j < len(row) {
				data[f] = inferCSVValue(row[j])
			} else {
				data[f] = nil
			}
		}
		out = append(out, etl.Record{Data: data})
	}
	return out, nil
}

// read returns the header and up to limit data rows: all of them when
// limit is 0, none when it is negative.
func (s *CSVDir) read(object string, limit int) ([]string, [][]string, error) {
	if strings.ContainsAny(object, `/\`) {
		return nil, nil, fmt.Errorf("invalid object name %q", object)
	}
	f, err := os.Open(filepath.Join(s.Dir, object+".csv"))
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", object, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if s.Delimiter != 0 {
		reader.Comma = s.Delimiter
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s header: %w", object, err)
	}
	var rows [][]string
	for limit >= 0 && (limit == 0 || len(rows) < limit) {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("parse %s: %w", object, err)
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

// inferCSVValue tries to parse a string as a number or bool.
func inferCSVValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	}
	return s
}
