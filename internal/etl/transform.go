package etl

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // IANA zones for timezone validation on hosts without zoneinfo
)

// ── Transform ──────────────────────────────────────────────
// A typed, parameterised conversion applied to one field between source
// and target. Stored flat (one struct, per-kind parameters) so the
// persisted JSON stays a plain object per field.

// TransformKind selects the conversion.
type TransformKind string

const (
	TransformNone        TransformKind = "none"
	TransformToNumber    TransformKind = "to_number"
	TransformToDate      TransformKind = "to_date"
	TransformToDateTime  TransformKind = "to_datetime"
	TransformToBoolean   TransformKind = "to_boolean"
	TransformEnumMapping TransformKind = "enum_mapping"
)

// NullStrategy decides what a numeric conversion does with empty input.
type NullStrategy string

const (
	NullZero     NullStrategy = "zero"
	NullKeepNull NullStrategy = "keep_null"
	NullDefault  NullStrategy = "default"
)

// DateFormat names a supported date layout.
type DateFormat string

const (
	DateISO     DateFormat = "YYYY-MM-DD"
	DateCompact DateFormat = "YYYYMMDD"
	DateSlash   DateFormat = "YYYY/MM/DD"
	DateISO8601 DateFormat = "ISO8601"
	DateManual  DateFormat = "Manual"
)

// MaxDecimalPlaces bounds to_number precision.
const MaxDecimalPlaces = 10

var dateFormats = []DateFormat{DateISO, DateCompact, DateSlash, DateISO8601, DateManual}

// TransformConfig is the tagged union of transform parameters; Type is the tag.
type TransformConfig struct {
	Type TransformKind `json:"type" yaml:"type"`

	// to_number
	DecimalPlaces int          `json:"decimal_places,omitempty" yaml:"decimal_places,omitempty"`
	NullStrategy  NullStrategy `json:"null_strategy,omitempty" yaml:"null_strategy,omitempty"`

	// to_date / to_datetime
	SourceFormat    DateFormat `json:"source_format,omitempty" yaml:"source_format,omitempty"`
	TargetFormat    DateFormat `json:"target_format,omitempty" yaml:"target_format,omitempty"`
	TimezoneConvert bool       `json:"timezone_convert,omitempty" yaml:"timezone_convert,omitempty"`
	SourceTZ        string     `json:"source_tz,omitempty" yaml:"source_tz,omitempty"`
	TargetTZ        string     `json:"target_tz,omitempty" yaml:"target_tz,omitempty"`

	// to_boolean
	TrueValues  []string `json:"true_values,omitempty" yaml:"true_values,omitempty"`
	FalseValues []string `json:"false_values,omitempty" yaml:"false_values,omitempty"`

	// enum_mapping: literal JSON object text, kept verbatim
	EnumMap string `json:"enum_map,omitempty" yaml:"enum_map,omitempty"`
}

// Kind returns the transform kind, treating an empty tag as none.
func (t TransformConfig) Kind() TransformKind {
	if t.Type == "" {
		return TransformNone
	}
	return t.Type
}

func (t TransformConfig) clone() TransformConfig {
	t.TrueValues = append([]string(nil), t.TrueValues...)
	t.FalseValues = append([]string(nil), t.FalseValues...)
	if len(t.TrueValues) == 0 {
		t.TrueValues = nil
	}
	if len(t.FalseValues) == 0 {
		t.FalseValues = nil
	}
	return t
}

// Validate checks the parameters required by the transform kind.
func (t TransformConfig) Validate() error {
	switch t.Kind() {
	case TransformNone:
		return nil
	case TransformToNumber:
		if t.DecimalPlaces < 0 || t.DecimalPlaces > MaxDecimalPlaces {
			return invalid("decimal_places", "must be between 0 and %d, got %d", MaxDecimalPlaces, t.DecimalPlaces)
		}
		switch t.NullStrategy {
		case NullZero, NullKeepNull, NullDefault:
			return nil
		case "":
			return invalid("null_strategy", "required for %s", t.Kind())
		default:
			return invalid("null_strategy", "unknown strategy %q (want zero, keep_null or default)", t.NullStrategy)
		}
	case TransformToDate, TransformToDateTime:
		return t.validateDate()
	case TransformToBoolean:
		return t.validateBoolean()
	case TransformEnumMapping:
		_, err := t.EnumTable()
		return err
	default:
		return invalid("type", "unknown transform %q", t.Type)
	}
}

func (t TransformConfig) validateDate() error {
	if err := checkDateFormat("source_format", t.SourceFormat); err != nil {
		return err
	}
	if err := checkDateFormat("target_format", t.TargetFormat); err != nil {
		return err
	}
	if !t.TimezoneConvert {
		return nil
	}
	if err := checkZone("source_tz", t.SourceTZ); err != nil {
		return err
	}
	return checkZone("target_tz", t.TargetTZ)
}

func checkDateFormat(field string, f DateFormat) error {
	if f == "" {
		return invalid(field, "required")
	}
	for _, known := range dateFormats {
		if f == known {
			return nil
		}
	}
	return invalid(field, "unknown date format %q", f)
}

func checkZone(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid(field, "required when timezone_convert is set")
	}
	if _, err := time.LoadLocation(name); err != nil {
		return invalid(field, "unknown time zone %q", name)
	}
	return nil
}

func (t TransformConfig) validateBoolean() error {
	if len(t.TrueValues) == 0 {
		return invalid("true_values", "at least one value required")
	}
	if len(t.FalseValues) == 0 {
		return invalid("false_values", "at least one value required")
	}
	trues := make(map[string]bool, len(t.TrueValues))
	for _, v := range t.TrueValues {
		if strings.TrimSpace(v) == "" {
			return invalid("true_values", "blank value")
		}
		trues[v] = true
	}
	for _, v := range t.FalseValues {
		if strings.TrimSpace(v) == "" {
			return invalid("false_values", "blank value")
		}
		if trues[v] {
			return invalid("false_values", "%q is also a true value", v)
		}
	}
	return nil
}

// EnumTable parses EnumMap as a JSON object of string values.
func (t TransformConfig) EnumTable() (map[string]string, error) {
	if strings.TrimSpace(t.EnumMap) == "" {
		return nil, invalid("enum_map", "required")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(t.EnumMap), &raw); err != nil || raw == nil {
		return nil, invalid("enum_map", "must be a JSON object")
	}
	table := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, invalid("enum_map", "value for %q must be a string", k)
		}
		table[k] = s
	}
	return table, nil
}

// String renders a compact description, e.g. "to_number(2, keep_null)".
func (t TransformConfig) String() string {
	switch t.Kind() {
	case TransformToNumber:
		return fmt.Sprintf("%s(%d, %s)", t.Kind(), t.DecimalPlaces, t.NullStrategy)
	case TransformToDate, TransformToDateTime:
		s := fmt.Sprintf("%s(%s -> %s", t.Kind(), t.SourceFormat, t.TargetFormat)
		if t.TimezoneConvert {
			s += fmt.Sprintf(", %s -> %s", t.SourceTZ, t.TargetTZ)
		}
		return s + ")"
	case TransformToBoolean:
		return fmt.Sprintf("%s(%s | %s)", t.Kind(), strings.Join(t.TrueValues, ","), strings.Join(t.FalseValues, ","))
	default:
		return string(t.Kind())
	}
}
