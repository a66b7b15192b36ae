package etl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ── Document ───────────────────────────────────────────────
// The persisted configuration: one JSON object with the source
// credentials, the target connection, the ETL configuration and the
// schedule. Unknown top-level keys survive a load/save cycle.

// SourceAuth holds the source system credentials.
type SourceAuth struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	SecurityToken string `json:"security_token"`
	Domain        string `json:"domain"`
}

// TargetDB is the target database connection block.
type TargetDB struct {
	Driver   string `json:"driver,omitempty"` // mysql (default) | postgres | sqlite
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// ETLConfig is the persisted form of State.
type ETLConfig struct {
	Mappings        Registry `json:"mappings"`
	Transformations Rules    `json:"transformations"`
	LoadOrder       []string `json:"load_order"`
	BatchSize       int      `json:"batch_size,omitempty"`
}

// Frequency is how often a scheduled run fires.
type Frequency string

const (
	FrequencyDaily  Frequency = "Daily"
	FrequencyHourly Frequency = "Hourly"
	FrequencyWeekly Frequency = "Weekly"
	FrequencyCron   Frequency = "Cron Expression"
)

// ParseWeekday resolves a weekday name ("Monday", "mon"), case-insensitively.
func ParseWeekday(s string) (time.Weekday, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if len(key) < 3 {
		return 0, false
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.HasPrefix(strings.ToLower(d.String()), key) {
			return d, true
		}
	}
	return 0, false
}

// ScheduleConfig describes when the load job should run.
type ScheduleConfig struct {
	Frequency Frequency `json:"frequency"`
	RunTime   ClockTime `json:"run_time"`
	CronExpr  string    `json:"cron_expr,omitempty"`
	Weekday   string    `json:"weekday,omitempty"` // Weekly only; defaults to Monday
	IsActive  bool      `json:"is_active"`
}

// Document is the unified configuration document.
type Document struct {
	SourceAuth SourceAuth     `json:"sf_config"`
	TargetDB   TargetDB       `json:"mariadb_config"`
	ETL        ETLConfig      `json:"etl_config"`
	Schedule   ScheduleConfig `json:"schedule_config"`

	// Extra holds top-level keys this version does not know, compacted.
	Extra map[string]json.RawMessage `json:"-"`
}

// DefaultDocument returns the document used when nothing is stored yet.
func DefaultDocument() *Document {
	return &Document{
		TargetDB: TargetDB{Host: "localhost", Port: 3306},
		ETL: ETLConfig{
			Mappings:        Registry{},
			Transformations: Rules{},
			LoadOrder:       []string{},
			BatchSize:       DefaultBatchSize,
		},
		Schedule: ScheduleConfig{Frequency: FrequencyDaily, RunTime: DefaultRunTime},
	}
}

var knownSections = []string{"sf_config", "mariadb_config", "etl_config", "schedule_config"}

type documentFields struct {
	SourceAuth SourceAuth     `json:"sf_config"`
	TargetDB   TargetDB       `json:"mariadb_config"`
	ETL        ETLConfig      `json:"etl_config"`
	Schedule   ScheduleConfig `json:"schedule_config"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.Extra)+len(knownSections))
	for k, v := range d.Extra {
		out[k] = v
	}
	known, err := json.Marshal(documentFields{d.SourceAuth, d.TargetDB, d.ETL, d.Schedule})
	if err != nil {
		return nil, err
	}
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(known, &sections); err != nil {
		return nil, err
	}
	for k, v := range sections {
		out[k] = v
	}
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var f documentFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*d = Document{SourceAuth: f.SourceAuth, TargetDB: f.TargetDB, ETL: f.ETL, Schedule: f.Schedule}
	for _, k := range knownSections {
		delete(all, k)
	}
	for k, v := range all {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		if d.Extra == nil {
			d.Extra = make(map[string]json.RawMessage, len(all))
		}
		d.Extra[k] = buf.Bytes()
	}
	return nil
}

// ── ClockTime ──────────────────────────────────────────────

// ClockTime is a wall-clock time of day, persisted as "HH:MM:SS".
type ClockTime struct {
	Hour, Minute, Second int
}

// DefaultRunTime is substituted for unparsable legacy run times.
var DefaultRunTime = ClockTime{Hour: 9}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"15:04:05.999999",
	"3:04 PM",
	"3:04:05 PM",
	time.RFC3339,
}

// ParseClock parses the time-of-day layouts found in stored documents.
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return ClockTime{}, invalid("run_time", "unrecognised time %q (want HH:MM:SS)", s)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("run_time: %w", err)
	}
	t, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = t
	return nil
}
