package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sfetl/internal/etl"
)

// ── SQL Sink ───────────────────────────────────────────────
// Stores documents in config_documents (one row per key) and appends every
// save to config_revisions. Each save runs in one transaction.

// SQLSink implements Sink and Historian on a SQL database.
type SQLSink struct {
	db *DB
}

// NewSQLSink creates a new SQLSink.
func NewSQLSink(db *DB) *SQLSink {
	return &SQLSink{db: db}
}

func (s *SQLSink) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data string
	err := s.db.conn.QueryRowContext(ctx,
		s.db.rebind(`SELECT data FROM config_documents WHERE doc_key = ?`), key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(data), true, nil
}

func (s *SQLSink) upsertQuery() string {
	if s.db.Dialect() == DialectMySQL {
		return `INSERT INTO config_documents (doc_key, data, updated_at) VALUES (?, ?, ?)
			 ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)`
	}
	return s.db.rebind(`INSERT INTO config_documents (doc_key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (doc_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
}

func (s *SQLSink) Put(ctx context.Context, key string, data []byte) error {
	now := time.Now().UTC()
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.upsertQuery(), key, string(data), now); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		s.db.rebind(`INSERT INTO config_revisions (id, doc_key, data, created_at) VALUES (?, ?, ?, ?)`),
		uuid.NewString(), key, string(data), now,
	); err != nil {
		return fmt.Errorf("record revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ── Revisions ──────────────────────────────────────────────

func (s *SQLSink) Revisions(ctx context.Context, key string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.conn.QueryContext(ctx,
		s.db.rebind(`SELECT id, doc_key, LENGTH(data), created_at
		 FROM config_revisions WHERE doc_key = ? ORDER BY created_at DESC LIMIT ?`),
		key, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.Key, &r.Size, &r.CreatedAt); err != nil {
			return nil, err
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

func (s *SQLSink) Revision(ctx context.Context, id string) ([]byte, error) {
	var data string
	err := s.db.conn.QueryRowContext(ctx,
		s.db.rebind(`SELECT data FROM config_revisions WHERE id = ?`), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("revision not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

// ── Run Logs ───────────────────────────────────────────────

// RunLog is a historical record of a load run.
type RunLog struct {
	ID         string    `json:"id"`
	PlanID     string    `json:"plan_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Steps      int       `json:"steps"`
	RowsRead   int       `json:"rows_read"`
	Error      string    `json:"error,omitempty"`
}

// RecordRun stores the outcome of a load run started at start.
func (s *SQLSink) RecordRun(ctx context.Context, start time.Time, report *etl.LoadReport) (*RunLog, error) {
	log := &RunLog{
		ID:         uuid.NewString(),
		PlanID:     report.PlanID,
		StartedAt:  start.UTC(),
		FinishedAt: start.Add(report.Duration).UTC(),
		Status:     report.Status,
		Steps:      len(report.Steps),
		Error:      report.Error,
	}
	for _, st := range report.Steps {
		log.RowsRead += st.RowsRead
	}
	_, err := s.db.conn.ExecContext(ctx,
		s.db.rebind(`INSERT INTO load_runs (id, plan_id, started_at, finished_at, status, steps, rows_read, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		log.ID, log.PlanID, log.StartedAt, log.FinishedAt, log.Status, log.Steps, log.RowsRead, log.Error,
	)
	if err != nil {
		return nil, err
	}
	return log, nil
}

// ListRuns returns the most recent load runs, newest first.
func (s *SQLSink) ListRuns(ctx context.Context, limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.conn.QueryContext(ctx,
		s.db.rebind(`SELECT id, plan_id, started_at, finished_at, status, steps, rows_read, error
		 FROM load_runs ORDER BY started_at DESC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []RunLog
	for rows.Next() {
		var l RunLog
		if err := rows.Scan(&l.ID, &l.PlanID, &l.StartedAt, &l.FinishedAt, &l.Status, &l.Steps, &l.RowsRead, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
