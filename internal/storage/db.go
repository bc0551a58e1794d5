package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"courierval/internal"
)

const timeLayout = time.RFC3339

type DB struct {
	conn *sql.DB
}

// RunRow is one journaled run as listed by the history command.
type RunRow struct {
	ID         string
	Day        string
	DryRun     bool
	Status     string
	Error      string
	Counts     map[string]int
	StartedAt  time.Time
	FinishedAt *time.Time
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  day TEXT NOT NULL,
  dryRun INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'running',
  error TEXT NOT NULL DEFAULT '',
  countsJson TEXT NOT NULL DEFAULT '{}',
  startedAt TEXT NOT NULL,
  finishedAt TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_day ON runs(day);

CREATE TABLE IF NOT EXISTS email_records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  clientKey TEXT NOT NULL,
  summedTotal INTEGER NOT NULL,
  statedTotal INTEGER NOT NULL,
  subject TEXT,
  messageId TEXT,
  receivedAt TEXT,
  rawRef TEXT,
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_email_records_client ON email_records(clientKey);

CREATE TABLE IF NOT EXISTS outcomes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  clientKey TEXT NOT NULL,
  summedTotal INTEGER NOT NULL,
  statedTotal INTEGER NOT NULL,
  observedTotal INTEGER NOT NULL,
  displayValue INTEGER NOT NULL,
  method TEXT NOT NULL,
  status TEXT NOT NULL,
  duplicates INTEGER NOT NULL DEFAULT 0,
  UNIQUE(runId, clientKey),
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS reply_actions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  clientKey TEXT NOT NULL,
  messageId TEXT,
  subject TEXT,
  method TEXT NOT NULL,
  displayValue INTEGER NOT NULL,
  observedTotal INTEGER NOT NULL,
  moved INTEGER NOT NULL,
  dryRun INTEGER NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) StartRun(id string, day time.Time, dryRun bool) error {
	_, err := d.conn.Exec(`INSERT INTO runs (id, day, dryRun, startedAt) VALUES (?, ?, ?, ?)`,
		id, day.Format("2006-01-02"), dryRun, time.Now().UTC().Format(timeLayout))
	return err
}

func (d *DB) FinishRun(id, status, errMsg string, counts map[string]int) error {
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`
UPDATE runs SET status = ?, error = ?, countsJson = ?, finishedAt = ? WHERE id = ?
`, status, errMsg, string(countsJSON), time.Now().UTC().Format(timeLayout), id)
	return err
}

// RecordEmails stores the run's email records. rawRefs maps a Message-ID to its
// archived raw file.
func (d *DB) RecordEmails(runID string, records []internal.EmailRecord, rawRefs map[string]string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO email_records (runId, clientKey, summedTotal, statedTotal, subject, messageId, receivedAt, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		received := ""
		if !r.ReceivedAt.IsZero() {
			received = r.ReceivedAt.UTC().Format(timeLayout)
		}
		if _, err := stmt.Exec(runID, r.ClientKey, r.SummedTotal, r.StatedTotal, r.Subject, r.MessageID, received, rawRefs[r.MessageID]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) RecordOutcomes(runID string, outcomes []internal.ValidationOutcome) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO outcomes (runId, clientKey, summedTotal, statedTotal, observedTotal, displayValue, method, status, duplicates)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(runId, clientKey) DO UPDATE SET
  summedTotal=excluded.summedTotal,
  statedTotal=excluded.statedTotal,
  observedTotal=excluded.observedTotal,
  displayValue=excluded.displayValue,
  method=excluded.method,
  status=excluded.status,
  duplicates=excluded.duplicates
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range outcomes {
		if _, err := stmt.Exec(runID, o.ClientKey, o.SummedTotal, o.StatedTotal, o.ObservedTotal, o.DisplayValue,
			string(o.Method), string(o.Status), o.Duplicates); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) RecordReplies(runID string, actions []internal.ReplyAction) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO reply_actions (runId, clientKey, messageId, subject, method, displayValue, observedTotal, moved, dryRun)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range actions {
		if _, err := stmt.Exec(runID, a.ClientKey, a.MessageID, a.Subject, string(a.Method), a.DisplayValue, a.Observed, a.Moved, a.DryRun); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListOutcomes(runID string) ([]internal.ValidationOutcome, error) {
	rows, err := d.conn.Query(`
SELECT clientKey, summedTotal, statedTotal, observedTotal, displayValue, method, status, duplicates
FROM outcomes WHERE runId = ? ORDER BY id ASC
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ValidationOutcome
	for rows.Next() {
		var o internal.ValidationOutcome
		var method, status string
		if err := rows.Scan(&o.ClientKey, &o.SummedTotal, &o.StatedTotal, &o.ObservedTotal, &o.DisplayValue, &method, &status, &o.Duplicates); err != nil {
			return nil, err
		}
		o.Method = internal.ValidationMethod(method)
		o.Status = internal.OutcomeStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (d *DB) CountReplies(runID string) (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM reply_actions WHERE runId = ?`, runID).Scan(&n)
	return n, err
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, day, dryRun, status, error, countsJson, startedAt, finishedAt
FROM runs ORDER BY startedAt DESC, rowid DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var row RunRow
		var countsJSON, startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&row.ID, &row.Day, &row.DryRun, &row.Status, &row.Error, &countsJSON, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(countsJSON), &row.Counts)
		row.StartedAt, _ = time.Parse(timeLayout, startedAt)
		if finishedAt.Valid {
			if t, err := time.Parse(timeLayout, finishedAt.String); err == nil {
				row.FinishedAt = &t
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
