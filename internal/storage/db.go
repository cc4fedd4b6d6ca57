package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"mwb/internal"
	"mwb/internal/records"
)

type DB struct {
	conn *sql.DB
}

type RunRow struct {
	TraceID  string
	IssueKey string
	Timings  map[string]float64
	Counts   map[string]int
}

type DocumentRow struct {
	Hash   string
	URL    string
	Kind   string
	RawRef string
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
CREATE TABLE IF NOT EXISTS mwb_weeks (
  issue_key TEXT NOT NULL,
  week_date TEXT NOT NULL,
  language TEXT NOT NULL,
  content TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(issue_key, week_date, language)
);
CREATE INDEX IF NOT EXISTS idx_mwb_weeks_language_date ON mwb_weeks(language, week_date);

CREATE TABLE IF NOT EXISTS documents (
  hash TEXT PRIMARY KEY,
  url TEXT NOT NULL,
  kind TEXT NOT NULL,
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  issueKey TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
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

// UpsertWeeks writes weeks under (issueKey, start date, language). Weeks with
// no parts are skipped; the count of written rows is returned.
func (d *DB) UpsertWeeks(ctx context.Context, issueKey, language string, weeks []internal.WeekProgram) (int, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO mwb_weeks (issue_key, week_date, language, content, updatedAt)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(issue_key, week_date, language) DO UPDATE SET
  content=excluded.content,
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	written := 0
	for _, w := range weeks {
		row, err := records.Encode(w)
		if errors.Is(err, records.ErrMalformed) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, issueKey, row.WeekDate, language, string(row.Content)); err != nil {
			return 0, err
		}
		written++
	}

	return written, tx.Commit()
}

func (d *DB) DeleteIssue(ctx context.Context, issueKey, language string) (int64, error) {
	result, err := d.conn.ExecContext(ctx, `DELETE FROM mwb_weeks WHERE issue_key = ? AND language = ?`, issueKey, language)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RowsForWindow returns the rows of one issue ordered by week date.
func (d *DB) RowsForWindow(ctx context.Context, issueKey, language string) ([]records.Row, error) {
	return d.queryRows(ctx, `
SELECT content, week_date FROM mwb_weeks
WHERE issue_key = ? AND language = ?
ORDER BY week_date ASC
`, issueKey, language)
}

// RowsInRange returns the rows whose week date falls in [start, end].
func (d *DB) RowsInRange(ctx context.Context, start, end, language string) ([]records.Row, error) {
	return d.queryRows(ctx, `
SELECT content, week_date FROM mwb_weeks
WHERE language = ? AND week_date >= ? AND week_date <= ?
ORDER BY week_date ASC
`, language, start, end)
}

func (d *DB) queryRows(ctx context.Context, query string, args ...any) ([]records.Row, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []records.Row
	for rows.Next() {
		var content, weekDate string
		if err := rows.Scan(&content, &weekDate); err != nil {
			return nil, err
		}
		out = append(out, records.Row{Content: json.RawMessage(content), WeekDate: weekDate})
	}
	return out, rows.Err()
}

// UpsertDocument records an archived raw document. The first URL seen for a
// hash is kept.
func (d *DB) UpsertDocument(ctx context.Context, doc DocumentRow) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO documents (hash, url, kind, rawRef) VALUES (?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET rawRef = excluded.rawRef
`, doc.Hash, doc.URL, doc.Kind, doc.RawRef)
	return err
}

func (d *DB) GetDocument(ctx context.Context, hash string) (*DocumentRow, error) {
	var row DocumentRow
	err := d.conn.QueryRowContext(ctx, `SELECT hash, url, kind, rawRef FROM documents WHERE hash = ?`, hash).
		Scan(&row.Hash, &row.URL, &row.Kind, &row.RawRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) InsertRun(ctx context.Context, traceID, issueKey string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.ExecContext(ctx, `INSERT INTO runs (traceId, issueKey, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, issueKey, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) ListRuns(ctx context.Context, issueKey string, limit int) ([]RunRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT traceId, issueKey, timingsJson, countsJson FROM runs
WHERE issueKey = ? ORDER BY id DESC LIMIT ?
`, issueKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var row RunRow
		var timingsJSON, countsJSON string
		if err := rows.Scan(&row.TraceID, &row.IssueKey, &timingsJSON, &countsJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(timingsJSON), &row.Timings)
		_ = json.Unmarshal([]byte(countsJSON), &row.Counts)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(ctx context.Context, key string) (*string, error) {
	var value string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
