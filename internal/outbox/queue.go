// Package outbox persists screening decisions before they are delivered to the
// backend, so a decision survives a failed request or a closed terminal.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/asreview/prior/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    document_id INTEGER NOT NULL,
    label INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    sent_at INTEGER,
    rejected_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_decisions_pending ON decisions(sent_at, rejected_at, created_at);
`

// ErrNotFound is returned when a decision ID does not exist
var ErrNotFound = errors.New("decision not found")

// Queue is a sqlite-backed list of decisions awaiting delivery
type Queue struct {
	conn  *sql.DB
	now   func() time.Time
	newID func() string
}

// Stats summarizes the queue
type Stats struct {
	Pending       int        `json:"pending"`
	Sent          int        `json:"sent"`
	Rejected      int        `json:"rejected"`
	Retrying      int        `json:"retrying"`
	OldestPending *time.Time `json:"oldest_pending,omitempty"`
	LastSent      *time.Time `json:"last_sent,omitempty"`
}

// Open opens (or creates) the outbox database at path
func Open(path string) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create outbox dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}

	// Enable WAL mode so `prior sync` can read while the dialog writes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.SetMaxOpenConns(1)

	q, err := New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

// New wraps an open connection and creates the schema if needed
func New(conn *sql.DB) (*Queue, error) {
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Queue{
		conn:  conn,
		now:   time.Now,
		newID: func() string { return "dc-" + uuid.NewString() },
	}, nil
}

// Close closes the database
func (q *Queue) Close() error {
	return q.conn.Close()
}

// Enqueue stores a new decision
func (q *Queue) Enqueue(ctx context.Context, projectID string, docID int64, label models.Label) (models.Decision, error) {
	if !models.IsValidLabel(label) {
		return models.Decision{}, fmt.Errorf("enqueue: invalid label %d", label)
	}
	d := models.Decision{
		ID:         q.newID(),
		ProjectID:  projectID,
		DocumentID: docID,
		Label:      label,
		CreatedAt:  q.now().UTC(),
	}
	_, err := q.conn.ExecContext(ctx, `
		INSERT INTO decisions (id, project_id, document_id, label, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.ID, d.ProjectID, d.DocumentID, int(d.Label), d.CreatedAt.UnixMilli())
	if err != nil {
		return models.Decision{}, fmt.Errorf("enqueue: %w", err)
	}
	return d, nil
}

// Pending returns undelivered decisions, oldest first. limit <= 0 means all.
func (q *Queue) Pending(ctx context.Context, limit int) ([]models.Decision, error) {
	query := `
		SELECT id, project_id, document_id, label, created_at, attempts, last_error
		FROM decisions
		WHERE sent_at IS NULL AND rejected_at IS NULL
		ORDER BY created_at, rowid`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := q.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pending: %w", err)
	}
	defer rows.Close()

	var out []models.Decision
	for rows.Next() {
		var d models.Decision
		var label int
		var created int64
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.DocumentID, &label, &created, &d.Attempts, &d.LastError); err != nil {
			return nil, fmt.Errorf("pending: scan: %w", err)
		}
		d.Label = models.Label(label)
		d.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkSent records a successful delivery
func (q *Queue) MarkSent(ctx context.Context, id string) error {
	return q.update(ctx, id, `UPDATE decisions SET sent_at = ?, attempts = attempts + 1, last_error = '' WHERE id = ?`,
		q.now().UTC().UnixMilli(), id)
}

// MarkFailed records a failed attempt; the decision stays pending
func (q *Queue) MarkFailed(ctx context.Context, id string, cause error) error {
	return q.update(ctx, id, `UPDATE decisions SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		errString(cause), id)
}

// MarkRejected takes a decision out of the pending set permanently
func (q *Queue) MarkRejected(ctx context.Context, id string, cause error) error {
	return q.update(ctx, id, `UPDATE decisions SET rejected_at = ?, attempts = attempts + 1, last_error = ? WHERE id = ?`,
		q.now().UTC().UnixMilli(), errString(cause), id)
}

func (q *Queue) update(ctx context.Context, id, query string, args ...any) error {
	res, err := q.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update decision %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update decision %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update decision %s: %w", id, ErrNotFound)
	}
	return nil
}

// Stats returns queue counts
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var oldest, lastSent sql.NullInt64
	err := q.conn.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN sent_at IS NULL AND rejected_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sent_at IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN rejected_at IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sent_at IS NULL AND rejected_at IS NULL AND attempts > 0 THEN 1 ELSE 0 END), 0),
			MIN(CASE WHEN sent_at IS NULL AND rejected_at IS NULL THEN created_at END),
			MAX(sent_at)
		FROM decisions
	`).Scan(&s.Pending, &s.Sent, &s.Rejected, &s.Retrying, &oldest, &lastSent)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	if oldest.Valid {
		t := time.UnixMilli(oldest.Int64).UTC()
		s.OldestPending = &t
	}
	if lastSent.Valid {
		t := time.UnixMilli(lastSent.Int64).UTC()
		s.LastSent = &t
	}
	return s, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
