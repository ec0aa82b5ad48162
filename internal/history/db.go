// internal/history/db.go
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one journaled event dispatch. The journal is an audit trail: it
// is never read back into the dispatch path and grants no delivery guarantee.
type Record struct {
	ID          int64     `json:"id"`
	DispatchID  string    `json:"dispatch_id"`
	TriggerName string    `json:"trigger"`
	EventType   string    `json:"event_type"`
	Source      string    `json:"source"`
	ADWID       string    `json:"adw_id,omitempty"`
	IssueNumber int       `json:"issue_number,omitempty"`
	RepoPath    string    `json:"repo_path,omitempty"`
	Workflow    string    `json:"workflow,omitempty"`
	Payload     string    `json:"payload,omitempty"` // JSON-serialized, scrubbed, max 4KB
	ReceivedAt  time.Time `json:"received_at"`
}

// DB wraps the SQLite connection holding the dispatch journal.
type DB struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS dispatch_journal (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    dispatch_id TEXT NOT NULL,
    trigger_name TEXT NOT NULL,
    event_type TEXT NOT NULL,
    source TEXT NOT NULL,
    adw_id TEXT,
    issue_number INTEGER,
    repo_path TEXT,
    workflow TEXT,
    payload TEXT,
    received_at DATETIME NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_dispatch_journal_trigger ON dispatch_journal(trigger_name);
CREATE INDEX IF NOT EXISTS idx_dispatch_journal_received ON dispatch_journal(received_at);
`

const maxPayloadBytes = 4096

// Open opens or creates the journal database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if count == 0 {
		db.Exec("INSERT INTO schema_version (version) VALUES (1)")
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Append stores one journal record and returns its row id. The payload is
// scrubbed of token-shaped content and truncated before storage.
func (d *DB) Append(rec Record) (int64, error) {
	payload := Scrub(rec.Payload)
	if len(payload) > maxPayloadBytes {
		payload = payload[:maxPayloadBytes]
	}

	result, err := d.db.Exec(`
		INSERT INTO dispatch_journal
		(dispatch_id, trigger_name, event_type, source, adw_id, issue_number,
		 repo_path, workflow, payload, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DispatchID, rec.TriggerName, rec.EventType, rec.Source, rec.ADWID,
		rec.IssueNumber, rec.RepoPath, rec.Workflow, payload, rec.ReceivedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("appending journal record: %w", err)
	}
	return result.LastInsertId()
}

// List retrieves journal records newest-first, optionally filtered by trigger
// name.
func (d *DB) List(triggerName string, limit int) ([]Record, error) {
	query := `SELECT id, dispatch_id, trigger_name, event_type, source,
		adw_id, issue_number, repo_path, workflow, payload, received_at
		FROM dispatch_journal WHERE 1=1`
	var args []any

	if triggerName != "" {
		query += " AND trigger_name = ?"
		args = append(args, triggerName)
	}

	query += " ORDER BY received_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var adwID, repoPath, workflow, payload sql.NullString
		var issueNumber sql.NullInt64
		if err := rows.Scan(&r.ID, &r.DispatchID, &r.TriggerName, &r.EventType,
			&r.Source, &adwID, &issueNumber, &repoPath, &workflow, &payload,
			&r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scanning journal record: %w", err)
		}
		r.ADWID = adwID.String
		r.IssueNumber = int(issueNumber.Int64)
		r.RepoPath = repoPath.String
		r.Workflow = workflow.String
		r.Payload = payload.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// Cleanup removes journal records older than the given number of days and
// returns how many were deleted.
func (d *DB) Cleanup(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result, err := d.db.Exec(
		"DELETE FROM dispatch_journal WHERE received_at < ?", cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up journal: %w", err)
	}
	return result.RowsAffected()
}
