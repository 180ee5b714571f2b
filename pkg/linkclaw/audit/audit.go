// Package audit records performed rewrites in a SQLite history table.
// The log is informational: a write failure is logged and never blocks the
// pipeline. Entries older than 30 days are pruned on startup.
package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded rewrite.
type Entry struct {
	TenantID  string
	ChannelID string
	MessageID string
	SourceURL string
	SizeBytes int64
	CreatedAt time.Time
}

// Log writes rewrite records to the rewrites table.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS rewrites (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	source_url TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rewrites_tenant ON rewrites(tenant_id);
`

// Open creates (or opens) the audit database at path and ensures the schema.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing audit schema: %w", err)
	}
	l := &Log{db: db, logger: logger.With("component", "audit")}
	go l.prune()
	return l, nil
}

// Record stores one rewrite. Failures are logged, never returned.
func (l *Log) Record(e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := l.db.Exec(`
		INSERT INTO rewrites (tenant_id, channel_id, message_id, source_url, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.TenantID, e.ChannelID, e.MessageID, e.SourceURL, e.SizeBytes,
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		l.logger.Warn("failed to write audit entry", "url", e.SourceURL, "error", err)
	}
}

// Recent returns the last n rewrites, newest first.
func (l *Log) Recent(n int) ([]Entry, error) {
	rows, err := l.db.Query(`
		SELECT tenant_id, channel_id, message_id, source_url, size_bytes, created_at
		FROM rewrites ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.TenantID, &e.ChannelID, &e.MessageID, &e.SourceURL, &e.SizeBytes, &created); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// prune deletes entries older than 30 days.
func (l *Log) prune() {
	cutoff := time.Now().AddDate(0, 0, -30).UTC().Format(time.RFC3339)
	result, err := l.db.Exec("DELETE FROM rewrites WHERE created_at < ?", cutoff)
	if err != nil {
		l.logger.Warn("audit prune failed", "error", err)
		return
	}
	if n, _ := result.RowsAffected(); n > 0 {
		l.logger.Info("audit log pruned", "removed", n)
	}
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
