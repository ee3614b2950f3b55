package diagnostics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS app_error_logs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    ts_utc        TEXT NOT NULL,
    platform      TEXT NOT NULL,
    app_version   TEXT,
    error_message TEXT NOT NULL,
    stacktrace    TEXT,
    context_json  TEXT,
    user_agent    TEXT,
    device_info   TEXT,
    request_id    TEXT
);
CREATE INDEX IF NOT EXISTS idx_app_error_logs_ts ON app_error_logs(ts_utc DESC);
`

// Journal keeps every diagnostic event in a local SQLite database, using
// the same table layout as the backend's error log.
type Journal struct {
	db       *sql.DB
	identity Identity
	logger   *slog.Logger
	now      func() time.Time
}

// OpenJournal opens (or creates) the journal at path. ":memory:" is allowed.
func OpenJournal(path string, identity Identity, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("error creating journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range strings.Split(journalSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal schema: %w", err)
		}
	}
	return &Journal{db: db, identity: identity, logger: logger, now: time.Now}, nil
}

// Report stores ev. Failures are logged and otherwise ignored.
func (j *Journal) Report(ctx context.Context, ev Event) {
	if err := j.Append(context.WithoutCancel(ctx), j.identity.record(ev, uuid.NewString(), j.now())); err != nil {
		j.logger.Warn("failed to journal diagnostic event", "error", err)
	}
}

// Append inserts rec.
func (j *Journal) Append(ctx context.Context, rec Record) error {
	var contextJSON sql.NullString
	if rec.ContextJSON != nil {
		b, err := json.Marshal(rec.ContextJSON)
		if err != nil {
			return fmt.Errorf("marshal context: %w", err)
		}
		contextJSON = sql.NullString{String: string(b), Valid: true}
	}
	var stack sql.NullString
	if rec.Stacktrace != nil {
		stack = sql.NullString{String: *rec.Stacktrace, Valid: true}
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO app_error_logs (
			ts_utc, platform, app_version, error_message, stacktrace,
			context_json, user_agent, device_info, request_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TSUTC, rec.Platform, rec.AppVersion, rec.ErrorMessage, stack,
		contextJSON, rec.UserAgent, rec.DeviceInfo, rec.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert error log: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT ts_utc, platform, COALESCE(app_version, ''), error_message, stacktrace,
		       context_json, COALESCE(user_agent, ''), COALESCE(device_info, ''), COALESCE(request_id, '')
		FROM app_error_logs
		ORDER BY id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query error logs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec         Record
			stack       sql.NullString
			contextJSON sql.NullString
		)
		if err := rows.Scan(&rec.TSUTC, &rec.Platform, &rec.AppVersion, &rec.ErrorMessage, &stack,
			&contextJSON, &rec.UserAgent, &rec.DeviceInfo, &rec.RequestID); err != nil {
			return nil, fmt.Errorf("scan error log: %w", err)
		}
		if stack.Valid {
			s := stack.String
			rec.Stacktrace = &s
		}
		if contextJSON.Valid {
			if err := json.Unmarshal([]byte(contextJSON.String), &rec.ContextJSON); err != nil {
				return nil, fmt.Errorf("decode context: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
