// Package diagnostics forwards client-side failures to the backend's error
// log and keeps a local copy of them.
//
// Reporters are fire-and-forget: Report never blocks on I/O and never
// returns an error, so a broken reporting path cannot change what the
// caller does next.
package diagnostics

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// Event is one diagnostic record.
type Event struct {
	ErrorMessage string         `json:"error_message"`
	Context      map[string]any `json:"context_json,omitempty"`
	Stacktrace   *string        `json:"stacktrace"`
}

type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// Record is the backend's app error log entry.
type Record struct {
	TSUTC        string         `json:"ts_utc"`
	Platform     string         `json:"platform"`
	AppVersion   string         `json:"app_version,omitempty"`
	ErrorMessage string         `json:"error_message"`
	Stacktrace   *string        `json:"stacktrace"`
	ContextJSON  map[string]any `json:"context_json,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	DeviceInfo   string         `json:"device_info,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
}

// Identity describes the client that produces records.
type Identity struct {
	Platform   string
	AppVersion string
	UserAgent  string
}

func (id Identity) record(ev Event, requestID string, now time.Time) Record {
	platform := id.Platform
	if platform == "" {
		platform = "desktop"
	}
	return Record{
		TSUTC:        now.UTC().Format(time.RFC3339Nano),
		Platform:     platform,
		AppVersion:   id.AppVersion,
		ErrorMessage: ev.ErrorMessage,
		Stacktrace:   ev.Stacktrace,
		ContextJSON:  ev.Context,
		UserAgent:    id.UserAgent,
		DeviceInfo:   runtime.GOOS + "/" + runtime.GOARCH,
		RequestID:    requestID,
	}
}

// Multi fans an event out to every reporter.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, ev Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, ev)
		}
	}
}

// LogReporter writes events to a logger only.
type LogReporter struct {
	Logger *slog.Logger
}

func (l LogReporter) Report(_ context.Context, ev Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("diagnostic event", "error_message", ev.ErrorMessage, "context", ev.Context)
}
