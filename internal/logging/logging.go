// internal/logging/logging.go

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger is the process-wide logger. It discards everything until Setup runs.
var Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Callback receives every record that passes the level filter, already
// flattened to one line.
type Callback func(level, message string)

type sinks struct {
	mu  sync.RWMutex
	cbs []Callback
}

func (s *sinks) emit(level, message string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cb := range s.cbs {
		cb(level, message)
	}
}

// Handler writes records through an inner handler and forwards a one-line
// copy of each to the subscribed callbacks.
type Handler struct {
	inner slog.Handler
	sinks *sinks
	pre   string
	group string
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner, sinks: &sinks{}}
}

// Subscribe adds cb. Callbacks run on the logging goroutine and must not log.
func (h *Handler) Subscribe(cb Callback) {
	h.sinks.mu.Lock()
	defer h.sinks.mu.Unlock()
	h.sinks.cbs = append(h.sinks.cbs, cb)
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	err := h.inner.Handle(ctx, r)

	var b strings.Builder
	b.WriteString(r.Message)
	b.WriteString(h.pre)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	h.sinks.emit(r.Level.String(), b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.inner = h.inner.WithAttrs(attrs)
	var b strings.Builder
	b.WriteString(h.pre)
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	next.pre = b.String()
	return &next
}

func (h *Handler) WithGroup(name string) slog.Handler {
	next := *h
	next.inner = h.inner.WithGroup(name)
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value.Resolve())
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Setup opens the log file at path, installs Logger and the slog default,
// and returns the handler so consoles can subscribe to the stream.
func Setup(path, level string) (*Handler, io.Closer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	h := NewHandler(slog.NewTextHandler(file, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}))
	Logger = slog.New(h).With("app", "passcam")
	slog.SetDefault(Logger)
	return h, file, nil
}
