package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const ErrorsPath = "/errors"

// HTTPReporter posts events to the backend error log in the background.
type HTTPReporter struct {
	url      string
	identity Identity
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

func NewHTTPReporter(baseURL string, identity Identity, client *http.Client, logger *slog.Logger) *HTTPReporter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPReporter{
		url:      strings.TrimRight(baseURL, "/") + ErrorsPath,
		identity: identity,
		client:   client,
		logger:   logger,
		now:      time.Now,
	}
}

// Report sends ev asynchronously. The caller's context only contributes its
// values; the send outlives it.
func (r *HTTPReporter) Report(ctx context.Context, ev Event) {
	rec := r.identity.record(ev, uuid.NewString(), r.now())
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.send(context.WithoutCancel(ctx), rec); err != nil {
			r.logger.Warn("failed to report diagnostic event", "error", err, "request_id", rec.RequestID)
		}
	}()
}

// Wait blocks until every pending send has finished.
func (r *HTTPReporter) Wait() {
	r.wg.Wait()
}

func (r *HTTPReporter) send(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", rec.RequestID)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", r.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: status %d", r.url, resp.StatusCode)
	}
	return nil
}
