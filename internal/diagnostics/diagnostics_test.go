package diagnostics

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPReporter_PostsRecord(t *testing.T) {
	var (
		mu      sync.Mutex
		records []Record
		paths   []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		records = append(records, rec)
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	r := NewHTTPReporter(srv.URL+"/", Identity{AppVersion: "1.2.3", UserAgent: "passcam-test"}, srv.Client(), quietLogger())
	r.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("MSK", 3*3600)) }

	ctx, cancel := context.WithCancel(context.Background())
	r.Report(ctx, Event{
		ErrorMessage: "Camera access error: denied",
		Context:      map[string]any{"error_name": "NotAllowedError"},
	})
	cancel()
	r.Wait()

	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if paths[0] != ErrorsPath {
		t.Errorf("path = %q", paths[0])
	}
	if rec.TSUTC != "2026-03-04T02:06:07Z" {
		t.Errorf("ts_utc = %q", rec.TSUTC)
	}
	if rec.Platform != "desktop" || rec.AppVersion != "1.2.3" || rec.UserAgent != "passcam-test" {
		t.Errorf("record identity = %+v", rec)
	}
	if rec.ErrorMessage != "Camera access error: denied" || rec.ContextJSON["error_name"] != "NotAllowedError" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Stacktrace != nil {
		t.Errorf("stacktrace = %q, want null", *rec.Stacktrace)
	}
	if rec.RequestID == "" || rec.DeviceInfo == "" {
		t.Errorf("record = %+v", rec)
	}
}

func TestHTTPReporter_FailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPReporter(srv.URL, Identity{}, srv.Client(), quietLogger())
	r.Report(context.Background(), Event{ErrorMessage: "x"})
	r.Wait()
}

func TestJournal_AppendAndRecent(t *testing.T) {
	j, err := OpenJournal(":memory:", Identity{Platform: "kiosk"}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	stack := "frame 1"
	ctx := context.Background()
	j.Report(ctx, Event{ErrorMessage: "first"})
	j.Report(ctx, Event{ErrorMessage: "second", Context: map[string]any{"op": "post snapshot"}, Stacktrace: &stack})

	recs, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].ErrorMessage != "second" || recs[1].ErrorMessage != "first" {
		t.Errorf("order = %q, %q", recs[0].ErrorMessage, recs[1].ErrorMessage)
	}
	if recs[0].Platform != "kiosk" {
		t.Errorf("platform = %q", recs[0].Platform)
	}
	if recs[0].ContextJSON["op"] != "post snapshot" {
		t.Errorf("context = %v", recs[0].ContextJSON)
	}
	if recs[0].Stacktrace == nil || *recs[0].Stacktrace != "frame 1" {
		t.Errorf("stacktrace = %v", recs[0].Stacktrace)
	}
	if recs[1].Stacktrace != nil || recs[1].ContextJSON != nil {
		t.Errorf("null columns not preserved: %+v", recs[1])
	}

	one, err := j.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 {
		t.Errorf("limit ignored: %d records", len(one))
	}
}

func TestJournal_CreatesDirectory(t *testing.T) {
	path := t.TempDir() + "/nested/dir/journal.db"
	j, err := OpenJournal(path, Identity{}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	j.Report(context.Background(), Event{ErrorMessage: "persisted"})
	recs, err := j.Recent(context.Background(), 1)
	if err != nil || len(recs) != 1 {
		t.Fatalf("recent = %v, %v", recs, err)
	}
}

type countingReporter struct{ n int }

func (c *countingReporter) Report(context.Context, Event) { c.n++ }

func TestMulti_SkipsNil(t *testing.T) {
	a, b := &countingReporter{}, &countingReporter{}
	Multi{a, nil, b, LogReporter{Logger: quietLogger()}}.Report(context.Background(), Event{ErrorMessage: "x"})
	if a.n != 1 || b.n != 1 {
		t.Errorf("counts = %d, %d", a.n, b.n)
	}
}
