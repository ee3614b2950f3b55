package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AlverezYari/passcam/internal/diagnostics"
	"github.com/AlverezYari/passcam/internal/display"
	"github.com/AlverezYari/passcam/internal/recognition"
	"github.com/AlverezYari/passcam/pkg/camera"
)

type fakeTrack struct {
	mu       sync.Mutex
	settings camera.TrackSettings
	stops    int
}

func (t *fakeTrack) Kind() string                   { return "video" }
func (t *fakeTrack) Settings() camera.TrackSettings { return t.settings }

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
}

func (t *fakeTrack) Stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

type fakeStream struct {
	id    string
	track *fakeTrack
}

func newFakeStream(id string, w, h int) *fakeStream {
	return &fakeStream{id: id, track: &fakeTrack{settings: camera.TrackSettings{Width: w, Height: h}}}
}

func (s *fakeStream) ID() string                  { return s.id }
func (s *fakeStream) Tracks() []camera.Track      { return []camera.Track{s.track} }
func (s *fakeStream) VideoTracks() []camera.Track { return []camera.Track{s.track} }

type mediaResult struct {
	stream camera.Stream
	err    error
}

// fakeDevices answers GetUserMedia immediately unless gated, in which case
// each call waits for a result on its own gate.
type fakeDevices struct {
	mu          sync.Mutex
	constraints []camera.Constraints
	devices     []camera.DeviceInfo
	enumErr     error
	next        func(n int) (camera.Stream, error)

	gated   bool
	started chan int
	gates   map[int]chan mediaResult
}

func newFakeDevices(videoInputs int) *fakeDevices {
	d := &fakeDevices{gates: make(map[int]chan mediaResult), started: make(chan int, 16)}
	for i := 0; i < videoInputs; i++ {
		d.devices = append(d.devices, camera.DeviceInfo{DeviceID: fmt.Sprint(i), Kind: camera.KindVideoInput})
	}
	d.next = func(n int) (camera.Stream, error) {
		return newFakeStream(fmt.Sprintf("stream-%d", n), 1280, 720), nil
	}
	return d
}

func (d *fakeDevices) EnumerateDevices(ctx context.Context) ([]camera.DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.devices, d.enumErr
}

func (d *fakeDevices) GetUserMedia(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	d.mu.Lock()
	d.constraints = append(d.constraints, c)
	n := len(d.constraints)
	gated := d.gated
	var gate chan mediaResult
	if gated {
		gate = make(chan mediaResult, 1)
		d.gates[n] = gate
	}
	next := d.next
	d.mu.Unlock()

	if !gated {
		return next(n)
	}
	d.started <- n
	select {
	case r := <-gate:
		return r.stream, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDevices) release(n int, stream camera.Stream, err error) {
	d.mu.Lock()
	gate := d.gates[n]
	d.mu.Unlock()
	gate <- mediaResult{stream: stream, err: err}
}

func (d *fakeDevices) calls() []camera.Constraints {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]camera.Constraints(nil), d.constraints...)
}

type fakeSurface struct {
	mu          sync.Mutex
	source      camera.Stream
	plays       int
	width       int
	height      int
	metadataErr error
	playErr     error
	snapErr     error
	snapshots   int
}

func (s *fakeSurface) SetSource(st camera.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = st
}

func (s *fakeSurface) Source() camera.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *fakeSurface) WaitMetadata(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadataErr
}

func (s *fakeSurface) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	return s.playErr
}

func (s *fakeSurface) VideoSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *fakeSurface) Snapshot(ctx context.Context, w, h int) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots++
	if s.snapErr != nil {
		return nil, s.snapErr
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

type recordingPresenter struct {
	mu       sync.Mutex
	statuses []display.Status
	controls []display.Controls
	results  []*display.Model
}

func (p *recordingPresenter) ShowStatus(st display.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, st)
}

func (p *recordingPresenter) ShowControls(c display.Controls) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls = append(p.controls, c)
}

func (p *recordingPresenter) ShowResult(m *display.Model) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, m)
}

func (p *recordingPresenter) lastStatus() display.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.statuses) == 0 {
		return display.Status{}
	}
	return p.statuses[len(p.statuses)-1]
}

func (p *recordingPresenter) lastControls() display.Controls {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.controls) == 0 {
		return display.Controls{}
	}
	return p.controls[len(p.controls)-1]
}

func (p *recordingPresenter) lastResult() *display.Model {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return nil
	}
	return p.results[len(p.results)-1]
}

func (p *recordingPresenter) statusCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.statuses)
}

func (p *recordingPresenter) statusesSince(i int) []display.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]display.Status(nil), p.statuses[i:]...)
}

type recordingReporter struct {
	mu     sync.Mutex
	events []diagnostics.Event
}

func (r *recordingReporter) Report(_ context.Context, ev diagnostics.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingReporter) all() []diagnostics.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]diagnostics.Event(nil), r.events...)
}

type fakeRecognizer struct {
	mu      sync.Mutex
	body    []byte
	err     error
	uploads []recognition.Upload
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeRecognizer) Recognize(ctx context.Context, u recognition.Upload) ([]byte, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, u)
	entered, block := f.entered, f.block
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return f.body, f.err
}

func (f *fakeRecognizer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	ctrl       *Controller
	devices    *fakeDevices
	surface    *fakeSurface
	presenter  *recordingPresenter
	reporter   *recordingReporter
	recognizer *fakeRecognizer
	clock      *fakeClock
}

func newHarness(t *testing.T, devices *fakeDevices) *harness {
	t.Helper()
	h := &harness{
		devices:    devices,
		surface:    &fakeSurface{width: 640, height: 480},
		presenter:  &recordingPresenter{},
		reporter:   &recordingReporter{},
		recognizer: &fakeRecognizer{body: []byte(`{"status":"ok","fields":{}}`)},
		clock:      newFakeClock(),
	}
	opts := Options{
		Surface:    h.surface,
		Recognizer: h.recognizer,
		Reporter:   h.reporter,
		Presenter:  h.presenter,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:        h.clock.Now,
	}
	if devices != nil {
		opts.Devices = devices
	}
	ctrl, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	ctrl.Init()
	h.ctrl = ctrl
	return h
}

// gesture moves the clock past the debounce window, so the next trigger
// is accepted.
func (h *harness) gesture() {
	h.clock.Advance(DefaultDebounceWindow + time.Millisecond)
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	h.gesture()
	h.ctrl.Toggle(context.Background())
	if got := h.ctrl.Snapshot().State; got != StateActive {
		t.Fatalf("state after toggle = %s, want active", got)
	}
}

func waitStarted(t *testing.T, d *fakeDevices) int {
	t.Helper()
	select {
	case n := <-d.started:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("GetUserMedia was not called")
		return 0
	}
}
