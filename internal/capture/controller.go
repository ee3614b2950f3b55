// Package capture owns the camera lifecycle: acquiring and releasing the
// device, discarding acquisitions that were superseded, and submitting a
// single snapshot for recognition.
//
// Every acquisition attempt is stamped with a token. Only the attempt whose
// token is still current when it resumes may touch the session; an attempt
// that finds itself superseded releases whatever it acquired and returns.
// Stopping the device also advances the token, so an acquisition still in
// flight can never bring the camera back after it was turned off.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AlverezYari/passcam/internal/diagnostics"
	"github.com/AlverezYari/passcam/internal/display"
	"github.com/AlverezYari/passcam/internal/recognition"
	"github.com/AlverezYari/passcam/pkg/camera"
)

// Recognizer is the remote recognition call.
type Recognizer interface {
	Recognize(ctx context.Context, u recognition.Upload) ([]byte, error)
}

// Presenter renders what the controller reports. Its methods are called
// with the controller's lock held and must not call back into the
// Controller.
type Presenter interface {
	ShowStatus(st display.Status)
	ShowControls(c display.Controls)
	// ShowResult shows a submission outcome; nil hides the result area.
	ShowResult(m *display.Model)
}

// Options configures a Controller. Surface is required; a nil Devices means
// the platform cannot capture at all.
type Options struct {
	Devices    camera.MediaDevices
	Surface    camera.Surface
	Recognizer Recognizer
	Reporter   diagnostics.Reporter
	Presenter  Presenter
	Logger     *slog.Logger

	Facing         camera.FacingMode
	IdealWidth     int
	IdealHeight    int
	JPEGQuality    int
	DebounceWindow time.Duration
	Now            func() time.Time
}

const DefaultJPEGQuality = 95

// Controller is the capture state machine for one console.
type Controller struct {
	devices    camera.MediaDevices
	surface    camera.Surface
	recognizer Recognizer
	reporter   diagnostics.Reporter
	presenter  Presenter
	logger     *slog.Logger
	debouncer  *Debouncer

	idealWidth  int
	idealHeight int
	jpegQuality int

	mu     sync.Mutex
	s      session
	status display.Status
}

func New(opts Options) (*Controller, error) {
	if opts.Surface == nil {
		return nil, errors.New("capture: surface is required")
	}
	if opts.Presenter == nil {
		opts.Presenter = Presenters(nil)
	}
	if opts.Reporter == nil {
		opts.Reporter = diagnostics.Multi(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Facing == "" {
		opts.Facing = camera.FacingEnvironment
	}
	if opts.IdealWidth <= 0 {
		opts.IdealWidth = camera.DefaultIdealWidth
	}
	if opts.IdealHeight <= 0 {
		opts.IdealHeight = camera.DefaultIdealHeight
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}

	return &Controller{
		devices:     opts.Devices,
		surface:     opts.Surface,
		recognizer:  opts.Recognizer,
		reporter:    opts.Reporter,
		presenter:   opts.Presenter,
		logger:      opts.Logger,
		debouncer:   NewDebouncer(opts.DebounceWindow, opts.Now),
		idealWidth:  opts.IdealWidth,
		idealHeight: opts.IdealHeight,
		jpegQuality: opts.JPEGQuality,
		s:           session{facing: opts.Facing},
	}, nil
}

// Init shows the idle console.
func (c *Controller) Init() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showIdleLocked()
}

// Toggle turns the camera off when a stream is held and requests one
// otherwise. Toggles that come too soon after the previous gesture are
// ignored. It returns once the acquisition has settled or been superseded.
func (c *Controller) Toggle(ctx context.Context) {
	if !c.debouncer.Allow() {
		return
	}
	c.mu.Lock()
	if c.s.stream != nil {
		c.stopLocked(true)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.acquire(ctx)
}

// SwitchDevice flips between the rear and front camera. It does nothing
// unless the camera is active and no submission is running.
func (c *Controller) SwitchDevice(ctx context.Context) {
	if !c.debouncer.Allow() {
		return
	}
	c.mu.Lock()
	if c.s.state != StateActive || c.s.stream == nil || c.s.submitting {
		c.mu.Unlock()
		return
	}
	c.s.facing = c.s.facing.Flip()
	// Keep the status line as is; acquire replaces it right away.
	c.stopLocked(false)
	c.mu.Unlock()
	c.acquire(ctx)
}

// Stop releases the device and returns to idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(true)
}

// Close releases the device when the console goes away.
func (c *Controller) Close() {
	c.Stop()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:           c.s.state,
		HasStream:       c.s.stream != nil,
		Facing:          c.s.facing,
		MultipleDevices: c.s.multipleDevices,
		Submitting:      c.s.submitting,
		Token:           c.s.token,
		Width:           c.s.width,
		Height:          c.s.height,
		LastGesture:     c.debouncer.Last(),
	}
}

// Status returns the status line currently shown.
func (c *Controller) Status() display.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Controls returns the control state matching the current session.
func (c *Controller) Controls() display.Controls {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controlsLocked()
}

func (c *Controller) constraints(facing camera.FacingMode) camera.Constraints {
	cons := camera.DefaultConstraints(facing)
	cons.Video.IdealWidth = c.idealWidth
	cons.Video.IdealHeight = c.idealHeight
	return cons
}

func (c *Controller) acquire(ctx context.Context) {
	c.mu.Lock()
	if c.devices == nil {
		c.showErrorLocked(display.StatusUnsupported)
		c.mu.Unlock()
		c.reportUnsupported(ctx)
		return
	}
	c.s.token++
	token := c.s.token
	facing := c.s.facing
	c.s.state = StateRequesting
	c.emitControlsLocked()
	c.emitStatusLocked(display.Status{Variant: display.VariantRequesting, Message: display.StatusRequesting})
	c.mu.Unlock()

	c.logger.Debug("requesting camera", "token", token, "facing", facing)
	stream, err := c.devices.GetUserMedia(ctx, c.constraints(facing))
	if err != nil {
		c.fail(ctx, token, err)
		return
	}

	c.mu.Lock()
	if token != c.s.token {
		c.mu.Unlock()
		camera.StopTracks(stream)
		c.logger.Debug("discarded stale camera stream", "token", token, "stream", stream.ID())
		return
	}
	c.s.attach(stream, c.surface)
	c.mu.Unlock()

	if err := c.surface.WaitMetadata(ctx); err != nil {
		c.fail(ctx, token, err)
		return
	}
	if !c.current(token) {
		return
	}
	if err := c.surface.Play(ctx); err != nil {
		c.fail(ctx, token, err)
		return
	}
	multiple := c.hasMultipleDevices(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.s.token {
		return
	}
	c.s.multipleDevices = multiple
	c.s.width, c.s.height = negotiatedSize(stream, c.surface)
	c.s.state = StateActive
	c.emitControlsLocked()
	c.emitStatusLocked(display.Status{
		Variant: display.VariantActive,
		Message: fmt.Sprintf(display.StatusActiveFormat, facing.Label(), c.s.width, c.s.height),
		Class:   display.ClassSuccess,
	})
	c.logger.Info("camera active", "facing", facing, "width", c.s.width, "height", c.s.height, "multiple_devices", multiple)
}

func (c *Controller) current(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return token == c.s.token
}

func (c *Controller) hasMultipleDevices(ctx context.Context) bool {
	devices, err := c.devices.EnumerateDevices(ctx)
	if err != nil {
		c.logger.Debug("device enumeration failed", "error", err)
		return false
	}
	return camera.CountVideoInputs(devices) > 1
}

// fail handles an error from any step of acquisition with the given token.
// Errors of superseded attempts are dropped.
func (c *Controller) fail(ctx context.Context, token uint64, err error) {
	c.mu.Lock()
	if token != c.s.token {
		c.mu.Unlock()
		c.logger.Debug("ignored error of stale camera request", "token", token, "error", err)
		return
	}
	facing := c.s.facing
	c.stopLocked(false)

	if errors.Is(err, camera.ErrUnsupported) {
		c.showErrorLocked(display.StatusUnsupported)
		c.mu.Unlock()
		c.reportUnsupported(ctx)
		return
	}

	message := err.Error()
	if message == "" {
		message = display.StatusUnknownError
	}
	c.showErrorLocked(fmt.Sprintf(display.StatusAccessError, message))
	c.mu.Unlock()

	c.logger.Error("camera error", "error", err, "facing", facing)
	c.reporter.Report(ctx, diagnostics.Event{
		ErrorMessage: "Camera access error: " + message,
		Context: map[string]any{
			"error_name": camera.ErrorName(err),
			"facingMode": string(facing),
		},
	})
}

func (c *Controller) reportUnsupported(ctx context.Context) {
	c.logger.Error("camera not supported")
	c.reporter.Report(ctx, diagnostics.Event{
		ErrorMessage: "Camera not supported",
		Context:      map[string]any{"feature": "MediaDevices.GetUserMedia"},
	})
}

// stopLocked releases the held stream, invalidates any acquisition in
// flight and returns to idle.
func (c *Controller) stopLocked(resetUI bool) {
	if c.s.release(c.surface) {
		c.logger.Info("camera stopped")
	}
	c.s.token++
	c.s.state = StateIdle
	c.s.width, c.s.height = 0, 0
	c.s.multipleDevices = false
	if resetUI {
		c.showIdleLocked()
	}
}

func (c *Controller) controlsLocked() display.Controls {
	ctl := display.Controls{
		ToggleLabel:   display.ToggleOn,
		SnapshotLabel: display.SnapshotIdle,
	}
	if c.s.submitting {
		ctl.SnapshotLabel = display.SnapshotBusy
	}
	switch c.s.state {
	case StateRequesting:
		ctl.CameraOn = true
		ctl.ToggleLabel = display.ToggleOff
	case StateActive:
		ctl.CameraOn = true
		ctl.ToggleLabel = display.ToggleOff
		ctl.SnapshotEnabled = !c.s.submitting
		ctl.SwitchEnabled = c.s.multipleDevices
	}
	return ctl
}

func (c *Controller) showIdleLocked() {
	c.emitControlsLocked()
	c.emitStatusLocked(display.Status{Variant: display.VariantIdle})
}

func (c *Controller) showErrorLocked(message string) {
	c.emitControlsLocked()
	c.emitStatusLocked(display.Status{Variant: display.VariantError, Message: message, Class: display.ClassError})
}

func (c *Controller) emitControlsLocked() {
	c.presenter.ShowControls(c.controlsLocked())
}

func (c *Controller) emitStatusLocked(st display.Status) {
	c.status = st
	c.presenter.ShowStatus(st)
}
