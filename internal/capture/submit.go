package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"

	"github.com/AlverezYari/passcam/internal/diagnostics"
	"github.com/AlverezYari/passcam/internal/display"
	"github.com/AlverezYari/passcam/internal/recognition"
)

// Submit takes a snapshot of the active camera, sends it for recognition
// and shows the outcome. It is a no-op without an active camera or while
// another submission is running. The submission guard is cleared on every
// path out.
func (c *Controller) Submit(ctx context.Context) {
	c.mu.Lock()
	if c.s.state != StateActive || c.s.stream == nil || c.s.submitting {
		c.mu.Unlock()
		return
	}
	if c.recognizer == nil {
		c.emitStatusLocked(display.Status{Variant: display.VariantError, Message: display.StatusRecognizerDown, Class: display.ClassError})
		c.mu.Unlock()
		return
	}
	c.s.submitting = true
	width, height := negotiatedSize(c.s.stream, c.surface)
	c.emitControlsLocked()
	c.emitStatusLocked(display.Status{Variant: display.VariantActive, Message: display.StatusProcessing})
	c.presenter.ShowResult(nil)
	c.mu.Unlock()

	defer c.finishSubmit()

	body, err := c.captureAndUpload(ctx, width, height)
	if err != nil {
		c.submitFailed(ctx, err)
		return
	}

	model := recognition.FormatBody(body)
	st := display.Status{Variant: display.VariantActive, Message: display.StatusRecognizeOK, Class: display.ClassSuccess}
	if model.Error != nil {
		st = display.Status{Variant: display.VariantError, Message: display.StatusRecognizeError, Class: display.ClassError}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.presenter.ShowResult(&model)
	c.emitStatusLocked(st)
}

func (c *Controller) captureAndUpload(ctx context.Context, width, height int) ([]byte, error) {
	img, err := c.surface.Snapshot(ctx, width, height)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	c.logger.Debug("snapshot captured", "width", width, "height", height, "bytes", buf.Len())

	return c.recognizer.Recognize(ctx, recognition.SnapshotUpload(buf.Bytes()))
}

func (c *Controller) submitFailed(ctx context.Context, err error) {
	message := err.Error()
	model := display.Model{Error: &display.ErrorSummary{
		Title: fmt.Sprintf(display.ResultNetworkError, display.Escape(message)),
	}}

	c.mu.Lock()
	c.presenter.ShowResult(&model)
	c.emitStatusLocked(display.Status{Variant: display.VariantError, Message: display.StatusRequestError, Class: display.ClassError})
	c.mu.Unlock()

	c.logger.Error("recognition error", "error", err)
	ev := diagnostics.Event{ErrorMessage: "Recognition request error: " + message}
	var te *recognition.TransportError
	if errors.As(err, &te) {
		ev.Context = map[string]any{"op": te.Op, "request_id": te.RequestID}
	}
	c.reporter.Report(ctx, ev)
}

func (c *Controller) finishSubmit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.submitting = false
	c.emitControlsLocked()
}
