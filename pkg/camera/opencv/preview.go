// pkg/camera/opencv/preview.go
package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/AlverezYari/passcam/pkg/camera"
)

// FrameSink receives every preview frame as JPEG bytes.
type FrameSink func(frame []byte)

var errNoSource = errors.New("preview: no source attached")

// Preview implements camera.Surface. It runs one capture loop per attached
// stream, keeps the latest frame for snapshots and forwards encoded frames
// to the sink.
type Preview struct {
	sink   FrameSink
	logger *slog.Logger

	mu     sync.Mutex
	source camera.Stream
	run    *previewRun
}

// previewRun is the capture loop of a single attached stream.
type previewRun struct {
	track  *track
	cancel context.CancelFunc
	ready  chan struct{} // closed on the first frame
	done   chan struct{}

	mu     sync.Mutex
	frame  gocv.Mat
	width  int
	height int
	err    error
}

func NewPreview(sink FrameSink, logger *slog.Logger) *Preview {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preview{sink: sink, logger: logger}
}

// SetSource attaches s, replacing any previous source. A nil s detaches.
func (p *Preview) SetSource(s camera.Stream) {
	p.mu.Lock()
	prev := p.run
	p.source, p.run = s, nil
	if st, ok := s.(*Stream); ok && st != nil {
		p.run = p.start(st.track)
	}
	p.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
}

func (p *Preview) Source() camera.Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

func (p *Preview) current() (*previewRun, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == nil {
		return nil, errNoSource
	}
	if p.run == nil {
		return nil, fmt.Errorf("preview: unsupported stream %T", p.source)
	}
	return p.run, nil
}

// WaitMetadata blocks until the attached stream delivered its first frame.
func (p *Preview) WaitMetadata(ctx context.Context) error {
	r, err := p.current()
	if err != nil {
		return err
	}
	select {
	case <-r.ready:
		return nil
	case <-r.done:
		if err := r.failure(); err != nil {
			return err
		}
		return camera.NewDeviceError(camera.ErrNameNotReadable, "camera stopped before the first frame")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Play reports whether the loop is still delivering frames.
func (p *Preview) Play(ctx context.Context) error {
	r, err := p.current()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-r.done:
		if err := r.failure(); err != nil {
			return err
		}
		return camera.NewDeviceError(camera.ErrNameAbort, "playback stopped")
	default:
		return nil
	}
}

// VideoSize returns the size of the latest frame, or zeros without one.
func (p *Preview) VideoSize() (int, int) {
	r, err := p.current()
	if err != nil {
		return 0, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// Snapshot copies the latest frame, scaled to width x height when they
// differ from the frame size.
func (p *Preview) Snapshot(ctx context.Context, width, height int) (image.Image, error) {
	r, err := p.current()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.width == 0 || r.frame.Empty() {
		r.mu.Unlock()
		return nil, errors.New("preview: no frame captured yet")
	}
	img := r.frame.Clone()
	r.mu.Unlock()
	defer img.Close()

	if width > 0 && height > 0 && (width != img.Cols() || height != img.Rows()) {
		scaled := gocv.NewMat()
		defer scaled.Close()
		gocv.Resize(img, &scaled, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
		return scaled.ToImage()
	}
	return img.ToImage()
}

// Close detaches the current source and waits for its loop to finish.
func (p *Preview) Close() {
	p.SetSource(nil)
}

func (p *Preview) start(t *track) *previewRun {
	ctx, cancel := context.WithCancel(context.Background())
	r := &previewRun{
		track:  t,
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		frame:  gocv.NewMat(),
	}
	go p.loop(ctx, r)
	return r
}

func (p *Preview) loop(ctx context.Context, r *previewRun) {
	defer close(r.done)

	img := gocv.NewMat()
	defer img.Close()

	first := true
	for ctx.Err() == nil {
		if !r.track.read(&img) {
			if !r.track.isStopped() {
				r.setFailure(camera.NewDeviceError(camera.ErrNameNotReadable, "failed to read frame from camera %s", r.track.settings.DeviceID))
				p.logger.Warn("preview stopped", "device", r.track.settings.DeviceID)
			}
			return
		}

		r.mu.Lock()
		img.CopyTo(&r.frame)
		r.width, r.height = img.Cols(), img.Rows()
		r.mu.Unlock()

		if first {
			first = false
			close(r.ready)
			p.logger.Debug("first frame", "width", img.Cols(), "height", img.Rows())
		}

		if p.sink == nil {
			continue
		}
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
		if err != nil {
			p.logger.Debug("failed to encode frame", "error", err)
			continue
		}
		frame := make([]byte, buf.Len())
		copy(frame, buf.GetBytes())
		buf.Close()
		p.sink(frame)
	}
}

func (r *previewRun) stop() {
	r.cancel()
	<-r.done
	r.mu.Lock()
	r.frame.Close()
	r.width, r.height = 0, 0
	r.mu.Unlock()
}

func (r *previewRun) setFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *previewRun) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
