// pkg/camera/opencv/manager.go
package opencv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/AlverezYari/passcam/pkg/camera"
)

// Config maps logical facing modes onto OpenCV device indices.
type Config struct {
	// MaxProbe is how many device indices EnumerateDevices tries.
	MaxProbe int
	// FacingDevices maps a facing mode to a device index. A missing entry
	// falls back to DefaultDevice, like a browser ignoring an ideal facingMode.
	FacingDevices map[camera.FacingMode]int
	DefaultDevice int
	Framerate     int
}

func (c Config) withDefaults() Config {
	if c.MaxProbe <= 0 {
		c.MaxProbe = 5
	}
	if c.Framerate <= 0 {
		c.Framerate = 30
	}
	return c
}

// Manager implements camera.MediaDevices on top of gocv.VideoCapture.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	held   map[int]int // device index -> open track count
	serial int
}

func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg.withDefaults(),
		logger: logger,
		held:   make(map[int]int),
	}
}

// EnumerateDevices opens each index in turn to find the cameras that exist.
// Indices we currently hold are reported without reopening them.
func (m *Manager) EnumerateDevices(ctx context.Context) ([]camera.DeviceInfo, error) {
	var devices []camera.DeviceInfo
	for i := 0; i < m.cfg.MaxProbe; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.isHeld(i) {
			devices = append(devices, deviceInfo(i))
			continue
		}
		vc, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}
		opened := vc.IsOpened()
		vc.Close()
		if opened {
			devices = append(devices, deviceInfo(i))
		}
	}
	return devices, nil
}

func deviceInfo(index int) camera.DeviceInfo {
	name := fmt.Sprintf("Camera %d", index)
	if index == 0 {
		name = "Built-in Camera"
	}
	return camera.DeviceInfo{
		DeviceID: fmt.Sprintf("%d", index),
		Label:    name,
		Kind:     camera.KindVideoInput,
	}
}

// GetUserMedia opens the device selected by the facing mode and applies the
// ideal resolution. The negotiated size is read back from the capture.
func (m *Manager) GetUserMedia(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if c.Audio {
		return nil, camera.NewDeviceError(camera.ErrNameOverconstraint, "audio capture is not available")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	index, ok := m.cfg.FacingDevices[c.Video.FacingMode]
	if !ok {
		index = m.cfg.DefaultDevice
	}

	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, &camera.DeviceError{Name: camera.ErrNameNotReadable, Err: fmt.Errorf("error opening camera %d: %w", index, err)}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, camera.NewDeviceError(camera.ErrNameNotFound, "camera %d is not open", index)
	}

	if c.Video.IdealWidth > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Video.IdealWidth))
	}
	if c.Video.IdealHeight > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Video.IdealHeight))
	}
	vc.Set(gocv.VideoCaptureFPS, float64(m.cfg.Framerate))

	if err := ctx.Err(); err != nil {
		vc.Close()
		return nil, err
	}

	m.mu.Lock()
	m.serial++
	m.held[index]++
	id := fmt.Sprintf("opencv-%d-%d", index, m.serial)
	m.mu.Unlock()

	t := &track{
		vc: vc,
		settings: camera.TrackSettings{
			Width:      int(vc.Get(gocv.VideoCaptureFrameWidth)),
			Height:     int(vc.Get(gocv.VideoCaptureFrameHeight)),
			FacingMode: c.Video.FacingMode,
			DeviceID:   fmt.Sprintf("%d", index),
		},
		onStop: func() { m.release(index) },
	}
	m.logger.Info("camera opened", "device", index, "width", t.settings.Width, "height", t.settings.Height)
	return &Stream{id: id, track: t}, nil
}

func (m *Manager) isHeld(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[index] > 0
}

func (m *Manager) release(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[index] <= 1 {
		delete(m.held, index)
		return
	}
	m.held[index]--
}

// Stream is a single-track capture handle.
type Stream struct {
	id    string
	track *track
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Tracks() []camera.Track { return []camera.Track{s.track} }

func (s *Stream) VideoTracks() []camera.Track { return []camera.Track{s.track} }

type track struct {
	mu       sync.Mutex
	vc       *gocv.VideoCapture
	settings camera.TrackSettings
	stopped  bool
	onStop   func()
}

func (t *track) Kind() string { return "video" }

func (t *track) Settings() camera.TrackSettings { return t.settings }

func (t *track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.vc.Close()
	if t.onStop != nil {
		t.onStop()
	}
}

// read grabs the next frame into m. It reports false once the track is
// stopped or the device stops delivering frames.
func (t *track) read(m *gocv.Mat) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	return t.vc.Read(m) && !m.Empty()
}

func (t *track) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
