// pkg/camera/camera.go
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// FacingMode selects the logical camera orientation.
type FacingMode string

const (
	FacingEnvironment FacingMode = "environment" // rear
	FacingUser        FacingMode = "user"        // front
)

// Flip returns the opposite facing mode.
func (f FacingMode) Flip() FacingMode {
	if f == FacingEnvironment {
		return FacingUser
	}
	return FacingEnvironment
}

// Label returns the word shown to the operator for this camera.
func (f FacingMode) Label() string {
	if f == FacingUser {
		return "передняя"
	}
	return "задняя"
}

const KindVideoInput = "videoinput"

type DeviceInfo struct {
	DeviceID string
	Label    string
	Kind     string
}

type VideoConstraints struct {
	IdealWidth  int
	IdealHeight int
	FacingMode  FacingMode
}

// Constraints describes what a capture request asks the device for.
type Constraints struct {
	Video VideoConstraints
	Audio bool
}

const (
	DefaultIdealWidth  = 2560
	DefaultIdealHeight = 1440
)

// DefaultConstraints prefers a high resolution stream with audio disabled.
func DefaultConstraints(facing FacingMode) Constraints {
	return Constraints{
		Video: VideoConstraints{
			IdealWidth:  DefaultIdealWidth,
			IdealHeight: DefaultIdealHeight,
			FacingMode:  facing,
		},
		Audio: false,
	}
}

type TrackSettings struct {
	Width      int
	Height     int
	FacingMode FacingMode
	DeviceID   string
}

// Track is a single media track of an acquired stream. Stop must be safe to
// call more than once.
type Track interface {
	Kind() string
	Settings() TrackSettings
	Stop()
}

// Stream is an acquired capture handle. Whoever holds it must stop its
// tracks before dropping it, otherwise the physical device stays locked.
type Stream interface {
	ID() string
	Tracks() []Track
	VideoTracks() []Track
}

// MediaDevices is the device access boundary.
type MediaDevices interface {
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// Surface is the preview a stream is attached to. It reports when the
// device delivers readable metadata and grabs still frames from it.
type Surface interface {
	SetSource(s Stream)
	Source() Stream
	WaitMetadata(ctx context.Context) error
	Play(ctx context.Context) error
	VideoSize() (width, height int)
	Snapshot(ctx context.Context, width, height int) (image.Image, error)
}

// ErrUnsupported is returned when the platform has no capture support.
var ErrUnsupported = errors.New("camera: capture not supported")

// Names used for DeviceError, matching the usual media error vocabulary.
const (
	ErrNameNotAllowed     = "NotAllowedError"
	ErrNameNotFound       = "NotFoundError"
	ErrNameNotReadable    = "NotReadableError"
	ErrNameOverconstraint = "OverconstrainedError"
	ErrNameAbort          = "AbortError"
)

// DeviceError is a named acquisition failure.
type DeviceError struct {
	Name string
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return e.Name
	}
	return e.Err.Error()
}

func (e *DeviceError) Unwrap() error { return e.Err }

// NewDeviceError builds a DeviceError with a formatted message.
func NewDeviceError(name, format string, args ...any) *DeviceError {
	return &DeviceError{Name: name, Err: fmt.Errorf(format, args...)}
}

// ErrorName returns the DeviceError name carried by err, or "unknown".
func ErrorName(err error) string {
	var de *DeviceError
	if errors.As(err, &de) && de.Name != "" {
		return de.Name
	}
	return "unknown"
}

// StopTracks stops every track of s. A nil stream is ignored.
func StopTracks(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// CountVideoInputs returns how many of devices are video inputs.
func CountVideoInputs(devices []DeviceInfo) int {
	n := 0
	for _, d := range devices {
		if d.Kind == KindVideoInput {
			n++
		}
	}
	return n
}
