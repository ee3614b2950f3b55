package capture

import (
	"time"

	"github.com/AlverezYari/passcam/pkg/camera"
)

// State is the lifecycle state of the capture device.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// session is the controller's mutable state. It is only touched with the
// controller's lock held.
type session struct {
	state           State
	stream          camera.Stream
	facing          camera.FacingMode
	multipleDevices bool
	submitting      bool
	token           uint64
	width           int
	height          int
}

// attach makes stream the held device and shows it on surface.
func (s *session) attach(stream camera.Stream, surface camera.Surface) {
	s.stream = stream
	surface.SetSource(stream)
}

// release stops the held stream's tracks and clears the surface. It reports
// whether there was anything to release.
func (s *session) release(surface camera.Surface) bool {
	held := s.stream
	s.stream = nil
	if held != nil {
		camera.StopTracks(held)
	}
	if surface.Source() != nil {
		surface.SetSource(nil)
	}
	return held != nil
}

// negotiatedSize returns the resolution the device actually delivers,
// preferring the track settings over what the surface measured.
func negotiatedSize(stream camera.Stream, surface camera.Surface) (int, int) {
	var w, h int
	if stream != nil {
		if tracks := stream.VideoTracks(); len(tracks) > 0 {
			st := tracks[0].Settings()
			w, h = st.Width, st.Height
		}
	}
	sw, sh := surface.VideoSize()
	if w == 0 {
		w = sw
	}
	if h == 0 {
		h = sh
	}
	return w, h
}

// Snapshot is a copy of the controller state for callers and tests.
type Snapshot struct {
	State           State
	HasStream       bool
	Facing          camera.FacingMode
	MultipleDevices bool
	Submitting      bool
	Token           uint64
	Width           int
	Height          int
	LastGesture     time.Time
}
