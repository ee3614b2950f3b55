package server

import (
	"encoding/json"
	"sync"

	"github.com/AlverezYari/passcam/internal/display"
)

type statusView struct {
	Variant    string `json:"variant"`
	Message    string `json:"message"`
	Class      string `json:"class"`
	StyleClass string `json:"style_class"`
}

// stateView is both the /api/state body and the /ws/events message.
type stateView struct {
	Type       string           `json:"type"`
	Status     statusView       `json:"status"`
	Controls   display.Controls `json:"controls"`
	Result     *display.Model   `json:"result"`
	ResultHTML string           `json:"result_html"`
}

// consoleState is the last thing the controller showed.
type consoleState struct {
	mu         sync.RWMutex
	status     display.Status
	controls   display.Controls
	result     *display.Model
	resultHTML string
}

func (c *consoleState) event(kind string) stateView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return stateView{
		Type: kind,
		Status: statusView{
			Variant:    c.status.Variant.String(),
			Message:    c.status.Message,
			Class:      c.status.Class,
			StyleClass: c.status.StyleClass(),
		},
		Controls:   c.controls,
		Result:     c.result,
		ResultHTML: c.resultHTML,
	}
}

// ShowStatus, ShowControls and ShowResult make the server a presenter for
// the capture controller. They only record state and queue websocket
// messages.

func (s *Server) ShowStatus(st display.Status) {
	s.state.mu.Lock()
	s.state.status = st
	s.state.mu.Unlock()
	s.publish("status")
}

func (s *Server) ShowControls(c display.Controls) {
	s.state.mu.Lock()
	s.state.controls = c
	s.state.mu.Unlock()
	s.publish("controls")
}

func (s *Server) ShowResult(m *display.Model) {
	html := string(RenderResult(m))
	s.state.mu.Lock()
	s.state.result = m
	s.state.resultHTML = html
	s.state.mu.Unlock()
	s.publish("result")
}

func (s *Server) publish(kind string) {
	msg, err := json.Marshal(s.state.event(kind))
	if err != nil {
		s.logger.Error("failed to encode console event", "error", err)
		return
	}
	s.events.broadcast(msg)
}
