package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AlverezYari/passcam/internal/display"
)

type statusMsg display.Status

type controlsMsg display.Controls

type resultMsg struct {
	model *display.Model
}

type logMsg struct {
	level   string
	message string
}

// Bridge carries presenter calls and log lines from other goroutines into
// the bubbletea loop. It is usable before the program starts, unlike
// Program.Send.
type Bridge struct {
	msgs chan tea.Msg
	done chan struct{}
	once sync.Once
}

func NewBridge() *Bridge {
	return &Bridge{
		msgs: make(chan tea.Msg, 256),
		done: make(chan struct{}),
	}
}

func (b *Bridge) ShowStatus(st display.Status)    { b.send(statusMsg(st)) }
func (b *Bridge) ShowControls(c display.Controls) { b.send(controlsMsg(c)) }
func (b *Bridge) ShowResult(m *display.Model)     { b.send(resultMsg{model: m}) }

// Log forwards a log line, dropping it when the loop is behind. Its
// signature matches logging.Callback.
func (b *Bridge) Log(level, message string) {
	select {
	case b.msgs <- logMsg{level: level, message: message}:
	default:
	}
}

// send delivers msg unless the bridge was closed. Presenter updates are
// never dropped while the UI is running.
func (b *Bridge) send(msg tea.Msg) {
	select {
	case <-b.done:
	default:
		select {
		case b.msgs <- msg:
		case <-b.done:
		}
	}
}

// Close stops delivery. Later sends return immediately.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

// listen waits for the next bridged message.
func (b *Bridge) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.msgs:
			return msg
		case <-b.done:
			return nil
		}
	}
}
