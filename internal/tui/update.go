// internal/tui/update.go
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AlverezYari/passcam/internal/display"
)

const chromeHeight = 6 // header, tabs, padding and status bar

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := msg.Height - chromeHeight
		if h < 3 {
			h = 3
		}
		m.resultViewport.Width, m.resultViewport.Height = msg.Width, h
		m.logViewport.Width, m.logViewport.Height = msg.Width, h
		m.resultViewport.SetContent(renderModel(m.result))
		return m, nil

	case tickMsg:
		m.currentTime = time.Time(msg)
		return m, timeTickCmd()

	case statusMsg:
		m.status = display.Status(msg)
		return m, m.bridge.listen()

	case controlsMsg:
		m.controls = display.Controls(msg)
		return m, m.bridge.listen()

	case resultMsg:
		m.result = msg.model
		m.resultViewport.SetContent(renderModel(m.result))
		m.resultViewport.GotoTop()
		if m.result != nil {
			m.activeTab = resultTab
		}
		return m, m.bridge.listen()

	case logMsg:
		m.addLog(msg.level, msg.message)
		return m, m.bridge.listen()

	case initDoneMsg:
		m.snapshot = msg.snapshot
		return m, nil

	case gestureDoneMsg:
		m.snapshot = msg.snapshot
		if m.pending == msg.name {
			m.pending = ""
		}
		if msg.name == "snapshot" {
			m.lastSubmit = m.currentTime
			m.lastSubmitTook = msg.took
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.scroll(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "1":
		m.activeTab = cameraTab
	case "2":
		m.activeTab = resultTab
	case "3":
		m.activeTab = logsTab
	case "tab":
		// Cycle through tabs
		m.activeTab = (m.activeTab + 1) % tabType(len(m.tabs))

	case "t":
		m.pending = "toggle"
		return m, m.gesture("toggle", func(c Controller, ctx context.Context) { c.Toggle(ctx) })
	case "w":
		if !m.controls.SwitchEnabled {
			return m, nil
		}
		m.pending = "switch"
		return m, m.gesture("switch", func(c Controller, ctx context.Context) { c.SwitchDevice(ctx) })
	case " ", "space", "enter":
		if !m.controls.SnapshotEnabled {
			return m, nil
		}
		m.pending = "snapshot"
		return m, m.gesture("snapshot", func(c Controller, ctx context.Context) { c.Submit(ctx) })

	case "v":
		m.verbosity = (m.verbosity + 1) % (VerbosityDebug + 1)

	default:
		return m.scroll(msg)
	}
	return m, nil
}

// scroll passes navigation keys to the viewport of the active tab.
func (m Model) scroll(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		vp  *viewport.Model
		cmd tea.Cmd
	)
	switch m.activeTab {
	case resultTab:
		vp = &m.resultViewport
	case logsTab:
		vp = &m.logViewport
	default:
		return m, nil
	}
	*vp, cmd = vp.Update(msg)
	return m, cmd
}
