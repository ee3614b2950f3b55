// internal/tui/model.go
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AlverezYari/passcam/internal/capture"
	"github.com/AlverezYari/passcam/internal/config"
	"github.com/AlverezYari/passcam/internal/display"
)

type tabType int

const (
	cameraTab tabType = iota
	resultTab
	logsTab
)

type tab struct {
	title string
	id    tabType
}

// Controller is the part of the capture controller the console drives.
// Every method may block, so they only run inside commands.
type Controller interface {
	Init()
	Toggle(ctx context.Context)
	SwitchDevice(ctx context.Context)
	Submit(ctx context.Context)
	Snapshot() capture.Snapshot
}

// Logging Setup

type Verbosity int

const (
	VerbosityError Verbosity = iota
	VerbosityInfo
	VerbosityDebug
)

func (v Verbosity) String() string {
	switch v {
	case VerbosityError:
		return "error"
	case VerbosityInfo:
		return "info"
	default:
		return "debug"
	}
}

const maxLogLines = 1000

func (m *Model) addLog(level, message string) {
	if !m.shouldShowLog(level) {
		return
	}
	m.logs = append(m.logs, fmt.Sprintf("%s [%s] %s", m.currentTime.Format("15:04:05"), level, message))
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[1:]
	}
	m.logViewport.SetContent(strings.Join(m.logs, "\n"))
	m.logViewport.GotoBottom()
}

func (m *Model) shouldShowLog(level string) bool {
	switch m.verbosity {
	case VerbosityDebug:
		return true
	case VerbosityInfo:
		return level != "DEBUG"
	case VerbosityError:
		return level == "ERROR"
	default:
		return false
	}
}

// Msg types
type tickMsg time.Time

type initDoneMsg struct {
	snapshot capture.Snapshot
}

type gestureDoneMsg struct {
	name     string
	took     time.Duration
	snapshot capture.Snapshot
}

// Model holds our application state
type Model struct {
	ctx        context.Context
	config     *config.AppConfig
	controller Controller
	bridge     *Bridge
	serverAddr string

	width       int
	height      int
	startTime   time.Time
	currentTime time.Time
	activeTab   tabType
	tabs        []tab

	status   display.Status
	controls display.Controls
	result   *display.Model
	snapshot capture.Snapshot
	pending  string

	lastSubmit     time.Time
	lastSubmitTook time.Duration

	resultViewport viewport.Model
	logViewport    viewport.Model
	logs           []string
	verbosity      Verbosity
}

// Options configures the console model.
type Options struct {
	Config     *config.AppConfig
	Controller Controller
	Bridge     *Bridge
	// ServerAddr is shown on the camera tab when the web console runs.
	ServerAddr string
	Verbosity  Verbosity
}

// New returns a Model with initial state
func New(ctx context.Context, opts Options) Model {
	now := time.Now()
	if opts.Bridge == nil {
		opts.Bridge = NewBridge()
	}
	newViewport := func() viewport.Model {
		vp := viewport.New(0, 10)
		vp.MouseWheelEnabled = true
		return vp
	}
	return Model{
		ctx:         ctx,
		config:      opts.Config,
		controller:  opts.Controller,
		bridge:      opts.Bridge,
		serverAddr:  opts.ServerAddr,
		startTime:   now,
		currentTime: now,
		activeTab:   cameraTab,
		tabs: []tab{
			{title: "Camera", id: cameraTab},
			{title: "Result", id: resultTab},
			{title: "Logs", id: logsTab},
		},
		controls:       display.Controls{ToggleLabel: display.ToggleOn, SnapshotLabel: display.SnapshotIdle},
		resultViewport: newViewport(),
		logViewport:    newViewport(),
		logs:           make([]string, 0),
		verbosity:      opts.Verbosity,
	}
}

// Init shows the idle console and starts listening for bridged messages.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		timeTickCmd(),
		m.bridge.listen(),
		m.initController(),
	)
}

func (m Model) initController() tea.Cmd {
	ctrl := m.controller
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		ctrl.Init()
		return initDoneMsg{snapshot: ctrl.Snapshot()}
	}
}

// gesture runs one controller action off the UI loop.
func (m Model) gesture(name string, run func(Controller, context.Context)) tea.Cmd {
	ctrl, ctx := m.controller, m.ctx
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		start := time.Now()
		run(ctrl, ctx)
		return gestureDoneMsg{name: name, took: time.Since(start), snapshot: ctrl.Snapshot()}
	}
}

// Helper command for time updates
func timeTickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
