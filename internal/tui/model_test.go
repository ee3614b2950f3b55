package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AlverezYari/passcam/internal/capture"
	"github.com/AlverezYari/passcam/internal/display"
	"github.com/AlverezYari/passcam/pkg/camera"
)

type fakeController struct {
	mu    sync.Mutex
	calls []string
	snap  capture.Snapshot
}

func (f *fakeController) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeController) Init()                        { f.record("init") }
func (f *fakeController) Toggle(context.Context)       { f.record("toggle") }
func (f *fakeController) SwitchDevice(context.Context) { f.record("switch") }
func (f *fakeController) Submit(context.Context)       { f.record("submit") }
func (f *fakeController) Snapshot() capture.Snapshot   { return f.snap }

func newTestModel(ctrl Controller) Model {
	return New(context.Background(), Options{Controller: ctrl, Verbosity: VerbosityInfo})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBridgedMessagesUpdateModel(t *testing.T) {
	m := newTestModel(nil)

	m, cmd := update(t, m, statusMsg(display.Status{Variant: display.VariantError, Message: "Ошибка доступа", Class: display.ClassError}))
	if m.status.Message != "Ошибка доступа" {
		t.Errorf("status = %+v", m.status)
	}
	if cmd == nil {
		t.Error("bridge listener not re-armed")
	}
	if !strings.Contains(m.View(), "Ошибка доступа") {
		t.Error("status bar does not show the status")
	}

	m, _ = update(t, m, controlsMsg(display.Controls{ToggleLabel: display.ToggleOff, SnapshotEnabled: true, SnapshotLabel: display.SnapshotIdle}))
	if !m.controls.SnapshotEnabled || !strings.Contains(m.View(), display.ToggleOff) {
		t.Errorf("controls = %+v", m.controls)
	}
}

func TestResultMessageShowsResultTab(t *testing.T) {
	m := newTestModel(nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	model := &display.Model{Success: &display.SuccessSummary{
		ModelConfidence: "72%",
		Fields:          []display.Row{{Key: "last_name", Label: "Фамилия", Value: "O&#39;NEIL &amp; CO", Confidence: "99%"}},
	}}
	m, _ = update(t, m, resultMsg{model: model})

	if m.activeTab != resultTab {
		t.Errorf("active tab = %d, want result", m.activeTab)
	}
	view := m.View()
	for _, want := range []string{"72%", "Фамилия", "O'NEIL & CO", "(99%)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m, _ = update(t, m, resultMsg{model: nil})
	if m.result != nil || !strings.Contains(m.View(), "No result yet") {
		t.Error("hidden result still shown")
	}
}

func TestRenderModelError(t *testing.T) {
	out := renderModel(&display.Model{Error: &display.ErrorSummary{
		Title:    display.StatusRecognizeError,
		Messages: []string{"плохое &lt;фото&gt;"},
	}})
	if !strings.Contains(out, display.StatusRecognizeError) || !strings.Contains(out, "плохое <фото>") {
		t.Errorf("render = %q", out)
	}
}

func TestGestureKeysRunController(t *testing.T) {
	ctrl := &fakeController{snap: capture.Snapshot{State: capture.StateActive, Facing: camera.FacingEnvironment, Width: 1280, Height: 720}}
	m := newTestModel(ctrl)

	m, cmd := update(t, m, runeKey("t"))
	if cmd == nil || m.pending != "toggle" {
		t.Fatalf("toggle key: cmd = %v, pending = %q", cmd, m.pending)
	}
	done, ok := cmd().(gestureDoneMsg)
	if !ok || done.name != "toggle" {
		t.Fatalf("cmd returned %#v", done)
	}
	m, _ = update(t, m, done)
	if m.pending != "" || m.snapshot.Width != 1280 {
		t.Errorf("after toggle: pending = %q snapshot = %+v", m.pending, m.snapshot)
	}
	if !strings.Contains(m.View(), "1280×720") {
		t.Error("camera tab does not show the resolution")
	}

	// Snapshot and switch are ignored while their controls are disabled.
	if _, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("snapshot ran while disabled")
	}
	if _, cmd := update(t, m, runeKey("w")); cmd != nil {
		t.Error("switch ran while disabled")
	}

	m, _ = update(t, m, controlsMsg(display.Controls{SnapshotEnabled: true, SwitchEnabled: true}))
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("snapshot key produced no command")
	}
	m, _ = update(t, m, cmd())
	if m.lastSubmit.IsZero() {
		t.Error("last submission time not recorded")
	}
	_, cmd = update(t, m, runeKey("w"))
	cmd()

	want := []string{"toggle", "submit", "switch"}
	if strings.Join(ctrl.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", ctrl.calls, want)
	}
}

func TestInitRunsControllerInit(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(ctrl)

	msg := m.initController()()
	if _, ok := msg.(initDoneMsg); !ok {
		t.Fatalf("init returned %T", msg)
	}
	if len(ctrl.calls) != 1 || ctrl.calls[0] != "init" {
		t.Errorf("calls = %v", ctrl.calls)
	}
}

func TestTabsAndQuit(t *testing.T) {
	m := newTestModel(nil)
	m, _ = update(t, m, runeKey("3"))
	if m.activeTab != logsTab {
		t.Errorf("tab = %d, want logs", m.activeTab)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.activeTab != cameraTab {
		t.Errorf("tab = %d, want camera after wrap", m.activeTab)
	}
	_, cmd := update(t, m, runeKey("q"))
	if cmd == nil {
		t.Fatal("q produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q does not quit")
	}
}

func TestLogVerbosity(t *testing.T) {
	m := newTestModel(nil)
	m, _ = update(t, m, logMsg{level: "DEBUG", message: "hidden"})
	m, _ = update(t, m, logMsg{level: "INFO", message: "camera active"})
	if len(m.logs) != 1 || !strings.Contains(m.logs[0], "[INFO] camera active") {
		t.Errorf("logs = %q", m.logs)
	}

	m, _ = update(t, m, runeKey("v"))
	if m.verbosity != VerbosityDebug {
		t.Fatalf("verbosity = %s", m.verbosity)
	}
	m, _ = update(t, m, logMsg{level: "DEBUG", message: "now visible"})
	if len(m.logs) != 2 {
		t.Errorf("logs = %q", m.logs)
	}
}

func TestBridge(t *testing.T) {
	b := NewBridge()
	b.ShowStatus(display.Status{Message: "x"})
	b.Log("INFO", "line")

	if msg, ok := b.listen()().(statusMsg); !ok || msg.Message != "x" {
		t.Errorf("first message = %#v", msg)
	}
	if msg, ok := b.listen()().(logMsg); !ok || msg.message != "line" {
		t.Errorf("second message = %#v", msg)
	}

	b.Close()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			b.ShowControls(display.Controls{})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked after Close")
	}
}
