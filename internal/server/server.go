// internal/server/server.go
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/AlverezYari/passcam/internal/diagnostics"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxLogEntries = 100

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Gestures are the operator actions the console can trigger. Each call
// returns once the action has settled.
type Gestures interface {
	Toggle(ctx context.Context)
	SwitchDevice(ctx context.Context)
	Submit(ctx context.Context)
}

// ErrorLog is the local record of diagnostic events.
type ErrorLog interface {
	Recent(ctx context.Context, n int) ([]diagnostics.Record, error)
}

type Server struct {
	server    *http.Server
	listener  net.Listener
	ip        string
	port      string
	isRunning bool
	runMu     sync.Mutex

	gestMu   sync.RWMutex
	gestures Gestures
	errorLog ErrorLog
	logger   *slog.Logger
	page     *template.Template

	logBuffer []LogEntry
	logMutex  sync.RWMutex

	upgrader websocket.Upgrader
	frames   *hub
	events   *hub

	state *consoleState
}

func New(ip, port string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ip:        ip,
		port:      port,
		logger:    logger,
		page:      template.Must(template.ParseFS(templateFS, "templates/console.html")),
		logBuffer: make([]LogEntry, 0, maxLogEntries),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		frames: newHub(websocket.BinaryMessage, 2),
		events: newHub(websocket.TextMessage, 32),
		state:  &consoleState{},
	}
}

// SetGestures wires the controller the console buttons act on.
func (s *Server) SetGestures(g Gestures) {
	s.gestMu.Lock()
	defer s.gestMu.Unlock()
	s.gestures = g
}

// SetErrorLog exposes journaled diagnostic events under /api/errors.
func (s *Server) SetErrorLog(l ErrorLog) {
	s.gestMu.Lock()
	defer s.gestMu.Unlock()
	s.errorLog = l
}

// Handler returns the console's routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleConsole)
	r.Get("/ws/camera", s.handleWebSocket(s.frames))
	r.Get("/ws/events", s.handleWebSocket(s.events))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/logs", s.handleLogs)
		r.Get("/errors", s.handleErrors)
		r.Post("/camera/toggle", s.handleGesture("toggle", func(g Gestures, ctx context.Context) { g.Toggle(ctx) }))
		r.Post("/camera/switch", s.handleGesture("switch", func(g Gestures, ctx context.Context) { g.SwitchDevice(ctx) }))
		r.Post("/snapshot", s.handleGesture("snapshot", func(g Gestures, ctx context.Context) { g.Submit(ctx) }))
	})
	return r
}

func (s *Server) Start() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.isRunning {
		s.AddLog("ERROR", fmt.Sprintf("Server is already running on port %s", s.port))
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.ip, s.port))
	if err != nil {
		s.AddLog("ERROR", fmt.Sprintf("Unable to listen on port %s: %v", s.port, err))
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.AddLog("INFO", fmt.Sprintf("Starting server on %s", ln.Addr()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.AddLog("ERROR", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	s.isRunning = true
	return nil
}

func (s *Server) Stop() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.isRunning {
		s.AddLog("ERROR", "Server stop requested, but server is not running")
		return errors.New("server is not running")
	}

	s.AddLog("INFO", "Stopping server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.frames.closeAll()
	s.events.closeAll()
	if err := s.server.Shutdown(ctx); err != nil {
		s.AddLog("ERROR", fmt.Sprintf("Server shutdown error: %v", err))
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.isRunning = false
	s.AddLog("INFO", "Server stopped")
	return nil
}

func (s *Server) IsRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.isRunning
}

func (s *Server) Port() string {
	return s.port
}

// Addr is the address the server listens on, or "" when stopped.
func (s *Server) Addr() string {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.isRunning {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) SetPort(port string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.isRunning {
		return errors.New("cannot change port while server is running")
	}
	s.port = port
	return nil
}

// BroadcastFrame sends one JPEG preview frame to every /ws/camera client.
func (s *Server) BroadcastFrame(frameBytes []byte) {
	s.frames.broadcast(frameBytes)
}

func (s *Server) handleWebSocket(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.AddLog("ERROR", fmt.Sprintf("Error upgrading websocket connection: %v", err))
			return
		}
		s.AddLog("INFO", fmt.Sprintf("Websocket %s connected from %s", r.URL.Path, r.RemoteAddr))

		c := h.add(conn)
		if h == s.events {
			if msg, err := json.Marshal(s.state.event("state")); err == nil {
				c.enqueue(msg)
			}
		}
		defer h.remove(c)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("websocket read ended", "path", r.URL.Path, "error", err)
				}
				return
			}
		}
	}
}

func (s *Server) handleGesture(name string, run func(Gestures, context.Context)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.gestMu.RLock()
		g := s.gestures
		s.gestMu.RUnlock()
		if g == nil {
			http.Error(w, "camera controller not attached", http.StatusServiceUnavailable)
			return
		}
		s.logger.Debug("console gesture", "gesture", name, "request_id", middleware.GetReqID(r.Context()))
		// The action outlives a browser that navigates away mid-request.
		run(g, context.WithoutCancel(r.Context()))
		writeJSON(w, s.state.event("state"))
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.state.event("state"))
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.GetRecentLogs(maxLogEntries))
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	s.gestMu.RLock()
	l := s.errorLog
	s.gestMu.RUnlock()
	if l == nil {
		http.Error(w, "error journal disabled", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}

	recs, err := l.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read error journal", "error", err)
		http.Error(w, "failed to read error journal", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []diagnostics.Record{}
	}
	writeJSON(w, recs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// AddLog appends to the console log buffer. Its signature matches
// logging.Callback so the server can subscribe to the process log.
func (s *Server) AddLog(level, message string) {
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	}

	s.logMutex.Lock()
	s.logBuffer = append(s.logBuffer, entry)
	if len(s.logBuffer) > maxLogEntries {
		s.logBuffer = s.logBuffer[1:]
	}
	s.logMutex.Unlock()
}

// GetRecentLogs returns up to n of the newest entries, oldest first.
func (s *Server) GetRecentLogs(n int) []LogEntry {
	s.logMutex.RLock()
	defer s.logMutex.RUnlock()
	if n > len(s.logBuffer) {
		n = len(s.logBuffer)
	}
	if n <= 0 {
		return nil
	}
	return append([]LogEntry(nil), s.logBuffer[len(s.logBuffer)-n:]...)
}
