// cmd/passcam/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AlverezYari/passcam/internal/capture"
	"github.com/AlverezYari/passcam/internal/config"
	"github.com/AlverezYari/passcam/internal/diagnostics"
	"github.com/AlverezYari/passcam/internal/logging"
	"github.com/AlverezYari/passcam/internal/recognition"
	"github.com/AlverezYari/passcam/internal/server"
	"github.com/AlverezYari/passcam/internal/tui"
	"github.com/AlverezYari/passcam/pkg/camera"
	"github.com/AlverezYari/passcam/pkg/camera/opencv"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "passcam: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logHandler, logFile, err := logging.Setup(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := logging.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appVersion := cfg.Diagnostics.AppVersion
	if appVersion == "" {
		appVersion = version
	}
	identity := diagnostics.Identity{
		Platform:   cfg.Diagnostics.Platform,
		AppVersion: appVersion,
		UserAgent:  "passcam/" + appVersion,
	}
	reporters := diagnostics.Multi{diagnostics.LogReporter{Logger: logger}}

	journal, err := diagnostics.OpenJournal(cfg.Diagnostics.JournalPath, identity, logger)
	if err != nil {
		logger.Warn("diagnostics journal disabled", "error", err)
	} else {
		defer journal.Close()
		reporters = append(reporters, journal)
	}

	var remote *diagnostics.HTTPReporter
	if cfg.Diagnostics.Remote {
		remote = diagnostics.NewHTTPReporter(cfg.DiagnosticsURL(), identity, nil, logger)
		reporters = append(reporters, remote)
	}

	timeout, err := cfg.Recognition.RequestTimeout()
	if err != nil {
		return err
	}
	recognizer := recognition.NewClient(
		cfg.Recognition.BaseURL,
		cfg.Recognition.Endpoint,
		&http.Client{Timeout: timeout},
		logger.With("component", "recognition"),
	)

	bridge := tui.NewBridge()
	logHandler.Subscribe(bridge.Log)
	presenters := capture.Presenters{bridge}

	var (
		srv  *server.Server
		sink opencv.FrameSink
	)
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server.IP, cfg.Server.Port, logger.With("component", "server"))
		logHandler.Subscribe(srv.AddLog)
		presenters = append(presenters, srv)
		sink = srv.BroadcastFrame
	}

	devices := opencv.NewManager(opencv.Config{
		MaxProbe: cfg.Camera.MaxProbe,
		FacingDevices: map[camera.FacingMode]int{
			camera.FacingEnvironment: cfg.Camera.RearDevice,
			camera.FacingUser:        cfg.Camera.FrontDevice,
		},
		DefaultDevice: cfg.Camera.RearDevice,
		Framerate:     cfg.Camera.FPS,
	}, logger.With("component", "camera"))
	preview := opencv.NewPreview(sink, logger.With("component", "preview"))
	defer preview.Close()

	controller, err := capture.New(capture.Options{
		Devices:        devices,
		Surface:        preview,
		Recognizer:     recognizer,
		Reporter:       reporters,
		Presenter:      presenters,
		Logger:         logger.With("component", "capture"),
		Facing:         camera.FacingMode(cfg.Camera.Facing),
		IdealWidth:     cfg.Camera.IdealWidth,
		IdealHeight:    cfg.Camera.IdealHeight,
		JPEGQuality:    cfg.Recognition.JPEGQuality,
		DebounceWindow: cfg.Controller.DebounceWindow(),
	})
	if err != nil {
		return err
	}

	var serverAddr string
	if srv != nil {
		srv.SetGestures(controller)
		if journal != nil {
			srv.SetErrorLog(journal)
		}
		if err := srv.Start(); err != nil {
			logger.Error("web console disabled", "error", err)
		} else {
			serverAddr = srv.Addr()
			defer srv.Stop()
		}
	}

	p := tea.NewProgram(
		tui.New(ctx, tui.Options{
			Config:     cfg,
			Controller: controller,
			Bridge:     bridge,
			ServerAddr: serverAddr,
			Verbosity:  verbosityFor(cfg.Log.Level),
		}),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	logger.Info("passcam started", "version", appVersion, "recognition_url", recognizer.URL())
	_, runErr := p.Run()

	// The UI is gone; presenter calls must not wait for it.
	bridge.Close()
	controller.Close()
	if remote != nil {
		remote.Wait()
	}
	logger.Info("passcam stopped")

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("error running program: %w", runErr)
	}
	return nil
}

func verbosityFor(level string) tui.Verbosity {
	switch l := logging.ParseLevel(level); {
	case l <= slog.LevelDebug:
		return tui.VerbosityDebug
	case l >= slog.LevelError:
		return tui.VerbosityError
	default:
		return tui.VerbosityInfo
	}
}
