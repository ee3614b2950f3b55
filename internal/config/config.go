package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the local web console
type ServerConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	IP      string `json:"ip" yaml:"ip"`
	Port    string `json:"port" yaml:"port"`
}

// CameraConfig describes which device to open and what to ask it for.
type CameraConfig struct {
	DeviceName  string `json:"device_name" yaml:"device_name"`
	Facing      string `json:"facing" yaml:"facing"`
	IdealWidth  int    `json:"ideal_width" yaml:"ideal_width"`
	IdealHeight int    `json:"ideal_height" yaml:"ideal_height"`
	FPS         int    `json:"fps" yaml:"fps"`
	MaxProbe    int    `json:"max_probe" yaml:"max_probe"`
	RearDevice  int    `json:"rear_device" yaml:"rear_device"`
	FrontDevice int    `json:"front_device" yaml:"front_device"`
}

type RecognitionConfig struct {
	BaseURL     string `json:"base_url" yaml:"base_url"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	Timeout     string `json:"timeout" yaml:"timeout"`
	JPEGQuality int    `json:"jpeg_quality" yaml:"jpeg_quality"`
}

// RequestTimeout parses Timeout. An empty value means no timeout.
func (r RecognitionConfig) RequestTimeout() (time.Duration, error) {
	if r.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid recognition timeout %q: %w", r.Timeout, err)
	}
	return d, nil
}

type DiagnosticsConfig struct {
	// BaseURL defaults to the recognition service when empty.
	BaseURL     string `json:"base_url" yaml:"base_url"`
	Remote      bool   `json:"remote" yaml:"remote"`
	JournalPath string `json:"journal_path" yaml:"journal_path"`
	Platform    string `json:"platform" yaml:"platform"`
	AppVersion  string `json:"app_version" yaml:"app_version"`
}

type ControllerConfig struct {
	DebounceMS int `json:"debounce_ms" yaml:"debounce_ms"`
}

func (c ControllerConfig) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

type LogConfig struct {
	Path  string `json:"path" yaml:"path"`
	Level string `json:"level" yaml:"level"`
}

type AppConfig struct {
	Server      ServerConfig      `json:"server" yaml:"server"`
	Camera      CameraConfig      `json:"camera" yaml:"camera"`
	Recognition RecognitionConfig `json:"recognition" yaml:"recognition"`
	Diagnostics DiagnosticsConfig `json:"diagnostics" yaml:"diagnostics"`
	Controller  ControllerConfig  `json:"controller" yaml:"controller"`
	Log         LogConfig         `json:"log" yaml:"log"`
}

// Default config
func defaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Enabled: true,
			IP:      "localhost",
			Port:    "8080",
		},
		Camera: CameraConfig{
			DeviceName:  "No Camera Configured",
			Facing:      "environment",
			IdealWidth:  2560,
			IdealHeight: 1440,
			FPS:         30,
			MaxProbe:    5,
			RearDevice:  0,
			FrontDevice: 1,
		},
		Recognition: RecognitionConfig{
			BaseURL:     "http://localhost:8000",
			Endpoint:    "/api/ocr/passport/v2",
			Timeout:     "60s",
			JPEGQuality: 95,
		},
		Diagnostics: DiagnosticsConfig{
			Remote:   true,
			Platform: "desktop",
		},
		Controller: ControllerConfig{DebounceMS: 400},
		Log: LogConfig{
			Path:  "passcam.log",
			Level: "info",
		},
	}
}

const (
	jsonFile = "config.json"
	yamlFile = "config.yaml"
)

// Dir returns the config directory, creating it if needed. PASSCAM_CONFIG_DIR
// overrides the XDG-style ~/.config/passcam location.
func Dir() (string, error) {
	configDir := os.Getenv("PASSCAM_CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("unable to determine user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "passcam")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}
	return configDir, nil
}

// LoadEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("error loading %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the config from the config directory. See LoadFrom.
func Load() (*AppConfig, error) {
	dir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("error getting config path: %w", err)
	}
	return LoadFrom(dir)
}

// LoadFrom reads config.json from dir, or config.yaml when there is no JSON
// file, on top of the defaults. PASSCAM_* environment variables are applied
// last.
func LoadFrom(dir string) (*AppConfig, error) {
	config := defaultConfig()

	jsonPath := filepath.Join(dir, jsonFile)
	yamlPath := filepath.Join(dir, yamlFile)
	switch {
	case fileExists(jsonPath):
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error unmarshalling config file: %w", err)
		}
	case fileExists(yamlPath):
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error unmarshalling config file: %w", err)
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}
	if config.Diagnostics.JournalPath == "" {
		config.Diagnostics.JournalPath = filepath.Join(dir, "errors.db")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the config as JSON to the config directory.
func Save(config *AppConfig) error {
	dir, err := Dir()
	if err != nil {
		return fmt.Errorf("error getting config path: %w", err)
	}
	return SaveTo(dir, config)
}

func SaveTo(dir string, config *AppConfig) error {
	configBytes, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, jsonFile), configBytes, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Validate rejects settings the controller cannot work with.
func (c *AppConfig) Validate() error {
	switch c.Camera.Facing {
	case "environment", "user":
	default:
		return fmt.Errorf("invalid camera facing %q: want environment or user", c.Camera.Facing)
	}
	if c.Camera.IdealWidth <= 0 || c.Camera.IdealHeight <= 0 {
		return fmt.Errorf("invalid camera resolution %dx%d", c.Camera.IdealWidth, c.Camera.IdealHeight)
	}
	if q := c.Recognition.JPEGQuality; q < 1 || q > 100 {
		return fmt.Errorf("invalid jpeg quality %d: want 1..100", q)
	}
	if c.Recognition.BaseURL == "" {
		return errors.New("recognition base_url is required")
	}
	if _, err := c.Recognition.RequestTimeout(); err != nil {
		return err
	}
	if c.Controller.DebounceMS < 0 {
		return fmt.Errorf("invalid debounce_ms %d", c.Controller.DebounceMS)
	}
	return nil
}

// DiagnosticsURL is where error reports are posted.
func (c *AppConfig) DiagnosticsURL() string {
	if c.Diagnostics.BaseURL != "" {
		return c.Diagnostics.BaseURL
	}
	return c.Recognition.BaseURL
}

func applyEnv(c *AppConfig) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"PASSCAM_SERVER_IP", &c.Server.IP},
		{"PASSCAM_SERVER_PORT", &c.Server.Port},
		{"PASSCAM_CAMERA_FACING", &c.Camera.Facing},
		{"PASSCAM_RECOGNITION_URL", &c.Recognition.BaseURL},
		{"PASSCAM_RECOGNITION_ENDPOINT", &c.Recognition.Endpoint},
		{"PASSCAM_RECOGNITION_TIMEOUT", &c.Recognition.Timeout},
		{"PASSCAM_DIAGNOSTICS_URL", &c.Diagnostics.BaseURL},
		{"PASSCAM_JOURNAL_PATH", &c.Diagnostics.JournalPath},
		{"PASSCAM_APP_VERSION", &c.Diagnostics.AppVersion},
		{"PASSCAM_LOG_PATH", &c.Log.Path},
		{"PASSCAM_LOG_LEVEL", &c.Log.Level},
	}
	for _, s := range strs {
		if v, ok := os.LookupEnv(s.key); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PASSCAM_CAMERA_REAR_DEVICE", &c.Camera.RearDevice},
		{"PASSCAM_CAMERA_FRONT_DEVICE", &c.Camera.FrontDevice},
		{"PASSCAM_JPEG_QUALITY", &c.Recognition.JPEGQuality},
		{"PASSCAM_DEBOUNCE_MS", &c.Controller.DebounceMS},
	}
	for _, i := range ints {
		v, ok := os.LookupEnv(i.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", i.key, err)
		}
		*i.dst = n
	}

	if v, ok := os.LookupEnv("PASSCAM_SERVER_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PASSCAM_SERVER_ENABLED: %w", err)
		}
		c.Server.Enabled = b
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
