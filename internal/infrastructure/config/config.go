// Package config loads host configuration from the environment with
// sane defaults for every knob, including the fixed layout constants
// the geometry calculator and controller share.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all host configuration.
type Config struct {
	Server    ServerConfig
	Layout    LayoutConfig
	Motion    MotionConfig
	Focus     FocusConfig
	Recovery  RecoveryConfig
	State     StateConfig
	Telemetry TelemetryConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the renderer bridge server configuration.
type ServerConfig struct {
	Port string `envconfig:"OVERLAY_PORT" default:"8790"`
	Host string `envconfig:"OVERLAY_HOST" default:"127.0.0.1"`
}

// LayoutConfig holds the fixed layout constants.
type LayoutConfig struct {
	Padding     int `envconfig:"OVERLAY_LAYOUT_PADDING" default:"8"`
	EdgeMargin  int `envconfig:"OVERLAY_LAYOUT_EDGE_MARGIN" default:"20"`
	Step        int `envconfig:"OVERLAY_LAYOUT_STEP" default:"80"`
	SettingsGap int `envconfig:"OVERLAY_LAYOUT_SETTINGS_GAP" default:"8"`
	SlideOffset int `envconfig:"OVERLAY_LAYOUT_SLIDE_OFFSET" default:"20"`
	// MaxContentHeight caps the content-fit resize protocol.
	MaxContentHeight int `envconfig:"OVERLAY_LAYOUT_MAX_CONTENT_HEIGHT" default:"700"`
	// WindowTablePath optionally overrides the built-in window type
	// table with a YAML file.
	WindowTablePath string `envconfig:"OVERLAY_WINDOW_TABLE" default:""`
}

// MotionConfig holds animation timing.
type MotionConfig struct {
	Frame    time.Duration `envconfig:"OVERLAY_MOTION_FRAME" default:"16ms"`
	Duration time.Duration `envconfig:"OVERLAY_MOTION_DURATION" default:"300ms"`
}

// FocusConfig holds the focus guardian timing.
type FocusConfig struct {
	// Aggressive enables focus reassertion; when false, focus loss is
	// never contested.
	Aggressive bool          `envconfig:"OVERLAY_FOCUS_AGGRESSIVE" default:"true"`
	Settle     time.Duration `envconfig:"OVERLAY_FOCUS_SETTLE" default:"500ms"`
	Recheck    time.Duration `envconfig:"OVERLAY_FOCUS_RECHECK" default:"100ms"`
}

// RecoveryConfig holds crash recovery policy.
type RecoveryConfig struct {
	MaxAttempts  int           `envconfig:"OVERLAY_RECOVERY_MAX_ATTEMPTS" default:"3"`
	BackoffBase  time.Duration `envconfig:"OVERLAY_RECOVERY_BACKOFF" default:"1s"`
	ReportsDir   string        `envconfig:"OVERLAY_RECOVERY_REPORTS_DIR" default:"crash-reports"`
	RecoveryFile string        `envconfig:"OVERLAY_RECOVERY_FILE" default:"recovery-state.json"`
}

// StateConfig holds persistence configuration.
type StateConfig struct {
	Path          string        `envconfig:"OVERLAY_STATE_PATH" default:"overlay-state.json"`
	AutosaveEvery time.Duration `envconfig:"OVERLAY_STATE_AUTOSAVE" default:"30s"`
}

// TelemetryConfig holds the optional crash report uploader.
type TelemetryConfig struct {
	Enabled bool   `envconfig:"OVERLAY_TELEMETRY_ENABLED" default:"false"`
	URL     string `envconfig:"OVERLAY_TELEMETRY_URL" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"OVERLAY_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"OVERLAY_LOG_DEV" default:"false"`
}

// RateLimitConfig holds bridge rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"OVERLAY_RATE_LIMIT_RPS" default:"120"`
	Burst             int  `envconfig:"OVERLAY_RATE_LIMIT_BURST" default:"240"`
	Enabled           bool `envconfig:"OVERLAY_RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns the
// defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8790", Host: "127.0.0.1"},
		Layout: LayoutConfig{
			Padding:          8,
			EdgeMargin:       20,
			Step:             80,
			SettingsGap:      8,
			SlideOffset:      20,
			MaxContentHeight: 700,
		},
		Motion: MotionConfig{Frame: 16 * time.Millisecond, Duration: 300 * time.Millisecond},
		Focus: FocusConfig{
			Aggressive: true,
			Settle:     500 * time.Millisecond,
			Recheck:    100 * time.Millisecond,
		},
		Recovery: RecoveryConfig{
			MaxAttempts:  3,
			BackoffBase:  time.Second,
			ReportsDir:   "crash-reports",
			RecoveryFile: "recovery-state.json",
		},
		State:     StateConfig{Path: "overlay-state.json", AutosaveEvery: 30 * time.Second},
		Telemetry: TelemetryConfig{},
		Logging:   LogConfig{Level: "info", Development: false},
		RateLimit: RateLimitConfig{RequestsPerSecond: 120, Burst: 240, Enabled: true},
	}
}
