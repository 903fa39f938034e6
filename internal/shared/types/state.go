package types

import "time"

// WindowState is the persisted snapshot of a single window.
type WindowState struct {
	Bounds      Bounds    `json:"bounds"`
	Visible     bool      `json:"visible"`
	IsMaximized bool      `json:"isMaximized"`
	DisplayID   int       `json:"displayId"`
	LastSaved   time.Time `json:"lastSaved"`
}

// AppState is the full persisted application state. It is written by a
// single owner (the state store) to a primary file with a rotating
// backup copy.
type AppState struct {
	Version          int                        `json:"version"`
	LastSaved        time.Time                  `json:"lastSaved"`
	WindowStates     map[WindowName]WindowState `json:"windowStates"`
	EnhancedServices map[string]any             `json:"enhancedServices"`
	UserPreferences  map[string]any             `json:"userPreferences"`
	SessionData      map[string]any             `json:"sessionData"`
}

// StateVersion is the current AppState schema version.
const StateVersion = 1

// NewAppState returns an empty state at the current schema version.
func NewAppState() *AppState {
	return &AppState{
		Version:          StateVersion,
		WindowStates:     make(map[WindowName]WindowState),
		EnhancedServices: make(map[string]any),
		UserPreferences:  make(map[string]any),
		SessionData:      make(map[string]any),
	}
}

// CrashError captures the error detail of a crash incident.
type CrashError struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
	Name    string `json:"name"`
}

// CrashReport is written as one JSON file per incident.
type CrashReport struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Timestamp       time.Time         `json:"timestamp"`
	Platform        string            `json:"platform"`
	Arch            string            `json:"arch"`
	AppVersion      string            `json:"appVersion"`
	RuntimeVersions map[string]string `json:"runtimeVersions"`
	Error           CrashError        `json:"error"`
	MemoryBytes     uint64            `json:"memory"`
	UptimeSeconds   int64             `json:"uptime"`
}

// Crash report types.
const (
	CrashRendererGone      = "renderer-gone"
	CrashUncaughtException = "uncaught-exception"
	CrashUnhandledRejected = "unhandled-rejection"
)
