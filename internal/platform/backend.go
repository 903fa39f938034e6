// Package platform abstracts the OS window system behind a narrow
// interface so the windowing core stays testable and portable. The
// real desktop integrations and the headless test backend implement
// the same contract.
package platform

import "github.com/glintapp/overlay/internal/shared/types"

// TopLevel is the always-on-top priority tier for a window.
type TopLevel string

const (
	// LevelNormal stacks the window with ordinary application windows.
	LevelNormal TopLevel = "normal"
	// LevelFloating keeps the window above normal windows.
	LevelFloating TopLevel = "floating"
	// LevelScreenSaver is the maximum priority tier; the header window
	// is pinned here so OS chrome cannot cover it.
	LevelScreenSaver TopLevel = "screen-saver"
)

// Display describes a physical display and its usable work area.
type Display struct {
	ID       int
	Name     string
	Bounds   types.Bounds
	WorkArea types.Bounds
	Primary  bool
	Scale    float64
}

// FocusOwner classifies who currently holds OS input focus.
type FocusOwner int

const (
	// FocusUnknown means the focus target could not be determined,
	// e.g. transient OS chrome or a display reconfiguration.
	FocusUnknown FocusOwner = iota
	// FocusSelf means a window of this application is focused.
	FocusSelf
	// FocusExternal means another application deliberately took focus.
	FocusExternal
)

// Window is a live OS window. Callers must re-validate liveness with
// IsDestroyed before acting: a window may be destroyed between the
// request that borrowed it and the frame that touches it.
type Window interface {
	Bounds() types.Bounds
	SetBounds(types.Bounds)
	SetPosition(types.Point)

	Opacity() float64
	SetOpacity(float64)

	Show()
	// ShowInactive makes the window visible without stealing focus
	// from the foreground application.
	ShowInactive()
	Hide()
	IsVisible() bool

	Focus() error
	SetAlwaysOnTop(enabled bool, level TopLevel)
	IsAlwaysOnTop() bool

	Resizable() bool
	SetResizable(bool)

	// SetIgnoreMouseEvents forwards mouse events through the window
	// while enabled, so overlapping transparent windows cannot steal
	// clicks mid-transition.
	SetIgnoreMouseEvents(bool)

	Destroy()
	IsDestroyed() bool
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	CreateWindow(cfg types.WindowTypeConfig) (Window, error)

	Displays() []Display
	PrimaryDisplay() Display
	// DisplayByID returns the display with the given id, if present.
	DisplayByID(id int) (Display, bool)
	// DisplayNearest returns the display whose work area is closest to
	// the given bounds. ok is false when no displays exist.
	DisplayNearest(b types.Bounds) (Display, bool)

	// FocusedApp classifies the current holder of OS input focus.
	FocusedApp() FocusOwner
}
