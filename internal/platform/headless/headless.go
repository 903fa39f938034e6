// Package headless provides an in-memory platform backend. It backs
// the test suite and lets the host run on CI machines without a
// window server; every operation mutates plain structs under a mutex.
package headless

import (
	"errors"
	"sync"

	"github.com/glintapp/overlay/internal/platform"
	"github.com/glintapp/overlay/internal/shared/types"
)

// ErrNoDisplays is returned by CreateWindow when the simulated
// topology has no displays at all.
var ErrNoDisplays = errors.New("headless: no displays configured")

// Backend is a deterministic in-memory platform.Backend.
type Backend struct {
	mu       sync.Mutex
	displays []platform.Display
	focused  platform.FocusOwner
	windows  []*Window

	// FailFocus makes Window.Focus return an error, simulating an OS
	// that denies programmatic focus changes.
	FailFocus bool
}

// New returns a backend with a single 1920x1080 primary display whose
// work area excludes a 40px bottom taskbar.
func New() *Backend {
	return &Backend{
		displays: []platform.Display{{
			ID:       1,
			Name:     "Headless-1",
			Bounds:   types.Bounds{X: 0, Y: 0, Width: 1920, Height: 1080},
			WorkArea: types.Bounds{X: 0, Y: 0, Width: 1920, Height: 1040},
			Primary:  true,
			Scale:    1,
		}},
		focused: platform.FocusSelf,
	}
}

// SetDisplays replaces the simulated display topology.
func (b *Backend) SetDisplays(displays []platform.Display) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.displays = append([]platform.Display(nil), displays...)
}

// SetFocusedApp scripts the answer FocusedApp will give.
func (b *Backend) SetFocusedApp(owner platform.FocusOwner) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focused = owner
}

// CreateWindow builds an in-memory window sized from the type table
// entry and positioned at the primary display's work-area origin.
func (b *Backend) CreateWindow(cfg types.WindowTypeConfig) (platform.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.displays) == 0 {
		return nil, ErrNoDisplays
	}
	origin := b.primaryLocked().WorkArea
	w := &Window{
		backend: b,
		bounds: types.Bounds{
			X:      origin.X,
			Y:      origin.Y,
			Width:  cfg.Width,
			Height: cfg.Height,
		},
		opacity:   1,
		resizable: cfg.Resizable,
	}
	b.windows = append(b.windows, w)
	return w, nil
}

// Displays returns a copy of the simulated topology.
func (b *Backend) Displays() []platform.Display {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]platform.Display(nil), b.displays...)
}

// PrimaryDisplay returns the primary display, or the first display
// when none is marked primary.
func (b *Backend) PrimaryDisplay() platform.Display {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.primaryLocked()
}

func (b *Backend) primaryLocked() platform.Display {
	for _, d := range b.displays {
		if d.Primary {
			return d
		}
	}
	if len(b.displays) > 0 {
		return b.displays[0]
	}
	return platform.Display{}
}

// DisplayByID looks up a display by id.
func (b *Backend) DisplayByID(id int) (platform.Display, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.displays {
		if d.ID == id {
			return d, true
		}
	}
	return platform.Display{}, false
}

// DisplayNearest returns the display containing the center of b, or
// the primary display when the center is off every display.
func (bk *Backend) DisplayNearest(b types.Bounds) (platform.Display, bool) {
	bk.mu.Lock()
	defer bk.mu.Unlock()
	if len(bk.displays) == 0 {
		return platform.Display{}, false
	}
	center := types.Point{X: b.CenterX(), Y: b.CenterY()}
	for _, d := range bk.displays {
		if d.Bounds.Contains(center) {
			return d, true
		}
	}
	return bk.primaryLocked(), true
}

// FocusedApp returns the scripted focus owner.
func (b *Backend) FocusedApp() platform.FocusOwner {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focused
}

// Window is an in-memory platform.Window.
type Window struct {
	backend *Backend

	mu          sync.Mutex
	bounds      types.Bounds
	opacity     float64
	visible     bool
	destroyed   bool
	alwaysOnTop bool
	topLevel    platform.TopLevel
	resizable   bool
	ignoreMouse bool

	focusCount  int
	shownCounts struct{ active, inactive int }
}

// Bounds returns the live window rectangle.
func (w *Window) Bounds() types.Bounds {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

// SetBounds mutates the live rectangle. No-op after destruction.
func (w *Window) SetBounds(b types.Bounds) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}
	w.bounds = b
}

// SetPosition moves the window without resizing it.
func (w *Window) SetPosition(p types.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}
	w.bounds.X, w.bounds.Y = p.X, p.Y
}

// Opacity returns the current opacity in [0,1].
func (w *Window) Opacity() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opacity
}

// SetOpacity sets the window opacity.
func (w *Window) SetOpacity(o float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}
	if o < 0 {
		o = 0
	}
	if o > 1 {
		o = 1
	}
	w.opacity = o
}

// Show makes the window visible and focuses it.
func (w *Window) Show() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}
	w.visible = true
	w.shownCounts.active++
}

// ShowInactive makes the window visible without taking focus.
func (w *Window) ShowInactive() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}
	w.visible = true
	w.shownCounts.inactive++
}

// Hide makes the window invisible.
func (w *Window) Hide() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}
	w.visible = false
}

// IsVisible reports the window's visibility flag. Destruction leaves
// the flag untouched: a dead handle still answers with its last-known
// visibility, which is what the crash path reads to decide whether a
// recreated window should be re-shown.
func (w *Window) IsVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

// Focus simulates requesting OS focus.
func (w *Window) Focus() error {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return errors.New("headless: window destroyed")
	}
	w.focusCount++
	w.mu.Unlock()

	w.backend.mu.Lock()
	fail := w.backend.FailFocus
	if !fail {
		w.backend.focused = platform.FocusSelf
	}
	w.backend.mu.Unlock()
	if fail {
		return errors.New("headless: focus denied")
	}
	return nil
}

// FocusCount returns how many focus attempts were made; test hook.
func (w *Window) FocusCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focusCount
}

// SetAlwaysOnTop records the requested stacking tier.
func (w *Window) SetAlwaysOnTop(enabled bool, level platform.TopLevel) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}
	w.alwaysOnTop = enabled
	w.topLevel = level
}

// IsAlwaysOnTop reports the current stacking state.
func (w *Window) IsAlwaysOnTop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alwaysOnTop
}

// TopLevel returns the last requested stacking tier; test hook.
func (w *Window) TopLevel() platform.TopLevel {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.topLevel
}

// Resizable reports whether the window may be resized.
func (w *Window) Resizable() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resizable
}

// SetResizable toggles resizability.
func (w *Window) SetResizable(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}
	w.resizable = v
}

// SetIgnoreMouseEvents toggles click pass-through.
func (w *Window) SetIgnoreMouseEvents(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}
	w.ignoreMouse = v
}

// IgnoresMouseEvents reports the pass-through state; test hook.
func (w *Window) IgnoresMouseEvents() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ignoreMouse
}

// Destroy marks the window dead. All further mutations are no-ops.
func (w *Window) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyed = true
	w.visible = false
}

// IsDestroyed reports whether Destroy has been called.
func (w *Window) IsDestroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}
