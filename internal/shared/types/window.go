package types

// WindowName identifies one of the overlay's pooled windows.
type WindowName string

const (
	WindowHeader           WindowName = "header"
	WindowAsk              WindowName = "ask"
	WindowListen           WindowName = "listen"
	WindowSettings         WindowName = "settings"
	WindowShortcutSettings WindowName = "shortcut-settings"
)

// Valid reports whether the name is a known window.
func (n WindowName) Valid() bool {
	switch n {
	case WindowHeader, WindowAsk, WindowListen, WindowSettings, WindowShortcutSettings:
		return true
	}
	return false
}

// IsFeature reports whether the window is one of the header-anchored
// feature windows (ask, listen).
func (n WindowName) IsFeature() bool {
	return n == WindowAsk || n == WindowListen
}

// FeatureWindows lists the feature windows in their fixed left-to-right
// layout order.
var FeatureWindows = []WindowName{WindowAsk, WindowListen}

// WindowTypeConfig is the static creation configuration for one window
// type. The recovery path and the pool both build windows exclusively
// from this table so a recreated window is indistinguishable from the
// original.
type WindowTypeConfig struct {
	Name        WindowName `json:"name" yaml:"name"`
	Width       int        `json:"width" yaml:"width"`
	MinHeight   int        `json:"min_height" yaml:"min_height"`
	MaxHeight   int        `json:"max_height" yaml:"max_height"`
	Height      int        `json:"height" yaml:"height"`
	Frameless   bool       `json:"frameless" yaml:"frameless"`
	Transparent bool       `json:"transparent" yaml:"transparent"`
	Resizable   bool       `json:"resizable" yaml:"resizable"`
	// Bootstrap is the renderer entry point loaded into the window.
	Bootstrap string `json:"bootstrap" yaml:"bootstrap"`
}

// FixedHeight reports whether the window height may not vary with content.
func (c WindowTypeConfig) FixedHeight() bool {
	return c.MinHeight == 0 && c.MaxHeight == 0
}

// ClampHeight constrains h to the window type's allowed height range.
func (c WindowTypeConfig) ClampHeight(h int) int {
	if c.FixedHeight() {
		return c.Height
	}
	if h < c.MinHeight {
		return c.MinHeight
	}
	if c.MaxHeight > 0 && h > c.MaxHeight {
		return c.MaxHeight
	}
	return h
}

// WindowTable maps window names to their static configuration.
type WindowTable map[WindowName]WindowTypeConfig

// Get returns the configuration for a window name.
func (t WindowTable) Get(name WindowName) (WindowTypeConfig, bool) {
	cfg, ok := t[name]
	return cfg, ok
}

// DefaultWindowTable returns the built-in window type table.
func DefaultWindowTable() WindowTable {
	return WindowTable{
		WindowHeader: {
			Name:        WindowHeader,
			Width:       650,
			Height:      47,
			Frameless:   true,
			Transparent: true,
			Bootstrap:   "header.html",
		},
		WindowAsk: {
			Name:        WindowAsk,
			Width:       600,
			Height:      350,
			MinHeight:   200,
			MaxHeight:   700,
			Frameless:   true,
			Transparent: true,
			Bootstrap:   "ask.html",
		},
		WindowListen: {
			Name:        WindowListen,
			Width:       400,
			Height:      300,
			MinHeight:   120,
			MaxHeight:   700,
			Frameless:   true,
			Transparent: true,
			Bootstrap:   "listen.html",
		},
		WindowSettings: {
			Name:        WindowSettings,
			Width:       240,
			Height:      400,
			Frameless:   true,
			Transparent: true,
			Bootstrap:   "settings.html",
		},
		WindowShortcutSettings: {
			Name:        WindowShortcutSettings,
			Width:       353,
			Height:      720,
			Frameless:   true,
			Transparent: true,
			Bootstrap:   "shortcuts.html",
		},
	}
}

// LayoutRequest describes one layout pass over the feature windows.
// Immutable and single-use: the controller builds a fresh request for
// every pass so stale visibility never leaks between passes.
type LayoutRequest struct {
	// Visibility is the desired visibility of each feature window.
	Visibility map[WindowName]bool
	// HeaderBounds overrides the live header bounds when the header is
	// itself mid-move and the caller already knows its destination.
	HeaderBounds *Bounds
}

// LayoutResult maps window names to their computed target bounds.
// A window absent from the result takes no part in the layout pass.
type LayoutResult map[WindowName]Bounds
