// Package geometry computes target window bounds from current state,
// display metrics, and a layout request. Every function is pure: no
// window is touched and no animation is started here. A nil result
// means "skip this layout pass" and is never an error.
package geometry

import (
	"github.com/glintapp/overlay/internal/platform"
	"github.com/glintapp/overlay/internal/shared/types"
)

// DisplayProvider is the narrow slice of the platform backend the
// calculator reads. It never mutates displays.
type DisplayProvider interface {
	PrimaryDisplay() platform.Display
	DisplayByID(id int) (platform.Display, bool)
	DisplayNearest(b types.Bounds) (platform.Display, bool)
}

// Config holds the fixed layout constants.
type Config struct {
	// Padding separates feature windows from the header and from each
	// other.
	Padding int
	// EdgeMargin is the gap kept when snapping the header to a
	// work-area edge.
	EdgeMargin int
	// Step is the distance of one keyboard-driven header move.
	Step int
	// SettingsGap separates the settings popover from the header.
	SettingsGap int
}

// DefaultConfig returns the stock layout constants.
func DefaultConfig() Config {
	return Config{Padding: 8, EdgeMargin: 20, Step: 80, SettingsGap: 8}
}

// Calculator performs all layout math for the window controller.
type Calculator struct {
	displays DisplayProvider
	table    types.WindowTable
	cfg      Config
}

// New creates a calculator bound to a display provider and window
// type table.
func New(displays DisplayProvider, table types.WindowTable, cfg Config) *Calculator {
	return &Calculator{displays: displays, table: table, cfg: cfg}
}

// FeatureLayout computes target bounds for the visible feature windows
// relative to the header.
//
// The placement strategy compares free vertical space above and below
// the header inside the active display's work area and picks whichever
// side has more room; equal space places below (the comparison is a
// strict >, and the tie-break is deliberate, documented behavior).
// Width always comes from the type table's nominal width, never from
// live bounds, so repeated passes cannot accumulate width drift. Only
// the height of each window follows its live value, clamped to the
// type's range.
//
// current supplies live bounds per window; missing entries fall back
// to the type's default height. Returns nil when the header is unknown
// or no display exists, and an empty result when no feature window is
// visible.
func (c *Calculator) FeatureLayout(req types.LayoutRequest, liveHeader *types.Bounds, current map[types.WindowName]types.Bounds) types.LayoutResult {
	header := liveHeader
	if req.HeaderBounds != nil {
		header = req.HeaderBounds
	}
	if header == nil {
		return nil
	}
	display, ok := c.displays.DisplayNearest(*header)
	if !ok {
		return nil
	}

	var visible []types.WindowName
	for _, name := range types.FeatureWindows {
		if req.Visibility[name] {
			visible = append(visible, name)
		}
	}
	result := make(types.LayoutResult, len(visible))
	if len(visible) == 0 {
		return result
	}

	wa := display.WorkArea
	spaceAbove := header.Y - wa.Y
	spaceBelow := wa.Bottom() - header.Bottom()
	above := spaceAbove > spaceBelow

	total := 0
	for i, name := range visible {
		cfg, ok := c.table.Get(name)
		if !ok {
			return nil
		}
		total += cfg.Width
		if i > 0 {
			total += c.cfg.Padding
		}
	}

	// Center the strip on the header, then shift it as a unit back
	// into the work area so sibling spacing survives edge clamping.
	x := header.CenterX() - total/2
	if x+total > wa.Right() {
		x = wa.Right() - total
	}
	if x < wa.X {
		x = wa.X
	}

	for _, name := range visible {
		cfg, _ := c.table.Get(name)
		height := cfg.Height
		if b, ok := current[name]; ok {
			height = b.Height
		}
		height = cfg.ClampHeight(height)

		y := header.Bottom() + c.cfg.Padding
		if above {
			y = header.Y - c.cfg.Padding - height
		}
		result[name] = types.Bounds{X: x, Y: y, Width: cfg.Width, Height: height}
		x += cfg.Width + c.cfg.Padding
	}
	return result
}

// HeaderResize keeps the header's horizontal center fixed while
// changing its size.
func (c *Calculator) HeaderResize(header types.Bounds, size types.Size) *types.Bounds {
	if size.Width <= 0 || size.Height <= 0 {
		return nil
	}
	return &types.Bounds{
		X:      header.X + (header.Width-size.Width)/2,
		Y:      header.Y,
		Width:  size.Width,
		Height: size.Height,
	}
}

// StepMove offsets the header by one fixed step in the given
// direction, clamped to the active display's work area.
func (c *Calculator) StepMove(header types.Bounds, dir types.Direction) *types.Point {
	display, ok := c.displays.DisplayNearest(header)
	if !ok {
		return nil
	}
	p := header.Position()
	switch dir {
	case types.DirectionUp:
		p.Y -= c.cfg.Step
	case types.DirectionDown:
		p.Y += c.cfg.Step
	case types.DirectionLeft:
		p.X -= c.cfg.Step
	case types.DirectionRight:
		p.X += c.cfg.Step
	default:
		return nil
	}
	clamped := clampToArea(header.WithPosition(p), display.WorkArea)
	return &clamped
}

// EdgePosition snaps the header to the nearest left or right work-area
// edge with a fixed margin. Vertical directions are not edge targets.
func (c *Calculator) EdgePosition(header types.Bounds, dir types.Direction) *types.Point {
	display, ok := c.displays.DisplayNearest(header)
	if !ok {
		return nil
	}
	wa := display.WorkArea
	switch dir {
	case types.DirectionLeft:
		return &types.Point{X: wa.X + c.cfg.EdgeMargin, Y: header.Y}
	case types.DirectionRight:
		return &types.Point{X: wa.Right() - c.cfg.EdgeMargin - header.Width, Y: header.Y}
	}
	return nil
}

// PositionForDisplay maps a window's position onto another display,
// preserving its relative placement within the source work area as
// fractions of the work-area size. Moving to the window's current
// display is a no-op returning the current position.
func (c *Calculator) PositionForDisplay(win types.Bounds, targetID int) *types.Point {
	target, ok := c.displays.DisplayByID(targetID)
	if !ok {
		return nil
	}
	source, ok := c.displays.DisplayNearest(win)
	if !ok {
		return nil
	}
	if source.ID == target.ID {
		p := win.Position()
		return &p
	}

	sw, sh := source.WorkArea.Width, source.WorkArea.Height
	if sw <= 0 || sh <= 0 {
		return nil
	}
	fx := float64(win.X-source.WorkArea.X) / float64(sw)
	fy := float64(win.Y-source.WorkArea.Y) / float64(sh)

	p := types.Point{
		X: target.WorkArea.X + int(fx*float64(target.WorkArea.Width)),
		Y: target.WorkArea.Y + int(fy*float64(target.WorkArea.Height)),
	}
	clamped := clampToArea(win.WithPosition(p), target.WorkArea)
	return &clamped
}

// HeightAdjustment returns the window's bounds with only the height
// changed, clamped to the window type's allowed range.
func (c *Calculator) HeightAdjustment(name types.WindowName, win types.Bounds, targetHeight int) *types.Bounds {
	cfg, ok := c.table.Get(name)
	if !ok {
		return nil
	}
	b := win.WithHeight(cfg.ClampHeight(targetHeight))
	return &b
}

// SettingsPosition anchors the settings popover under the header's
// right edge.
func (c *Calculator) SettingsPosition(header types.Bounds) *types.Point {
	cfg, ok := c.table.Get(types.WindowSettings)
	if !ok {
		return nil
	}
	return &types.Point{
		X: header.Right() - cfg.Width,
		Y: header.Bottom() + c.cfg.SettingsGap,
	}
}

// ShortcutSettingsPosition centers the shortcut editor under the
// header.
func (c *Calculator) ShortcutSettingsPosition(header types.Bounds) *types.Point {
	cfg, ok := c.table.Get(types.WindowShortcutSettings)
	if !ok {
		return nil
	}
	return &types.Point{
		X: header.CenterX() - cfg.Width/2,
		Y: header.Bottom() + c.cfg.SettingsGap,
	}
}

// clampToArea shifts bounds so they sit inside the work area, keeping
// the size intact. Oversized windows pin to the area origin.
func clampToArea(b types.Bounds, area types.Bounds) types.Point {
	p := b.Position()
	if b.Right() > area.Right() {
		p.X = area.Right() - b.Width
	}
	if b.Bottom() > area.Bottom() {
		p.Y = area.Bottom() - b.Height
	}
	if p.X < area.X {
		p.X = area.X
	}
	if p.Y < area.Y {
		p.Y = area.Y
	}
	return p
}
