// Package controller is the single authority translating external
// intents (renderer bridge, shortcuts, display events) into pool
// mutations via the geometry calculator and motion engine.
//
// All state lives on one run loop goroutine: intents are posted as
// closures and executed in arrival order, which gives the cooperative
// single-threaded scheduling the windowing core is designed around.
// Layout is level-triggered: a newer request for the same window
// supersedes the in-flight animation instead of queuing behind it.
package controller

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/domain/geometry"
	"github.com/glintapp/overlay/internal/domain/motion"
	"github.com/glintapp/overlay/internal/domain/pool"
	"github.com/glintapp/overlay/internal/infrastructure/monitoring"
	"github.com/glintapp/overlay/internal/platform"
	"github.com/glintapp/overlay/internal/shared/types"
)

// phase is the lifecycle state of a feature window.
type phase int

const (
	phaseHidden phase = iota
	phaseAppearing
	phaseVisible
	phaseDisappearing
)

func (p phase) String() string {
	switch p {
	case phaseHidden:
		return "hidden"
	case phaseAppearing:
		return "appearing"
	case phaseVisible:
		return "visible"
	case phaseDisappearing:
		return "disappearing"
	}
	return "unknown"
}

// shown reports whether the phase counts as visible for layout.
func (p phase) shown() bool {
	return p == phaseAppearing || p == phaseVisible
}

// Config tunes the controller.
type Config struct {
	// SlideOffset is the vertical distance of the show/hide slide.
	SlideOffset int
	// HideDebounce delays hover-triggered settings hides so popovers
	// don't flicker.
	HideDebounce time.Duration
}

// DefaultConfig returns the stock controller tuning.
func DefaultConfig() Config {
	return Config{SlideOffset: 20, HideDebounce: 200 * time.Millisecond}
}

// Controller orchestrates the window pool.
type Controller struct {
	pool     *pool.Pool
	calc     *geometry.Calculator
	motion   *motion.Engine
	displays geometry.DisplayProvider
	cfg      Config
	log      *zap.Logger
	metrics  *monitoring.Metrics

	loop      chan func()
	done      chan struct{}
	closeOnce sync.Once

	// Everything below is touched only on the run loop goroutine.
	phases            map[types.WindowName]phase
	hideTimers        map[types.WindowName]*time.Timer
	pinned            map[types.WindowName]bool
	remembered        []types.WindowName
	lastHeaderDisplay *platform.Display
	headerAnimState   string
}

// New creates a controller and starts its run loop.
func New(p *pool.Pool, calc *geometry.Calculator, eng *motion.Engine, displays geometry.DisplayProvider, cfg Config, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SlideOffset == 0 {
		cfg.SlideOffset = DefaultConfig().SlideOffset
	}
	if cfg.HideDebounce == 0 {
		cfg.HideDebounce = DefaultConfig().HideDebounce
	}
	c := &Controller{
		pool:       p,
		calc:       calc,
		motion:     eng,
		displays:   displays,
		cfg:        cfg,
		log:        log,
		loop:       make(chan func(), 64),
		done:       make(chan struct{}),
		phases:     make(map[types.WindowName]phase),
		hideTimers: make(map[types.WindowName]*time.Timer),
		pinned:     make(map[types.WindowName]bool),
	}
	go c.run()
	return c
}

// WithMetrics attaches a metrics collector.
func (c *Controller) WithMetrics(m *monitoring.Metrics) *Controller {
	c.metrics = m
	return c
}

// Close stops the run loop and cancels pending debounce timers.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Controller) run() {
	for {
		select {
		case fn := <-c.loop:
			fn()
		case <-c.done:
			return
		}
	}
}

// post schedules fn on the run loop; dropped after Close.
func (c *Controller) post(fn func()) {
	select {
	case c.loop <- fn:
	case <-c.done:
	}
}

// ---------------------------------------------------------------------------
// Intents

// EnsureHeader creates and shows the header window, restoring its
// persisted bounds when available, otherwise centering it near the
// top of the primary work area.
func (c *Controller) EnsureHeader(restore *types.WindowState) {
	c.post(func() {
		h, ok := c.pool.Live(types.WindowHeader)
		if !ok {
			var err error
			h, err = c.pool.Create(types.WindowHeader)
			if err != nil {
				c.log.Error("header creation failed", zap.Error(err))
				return
			}
		}
		w := h.Window
		if restore != nil {
			w.SetBounds(restore.Bounds)
		} else {
			wa := c.displays.PrimaryDisplay().WorkArea
			b := w.Bounds()
			w.SetPosition(types.Point{
				X: wa.X + (wa.Width-b.Width)/2,
				Y: wa.Y + 21,
			})
		}
		w.ShowInactive()
		w.SetAlwaysOnTop(true, platform.LevelScreenSaver)
		c.cacheHeaderDisplay()
	})
}

// RequestVisibility shows or hides a window by name.
func (c *Controller) RequestVisibility(name types.WindowName, visible bool) {
	c.post(func() {
		switch {
		case name == types.WindowHeader:
			if visible {
				c.showHeader()
			} else {
				c.hideHeader()
			}
		case name.IsFeature():
			if visible {
				c.featureShow(name)
			} else {
				c.featureHide(name)
			}
		case name == types.WindowSettings || name == types.WindowShortcutSettings:
			if visible {
				c.settingsShow(name)
			} else {
				c.settingsHide(name)
			}
		default:
			c.log.Warn("visibility request for unknown window", zap.String("window", string(name)))
		}
	})
}

// ToggleAllWindows hides the whole overlay or brings it back. A nil
// target toggles based on the header's current visibility. Hidden
// feature windows are remembered and restored on the next show.
func (c *Controller) ToggleAllWindows(target *bool) {
	c.post(func() {
		show := !c.pool.Visible(types.WindowHeader)
		if target != nil {
			show = *target
		}
		if show {
			c.showHeader()
			for _, name := range c.remembered {
				c.featureShow(name)
			}
			c.remembered = nil
			return
		}
		c.remembered = c.remembered[:0]
		for _, name := range types.FeatureWindows {
			if c.phases[name].shown() {
				c.remembered = append(c.remembered, name)
				c.featureHide(name)
			}
		}
		for _, name := range []types.WindowName{types.WindowSettings, types.WindowShortcutSettings} {
			c.completeSettingsHide(name)
		}
		c.hideHeader()
	})
}

// MoveStep offsets the header by one step in the given direction and
// carries the feature windows along.
func (c *Controller) MoveStep(dir types.Direction) {
	c.post(func() {
		h, ok := c.pool.Live(types.WindowHeader)
		if !ok {
			return
		}
		hb := h.Window.Bounds()
		target := c.calc.StepMove(hb, dir)
		if target == nil {
			c.skipLayout("move-step")
			return
		}
		dest := hb.WithPosition(*target)
		c.motion.AnimatePosition(h.Window, *target, motion.Options{})
		c.cacheDisplayFor(dest)
		c.relayout("move-step", true, &dest)
	})
}

// MoveToEdge snaps the header against the nearest left or right
// work-area edge.
func (c *Controller) MoveToEdge(dir types.Direction) {
	c.post(func() {
		h, ok := c.pool.Live(types.WindowHeader)
		if !ok {
			return
		}
		hb := h.Window.Bounds()
		target := c.calc.EdgePosition(hb, dir)
		if target == nil {
			c.skipLayout("move-edge")
			return
		}
		dest := hb.WithPosition(*target)
		c.motion.AnimatePosition(h.Window, *target, motion.Options{})
		c.cacheDisplayFor(dest)
		c.relayout("move-edge", true, &dest)
	})
}

// MoveToDisplay relocates the header onto another display, preserving
// its relative position within the work area.
func (c *Controller) MoveToDisplay(displayID int) {
	c.post(func() {
		h, ok := c.pool.Live(types.WindowHeader)
		if !ok {
			return
		}
		hb := h.Window.Bounds()
		target := c.calc.PositionForDisplay(hb, displayID)
		if target == nil {
			c.skipLayout("move-display")
			return
		}
		dest := hb.WithPosition(*target)
		c.motion.AnimatePosition(h.Window, *target, motion.Options{})
		c.cacheDisplayFor(dest)
		c.relayout("move-display", true, &dest)
	})
}

// MoveHeaderTo moves the header to an absolute position, typically
// driven by a renderer-side drag. Drag events arrive continuously, so
// neither the header nor the children animate.
func (c *Controller) MoveHeaderTo(x, y int) {
	c.post(func() {
		h, ok := c.pool.Live(types.WindowHeader)
		if !ok {
			return
		}
		h.Window.SetPosition(types.Point{X: x, Y: y})
		c.cacheHeaderDisplay()
		c.relayout("header-drag", false, nil)
	})
}

// ResizeHeader changes the header size, keeping its center fixed.
func (c *Controller) ResizeHeader(width, height int) {
	c.post(func() {
		h, ok := c.pool.Live(types.WindowHeader)
		if !ok {
			return
		}
		hb := h.Window.Bounds()
		target := c.calc.HeaderResize(hb, types.Size{Width: width, Height: height})
		if target == nil {
			c.skipLayout("header-resize")
			return
		}
		c.motion.AnimateBounds(h.Window, *target, motion.Options{})
		c.cacheDisplayFor(*target)
		c.relayout("header-resize", true, target)
	})
}

// AdjustWindowHeight is the host side of the content-fit resize
// protocol: animate the window to the clamped target height, then
// recompute the sibling layout, since a height change shifts where
// adjacent windows sit when the above strategy is active. Requests
// arriving during an active layout animation are dropped; the
// renderer's throttler re-sends on the next content change.
func (c *Controller) AdjustWindowHeight(name types.WindowName, targetHeight int) {
	c.post(func() {
		if !name.IsFeature() {
			return
		}
		if c.motion.Animating() {
			c.log.Debug("resize dropped, layout animation active",
				zap.String("window", string(name)))
			return
		}
		h, ok := c.pool.Live(name)
		if !ok {
			return
		}
		bounds := c.calc.HeightAdjustment(name, h.Window.Bounds(), targetHeight)
		if bounds == nil {
			c.skipLayout("height-adjust")
			return
		}
		c.motion.AnimateBounds(h.Window, *bounds, motion.Options{
			OnComplete: func() {
				c.post(func() { c.relayout("height-adjust", true, nil) })
			},
		})
	})
}

// HeaderPosition reports the header's current position. ok is false
// when the header does not exist or the controller is shut down.
func (c *Controller) HeaderPosition() (types.Point, bool) {
	type reply struct {
		pos types.Point
		ok  bool
	}
	ch := make(chan reply, 1)
	c.post(func() {
		h, ok := c.pool.Live(types.WindowHeader)
		if !ok {
			ch <- reply{}
			return
		}
		ch <- reply{pos: h.Window.Bounds().Position(), ok: true}
	})
	select {
	case r := <-ch:
		return r.pos, r.ok
	case <-c.done:
		return types.Point{}, false
	}
}

// HeaderAnimationFinished records the renderer-side header animation
// state ("visible" or "hidden").
func (c *Controller) HeaderAnimationFinished(state string) {
	c.post(func() {
		c.headerAnimState = state
		c.log.Debug("header animation finished", zap.String("state", state))
	})
}

// Pin marks a settings window as locked open by an explicit user
// action, suppressing the hover-driven hide debounce.
func (c *Controller) Pin(name types.WindowName, locked bool) {
	c.post(func() {
		c.pinned[name] = locked
	})
}

// OnDisplayRemoved relocates the header when its display disappears
// and snaps all child layouts without animation: the old display's
// coordinate space is gone, so there is nothing to animate through.
func (c *Controller) OnDisplayRemoved(displayID int) {
	c.post(func() {
		h, ok := c.pool.Live(types.WindowHeader)
		if ok && c.lastHeaderDisplay != nil && c.lastHeaderDisplay.ID == displayID {
			hb := h.Window.Bounds()
			src := c.lastHeaderDisplay.WorkArea
			dst := c.displays.PrimaryDisplay().WorkArea
			if src.Width > 0 && src.Height > 0 {
				fx := float64(hb.X-src.X) / float64(src.Width)
				fy := float64(hb.Y-src.Y) / float64(src.Height)
				h.Window.SetPosition(types.Point{
					X: dst.X + int(math.Round(fx*float64(dst.Width))),
					Y: dst.Y + int(math.Round(fy*float64(dst.Height))),
				})
			}
		}
		c.cacheHeaderDisplay()
		c.relayout("display-removed", false, nil)
	})
}

// OnDisplayMetricsChanged recomputes child layouts without animation
// after a resolution or DPI change.
func (c *Controller) OnDisplayMetricsChanged() {
	c.post(func() {
		c.cacheHeaderDisplay()
		c.relayout("display-metrics", false, nil)
	})
}

// WindowRecreated re-wires a window after crash recovery rebuilt it.
// The header is re-shown pinned on top; a feature window that was
// visible before the crash replays its show transition.
func (c *Controller) WindowRecreated(name types.WindowName, wasVisible bool) {
	c.post(func() {
		switch {
		case name == types.WindowHeader:
			c.showHeader()
		case name.IsFeature():
			c.phases[name] = phaseHidden
			if wasVisible {
				c.featureShow(name)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// Feature window state machine

func (c *Controller) featureShow(name types.WindowName) {
	ph := c.phases[name]
	if ph.shown() {
		// Already on screen or inbound: last request wins, just make
		// sure the layout reflects the latest sibling set.
		c.relayout("show", true, nil)
		return
	}

	h, ok := c.pool.Live(name)
	if !ok {
		var err error
		h, err = c.pool.Create(name)
		if err != nil {
			c.log.Error("feature window creation failed",
				zap.String("window", string(name)), zap.Error(err))
			return
		}
	}

	result := c.layoutFor(c.visibilityWith(name, true), nil)
	if result == nil {
		c.skipLayout("show")
		return
	}
	target, ok := result[name]
	if !ok {
		return
	}

	w := h.Window
	if ph == phaseDisappearing {
		// Reversing an exit mid-flight: the window is still on screen,
		// so restart toward the new target from the live values rather
		// than snapping back to the transparent offscreen start.
		c.phases[name] = phaseAppearing
		c.passThroughOthers(name, true)
		c.log.Info("window appearing", zap.String("window", string(name)))
		c.motion.AnimateBounds(w, target, motion.Options{
			OnComplete: func() { c.post(func() { c.finishAppear(name) }) },
		})
		c.motion.Fade(w, 1, motion.Options{})
		c.applySiblings(name, result, true)
		c.countLayout("show")
		return
	}

	start := target
	start.Y -= c.cfg.SlideOffset

	w.SetOpacity(0)
	w.SetBounds(start)
	w.ShowInactive()
	w.SetAlwaysOnTop(true, platform.LevelScreenSaver)
	c.passThroughOthers(name, true)
	c.phases[name] = phaseAppearing
	c.log.Info("window appearing", zap.String("window", string(name)))

	c.motion.AnimateBounds(w, target, motion.Options{
		OnComplete: func() { c.post(func() { c.finishAppear(name) }) },
	})
	c.motion.Fade(w, 1, motion.Options{})

	c.applySiblings(name, result, true)
	c.countLayout("show")
}

func (c *Controller) finishAppear(name types.WindowName) {
	if c.phases[name] != phaseAppearing {
		return
	}
	c.phases[name] = phaseVisible
	c.passThroughOthers(name, false)
	c.log.Debug("window visible", zap.String("window", string(name)))
}

func (c *Controller) featureHide(name types.WindowName) {
	ph := c.phases[name]
	if ph == phaseHidden || ph == phaseDisappearing {
		c.log.Debug("hide request ignored",
			zap.String("window", string(name)), zap.Stringer("phase", ph))
		return
	}
	h, ok := c.pool.Live(name)
	if !ok {
		c.phases[name] = phaseHidden
		c.passThroughOthers(name, false)
		return
	}

	w := h.Window
	current := w.Bounds()
	out := current.Position()
	out.Y -= c.cfg.SlideOffset

	c.phases[name] = phaseDisappearing
	c.log.Info("window disappearing", zap.String("window", string(name)))

	c.motion.Fade(w, 0, motion.Options{
		OnComplete: func() { c.post(func() { c.finishHide(name) }) },
	})
	c.motion.AnimatePosition(w, out, motion.Options{})

	c.relayout("hide", true, nil)
}

func (c *Controller) finishHide(name types.WindowName) {
	if c.phases[name] != phaseDisappearing {
		return
	}
	c.phases[name] = phaseHidden
	// The hide may have interrupted a show before finishAppear ran, so
	// pass-through restoration has to happen on this terminal
	// transition as well.
	c.passThroughOthers(name, false)
	if h, ok := c.pool.Live(name); ok {
		h.Window.SetAlwaysOnTop(false, platform.LevelNormal)
		h.Window.Hide()
	}
	c.log.Debug("window hidden", zap.String("window", string(name)))
}

// ---------------------------------------------------------------------------
// Settings popovers (two-state, debounced hide)

func (c *Controller) settingsShow(name types.WindowName) {
	if timer, ok := c.hideTimers[name]; ok {
		timer.Stop()
		delete(c.hideTimers, name)
	}

	h, ok := c.pool.Live(name)
	if !ok {
		var err error
		h, err = c.pool.Create(name)
		if err != nil {
			c.log.Error("settings window creation failed",
				zap.String("window", string(name)), zap.Error(err))
			return
		}
	}

	header, ok := c.pool.Live(types.WindowHeader)
	if !ok {
		return
	}
	hb := header.Window.Bounds()

	var pos *types.Point
	if name == types.WindowSettings {
		pos = c.calc.SettingsPosition(hb)
	} else {
		pos = c.calc.ShortcutSettingsPosition(hb)
	}
	if pos == nil {
		return
	}

	w := h.Window
	w.SetPosition(*pos)
	w.ShowInactive()
	w.SetAlwaysOnTop(true, platform.LevelFloating)
}

// settingsHide schedules a debounced hide so hover-driven popovers do
// not flicker. A pinned window ignores hover hides entirely.
func (c *Controller) settingsHide(name types.WindowName) {
	if c.pinned[name] {
		return
	}
	if timer, ok := c.hideTimers[name]; ok {
		timer.Stop()
	}
	c.hideTimers[name] = time.AfterFunc(c.cfg.HideDebounce, func() {
		c.post(func() {
			delete(c.hideTimers, name)
			c.completeSettingsHide(name)
		})
	})
}

func (c *Controller) completeSettingsHide(name types.WindowName) {
	if timer, ok := c.hideTimers[name]; ok {
		timer.Stop()
		delete(c.hideTimers, name)
	}
	if h, ok := c.pool.Live(name); ok {
		h.Window.Hide()
	}
}

// ---------------------------------------------------------------------------
// Header visibility

func (c *Controller) showHeader() {
	h, ok := c.pool.Live(types.WindowHeader)
	if !ok {
		var err error
		h, err = c.pool.Create(types.WindowHeader)
		if err != nil {
			c.log.Error("header creation failed", zap.Error(err))
			return
		}
	}
	// A hide fade may still be in flight; cancelling it here drops its
	// pending Hide so the show always wins.
	c.motion.SnapOpacity(h.Window, 1)
	h.Window.ShowInactive()
	h.Window.SetAlwaysOnTop(true, platform.LevelScreenSaver)
	c.cacheHeaderDisplay()
}

func (c *Controller) hideHeader() {
	h, ok := c.pool.Live(types.WindowHeader)
	if !ok {
		return
	}
	w := h.Window
	c.motion.Fade(w, 0, motion.Options{
		OnComplete: func() {
			c.post(func() {
				if h, ok := c.pool.Live(types.WindowHeader); ok {
					h.Window.Hide()
					h.Window.SetOpacity(1)
				}
			})
		},
	})
}

// ---------------------------------------------------------------------------
// Layout plumbing

// visibilityWith returns the feature visibility set with one window's
// state overridden.
func (c *Controller) visibilityWith(name types.WindowName, visible bool) map[types.WindowName]bool {
	vis := c.featureVisibility()
	vis[name] = visible
	return vis
}

func (c *Controller) featureVisibility() map[types.WindowName]bool {
	vis := make(map[types.WindowName]bool, len(types.FeatureWindows))
	for _, name := range types.FeatureWindows {
		vis[name] = c.phases[name].shown()
	}
	return vis
}

// layoutFor runs the calculator over live bounds. Live bounds are
// re-read on every pass so stale cached geometry cannot compound.
func (c *Controller) layoutFor(visibility map[types.WindowName]bool, headerOverride *types.Bounds) types.LayoutResult {
	var hb *types.Bounds
	if h, ok := c.pool.Live(types.WindowHeader); ok {
		b := h.Window.Bounds()
		hb = &b
	}
	current := make(map[types.WindowName]types.Bounds)
	for name, w := range c.pool.LiveWindows() {
		current[name] = w.Bounds()
	}
	req := types.LayoutRequest{Visibility: visibility, HeaderBounds: headerOverride}
	return c.calc.FeatureLayout(req, hb, current)
}

// relayout recomputes and applies the feature layout for the current
// visibility set.
func (c *Controller) relayout(trigger string, animated bool, headerOverride *types.Bounds) {
	result := c.layoutFor(c.featureVisibility(), headerOverride)
	if result == nil {
		c.skipLayout(trigger)
		return
	}
	c.motion.ApplyLayout(c.pool.LiveWindows(), result, animated)
	c.repositionSettings(headerOverride)
	c.countLayout(trigger)
}

// applySiblings applies a layout result to every window except the one
// driving its own transition.
func (c *Controller) applySiblings(except types.WindowName, result types.LayoutResult, animated bool) {
	rest := make(types.LayoutResult, len(result))
	for name, b := range result {
		if name != except {
			rest[name] = b
		}
	}
	c.motion.ApplyLayout(c.pool.LiveWindows(), rest, animated)
}

// repositionSettings keeps visible settings popovers anchored to the
// header as it moves.
func (c *Controller) repositionSettings(headerOverride *types.Bounds) {
	header, ok := c.pool.Live(types.WindowHeader)
	if !ok {
		return
	}
	hb := header.Window.Bounds()
	if headerOverride != nil {
		hb = *headerOverride
	}
	if h, ok := c.pool.Live(types.WindowSettings); ok && h.Window.IsVisible() {
		if pos := c.calc.SettingsPosition(hb); pos != nil {
			h.Window.SetPosition(*pos)
		}
	}
	if h, ok := c.pool.Live(types.WindowShortcutSettings); ok && h.Window.IsVisible() {
		if pos := c.calc.ShortcutSettingsPosition(hb); pos != nil {
			h.Window.SetPosition(*pos)
		}
	}
}

// passThroughOthers toggles mouse pass-through on every window other
// than the one being shown, so overlapping transparent windows cannot
// steal clicks mid-transition.
func (c *Controller) passThroughOthers(except types.WindowName, enabled bool) {
	for name, w := range c.pool.LiveWindows() {
		if name != except {
			w.SetIgnoreMouseEvents(enabled)
		}
	}
}

// cacheHeaderDisplay remembers which display hosts the header so a
// display-removed event can map the header's relative position onto
// the primary even after the source display is gone.
func (c *Controller) cacheHeaderDisplay() {
	h, ok := c.pool.Live(types.WindowHeader)
	if !ok {
		return
	}
	c.cacheDisplayFor(h.Window.Bounds())
}

func (c *Controller) cacheDisplayFor(b types.Bounds) {
	if d, ok := c.displays.DisplayNearest(b); ok {
		c.lastHeaderDisplay = &d
	}
}

func (c *Controller) countLayout(trigger string) {
	if c.metrics != nil {
		c.metrics.LayoutPasses.WithLabelValues(trigger).Inc()
	}
}

func (c *Controller) skipLayout(trigger string) {
	c.log.Debug("layout pass skipped", zap.String("trigger", trigger))
	if c.metrics != nil {
		c.metrics.LayoutSkipped.Inc()
	}
}
