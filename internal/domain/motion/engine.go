// Package motion animates window bounds, positions, and opacity from
// their live values to targets supplied by the geometry calculator.
// Animations never block the caller; frames are ticker-driven. A new
// animation for the same window and property class supersedes the one
// in flight: the old completion callback is dropped and interpolation
// restarts from the current live value, never from the stale target.
package motion

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/infrastructure/monitoring"
	"github.com/glintapp/overlay/internal/platform"
	"github.com/glintapp/overlay/internal/shared/types"
)

// propertyClass partitions animations so geometry and opacity can run
// concurrently on one window, while two geometry animations cannot.
// Position changes are bounds changes with a fixed size, so both share
// the geometry class.
type propertyClass int

const (
	classGeometry propertyClass = iota
	classOpacity
)

type taskKey struct {
	win   platform.Window
	class propertyClass
}

// Options tunes a single animation call.
type Options struct {
	// Duration overrides the engine default when positive.
	Duration time.Duration
	// OnComplete runs after the target is reached. It is never invoked
	// for a superseded animation and never invoked twice.
	OnComplete func()
}

// Config tunes the engine.
type Config struct {
	// Frame is the interval between interpolation frames.
	Frame time.Duration
	// Duration is the default animation length.
	Duration time.Duration
}

// DefaultConfig returns ~60fps frames and a 300ms default duration.
func DefaultConfig() Config {
	return Config{Frame: 16 * time.Millisecond, Duration: 300 * time.Millisecond}
}

// Engine tracks in-flight animations per window so overlapping
// requests cannot race.
type Engine struct {
	cfg     Config
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu    sync.Mutex
	tasks map[taskKey]*task
}

type task struct {
	key      taskKey
	start    frameValue
	target   frameValue
	duration time.Duration
	began    time.Time

	onComplete func()

	// restoreResizable relocks the window after an animated bounds
	// change on a non-resizable window. Ownership transfers to the
	// superseding task so the relock happens at the end of the chain.
	restoreResizable bool

	superseded bool
}

// frameValue is the animatable state of one property class.
type frameValue struct {
	bounds  types.Bounds
	opacity float64
}

// New creates a motion engine.
func New(log *zap.Logger, cfg Config) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Frame <= 0 {
		cfg.Frame = DefaultConfig().Frame
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultConfig().Duration
	}
	return &Engine{cfg: cfg, log: log, tasks: make(map[taskKey]*task)}
}

// WithMetrics attaches a metrics collector.
func (e *Engine) WithMetrics(m *monitoring.Metrics) *Engine {
	e.metrics = m
	return e
}

// Animating reports whether any window is mid-transition. The
// controller uses this to avoid issuing conflicting resize requests
// during an active layout animation.
func (e *Engine) Animating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks) > 0
}

// AnimateBounds animates a window to the target bounds. No-op on a
// destroyed window. Temporarily marks a non-resizable window resizable
// for the duration of the change and restores it on completion, unless
// the window is destroyed mid-animation.
func (e *Engine) AnimateBounds(w platform.Window, target types.Bounds, opts Options) {
	if w == nil || w.IsDestroyed() {
		return
	}
	unlocked := false
	if !w.Resizable() {
		w.SetResizable(true)
		unlocked = true
	}
	e.begin(w, classGeometry, frameValue{bounds: w.Bounds()}, frameValue{bounds: target}, unlocked, opts)
}

// AnimatePosition animates a window to the target position, keeping
// its current size.
func (e *Engine) AnimatePosition(w platform.Window, target types.Point, opts Options) {
	if w == nil || w.IsDestroyed() {
		return
	}
	current := w.Bounds()
	e.begin(w, classGeometry,
		frameValue{bounds: current},
		frameValue{bounds: current.WithPosition(target)},
		false, opts)
}

// Fade animates window opacity to the target value.
func (e *Engine) Fade(w platform.Window, to float64, opts Options) {
	if w == nil || w.IsDestroyed() {
		return
	}
	e.begin(w, classOpacity,
		frameValue{opacity: w.Opacity()},
		frameValue{opacity: to},
		false, opts)
}

// SnapOpacity sets window opacity without animation. The cancel and
// the write happen under one lock, so an in-flight fade can neither
// land a frame nor fire its completion afterwards.
func (e *Engine) SnapOpacity(w platform.Window, to float64) {
	if w == nil || w.IsDestroyed() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	key := taskKey{win: w, class: classOpacity}
	if prev, ok := e.tasks[key]; ok {
		prev.superseded = true
		delete(e.tasks, key)
	}
	w.SetOpacity(to)
}

// ApplyLayout applies a full layout result to the given windows,
// animated or as an instantaneous snap. Windows missing from the map
// or already destroyed are skipped.
func (e *Engine) ApplyLayout(windows map[types.WindowName]platform.Window, result types.LayoutResult, animated bool) {
	for name, bounds := range result {
		w, ok := windows[name]
		if !ok || w == nil || w.IsDestroyed() {
			continue
		}
		if animated {
			e.AnimateBounds(w, bounds, Options{})
			continue
		}
		e.snap(w, bounds)
	}
}

// snap moves a window without animation, honoring the resizable lock.
// The cancel and the write happen under one lock so a superseded frame
// cannot land after the snap.
func (e *Engine) snap(w platform.Window, bounds types.Bounds) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := taskKey{win: w, class: classGeometry}
	if prev, ok := e.tasks[key]; ok {
		prev.superseded = true
		delete(e.tasks, key)
	}
	locked := !w.Resizable()
	if locked {
		w.SetResizable(true)
	}
	w.SetBounds(bounds)
	if locked && !w.IsDestroyed() {
		w.SetResizable(false)
	}
}

// begin registers a task, superseding any in-flight task for the same
// key, and starts its frame loop.
func (e *Engine) begin(w platform.Window, class propertyClass, start, target frameValue, unlocked bool, opts Options) {
	duration := opts.Duration
	if duration <= 0 {
		duration = e.cfg.Duration
	}

	key := taskKey{win: w, class: class}
	t := &task{
		key:              key,
		start:            start,
		target:           target,
		duration:         duration,
		began:            time.Now(),
		onComplete:       opts.OnComplete,
		restoreResizable: unlocked,
	}

	e.mu.Lock()
	if prev, ok := e.tasks[key]; ok {
		prev.superseded = true
		// The relock obligation follows the chain.
		t.restoreResizable = t.restoreResizable || prev.restoreResizable
		if e.metrics != nil {
			e.metrics.AnimationsSuperseded.Inc()
		}
	}
	e.tasks[key] = t
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.AnimationsStarted.Inc()
	}

	go e.run(t)
}

// run drives one task to completion. Each frame is applied under the
// engine lock so a frame can never land after the task was superseded
// or snapped over.
func (e *Engine) run(t *task) {
	ticker := time.NewTicker(e.cfg.Frame)
	defer ticker.Stop()

	for range ticker.C {
		e.mu.Lock()
		if t.superseded {
			e.mu.Unlock()
			return
		}
		if t.key.win.IsDestroyed() {
			// No resizable restoration here: the recovery path rebuilds
			// the window from scratch. The callback stays unfired.
			delete(e.tasks, t.key)
			e.mu.Unlock()
			e.log.Debug("animation dropped, window destroyed")
			return
		}

		progress := float64(time.Since(t.began)) / float64(t.duration)
		done := progress >= 1
		if done {
			progress = 1
		}
		t.apply(easeOutCubic(progress))
		if !done {
			e.mu.Unlock()
			continue
		}

		delete(e.tasks, t.key)
		e.mu.Unlock()

		if t.restoreResizable && !t.key.win.IsDestroyed() {
			t.key.win.SetResizable(false)
		}
		if t.onComplete != nil {
			t.onComplete()
		}
		return
	}
}

// apply writes the interpolated value for the given eased progress.
func (t *task) apply(p float64) {
	switch t.key.class {
	case classGeometry:
		t.key.win.SetBounds(types.Bounds{
			X:      lerp(t.start.bounds.X, t.target.bounds.X, p),
			Y:      lerp(t.start.bounds.Y, t.target.bounds.Y, p),
			Width:  lerp(t.start.bounds.Width, t.target.bounds.Width, p),
			Height: lerp(t.start.bounds.Height, t.target.bounds.Height, p),
		})
	case classOpacity:
		t.key.win.SetOpacity(t.start.opacity + (t.target.opacity-t.start.opacity)*p)
	}
}

func easeOutCubic(p float64) float64 {
	return 1 - math.Pow(1-p, 3)
}

func lerp(from, to int, p float64) int {
	return from + int(math.Round(float64(to-from)*p))
}
