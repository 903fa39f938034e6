// Package focus keeps the header window on top without fighting the
// user's deliberate focus changes. The heuristics are best-effort and
// isolated behind a single toggle so headless and test environments
// can switch them off without touching the rest of the windowing core.
package focus

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/domain/pool"
	"github.com/glintapp/overlay/internal/platform"
	"github.com/glintapp/overlay/internal/shared/types"
)

// Config tunes the guardian timings.
type Config struct {
	// SettleDelay is the pause after a blur before deciding whether the
	// focus loss was deliberate.
	SettleDelay time.Duration
	// RecheckDelay is the pause before the secondary reassert pass, in
	// case the first silently failed.
	RecheckDelay time.Duration
	// Aggressive enables reassertion. When false the guardian is a
	// pure pass-through and focus loss is never contested.
	Aggressive bool
}

// DefaultConfig returns the stock timings with reassertion enabled.
func DefaultConfig() Config {
	return Config{
		SettleDelay:  500 * time.Millisecond,
		RecheckDelay: 100 * time.Millisecond,
		Aggressive:   true,
	}
}

// Guardian re-asserts always-on-top and focus for the header when an
// external condition (resume, unlock, display change) knocked it off,
// and stands down when the user switched to another application.
type Guardian struct {
	pool    *pool.Pool
	backend platform.Backend
	cfg     Config
	log     *zap.Logger

	mu         sync.Mutex
	aggressive bool
	settle     *time.Timer
	recheck    *time.Timer
	closed     bool
}

// New creates a guardian. It does nothing until events are fed in.
func New(p *pool.Pool, backend platform.Backend, cfg Config, log *zap.Logger) *Guardian {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultConfig().SettleDelay
	}
	if cfg.RecheckDelay <= 0 {
		cfg.RecheckDelay = DefaultConfig().RecheckDelay
	}
	return &Guardian{
		pool:       p,
		backend:    backend,
		cfg:        cfg,
		log:        log,
		aggressive: cfg.Aggressive,
	}
}

// SetAggressive toggles reassertion at runtime.
func (g *Guardian) SetAggressive(on bool) {
	g.mu.Lock()
	g.aggressive = on
	g.mu.Unlock()
	g.log.Info("focus reassertion toggled", zap.Bool("aggressive", on))
}

// Aggressive reports the current toggle state.
func (g *Guardian) Aggressive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.aggressive
}

// Close cancels any pending timers.
func (g *Guardian) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.settle != nil {
		g.settle.Stop()
	}
	if g.recheck != nil {
		g.recheck.Stop()
	}
}

// OnHeaderShown applies maximum always-on-top priority. Called every
// time the header becomes visible and on every focus event.
func (g *Guardian) OnHeaderShown() {
	h, ok := g.pool.Live(types.WindowHeader)
	if !ok {
		return
	}
	h.Window.SetAlwaysOnTop(true, platform.LevelScreenSaver)
}

// OnHeaderBlur waits out the settle delay and reasserts only when the
// focus did not move to an external application.
func (g *Guardian) OnHeaderBlur() {
	g.mu.Lock()
	if !g.aggressive || g.closed {
		g.mu.Unlock()
		return
	}
	if g.settle != nil {
		g.settle.Stop()
	}
	g.settle = time.AfterFunc(g.cfg.SettleDelay, g.decideAfterBlur)
	g.mu.Unlock()
}

func (g *Guardian) decideAfterBlur() {
	if !g.Aggressive() || !g.pool.Visible(types.WindowHeader) {
		return
	}
	if g.backend.FocusedApp() == platform.FocusExternal {
		// The user switched apps on purpose. Respect it.
		g.log.Debug("focus moved to external app, standing down")
		return
	}
	g.reassert()
}

// OnSystemEvent runs the recovery routine for resume-from-sleep,
// unlock-screen, display-metrics-changed, and app-activate. Gated on
// header visibility.
func (g *Guardian) OnSystemEvent(event string) {
	if !g.Aggressive() || !g.pool.Visible(types.WindowHeader) {
		return
	}
	g.log.Debug("reasserting after system event", zap.String("event", event))
	g.reassert()
}

// reassert re-applies always-on-top and refocuses, with a secondary
// pass shortly after in case the first attempt silently failed.
func (g *Guardian) reassert() {
	g.applyOnce()

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	if g.recheck != nil {
		g.recheck.Stop()
	}
	g.recheck = time.AfterFunc(g.cfg.RecheckDelay, func() {
		if g.Aggressive() && g.pool.Visible(types.WindowHeader) {
			g.applyOnce()
		}
	})
	g.mu.Unlock()
}

// applyOnce is one best-effort reassertion pass. Focus can be denied
// by the platform; failures get one plain retry and are then
// swallowed.
func (g *Guardian) applyOnce() {
	h, ok := g.pool.Live(types.WindowHeader)
	if !ok {
		return
	}
	w := h.Window
	w.SetAlwaysOnTop(true, platform.LevelScreenSaver)
	if err := w.Focus(); err != nil {
		if err := w.Focus(); err != nil {
			g.log.Debug("focus restore failed", zap.Error(err))
		}
	}
}
