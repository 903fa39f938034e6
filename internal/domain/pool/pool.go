// Package pool owns the identity-keyed registry of live window
// handles. It is the single source of truth for window identity: all
// other components borrow handles by name per call and must re-check
// liveness before acting, since a window can be destroyed and
// recreated under the same name at any asynchronous boundary.
package pool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/infrastructure/monitoring"
	"github.com/glintapp/overlay/internal/platform"
	"github.com/glintapp/overlay/internal/shared/types"
)

var (
	// ErrAlreadyExists is returned when a live handle for the name is
	// still registered.
	ErrAlreadyExists = errors.New("pool: live window already registered")
	// ErrUnknownWindow is returned for names missing from the type
	// table.
	ErrUnknownWindow = errors.New("pool: unknown window type")
)

// Handle pairs a window name with its live OS window. The instance ID
// changes on every recreation so stale borrows can be detected.
type Handle struct {
	ID        uuid.UUID
	Name      types.WindowName
	Window    platform.Window
	CreatedAt time.Time
}

// Destroyed reports whether the underlying window is gone.
func (h *Handle) Destroyed() bool {
	return h == nil || h.Window == nil || h.Window.IsDestroyed()
}

// Pool is the registry of live windows, at most one per name.
type Pool struct {
	backend platform.Backend
	table   types.WindowTable
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	windows map[types.WindowName]*Handle
}

// New creates an empty pool backed by the given platform.
func New(backend platform.Backend, table types.WindowTable, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		backend: backend,
		table:   table,
		log:     log,
		windows: make(map[types.WindowName]*Handle),
	}
}

// WithMetrics attaches a metrics collector.
func (p *Pool) WithMetrics(m *monitoring.Metrics) *Pool {
	p.metrics = m
	return p
}

// Create builds a window from the static type table and registers it.
// A destroyed handle under the same name is removed first; a live one
// is an error.
func (p *Pool) Create(name types.WindowName) (*Handle, error) {
	cfg, ok := p.table.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWindow, name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.windows[name]; ok {
		if !existing.Destroyed() {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		}
		delete(p.windows, name)
	}

	win, err := p.backend.CreateWindow(cfg)
	if err != nil {
		return nil, fmt.Errorf("create window %s: %w", name, err)
	}

	h := &Handle{
		ID:        uuid.New(),
		Name:      name,
		Window:    win,
		CreatedAt: time.Now(),
	}
	p.windows[name] = h
	if p.metrics != nil {
		p.metrics.WindowsCreated.WithLabelValues(string(name)).Inc()
	}
	p.log.Info("window created",
		zap.String("window", string(name)),
		zap.String("instance", h.ID.String()),
	)
	return h, nil
}

// Get borrows the handle for a name. The second return is false when
// no handle is registered. Callers must not retain the handle across
// asynchronous boundaries.
func (p *Pool) Get(name types.WindowName) (*Handle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.windows[name]
	return h, ok
}

// Live borrows the handle only when the underlying window is not
// destroyed.
func (p *Pool) Live(name types.WindowName) (*Handle, bool) {
	h, ok := p.Get(name)
	if !ok || h.Destroyed() {
		return nil, false
	}
	return h, true
}

// Visible reports whether a live window with the name is visible.
func (p *Pool) Visible(name types.WindowName) bool {
	h, ok := p.Live(name)
	return ok && h.Window.IsVisible()
}

// LastVisible reports the window's last-known visibility, even when
// the handle is already dead. Crash recovery reads it to decide
// whether a recreated window should be re-shown; by the time the
// crash signal arrives the window has already been torn down.
func (p *Pool) LastVisible(name types.WindowName) bool {
	h, ok := p.Get(name)
	return ok && h.Window != nil && h.Window.IsVisible()
}

// Destroyed reports whether the name maps to a dead handle. Unknown
// names report false; they were never created.
func (p *Pool) Destroyed(name types.WindowName) bool {
	h, ok := p.Get(name)
	return ok && h.Destroyed()
}

// Remove destroys the window (if still alive) and drops the handle.
func (p *Pool) Remove(name types.WindowName) {
	p.mu.Lock()
	h, ok := p.windows[name]
	if ok {
		delete(p.windows, name)
	}
	p.mu.Unlock()

	if ok && !h.Destroyed() {
		h.Window.Destroy()
	}
	if ok {
		if p.metrics != nil {
			p.metrics.WindowsDestroyed.WithLabelValues(string(name)).Inc()
		}
		p.log.Info("window removed", zap.String("window", string(name)))
	}
}

// Forget drops the handle without touching the window; used by crash
// recovery when the OS window is already gone.
func (p *Pool) Forget(name types.WindowName) {
	p.mu.Lock()
	delete(p.windows, name)
	p.mu.Unlock()
}

// Names returns the registered window names.
func (p *Pool) Names() []types.WindowName {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]types.WindowName, 0, len(p.windows))
	for name := range p.windows {
		names = append(names, name)
	}
	return names
}

// LiveWindows returns a name-to-window map of the live handles; the
// motion engine applies layout results through it.
func (p *Pool) LiveWindows() map[types.WindowName]platform.Window {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[types.WindowName]platform.Window, len(p.windows))
	for name, h := range p.windows {
		if !h.Destroyed() {
			out[name] = h.Window
		}
	}
	return out
}

// Snapshot captures the bounds of every live window for persistence.
func (p *Pool) Snapshot(displayOf func(types.Bounds) int) map[types.WindowName]types.WindowState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	now := time.Now()
	out := make(map[types.WindowName]types.WindowState, len(p.windows))
	for name, h := range p.windows {
		if h.Destroyed() {
			continue
		}
		b := h.Window.Bounds()
		state := types.WindowState{Bounds: b, Visible: h.Window.IsVisible(), LastSaved: now}
		if displayOf != nil {
			state.DisplayID = displayOf(b)
		}
		out[name] = state
	}
	return out
}

// CloseAll destroys every window; used on shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	handles := make([]*Handle, 0, len(p.windows))
	for _, h := range p.windows {
		handles = append(handles, h)
	}
	p.windows = make(map[types.WindowName]*Handle)
	p.mu.Unlock()

	for _, h := range handles {
		if !h.Destroyed() {
			h.Window.Destroy()
		}
	}
}
