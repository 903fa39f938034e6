// Package recovery detects dead renderer windows, preserves
// best-effort state, and rebuilds windows under a bounded retry
// policy. Only the recovery manager and the window controller mutate
// the pool.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/domain/pool"
	"github.com/glintapp/overlay/internal/infrastructure/monitoring"
	"github.com/glintapp/overlay/internal/shared/types"
)

// Services exposes the enhanced-feature service state the manager
// snapshots on crash and restores after the ask window is rebuilt.
type Services interface {
	Snapshot() map[string]any
	Restore(map[string]any)
}

// Config tunes the retry policy.
type Config struct {
	// MaxAttempts caps automatic recovery per window.
	MaxAttempts int
	// RetryDelay is multiplied by the attempt number, so retries back
	// off linearly instead of hammering a crash loop.
	RetryDelay time.Duration
	// SnapshotPath is the emergency services snapshot file.
	SnapshotPath string
}

// DefaultConfig returns the stock bounded-retry policy.
func DefaultConfig(dataDir string) Config {
	return Config{
		MaxAttempts:  3,
		RetryDelay:   time.Second,
		SnapshotPath: filepath.Join(dataDir, "recovery.json"),
	}
}

// Manager owns crash handling for the window pool.
type Manager struct {
	pool     *pool.Pool
	reports  *ReportStore
	uploader *Uploader
	services Services
	cfg      Config
	log      *zap.Logger
	metrics  *monitoring.Metrics

	// recreated tells the controller a window came back so it can
	// re-apply visibility and layout.
	recreated func(name types.WindowName, wasVisible bool)
	// fatal shows the give-up dialog naming the crash id and report
	// location. Fired at most once per window per process lifetime.
	fatal func(name types.WindowName, crashID, reportPath string)
	// shutdown runs the graceful-exit path after an uncaught host
	// exception.
	shutdown func()

	mu        sync.Mutex
	attempts  map[types.WindowName]int
	gaveUp    map[types.WindowName]bool
	timers    map[types.WindowName]*time.Timer
	startedAt time.Time
	closed    bool
}

// New creates a manager. The recreated, fatal, and shutdown hooks may
// be nil.
func New(p *pool.Pool, reports *ReportStore, cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Manager{
		pool:      p,
		reports:   reports,
		cfg:       cfg,
		log:       log,
		attempts:  make(map[types.WindowName]int),
		gaveUp:    make(map[types.WindowName]bool),
		timers:    make(map[types.WindowName]*time.Timer),
		startedAt: time.Now(),
	}
}

// WithUploader attaches a telemetry uploader.
func (m *Manager) WithUploader(u *Uploader) *Manager {
	m.uploader = u
	return m
}

// WithServices attaches the enhanced-services snapshot source.
func (m *Manager) WithServices(s Services) *Manager {
	m.services = s
	return m
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(mm *monitoring.Metrics) *Manager {
	m.metrics = mm
	return m
}

// OnRecreated registers the controller hook.
func (m *Manager) OnRecreated(fn func(name types.WindowName, wasVisible bool)) {
	m.recreated = fn
}

// OnFatal registers the give-up dialog hook.
func (m *Manager) OnFatal(fn func(name types.WindowName, crashID, reportPath string)) {
	m.fatal = fn
}

// OnShutdown registers the graceful-exit hook.
func (m *Manager) OnShutdown(fn func()) {
	m.shutdown = fn
}

// Close cancels pending recovery timers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for _, t := range m.timers {
		t.Stop()
	}
}

// RendererGone handles a renderer-process-gone signal for one window:
// crash report, emergency snapshot, then a bounded recreation attempt.
func (m *Manager) RendererGone(name types.WindowName, details error) {
	if details == nil {
		details = errors.New("renderer process gone")
	}
	wasVisible := m.pool.LastVisible(name)

	report := m.report(types.CrashRendererGone, details, "")
	m.saveEmergencySnapshot()
	m.countCrash(types.CrashRendererGone)

	m.log.Error("renderer gone",
		zap.String("window", string(name)),
		zap.String("crash_id", report.ID),
		zap.Error(details))

	m.schedule(name, wasVisible, report.ID)
}

// UncaughtException handles a fatal host-process error: report, save
// what can be saved, then hand off to the graceful shutdown path.
func (m *Manager) UncaughtException(cause error, stack string) {
	report := m.report(types.CrashUncaughtException, cause, stack)
	m.saveEmergencySnapshot()
	m.countCrash(types.CrashUncaughtException)

	m.log.Error("uncaught exception, shutting down",
		zap.String("crash_id", report.ID), zap.Error(cause))

	if m.shutdown != nil {
		m.shutdown()
	}
}

// BackgroundError handles an unhandled async failure: reported and
// logged, but the process continues.
func (m *Manager) BackgroundError(cause error) {
	report := m.report(types.CrashUnhandledRejected, cause, "")
	m.countCrash(types.CrashUnhandledRejected)
	m.log.Warn("unhandled background error",
		zap.String("crash_id", report.ID), zap.Error(cause))
}

// HandlePanic converts a goroutine panic into the fatal path. Use as
// `defer m.HandlePanic()` at the top of long-lived goroutines.
func (m *Manager) HandlePanic() {
	if r := recover(); r != nil {
		m.UncaughtException(fmt.Errorf("panic: %v", r), string(debug.Stack()))
	}
}

// schedule books the next recreation attempt, or gives up once the
// cap is hit.
func (m *Manager) schedule(name types.WindowName, wasVisible bool, crashID string) {
	m.mu.Lock()
	if m.closed || m.gaveUp[name] {
		m.mu.Unlock()
		return
	}
	m.attempts[name]++
	attempt := m.attempts[name]
	if attempt > m.cfg.MaxAttempts {
		m.gaveUp[name] = true
		m.mu.Unlock()
		m.giveUp(name, crashID)
		return
	}
	delay := time.Duration(attempt) * m.cfg.RetryDelay
	if prev, ok := m.timers[name]; ok {
		prev.Stop()
	}
	m.timers[name] = time.AfterFunc(delay, func() {
		m.recreate(name, wasVisible, crashID, attempt)
	})
	m.mu.Unlock()

	m.log.Info("recovery scheduled",
		zap.String("window", string(name)),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))
	if m.metrics != nil {
		m.metrics.RecoveryAttempts.WithLabelValues(string(name)).Inc()
	}
}

// recreate rebuilds the window from the static type table. Success
// resets the attempt counter; failure re-enters the retry policy.
func (m *Manager) recreate(name types.WindowName, wasVisible bool, crashID string, attempt int) {
	m.pool.Remove(name)
	_, err := m.pool.Create(name)
	if err != nil {
		m.log.Error("recovery attempt failed",
			zap.String("window", string(name)),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if m.metrics != nil {
			m.metrics.RecoveryFailures.WithLabelValues(string(name)).Inc()
		}
		m.schedule(name, wasVisible, crashID)
		return
	}

	m.mu.Lock()
	m.attempts[name] = 0
	delete(m.timers, name)
	m.mu.Unlock()

	if name == types.WindowAsk && m.services != nil {
		m.restoreEmergencySnapshot()
	}
	if m.recreated != nil {
		m.recreated(name, wasVisible)
	}
	m.log.Info("window recovered",
		zap.String("window", string(name)),
		zap.Int("attempt", attempt))
}

func (m *Manager) giveUp(name types.WindowName, crashID string) {
	path := ""
	if m.reports != nil {
		path = m.reports.Path(crashID)
	}
	m.log.Error("recovery cap exceeded, giving up",
		zap.String("window", string(name)),
		zap.String("crash_id", crashID),
		zap.String("report", path))
	if m.fatal != nil {
		m.fatal(name, crashID, path)
	}
}

// report writes the crash report and ships it in the background. The
// report is returned even when the disk write failed, so callers still
// have the crash id.
func (m *Manager) report(kind string, cause error, stack string) *types.CrashReport {
	if m.reports == nil {
		return &types.CrashReport{Type: kind}
	}
	report, err := m.reports.Write(kind, cause, stack, m.startedAt)
	if err != nil {
		m.log.Warn("crash report write failed", zap.Error(err))
	}
	if m.uploader != nil {
		go m.uploader.Upload(context.Background(), report)
	}
	return report
}

func (m *Manager) countCrash(kind string) {
	if m.metrics != nil {
		m.metrics.CrashesTotal.WithLabelValues(kind).Inc()
	}
}

// saveEmergencySnapshot dumps the enhanced-services state so an ask
// window rebuild does not lose in-progress feature state.
func (m *Manager) saveEmergencySnapshot() {
	if m.services == nil || m.cfg.SnapshotPath == "" {
		return
	}
	snap := m.services.Snapshot()
	data, err := sonic.Marshal(snap)
	if err != nil {
		m.log.Warn("emergency snapshot marshal failed", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.SnapshotPath), 0o755); err != nil {
		m.log.Warn("emergency snapshot dir failed", zap.Error(err))
		return
	}
	if err := os.WriteFile(m.cfg.SnapshotPath, data, 0o644); err != nil {
		m.log.Warn("emergency snapshot write failed", zap.Error(err))
	}
}

func (m *Manager) restoreEmergencySnapshot() {
	data, err := os.ReadFile(m.cfg.SnapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Warn("emergency snapshot read failed", zap.Error(err))
		}
		return
	}
	var snap map[string]any
	if err := sonic.Unmarshal(data, &snap); err != nil {
		m.log.Warn("emergency snapshot parse failed", zap.Error(err))
		return
	}
	m.services.Restore(snap)
	m.log.Info("enhanced services restored from emergency snapshot")
}
