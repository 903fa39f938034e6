// Package state persists application state to disk with a rotating
// backup copy and a periodic autosave loop.
package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/infrastructure/monitoring"
	"github.com/glintapp/overlay/internal/shared/types"
)

// Config tunes the store.
type Config struct {
	// Path is the primary state file.
	Path string
	// AutosaveInterval is the periodic save cadence.
	AutosaveInterval time.Duration
}

// DefaultConfig places the state file next to the executable's data
// dir convention and autosaves every 30 seconds.
func DefaultConfig(dataDir string) Config {
	return Config{
		Path:             filepath.Join(dataDir, "state.json"),
		AutosaveInterval: 30 * time.Second,
	}
}

// Snapshotter produces the state to persist; the store calls it on
// every save so the file always reflects live window geometry.
type Snapshotter func() *types.AppState

// Store owns the state file. All writes funnel through one mutex so
// the primary and its backup can never interleave.
type Store struct {
	cfg     Config
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu sync.Mutex
}

// New creates a store.
func New(cfg Config, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = 30 * time.Second
	}
	return &Store{cfg: cfg, log: log}
}

// WithMetrics attaches a metrics collector.
func (s *Store) WithMetrics(m *monitoring.Metrics) *Store {
	s.metrics = m
	return s
}

func (s *Store) backupPath() string {
	return s.cfg.Path + ".bak"
}

// Save writes the state: the current primary is rotated to the backup
// first, then the new state lands via temp-file rename so a crash
// mid-write can never leave a truncated primary.
func (s *Store) Save(state *types.AppState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.LastSaved = time.Now()
	state.Version = types.StateVersion

	data, err := sonic.ConfigStd.MarshalIndent(state, "", "  ")
	if err != nil {
		s.countError()
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
		s.countError()
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	// Rotate the last good primary into the backup slot.
	if _, err := os.Stat(s.cfg.Path); err == nil {
		if err := copyFile(s.cfg.Path, s.backupPath()); err != nil {
			s.log.Warn("state backup rotation failed", zap.Error(err))
		}
	}

	tmp := s.cfg.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.countError()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp, s.cfg.Path); err != nil {
		s.countError()
		return fmt.Errorf("failed to commit state: %w", err)
	}

	if s.metrics != nil {
		s.metrics.StateSaves.Inc()
	}
	s.log.Debug("state saved", zap.String("path", s.cfg.Path))
	return nil
}

// Load reads the primary state file, falling back to the backup when
// the primary is missing or corrupt. A missing store yields a fresh
// default state, not an error.
func (s *Store) Load() (*types.AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadFile(s.cfg.Path)
	if err == nil {
		return state, nil
	}
	if !os.IsNotExist(err) {
		s.log.Warn("primary state unreadable, trying backup", zap.Error(err))
	}

	state, backupErr := s.loadFile(s.backupPath())
	if backupErr == nil {
		s.log.Info("state restored from backup")
		return state, nil
	}
	if os.IsNotExist(err) && os.IsNotExist(backupErr) {
		return types.NewAppState(), nil
	}
	return nil, fmt.Errorf("failed to load state: %w", err)
}

func (s *Store) loadFile(path string) (*types.AppState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state types.AppState
	if err := sonic.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &state, nil
}

// Autosave periodically persists the snapshot until the context is
// canceled, with one final save on the way out.
func (s *Store) Autosave(ctx context.Context, snapshot Snapshotter) {
	ticker := time.NewTicker(s.cfg.AutosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.saveSnapshot(snapshot)
		case <-ctx.Done():
			s.saveSnapshot(snapshot)
			return
		}
	}
}

func (s *Store) saveSnapshot(snapshot Snapshotter) {
	state := snapshot()
	if state == nil {
		return
	}
	if err := s.Save(state); err != nil {
		s.log.Error("autosave failed", zap.Error(err))
	}
}

func (s *Store) countError() {
	if s.metrics != nil {
		s.metrics.StateSaveErrors.Inc()
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
