// Package server composes the windowing core and serves the renderer
// bridge plus the diagnostic API on loopback.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/glintapp/overlay/internal/api/http"
	"github.com/glintapp/overlay/internal/api/middleware"
	"github.com/glintapp/overlay/internal/api/ws"
	"github.com/glintapp/overlay/internal/domain/controller"
	"github.com/glintapp/overlay/internal/domain/focus"
	"github.com/glintapp/overlay/internal/domain/geometry"
	"github.com/glintapp/overlay/internal/domain/motion"
	"github.com/glintapp/overlay/internal/domain/pool"
	"github.com/glintapp/overlay/internal/domain/recovery"
	"github.com/glintapp/overlay/internal/domain/resizer"
	"github.com/glintapp/overlay/internal/domain/state"
	"github.com/glintapp/overlay/internal/infrastructure/config"
	"github.com/glintapp/overlay/internal/infrastructure/logging"
	"github.com/glintapp/overlay/internal/infrastructure/monitoring"
	"github.com/glintapp/overlay/internal/platform"
	"github.com/glintapp/overlay/internal/shared/paths"
	"github.com/glintapp/overlay/internal/shared/types"
)

// Version is stamped at build time.
var Version = "dev"

// Server owns the composed windowing system and its HTTP surface.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	backend platform.Backend

	pool       *pool.Pool
	controller *controller.Controller
	guardian   *focus.Guardian
	recovery   *recovery.Manager
	throttler  *resizer.Throttler
	store      *state.Store
	metrics    *monitoring.Metrics
	crashDir   string

	httpSrv *http.Server
	cancel  context.CancelFunc
}

// New wires the full system against the given platform backend.
// services may be nil when no enhanced features are running.
func New(cfg *config.Config, backend platform.Backend, services recovery.Services) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	table, err := config.LoadWindowTable(cfg.Layout.WindowTablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load window table: %w", err)
	}

	metrics := monitoring.NewMetrics()

	p := pool.New(backend, table, logger.Component("pool")).WithMetrics(metrics)
	calc := geometry.New(backend, table, geometry.Config{
		Padding:     cfg.Layout.Padding,
		EdgeMargin:  cfg.Layout.EdgeMargin,
		Step:        cfg.Layout.Step,
		SettingsGap: cfg.Layout.SettingsGap,
	})
	engine := motion.New(logger.Component("motion"), motion.Config{
		Frame:    cfg.Motion.Frame,
		Duration: cfg.Motion.Duration,
	}).WithMetrics(metrics)

	ctl := controller.New(p, calc, engine, backend, controller.Config{
		SlideOffset: cfg.Layout.SlideOffset,
	}, logger.Component("controller")).WithMetrics(metrics)

	guardian := focus.New(p, backend, focus.Config{
		SettleDelay:  cfg.Focus.Settle,
		RecheckDelay: cfg.Focus.Recheck,
		Aggressive:   cfg.Focus.Aggressive,
	}, logger.Component("focus"))

	crashDir := paths.CrashReportsDir(cfg.Recovery.ReportsDir)
	reports := recovery.NewReportStore(crashDir, Version)
	mgr := recovery.New(p, reports, recovery.Config{
		MaxAttempts:  cfg.Recovery.MaxAttempts,
		RetryDelay:   cfg.Recovery.BackoffBase,
		SnapshotPath: paths.Resolve(cfg.Recovery.RecoveryFile),
	}, logger.Component("recovery")).WithMetrics(metrics)
	if services != nil {
		mgr.WithServices(services)
	}
	if cfg.Telemetry.Enabled {
		mgr.WithUploader(recovery.NewUploader(cfg.Telemetry.URL, logger.Component("telemetry")))
	}
	mgr.OnRecreated(func(name types.WindowName, wasVisible bool) {
		ctl.WindowRecreated(name, wasVisible)
		if name == types.WindowHeader {
			guardian.OnHeaderShown()
		}
	})
	mgr.OnFatal(func(name types.WindowName, crashID, reportPath string) {
		logger.Error("window recovery failed",
			zap.String("window", string(name)),
			zap.String("crash_id", crashID),
			zap.String("report", reportPath))
	})

	// Resize intents coalesce per frame before reaching the
	// controller, so a chatty renderer cannot flood the layout path.
	measurer := resizer.Measurer{MaxHeight: cfg.Layout.MaxContentHeight}
	throttler := resizer.NewThrottler(cfg.Motion.Frame, func(r resizer.Request) {
		ctl.AdjustWindowHeight(r.Window, measurer.Clamp(r.TargetHeight))
	}, logger.Component("resizer")).WithMetrics(metrics)

	store := state.New(state.Config{
		Path:             paths.StateFile(cfg.State.Path),
		AutosaveInterval: cfg.State.AutosaveEvery,
	}, logger.Component("state")).WithMetrics(metrics)

	s := &Server{
		cfg:        cfg,
		log:        logger,
		backend:    backend,
		pool:       p,
		controller: ctl,
		guardian:   guardian,
		recovery:   mgr,
		throttler:  throttler,
		store:      store,
		metrics:    metrics,
		crashDir:   crashDir,
	}
	mgr.OnShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	s.httpSrv = &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: s.router(),
	}
	return s, nil
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.cfg.RateLimit.RequestsPerSecond,
			Burst:             s.cfg.RateLimit.Burst,
		}))
	}

	bridge := ws.NewHandler(bridgeController{
		Controller: s.controller,
		throttler:  s.throttler,
	}, ws.DefaultConfig(), s.log.Component("bridge")).
		WithMetrics(s.metrics)
	router.GET("/ws", bridge.HandleConnection)

	apihttp.NewHandlers(s.pool, s.backend, s.crashDir, Version).
		Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// Run restores persisted state, shows the header, and serves until the
// context is canceled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	persisted, err := s.store.Load()
	if err != nil {
		s.log.Warn("state load failed, starting fresh", zap.Error(err))
		persisted = types.NewAppState()
	}
	var headerState *types.WindowState
	if hs, ok := persisted.WindowStates[types.WindowHeader]; ok {
		headerState = &hs
	}
	s.controller.EnsureHeader(headerState)
	s.guardian.OnHeaderShown()

	go s.store.Autosave(ctx, s.snapshot)
	go s.uptimeLoop(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = s.httpSrv.Shutdown(shutdownCtx)
	}()

	s.log.Info("overlay serving",
		zap.String("addr", s.httpSrv.Addr),
		zap.String("version", Version))
	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown saves state and tears the window system down.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if snap := s.snapshot(); snap != nil {
		if err := s.store.Save(snap); err != nil {
			s.log.Warn("final state save failed", zap.Error(err))
		}
	}
	s.guardian.Close()
	s.recovery.Close()
	s.throttler.Close()
	s.controller.Close()
	s.pool.CloseAll()
	return s.httpSrv.Shutdown(ctx)
}

// Recovery exposes the crash manager so the host runtime can feed
// renderer-gone signals and system events into it.
func (s *Server) Recovery() *recovery.Manager {
	return s.recovery
}

// Guardian exposes the focus guardian for system event wiring.
func (s *Server) Guardian() *focus.Guardian {
	return s.guardian
}

// Controller exposes the window controller for shortcut wiring.
func (s *Server) Controller() *controller.Controller {
	return s.controller
}

// bridgeController routes resize intents through the per-frame
// throttler; every other intent hits the controller directly.
type bridgeController struct {
	*controller.Controller
	throttler *resizer.Throttler
}

func (b bridgeController) AdjustWindowHeight(name types.WindowName, targetHeight int) {
	b.throttler.Submit(name, targetHeight)
}

func (s *Server) snapshot() *types.AppState {
	st := types.NewAppState()
	st.WindowStates = s.pool.Snapshot(func(b types.Bounds) int {
		d, ok := s.backend.DisplayNearest(b)
		if !ok {
			return 0
		}
		return d.ID
	})
	return st
}

func (s *Server) uptimeLoop(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.metrics.UpdateUptime()
		case <-ctx.Done():
			return
		}
	}
}
