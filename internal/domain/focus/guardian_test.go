package focus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/domain/pool"
	"github.com/glintapp/overlay/internal/platform"
	"github.com/glintapp/overlay/internal/platform/headless"
	"github.com/glintapp/overlay/internal/shared/types"
)

func newGuardian(t *testing.T) (*Guardian, *pool.Pool, *headless.Backend) {
	t.Helper()
	backend := headless.New()
	p := pool.New(backend, types.DefaultWindowTable(), zap.NewNop())
	g := New(p, backend, Config{
		SettleDelay:  10 * time.Millisecond,
		RecheckDelay: 5 * time.Millisecond,
		Aggressive:   true,
	}, zap.NewNop())
	t.Cleanup(g.Close)
	return g, p, backend
}

func showHeader(t *testing.T, p *pool.Pool) *headless.Window {
	t.Helper()
	h, err := p.Create(types.WindowHeader)
	require.NoError(t, err)
	h.Window.ShowInactive()
	return h.Window.(*headless.Window)
}

func TestBlurWithExternalFocusStandsDown(t *testing.T) {
	g, p, backend := newGuardian(t)
	w := showHeader(t, p)
	backend.SetFocusedApp(platform.FocusExternal)

	g.OnHeaderBlur()
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, w.FocusCount(), "deliberate app switch must be respected")
}

func TestBlurWithoutExternalTargetReasserts(t *testing.T) {
	g, p, backend := newGuardian(t)
	w := showHeader(t, p)
	backend.SetFocusedApp(platform.FocusUnknown)

	g.OnHeaderBlur()

	require.Eventually(t, func() bool { return w.FocusCount() >= 1 },
		time.Second, time.Millisecond)
	assert.True(t, w.IsAlwaysOnTop())
	assert.Equal(t, platform.LevelScreenSaver, w.TopLevel())

	// The secondary pass lands shortly after the first.
	require.Eventually(t, func() bool { return w.FocusCount() >= 2 },
		time.Second, time.Millisecond)
}

func TestSystemEventGatedOnHeaderVisibility(t *testing.T) {
	g, p, _ := newGuardian(t)
	h, err := p.Create(types.WindowHeader)
	require.NoError(t, err)
	w := h.Window.(*headless.Window)

	g.OnSystemEvent("resume")
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, w.FocusCount(), "hidden header must not be touched")

	w.ShowInactive()
	g.OnSystemEvent("resume")
	require.Eventually(t, func() bool { return w.FocusCount() >= 1 },
		time.Second, time.Millisecond)
}

func TestAggressiveToggleDisablesEverything(t *testing.T) {
	g, p, backend := newGuardian(t)
	w := showHeader(t, p)
	backend.SetFocusedApp(platform.FocusUnknown)

	g.SetAggressive(false)
	g.OnHeaderBlur()
	g.OnSystemEvent("unlock-screen")
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, w.FocusCount())
	assert.False(t, g.Aggressive())
}

func TestFocusFailureFallsBackThenSwallows(t *testing.T) {
	g, p, backend := newGuardian(t)
	w := showHeader(t, p)
	backend.SetFocusedApp(platform.FocusUnknown)
	backend.FailFocus = true

	// Must not panic or surface the error; both attempts were made.
	g.OnSystemEvent("display-metrics-changed")
	time.Sleep(30 * time.Millisecond)
	assert.True(t, w.IsAlwaysOnTop(), "always-on-top still applied on focus failure")
}

func TestBlurSettleRespectsLateAppSwitch(t *testing.T) {
	g, p, backend := newGuardian(t)
	w := showHeader(t, p)
	backend.SetFocusedApp(platform.FocusUnknown)

	g.OnHeaderBlur()
	// The user reaches another app before the settle delay elapses.
	backend.SetFocusedApp(platform.FocusExternal)
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, w.FocusCount())
}
