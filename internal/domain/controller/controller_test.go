package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/domain/geometry"
	"github.com/glintapp/overlay/internal/domain/motion"
	"github.com/glintapp/overlay/internal/domain/pool"
	"github.com/glintapp/overlay/internal/platform"
	"github.com/glintapp/overlay/internal/platform/headless"
	"github.com/glintapp/overlay/internal/shared/types"
)

type fixture struct {
	backend *headless.Backend
	pool    *pool.Pool
	ctl     *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := headless.New()
	table := types.DefaultWindowTable()
	p := pool.New(backend, table, zap.NewNop())
	calc := geometry.New(backend, table, geometry.DefaultConfig())
	eng := motion.New(zap.NewNop(), motion.Config{
		Frame:    time.Millisecond,
		Duration: 15 * time.Millisecond,
	})
	ctl := New(p, calc, eng, backend, Config{
		SlideOffset:  20,
		HideDebounce: 30 * time.Millisecond,
	}, zap.NewNop())
	t.Cleanup(ctl.Close)
	return &fixture{backend: backend, pool: p, ctl: ctl}
}

func (f *fixture) waitVisible(t *testing.T, name types.WindowName, want bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.pool.Visible(name) == want
	}, time.Second, 2*time.Millisecond)
}

func (f *fixture) headlessWindow(t *testing.T, name types.WindowName) *headless.Window {
	t.Helper()
	h, ok := f.pool.Live(name)
	require.True(t, ok, "window %s not live", name)
	return h.Window.(*headless.Window)
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		done := make(chan struct{})
		f.ctl.post(func() { close(done) })
		select {
		case <-done:
		case <-time.After(time.Second):
			return false
		}
		return !f.ctl.motion.Animating()
	}, 2*time.Second, 2*time.Millisecond)
}

func TestEnsureHeaderCentersOnPrimary(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)

	w := f.headlessWindow(t, types.WindowHeader)
	wa := f.backend.PrimaryDisplay().WorkArea
	b := w.Bounds()
	assert.Equal(t, wa.X+(wa.Width-b.Width)/2, b.X)
	assert.Equal(t, wa.Y+21, b.Y)
	assert.True(t, w.IsAlwaysOnTop())
	assert.Equal(t, platform.LevelScreenSaver, w.TopLevel())
}

func TestEnsureHeaderRestoresPersistedBounds(t *testing.T) {
	f := newFixture(t)
	saved := types.Bounds{X: 300, Y: 150, Width: 650, Height: 47}
	f.ctl.EnsureHeader(&types.WindowState{Bounds: saved, Visible: true})
	f.waitVisible(t, types.WindowHeader, true)
	assert.Equal(t, saved, f.headlessWindow(t, types.WindowHeader).Bounds())
}

func TestShowCreatesAndPlacesFeatureWindow(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)

	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.waitVisible(t, types.WindowAsk, true)
	f.settle(t)

	header := f.headlessWindow(t, types.WindowHeader).Bounds()
	ask := f.headlessWindow(t, types.WindowAsk)
	b := ask.Bounds()
	// Header sits near the top so the window lands below, centered on
	// the header, one padding away.
	assert.Equal(t, header.CenterX(), b.CenterX())
	assert.Equal(t, header.Bottom()+8, b.Y)
	assert.InDelta(t, 1.0, ask.Opacity(), 0.001)
	assert.Equal(t, platform.LevelScreenSaver, ask.TopLevel())
}

func TestShowRestoresMousePassThrough(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)

	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.waitVisible(t, types.WindowAsk, true)
	f.settle(t)

	// Once the transition lands every other window takes mouse input
	// again.
	assert.False(t, f.headlessWindow(t, types.WindowHeader).IgnoresMouseEvents())
}

func TestHideFadesOutAndHides(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.waitVisible(t, types.WindowAsk, true)
	f.settle(t)

	f.ctl.RequestVisibility(types.WindowAsk, false)
	f.waitVisible(t, types.WindowAsk, false)

	w := f.headlessWindow(t, types.WindowAsk)
	assert.False(t, w.IsVisible())
	assert.False(t, w.IsDestroyed(), "hide keeps the window pooled")
}

func TestHideDuringShowSupersedes(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)

	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.ctl.RequestVisibility(types.WindowAsk, false)
	f.waitVisible(t, types.WindowAsk, false)
	f.settle(t)
	assert.False(t, f.headlessWindow(t, types.WindowAsk).IsVisible())
}

func TestHideDuringShowRestoresMousePassThrough(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)
	f.settle(t)

	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.ctl.RequestVisibility(types.WindowAsk, false)
	f.waitVisible(t, types.WindowAsk, false)
	f.settle(t)

	// The interrupted show never reached its completion, so the hide's
	// terminal transition must hand mouse events back.
	assert.False(t, f.headlessWindow(t, types.WindowHeader).IgnoresMouseEvents())
}

func TestShowHeaderDuringHideFadeWins(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)
	f.settle(t)

	f.ctl.RequestVisibility(types.WindowHeader, false)
	f.ctl.RequestVisibility(types.WindowHeader, true)
	f.settle(t)

	w := f.headlessWindow(t, types.WindowHeader)
	assert.True(t, w.IsVisible(), "later show must win over the in-flight hide")
	assert.InDelta(t, 1.0, w.Opacity(), 0.001)
}

func TestShowDuringHideReversesFromLiveValues(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)
	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.waitVisible(t, types.WindowAsk, true)
	f.settle(t)

	w := f.headlessWindow(t, types.WindowAsk)
	target := w.Bounds()

	var midOpacity float64
	var midVisible bool
	done := make(chan struct{})
	f.ctl.post(func() {
		f.ctl.featureHide(types.WindowAsk)
		f.ctl.featureShow(types.WindowAsk)
		midOpacity = w.Opacity()
		midVisible = w.IsVisible()
		close(done)
	})
	<-done

	assert.True(t, midVisible, "window must stay on screen through the reversal")
	assert.Greater(t, midOpacity, 0.1, "reversal must not reset opacity to the hidden start")

	f.settle(t)
	assert.True(t, f.pool.Visible(types.WindowAsk))
	assert.InDelta(t, 1.0, w.Opacity(), 0.001)
	assert.Equal(t, target, w.Bounds())
}

func TestSiblingsShareHeaderWithPadding(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.ctl.RequestVisibility(types.WindowListen, true)
	f.waitVisible(t, types.WindowAsk, true)
	f.waitVisible(t, types.WindowListen, true)
	f.settle(t)

	ask := f.headlessWindow(t, types.WindowAsk).Bounds()
	listen := f.headlessWindow(t, types.WindowListen).Bounds()
	assert.False(t, ask.Intersects(listen), "siblings must not overlap")
	if ask.X < listen.X {
		assert.Equal(t, ask.Right()+8, listen.X)
	} else {
		assert.Equal(t, listen.Right()+8, ask.X)
	}
}

func TestToggleAllRemembersFeatureWindows(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.waitVisible(t, types.WindowAsk, true)
	f.settle(t)

	f.ctl.ToggleAllWindows(nil)
	f.waitVisible(t, types.WindowHeader, false)
	f.waitVisible(t, types.WindowAsk, false)

	f.ctl.ToggleAllWindows(nil)
	f.waitVisible(t, types.WindowHeader, true)
	f.waitVisible(t, types.WindowAsk, true)
}

func TestToggleAllExplicitTarget(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)

	hide := false
	f.ctl.ToggleAllWindows(&hide)
	f.waitVisible(t, types.WindowHeader, false)

	// Hiding again is a no-op, not a toggle.
	f.ctl.ToggleAllWindows(&hide)
	f.settle(t)
	assert.False(t, f.pool.Visible(types.WindowHeader))
}

func TestMoveStepCarriesChildren(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.waitVisible(t, types.WindowAsk, true)
	f.settle(t)

	before := f.headlessWindow(t, types.WindowHeader).Bounds()
	f.ctl.MoveStep(types.DirectionRight)
	f.settle(t)

	header := f.headlessWindow(t, types.WindowHeader).Bounds()
	assert.Equal(t, before.X+80, header.X)
	ask := f.headlessWindow(t, types.WindowAsk).Bounds()
	assert.Equal(t, header.CenterX(), ask.CenterX())
}

func TestMoveToEdgeSnapsWithMargin(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)

	f.ctl.MoveToEdge(types.DirectionLeft)
	f.settle(t)

	wa := f.backend.PrimaryDisplay().WorkArea
	assert.Equal(t, wa.X+20, f.headlessWindow(t, types.WindowHeader).Bounds().X)
}

func TestMoveHeaderToSnapsWithoutAnimation(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.waitVisible(t, types.WindowAsk, true)
	f.settle(t)

	f.ctl.MoveHeaderTo(400, 120)
	f.settle(t)

	header := f.headlessWindow(t, types.WindowHeader).Bounds()
	assert.Equal(t, 400, header.X)
	assert.Equal(t, 120, header.Y)
	ask := f.headlessWindow(t, types.WindowAsk).Bounds()
	assert.Equal(t, header.CenterX(), ask.CenterX())
}

func TestResizeHeaderKeepsCenter(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)
	f.settle(t)

	before := f.headlessWindow(t, types.WindowHeader).Bounds()
	f.ctl.ResizeHeader(before.Width+100, before.Height)
	f.settle(t)

	after := f.headlessWindow(t, types.WindowHeader).Bounds()
	assert.Equal(t, before.Width+100, after.Width)
	assert.Equal(t, before.CenterX(), after.CenterX())
}

func TestAdjustWindowHeightClampsAndRelays(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.waitVisible(t, types.WindowAsk, true)
	f.settle(t)

	f.ctl.AdjustWindowHeight(types.WindowAsk, 5000)
	f.settle(t)
	assert.Equal(t, 700, f.headlessWindow(t, types.WindowAsk).Bounds().Height)

	f.ctl.AdjustWindowHeight(types.WindowAsk, 10)
	f.settle(t)
	assert.Equal(t, 200, f.headlessWindow(t, types.WindowAsk).Bounds().Height)
}

func TestAdjustWindowHeightIgnoresNonFeature(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)
	before := f.headlessWindow(t, types.WindowHeader).Bounds()

	f.ctl.AdjustWindowHeight(types.WindowHeader, 500)
	f.settle(t)
	assert.Equal(t, before.Height, f.headlessWindow(t, types.WindowHeader).Bounds().Height)
}

func TestHeaderPositionQuery(t *testing.T) {
	f := newFixture(t)

	_, ok := f.ctl.HeaderPosition()
	assert.False(t, ok, "no header yet")

	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)

	pos, ok := f.ctl.HeaderPosition()
	require.True(t, ok)
	assert.Equal(t, f.headlessWindow(t, types.WindowHeader).Bounds().Position(), pos)
}

func TestSettingsShowAnchorsToHeader(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.ctl.RequestVisibility(types.WindowSettings, true)
	f.waitVisible(t, types.WindowSettings, true)

	header := f.headlessWindow(t, types.WindowHeader).Bounds()
	s := f.headlessWindow(t, types.WindowSettings)
	b := s.Bounds()
	assert.Equal(t, header.Right()-b.Width, b.X)
	assert.Equal(t, header.Bottom()+8, b.Y)
	assert.Equal(t, platform.LevelFloating, s.TopLevel())
}

func TestSettingsHideIsDebounced(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.ctl.RequestVisibility(types.WindowSettings, true)
	f.waitVisible(t, types.WindowSettings, true)

	f.ctl.RequestVisibility(types.WindowSettings, false)
	f.settle(t)
	assert.True(t, f.pool.Visible(types.WindowSettings), "hide must wait out the debounce")

	f.waitVisible(t, types.WindowSettings, false)
}

func TestSettingsShowCancelsPendingHide(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.ctl.RequestVisibility(types.WindowSettings, true)
	f.waitVisible(t, types.WindowSettings, true)

	f.ctl.RequestVisibility(types.WindowSettings, false)
	f.ctl.RequestVisibility(types.WindowSettings, true)

	time.Sleep(100 * time.Millisecond)
	assert.True(t, f.pool.Visible(types.WindowSettings))
}

func TestPinnedSettingsIgnoreHoverHide(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.ctl.RequestVisibility(types.WindowSettings, true)
	f.waitVisible(t, types.WindowSettings, true)

	f.ctl.Pin(types.WindowSettings, true)
	f.ctl.RequestVisibility(types.WindowSettings, false)

	time.Sleep(100 * time.Millisecond)
	assert.True(t, f.pool.Visible(types.WindowSettings))
}

func TestDisplayRemovedRelocatesHeaderToPrimary(t *testing.T) {
	f := newFixture(t)
	primary := platform.Display{
		ID:       1,
		Bounds:   types.Bounds{Width: 1920, Height: 1080},
		WorkArea: types.Bounds{Width: 1920, Height: 1040},
		Primary:  true,
		Scale:    1,
	}
	second := platform.Display{
		ID:       2,
		Bounds:   types.Bounds{X: 1920, Width: 1920, Height: 1080},
		WorkArea: types.Bounds{X: 1920, Width: 1920, Height: 1040},
		Scale:    1,
	}
	f.backend.SetDisplays([]platform.Display{primary, second})

	f.ctl.EnsureHeader(nil)
	f.waitVisible(t, types.WindowHeader, true)
	f.ctl.MoveToDisplay(2)
	f.settle(t)

	before := f.headlessWindow(t, types.WindowHeader).Bounds()
	require.GreaterOrEqual(t, before.X, 1920, "header should be on the second display")

	f.backend.SetDisplays([]platform.Display{primary})
	f.ctl.OnDisplayRemoved(2)
	f.settle(t)

	after := f.headlessWindow(t, types.WindowHeader).Bounds()
	assert.Less(t, after.X, 1920, "header must land on the primary")
	// Relative work-area offset is preserved across the move.
	assert.Equal(t, before.X-1920, after.X)
	assert.Equal(t, before.Y, after.Y)
}

func TestWindowRecreatedReplaysShow(t *testing.T) {
	f := newFixture(t)
	f.ctl.EnsureHeader(nil)
	f.ctl.RequestVisibility(types.WindowAsk, true)
	f.waitVisible(t, types.WindowAsk, true)
	f.settle(t)

	// Simulate the recovery path: destroy, recreate, then notify.
	f.headlessWindow(t, types.WindowAsk).Destroy()
	f.pool.Remove(types.WindowAsk)
	_, err := f.pool.Create(types.WindowAsk)
	require.NoError(t, err)

	f.ctl.WindowRecreated(types.WindowAsk, true)
	f.waitVisible(t, types.WindowAsk, true)
	f.settle(t)

	header := f.headlessWindow(t, types.WindowHeader).Bounds()
	assert.Equal(t, header.CenterX(), f.headlessWindow(t, types.WindowAsk).Bounds().CenterX())
}
