package motion

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/platform"
	"github.com/glintapp/overlay/internal/platform/headless"
	"github.com/glintapp/overlay/internal/shared/types"
)

func newEngine() *Engine {
	return New(zap.NewNop(), Config{
		Frame:    time.Millisecond,
		Duration: 15 * time.Millisecond,
	})
}

func newWindow(t *testing.T, resizable bool) platform.Window {
	t.Helper()
	backend := headless.New()
	cfg := types.WindowTypeConfig{
		Name:      types.WindowAsk,
		Width:     600,
		MinHeight: 200,
		MaxHeight: 700,
		Resizable: resizable,
	}
	w, err := backend.CreateWindow(cfg)
	require.NoError(t, err)
	return w
}

func waitIdle(t *testing.T, e *Engine) {
	t.Helper()
	require.Eventually(t, func() bool { return !e.Animating() },
		time.Second, time.Millisecond)
}

func TestAnimateBoundsReachesTarget(t *testing.T) {
	e := newEngine()
	w := newWindow(t, true)
	target := types.Bounds{X: 100, Y: 200, Width: 600, Height: 350}

	done := make(chan struct{})
	e.AnimateBounds(w, target, Options{OnComplete: func() { close(done) }})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("animation did not complete")
	}
	assert.Equal(t, target, w.Bounds())
}

func TestAnimateBoundsRelocksNonResizableWindow(t *testing.T) {
	e := newEngine()
	w := newWindow(t, false)
	require.False(t, w.Resizable())

	e.AnimateBounds(w, types.Bounds{X: 50, Y: 50, Width: 600, Height: 400}, Options{})
	waitIdle(t, e)

	assert.False(t, w.Resizable(), "lock must be restored after the animation")
	assert.Equal(t, 400, w.Bounds().Height)
}

func TestSupersedeFiresExactlyOneCallback(t *testing.T) {
	e := newEngine()
	w := newWindow(t, true)

	var first, second atomic.Int32
	e.AnimateBounds(w, types.Bounds{X: 500, Width: 600, Height: 300},
		Options{Duration: 200 * time.Millisecond, OnComplete: func() { first.Add(1) }})
	e.AnimateBounds(w, types.Bounds{X: 120, Y: 40, Width: 600, Height: 300},
		Options{OnComplete: func() { second.Add(1) }})

	waitIdle(t, e)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(0), first.Load(), "superseded callback must not fire")
	assert.Equal(t, int32(1), second.Load())
	assert.Equal(t, types.Bounds{X: 120, Y: 40, Width: 600, Height: 300}, w.Bounds())
}

func TestSupersedeTransfersResizableRestore(t *testing.T) {
	e := newEngine()
	w := newWindow(t, false)

	e.AnimateBounds(w, types.Bounds{Width: 600, Height: 500},
		Options{Duration: 200 * time.Millisecond})
	// The second call sees the window already unlocked; the relock
	// obligation must still land at the end of the chain.
	e.AnimateBounds(w, types.Bounds{Width: 600, Height: 250}, Options{})

	waitIdle(t, e)
	assert.False(t, w.Resizable())
	assert.Equal(t, 250, w.Bounds().Height)
}

func TestGeometryAndOpacityRunConcurrently(t *testing.T) {
	e := newEngine()
	w := newWindow(t, true)
	w.SetOpacity(0)

	var moves, fades atomic.Int32
	e.AnimatePosition(w, types.Point{X: 300, Y: 90},
		Options{OnComplete: func() { moves.Add(1) }})
	e.Fade(w, 1, Options{OnComplete: func() { fades.Add(1) }})

	waitIdle(t, e)
	assert.Equal(t, int32(1), moves.Load())
	assert.Equal(t, int32(1), fades.Load())
	assert.Equal(t, 300, w.Bounds().X)
	assert.InDelta(t, 1.0, w.Opacity(), 0.001)
}

func TestAnimatePositionKeepsSize(t *testing.T) {
	e := newEngine()
	w := newWindow(t, true)
	before := w.Bounds()

	e.AnimatePosition(w, types.Point{X: 77, Y: 33}, Options{})
	waitIdle(t, e)

	after := w.Bounds()
	assert.Equal(t, 77, after.X)
	assert.Equal(t, 33, after.Y)
	assert.Equal(t, before.Width, after.Width)
	assert.Equal(t, before.Height, after.Height)
}

func TestDestroyedWindowDropsWithoutCallback(t *testing.T) {
	e := newEngine()
	w := newWindow(t, true)

	var fired atomic.Int32
	e.AnimateBounds(w, types.Bounds{X: 900, Width: 600, Height: 300},
		Options{Duration: 200 * time.Millisecond, OnComplete: func() { fired.Add(1) }})
	w.Destroy()

	waitIdle(t, e)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestAnimateOnDestroyedWindowIsNoop(t *testing.T) {
	e := newEngine()
	w := newWindow(t, true)
	w.Destroy()

	e.AnimateBounds(w, types.Bounds{X: 10, Width: 600, Height: 300}, Options{})
	assert.False(t, e.Animating())
}

func TestApplyLayoutSnapHonorsResizableLock(t *testing.T) {
	e := newEngine()
	w := newWindow(t, false)
	windows := map[types.WindowName]platform.Window{types.WindowAsk: w}
	result := types.LayoutResult{
		types.WindowAsk:    {X: 10, Y: 20, Width: 600, Height: 320},
		types.WindowListen: {X: 700, Y: 20, Width: 400, Height: 300},
	}

	e.ApplyLayout(windows, result, false)

	assert.Equal(t, types.Bounds{X: 10, Y: 20, Width: 600, Height: 320}, w.Bounds())
	assert.False(t, w.Resizable())
	assert.False(t, e.Animating(), "snap path must not register tasks")
}

func TestApplyLayoutAnimated(t *testing.T) {
	e := newEngine()
	w := newWindow(t, true)
	windows := map[types.WindowName]platform.Window{types.WindowAsk: w}
	result := types.LayoutResult{types.WindowAsk: {X: 40, Y: 60, Width: 600, Height: 340}}

	e.ApplyLayout(windows, result, true)
	waitIdle(t, e)
	assert.Equal(t, types.Bounds{X: 40, Y: 60, Width: 600, Height: 340}, w.Bounds())
}

func TestSnapCancelsInFlightGeometry(t *testing.T) {
	e := newEngine()
	w := newWindow(t, true)
	windows := map[types.WindowName]platform.Window{types.WindowAsk: w}

	var fired atomic.Int32
	e.AnimateBounds(w, types.Bounds{X: 999, Width: 600, Height: 300},
		Options{Duration: 200 * time.Millisecond, OnComplete: func() { fired.Add(1) }})
	e.ApplyLayout(windows, types.LayoutResult{types.WindowAsk: {X: 5, Y: 5, Width: 600, Height: 300}}, false)

	waitIdle(t, e)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load(), "snap supersedes the animation")
	assert.Equal(t, 5, w.Bounds().X)
}
