package resizer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/shared/types"
)

func TestMeasureSumsVisibleRegions(t *testing.T) {
	m := NewMeasurer()
	got := m.Measure([]Region{
		{Name: "header", Height: 47},
		{Name: "content", Height: 250},
		{Name: "nav", Height: 40, Hidden: true},
		{Name: "input", Height: 56},
	})
	assert.Equal(t, 47+250+56, got)
}

func TestMeasureClampsToCap(t *testing.T) {
	m := NewMeasurer()
	got := m.Measure([]Region{{Name: "content", Height: 2000}})
	assert.Equal(t, 700, got)
}

func TestMeasureEmptyIsZero(t *testing.T) {
	m := NewMeasurer()
	assert.Zero(t, m.Measure(nil))
}

func TestClampBoundsTargetHeight(t *testing.T) {
	m := NewMeasurer()
	assert.Equal(t, 700, m.Clamp(1200))
	assert.Equal(t, 350, m.Clamp(350))
	assert.Equal(t, 5000, Measurer{}.Clamp(5000))
}

type capture struct {
	mu   sync.Mutex
	reqs []Request
}

func (c *capture) sink(r Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, r)
}

func (c *capture) all() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.reqs...)
}

func TestThrottlerCoalescesWithinFrame(t *testing.T) {
	var c capture
	th := NewThrottler(15*time.Millisecond, c.sink, zap.NewNop())
	defer th.Close()

	// Three render passes inside one frame: only the last height ships.
	th.Submit(types.WindowAsk, 300)
	th.Submit(types.WindowAsk, 340)
	th.Submit(types.WindowAsk, 355)

	require.Eventually(t, func() bool { return len(c.all()) == 1 },
		time.Second, time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	got := c.all()
	require.Len(t, got, 1)
	assert.Equal(t, Request{Window: types.WindowAsk, TargetHeight: 355}, got[0])
}

func TestThrottlerSeparatesWindows(t *testing.T) {
	var c capture
	th := NewThrottler(5*time.Millisecond, c.sink, zap.NewNop())
	defer th.Close()

	th.Submit(types.WindowAsk, 400)
	th.Submit(types.WindowListen, 220)

	require.Eventually(t, func() bool { return len(c.all()) == 2 },
		time.Second, time.Millisecond)

	byWindow := map[types.WindowName]int{}
	for _, r := range c.all() {
		byWindow[r.Window] = r.TargetHeight
	}
	assert.Equal(t, 400, byWindow[types.WindowAsk])
	assert.Equal(t, 220, byWindow[types.WindowListen])
}

func TestThrottlerEmitsAgainNextFrame(t *testing.T) {
	var c capture
	th := NewThrottler(5*time.Millisecond, c.sink, zap.NewNop())
	defer th.Close()

	th.Submit(types.WindowAsk, 300)
	require.Eventually(t, func() bool { return len(c.all()) == 1 },
		time.Second, time.Millisecond)

	th.Submit(types.WindowAsk, 500)
	require.Eventually(t, func() bool { return len(c.all()) == 2 },
		time.Second, time.Millisecond)
	assert.Equal(t, 500, c.all()[1].TargetHeight)
}

func TestThrottlerCloseDropsPending(t *testing.T) {
	var c capture
	th := NewThrottler(20*time.Millisecond, c.sink, zap.NewNop())

	th.Submit(types.WindowAsk, 300)
	th.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, c.all())
}
