// Package resizer implements the renderer side of the content-fit
// protocol: measure the rendered regions, clamp to the height cap, and
// emit at most one resize request per animation frame no matter how
// many render passes occurred in it.
package resizer

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/infrastructure/monitoring"
	"github.com/glintapp/overlay/internal/shared/types"
)

// Region is one measurable slice of the rendered view.
type Region struct {
	Name   string
	Height int
	Hidden bool
}

// Measurer computes the ideal window height from region heights.
type Measurer struct {
	// MaxHeight caps the ideal height.
	MaxHeight int
}

// NewMeasurer returns a measurer with the stock 700px cap.
func NewMeasurer() Measurer {
	return Measurer{MaxHeight: 700}
}

// Measure sums the visible regions and clamps to the cap. Hidden
// regions contribute nothing regardless of their measured height.
func (m Measurer) Measure(regions []Region) int {
	total := 0
	for _, r := range regions {
		if r.Hidden {
			continue
		}
		total += r.Height
	}
	if m.MaxHeight > 0 && total > m.MaxHeight {
		return m.MaxHeight
	}
	return total
}

// Clamp bounds a target height to the cap. The host applies it to
// incoming requests as well, so a misbehaving renderer cannot grow a
// window past the cap.
func (m Measurer) Clamp(height int) int {
	if m.MaxHeight > 0 && height > m.MaxHeight {
		return m.MaxHeight
	}
	return height
}

// Request is one resize message sent to the host.
type Request struct {
	Window       types.WindowName `json:"windowId"`
	TargetHeight int              `json:"targetHeight"`
}

// Sink receives the coalesced requests.
type Sink func(Request)

// Throttler coalesces resize submissions to one per frame per window.
// Within a frame only the latest height survives; geometry is
// level-triggered, so intermediate values carry no information.
type Throttler struct {
	frame   time.Duration
	sink    Sink
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	pending map[types.WindowName]int
	armed   map[types.WindowName]bool
	closed  bool
}

// NewThrottler creates a throttler flushing into sink. A zero frame
// defaults to ~60fps.
func NewThrottler(frame time.Duration, sink Sink, log *zap.Logger) *Throttler {
	if frame <= 0 {
		frame = 16 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Throttler{
		frame:   frame,
		sink:    sink,
		log:     log,
		pending: make(map[types.WindowName]int),
		armed:   make(map[types.WindowName]bool),
	}
}

// WithMetrics attaches a metrics collector.
func (t *Throttler) WithMetrics(m *monitoring.Metrics) *Throttler {
	t.metrics = m
	return t
}

// Submit records a desired height. The first submission in a frame
// arms the flush; later ones just overwrite the pending value.
func (t *Throttler) Submit(name types.WindowName, targetHeight int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.metrics != nil {
		t.metrics.ResizeRequests.Inc()
	}
	if _, pending := t.pending[name]; pending {
		if t.metrics != nil {
			t.metrics.ResizeCoalesced.Inc()
		}
	}
	t.pending[name] = targetHeight
	if t.armed[name] {
		return
	}
	t.armed[name] = true
	time.AfterFunc(t.frame, func() { t.flush(name) })
}

func (t *Throttler) flush(name types.WindowName) {
	t.mu.Lock()
	height, ok := t.pending[name]
	delete(t.pending, name)
	delete(t.armed, name)
	closed := t.closed
	t.mu.Unlock()

	if !ok || closed {
		return
	}
	t.sink(Request{Window: name, TargetHeight: height})
}

// Close drops any pending requests.
func (t *Throttler) Close() {
	t.mu.Lock()
	t.closed = true
	t.pending = make(map[types.WindowName]int)
	t.mu.Unlock()
}
