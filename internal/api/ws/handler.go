// Package ws is the renderer bridge: a WebSocket endpoint receiving
// window intents and answering request/reply queries.
package ws

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/glintapp/overlay/internal/infrastructure/monitoring"
	"github.com/glintapp/overlay/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The bridge only binds to loopback; the renderer is the sole
		// client.
		return true
	},
}

// WindowController is the slice of the controller the bridge drives.
type WindowController interface {
	RequestVisibility(name types.WindowName, visible bool)
	ToggleAllWindows(target *bool)
	MoveToDisplay(displayID int)
	MoveToEdge(dir types.Direction)
	MoveStep(dir types.Direction)
	ResizeHeader(width, height int)
	AdjustWindowHeight(name types.WindowName, targetHeight int)
	MoveHeaderTo(x, y int)
	HeaderPosition() (types.Point, bool)
	HeaderAnimationFinished(state string)
}

// Config tunes the bridge.
type Config struct {
	// MessagesPerSecond caps intent throughput per connection; a
	// renderer stuck in a resize loop cannot starve the controller.
	MessagesPerSecond int
	// Burst is the limiter burst size.
	Burst int
}

// DefaultConfig allows generous throughput; drag events are chatty.
func DefaultConfig() Config {
	return Config{MessagesPerSecond: 200, Burst: 400}
}

// Handler upgrades connections and dispatches intents.
type Handler struct {
	controller WindowController
	cfg        Config
	log        *zap.Logger
	metrics    *monitoring.Metrics
}

// NewHandler creates a bridge handler.
func NewHandler(controller WindowController, cfg Config, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg = DefaultConfig()
	}
	return &Handler{controller: controller, cfg: cfg, log: log}
}

// WithMetrics attaches a metrics collector.
func (h *Handler) WithMetrics(m *monitoring.Metrics) *Handler {
	h.metrics = m
	return h
}

// HandleConnection upgrades and serves one renderer connection.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}
	h.log.Info("renderer connected", zap.String("remote", conn.RemoteAddr().String()))

	limiter := rate.NewLimiter(rate.Limit(h.cfg.MessagesPerSecond), h.cfg.Burst)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("renderer connection lost", zap.Error(err))
			}
			return
		}
		if !limiter.Allow() {
			h.reply(conn, types.IntentReply{Type: "error", Error: "rate limit exceeded"})
			continue
		}

		var msg types.IntentMessage
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			h.reply(conn, types.IntentReply{Type: "error", Error: "malformed intent"})
			continue
		}
		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues(msg.Type).Inc()
		}
		h.dispatch(conn, msg)
	}
}

// dispatch routes one intent. Geometry errors never propagate back to
// the renderer; a bad request is acknowledged and dropped.
func (h *Handler) dispatch(conn *websocket.Conn, msg types.IntentMessage) {
	switch msg.Type {
	case types.IntentRequestVisibility:
		var p types.VisibilityPayload
		if h.decode(conn, msg, &p) {
			h.controller.RequestVisibility(p.Name, p.Visible)
		}

	case types.IntentToggleAllVisibility:
		var p types.ToggleAllPayload
		if h.decode(conn, msg, &p) {
			h.controller.ToggleAllWindows(p.TargetVisibility)
		}

	case types.IntentMoveToDisplay:
		var p types.MoveToDisplayPayload
		if h.decode(conn, msg, &p) {
			h.controller.MoveToDisplay(p.DisplayID)
		}

	case types.IntentMoveToEdge:
		var p types.DirectionPayload
		if h.decode(conn, msg, &p) && p.Direction.Valid() {
			h.controller.MoveToEdge(p.Direction)
		}

	case types.IntentMoveStep:
		var p types.DirectionPayload
		if h.decode(conn, msg, &p) && p.Direction.Valid() {
			h.controller.MoveStep(p.Direction)
		}

	case types.IntentResizeHeaderWindow:
		var p types.ResizeHeaderPayload
		if h.decode(conn, msg, &p) {
			h.controller.ResizeHeader(p.Width, p.Height)
		}

	case types.IntentAdjustWindowHeight:
		var p types.AdjustHeightPayload
		if h.decode(conn, msg, &p) {
			h.controller.AdjustWindowHeight(p.WinName, p.TargetHeight)
		}

	case types.IntentMoveHeaderTo:
		var p types.MoveHeaderToPayload
		if h.decode(conn, msg, &p) {
			h.controller.MoveHeaderTo(p.NewX, p.NewY)
		}

	case types.IntentGetHeaderPosition:
		pos, ok := h.controller.HeaderPosition()
		if !ok {
			h.reply(conn, types.IntentReply{Type: types.IntentGetHeaderPosition, Error: "no header window"})
			return
		}
		h.reply(conn, types.IntentReply{Type: types.IntentGetHeaderPosition, Data: pos})

	case types.IntentHeaderAnimationFinished:
		var p types.HeaderAnimationPayload
		if h.decode(conn, msg, &p) {
			h.controller.HeaderAnimationFinished(p.State)
		}

	default:
		h.log.Debug("unknown intent", zap.String("type", msg.Type))
		h.reply(conn, types.IntentReply{Type: "error", Error: "unknown intent: " + msg.Type})
	}
}

// decode parses the payload, replying with an error on failure.
func (h *Handler) decode(conn *websocket.Conn, msg types.IntentMessage, out any) bool {
	if err := sonic.Unmarshal(msg.Payload, out); err != nil {
		h.log.Debug("malformed payload",
			zap.String("type", msg.Type), zap.Error(err))
		h.reply(conn, types.IntentReply{Type: msg.Type, Error: "malformed payload"})
		return false
	}
	return true
}

func (h *Handler) reply(conn *websocket.Conn, r types.IntentReply) {
	data, err := sonic.Marshal(r)
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.log.Debug("reply write failed", zap.Error(err))
	}
}
