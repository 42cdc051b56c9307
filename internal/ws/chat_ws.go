package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"eduhub-chat/internal/chat"
	"eduhub-chat/internal/middleware"
	"eduhub-chat/internal/observability"
)

const (
	routingKey = "ws_events.chat"
	authCookie = "auth"
)

// Coordinator is the part of the chat coordinator the socket layer drives.
type Coordinator interface {
	Connect(conn chat.Conn, token string) (chat.Session, error)
	Handle(connID string, f chat.Frame) error
	Disconnect(connID string) error
}

// ChatWebSocketHandler upgrades /ws requests and bridges each socket to the
// coordinator.
type ChatWebSocketHandler struct {
	coord    Coordinator
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(coord Coordinator, log *zap.Logger) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{
		coord: coord,
		log:   log.Named("ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades the connection and attaches it. A bad or missing token
// yields a guest session rather than a rejection.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("eduhub-chat/ws").Start(c.Request.Context(), "ws.handshake",
		trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := newClient(conn, sendBuffer)
	session, err := h.coord.Connect(cl, tokenFromRequest(c.Request))
	if err != nil {
		h.log.Warn("rejecting socket, coordinator unavailable", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "chat unavailable"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	meta := observability.ClientMetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      session.ConnectionID,
		UserID:      session.UserID,
		Username:    session.Username,
		Guest:       session.IsGuest,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: session.ConnectedAt,
	}
	span.SetAttributes(
		attribute.String("chat.conn_id", info.ConnID),
		attribute.Bool("chat.guest", info.Guest),
	)

	observability.IncWSActive()
	h.lifecycle(ctx, "ws_connect", info, "")

	go cl.writePump()
	go h.serve(cl, info)
}

func (h *ChatWebSocketHandler) serve(cl *client, info ConnInfo) {
	ctx := context.Background()
	err := cl.readPump(
		func(f chat.Frame) {
			observability.IncWSEvent(eventLabel(f.Type))
			if err := h.coord.Handle(info.ConnID, f); err != nil {
				h.log.Debug("frame not handled", zap.String("conn_id", info.ConnID), zap.Error(err))
			}
		},
		func(err error) {
			observability.IncWSEvent("invalid_frame")
			cl.Send(chat.Event{Type: chat.EventError, Data: chat.ErrorPayload{
				Code:    chat.ErrCodeInvalidFrame,
				Message: err.Error(),
			}})
		},
	)

	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		h.lifecycle(ctx, "ws_error", info, err.Error())
	}
	if derr := h.coord.Disconnect(info.ConnID); derr != nil {
		h.log.Debug("disconnect after shutdown", zap.String("conn_id", info.ConnID), zap.Error(derr))
	}
	cl.close()
	observability.DecWSActive()

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	h.lifecycle(ctx, "ws_disconnect", info, reason)
}

func (h *ChatWebSocketHandler) lifecycle(ctx context.Context, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(event)
	err := observability.PublishEvent(ctx, routingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]any{
			"ws": map[string]any{
				"kind":        "chat",
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": info.identity(),
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
	if err != nil {
		h.log.Debug("ws lifecycle publish failed", zap.String("event", event), zap.Error(err))
	}
}

// tokenFromRequest looks at ?token=, the Authorization header and the auth
// cookie, in that order.
func tokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	if token := middleware.BearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if cookie, err := r.Cookie(authCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func eventLabel(t chat.EventType) string {
	if t.Inbound() {
		return string(t)
	}
	return "unknown"
}
