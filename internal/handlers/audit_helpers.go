package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"eduhub-chat/internal/middleware"
	"eduhub-chat/internal/telemetry"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if id := c.GetString(middleware.UserIDKey); id != "" {
		return &id
	}
	return nil
}

func emitAudit(c *gin.Context, emitter *telemetry.AuditEmitter, action, text string, attrs map[string]string) {
	emitter.Emit(c.Request.Context(), telemetry.AuditEvent{
		Level:     "INFO",
		Action:    action,
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    userIDFromContext(c),
		Attrs:     attrs,
	})
}
