package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eduhub-chat/internal/chat"
	"eduhub-chat/internal/telemetry"
)

// StatsSource exposes coordinator table sizes.
type StatsSource interface {
	Stats() (chat.Stats, error)
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, stats StatsSource, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitAudit(c, emitter, "audit_test", "audit test", nil)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/chat-stats", func(c *gin.Context) {
		st, err := stats.Stats()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
	})
}
