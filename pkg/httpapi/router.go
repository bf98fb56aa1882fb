// Package httpapi exposes the gateway's ancillary HTTP surface: health and
// info endpoints alongside the websocket upgrade route, using gin for
// routing the same way the rest of the retrieval pack's voice services do.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lokutor-ai/voicegateway/pkg/orchestrator"
)

var startedAt = time.Now()

// NewRouter builds the gin engine serving /health, /info, and — if metrics
// is non-nil — /metrics, plus the voiceHandler mounted at /v2/voice.
func NewRouter(orch *orchestrator.Orchestrator, registry *orchestrator.SessionRegistry, voiceHandler http.Handler, metricsHandler http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"uptime_sec": int(time.Since(startedAt).Seconds()),
		})
	})

	r.GET("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"providers":       orch.GetProviders(),
			"active_sessions": registry.Len(),
		})
	})

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	r.GET("/v2/voice", gin.WrapH(voiceHandler))

	return r
}
