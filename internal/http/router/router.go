package router

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"veritas.app/relay/internal/app"
	"veritas.app/relay/internal/http/handler"
)

func SetupRoutes(router *gin.Engine, pipeline *app.App) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	queryHandler := handler.NewQueryHandler(pipeline)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/query", queryHandler.Execute)
		v1.GET("/hypothesis/stats", queryHandler.HypothesisStats)
	}
}

// RequestLogger logs one line per request through the context-enriched
// slog default handler.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}
