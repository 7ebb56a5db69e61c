// The server command exposes the pipeline over HTTP: POST /api/v1/query
// executes a plan (optionally streaming progress events as SSE) and
// GET /api/v1/hypothesis/stats reports hypothesis service statistics.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"veritas.app/relay/common/id"
	"veritas.app/relay/common/logger"
	"veritas.app/relay/common/otel"
	"veritas.app/relay/core/config"
	"veritas.app/relay/internal/app"
	httprouter "veritas.app/relay/internal/http/router"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()
	cfg := config.Load()

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.Info("otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.Info("otel disabled (no endpoint configured)")
	}

	slog.Info("relay server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)

	if err := id.Init(1); err != nil {
		slog.Error("failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	pipeline, err := app.Build(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, pipeline)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown error", "error", err)
		}
	}

	slog.Info("shutdown complete")
}

func setupRouter(cfg config.Config, pipeline *app.App) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(gin.Recovery())
	router.Use(httprouter.RequestLogger())

	httprouter.SetupRoutes(router, pipeline)

	return router
}
