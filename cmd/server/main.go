package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"lighthouse.app/cityintel/common/id"
	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/common/otel"
	"lighthouse.app/cityintel/core/config"
	"lighthouse.app/cityintel/internal/http/handler"
	"lighthouse.app/cityintel/internal/http/middleware"
	httprouter "lighthouse.app/cityintel/internal/http/router"
	"lighthouse.app/cityintel/internal/metrics"
	"lighthouse.app/cityintel/internal/service"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "lighthouse starting",
		"env", cfg.Env,
		"service", cfg.OTel.ServiceName,
		"archive_driver", cfg.Archive.Driver,
		"marathon_interval", cfg.Pipeline.MarathonInterval)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	services, err := service.Build(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build services", "error", err)
		os.Exit(1)
	}
	defer services.Close()

	if services.Scheduler != nil {
		go services.Scheduler.Run(ctx)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if services.Scheduler != nil {
		services.Scheduler.Stop()
	}
	services.Orchestrator.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if services.Video != nil {
		services.Video.Wait()
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	var videos handler.VideoService
	if services.Video != nil {
		videos = services.Video
	}

	httprouter.SetupRoutes(router, httprouter.Handlers{
		Pipeline: handler.NewPipelineHandler(services.Orchestrator, services.FeedReader),
		Issues:   handler.NewIssueHandler(services.Archive, services.Orchestrator),
		History:  handler.NewHistoryHandler(services.History),
		Video:    handler.NewVideoHandler(videos, services.Orchestrator),
	}, httprouter.RouterConfig{
		Metrics: metrics.Handler(prometheus.DefaultGatherer),
	})

	return router
}

const banner = `
██╗     ██╗ ██████╗ ██╗  ██╗████████╗██╗  ██╗ ██████╗ ██╗   ██╗███████╗███████╗
██║     ██║██╔════╝ ██║  ██║╚══██╔══╝██║  ██║██╔═══██╗██║   ██║██╔════╝██╔════╝
██║     ██║██║  ███╗███████║   ██║   ███████║██║   ██║██║   ██║███████╗█████╗
██║     ██║██║   ██║██╔══██║   ██║   ██╔══██║██║   ██║██║   ██║╚════██║██╔══╝
███████╗██║╚██████╔╝██║  ██║   ██║   ██║  ██║╚██████╔╝╚██████╔╝███████║███████╗
╚══════╝╚═╝ ╚═════╝ ╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝ ╚═════╝  ╚═════╝ ╚══════╝╚══════╝
`
