// @title           Profile Plausibility Check API
// @version         1.0
// @description     Deterministic synthetic credibility reports for LinkedIn profile URLs.
// @BasePath        /
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/config"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/errors"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/monitoring"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/ratelimit"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $CONFIG_FILE)")
	flag.Parse()

	// Structured logging setup; the level is refined once config is loaded
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		appErr := errors.ToAppError(err)
		slog.Error("Invalid configuration", "error", appErr.Error(), "details", appErr.Fields)
		os.Exit(1)
	}

	level := monitoring.ParseLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
	if level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	redisClient, err := ratelimit.NewRedisClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("Redis unavailable, continuing without it", "error", err)
	}

	srv := newServer(cfg, redisClient, monitoring.NewLogger(level))
	defer srv.Close()

	// Start server with graceful shutdown
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "redis", redisClient.IsEnabled())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}
