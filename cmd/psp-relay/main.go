// psp-relay is the Pharmacy Service Provider message relay: it accepts
// prescription-delivery notifications over HTTP and forwards them to the
// addressed pharmacy over a persistent WebSocket connection, queuing them
// while the pharmacy is offline.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"psprelay/internal/api"
	"psprelay/internal/config"
	"psprelay/internal/health"
	"psprelay/internal/mailbox"
	"psprelay/internal/observability"
	"psprelay/internal/relay"
	"psprelay/internal/session"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.LoadServiceConfig()
	if err != nil {
		return err
	}

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Mailbox registry and session hub
	mailboxes := mailbox.NewRegistry(metrics)
	defer mailboxes.Close()

	hub := session.NewHub(mailboxes, session.Config{
		AuthRequired: cfg.WSAuthRequired,
		Token:        cfg.APIToken,
	}, metrics)

	// Relay service
	relayService := relay.NewService(mailboxes, hub)

	// Health checker
	healthChecker := health.NewChecker(hub)

	// API router
	router := api.NewRouter(api.RouterConfig{
		RelayService:  relayService,
		Hub:           hub,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIToken:      cfg.APIToken,
		Version:       config.Version,
	})

	if cfg.APIToken != "" {
		slog.Info("Producer authentication enabled")
	} else {
		slog.Warn("Producer authentication disabled - no PSP_API_TOKEN configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: it would sever long-lived WebSocket sessions.
		IdleTimeout: 60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", cfg.Port, "version", config.Version)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if cfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", cfg.ShutdownDrainWait)
		time.Sleep(cfg.ShutdownDrainWait)
	}

	// Phase 2: Close consumer sessions so Shutdown is not held open by
	// long-lived WebSocket connections. Queued messages stay in memory
	// until the process exits; durability across restarts is out of scope.
	slog.Info("Closing consumer sessions")
	hubCtx, hubCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer hubCancel()
	if err := hub.Close(hubCtx); err != nil {
		slog.Warn("Hub shutdown error", "error", err)
	}

	// Phase 3: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Log final stats
	hubStats := hub.Stats()
	boxStats := mailboxes.Stats()
	slog.Info("Relay stats",
		"connected", hubStats.Connected,
		"replaced", hubStats.Replaced,
		"pushed", hubStats.Pushed,
		"enqueued", boxStats.Enqueued,
		"drained", boxStats.Drained,
		"cleared", boxStats.Cleared,
		"undelivered", boxStats.Depth,
	)

	slog.Info("Shutdown complete")
	return nil
}
