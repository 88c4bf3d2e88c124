package agentline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentline/agentline/internal/config"
)

// Run loads configuration, connects the registry, and serves the API until
// the context is cancelled.
func Run(ctx context.Context) error {
	cfg := config.Load()

	agents, err := config.LoadAgentConfigs(cfg.AgentsFile)
	if err != nil {
		return fmt.Errorf("failed to load agent configuration: %w", err)
	}

	engine, err := NewEngine(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	if err := engine.Initialize(ctx, agents); err != nil {
		return fmt.Errorf("failed to initialize registry: %w", err)
	}

	// Start health server
	go func() {
		engine.Logger.Info("Starting health server", slog.String("port", cfg.HealthPort))
		if err := engine.HealthServer.Start(ctx); err != nil {
			engine.Logger.Error("Health server failed", slog.Any("error", err))
		}
	}()

	// Start metrics collection
	ticker := NewMetricsTicker(ctx, engine.MetricsManager)
	ticker.Start()

	server := NewServer(engine)

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		engine.Logger.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			engine.Logger.Error("API server shutdown failed", slog.Any("error", err))
		}
		engine.Shutdown(shutdownCtx)
	}()

	engine.Logger.InfoContext(ctx, "agentline started",
		slog.String("api_endpoint", fmt.Sprintf("http://localhost:%s", cfg.APIPort)),
		slog.String("health_endpoint", fmt.Sprintf("http://localhost:%s/health", cfg.HealthPort)),
		slog.String("metrics_endpoint", fmt.Sprintf("http://localhost:%s/metrics", cfg.HealthPort)),
		slog.Int("agents", len(agents)),
	)

	return server.Start(ctx)
}
