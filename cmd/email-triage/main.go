package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikey/email-triage/internal/adapters/cache"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/di"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	engine *core.EnsemblePredictor,
	queue *core.QueueService,
	predictionCache core.PredictionCache,
	classifier core.Classifier,
	store core.TriageStore,
) error {
	defer logger.Sync()

	queueCfg, err := cfg.GetQueue()
	if err != nil {
		logger.Fatal("Failed to read queue configuration", zap.Error(err))
		return err
	}

	logger.Info("Email triage engine started",
		zap.String("provider", cfg.GetString("llm.provider")),
		zap.String("store", cfg.GetString("store.type")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodic cache cleanup
	if mc, ok := predictionCache.(*cache.MemoryCache); ok {
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					mc.Cleanup()
				}
			}
		}()
	}

	// Periodic queue expiry sweep
	go func() {
		ticker := time.NewTicker(queueCfg.ExpirySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := queue.ExpireAll(ctx); err != nil {
					logger.Error("Queue expiry sweep failed", zap.Error(err))
				}
			}
		}
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")
	cancel()

	// Close any resources that need closing
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM classifier", zap.Error(err))
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
