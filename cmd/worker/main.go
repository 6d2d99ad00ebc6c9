package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kitako/incomeproof/internal/ai"
	"github.com/kitako/incomeproof/internal/config"
	"github.com/kitako/incomeproof/internal/filestore"
	"github.com/kitako/incomeproof/internal/ingest"
	"github.com/kitako/incomeproof/internal/jobs/inmemory"
	"github.com/kitako/incomeproof/internal/logger"
	"github.com/kitako/incomeproof/internal/report"
	bqstore "github.com/kitako/incomeproof/internal/store/bigquery"
	"github.com/kitako/incomeproof/internal/worker"
)

// sweepInterval is how often stuck AI jobs are reconciled.
const sweepInterval = 5 * time.Minute

func main() {
	_ = godotenv.Load()
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	entities, err := bqstore.New(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create entity store")
	}
	defer entities.Close()

	var files filestore.Store
	if cfg.GCSBucket != "" {
		gcs, err := filestore.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create file store")
		}
		defer gcs.Close()
		files = gcs
	} else {
		log.Warn().Msg("No GCS bucket configured, storing uploads in memory")
		files = filestore.NewMemoryStore()
	}

	model, err := ai.NewGeminiClient(ctx, cfg.ModelName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create model client")
	}

	processor := ingest.NewProcessor(entities.Uploads(), entities.Transactions(), files)
	orchestrator := ai.NewOrchestrator(entities.Jobs(), entities.Transactions(), model)
	issuer := report.NewIssuer(entities.Reports(), cfg.VerificationBaseURL)
	finalizer := report.NewFinalizer(entities.Reports(), files, report.TextArtifact{}, issuer)
	dispatcher := worker.NewDispatcher(processor, orchestrator, finalizer, entities.Jobs())

	queue := inmemory.NewQueue(cfg.QueueBuffer)
	if err := queue.Start(ctx, dispatcher.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start task consumer")
	}

	go dispatcher.RunStuckSweep(ctx, sweepInterval)

	log.Info().Msg("Worker service started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
