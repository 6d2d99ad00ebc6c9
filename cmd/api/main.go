package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kitako/incomeproof/internal/ai"
	"github.com/kitako/incomeproof/internal/api/handlers"
	"github.com/kitako/incomeproof/internal/api/middleware"
	"github.com/kitako/incomeproof/internal/config"
	"github.com/kitako/incomeproof/internal/filestore"
	"github.com/kitako/incomeproof/internal/ingest"
	"github.com/kitako/incomeproof/internal/jobs/inmemory"
	"github.com/kitako/incomeproof/internal/logger"
	"github.com/kitako/incomeproof/internal/report"
	bqstore "github.com/kitako/incomeproof/internal/store/bigquery"
	"github.com/kitako/incomeproof/internal/worker"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

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

	// Pipeline services
	processor := ingest.NewProcessor(entities.Uploads(), entities.Transactions(), files)
	orchestrator := ai.NewOrchestrator(entities.Jobs(), entities.Transactions(), model)
	issuer := report.NewIssuer(entities.Reports(), cfg.VerificationBaseURL)
	calc := report.NewCalculator(entities.Transactions(), entities.Reports())
	finalizer := report.NewFinalizer(entities.Reports(), files, report.TextArtifact{}, issuer)
	access := report.NewAccess(entities.Reports(), files)
	detector := report.NewDetector(entities.Transactions())

	// In-process queue; single-instance deployments run the consumer inside
	// the API process.
	queue := inmemory.NewQueue(cfg.QueueBuffer)
	dispatcher := worker.NewDispatcher(processor, orchestrator, finalizer, entities.Jobs())

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := queue.Start(workerCtx, dispatcher.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start task consumer")
	}

	router := handlers.NewRouter(
		handlers.NewUploadsHandler(entities.Uploads(), entities.Transactions(), files, processor, queue, log),
		handlers.NewTransactionsHandler(entities.Transactions(), entities.Jobs(), queue, detector, log),
		handlers.NewAIJobsHandler(entities.Jobs(), log),
		handlers.NewReportsHandler(entities.Reports(), calc, issuer, access, queue, cfg.ReportExpiryDays, log),
	)

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.WithLogger(log)(router),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping task queue")
	}

	log.Info().Msg("Server exited")
}
