package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-notes/internal/config"
	"github.com/phrazzld/scry-notes/internal/events"
	"github.com/phrazzld/scry-notes/internal/extract"
	"github.com/phrazzld/scry-notes/internal/generation"
	"github.com/phrazzld/scry-notes/internal/platform/anthropic"
	"github.com/phrazzld/scry-notes/internal/platform/gemini"
	"github.com/phrazzld/scry-notes/internal/platform/openai"
	"github.com/phrazzld/scry-notes/internal/platform/postgres"
	"github.com/phrazzld/scry-notes/internal/queue"
	"github.com/phrazzld/scry-notes/internal/service"
	"github.com/phrazzld/scry-notes/internal/service/auth"
	"github.com/phrazzld/scry-notes/internal/store"
	"github.com/phrazzld/scry-notes/internal/store/memory"
	"github.com/phrazzld/scry-notes/internal/task"
)

// application holds the shared dependencies of every command and
// releases them in cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger
	origin string

	db       *sql.DB
	jobs     store.JobStore
	broker   *events.Broker
	queue    *queue.Queue
	listener *postgres.Listener

	jwtService auth.JWTService
	jobService service.JobService

	pool   *task.Pool
	reaper *task.Reaper
}

// newApplication opens the job store and builds the queue. Workers and the
// API layer are added by withWorkers and withAPI.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		origin: workerID(cfg.Worker),
		broker: events.NewBroker(logger),
	}

	var publisher events.Publisher = app.broker
	if cfg.Database.URL == "" {
		app.jobs = memory.NewJobStore()
		logger.Warn("no database configured, using in-memory job store; jobs are lost on restart")
	} else {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		app.db = db
		if err := postgres.Migrate(ctx, db, "up", logger); err != nil {
			app.cleanup()
			return nil, err
		}
		app.jobs = postgres.NewJobStore(db)
		publisher = events.NewFanOut(logger, app.broker, postgres.NewNotifier(db, app.origin))
		app.listener = postgres.NewListener(cfg.Database.URL, app.origin, app.broker, logger)
		logger.Info("postgres job store ready")
	}

	app.queue = queue.New(app.jobs, publisher, logger, queue.WithMaxRetries(cfg.Worker.MaxRetries))
	return app, nil
}

// withWorkers builds the generation stack, the worker pool and the reaper.
func (app *application) withWorkers(ctx context.Context) error {
	cfg := app.config

	client, err := newGenerationClient(ctx, cfg.LLM, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize %s client: %w", cfg.LLM.Provider, err)
	}
	app.logger.Info("generation client initialized", "provider", cfg.LLM.Provider)

	opts := generation.Options{
		Limiter: generation.NewCallLimiter(cfg.Worker.MaxInFlightCalls, cfg.Worker.RequestsPerSecond),
		Timeout: cfg.Worker.CallTimeout,
		Retry: generation.RetryPolicy{
			MaxRetries: generation.DefaultRetryPolicy().MaxRetries,
			BaseDelay:  cfg.Worker.RetryBaseDelay,
			Jitter:     cfg.Worker.RetryJitter,
		},
	}

	chunks, err := generation.NewChunkProcessor(client, opts, app.logger)
	if err != nil {
		return err
	}
	quiz, err := generation.NewQuizGenerator(client, opts, app.logger)
	if err != nil {
		return err
	}
	summary, err := generation.NewSummaryGenerator(client, opts, app.logger)
	if err != nil {
		return err
	}

	extractor, err := newExtractor(cfg, app.logger)
	if err != nil {
		return err
	}

	processor := task.NewJobProcessor(
		extractor,
		generation.NewAggregator(chunks, app.logger),
		quiz,
		summary,
		cfg.Chunking.MaxWords,
		app.logger,
		task.WithExtractTimeout(cfg.Worker.ExtractTimeout),
		task.WithExtractHeartbeat(cfg.Worker.StuckJobAge/4),
	)

	poolCfg := task.DefaultPoolConfig()
	poolCfg.WorkerID = app.origin
	poolCfg.PollInterval = cfg.Worker.PollInterval
	poolCfg.Concurrency = cfg.Worker.Concurrency
	app.pool = task.NewPool(app.queue, processor, poolCfg, app.logger)

	app.reaper, err = task.NewReaper(app.queue, cfg.Worker.ReaperSchedule, cfg.Worker.StuckJobAge, app.logger)
	return err
}

// withAPI builds the services behind the HTTP handlers.
func (app *application) withAPI() error {
	var err error
	app.jwtService, err = auth.NewJWTService(app.config.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	var wake func()
	if app.pool != nil {
		wake = app.pool.Wake
	}
	app.jobService, err = service.NewJobService(app.queue, wake, app.logger)
	return err
}

// startWorkers starts the pool and the reaper if they were built.
func (app *application) startWorkers(ctx context.Context) error {
	if app.pool == nil {
		return nil
	}
	if err := app.pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	app.reaper.Start()
	return nil
}

// stopWorkers drains the pool, cancelling jobs still running when the
// shutdown timeout expires.
func (app *application) stopWorkers(ctx context.Context) {
	if app.pool == nil {
		return
	}
	app.reaper.Stop(ctx)
	if err := app.pool.Stop(app.config.Server.ShutdownTimeout); err != nil {
		app.logger.Error("worker pool did not stop cleanly", "error", err)
	}
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}

// newGenerationClient builds the provider client selected by cfg.Provider.
func newGenerationClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Client, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}, logger)
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}, logger)
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
}

// newExtractor wires the extractors for non-text inputs. Video uploads
// need an OpenAI key for transcription; without one they fail with
// extract.ErrNotConfigured.
func newExtractor(cfg *config.Config, logger *slog.Logger) (*extract.Router, error) {
	storage := extract.LocalStorage{Root: cfg.Storage.Root}
	router := &extract.Router{
		Files: extract.NewFileExtractor(storage, logger),
		Links: extract.NewLinkExtractor(http.DefaultClient, extract.NewYouTubeCaptions(http.DefaultClient), logger),
	}

	if cfg.LLM.OpenAIAPIKey != "" {
		transcriber, err := openai.NewTranscriber(openai.Config{
			APIKey:             cfg.LLM.OpenAIAPIKey,
			TranscriptionModel: cfg.LLM.TranscriptionModel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize transcriber: %w", err)
		}
		router.Media = extract.NewMediaExtractor(storage, transcriber, logger)
	} else {
		logger.Info("video transcription disabled, no OpenAI API key")
	}
	return router, nil
}

// workerID returns the configured worker ID, or one derived from the host
// name. It doubles as the event origin of this process.
func workerID(cfg config.WorkerConfig) string {
	if cfg.ID != "" {
		return cfg.ID
	}
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}
