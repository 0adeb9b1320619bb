// Package main implements the entry point for the scry-notes server, which
// turns submitted content into study notes, quizzes and summaries through
// an asynchronous job queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/phrazzld/scry-notes/internal/config"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/platform/postgres"
	"github.com/phrazzld/scry-notes/internal/service/auth"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "scry-notes",
		Usage: "generate study notes, quizzes and summaries from submitted content",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the HTTP API, with embedded workers unless worker.embedded is false",
				Action: serveAction,
			},
			{
				Name:   "worker",
				Usage:  "process queued jobs without serving the API",
				Action: workerAction,
			},
			{
				Name:      "migrate",
				Usage:     "run database migrations",
				ArgsUsage: strings.Join(postgres.MigrationCommands, "|"),
				Action:    migrateAction,
			},
			{
				Name:  "token",
				Usage: "mint a development access token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "user",
						Usage: "user ID (random when omitted)",
					},
					&cli.StringFlag{
						Name:  "tier",
						Usage: "subscription tier: free, basic, pro or enterprise",
						Value: string(domain.TierFree),
					},
				},
				Action: tokenAction,
			},
		},
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"llm_provider", cfg.LLM.Provider,
		"database_configured", cfg.Database.URL != "")
	return cfg, l, nil
}

func serveAction(ctx context.Context, _ *cli.Command) error {
	cfg, l, err := initializeApp()
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer app.cleanup()

	if cfg.Worker.Embedded {
		if err := app.withWorkers(ctx); err != nil {
			return err
		}
	} else {
		l.Info("embedded workers disabled, jobs wait for a separate worker process")
	}
	if err := app.withAPI(); err != nil {
		return err
	}
	return app.runServer(ctx)
}

func workerAction(ctx context.Context, _ *cli.Command) error {
	cfg, l, err := initializeApp()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("worker requires database.url; use serve for the in-memory store")
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer app.cleanup()

	if err := app.withWorkers(ctx); err != nil {
		return err
	}
	return app.runWorkers(ctx)
}

func migrateAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("migration command required: %s", cmd.ArgsUsage)
	}

	cfg, l, err := initializeApp()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("migrate requires database.url")
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			l.Error("failed to close database connection", "error", err)
		}
	}()

	args := cmd.Args().Slice()
	return postgres.Migrate(ctx, db, args[0], l, args[1:]...)
}

func tokenAction(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := initializeApp()
	if err != nil {
		return err
	}

	userID := uuid.New()
	if s := cmd.String("user"); s != "" {
		if userID, err = uuid.Parse(s); err != nil {
			return fmt.Errorf("invalid user ID %q: %w", s, err)
		}
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return err
	}
	token, err := jwtService.GenerateToken(ctx, userID, domain.SubscriptionTier(cmd.String("tier")))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.Root().Writer, "user_id: %s\ntoken: %s\n", userID, token)
	return err
}
