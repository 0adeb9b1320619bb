package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// runServer serves the API until ctx is cancelled, then shuts the HTTP
// server down before draining the workers.
func (app *application) runServer(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := app.startWorkers(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	app.runListener(gctx, g)

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), app.config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		app.stopWorkers(shutdownCtx)
		return nil
	})

	err := g.Wait()
	app.logger.Info("server shutdown completed")
	return err
}

// runWorkers processes jobs without serving the API.
func (app *application) runWorkers(ctx context.Context) error {
	if err := app.startWorkers(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	app.logger.Info("shutting down workers")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.config.Server.ShutdownTimeout)
	defer cancel()
	app.stopWorkers(stopCtx)
	return nil
}

// runListener relays job events written by other processes to local
// websocket subscribers.
func (app *application) runListener(ctx context.Context, g *errgroup.Group) {
	if app.listener == nil {
		return
	}
	g.Go(func() error {
		return app.listener.Run(ctx)
	})
}
