package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/scry-notes/internal/api"
	apiMiddleware "github.com/phrazzld/scry-notes/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	jobHandler := api.NewJobHandler(app.jobService, app.logger)
	eventsHandler := api.NewEventsHandler(app.broker, nil, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	var db api.Pinger
	if app.db != nil {
		db = app.db
	}
	r.Get("/health", api.HealthHandler(db))

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/jobs", jobHandler.SubmitJob)
		r.Get("/jobs", jobHandler.ListJobs)
		r.Get("/jobs/{id}", jobHandler.GetJob)
		r.Get("/jobs/{id}/position", jobHandler.GetPosition)
		r.Post("/jobs/{id}/cancel", jobHandler.CancelJob)
		r.Post("/jobs/{id}/retry", jobHandler.RetryJob)
		r.Get("/jobs/{id}/notes.html", jobHandler.GetNotesHTML)

		// Websocket clients pass the token as ?access_token=.
		r.Get("/events", eventsHandler.Stream)
	})

	return r
}
