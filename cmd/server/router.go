package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/dayreport/internal/api/middleware"
)

// setupRouter creates the router with every route and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(apiMiddleware.CORS(app.config.Transport.AllowedOrigins))

	protect := func(next http.Handler) http.Handler { return next }
	protectWS := protect
	if app.jwtService != nil {
		authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
		protect = authMiddleware.Authenticate
		protectWS = authMiddleware.AuthenticateQuery
	}

	r.Get("/health", app.handler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(protect)
		r.Post("/tasks", app.handler.SubmitTask)
		r.Get("/tasks", app.handler.ListTasks)
		r.Get("/tasks/{id}", app.handler.GetTask)
		r.Get("/quota", app.handler.QuotaStatus)
		r.Post("/reveal", app.handler.Reveal)
	})

	r.With(protectWS).Get("/ws", app.ws.ServeHTTP)

	return r
}
