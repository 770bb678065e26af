package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// NewRouter wires the middleware stack and the API routes.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("request")
	}))
	r.Use(CORS(app.opts.ProductionOrigin, app.opts.Production))
	r.Use(Locale)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.Health)
		r.Get("/usage", app.Usage)

		r.Group(func(r chi.Router) {
			r.Use(app.requireAPIKey)
			r.Post("/analyze", app.Analyze)
			r.Post("/gemini/edit-image", app.EditImage)
			r.Post("/gemini/inpaint", app.Inpaint)
			r.Post("/analyze-cleanup-spots", app.CleanupSpots)
			r.Post("/chat-address", app.ChatAddress)
			r.Post("/generate-image", app.GenerateImageLegacy)
		})
	})

	return r
}
