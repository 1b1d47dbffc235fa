package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"daisy-dictation-service/internal/app"
)

// NewRouter constructs the HTTP router for the service. ready reports
// whether the service accepts traffic.
func NewRouter(application *app.Application, ready func() bool) http.Handler {
	h := newHandlers(application)
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	// API routes
	r.Route("/v1", func(r chi.Router) {
		// Health endpoints
		r.Get("/liveness", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		r.Get("/readiness", func(w http.ResponseWriter, _ *http.Request) {
			if ready != nil && !ready() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("not ready"))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})

		// Notification feed
		r.Get("/events", application.Hub.ServeHTTP)

		r.With(middleware.Timeout(application.Cfg.Deepgram.Timeout+10*time.Second)).
			Post("/transcriptions", h.transcribe)
		r.Post("/documents", h.generate)

		r.Route("/scribes", func(r chi.Router) {
			r.Get("/", h.listScribes)
			r.Post("/", h.createScribe)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", h.openScribe)
				r.Put("/", h.saveScribe)
				r.Delete("/", h.deleteScribe)
				r.Post("/copy", h.copyScribe)
				r.Post("/rename", h.renameScribe)
			})
		})
	})

	return r
}
