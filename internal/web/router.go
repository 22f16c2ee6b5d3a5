package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"roadsurvey/internal/session"
)

// NewRouter wires the survey routes.
func NewRouter(h *Handler, store *session.Store, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(Recovery(logger))
	r.Use(Logger(logger))

	r.Get("/healthz", h.Healthz)

	r.Group(func(r chi.Router) {
		r.Use(store.Middleware)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, surveyPath, http.StatusFound)
		})
		r.Get(surveyPath, h.Show)
		r.Post(surveyPath, h.Post)
		r.Post(surveyPath+"/restart", h.Restart(store))
		r.Get(surveyPath+"/data", h.Data)
	})

	return r
}
