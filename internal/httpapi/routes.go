package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planningpoker/backend/internal/ws"
)

// Routes builds the service router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", a.createSession)
		r.Get("/", a.listSessions)
		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", a.getSession)
			r.Delete("/", a.deleteSession)
			r.Get("/exists", a.sessionExists)
			r.Post("/join", a.join)
			r.Post("/leave", a.leave)
			r.Post("/vote", a.vote)
			r.Post("/reveal", a.reveal)
			r.Post("/reset", a.reset)
			r.Post("/chat", a.chat)
		})
	})

	r.Get("/ws", ws.Handler(a.log, a.reg, a.hub))
	return r
}
