package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(h *HandlerProvider) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/sessions", h.CreateSessionHandler)
	r.Post("/join/{code}", h.JoinHandler)

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSessionHandler)
		r.Post("/start", h.StartHandler)
		r.Post("/actions/{name}", h.ActionHandler)
		r.Post("/finish", h.FinishHandler)
		r.Get("/events", h.EventsHandler)
		r.Get("/stream", h.StreamHandler)
	})

	r.Route("/wallets/{scope}/{user}", func(r chi.Router) {
		r.Get("/", h.GetWalletHandler)
		r.Get("/history", h.WalletHistoryHandler)
		r.Post("/deltas", h.ApplyDeltaHandler)
	})

	return r
}
