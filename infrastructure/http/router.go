// Package http exposes the chat over REST and websocket.
package http

import (
	"club-chat/auth"
	"club-chat/contract"
	"club-chat/infrastructure/ws"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	requestTimeout = 30 * time.Second
	pingTimeout    = 2 * time.Second
)

type RouterConfig struct {
	Tokens   auth.TokenManager
	Gatherer prometheus.Gatherer
	// Pingers are probed by /healthz
	Pingers []contract.Pinger
	// Inspector is mounted on /debug/inspect when set
	Inspector http.Handler
}

func NewRouter(log *slog.Logger, h *Handler, wsServer *ws.Server, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(requestLogger(log))
	r.Use(middlewareChi.Recoverer)

	r.Get("/healthz", health(cfg.Pingers))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.Inspector != nil {
		r.Handle("/debug/inspect", cfg.Inspector)
	}

	// The token travels in the query string, browsers cannot set headers on upgrades
	r.Get("/ws/clubs/{clubID}", wsServer.HandleWS)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewareChi.Timeout(requestTimeout))

		api.Post("/auth/login", h.Login)
		api.Post("/auth/register", h.Register)

		api.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(cfg.Tokens, writeError))

			pr.Get("/notifications", h.Notifications)
			pr.Post("/notifications/clear", h.ClearNotifications)
			pr.Route("/clubs/{clubID}", func(club chi.Router) {
				club.Get("/membership", h.Membership)
				club.Get("/members", h.Members)
				club.Get("/history", h.History)
				club.Post("/read", h.MarkAsRead)
			})
		})
	})
	return r
}

func health(pingers []contract.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		for _, pinger := range pingers {
			if err := pinger.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middlewareChi.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("Request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middlewareChi.GetReqID(r.Context()))
		})
	}
}
