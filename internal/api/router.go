package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/iot-bridge/internal/auth"
)

// healthTimeout bounds dependency checks in /healthz.
const healthTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		// Authenticated by single-use ticket, not Bearer token.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.With(s.requirePermission(auth.PermEventsSubscribe)).Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/sessions", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermSessionRead)).Get("/", s.handleListSessions)
				r.With(s.requirePermission(auth.PermSessionRead)).Get("/{connID}", s.handleGetSession)
				r.With(s.requirePermission(auth.PermSessionManage)).Delete("/{connID}", s.handleDeleteSession)
			})

			r.Route("/identities", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermIdentityRead)).Get("/", s.handleListIdentities)
				r.With(s.requirePermission(auth.PermIdentityRead)).Get("/{nodeID}", s.handleGetIdentity)
				r.With(s.requirePermission(auth.PermIdentityManage)).Put("/{nodeID}", s.handlePutIdentity)
				r.With(s.requirePermission(auth.PermIdentityManage)).Delete("/{nodeID}", s.handleDeleteIdentity)
			})

			r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	resp := map[string]any{
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"sessions":       len(s.sessions.Sessions()),
		"ws_clients":     s.hub.ClientCount(),
	}

	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.database.HealthCheck(ctx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			resp["database"] = err.Error()
		} else {
			resp["database"] = "ok"
		}
	}

	resp["status"] = status
	writeJSON(w, code, resp)
}
