package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// defaultWSPath is used when websocket.path is not configured.
const defaultWSPath = "/api/v1/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/gateways", s.handleListGateways)
		r.Post("/messages", s.handleSendMessage)

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", s.handleListNodes)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetNode)
				r.Delete("/", s.handleDeleteNode)
			})
		})
	})

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}
	r.Get(wsPath, s.handleWebSocket)

	return r
}
