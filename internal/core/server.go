// Package core is the HTTP chassis of the gateway. It owns the chi
// router, the cross-cutting middleware, and the thin handlers that
// translate HTTP into dispatch calls. All domain behaviour lives behind
// the dispatch registry; the handlers here never inspect payloads.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Network-Direction/chatbot/internal/config"
	"github.com/Network-Direction/chatbot/internal/dispatch"
	"github.com/Network-Direction/chatbot/internal/lifecycle"
)

// Server bundles the router with the collaborators the routes need.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *dispatch.Registry
	tokens   *lifecycle.TokenManager
	router   *chi.Mux
}

func NewServer(cfg *config.Config, registry *dispatch.Registry, tokens *lifecycle.TokenManager, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("dispatch registry must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		tokens:   tokens,
		router:   chi.NewRouter(),
	}
	s.mountRoutes()
	return s, nil
}

// Handler returns the router for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
