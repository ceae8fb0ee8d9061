package core

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Network-Direction/chatbot/internal/dispatch"
)

// maxBodyBytes caps inbound webhook bodies. Vendor deliveries are a few
// kilobytes; anything near this limit is abuse.
const maxBodyBytes = 1 << 20

func (s *Server) mountRoutes() {
	s.router.Use(Recoverer(s.logger))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.logger))

	s.router.Get("/test", s.handleTest)
	s.router.Get("/callback", s.handleCallback)
	s.router.Post("/chat", s.handleWebhook("chat"))
	s.router.Post("/{route}", s.handleRoutedWebhook)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, fmt.Sprintf("Web service is running on port %s", s.cfg.Server.Port))
}

// handleCallback completes the interactive sign-in. The identity
// provider redirects the operator's browser here with a one-time code.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeText(w, http.StatusBadRequest, "There has been a problem retrieving the client code")
		return
	}

	if err := s.tokens.ExchangeCode(r.Context(), code); err != nil {
		s.logger.Error("authorization code exchange failed",
			slog.String("error", err.Error()))
		writeText(w, http.StatusBadGateway, "Authentication failed, check the gateway logs")
		return
	}
	writeText(w, http.StatusOK, "Thankyou for authenticating, this window can be closed")
}

// handleRoutedWebhook serves POST /{route} for the plugin registry.
func (s *Server) handleRoutedWebhook(w http.ResponseWriter, r *http.Request) {
	s.handleWebhook(chi.URLParam(r, "route"))(w, r)
}

func (s *Server) handleWebhook(route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeText(w, http.StatusRequestEntityTooLarge, dispatch.AckInvalidPath)
			return
		}

		status, ack := s.registry.Dispatch(r.Context(), route, &dispatch.Request{
			Headers:  r.Header,
			Query:    r.URL.Query(),
			Body:     body,
			SourceIP: sourceIP(r),
		})
		writeText(w, status, ack)
	}
}

// sourceIP prefers the forwarding header set by the TLS-terminating
// proxy, falling back to the peer address.
func sourceIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
