// Package dispatch routes inbound webhook deliveries to their
// registered source handlers. The route set is fixed at startup; the
// response to the caller is always one of a small set of generic
// acknowledgements so unauthenticated senders cannot probe internal
// processing outcomes.
package dispatch

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Network-Direction/chatbot/internal/types"
)

// Acknowledgement bodies. Trust and processing failures all collapse to
// these; the HTTP layer never exposes anything more specific.
const (
	AckInvalidPath = "Invalid path"
	AckBadAuth     = "Webhook received, not authenticated"
	AckReceived    = "Webhook received"
)

// AuthOutcome is a handler's authentication verdict for one request.
type AuthOutcome int

const (
	// AuthOK admits the request for event handling.
	AuthOK AuthOutcome = iota
	// AuthFailed rejects the request; the event is never handled.
	AuthFailed
	// AuthRespond terminates the request with a handler-supplied body,
	// bypassing event handling. Used for validation handshakes.
	AuthRespond
)

// Request is the raw inbound delivery as captured by the HTTP layer.
// Body holds the exact bytes that arrived on the wire; signature
// verification depends on them being unmodified.
type Request struct {
	Headers  http.Header
	Query    url.Values
	Body     []byte
	SourceIP string
}

// AuthResult carries a handler's verdict. Payload, when set, replaces
// the raw body for event handling; envelope handlers use it to pass
// decrypted plaintext downstream.
type AuthResult struct {
	Outcome  AuthOutcome
	Response string
	Payload  []byte
}

// Handler is the capability contract every webhook source implements.
// Authenticate establishes trust in whatever way suits the source
// (shared-secret signature, envelope decryption, handshake echo);
// HandleEvent runs the normalize/classify/forward pipeline and must
// swallow its own failures.
type Handler interface {
	Authenticate(r *Request) AuthResult
	HandleEvent(ctx context.Context, payload []byte, sourceIP string)
}

// Registry maps route names to handlers. It is populated during startup
// and never modified while serving.
type Registry struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds a handler to a route name. Later registrations for the
// same route overwrite earlier ones.
func (reg *Registry) Register(route string, h Handler) {
	reg.handlers[route] = h
}

// Routes returns the registered route names, for startup logging.
func (reg *Registry) Routes() []string {
	routes := make([]string, 0, len(reg.handlers))
	for route := range reg.handlers {
		routes = append(routes, route)
	}
	return routes
}

// Dispatch resolves the route and runs trust then event handling. The
// returned status and body are what the caller sends back; every path
// through here returns a generic acknowledgement. Event handling runs
// synchronously on the request worker.
func (reg *Registry) Dispatch(ctx context.Context, route string, r *Request) (int, string) {
	h, ok := reg.handlers[route]
	if !ok {
		reg.logger.Info("unknown webhook route",
			slog.String("route", route),
			slog.String("source_ip", r.SourceIP))
		return http.StatusNotFound, AckInvalidPath
	}

	auth := h.Authenticate(r)
	switch auth.Outcome {
	case AuthRespond:
		return http.StatusOK, auth.Response

	case AuthFailed:
		reg.logger.Warn("webhook failed authentication",
			slog.String("route", route),
			slog.String("source_ip", r.SourceIP),
			slog.String("error_code", string(types.ErrCodeTrustBadSignature)))
		return http.StatusOK, AckBadAuth
	}

	payload := auth.Payload
	if payload == nil {
		payload = r.Body
	}
	h.HandleEvent(ctx, payload, r.SourceIP)
	return http.StatusOK, AckReceived
}
