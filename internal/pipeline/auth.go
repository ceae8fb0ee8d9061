package pipeline

import (
	"log/slog"

	"github.com/Network-Direction/chatbot/internal/dispatch"
	"github.com/Network-Direction/chatbot/internal/verify"
)

// AuthenticateHMAC checks the signature header against the secret in
// the live rule document. A source configured without a secret is
// admitted unauthenticated; once a secret is configured, a missing
// header is a failure like a wrong one.
func (p *Pipeline) AuthenticateHMAC(r *dispatch.Request) dispatch.AuthResult {
	src := p.rules.Current().Source
	if src.WebhookSecret.Unmask() == "" {
		return dispatch.AuthResult{Outcome: dispatch.AuthOK}
	}

	switch verify.Verify(src.WebhookSecret, src.AuthHeader, r.Headers, r.Body) {
	case verify.Valid:
		return dispatch.AuthResult{Outcome: dispatch.AuthOK}
	case verify.Absent:
		p.logger.Warn("signature header missing",
			slog.String("plugin", p.plugin),
			slog.String("header", src.AuthHeader),
			slog.String("source_ip", r.SourceIP))
		return dispatch.AuthResult{Outcome: dispatch.AuthFailed}
	default:
		p.logger.Warn("signature mismatch",
			slog.String("plugin", p.plugin),
			slog.String("header", src.AuthHeader),
			slog.String("source_ip", r.SourceIP))
		return dispatch.AuthResult{Outcome: dispatch.AuthFailed}
	}
}
