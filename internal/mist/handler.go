package mist

import (
	"log/slog"

	"github.com/Network-Direction/chatbot/internal/classify"
	"github.com/Network-Direction/chatbot/internal/dispatch"
	"github.com/Network-Direction/chatbot/internal/pipeline"
	"github.com/Network-Direction/chatbot/internal/types"
)

// Handler implements the webhook capability contract for Mist. Trust is
// the shared-secret signature scheme; everything after authentication
// is the common pipeline.
type Handler struct {
	*pipeline.Pipeline
}

func NewHandler(rules *classify.RuleStore, chat dispatch.ChatSender, audit dispatch.AuditStore, clock types.Clock, logger *slog.Logger) *Handler {
	return &Handler{
		Pipeline: pipeline.New("mist", rules, Normalize, chat, audit, clock, logger),
	}
}

func (h *Handler) Authenticate(r *dispatch.Request) dispatch.AuthResult {
	return h.AuthenticateHMAC(r)
}
