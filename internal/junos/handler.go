// Package junos handles webhooks sent by the on-device event-script
// agent running on Junos gear. The agent signs each delivery with the
// shared secret and posts a small fixed payload.
package junos

import (
	"encoding/json"
	"log/slog"

	"github.com/Network-Direction/chatbot/internal/classify"
	"github.com/Network-Direction/chatbot/internal/dispatch"
	"github.com/Network-Direction/chatbot/internal/pipeline"
	"github.com/Network-Direction/chatbot/internal/types"
)

// wireEvent is what the agent posts: the syslog event ID, the process
// that raised it, the message text, and the device hostname.
type wireEvent struct {
	Event    string `json:"event"`
	Process  string `json:"process"`
	Message  string `json:"message"`
	Hostname string `json:"hostname"`
}

// Normalize maps an agent delivery onto a canonical device event. The
// agent reports per device, not per site, so the site defaults.
func Normalize(payload []byte) []types.CanonicalEvent {
	var ev wireEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Event == "" {
		return []types.CanonicalEvent{{
			Kind: types.KindUnknown,
			Site: types.DefaultSite,
			Raw:  json.RawMessage(payload),
		}}
	}

	return []types.CanonicalEvent{{
		Kind:   types.KindDeviceEvent,
		Type:   ev.Event,
		Device: ev.Hostname,
		Name:   ev.Process,
		Text:   ev.Message,
		Site:   types.DefaultSite,
	}}
}

// Handler implements the webhook capability contract for Junos.
type Handler struct {
	*pipeline.Pipeline
}

func NewHandler(rules *classify.RuleStore, chat dispatch.ChatSender, audit dispatch.AuditStore, clock types.Clock, logger *slog.Logger) *Handler {
	return &Handler{
		Pipeline: pipeline.New("junos", rules, Normalize, chat, audit, clock, logger),
	}
}

func (h *Handler) Authenticate(r *dispatch.Request) dispatch.AuthResult {
	return h.AuthenticateHMAC(r)
}
