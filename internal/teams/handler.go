// Package teams handles the encrypted change notification feed for the
// bot's own chat. Trust is established by decrypting the envelope; a
// payload that fails validation is treated like any bad signature.
package teams

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Network-Direction/chatbot/internal/dispatch"
	"github.com/Network-Direction/chatbot/internal/envelope"
	"github.com/Network-Direction/chatbot/internal/types"
)

// notification is the outer shape of a change notification delivery.
type notification struct {
	Value []struct {
		SubscriptionID   string                    `json:"subscriptionId"`
		EncryptedContent envelope.EncryptedContent `json:"encryptedContent"`
	} `json:"value"`
}

// chatMessage is the decrypted resource: one message posted to the
// watched chat.
type chatMessage struct {
	Body struct {
		Content string `json:"content"`
	} `json:"body"`
	From struct {
		User *struct {
			DisplayName string `json:"displayName"`
		} `json:"user"`
		Application *struct {
			DisplayName string `json:"displayName"`
		} `json:"application"`
	} `json:"from"`
}

// Handler implements the webhook capability contract for the chat feed.
type Handler struct {
	engine  *envelope.Engine
	chat    dispatch.ChatSender
	botName string
	logger  *slog.Logger
}

func NewHandler(engine *envelope.Engine, chat dispatch.ChatSender, botName string, logger *slog.Logger) *Handler {
	return &Handler{
		engine:  engine,
		chat:    chat,
		botName: botName,
		logger:  logger,
	}
}

// Authenticate either completes the subscription validation handshake
// (the platform expects the token echoed back verbatim) or decrypts the
// envelope. Successful decryption is the trust decision; the plaintext
// replaces the raw body for event handling.
func (h *Handler) Authenticate(r *dispatch.Request) dispatch.AuthResult {
	if token := r.Query.Get("validationToken"); token != "" {
		return dispatch.AuthResult{Outcome: dispatch.AuthRespond, Response: token}
	}

	var note notification
	if err := json.Unmarshal(r.Body, &note); err != nil || len(note.Value) == 0 {
		h.logger.Warn("malformed change notification",
			slog.String("error_code", string(types.ErrCodeTrustBadEnvelope)),
			slog.String("source_ip", r.SourceIP))
		return dispatch.AuthResult{Outcome: dispatch.AuthFailed}
	}

	plaintext, err := h.engine.Open(note.Value[0].EncryptedContent)
	if err != nil {
		// The log line carries no stage detail and no key material.
		h.logger.Warn("change notification failed validation",
			slog.String("error_code", string(types.ErrCodeTrustBadEnvelope)),
			slog.String("source_ip", r.SourceIP))
		return dispatch.AuthResult{Outcome: dispatch.AuthFailed}
	}

	return dispatch.AuthResult{Outcome: dispatch.AuthOK, Payload: plaintext}
}

// HandleEvent reacts to a decrypted chat message. The bot's own
// messages are ignored; everything else may earn a reply.
func (h *Handler) HandleEvent(ctx context.Context, payload []byte, sourceIP string) {
	var msg chatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.logger.Warn("decrypted payload is not a chat message",
			slog.String("source_ip", sourceIP))
		return
	}

	sender := ""
	if msg.From.User != nil {
		sender = msg.From.User.DisplayName
	} else if msg.From.Application != nil {
		// Replying to ourselves would loop forever through the
		// subscription feed.
		return
	}
	if sender == "" || sender == h.botName {
		return
	}

	reply := Reply(msg.Body.Content, sender)
	if reply == "" {
		h.logger.Info("chat message with no reply",
			slog.String("sender", sender))
		return
	}

	if _, err := h.chat.Send(ctx, reply); err != nil {
		h.logger.Error("chat reply failed",
			slog.String("error_code", string(types.ErrCodeSinkChatSend)),
			slog.String("error", err.Error()))
	}
}
