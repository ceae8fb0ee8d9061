package dispatch

import (
	"context"
	"time"
)

// AuditRecord is the flat row a handler writes for every event it keeps.
// ChatID is empty when the event was not forwarded to chat.
type AuditRecord struct {
	Device      string
	Site        string
	Event       string
	Description string
	LoggedAt    time.Time
	SourceIP    string
	ChatID      string
}

// ChatSender delivers rendered messages to the event channel. Send
// returns the platform's message identifier for the audit trail. Alert
// posts an operational notice to a separate alerting channel and is
// best-effort; callers ignore its error beyond logging.
type ChatSender interface {
	Send(ctx context.Context, htmlBody string) (string, error)
	Alert(ctx context.Context, text string) error
}

// AuditStore persists audit records. Implementations must be safe for
// concurrent use by request workers.
type AuditStore interface {
	Record(ctx context.Context, rec AuditRecord) error
}
