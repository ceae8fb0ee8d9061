package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/Network-Direction/chatbot/internal/dispatch"
	"github.com/Network-Direction/chatbot/internal/types"
)

// AuditRepo persists one row per handled event. It satisfies
// dispatch.AuditStore.
type AuditRepo struct {
	db DBTX
}

func NewAuditRepo(db DBTX) *AuditRepo {
	return &AuditRepo{db: db}
}

const insertEventSQL = `
INSERT INTO events (id, device, site, event, description, log_date, log_time, source_ip, chat_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Record writes the audit row. The log instant is split into date and
// time columns to keep the operator reports that group by day cheap.
func (r *AuditRepo) Record(ctx context.Context, rec dispatch.AuditRecord) error {
	logged := rec.LoggedAt.UTC()
	_, err := r.db.Exec(ctx, insertEventSQL,
		uuid.New().String(),
		rec.Device,
		rec.Site,
		rec.Event,
		rec.Description,
		logged.Format("2006-01-02"),
		logged.Format("15:04:05"),
		rec.SourceIP,
		rec.ChatID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeSinkAuditStore, "inserting audit row", err)
	}
	return nil
}
