package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Network-Direction/chatbot/internal/dispatch"
	"github.com/Network-Direction/chatbot/internal/types"
)

// mockDBTX captures Exec calls; Query and QueryRow are unused by the
// audit repo.
type mockDBTX struct {
	execSQL  []string
	execArgs [][]any
	execErr  error
}

func (m *mockDBTX) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execSQL = append(m.execSQL, sql)
	m.execArgs = append(m.execArgs, args)
	return pgconn.CommandTag{}, m.execErr
}

func (m *mockDBTX) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("unexpected Query")
}

func (m *mockDBTX) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("unexpected QueryRow")
}

func TestAuditRepoRecord(t *testing.T) {
	mock := &mockDBTX{}
	repo := NewAuditRepo(mock)

	rec := dispatch.AuditRecord{
		Device:      "ap-01",
		Site:        "HQ",
		Event:       "AP_CONNECTED",
		Description: "AP connected to cloud",
		LoggedAt:    time.Date(2024, 3, 1, 10, 30, 45, 0, time.UTC),
		SourceIP:    "203.0.113.9",
		ChatID:      "msg-1",
	}
	require.NoError(t, repo.Record(context.Background(), rec))

	require.Len(t, mock.execArgs, 1)
	args := mock.execArgs[0]
	require.Len(t, args, 9)

	_, err := uuid.Parse(args[0].(string))
	assert.NoError(t, err, "first column is a generated uuid")
	assert.Equal(t, "ap-01", args[1])
	assert.Equal(t, "HQ", args[2])
	assert.Equal(t, "AP_CONNECTED", args[3])
	assert.Equal(t, "AP connected to cloud", args[4])
	assert.Equal(t, "2024-03-01", args[5])
	assert.Equal(t, "10:30:45", args[6])
	assert.Equal(t, "203.0.113.9", args[7])
	assert.Equal(t, "msg-1", args[8])
}

func TestAuditRepoRecordUsesParameterizedSQL(t *testing.T) {
	mock := &mockDBTX{}
	repo := NewAuditRepo(mock)

	rec := dispatch.AuditRecord{
		Description: "'); DROP TABLE events; --",
		LoggedAt:    time.Now(),
	}
	require.NoError(t, repo.Record(context.Background(), rec))

	require.Len(t, mock.execSQL, 1)
	assert.NotContains(t, mock.execSQL[0], "DROP TABLE",
		"values travel as parameters, never spliced into the statement")
	assert.Contains(t, mock.execSQL[0], "$9")
}

func TestAuditRepoRecordMapsError(t *testing.T) {
	mock := &mockDBTX{execErr: errors.New("connection refused")}
	repo := NewAuditRepo(mock)

	err := repo.Record(context.Background(), dispatch.AuditRecord{LoggedAt: time.Now()})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeSinkAuditStore, appErr.Code)
}
