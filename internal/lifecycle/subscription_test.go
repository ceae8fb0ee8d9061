package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Network-Direction/chatbot/internal/graph"
	"github.com/Network-Direction/chatbot/internal/types"
)

type fakeSubAPI struct {
	existing []types.Subscription
	listErr  error
	created  []graph.SubscriptionSpec
	renewed  []string
}

func (f *fakeSubAPI) List(_ context.Context) ([]types.Subscription, error) {
	return f.existing, f.listErr
}

func (f *fakeSubAPI) Create(_ context.Context, spec graph.SubscriptionSpec) (*types.Subscription, error) {
	f.created = append(f.created, spec)
	return &types.Subscription{ID: "sub-new", Resource: spec.Resource}, nil
}

func (f *fakeSubAPI) Renew(_ context.Context, id string, expiresAt time.Time) (*types.Subscription, error) {
	f.renewed = append(f.renewed, id)
	return &types.Subscription{ID: id, ExpiresAt: expiresAt}, nil
}

type frozenClock struct{ t time.Time }

func (c frozenClock) Now() time.Time { return c.t }

func newSubManager(api SubscriptionAPI, alerter Alerter) *SubscriptionManager {
	return NewSubscriptionManager(api, SubscriptionConfig{
		Resource:                "/chats/chat-events/messages",
		NotificationURL:         "https://gw.example.com/chat",
		EncryptionCertificate:   "base64-cert",
		EncryptionCertificateID: "gateway-cert",
	}, frozenClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}, alerter, discard())
}

func TestEnsureCreatesWhenAbsent(t *testing.T) {
	api := &fakeSubAPI{}
	m := newSubManager(api, nil)

	require.NoError(t, m.Ensure(context.Background()))

	require.Len(t, api.created, 1)
	assert.Empty(t, api.renewed)

	spec := api.created[0]
	assert.Equal(t, "created", spec.ChangeType)
	assert.Equal(t, "/chats/chat-events/messages", spec.Resource)
	assert.True(t, spec.IncludeResourceData)
	assert.Equal(t, "base64-cert", spec.EncryptionCertificate)
	assert.Equal(t, "2024-03-01T11:00:00Z", spec.ExpirationDateTime)
}

func TestEnsureRenewsExisting(t *testing.T) {
	api := &fakeSubAPI{existing: []types.Subscription{
		{ID: "sub-other", Resource: "/chats/other/messages"},
		{ID: "sub-1", Resource: "/chats/chat-events/messages"},
	}}
	m := newSubManager(api, nil)

	require.NoError(t, m.Ensure(context.Background()))

	assert.Equal(t, []string{"sub-1"}, api.renewed)
	assert.Empty(t, api.created, "an existing subscription must never be duplicated")
}

func TestEnsurePropagatesListFailure(t *testing.T) {
	api := &fakeSubAPI{listErr: errors.New("graph down")}
	m := newSubManager(api, nil)

	require.Error(t, m.Ensure(context.Background()))
	assert.Empty(t, api.created)
}

func TestRunAlertsOnFailureAndKeepsGoing(t *testing.T) {
	api := &fakeSubAPI{listErr: errors.New("graph down")}
	alerter := &fakeAlerter{}
	m := newSubManager(api, alerter)
	m.cfg.RenewInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := m.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	alerter.mu.Lock()
	defer alerter.mu.Unlock()
	assert.GreaterOrEqual(t, len(alerter.texts), 2, "the loop retries after a failed renewal")
}

func TestConfigDefaults(t *testing.T) {
	m := NewSubscriptionManager(&fakeSubAPI{}, SubscriptionConfig{Resource: "r"}, frozenClock{}, nil, discard())
	assert.Equal(t, DefaultSubscriptionLifetime, m.cfg.Lifetime)
	assert.Equal(t, DefaultRenewInterval, m.cfg.RenewInterval)
}
