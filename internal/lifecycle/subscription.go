package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/Network-Direction/chatbot/internal/graph"
	"github.com/Network-Direction/chatbot/internal/types"
)

const (
	// DefaultSubscriptionLifetime is requested per grant; the platform
	// caps chat message subscriptions at one hour.
	DefaultSubscriptionLifetime = 60 * time.Minute
	// DefaultRenewInterval renews well inside the lifetime so a missed
	// tick or a slow renewal cannot let the subscription lapse.
	DefaultRenewInterval = 55 * time.Minute
)

// SubscriptionAPI is the Graph surface the manager drives.
type SubscriptionAPI interface {
	List(ctx context.Context) ([]types.Subscription, error)
	Create(ctx context.Context, spec graph.SubscriptionSpec) (*types.Subscription, error)
	Renew(ctx context.Context, id string, expiresAt time.Time) (*types.Subscription, error)
}

// SubscriptionConfig describes the one subscription the gateway keeps.
type SubscriptionConfig struct {
	Resource                string
	NotificationURL         string
	ClientState             string
	EncryptionCertificate   string
	EncryptionCertificateID string
	Lifetime                time.Duration
	RenewInterval           time.Duration
}

func (c *SubscriptionConfig) withDefaults() SubscriptionConfig {
	out := *c
	if out.Lifetime == 0 {
		out.Lifetime = DefaultSubscriptionLifetime
	}
	if out.RenewInterval == 0 {
		out.RenewInterval = DefaultRenewInterval
	}
	return out
}

// SubscriptionManager keeps exactly one change notification
// subscription alive for the configured resource.
type SubscriptionManager struct {
	api     SubscriptionAPI
	cfg     SubscriptionConfig
	clock   types.Clock
	logger  *slog.Logger
	alerter Alerter
}

func NewSubscriptionManager(api SubscriptionAPI, cfg SubscriptionConfig, clock types.Clock, alerter Alerter, logger *slog.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		api:     api,
		cfg:     cfg.withDefaults(),
		clock:   clock,
		logger:  logger,
		alerter: alerter,
	}
}

// Ensure makes the subscription current: an existing subscription for
// the resource is renewed in place, otherwise one is created. Creating
// a second subscription for the same resource would double-deliver
// every message, so the query always comes first.
func (m *SubscriptionManager) Ensure(ctx context.Context) error {
	existing, err := m.api.List(ctx)
	if err != nil {
		return err
	}

	expiresAt := m.clock.Now().Add(m.cfg.Lifetime)
	for _, sub := range existing {
		if sub.Resource != m.cfg.Resource {
			continue
		}
		renewed, err := m.api.Renew(ctx, sub.ID, expiresAt)
		if err != nil {
			return err
		}
		m.logger.Info("subscription renewed",
			slog.String("subscription_id", renewed.ID),
			slog.Time("expires_at", renewed.ExpiresAt))
		return nil
	}

	created, err := m.api.Create(ctx, graph.SubscriptionSpec{
		ChangeType:              "created",
		NotificationURL:         m.cfg.NotificationURL,
		Resource:                m.cfg.Resource,
		ExpirationDateTime:      expiresAt.UTC().Format(time.RFC3339),
		ClientState:             m.cfg.ClientState,
		IncludeResourceData:     true,
		EncryptionCertificate:   m.cfg.EncryptionCertificate,
		EncryptionCertificateID: m.cfg.EncryptionCertificateID,
	})
	if err != nil {
		return err
	}
	m.logger.Info("subscription created",
		slog.String("subscription_id", created.ID),
		slog.String("resource", created.Resource),
		slog.Time("expires_at", created.ExpiresAt))
	return nil
}

// Run renews on a fixed interval for the life of the process. Failures
// are alerted and the loop waits for its next tick; a transient Graph
// outage must not permanently drop the feed.
func (m *SubscriptionManager) Run(ctx context.Context) error {
	if err := m.Ensure(ctx); err != nil {
		m.reportFailure(ctx, err)
	}

	ticker := time.NewTicker(m.cfg.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Ensure(ctx); err != nil {
				m.reportFailure(ctx, err)
			}
		}
	}
}

func (m *SubscriptionManager) reportFailure(ctx context.Context, err error) {
	m.logger.Error("subscription renewal failed",
		slog.String("error_code", string(types.ErrCodeLifecycleSubscription)),
		slog.String("resource", m.cfg.Resource),
		slog.String("error", err.Error()))
	if m.alerter == nil {
		return
	}
	if alertErr := m.alerter.Alert(ctx, "Change notification subscription renewal failed"); alertErr != nil {
		m.logger.Warn("operational alert failed", slog.String("error", alertErr.Error()))
	}
}
