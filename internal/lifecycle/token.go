package lifecycle

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Network-Direction/chatbot/internal/types"
)

const (
	// DefaultRefreshLead schedules each refresh this far before expiry.
	DefaultRefreshLead = 5 * time.Minute
	// refreshRetryDelay spaces out attempts after a failed refresh.
	refreshRetryDelay = time.Minute
)

// TokenExchanger is the identity-provider surface the manager needs.
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (*types.Credential, error)
	Refresh(ctx context.Context, refreshToken types.SecretString) (*types.Credential, error)
}

// Alerter posts operational notices. Lifecycle failures are reported
// there on a best-effort basis.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// TokenManager owns the process-wide credential. It is the single
// writer; readers get a consistent snapshot through Current. The
// background loop refreshes ahead of expiry and persists every new
// credential so a restart can pick up where it left off.
type TokenManager struct {
	oauth   TokenExchanger
	store   *FileStore
	clock   types.Clock
	logger  *slog.Logger
	alerter Alerter

	refreshLead time.Duration
	current     atomic.Pointer[types.Credential]
	installed   chan struct{}
}

func NewTokenManager(oauth TokenExchanger, store *FileStore, clock types.Clock, alerter Alerter, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		oauth:       oauth,
		store:       store,
		clock:       clock,
		logger:      logger,
		alerter:     alerter,
		refreshLead: DefaultRefreshLead,
		installed:   make(chan struct{}, 1),
	}
}

// SetAlerter wires the operational alert sink after construction. The
// chat client that carries alerts reads its token from this manager, so
// the two cannot be built in one pass.
func (m *TokenManager) SetAlerter(a Alerter) {
	m.alerter = a
}

// Current returns the live credential, or nil before the first
// acquisition. The returned value is never mutated.
func (m *TokenManager) Current() *types.Credential {
	return m.current.Load()
}

// Recover loads the persisted credential from a previous run. An
// expired credential is still installed; its refresh token is what the
// loop needs to get going again.
func (m *TokenManager) Recover() error {
	cred, err := m.store.Load()
	if err != nil {
		return err
	}
	if cred == nil {
		m.logger.Info("no persisted credential, waiting for interactive sign-in")
		return nil
	}

	m.install(cred)
	m.logger.Info("credential recovered from disk",
		slog.String("user", cred.User),
		slog.Time("expires_at", cred.ExpiresAt),
		slog.Bool("expired", !cred.Valid(m.clock.Now())))
	return nil
}

// ExchangeCode completes the interactive sign-in and installs the
// resulting credential. Called from the callback route.
func (m *TokenManager) ExchangeCode(ctx context.Context, code string) error {
	cred, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return err
	}

	m.install(cred)
	m.persist(cred)
	m.logger.Info("interactive sign-in complete",
		slog.String("user", cred.User),
		slog.Time("expires_at", cred.ExpiresAt))
	return nil
}

// Run is the refresh loop. It sleeps until shortly before the live
// credential expires, refreshes it, and reschedules. A failed refresh
// is alerted and retried on a short delay; the loop only exits on
// context cancellation.
func (m *TokenManager) Run(ctx context.Context) error {
	for {
		cred := m.Current()
		if cred == nil {
			// Nothing to refresh until sign-in installs a credential.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.installed:
				continue
			}
		}

		wait := m.nextWake(cred)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-m.installed:
			// A newer credential arrived; recompute the schedule.
			timer.Stop()
			continue
		case <-timer.C:
		}

		if err := m.refresh(ctx); err != nil {
			m.logger.Error("token refresh failed",
				slog.String("error_code", string(types.ErrCodeLifecycleTokenRefresh)),
				slog.String("error", err.Error()))
			m.alert(ctx, "Access token refresh failed; will retry shortly")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(refreshRetryDelay):
			}
		}
	}
}

// nextWake computes how long to sleep before refreshing cred. An
// already-stale credential refreshes immediately.
func (m *TokenManager) nextWake(cred *types.Credential) time.Duration {
	wait := cred.ExpiresAt.Add(-m.refreshLead).Sub(m.clock.Now())
	if wait < 0 {
		return 0
	}
	return wait
}

func (m *TokenManager) refresh(ctx context.Context) error {
	cred := m.Current()
	fresh, err := m.oauth.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return err
	}

	m.install(fresh)
	m.persist(fresh)
	m.logger.Info("access token refreshed",
		slog.String("user", fresh.User),
		slog.Time("expires_at", fresh.ExpiresAt))
	return nil
}

func (m *TokenManager) install(cred *types.Credential) {
	m.current.Store(cred)
	select {
	case m.installed <- struct{}{}:
	default:
	}
}

func (m *TokenManager) persist(cred *types.Credential) {
	if err := m.store.Save(cred, m.clock.Now()); err != nil {
		m.logger.Error("persisting credential failed",
			slog.String("error", err.Error()))
	}
}

func (m *TokenManager) alert(ctx context.Context, text string) {
	if m.alerter == nil {
		return
	}
	if err := m.alerter.Alert(ctx, text); err != nil {
		m.logger.Warn("operational alert failed", slog.String("error", err.Error()))
	}
}
