package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshMargin is subtracted from the server-reported token lifetime
// to determine when a cached token is treated as expiring.
const DefaultRefreshMargin = 60 * time.Second

// backgroundRefreshTimeout bounds a timer-triggered exchange. No caller is
// waiting on it, so there is no context to inherit a deadline from.
const backgroundRefreshTimeout = 30 * time.Second

// Grant is the result of one token endpoint exchange.
type Grant struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// Exchanger performs one client-credentials exchange against the token
// endpoint. Implementations must be safe for concurrent use; the Manager
// serializes exchanges itself but makes no guarantee about retired ones
// still unwinding.
type Exchanger interface {
	Exchange(ctx context.Context) (*Grant, error)
}

// Config is the immutable credential set supplied once at construction.
type Config struct {
	// ClientID identifies the client to the token endpoint.
	ClientID string

	// ClientSecret authenticates the client. It is never logged.
	ClientSecret string

	// TokenURL is the OAuth2 token endpoint.
	TokenURL string

	// Scopes are joined with a single space on the wire. Order is irrelevant.
	Scopes []string

	// RefreshMargin is subtracted from the server-reported lifetime when
	// computing the cached token's expiry. Defaults to DefaultRefreshMargin.
	RefreshMargin time.Duration

	// DisableAutoRefresh turns off the background timer that refetches the
	// token shortly before it expires. Callers then pay for a synchronous
	// exchange on the first AccessToken call past expiry.
	DisableAutoRefresh bool

	// DisableStaleFallback makes a failed fetch surface its error even when
	// a previously cached token is still structurally present. By default
	// the previous token is served instead, on the theory that an expired
	// token the platform might still accept beats no token at all.
	DisableStaleFallback bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithExchanger replaces the default HTTP token endpoint client. Intended
// for tests and for callers that need custom transports.
func WithExchanger(e Exchanger) Option {
	return func(m *Manager) {
		m.exchanger = e
	}
}

// WithLogger sets the logger used for background refresh outcomes.
// If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager obtains, caches, and transparently refreshes access tokens.
// All methods are safe for concurrent use.
type Manager struct {
	cfg       Config
	exchanger Exchanger
	logger    *slog.Logger
	now       func() time.Time

	// group collapses concurrent fetch-and-cache cycles into one exchange.
	group singleflight.Group

	// mu guards the token state and the background timer handle.
	mu     sync.Mutex
	token  string
	expiry time.Time
	timer  *time.Timer

	// gen is bumped by Close so that an exchange still in flight cannot
	// repopulate state the caller just discarded.
	gen uint64
}

// New creates a Manager for the given credential set. The token endpoint is
// not contacted until the first AccessToken or Refresh call.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("missing client ID")
	}
	if cfg.RefreshMargin < 0 {
		// A negative margin would extend the cached lifetime past the
		// server-reported expiry.
		return nil, fmt.Errorf("negative refresh margin: %v", cfg.RefreshMargin)
	}
	if cfg.RefreshMargin == 0 {
		cfg.RefreshMargin = DefaultRefreshMargin
	}

	m := &Manager{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.exchanger == nil {
		if cfg.TokenURL == "" {
			return nil, fmt.Errorf("missing token URL")
		}
		m.exchanger = NewHTTPExchanger(cfg)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	return m, nil
}

// AccessToken returns a currently valid access token, fetching one if the
// cache is empty or expired. The fast path (valid cached token) never blocks
// on the network. Concurrent callers that require a fetch share a single
// exchange and all receive its outcome.
//
// Returns an *AuthenticationError if a fetch is required, fails, and no
// previously cached token is available to fall back on.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	if token, ok := m.cached(); ok {
		return token, nil
	}

	token, err := m.fetch(ctx)
	if err == nil {
		return token, nil
	}
	if ctx.Err() != nil {
		// The caller gave up; don't mask that with a stale token.
		return "", err
	}

	if stale, ok := m.lastToken(); ok && !m.cfg.DisableStaleFallback {
		// The previous token is past its margin but structurally intact.
		// Serving it gives the caller a chance until the next refresh
		// attempt succeeds.
		m.logger.WarnContext(ctx, "token fetch failed, serving previous token",
			"client_id", m.cfg.ClientID, "error", err)
		return stale, nil
	}

	return "", &AuthenticationError{err: err}
}

// Refresh unconditionally exchanges the credential set for a new token and
// caches it, rearming the background refresh timer on success. If an
// exchange is already in flight, Refresh joins it instead of starting a
// duplicate. On failure the previously cached token state is left untouched.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err := m.fetch(ctx)
	return err
}

// Close cancels any pending background refresh timer and clears the token
// state. Safe to call multiple times. The manager remains usable: a
// subsequent AccessToken call performs a fresh exchange as if newly
// constructed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.token = ""
	m.expiry = time.Time{}
	m.gen++
	return nil
}

// TokenSource adapts the Manager to oauth2.TokenSource so it can drive an
// oauth2.Transport on outbound API requests.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return &managerTokenSource{m: m}
}

// cached returns the current token if it is present and its expiry is still
// in the future.
func (m *Manager) cached() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == "" || !m.now().Before(m.expiry) {
		return "", false
	}
	return m.token, true
}

// lastToken returns the cached token regardless of expiry.
func (m *Manager) lastToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != ""
}

// fetch runs (or joins) the single-flight fetch-and-cache cycle. Callers
// that find an exchange already in flight wait for its result rather than
// issuing a duplicate network call, but still honor their own context.
func (m *Manager) fetch(ctx context.Context) (string, error) {
	ch := m.group.DoChan("exchange", func() (any, error) {
		// The exchange outcome is shared by every joined caller, so it must
		// not die with whichever caller happened to initiate it. The
		// exchanger's own timeout bounds the detached call.
		return m.exchange(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// exchange performs one fetch-and-cache cycle. Exactly one runs at a time
// (enforced by fetch), so token state transitions are strictly ordered.
func (m *Manager) exchange(ctx context.Context) (string, error) {
	m.mu.Lock()
	gen := m.gen
	// A cycle supersedes whatever timer a prior success armed; on failure no
	// new timer is armed, so duplicates cannot accumulate.
	m.stopTimerLocked()
	m.mu.Unlock()

	grant, err := m.exchanger.Exchange(ctx)
	if err != nil {
		return "", err
	}

	lifetime := grant.ExpiresIn - m.cfg.RefreshMargin

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		// Closed while the exchange was in flight. Joined callers still get
		// the token, but the discarded state stays empty.
		return grant.AccessToken, nil
	}

	now := m.now()
	m.token = grant.AccessToken
	if lifetime <= 0 {
		// The margin consumed the entire reported lifetime: never cache as
		// valid, and never arm a timer that would fire immediately.
		m.expiry = now
		return grant.AccessToken, nil
	}
	m.expiry = now.Add(lifetime)

	if !m.cfg.DisableAutoRefresh {
		m.timer = time.AfterFunc(lifetime, func() { m.autoRefresh(gen) })
	}

	return grant.AccessToken, nil
}

// autoRefresh is the background timer callback. Failures are logged and
// swallowed; the previously cached token survives until the next trigger.
func (m *Manager) autoRefresh(gen uint64) {
	m.mu.Lock()
	live := m.gen == gen
	m.mu.Unlock()
	if !live {
		// Manager was closed between the timer firing and this running.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), backgroundRefreshTimeout)
	defer cancel()

	if err := m.Refresh(ctx); err != nil {
		m.logger.ErrorContext(ctx, "background token refresh failed",
			"client_id", m.cfg.ClientID, "error", err)
	}
}

// stopTimerLocked cancels the pending background timer, if any.
// Caller must hold m.mu.
func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// managerTokenSource exposes a Manager as an oauth2.TokenSource.
type managerTokenSource struct {
	m *Manager
}

// Compile-time check that managerTokenSource implements oauth2.TokenSource.
var _ oauth2.TokenSource = (*managerTokenSource)(nil)

// Token returns the manager's current token. oauth2.TokenSource has no
// context parameter, so the exchange (if one is needed) runs under the
// exchanger's own timeout.
func (ts *managerTokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.m.AccessToken(context.Background())
	if err != nil {
		return nil, err
	}

	ts.m.mu.Lock()
	expiry := ts.m.expiry
	ts.m.mu.Unlock()

	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
