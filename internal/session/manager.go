// Package session owns the authentication lifecycle: loading a saved
// session, probing it, falling back to a human login in a visible
// browser, and persisting the result. The backend defends programmatic
// login hardest of all its surfaces, so expiry is always recovered by
// another manual login, never by replaying credentials.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ktxgo/ktxgo/internal/domain"
	"github.com/ktxgo/ktxgo/internal/store"
)

// ErrAuthTimeout means the operator did not complete the login flow in
// time. Fatal to the run.
var ErrAuthTimeout = errors.New("manual login timed out")

// Bridge is the browser surface the manager needs: start/stop, the
// headless flip around manual login, and state extraction.
type Bridge interface {
	Start(ctx context.Context, headless bool) error
	Restart(ctx context.Context, headless bool) error
	Close()
	Headless() bool
	SessionState() ([]byte, error)
	OpenLogin(ctx context.Context) error
	OpenSearch(ctx context.Context) error
}

// Probe checks whether the page behind the bridge is authenticated.
type Probe interface {
	LoggedIn(ctx context.Context, sess *domain.Session) bool
	Profile(ctx context.Context, sess *domain.Session) (*domain.Profile, error)
}

// Store persists the serialized session blob.
type Store interface {
	Load() ([]byte, error)
	Save(blob []byte) error
	Clear() error
}

type Options struct {
	// Headless is the run's preference for automated operation. Manual
	// login always happens in a visible window regardless.
	Headless bool
	// LoginTimeout bounds the wait for a human to finish logging in.
	LoginTimeout time.Duration
	// StableChecks is how many consecutive positive probes count as
	// logged in, absorbing session propagation delay.
	StableChecks  int
	ProbeInterval time.Duration
	// PollInterval paces the outer wait between stability probes.
	PollInterval time.Duration
}

func (o *Options) fillDefaults() {
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = 5 * time.Minute
	}
	if o.StableChecks <= 0 {
		o.StableChecks = 2
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = 350 * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
}

// Manager is the sole writer of the run's Session value.
type Manager struct {
	bridge Bridge
	probe  Probe
	store  Store
	opts   Options
	logger *slog.Logger

	session *domain.Session
	started bool

	sleep func(ctx context.Context, d time.Duration) error
}

func NewManager(bridge Bridge, probe Probe, st Store, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	opts.fillDefaults()
	return &Manager{
		bridge: bridge,
		probe:  probe,
		store:  st,
		opts:   opts,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Session returns the current session value, which may be nil or
// invalid before the first EnsureAuthenticated.
func (m *Manager) Session() *domain.Session { return m.session }

// EnsureAuthenticated returns a valid session, establishing one if
// needed: saved state first, then a manual login in a visible browser.
func (m *Manager) EnsureAuthenticated(ctx context.Context) (*domain.Session, error) {
	if m.session != nil && m.session.Valid {
		return m.session, nil
	}

	if _, err := m.store.Load(); err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			m.logger.Warn("saved session unreadable, discarding", "error", err)
			_ = m.store.Clear()
		}
	}

	if !m.started {
		if err := m.bridge.Start(ctx, m.opts.Headless); err != nil {
			return nil, fmt.Errorf("start browser: %w", err)
		}
		m.started = true
	}

	if m.loginStable(ctx, 2*m.opts.ProbeInterval) {
		m.logger.Info("logged in via saved session")
		return m.adopt(ctx)
	}

	return m.manualLogin(ctx)
}

// Invalidate marks the session expired. The next EnsureAuthenticated
// repeats the manual-login path.
func (m *Manager) Invalidate() {
	if m.session != nil {
		m.session.Valid = false
	}
}

// Reauthenticate is the mid-run recovery path for an expiry signal.
func (m *Manager) Reauthenticate(ctx context.Context) (*domain.Session, error) {
	m.Invalidate()
	return m.EnsureAuthenticated(ctx)
}

// Close releases the browser. Safe on every exit path.
func (m *Manager) Close() {
	m.bridge.Close()
	m.started = false
}

// manualLogin presents the native login form in a visible window and
// waits for the operator, then persists the session and returns the
// browser to the run's preferred mode.
func (m *Manager) manualLogin(ctx context.Context) (*domain.Session, error) {
	if m.bridge.Headless() {
		m.logger.Info("no usable session, restarting browser for manual login")
		if err := m.bridge.Restart(ctx, false); err != nil {
			return nil, fmt.Errorf("restart browser for login: %w", err)
		}
	}
	if err := m.bridge.OpenLogin(ctx); err != nil {
		return nil, fmt.Errorf("open login page: %w", err)
	}

	m.logger.Info("please log in through the browser window", "timeout", m.opts.LoginTimeout)
	deadline := time.Now().Add(m.opts.LoginTimeout)
	for {
		if m.loginStable(ctx, 2*m.opts.ProbeInterval) {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrAuthTimeout
		}
		if err := m.sleep(ctx, m.opts.PollInterval); err != nil {
			return nil, err
		}
	}

	blob, err := m.bridge.SessionState()
	if err != nil {
		return nil, fmt.Errorf("extract session state: %w", err)
	}
	if err := m.store.Save(blob); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	m.logger.Info("login successful, session saved")

	if m.opts.Headless && !m.bridge.Headless() {
		if err := m.bridge.Restart(ctx, true); err != nil {
			return nil, fmt.Errorf("restart browser headless: %w", err)
		}
		if !m.loginStable(ctx, 2*m.opts.ProbeInterval) {
			return nil, fmt.Errorf("%w: saved session expired immediately, try running with --headless=false", ErrAuthTimeout)
		}
	} else if err := m.bridge.OpenSearch(ctx); err != nil {
		return nil, fmt.Errorf("open search page: %w", err)
	}

	return m.adopt(ctx)
}

// adopt captures the live browser state as the run's session.
func (m *Manager) adopt(ctx context.Context) (*domain.Session, error) {
	blob, err := m.bridge.SessionState()
	if err != nil {
		return nil, fmt.Errorf("extract session state: %w", err)
	}
	m.session = &domain.Session{State: blob, Valid: true}

	if profile, err := m.probe.Profile(ctx, m.session); err == nil {
		m.logger.Info("authenticated", "member", profile.MemberNo, "name", profile.Name)
	}
	return m.session, nil
}

// loginStable requires StableChecks consecutive positive probes within
// the window. Any probe failure resets the streak; the caller decides
// whether to keep waiting.
func (m *Manager) loginStable(ctx context.Context, window time.Duration) bool {
	required := m.opts.StableChecks
	deadline := time.Now().Add(window)
	streak := 0
	for {
		if ctx.Err() != nil {
			return false
		}
		if m.probe.LoggedIn(ctx, m.session) {
			streak++
			if streak >= required {
				return true
			}
		} else {
			streak = 0
		}
		if time.Now().After(deadline) {
			return false
		}
		if err := m.sleep(ctx, m.opts.ProbeInterval); err != nil {
			return false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
