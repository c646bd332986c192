package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"cyberwhale/internal/profile"
	"cyberwhale/internal/provider"
)

// defaultLoadTimeout bounds the initial loading state. A timed-out load shows
// a logged-out UI that flips to logged-in once hydration lands; the underlying
// request is never cancelled, only the loading indicator.
const defaultLoadTimeout = 2500 * time.Millisecond

// AppUser is the merged view-model of the provider identity and the profile
// row. It is derived state: recomputed on every session or profile change,
// never stored.
type AppUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl"`
	Role      string    `json:"role"`
	Points    int       `json:"points"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot is the read surface the rest of the application consumes. All
// mutations go through Manager actions or the auth event handler.
type Snapshot struct {
	User            *AppUser
	Session         *provider.Session
	IsLoading       bool
	Err             string
	LoadingTimedOut bool
}

// Metrics receives counters from the manager. Implementations must be safe
// for concurrent use.
type Metrics interface {
	RecordAuthEvent(event string)
	RecordHydration(outcome string)
	RecordAction(action, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RecordAuthEvent(string)    {}
func (noopMetrics) RecordHydration(string)    {}
func (noopMetrics) RecordAction(string, string) {}

// Manager owns the client-side representation of "who is logged in". It
// subscribes to provider auth events, hydrates the profile row into an
// AppUser, and exposes the imperative auth actions. There is exactly one
// writer (the manager itself); everything else observes snapshots.
type Manager struct {
	provider    provider.Client
	profiles    profile.Store
	nav         Navigator
	logger      *slog.Logger
	metrics     Metrics
	loadTimeout time.Duration
	resetURL    string

	mu              sync.Mutex
	session         *provider.Session
	user            *AppUser
	isLoading       bool
	errMsg          string
	loadingTimedOut bool
	initialized     bool
	eventSeen       bool
	subscribers     map[int]func(Snapshot)
	nextSubID       int

	// hydrating enforces the at-most-one-in-flight hydration invariant,
	// protecting against duplicate profile-row creation under double-fire
	// auth events.
	hydrating atomic.Bool

	timer       *time.Timer
	unsubscribe func()
	closed      atomic.Bool
}

// ManagerOption configures a Manager during construction.
type ManagerOption func(*Manager)

// WithLoadTimeout overrides the bounded loading window.
func WithLoadTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.loadTimeout = d
	}
}

// WithMetrics wires a metrics sink.
func WithMetrics(metrics Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithResetRedirectURL sets the absolute URL embedded in recovery emails.
func WithResetRedirectURL(u string) ManagerOption {
	return func(m *Manager) {
		m.resetURL = u
	}
}

// NewManager wires a Manager. Call Start to run the initialization protocol
// and Close on teardown.
func NewManager(p provider.Client, profiles profile.Store, nav Navigator, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		provider:    p,
		profiles:    profiles,
		nav:         nav,
		logger:      logger,
		metrics:     noopMetrics{},
		loadTimeout: defaultLoadTimeout,
		isLoading:   true,
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs the initialization protocol: subscribe to auth events first so
// none fire unobserved during the session fetch, arm the loading timeout,
// then request the current session once.
func (m *Manager) Start(ctx context.Context) {
	m.unsubscribe = m.provider.OnAuthStateChange(m.handleAuthEvent)

	m.timer = time.AfterFunc(m.loadTimeout, m.onLoadTimeout)

	go m.loadInitialSession(ctx)
}

// Close releases the timer and the event subscription. Safe to call more
// than once.
func (m *Manager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Snapshot returns a point-in-time copy of the auth state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers an observer invoked after every state change. The
// returned function removes the observer.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		IsLoading:       m.isLoading,
		Err:             m.errMsg,
		LoadingTimedOut: m.loadingTimedOut,
	}
	if m.session != nil {
		sessionCopy := *m.session
		snap.Session = &sessionCopy
	}
	if m.user != nil {
		userCopy := *m.user
		snap.User = &userCopy
	}
	return snap
}

// notifyLocked snapshots state under the held lock and schedules observer
// delivery outside it.
func (m *Manager) notifyLocked() {
	snap := m.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	go func() {
		for _, fn := range fns {
			fn(snap)
		}
	}()
}

func (m *Manager) onLoadTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isLoading {
		return
	}
	// Availability over consistency: unblock the UI and let a late hydration
	// result flip the state when it arrives. No error is surfaced.
	m.isLoading = false
	m.loadingTimedOut = true
	m.logger.Warn("auth loading timed out, forcing exit from loading state")
	m.notifyLocked()
}

func (m *Manager) loadInitialSession(ctx context.Context) {
	current, err := m.provider.GetSession(ctx)

	m.mu.Lock()
	// An auth event that fired while the fetch was in flight already installed
	// fresher state; applying this result would clobber a live session.
	if m.eventSeen {
		m.initialized = true
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.logger.Error("initial session fetch failed", "error", err)
		m.errMsg = ErrSession.Error()
		m.isLoading = false
		m.initialized = true
		m.notifyLocked()
		m.mu.Unlock()
		return
	}

	// Session state is visible before any hydration work begins.
	m.session = current
	m.mu.Unlock()

	if current == nil {
		m.mu.Lock()
		m.isLoading = false
		m.initialized = true
		m.notifyLocked()
		m.mu.Unlock()
		return
	}

	m.startHydration(ctx, current.User, false)
}

// handleAuthEvent reacts to provider auth-state changes. Events may fire any
// number of times and in surprising orders (a sign-in can be chased by a
// user-updated), so every branch is written to be re-entrant.
func (m *Manager) handleAuthEvent(event provider.AuthEvent, current *provider.Session) {
	m.metrics.RecordAuthEvent(string(event))
	m.logger.Debug("auth state changed", "event", string(event))

	// The session pointer is set synchronously so no reader observes a stale
	// nil while hydration runs. eventSeen marks the initial fetch result as
	// superseded.
	m.mu.Lock()
	m.session = current
	m.eventSeen = true
	m.mu.Unlock()

	switch event {
	case provider.EventSignedIn:
		if current == nil {
			return
		}
		m.startHydration(context.Background(), current.User, true)

	case provider.EventSignedOut:
		m.mu.Lock()
		m.session = nil
		m.user = nil
		m.loadingTimedOut = false
		m.isLoading = false
		m.notifyLocked()
		m.mu.Unlock()

	case provider.EventPasswordRecovery:
		m.nav.Go("/reset-password")
		m.mu.Lock()
		m.isLoading = false
		m.notifyLocked()
		m.mu.Unlock()

	case provider.EventUserUpdated:
		if current == nil {
			return
		}
		m.startHydration(context.Background(), current.User, false)

	default:
		// Informational (e.g. TOKEN_REFRESHED): unblock loading, touch
		// nothing else.
		m.mu.Lock()
		m.isLoading = false
		m.notifyLocked()
		m.mu.Unlock()
	}
}

// startHydration runs the hydration algorithm in the background under the
// single-flight guard. Overlapping triggers are dropped, not queued: the
// in-flight hydration already serves the same session.
func (m *Manager) startHydration(ctx context.Context, authUser provider.AuthUser, navigate bool) {
	if !m.hydrating.CompareAndSwap(false, true) {
		return
	}

	go func() {
		// The guard is released on every exit path, success or failure.
		defer m.hydrating.Store(false)

		user, err := m.hydrate(ctx, authUser)

		installed := false
		m.mu.Lock()
		switch {
		case err != nil:
			// A session without a hydrated profile is a valid, degraded
			// state; the session is kept.
			m.logger.Error("profile hydration failed", "error", err, "user_id", authUser.ID)
			m.errMsg = ErrProfileLoad.Error()
			m.metrics.RecordHydration("error")
		case m.session == nil:
			// Signed out while hydrating. Installing the user now would leave
			// a user without a session.
			m.metrics.RecordHydration("stale")
		default:
			m.user = user
			m.errMsg = ""
			m.loadingTimedOut = false
			m.metrics.RecordHydration("ok")
			installed = true
		}
		m.isLoading = false
		m.initialized = true
		m.notifyLocked()
		m.mu.Unlock()

		if installed && navigate {
			m.redirectAfterSignIn()
		}
	}()
}

// hydrate looks up the profile row for the authenticated user, creating it
// with defaults on first login, and merges it with the identity record.
func (m *Manager) hydrate(ctx context.Context, authUser provider.AuthUser) (*AppUser, error) {
	id, err := uuid.Parse(authUser.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user id %q", ErrProfileLoad, authUser.ID)
	}

	row, found, err := m.profiles.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileLoad, err)
	}

	if !found {
		defaults := profile.NewDefault(id, authUser.Username(), authUser.Email)
		stored, err := m.profiles.Insert(ctx, defaults)
		if err != nil {
			// The user must still be able to use the session even if
			// persistence temporarily fails.
			m.logger.Warn("profile insert failed, using in-memory defaults", "error", err, "user_id", authUser.ID)
			stored = defaults
		}
		row = stored
	}

	return mergeAppUser(authUser, row), nil
}

func mergeAppUser(authUser provider.AuthUser, row profile.Profile) *AppUser {
	return &AppUser{
		ID:        row.ID,
		Username:  row.Username,
		Email:     authUser.Email,
		AvatarURL: row.AvatarURL,
		Role:      authUser.Role(),
		Points:    row.Points,
		Level:     row.Level,
		CreatedAt: row.CreatedAt,
	}
}

// redirectAfterSignIn navigates off the login/register pages to the stored
// returnUrl, or the default route. Sign-ins from anywhere else leave the
// client where it is.
func (m *Manager) redirectAfterSignIn() {
	loc := m.nav.Current()
	if loc == nil {
		return
	}
	path := loc.Path
	if !strings.Contains(path, "/login") && !strings.Contains(path, "/register") {
		return
	}

	target := "/"
	if returnURL := loc.Query().Get("returnUrl"); IsSafeRelativePath(returnURL) {
		target = returnURL
	}
	m.nav.Go(target)
}
