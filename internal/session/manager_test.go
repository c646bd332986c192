package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"cyberwhale/internal/profile"
	"cyberwhale/internal/provider"
)

// fakeProvider implements provider.Client with overridable func fields and a
// synchronous listener list, mirroring the real client's event delivery.
type fakeProvider struct {
	mu        sync.Mutex
	listeners map[int]provider.Listener
	nextID    int

	getSession    func(ctx context.Context) (*provider.Session, error)
	signIn        func(ctx context.Context, email, password string) (*provider.Session, error)
	signInIDToken func(ctx context.Context, providerName, idToken string) (*provider.Session, error)
	signUp        func(ctx context.Context, email, password, username string) (*provider.SignUpResult, error)
	signOut       func(ctx context.Context) error
	resetPassword func(ctx context.Context, email, redirectTo string) error
	updateUser    func(ctx context.Context, update provider.UserUpdate) (*provider.AuthUser, error)
	verifyOTP     func(ctx context.Context, email, token, otpType string) (*provider.Session, error)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{listeners: make(map[int]provider.Listener)}
}

func (f *fakeProvider) OnAuthStateChange(fn provider.Listener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeProvider) emit(event provider.AuthEvent, session *provider.Session) {
	f.mu.Lock()
	fns := make([]provider.Listener, 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(event, session)
	}
}

func (f *fakeProvider) GetSession(ctx context.Context) (*provider.Session, error) {
	if f.getSession != nil {
		return f.getSession(ctx)
	}
	return nil, nil
}

func (f *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*provider.Session, error) {
	if f.signIn != nil {
		return f.signIn(ctx, email, password)
	}
	return nil, errors.New("signIn not configured")
}

func (f *fakeProvider) SignInWithIDToken(ctx context.Context, providerName, idToken string) (*provider.Session, error) {
	if f.signInIDToken != nil {
		return f.signInIDToken(ctx, providerName, idToken)
	}
	return nil, errors.New("signInIDToken not configured")
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password, username string) (*provider.SignUpResult, error) {
	if f.signUp != nil {
		return f.signUp(ctx, email, password, username)
	}
	return nil, errors.New("signUp not configured")
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	if f.signOut != nil {
		return f.signOut(ctx)
	}
	return nil
}

func (f *fakeProvider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	if f.resetPassword != nil {
		return f.resetPassword(ctx, email, redirectTo)
	}
	return nil
}

func (f *fakeProvider) UpdateUser(ctx context.Context, update provider.UserUpdate) (*provider.AuthUser, error) {
	if f.updateUser != nil {
		return f.updateUser(ctx, update)
	}
	return nil, errors.New("updateUser not configured")
}

func (f *fakeProvider) VerifyOTP(ctx context.Context, email, token, otpType string) (*provider.Session, error) {
	if f.verifyOTP != nil {
		return f.verifyOTP(ctx, email, token, otpType)
	}
	return nil, errors.New("verifyOTP not configured")
}

// countingStore wraps a MemoryStore to count inserts and optionally hold
// lookups open until released.
type countingStore struct {
	*profile.MemoryStore
	inserts   atomic.Int32
	findGate  chan struct{}
	insertErr error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: profile.NewMemoryStore()}
}

func (s *countingStore) Find(ctx context.Context, id uuid.UUID) (profile.Profile, bool, error) {
	if s.findGate != nil {
		<-s.findGate
	}
	return s.MemoryStore.Find(ctx, id)
}

func (s *countingStore) Insert(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	s.inserts.Add(1)
	if s.insertErr != nil {
		return profile.Profile{}, s.insertErr
	}
	return s.MemoryStore.Insert(ctx, p)
}

func testSession(id uuid.UUID, email string) *provider.Session {
	return &provider.Session{
		AccessToken:  "token-" + id.String(),
		TokenType:    "bearer",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		User: provider.AuthUser{
			ID:           id.String(),
			Email:        email,
			UserMetadata: map[string]any{"username": "whale"},
		},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func newTestManager(t *testing.T, p provider.Client, store profile.Store, opts ...ManagerOption) (*Manager, *RedirectRecorder) {
	t.Helper()
	recorder := NewRedirectRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(p, store, recorder, logger, opts...)
	t.Cleanup(m.Close)
	return m, recorder
}

func TestStartWithExistingSessionHydratesUser(t *testing.T) {
	id := uuid.New()
	fake := newFakeProvider()
	fake.getSession = func(context.Context) (*provider.Session, error) {
		return testSession(id, "whale@example.com"), nil
	}
	store := newCountingStore()

	m, _ := newTestManager(t, fake, store)
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		snap := m.Snapshot()
		return !snap.IsLoading && snap.User != nil
	})

	snap := m.Snapshot()
	if snap.User.ID != id {
		t.Fatalf("user id = %v, want %v", snap.User.ID, id)
	}
	if snap.User.Username != "whale" {
		t.Fatalf("username = %q, want signup metadata", snap.User.Username)
	}
	if snap.User.Level != 1 || snap.User.Points != 0 {
		t.Fatalf("default gamification fields wrong: %+v", snap.User)
	}
	if snap.Session == nil {
		t.Fatal("user set without session")
	}
	if got := store.inserts.Load(); got != 1 {
		t.Fatalf("inserts = %d, want 1 (first login creates the row)", got)
	}
}

func TestStartWithoutSessionIsUnauthenticated(t *testing.T) {
	fake := newFakeProvider()
	m, _ := newTestManager(t, fake, newCountingStore())
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		return !m.Snapshot().IsLoading
	})

	snap := m.Snapshot()
	if snap.User != nil || snap.Session != nil {
		t.Fatalf("expected signed-out state, got %+v", snap)
	}
	if snap.Err != "" {
		t.Fatalf("unexpected error %q", snap.Err)
	}
}

func TestStartSessionFetchErrorSurfacesMessage(t *testing.T) {
	fake := newFakeProvider()
	fake.getSession = func(context.Context) (*provider.Session, error) {
		return nil, errors.New("network down")
	}

	m, _ := newTestManager(t, fake, newCountingStore())
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		return !m.Snapshot().IsLoading
	})

	snap := m.Snapshot()
	if snap.Err != ErrSession.Error() {
		t.Fatalf("error = %q, want %q", snap.Err, ErrSession.Error())
	}
	if snap.User != nil {
		t.Fatal("user set despite session fetch failure")
	}
}

func TestLoadingTimeoutUnblocksWithoutError(t *testing.T) {
	release := make(chan struct{})
	fake := newFakeProvider()
	fake.getSession = func(ctx context.Context) (*provider.Session, error) {
		<-release
		return nil, nil
	}

	m, _ := newTestManager(t, fake, newCountingStore(), WithLoadTimeout(20*time.Millisecond))
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		snap := m.Snapshot()
		return !snap.IsLoading && snap.LoadingTimedOut
	})

	snap := m.Snapshot()
	if snap.Err != "" {
		t.Fatalf("timeout surfaced an error: %q", snap.Err)
	}

	close(release)
}

func TestLateSessionFlipsTimedOutState(t *testing.T) {
	id := uuid.New()
	release := make(chan struct{})
	fake := newFakeProvider()
	fake.getSession = func(ctx context.Context) (*provider.Session, error) {
		<-release
		return testSession(id, "late@example.com"), nil
	}

	m, _ := newTestManager(t, fake, newCountingStore(), WithLoadTimeout(20*time.Millisecond))
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		return m.Snapshot().LoadingTimedOut
	})

	close(release)

	waitFor(t, time.Second, func() bool {
		return m.Snapshot().User != nil
	})

	if snap := m.Snapshot(); snap.LoadingTimedOut {
		t.Fatal("timed-out flag still set after late session hydrated")
	}
}

func TestSignedInDuringInitialFetchKeepsSession(t *testing.T) {
	id := uuid.New()
	release := make(chan struct{})
	fake := newFakeProvider()
	fake.getSession = func(ctx context.Context) (*provider.Session, error) {
		<-release
		return nil, nil
	}

	m, _ := newTestManager(t, fake, newCountingStore())
	m.Start(context.Background())

	// Sign-in lands while the initial fetch is still in flight; the stale nil
	// result must not clobber the live session.
	fake.emit(provider.EventSignedIn, testSession(id, "whale@example.com"))
	close(release)

	waitFor(t, time.Second, func() bool {
		return m.Snapshot().User != nil
	})

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		snap := m.Snapshot()
		if snap.User != nil && snap.Session == nil {
			t.Fatalf("user %q present with nil session", snap.User.Username)
		}
		time.Sleep(2 * time.Millisecond)
	}

	snap := m.Snapshot()
	if snap.Session == nil || snap.User == nil {
		t.Fatalf("want authenticated state, got user=%v session=%v", snap.User, snap.Session)
	}
}

func TestSignedOutDuringHydrationLeavesNoUser(t *testing.T) {
	id := uuid.New()
	release := make(chan struct{})
	fake := newFakeProvider()

	store := newCountingStore()
	store.findGate = release

	m, _ := newTestManager(t, fake, store)
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		return !m.Snapshot().IsLoading
	})

	fake.emit(provider.EventSignedIn, testSession(id, "whale@example.com"))
	fake.emit(provider.EventSignedOut, nil)
	close(release)

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		snap := m.Snapshot()
		if snap.User != nil {
			t.Fatalf("user %q installed after sign-out", snap.User.Username)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSignedInEventHydratesAndRedirects(t *testing.T) {
	id := uuid.New()
	fake := newFakeProvider()

	m, recorder := newTestManager(t, fake, newCountingStore())
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		return !m.Snapshot().IsLoading
	})

	recorder.SetCurrent("/login?returnUrl=%2Fchallenges")
	fake.emit(provider.EventSignedIn, testSession(id, "whale@example.com"))

	var got string
	waitFor(t, time.Second, func() bool {
		if target := recorder.Consume(); target != "" {
			got = target
		}
		return got != ""
	})
	if got != "/challenges" {
		t.Fatalf("redirect = %q, want /challenges", got)
	}
}

func TestSignedInFromOtherPageDoesNotRedirect(t *testing.T) {
	id := uuid.New()
	fake := newFakeProvider()

	m, recorder := newTestManager(t, fake, newCountingStore())
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		return !m.Snapshot().IsLoading
	})

	recorder.SetCurrent("/knowledge")
	fake.emit(provider.EventSignedIn, testSession(id, "whale@example.com"))

	waitFor(t, time.Second, func() bool {
		return m.Snapshot().User != nil
	})
	// Give a pending redirect a chance to land before asserting none did.
	time.Sleep(20 * time.Millisecond)

	if got := recorder.Consume(); got != "" {
		t.Fatalf("unexpected redirect %q", got)
	}
}

func TestSignedInRejectsUnsafeReturnURL(t *testing.T) {
	id := uuid.New()
	fake := newFakeProvider()

	m, recorder := newTestManager(t, fake, newCountingStore())
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		return !m.Snapshot().IsLoading
	})

	recorder.SetCurrent("/login?returnUrl=https%3A%2F%2Fevil.example")
	fake.emit(provider.EventSignedIn, testSession(id, "whale@example.com"))

	var got string
	waitFor(t, time.Second, func() bool {
		if target := recorder.Consume(); target != "" {
			got = target
		}
		return got != ""
	})
	if got != "/" {
		t.Fatalf("redirect = %q, want default route", got)
	}
}

func TestSignedOutIsIdempotent(t *testing.T) {
	id := uuid.New()
	fake := newFakeProvider()
	fake.getSession = func(context.Context) (*provider.Session, error) {
		return testSession(id, "whale@example.com"), nil
	}

	m, _ := newTestManager(t, fake, newCountingStore())
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		return m.Snapshot().User != nil
	})

	for i := 0; i < 3; i++ {
		fake.emit(provider.EventSignedOut, nil)

		snap := m.Snapshot()
		if snap.User != nil || snap.Session != nil {
			t.Fatalf("emit %d: state not cleared: %+v", i, snap)
		}
		if snap.LoadingTimedOut {
			t.Fatalf("emit %d: timed-out flag survived sign-out", i)
		}
	}
}

func TestSingleFlightHydration(t *testing.T) {
	id := uuid.New()
	fake := newFakeProvider()
	store := newCountingStore()
	store.findGate = make(chan struct{})

	m, _ := newTestManager(t, fake, store)
	m.Start(context.Background())

	session := testSession(id, "whale@example.com")
	// Double-fire: the second event lands while the first hydration is
	// still blocked inside Find.
	fake.emit(provider.EventSignedIn, session)
	fake.emit(provider.EventSignedIn, session)

	close(store.findGate)

	waitFor(t, time.Second, func() bool {
		return m.Snapshot().User != nil
	})

	if got := store.inserts.Load(); got != 1 {
		t.Fatalf("inserts = %d, want exactly 1 under concurrent sign-in events", got)
	}
}

func TestUserImpliesSessionInvariant(t *testing.T) {
	id := uuid.New()
	fake := newFakeProvider()
	fake.getSession = func(context.Context) (*provider.Session, error) {
		return testSession(id, "whale@example.com"), nil
	}

	m, _ := newTestManager(t, fake, newCountingStore())

	var violation atomic.Bool
	unsubscribe := m.Subscribe(func(snap Snapshot) {
		if snap.User != nil && snap.Session == nil {
			violation.Store(true)
		}
	})
	defer unsubscribe()

	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		return m.Snapshot().User != nil
	})

	fake.emit(provider.EventSignedOut, nil)
	fake.emit(provider.EventSignedIn, testSession(id, "whale@example.com"))

	waitFor(t, time.Second, func() bool {
		return m.Snapshot().User != nil
	})

	if violation.Load() {
		t.Fatal("observed a snapshot with a user but no session")
	}
}

func TestHydrationInsertFailureFallsBackToDefaults(t *testing.T) {
	id := uuid.New()
	fake := newFakeProvider()
	fake.getSession = func(context.Context) (*provider.Session, error) {
		return testSession(id, "whale@example.com"), nil
	}
	store := newCountingStore()
	store.insertErr = errors.New("disk full")

	m, _ := newTestManager(t, fake, store)
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		return m.Snapshot().User != nil
	})

	snap := m.Snapshot()
	if snap.User.Username != "whale" {
		t.Fatalf("fallback user = %+v, want defaults from signup metadata", snap.User)
	}
	if snap.Err != "" {
		t.Fatalf("insert fallback surfaced an error: %q", snap.Err)
	}
}

func TestHydrationFindFailureKeepsSession(t *testing.T) {
	id := uuid.New()
	fake := newFakeProvider()
	fake.getSession = func(context.Context) (*provider.Session, error) {
		return testSession(id, "whale@example.com"), nil
	}
	store := &failingFindStore{}

	m, _ := newTestManager(t, fake, store)
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		snap := m.Snapshot()
		return !snap.IsLoading && snap.Err != ""
	})

	snap := m.Snapshot()
	if snap.Session == nil {
		t.Fatal("session dropped on profile load failure")
	}
	if snap.User != nil {
		t.Fatal("user populated despite profile load failure")
	}
	if snap.Err != ErrProfileLoad.Error() {
		t.Fatalf("error = %q, want %q", snap.Err, ErrProfileLoad.Error())
	}
}

type failingFindStore struct{}

func (failingFindStore) Find(context.Context, uuid.UUID) (profile.Profile, bool, error) {
	return profile.Profile{}, false, errors.New("connection refused")
}

func (failingFindStore) Insert(context.Context, profile.Profile) (profile.Profile, error) {
	return profile.Profile{}, errors.New("connection refused")
}

func (failingFindStore) Update(context.Context, uuid.UUID, profile.Update) (profile.Profile, error) {
	return profile.Profile{}, errors.New("connection refused")
}

func (failingFindStore) AddPoints(context.Context, uuid.UUID, int) (profile.Profile, error) {
	return profile.Profile{}, errors.New("connection refused")
}

func TestPasswordRecoveryNavigates(t *testing.T) {
	fake := newFakeProvider()
	m, recorder := newTestManager(t, fake, newCountingStore())
	m.Start(context.Background())

	fake.emit(provider.EventPasswordRecovery, nil)

	if got := recorder.Consume(); got != "/reset-password" {
		t.Fatalf("redirect = %q, want /reset-password", got)
	}
}

func TestExistingProfileIsNotRecreated(t *testing.T) {
	id := uuid.New()
	fake := newFakeProvider()
	fake.getSession = func(context.Context) (*provider.Session, error) {
		return testSession(id, "whale@example.com"), nil
	}
	store := newCountingStore()
	if _, err := store.MemoryStore.Insert(context.Background(), profile.Profile{
		ID:       id,
		Username: "veteran",
		Points:   1200,
		Level:    4,
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	m, _ := newTestManager(t, fake, store)
	m.Start(context.Background())

	waitFor(t, time.Second, func() bool {
		return m.Snapshot().User != nil
	})

	snap := m.Snapshot()
	if snap.User.Username != "veteran" || snap.User.Points != 1200 {
		t.Fatalf("existing profile overwritten: %+v", snap.User)
	}
	if got := store.inserts.Load(); got != 0 {
		t.Fatalf("inserts = %d, want 0 for an existing profile", got)
	}
}

func TestConcurrentSnapshotAccess(t *testing.T) {
	id := uuid.New()
	fake := newFakeProvider()
	m, _ := newTestManager(t, fake, newCountingStore())
	m.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if n%2 == 0 {
					_ = m.Snapshot()
				} else if j%2 == 0 {
					fake.emit(provider.EventSignedIn, testSession(id, fmt.Sprintf("u%d@example.com", n)))
				} else {
					fake.emit(provider.EventSignedOut, nil)
				}
			}
		}(i)
	}
	wg.Wait()
}
