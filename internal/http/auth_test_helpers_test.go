package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"cyberwhale/internal/profile"
	"cyberwhale/internal/provider"
	"cyberwhale/internal/session"
)

// fakeGoTrue is a minimal stand-in for the upstream auth API. One accepted
// password, one canonical user; knobs for confirmation flow and logout
// failures.
type fakeGoTrue struct {
	srv *httptest.Server

	mu             sync.Mutex
	acceptPassword string
	autoConfirm    bool
	logoutStatus   int
	userID         string
}

func newFakeGoTrue(t *testing.T) *fakeGoTrue {
	t.Helper()

	f := &fakeGoTrue{
		acceptPassword: "hunter2-hunter2",
		autoConfirm:    true,
		logoutStatus:   http.StatusNoContent,
		userID:         uuid.NewString(),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoTrue) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch r.URL.Path {
	case "/token":
		if r.URL.Query().Get("grant_type") == "password" {
			password, _ := body["password"].(string)
			if password != f.acceptPassword {
				writeProviderError(w, http.StatusBadRequest, "Invalid login credentials")
				return
			}
		}
		writeProviderJSON(w, http.StatusOK, f.sessionBody())
	case "/signup":
		if f.autoConfirm {
			writeProviderJSON(w, http.StatusOK, f.sessionBody())
			return
		}
		email, _ := body["email"].(string)
		writeProviderJSON(w, http.StatusOK, map[string]any{
			"id":    f.userID,
			"email": email,
		})
	case "/logout":
		w.WriteHeader(f.logoutStatus)
	case "/recover":
		writeProviderJSON(w, http.StatusOK, map[string]any{})
	case "/verify":
		writeProviderJSON(w, http.StatusOK, f.sessionBody())
	case "/user":
		writeProviderJSON(w, http.StatusOK, f.sessionBody()["user"])
	default:
		writeProviderError(w, http.StatusNotFound, "unknown endpoint")
	}
}

func (f *fakeGoTrue) sessionBody() map[string]any {
	return map[string]any{
		"access_token":  "access-token",
		"token_type":    "bearer",
		"expires_in":    3600,
		"refresh_token": "refresh-token",
		"user": map[string]any{
			"id":            f.userID,
			"email":         "whale@example.com",
			"user_metadata": map[string]any{"username": "whale"},
		},
	}
}

func (f *fakeGoTrue) setLogoutStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutStatus = status
}

func (f *fakeGoTrue) setAutoConfirm(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoConfirm = on
}

func writeProviderJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeProviderError(w http.ResponseWriter, status int, message string) {
	writeProviderJSON(w, status, map[string]string{
		"error":             "request_failed",
		"error_description": message,
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAuthHandler wires an AuthHandler over a registry whose managers
// talk to the fake upstream.
func newTestAuthHandler(t *testing.T, upstream *fakeGoTrue) *AuthHandler {
	t.Helper()

	logger := testLogger()
	profiles := profile.NewMemoryStore()
	factory := func(nav session.Navigator) *session.Manager {
		client := provider.NewHTTPClient(upstream.srv.URL, "test-key")
		return session.NewManager(client, profiles, nav, logger)
	}
	registry := session.NewRegistry(factory, time.Hour)
	t.Cleanup(registry.Close)

	return NewAuthHandler(registry, "development", time.Hour, logger)
}

func doJSON(handler http.HandlerFunc, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func browserCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == browserCookieName {
			return cookie
		}
	}
	t.Fatal("browser session cookie was not issued")
	return nil
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var state stateResponse
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode state response: %v", err)
	}
	return state
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
	t.Fatal("condition not met before deadline")
}
