package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type eventLog struct {
	mu     sync.Mutex
	events []AuthEvent
}

func (l *eventLog) record(event AuthEvent, _ *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []AuthEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuthEvent, len(l.events))
	copy(out, l.events)
	return out
}

func sessionBody(userID string) map[string]any {
	return map[string]any{
		"access_token":  "access-" + userID,
		"token_type":    "bearer",
		"expires_in":    3600,
		"refresh_token": "refresh-" + userID,
		"user": map[string]any{
			"id":            userID,
			"email":         "whale@example.com",
			"user_metadata": map[string]any{"username": "whale"},
		},
	}
}

func TestSignInWithPasswordEmitsSignedIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Fatalf("unexpected request %s %s", r.URL.Path, r.URL.RawQuery)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Fatalf("apikey header = %q", got)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["email"] != "whale@example.com" {
			t.Fatalf("email = %q", body["email"])
		}

		_ = json.NewEncoder(w).Encode(sessionBody("user-1"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "anon-key", WithHTTPClient(server.Client()))
	log := &eventLog{}
	defer client.OnAuthStateChange(log.record)()

	session, err := client.SignInWithPassword(context.Background(), "whale@example.com", "secret")
	if err != nil {
		t.Fatalf("SignInWithPassword() error = %v", err)
	}
	if session.AccessToken != "access-user-1" {
		t.Fatalf("access token = %q", session.AccessToken)
	}
	if session.User.ID != "user-1" {
		t.Fatalf("user id = %q", session.User.ID)
	}
	if session.ExpiresAt.Before(time.Now()) {
		t.Fatal("expires_in not pinned to a future deadline")
	}

	events := log.all()
	if len(events) != 1 || events[0] != EventSignedIn {
		t.Fatalf("events = %v, want [SIGNED_IN]", events)
	}

	current, err := client.GetSession(context.Background())
	if err != nil || current == nil {
		t.Fatalf("GetSession() = %v, %v", current, err)
	}
}

func TestSignInWithPasswordBadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error_description": "Invalid login credentials"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "anon-key", WithHTTPClient(server.Client()))

	_, err := client.SignInWithPassword(context.Background(), "whale@example.com", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "Invalid login credentials" {
		t.Fatalf("APIError = %+v", apiErr)
	}
}

func TestSignUpConfirmationPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/signup" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		data, _ := body["data"].(map[string]any)
		if data["username"] != "newbie" {
			t.Fatalf("signup metadata = %v", body["data"])
		}

		// Confirmation enabled: bare user object, no tokens.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "user-2",
			"email":         "new@example.com",
			"user_metadata": map[string]any{"username": "newbie"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "anon-key", WithHTTPClient(server.Client()))
	log := &eventLog{}
	defer client.OnAuthStateChange(log.record)()

	result, err := client.SignUp(context.Background(), "new@example.com", "secret", "newbie")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if result.Session != nil {
		t.Fatal("session issued despite pending confirmation")
	}
	if result.User == nil || result.User.ID != "user-2" {
		t.Fatalf("user = %+v", result.User)
	}
	if len(log.all()) != 0 {
		t.Fatalf("events fired for confirmation-pending signup: %v", log.all())
	}
}

func TestSignUpAutoConfirmed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sessionBody("user-3"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "anon-key", WithHTTPClient(server.Client()))
	log := &eventLog{}
	defer client.OnAuthStateChange(log.record)()

	result, err := client.SignUp(context.Background(), "auto@example.com", "secret", "auto")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if result.Session == nil {
		t.Fatal("expected session for auto-confirmed signup")
	}

	events := log.all()
	if len(events) != 1 || events[0] != EventSignedIn {
		t.Fatalf("events = %v, want [SIGNED_IN]", events)
	}
}

func TestSignOutIsLocalFirst(t *testing.T) {
	var logoutCalled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = json.NewEncoder(w).Encode(sessionBody("user-4"))
		case "/logout":
			logoutCalled = true
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"msg": "revocation failed"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "anon-key", WithHTTPClient(server.Client()))
	log := &eventLog{}
	defer client.OnAuthStateChange(log.record)()

	if _, err := client.SignInWithPassword(context.Background(), "whale@example.com", "secret"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	err := client.SignOut(context.Background())
	if err == nil {
		t.Fatal("expected remote revocation failure to be reported")
	}
	if !logoutCalled {
		t.Fatal("logout endpoint never called")
	}

	// Local session is gone and SIGNED_OUT fired despite the failure.
	current, err := client.GetSession(context.Background())
	if err != nil || current != nil {
		t.Fatalf("GetSession() after SignOut = %v, %v", current, err)
	}
	events := log.all()
	if events[len(events)-1] != EventSignedOut {
		t.Fatalf("events = %v, want SIGNED_OUT last", events)
	}
}

func TestGetSessionRefreshesExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("grant_type") {
		case "password":
			body := sessionBody("user-5")
			body["expires_in"] = 1
			_ = json.NewEncoder(w).Encode(body)
		case "refresh_token":
			var req map[string]string
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["refresh_token"] != "refresh-user-5" {
				t.Fatalf("refresh token = %q", req["refresh_token"])
			}
			_ = json.NewEncoder(w).Encode(sessionBody("user-5-renewed"))
		default:
			t.Fatalf("unexpected grant type %q", r.URL.Query().Get("grant_type"))
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "anon-key", WithHTTPClient(server.Client()))
	log := &eventLog{}
	defer client.OnAuthStateChange(log.record)()

	if _, err := client.SignInWithPassword(context.Background(), "whale@example.com", "secret"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	// Force expiry rather than sleeping.
	client.mu.Lock()
	client.current.ExpiresAt = time.Now().Add(-time.Minute)
	client.mu.Unlock()

	renewed, err := client.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if renewed == nil || renewed.AccessToken != "access-user-5-renewed" {
		t.Fatalf("renewed session = %+v", renewed)
	}

	events := log.all()
	if events[len(events)-1] != EventTokenRefreshed {
		t.Fatalf("events = %v, want TOKEN_REFRESHED last", events)
	}
}

func TestVerifyOTPRecoveryEmitsPasswordRecovery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(sessionBody("user-6"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "anon-key", WithHTTPClient(server.Client()))
	log := &eventLog{}
	defer client.OnAuthStateChange(log.record)()

	if _, err := client.VerifyOTP(context.Background(), "whale@example.com", "123456", "recovery"); err != nil {
		t.Fatalf("VerifyOTP() error = %v", err)
	}

	events := log.all()
	if len(events) != 1 || events[0] != EventPasswordRecovery {
		t.Fatalf("events = %v, want [PASSWORD_RECOVERY]", events)
	}
}

func TestUpdateUserRequiresSession(t *testing.T) {
	client := NewHTTPClient("http://localhost:0", "anon-key")

	_, err := client.UpdateUser(context.Background(), UserUpdate{Password: "new"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("error = %v, want unauthorized APIError", err)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sessionBody("user-7"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "anon-key", WithHTTPClient(server.Client()))
	log := &eventLog{}
	unsubscribe := client.OnAuthStateChange(log.record)
	unsubscribe()

	if _, err := client.SignInWithPassword(context.Background(), "whale@example.com", "secret"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	if len(log.all()) != 0 {
		t.Fatalf("events delivered after unsubscribe: %v", log.all())
	}
}
