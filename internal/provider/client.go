package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client is the surface of the identity provider the application consumes.
// It mirrors a GoTrue-compatible auth API: password and OTP sign-in, signup
// with metadata, password recovery, and an auth-state-change stream.
type Client interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignInWithIDToken(ctx context.Context, providerName, idToken string) (*Session, error)
	SignUp(ctx context.Context, email, password, username string) (*SignUpResult, error)
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn Listener) (unsubscribe func())
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, update UserUpdate) (*AuthUser, error)
	VerifyOTP(ctx context.Context, email, token, otpType string) (*Session, error)
}

// HTTPClient talks to a GoTrue-style REST API. It keeps the current session
// in memory (the Go analogue of the browser client's local storage) and emits
// auth events after each successful state-changing call.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	events  *broadcaster

	mu      sync.Mutex
	current *Session
}

// Option configures the HTTPClient during construction.
type Option func(*HTTPClient)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		h.client = c
	}
}

// NewHTTPClient constructs a client for the auth API rooted at baseURL.
func NewHTTPClient(baseURL, apiKey string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		events:  newBroadcaster(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnAuthStateChange registers a listener for auth events. The returned
// function removes the listener; callers must invoke it on teardown.
func (h *HTTPClient) OnAuthStateChange(fn Listener) (unsubscribe func()) {
	return h.events.subscribe(fn)
}

// sessionPayload is the token/signup response shape. expires_in is relative;
// the client pins it to an absolute deadline on receipt.
type sessionPayload struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token"`
	User         *AuthUser `json:"user"`
}

func (p *sessionPayload) toSession() *Session {
	if p.AccessToken == "" {
		return nil
	}
	session := &Session{
		AccessToken:  p.AccessToken,
		TokenType:    p.TokenType,
		RefreshToken: p.RefreshToken,
	}
	if p.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	if p.User != nil {
		session.User = *p.User
	} else if user, ok := userFromToken(p.AccessToken); ok {
		session.User = user
	}
	return session
}

// SignInWithPassword exchanges credentials for a session and emits SIGNED_IN.
func (h *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var payload sessionPayload
	err := h.do(ctx, http.MethodPost, "/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &payload)
	if err != nil {
		return nil, err
	}

	session := payload.toSession()
	if session == nil {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "provider returned no session"}
	}

	h.setSession(session)
	h.events.emit(EventSignedIn, session)
	return session, nil
}

// SignInWithIDToken exchanges a third-party OIDC ID token (e.g. from the
// Google consent flow) for a provider session and emits SIGNED_IN.
func (h *HTTPClient) SignInWithIDToken(ctx context.Context, providerName, idToken string) (*Session, error) {
	var payload sessionPayload
	err := h.do(ctx, http.MethodPost, "/token?grant_type=id_token", "", map[string]string{
		"provider": providerName,
		"id_token": idToken,
	}, &payload)
	if err != nil {
		return nil, err
	}

	session := payload.toSession()
	if session == nil {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "provider returned no session"}
	}

	h.setSession(session)
	h.events.emit(EventSignedIn, session)
	return session, nil
}

// SignUp registers a new user, attaching the requested username as signup
// metadata. When email confirmation is enabled the provider returns the user
// without a session; no event fires in that case.
func (h *HTTPClient) SignUp(ctx context.Context, email, password, username string) (*SignUpResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]any{"username": username},
	}

	var payload struct {
		sessionPayload
		// Confirmation-pending responses are a bare user object.
		ID           string         `json:"id"`
		Email        string         `json:"email"`
		UserMetadata map[string]any `json:"user_metadata"`
		AppMetadata  map[string]any `json:"app_metadata"`
	}
	if err := h.do(ctx, http.MethodPost, "/signup", "", body, &payload); err != nil {
		return nil, err
	}

	if session := payload.toSession(); session != nil {
		h.setSession(session)
		h.events.emit(EventSignedIn, session)
		return &SignUpResult{User: &session.User, Session: session}, nil
	}

	user := payload.sessionPayload.User
	if user == nil && payload.ID != "" {
		user = &AuthUser{
			ID:           payload.ID,
			Email:        payload.Email,
			UserMetadata: payload.UserMetadata,
			AppMetadata:  payload.AppMetadata,
		}
	}
	return &SignUpResult{User: user}, nil
}

// SignOut revokes the current session at the provider and emits SIGNED_OUT.
// The local session is dropped even when the remote call fails so the caller
// can treat logout as local-first.
func (h *HTTPClient) SignOut(ctx context.Context) error {
	token := h.accessToken()
	h.setSession(nil)

	var err error
	if token != "" {
		err = h.do(ctx, http.MethodPost, "/logout", token, nil, nil)
	}

	h.events.emit(EventSignedOut, nil)
	return err
}

// GetSession returns the current session, transparently refreshing an expired
// one. A nil session with a nil error means "not signed in".
func (h *HTTPClient) GetSession(ctx context.Context) (*Session, error) {
	h.mu.Lock()
	current := h.current
	h.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	if !current.Expired() {
		return current, nil
	}
	return h.refreshSession(ctx, current.RefreshToken)
}

// refreshSession exchanges a refresh token for a new session and emits
// TOKEN_REFRESHED.
func (h *HTTPClient) refreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, nil
	}

	var payload sessionPayload
	err := h.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": refreshToken,
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	session := payload.toSession()
	if session == nil {
		return nil, nil
	}

	h.setSession(session)
	h.events.emit(EventTokenRefreshed, session)
	return session, nil
}

// ResetPasswordForEmail asks the provider to send a recovery email.
func (h *HTTPClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	body := map[string]string{"email": email}
	if redirectTo != "" {
		body["redirect_to"] = redirectTo
	}
	return h.do(ctx, http.MethodPost, "/recover", "", body, nil)
}

// UpdateUser mutates provider-side user attributes (password, email,
// metadata) for the current session and emits USER_UPDATED.
func (h *HTTPClient) UpdateUser(ctx context.Context, update UserUpdate) (*AuthUser, error) {
	session := h.currentSession()
	if session == nil {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: "no active session"}
	}

	var user AuthUser
	if err := h.do(ctx, http.MethodPut, "/user", session.AccessToken, update, &user); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.current != nil {
		h.current.User = user
		session = h.current
	}
	h.mu.Unlock()

	h.events.emit(EventUserUpdated, session)
	return &user, nil
}

// VerifyOTP exchanges a one-time code for a session. Recovery verifications
// emit PASSWORD_RECOVERY; signup/email verifications emit SIGNED_IN.
func (h *HTTPClient) VerifyOTP(ctx context.Context, email, token, otpType string) (*Session, error) {
	var payload sessionPayload
	err := h.do(ctx, http.MethodPost, "/verify", "", map[string]string{
		"email": email,
		"token": token,
		"type":  otpType,
	}, &payload)
	if err != nil {
		return nil, err
	}

	session := payload.toSession()
	if session == nil {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "provider returned no session"}
	}

	h.setSession(session)
	if otpType == "recovery" {
		h.events.emit(EventPasswordRecovery, session)
	} else {
		h.events.emit(EventSignedIn, session)
	}
	return session, nil
}

// AdoptSession installs a session obtained out of band (e.g. an OAuth
// callback) and emits SIGNED_IN.
func (h *HTTPClient) AdoptSession(session *Session) {
	if session == nil {
		return
	}
	h.setSession(session)
	h.events.emit(EventSignedIn, session)
}

func (h *HTTPClient) setSession(session *Session) {
	h.mu.Lock()
	h.current = session
	h.mu.Unlock()
}

func (h *HTTPClient) currentSession() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *HTTPClient) accessToken() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return ""
	}
	return h.current.AccessToken
}

// do performs one JSON round-trip against the auth API.
func (h *HTTPClient) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("apikey", h.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
