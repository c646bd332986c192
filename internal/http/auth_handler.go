package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cyberwhale/internal/profile"
	"cyberwhale/internal/session"
)

const browserCookieName = "cyberwhale_session"

// AuthHandler exposes the authentication state machine over HTTP. Each
// browser gets an opaque HttpOnly cookie that maps to its own session
// manager; handlers translate requests into manager actions and report the
// resulting snapshot.
type AuthHandler struct {
	registry     *session.Registry
	logger       *slog.Logger
	secureCookie bool
	cookieTTL    time.Duration
}

// NewAuthHandler creates an AuthHandler backed by the given registry.
func NewAuthHandler(registry *session.Registry, env string, cookieTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		registry:     registry,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
		cookieTTL:    cookieTTL,
	}
}

// handle resolves (creating if needed) the manager for the request's browser
// session, issuing the cookie on first contact.
func (h *AuthHandler) handle(w http.ResponseWriter, r *http.Request) session.Handle {
	if cookie, err := r.Cookie(browserCookieName); err == nil && cookie.Value != "" {
		return h.registry.Get(r.Context(), cookie.Value)
	}

	id := newBrowserSessionID()
	http.SetCookie(w, h.browserCookie(id, h.cookieTTL))
	return h.registry.Get(r.Context(), id)
}

func (h *AuthHandler) browserCookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     browserCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
	}
}

func newBrowserSessionID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// stateResponse is the auth snapshot the front end polls.
type stateResponse struct {
	User            *session.AppUser `json:"user"`
	Authenticated   bool             `json:"authenticated"`
	IsLoading       bool             `json:"isLoading"`
	Error           string           `json:"error,omitempty"`
	LoadingTimedOut bool             `json:"loadingTimedOut"`
	ExpiresAt       *time.Time       `json:"expiresAt,omitempty"`
	RedirectTo      string           `json:"redirectTo,omitempty"`
}

func stateFromSnapshot(snap session.Snapshot, redirectTo string) stateResponse {
	resp := stateResponse{
		User:            snap.User,
		Authenticated:   snap.Session != nil,
		IsLoading:       snap.IsLoading,
		Error:           snap.Err,
		LoadingTimedOut: snap.LoadingTimedOut,
		RedirectTo:      redirectTo,
	}
	if snap.Session != nil && !snap.Session.ExpiresAt.IsZero() {
		expires := snap.Session.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}

// State handles GET /api/auth/state. The client reports its current location
// via the path query param and receives the snapshot plus any pending
// redirect, which is consumed by this call.
func (h *AuthHandler) State(w http.ResponseWriter, r *http.Request) {
	handle := h.handle(w, r)

	if path := r.URL.Query().Get("path"); path != "" {
		handle.Recorder.SetCurrent(path)
	}

	snap := handle.Manager.Snapshot()
	writeJSON(w, http.StatusOK, stateFromSnapshot(snap, handle.Recorder.Consume()))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	handle := h.handle(w, r)
	if _, err := handle.Manager.Login(r.Context(), payload.Email, payload.Password); err != nil {
		h.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stateFromSnapshot(handle.Manager.Snapshot(), handle.Recorder.Consume()))
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	handle := h.handle(w, r)
	result, err := handle.Manager.Register(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	resp := stateFromSnapshot(handle.Manager.Snapshot(), handle.Recorder.Consume())
	status := http.StatusOK
	if result.Session == nil {
		// Account created but pending email confirmation.
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	handle := h.handle(w, r)

	err := handle.Manager.Logout(r.Context())
	resp := stateFromSnapshot(handle.Manager.Snapshot(), handle.Recorder.Consume())
	if err != nil {
		// Local state is already cleared; surface a notice, not a failure.
		h.logger.Warn("logout completed with provider error", "error", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	handle := h.handle(w, r)
	if err := handle.Manager.ResetPassword(r.Context(), payload.Email); err != nil {
		h.writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdatePassword handles POST /api/auth/update-password.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if payload.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	handle := h.handle(w, r)
	if err := handle.Manager.UpdatePassword(r.Context(), payload.Password); err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateFromSnapshot(handle.Manager.Snapshot(), handle.Recorder.Consume()))
}

// VerifyOTP handles POST /api/auth/verify-otp.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Token) == "" {
		writeError(w, http.StatusBadRequest, "email and token are required")
		return
	}

	handle := h.handle(w, r)
	if err := handle.Manager.VerifyOTP(r.Context(), payload.Email, payload.Token); err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateFromSnapshot(handle.Manager.Snapshot(), handle.Recorder.Consume()))
}

// UpdateProfile handles PATCH /api/auth/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username  *string `json:"username"`
		AvatarURL *string `json:"avatarUrl"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if payload.Username != nil && strings.TrimSpace(*payload.Username) == "" {
		writeError(w, http.StatusBadRequest, "username cannot be empty")
		return
	}

	handle := h.handle(w, r)
	update := profile.Update{Username: payload.Username, AvatarURL: payload.AvatarURL}
	if err := handle.Manager.UpdateProfile(r.Context(), update); err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateFromSnapshot(handle.Manager.Snapshot(), handle.Recorder.Consume()))
}

// writeAuthError maps the session error taxonomy onto HTTP statuses.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, session.ErrEmailNotConfirmed):
		status = http.StatusForbidden
	case errors.Is(err, session.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, session.ErrDuplicateUser):
		status = http.StatusConflict
	case errors.Is(err, session.ErrWeakPassword):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	default:
		h.logger.Error("auth action failed", "error", err)
	}
	writeError(w, status, err.Error())
}
