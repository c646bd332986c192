package session

import (
	"context"
	"net/url"
	"strings"

	"cyberwhale/internal/profile"
	"cyberwhale/internal/provider"
)

// Every action follows the same contract: loading goes on and the previous
// error is cleared on entry, the loading flag is released on every exit path,
// and failures are both recorded as a user-visible message and returned so
// forms can run their own side effects.

func (m *Manager) beginAction() {
	m.mu.Lock()
	m.isLoading = true
	m.errMsg = ""
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Manager) endAction() {
	m.mu.Lock()
	m.isLoading = false
	m.notifyLocked()
	m.mu.Unlock()
}

// fail classifies the provider error, records its message, and returns it.
func (m *Manager) fail(action string, err error) error {
	classified := classify(err)
	m.metrics.RecordAction(action, "error")

	m.mu.Lock()
	m.errMsg = classified.Error()
	m.notifyLocked()
	m.mu.Unlock()

	return classified
}

// Login exchanges credentials for a session. The AppUser is populated by the
// SIGNED_IN event handler, not here, so a double hydration cannot occur.
func (m *Manager) Login(ctx context.Context, email, password string) (*provider.Session, error) {
	m.beginAction()
	defer m.endAction()

	current, err := m.provider.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, m.fail("login", err)
	}

	m.metrics.RecordAction("login", "ok")
	return current, nil
}

// LoginWithIDToken completes a social login using a verified third-party ID
// token. Hydration and navigation run through the event handler as usual.
func (m *Manager) LoginWithIDToken(ctx context.Context, providerName, idToken string) (*provider.Session, error) {
	m.beginAction()
	defer m.endAction()

	current, err := m.provider.SignInWithIDToken(ctx, providerName, idToken)
	if err != nil {
		return nil, m.fail("oauth_login", err)
	}

	m.metrics.RecordAction("oauth_login", "ok")
	return current, nil
}

// Register signs up a new account with the requested username as metadata.
// When the provider withholds the session pending email confirmation, the
// client is routed to OTP verification carrying the email; registration is
// not complete until the code is verified.
func (m *Manager) Register(ctx context.Context, username, email, password string) (*provider.SignUpResult, error) {
	m.beginAction()
	defer m.endAction()

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	result, err := m.provider.SignUp(ctx, email, password, username)
	if err != nil {
		return nil, m.fail("register", err)
	}

	if result.Session == nil && result.User != nil {
		query := url.Values{"email": {email}}
		m.nav.Go("/verify-otp?" + query.Encode())
	}

	m.metrics.RecordAction("register", "ok")
	return result, nil
}

// Logout signs out locally first: session and user are cleared and the client
// is sent to the default route even when the remote revocation fails. A
// failure is still reported so the UI can surface a non-blocking notice.
func (m *Manager) Logout(ctx context.Context) error {
	m.beginAction()
	defer m.endAction()

	err := m.provider.SignOut(ctx)

	m.mu.Lock()
	m.session = nil
	m.user = nil
	m.loadingTimedOut = false
	m.notifyLocked()
	m.mu.Unlock()

	m.nav.Go("/")

	if err != nil {
		m.logger.Warn("remote sign-out failed, local state cleared anyway", "error", err)
		m.metrics.RecordAction("logout", "error")
		return classify(err)
	}

	m.metrics.RecordAction("logout", "ok")
	return nil
}

// ResetPassword requests a recovery email. The session is untouched.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	m.beginAction()
	defer m.endAction()

	if err := m.provider.ResetPasswordForEmail(ctx, strings.TrimSpace(email), m.resetURL); err != nil {
		return m.fail("reset_password", err)
	}

	m.metrics.RecordAction("reset_password", "ok")
	return nil
}

// UpdatePassword sets a new password for the active recovery/session context
// and routes to the login page on success.
func (m *Manager) UpdatePassword(ctx context.Context, newPassword string) error {
	m.beginAction()
	defer m.endAction()

	if _, err := m.provider.UpdateUser(ctx, provider.UserUpdate{Password: newPassword}); err != nil {
		return m.fail("update_password", err)
	}

	m.nav.Go("/login")
	m.metrics.RecordAction("update_password", "ok")
	return nil
}

// UpdateProfile writes the allowed profile fields. The local AppUser is
// merged optimistically, so a subsequent read observes the new values
// regardless of whether the remote write has completed.
func (m *Manager) UpdateProfile(ctx context.Context, update profile.Update) error {
	m.beginAction()
	defer m.endAction()

	m.mu.Lock()
	current := m.user
	if current == nil {
		m.errMsg = ErrNotAuthenticated.Error()
		m.notifyLocked()
		m.mu.Unlock()
		return ErrNotAuthenticated
	}

	// Optimistic local merge.
	updated := *current
	if update.Username != nil {
		updated.Username = *update.Username
	}
	if update.AvatarURL != nil {
		updated.AvatarURL = *update.AvatarURL
	}
	m.user = &updated
	m.notifyLocked()
	m.mu.Unlock()

	if update.Username == nil && update.AvatarURL == nil {
		return nil
	}

	if _, err := m.profiles.Update(ctx, updated.ID, update); err != nil {
		m.metrics.RecordAction("update_profile", "error")
		m.mu.Lock()
		m.errMsg = "profile update failed"
		m.notifyLocked()
		m.mu.Unlock()
		return err
	}

	m.metrics.RecordAction("update_profile", "ok")
	return nil
}

// VerifyOTP exchanges the emailed one-time code for a session. Hydration
// happens through the SIGNED_IN event the provider emits on success.
func (m *Manager) VerifyOTP(ctx context.Context, email, token string) error {
	m.beginAction()
	defer m.endAction()

	if _, err := m.provider.VerifyOTP(ctx, strings.TrimSpace(email), strings.TrimSpace(token), "email"); err != nil {
		return m.fail("verify_otp", err)
	}

	m.metrics.RecordAction("verify_otp", "ok")
	return nil
}
