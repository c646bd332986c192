package provider

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthEvent identifies a change in the provider-side authentication state.
type AuthEvent string

const (
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
)

// AuthUser is the provider-native identity record. It is read-only from the
// application's perspective; profile data lives in the profiles store.
type AuthUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Username returns the username requested at signup, if any.
func (u *AuthUser) Username() string {
	if u.UserMetadata == nil {
		return ""
	}
	username, _ := u.UserMetadata["username"].(string)
	return username
}

// Role returns the application role claim, defaulting to "user".
func (u *AuthUser) Role() string {
	if u.AppMetadata != nil {
		if role, ok := u.AppMetadata["role"].(string); ok && role != "" {
			return role
		}
	}
	return "user"
}

// Session is the provider-issued proof of authentication. It is owned by the
// session manager; nothing else mutates it.
type Session struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         AuthUser  `json:"user"`
}

// Expired reports whether the access token lifetime has elapsed.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// UserUpdate carries the mutable provider-side user attributes.
type UserUpdate struct {
	Password string         `json:"password,omitempty"`
	Email    string         `json:"email,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// SignUpResult is the outcome of a registration attempt. Session is nil when
// the provider requires email confirmation before issuing credentials.
type SignUpResult struct {
	User    *AuthUser
	Session *Session
}

// tokenClaims is the subset of access-token claims the client reads when a
// response omits the user object (e.g. a bare refresh payload).
type tokenClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
	jwt.RegisteredClaims
}

// userFromToken recovers identity fields from the access token without
// verifying the signature; the token was just issued by the trusted provider
// over TLS and the signing key is provider-side.
func userFromToken(accessToken string) (AuthUser, bool) {
	var claims tokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return AuthUser{}, false
	}
	if claims.Subject == "" {
		return AuthUser{}, false
	}
	return AuthUser{
		ID:           claims.Subject,
		Email:        claims.Email,
		UserMetadata: claims.UserMetadata,
		AppMetadata:  claims.AppMetadata,
	}, true
}
