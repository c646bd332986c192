package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cyberwhale/internal/provider"
)

// Sentinel errors for the authentication failure taxonomy. Action functions
// classify raw provider errors into these so forms can branch on them, and
// each carries the short human-readable message shown to the user.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotConfirmed  = errors.New("email is not confirmed yet")
	ErrRateLimited        = errors.New("too many attempts, try again later")
	ErrDuplicateUser      = errors.New("an account with this email already exists")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrProfileLoad        = errors.New("profile failed to load")
	ErrSession            = errors.New("session could not be loaded")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrProvider           = errors.New("authentication failed")
)

// classify maps a provider error onto the taxonomy. The provider reports
// expected failures through message phrasing rather than structured codes, so
// classification is by substring, with the HTTP status as a fallback signal.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}

	message := strings.ToLower(apiErr.Message)
	switch {
	case strings.Contains(message, "invalid login credentials"),
		strings.Contains(message, "invalid email or password"):
		return ErrInvalidCredentials
	case strings.Contains(message, "email not confirmed"):
		return ErrEmailNotConfirmed
	case apiErr.Status == http.StatusTooManyRequests,
		strings.Contains(message, "rate limit"),
		strings.Contains(message, "too many requests"):
		return ErrRateLimited
	case strings.Contains(message, "already registered"),
		strings.Contains(message, "already exists"):
		return ErrDuplicateUser
	case strings.Contains(message, "password should be"),
		strings.Contains(message, "weak password"):
		return ErrWeakPassword
	default:
		if apiErr.Message != "" {
			return fmt.Errorf("%w: %s", ErrProvider, apiErr.Message)
		}
		return ErrProvider
	}
}
