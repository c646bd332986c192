package session

import (
	"net/url"
	"strings"
	"sync"
)

// Navigator abstracts the client-side router. The manager triggers navigation
// side effects through it (post-login redirects, recovery routing) without
// knowing how the front end performs them.
type Navigator interface {
	// Current returns the location the client is presently on.
	Current() *url.URL
	// Go requests navigation to the given relative target.
	Go(target string)
}

// RedirectRecorder is the server-side Navigator: it tracks the client's
// reported location and buffers the latest pending redirect until the client
// polls for it.
type RedirectRecorder struct {
	mu      sync.Mutex
	current *url.URL
	pending string
}

// NewRedirectRecorder starts at the default route.
func NewRedirectRecorder() *RedirectRecorder {
	return &RedirectRecorder{current: &url.URL{Path: "/"}}
}

// SetCurrent records the location the client reports itself on. Invalid or
// unsafe values are ignored.
func (r *RedirectRecorder) SetCurrent(raw string) {
	if !IsSafeRelativePath(raw) {
		return
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return
	}

	r.mu.Lock()
	r.current = parsed
	r.mu.Unlock()
}

// Current returns the client's last reported location.
func (r *RedirectRecorder) Current() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Go buffers a redirect for the client. A newer redirect supersedes an
// unconsumed older one.
func (r *RedirectRecorder) Go(target string) {
	r.mu.Lock()
	r.pending = target
	r.mu.Unlock()
}

// Consume returns the pending redirect, if any, and clears it.
func (r *RedirectRecorder) Consume() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	target := r.pending
	r.pending = ""
	return target
}

// IsSafeRelativePath validates that a path is a safe relative redirect. It
// prevents open redirects by requiring a single leading "/" with no scheme or
// host component, including encoded bypass attempts.
func IsSafeRelativePath(path string) bool {
	if path == "" {
		return false
	}

	decoded, err := url.QueryUnescape(path)
	if err != nil {
		return false
	}

	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") {
		return false
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return false
	}

	return parsed.Scheme == "" && parsed.Host == ""
}
