package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATA_STORE", "memory")
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_API_KEY", "anon-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if !cfg.UseInMemoryStore() {
		t.Fatal("expected in-memory store by default")
	}
	if cfg.AuthLoadTimeout != 2500*time.Millisecond {
		t.Fatalf("expected default load timeout 2.5s, got %s", cfg.AuthLoadTimeout)
	}
	if cfg.BrowserTTL != 12*time.Hour {
		t.Fatalf("expected default browser TTL 12h, got %s", cfg.BrowserTTL)
	}
	if cfg.HTTPAddress() != ":8080" {
		t.Fatalf("unexpected HTTP address %q", cfg.HTTPAddress())
	}
}

func TestLoadAllowsEmptyOAuthInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATA_STORE", "memory")
	t.Setenv("PORT", "8080")
	t.Setenv("AUTH_GOOGLE_CLIENT_ID", "")
	t.Setenv("AUTH_GOOGLE_CLIENT_SECRET", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_API_KEY", "anon-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.GoogleLoginEnabled() {
		t.Fatal("expected Google login to be disabled in development without credentials")
	}
}

func TestLoadRequiresOAuthOutsideDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATA_STORE", "memory")
	t.Setenv("PORT", "8080")
	t.Setenv("AUTH_GOOGLE_CLIENT_ID", "")
	t.Setenv("AUTH_GOOGLE_CLIENT_SECRET", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_API_KEY", "anon-key")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when OAuth config missing outside development")
	}
	if !strings.Contains(err.Error(), "AUTH_GOOGLE_CLIENT_ID is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATA_STORE", "postgres")
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_URL_FILE", "")
	t.Setenv("AUTH_API_KEY", "anon-key")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when postgres store has no DATABASE_URL")
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATA_STORE", "memory")
	t.Setenv("PORT", "not-a-port")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_API_KEY", "anon-key")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATA_STORE", "memory")
	t.Setenv("PORT", "8080")
	t.Setenv("AUTH_LOAD_TIMEOUT", "-1s")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_API_KEY", "anon-key")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for non-positive timeout")
	}
}
