package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the CyberWhale services.
type Config struct {
	Environment    string
	HTTPPort       int
	DatabaseURL    string
	DataStore      string
	LogLevel       string
	AllowedOrigins []string
	FrontendURL    string

	// Identity provider (GoTrue-compatible auth API).
	AuthBaseURL     string
	AuthAPIKey      string
	AuthLoadTimeout time.Duration
	BrowserTTL      time.Duration

	// Google social login.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Chat assistant inference API.
	AssistantURL    string
	AssistantAPIKey string
}

// Load reads configuration from the environment with sensible defaults for
// local development. A .env file in the working directory is honored when
// present.
func Load() (Config, error) {
	_ = godotenv.Load()

	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/cyberwhale_database_url")
	if err != nil {
		return Config{}, err
	}

	authAPIKey, err := getEnvOrFile("AUTH_API_KEY", "/run/secrets/cyberwhale_auth_api_key")
	if err != nil {
		return Config{}, err
	}

	assistantKey, err := getEnvOrFile("ASSISTANT_API_KEY", "/run/secrets/cyberwhale_assistant_api_key")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:        getEnv("APP_ENV", "development"),
		DatabaseURL:        databaseURL,
		DataStore:          strings.ToLower(getEnv("DATA_STORE", "memory")),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigins:     parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		FrontendURL:        strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		AuthBaseURL:        strings.TrimSuffix(getEnv("AUTH_BASE_URL", "http://localhost:9999/auth/v1"), "/"),
		AuthAPIKey:         strings.TrimSpace(authAPIKey),
		GoogleClientID:     strings.TrimSpace(getEnv("AUTH_GOOGLE_CLIENT_ID", "")),
		GoogleClientSecret: strings.TrimSpace(getEnv("AUTH_GOOGLE_CLIENT_SECRET", "")),
		GoogleRedirectURL:  getEnv("AUTH_GOOGLE_REDIRECT_URL", ""),
		AssistantURL:       getEnv("ASSISTANT_URL", "https://router.huggingface.co"),
		AssistantAPIKey:    strings.TrimSpace(assistantKey),
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	loadTimeout, err := parseDuration(getEnv("AUTH_LOAD_TIMEOUT", "2500ms"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid AUTH_LOAD_TIMEOUT: %w", err)
	}
	cfg.AuthLoadTimeout = loadTimeout

	browserTTL, err := parseDuration(getEnv("BROWSER_SESSION_TTL", "12h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid BROWSER_SESSION_TTL: %w", err)
	}
	cfg.BrowserTTL = browserTTL

	if cfg.DataStore == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
	}

	if !cfg.IsDevelopment() {
		if cfg.GoogleClientID == "" {
			return Config{}, fmt.Errorf("AUTH_GOOGLE_CLIENT_ID is required outside development")
		}
		if cfg.GoogleClientSecret == "" {
			return Config{}, fmt.Errorf("AUTH_GOOGLE_CLIENT_SECRET is required outside development")
		}
	}

	return cfg, nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if the in-memory repositories should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// GoogleLoginEnabled reports whether the social login leg is configured.
func (c Config) GoogleLoginEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func parseDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("duration must be positive")
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
