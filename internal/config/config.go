package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	APIBaseURL         string
	RequestTimeout     time.Duration
	LogLevel           slog.Level
	Profile            string
	TokenStoreDriver   string
	TokenFile          string
	SessionFile        string
	RedisURL           string
	RedisKeyPrefix     string
	DatabaseURL        string
	DBMaxConns         int32
	DBMinConns         int32
	ClientRateLimitRPM int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleIssuer       string
	GoogleRedirectPort int

	FakeServerPort     string
	FakeJWTSecret      string
	FakeAccessTTL      time.Duration
	FakeRefreshTTL     time.Duration
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	CORSOrigins        []string
	RateLimitRPM       int
	AuthRateLimitRPM   int
	FakeExposeOutbox   bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:         strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000/api"), "/"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		LogLevel:           getLevel("LOG_LEVEL", slog.LevelInfo),
		Profile:            getEnv("PROFILE", "default"),
		TokenStoreDriver:   strings.ToLower(getEnv("TOKEN_STORE_DRIVER", DriverFile)),
		TokenFile:          getEnv("TOKEN_FILE", defaultTokenFile()),
		SessionFile:        getEnv("SESSION_FILE", defaultSessionFile()),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		RedisKeyPrefix:     getEnv("REDIS_KEY_PREFIX", "fintrack"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:         int32(getInt("DB_MAX_CONNS", 4)),
		DBMinConns:         int32(getInt("DB_MIN_CONNS", 0)),
		ClientRateLimitRPM: getInt("CLIENT_RATE_LIMIT_RPM", 0),

		GoogleClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		GoogleIssuer:       getEnv("GOOGLE_ISSUER", "https://accounts.google.com"),
		GoogleRedirectPort: getInt("GOOGLE_REDIRECT_PORT", 8765),

		FakeServerPort:     getEnv("FAKE_SERVER_PORT", "5000"),
		FakeJWTSecret:      getEnv("FAKE_JWT_SECRET", "fintrack-dev-secret"),
		FakeAccessTTL:      getDuration("FAKE_ACCESS_TTL", 15*time.Minute),
		FakeRefreshTTL:     getDuration("FAKE_REFRESH_TTL", 168*time.Hour),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 150),
		AuthRateLimitRPM:   getInt("AUTH_RATE_LIMIT_RPM", 20),
		FakeExposeOutbox:   getBool("FAKE_EXPOSE_OUTBOX", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}

	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must be an http(s) URL")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if strings.TrimSpace(c.Profile) == "" {
		return fmt.Errorf("PROFILE cannot be empty")
	}

	if strings.TrimSpace(c.SessionFile) == "" {
		return fmt.Errorf("SESSION_FILE cannot be empty")
	}

	switch c.TokenStoreDriver {
	case DriverFile:
		if strings.TrimSpace(c.TokenFile) == "" {
			return fmt.Errorf("TOKEN_FILE cannot be empty")
		}
	case DriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis token store")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres token store")
		}
	default:
		return fmt.Errorf("unknown TOKEN_STORE_DRIVER %q", c.TokenStoreDriver)
	}

	if c.ClientRateLimitRPM < 0 {
		return fmt.Errorf("CLIENT_RATE_LIMIT_RPM cannot be negative")
	}

	if c.FakeAccessTTL <= 0 || c.FakeRefreshTTL <= 0 {
		return fmt.Errorf("FAKE_ACCESS_TTL and FAKE_REFRESH_TTL must be positive")
	}

	return nil
}

// GoogleEnabled reports whether federated login has client credentials.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "./.fintrack/credentials.json"
	}

	return filepath.Join(dir, "fintrack", "credentials.json")
}

// defaultSessionFile lives in the per-user runtime directory, which the OS
// empties at logout or reboot. Sessions started without "remember me" go here.
func defaultSessionFile() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "fintrack", "session.json")
	}

	return filepath.Join(os.TempDir(), fmt.Sprintf("fintrack-%d", os.Getuid()), "session.json")
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getLevel(key string, fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}

	return level
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
