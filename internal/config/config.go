package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	SessionSecret    string
	SessionTTL       time.Duration
	SSOSessionTTL    time.Duration
	AuthCookieSecure bool

	AdminCookieName string

	LegacyAccountsFile string

	Provider  ProviderConfig
	RateLimit RateLimitConfig
	Logger    LoggerConfig
}

// ProviderConfig carries the learning-management provider credentials.
type ProviderConfig struct {
	BaseURL  string
	APIToken string
	SchoolID string
	Timeout  time.Duration
}

// Configured reports whether provider-dependent calls can be made at all.
func (p ProviderConfig) Configured() bool {
	return p.BaseURL != "" && p.APIToken != "" && p.SchoolID != ""
}

type RateLimitConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LimitsFile    string
}

type LoggerConfig struct {
	Level string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:     getenv("APP_SERVICE", "academy"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		SessionSecret:    strings.TrimSpace(getenv("SESSION_SECRET", "")),
		SessionTTL:       getenvDuration("SESSION_TTL", 7*24*time.Hour),
		SSOSessionTTL:    getenvDuration("SSO_SESSION_TTL", 24*time.Hour),
		AuthCookieSecure: authCookieSecure,

		AdminCookieName: getenv("ADMIN_COOKIE_NAME", "admin_session"),

		LegacyAccountsFile: strings.TrimSpace(getenv("LEGACY_ACCOUNTS_FILE", "")),

		Provider: ProviderConfig{
			BaseURL:  strings.TrimRight(strings.TrimSpace(getenv("LEARNWORLDS_API_URL", "")), "/"),
			APIToken: strings.TrimSpace(getenv("LEARNWORLDS_API_TOKEN", "")),
			SchoolID: strings.TrimSpace(getenv("LEARNWORLDS_SCHOOL_ID", "")),
			Timeout:  getenvDuration("LEARNWORLDS_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:       int(getenvInt64("RATE_LIMIT_REDIS_DB", 0)),
			LimitsFile:    strings.TrimSpace(getenv("RATE_LIMIT_LIMITS_FILE", "")),
		},
		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
