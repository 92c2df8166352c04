// Package config loads the edge service configuration from environment variables.
//
// Values are read once at startup by Load and checked by Validate. A .env file
// in the working directory is honored by the caller (see internal/app).
//
// Environment Variables:
//
// Application:
//   - PORT: HTTP port (default: 8080)
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_FORMAT: console or json (default: console)
//   - LOG_FILE: write logs to this file instead of stdout
//   - PUBLIC_BASE_URL: public site origin used in WhatsApp messages
//
// Database:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite file path (default: ./renda.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//
// Redis (optional, enables shared rate limits, shared cache and job locks):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB (0-15), REDIS_POOL_SIZE
//
// CMS:
//   - SANITY_PROJECT_ID, SANITY_DATASET, SANITY_API_VERSION, SANITY_API_TOKEN
//   - SANITY_USE_CDN: read from the Sanity CDN (default: true unless
//     SANITY_WEBHOOK_SECRET is set, since the CDN can still hold the old
//     document when a revalidation refetch arrives)
//   - SANITY_WEBHOOK_SECRET: shared secret for revalidation webhooks
//   - SANITY_WEBHOOK_HEADER: signature header (default: sanity-webhook-signature)
//   - WEBHOOK_TIMESTAMP_TOLERANCE: maximum signature age (default: 0, disabled).
//     A positive value also rejects replays and late retries of older deliveries.
//
// Rate limiting:
//   - RATE_LIMIT_ENABLED (default: true)
//   - RATE_LIMIT_BACKEND: "memory" or "redis" (default: redis when REDIS_ADDRESS is set)
//   - RATE_LIMIT_STRATEGY: "fixed_window" or "token_bucket" (default: fixed_window)
//   - CONTACT_RATE_LIMIT / CONTACT_RATE_WINDOW (default: 5 per 1h)
//   - CLICK_RATE_LIMIT / CLICK_RATE_WINDOW (default: 30 per 1m)
//   - TRUSTED_PROXIES: comma separated proxy IPs or CIDRs allowed to set X-Forwarded-For
//
// Cache:
//   - CACHE_BACKEND: "local", "redis" or "two_tier" (default: local)
//   - CACHE_TTL (default: 10m)
//
// Admin:
//   - JWT_SECRET: required, at least 32 characters
//   - ADMIN_USERNAME / ADMIN_PASSWORD: seed the first admin account
//   - SESSION_COOKIE_SECURE: mark cookies Secure (default: false)
//
// Leads:
//   - WHATSAPP_NUMBER: fallback number when the CMS settings carry none
//   - AMQP_URL, LEADS_EXCHANGE (default: renda.leads)
//   - SMTP_ENABLED, SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD,
//     SMTP_FROM, LEADS_NOTIFY_EMAIL
//
// Jobs:
//   - ANALYTICS_RETENTION (default: 90d; d and w units are accepted)
//   - CLEANUP_SCHEDULE (default: @daily)
//   - CACHE_WARM_SCHEDULE (default: @every 30m)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"renda-edge/internal/common/utils"
)

// Config holds every setting of the edge service.
type Config struct {
	Port          string
	LogLevel      string
	LogFormat     string
	LogFile       string
	PublicBaseURL string

	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Empty RedisAddress disables every Redis-backed component.
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	SanityProjectID  string
	SanityDataset    string
	SanityAPIVersion string
	SanityAPIToken   string
	SanityUseCDN     bool

	WebhookSecret             string
	WebhookHeader             string
	WebhookTimestampTolerance time.Duration

	RateLimitEnabled  bool
	RateLimitBackend  string
	RateLimitStrategy string
	ContactRateLimit  int
	ContactRateWindow time.Duration
	ClickRateLimit    int
	ClickRateWindow   time.Duration
	TrustedProxies    []string

	CacheBackend string
	CacheTTL     time.Duration

	JWTSecret           string
	AdminUsername       string
	AdminPassword       string
	SessionCookieSecure bool

	WhatsAppNumber string
	AMQPURL        string
	LeadsExchange  string

	SMTPEnabled      bool
	SMTPHost         string
	SMTPPort         string
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string
	LeadsNotifyEmail string

	AnalyticsRetention time.Duration
	CleanupSchedule    string
	CacheWarmSchedule  string
}

// Load reads the configuration from the environment. It does not validate.
func Load() *Config {
	redisAddress := getEnv("REDIS_ADDRESS", "")
	defaultBackend := "memory"
	if redisAddress != "" {
		defaultBackend = "redis"
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogFile:       getEnv("LOG_FILE", ""),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./renda.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "renda"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  redisAddress,
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		SanityProjectID:  getEnv("SANITY_PROJECT_ID", ""),
		SanityDataset:    getEnv("SANITY_DATASET", "production"),
		SanityAPIVersion: getEnv("SANITY_API_VERSION", "2024-01-01"),
		SanityAPIToken:   getEnv("SANITY_API_TOKEN", ""),
		SanityUseCDN:     getBoolEnv("SANITY_USE_CDN", os.Getenv("SANITY_WEBHOOK_SECRET") == ""),

		WebhookSecret:             getEnv("SANITY_WEBHOOK_SECRET", ""),
		WebhookHeader:             getEnv("SANITY_WEBHOOK_HEADER", "sanity-webhook-signature"),
		WebhookTimestampTolerance: getDurationEnv("WEBHOOK_TIMESTAMP_TOLERANCE", 0),

		RateLimitEnabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitBackend:  getEnv("RATE_LIMIT_BACKEND", defaultBackend),
		RateLimitStrategy: getEnv("RATE_LIMIT_STRATEGY", "fixed_window"),
		ContactRateLimit:  getIntEnv("CONTACT_RATE_LIMIT", 5),
		ContactRateWindow: getDurationEnv("CONTACT_RATE_WINDOW", time.Hour),
		ClickRateLimit:    getIntEnv("CLICK_RATE_LIMIT", 30),
		ClickRateWindow:   getDurationEnv("CLICK_RATE_WINDOW", time.Minute),
		TrustedProxies:    getListEnv("TRUSTED_PROXIES"),

		CacheBackend: getEnv("CACHE_BACKEND", "local"),
		CacheTTL:     getDurationEnv("CACHE_TTL", 10*time.Minute),

		JWTSecret:           getEnv("JWT_SECRET", ""),
		AdminUsername:       getEnv("ADMIN_USERNAME", ""),
		AdminPassword:       getEnv("ADMIN_PASSWORD", ""),
		SessionCookieSecure: getBoolEnv("SESSION_COOKIE_SECURE", false),

		WhatsAppNumber: getEnv("WHATSAPP_NUMBER", ""),
		AMQPURL:        getEnv("AMQP_URL", ""),
		LeadsExchange:  getEnv("LEADS_EXCHANGE", "renda.leads"),

		SMTPEnabled:      getBoolEnv("SMTP_ENABLED", false),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:         getEnv("SMTP_FROM", ""),
		LeadsNotifyEmail: getEnv("LEADS_NOTIFY_EMAIL", ""),

		AnalyticsRetention: getDurationEnv("ANALYTICS_RETENTION", 90*24*time.Hour),
		CleanupSchedule:    getEnv("CLEANUP_SCHEDULE", "@daily"),
		CacheWarmSchedule:  getEnv("CACHE_WARM_SCHEDULE", "@every 30m"),
	}
}

// IsPostgres reports whether the PostgreSQL backend is selected.
func (c *Config) IsPostgres() bool {
	return c.DatabaseType == "postgres" || c.DatabaseType == "postgresql"
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddress != ""
}

// RedisDBNumber returns REDIS_DB as an int. Call after Validate.
func (c *Config) RedisDBNumber() int {
	n, _ := strconv.Atoi(c.RedisDB)
	return n
}

// RedisPoolSizeNumber returns REDIS_POOL_SIZE as an int. Call after Validate.
func (c *Config) RedisPoolSizeNumber() int {
	n, _ := strconv.Atoi(c.RedisPoolSize)
	return n
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv returns -1 for unparsable values so Validate can reject them.
func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return parsed
}

// getDurationEnv returns -1 for unparsable values so Validate can reject them.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := utils.ParseDuration(value)
	if err != nil {
		return -1
	}
	return parsed
}

func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks required values, formats and cross-field dependencies.
// A missing webhook secret is allowed: the webhook endpoint reports it per request.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be 'console' or 'json'")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.IsPostgres() {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.RedisEnabled() {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if size, err := strconv.Atoi(c.RedisPoolSize); err != nil || size < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.WebhookTimestampTolerance < 0 {
		return fmt.Errorf("WEBHOOK_TIMESTAMP_TOLERANCE must be a valid duration")
	}

	if c.RateLimitEnabled {
		switch c.RateLimitBackend {
		case "memory":
		case "redis":
			if !c.RedisEnabled() {
				return fmt.Errorf("RATE_LIMIT_BACKEND=redis requires REDIS_ADDRESS")
			}
		default:
			return fmt.Errorf("RATE_LIMIT_BACKEND must be 'memory' or 'redis'")
		}
		switch c.RateLimitStrategy {
		case "fixed_window", "token_bucket":
		default:
			return fmt.Errorf("RATE_LIMIT_STRATEGY must be 'fixed_window' or 'token_bucket'")
		}
		if c.ContactRateLimit < 1 || c.ClickRateLimit < 1 {
			return fmt.Errorf("CONTACT_RATE_LIMIT and CLICK_RATE_LIMIT must be positive numbers")
		}
		if c.ContactRateWindow <= 0 || c.ClickRateWindow <= 0 {
			return fmt.Errorf("CONTACT_RATE_WINDOW and CLICK_RATE_WINDOW must be positive durations (e.g. '1h', '60s')")
		}
	}

	switch c.CacheBackend {
	case "local":
	case "redis", "two_tier":
		if !c.RedisEnabled() {
			return fmt.Errorf("CACHE_BACKEND=%s requires REDIS_ADDRESS", c.CacheBackend)
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be 'local', 'redis' or 'two_tier'")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be a positive duration")
	}

	if c.SMTPEnabled && (c.SMTPHost == "" || c.SMTPFrom == "" || c.LeadsNotifyEmail == "") {
		return fmt.Errorf("SMTP_HOST, SMTP_FROM and LEADS_NOTIFY_EMAIL are required when SMTP_ENABLED is true")
	}

	if c.AnalyticsRetention <= 0 {
		return fmt.Errorf("ANALYTICS_RETENTION must be a positive duration")
	}

	return nil
}
