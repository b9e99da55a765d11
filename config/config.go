package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Mail      MailConfig
	Webhook   WebhookConfig
	BotCheck  BotCheckConfig
	RateLimit RateLimitConfig
	App       AppConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	SessionTTL   time.Duration
	CookieName   string
	TOTPIssuer   string
	LoginTimeout time.Duration
}

type MailConfig struct {
	ResendAPIKey string
	FromAddress  string
	// NotifyTo receives new-lead notifications; comma separated in env.
	NotifyTo     []string
	ContactEmail string
	ContactPhone string
}

type WebhookConfig struct {
	URL string
}

type BotCheckConfig struct {
	SecretKey string
	VerifyURL string
}

type RateLimitConfig struct {
	LoginWindow  time.Duration
	LoginMax     int
	SubmitWindow time.Duration
	SubmitMax    int
	ReplyWindow  time.Duration
	ReplyMax     int
}

type AppConfig struct {
	Environment string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "kahdigital"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			SessionTTL:   getEnvAsDuration("SESSION_TTL", 12*time.Hour),
			CookieName:   getEnv("SESSION_COOKIE", "kah_admin_session"),
			TOTPIssuer:   getEnv("TOTP_ISSUER", "Kah-Digital Admin"),
			LoginTimeout: getEnvAsDuration("LOGIN_TIMEOUT", 15*time.Second),
		},
		Mail: MailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromAddress:  getEnv("MAIL_FROM", "Kah-Digital <notifications@kah-digital.io>"),
			NotifyTo:     splitList(getEnv("QUOTE_NOTIFICATION_EMAIL", "")),
			ContactEmail: getEnv("CONTACT_EMAIL", "hello@kah-digital.com"),
			ContactPhone: getEnv("CONTACT_PHONE", "+33 6 00 00 00 00"),
		},
		Webhook: WebhookConfig{
			URL: getEnv("LEAD_WEBHOOK_URL", ""),
		},
		BotCheck: BotCheckConfig{
			SecretKey: getEnv("TURNSTILE_SECRET_KEY", ""),
			VerifyURL: getEnv("TURNSTILE_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
		},
		RateLimit: RateLimitConfig{
			LoginWindow:  getEnvAsDuration("LOGIN_RATE_WINDOW", 10*time.Minute),
			LoginMax:     getEnvAsInt("LOGIN_RATE_MAX", 6),
			SubmitWindow: getEnvAsDuration("SUBMIT_RATE_WINDOW", 10*time.Minute),
			SubmitMax:    getEnvAsInt("SUBMIT_RATE_MAX", 6),
			ReplyWindow:  getEnvAsDuration("REPLY_RATE_WINDOW", 10*time.Minute),
			ReplyMax:     getEnvAsInt("REPLY_RATE_MAX", 10),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	return nil
}

// DSN renders the Postgres connection string shared by both drivers.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// MailConfigured reports whether outbound email can be attempted at all.
// Missing mail credentials are a 503 at the endpoints that need them, not
// a startup failure: the public site must keep serving without them.
func (c *Config) MailConfigured() bool {
	return c.Mail.ResendAPIKey != "" && c.Mail.FromAddress != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
