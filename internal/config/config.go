/*
Package config loads runtime configuration.

SOURCES (later wins):
  1. Defaults below
  2. .env in the working directory (optional)
  3. Process environment
  4. Command-line flags (applied by cmd/server)

Optional integrations stay disabled while their keys are empty: no
REDIS_ADDR means in-process cache and no distributed lock, no GCS_BUCKET
means uploads are kept in memory, no RESEND_API_KEY means emails are only
logged.
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/billing-engine/internal/logger"
)

type Config struct {
	Env       string
	Port      int
	DBPath    string
	LogLevel  string
	LogFormat string

	CORSAllowedOrigins []string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ReportCacheTTL time.Duration
	LockTTL        time.Duration

	GCSBucket          string
	GCSCredentialsFile string
	UploadURLTTL       time.Duration

	ResendAPIKey string
	MailFrom     string
	MailAPIURL   string

	PhoneRegion    string
	VerifyInterval time.Duration
	VerifyOnStart  bool
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		Port:               getEnvInt("PORT", 8080),
		DBPath:             getEnv("DB_PATH", "./data/billing.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		ReportCacheTTL:     getEnvDuration("REPORT_CACHE_TTL", time.Minute),
		LockTTL:            getEnvDuration("LOCK_TTL", 10*time.Second),
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		UploadURLTTL:       getEnvDuration("UPLOAD_URL_TTL", 15*time.Minute),
		ResendAPIKey:       getEnv("RESEND_API_KEY", ""),
		MailFrom:           getEnv("MAIL_FROM", "Billing <billing@example.com>"),
		MailAPIURL:         getEnv("MAIL_API_URL", "https://api.resend.com"),
		PhoneRegion:        getEnv("PHONE_REGION", "IN"),
		VerifyInterval:     getEnvDuration("VERIFY_INTERVAL", time.Hour),
		VerifyOnStart:      getEnvBool("VERIFY_ON_START", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.UploadURLTTL <= 0 || c.UploadURLTTL > 7*24*time.Hour {
		return fmt.Errorf("UPLOAD_URL_TTL must be between 1ns and 7 days")
	}
	if c.IsProduction() && c.ResendAPIKey != "" && c.MailFrom == "" {
		return fmt.Errorf("MAIL_FROM is required when RESEND_API_KEY is set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Format = c.LogFormat
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return d
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
