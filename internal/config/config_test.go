package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("REPORT_CACHE_TTL", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, "IN", cfg.PhoneRegion)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("VERIFY_INTERVAL", "90s")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("VERIFY_ON_START", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.VerifyInterval)
	assert.Zero(t, cfg.RedisDB)
	assert.True(t, cfg.VerifyOnStart)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"port out of range", func(c *Config) { c.Port = 70000 }, false},
		{"missing db path", func(c *Config) { c.DBPath = "" }, false},
		{"zero lock ttl", func(c *Config) { c.LockTTL = 0 }, false},
		{"upload ttl over a week", func(c *Config) { c.UploadURLTTL = 8 * 24 * time.Hour }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Port: 8080, DBPath: "x.db", LockTTL: time.Second, UploadURLTTL: time.Minute}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
