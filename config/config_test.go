package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "scribe")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "scribe")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("S3_KEY", "key")
	t.Setenv("S3_SECRET", "secret")
	t.Setenv("S3_BUCKET", "articles")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 7*24*time.Hour, cfg.SignedURLTTL)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, "object", cfg.AudioStorage)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.FrontendOrigins)
	assert.Equal(t, "host=localhost user=scribe password=secret dbname=scribe port=5432 sslmode=disable", cfg.DSN())
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, name := range []string{"OPENAI_API_KEY", "JWT_SECRET", "S3_SECRET", "DB_HOST"} {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(name, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "jwt")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be at least 32 bytes")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DBHost:           "localhost",
			DBUser:           "scribe",
			DBPassword:       "secret",
			DBName:           "scribe",
			OpenAIAPIKey:     "sk-test",
			S3Key:            "key",
			S3Secret:         "secret",
			S3Bucket:         "articles",
			JWTSecret:        "0123456789abcdef0123456789abcdef",
			AudioStorage:     "object",
			RetryMaxAttempts: 3,
			SignedURLTTL:     time.Hour,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "inline audio", mutate: func(c *Config) { c.AudioStorage = "inline" }},
		{name: "unknown audio storage", mutate: func(c *Config) { c.AudioStorage = "disk" }, wantErr: "AUDIO_STORAGE"},
		{name: "zero attempts", mutate: func(c *Config) { c.RetryMaxAttempts = 0 }, wantErr: "RETRY_MAX_ATTEMPTS"},
		{name: "ttl beyond a week", mutate: func(c *Config) { c.SignedURLTTL = 8 * 24 * time.Hour }, wantErr: "SIGNED_URL_TTL"},
		{name: "blank jwt secret", mutate: func(c *Config) { c.JWTSecret = "   " }, wantErr: "JWT_SECRET must not be empty"},
		{name: "short jwt secret", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: "JWT_SECRET must be at least"},
		{name: "empty s3 key", mutate: func(c *Config) { c.S3Key = "" }, wantErr: "S3_KEY"},
		{name: "negative rate limit", mutate: func(c *Config) { c.RateLimitAnonymous = -1 }, wantErr: "rate limits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
