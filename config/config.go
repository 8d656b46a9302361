package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting read from the environment.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	HTTPPort        string   `envconfig:"HTTP_PORT" default:"8080"`
	FrontendOrigins []string `envconfig:"FRONTEND_ORIGINS" default:"http://localhost:5173"`
	MetricsAPIKey   string   `envconfig:"METRICS_API_KEY"`

	// Generation provider
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	TextModel     string `envconfig:"TEXT_MODEL" default:"gpt-4o"`
	ImageModel    string `envconfig:"IMAGE_MODEL" default:"dall-e-3"`
	ImageSize     string `envconfig:"IMAGE_SIZE" default:"1792x1024"`
	SpeechModel   string `envconfig:"SPEECH_MODEL" default:"tts-1"`
	SpeechVoice   string `envconfig:"SPEECH_VOICE" default:"alloy"`

	ProviderTimeout  time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"90s"`
	StorageTimeout   time.Duration `envconfig:"STORAGE_TIMEOUT" default:"30s"`
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay    time.Duration `envconfig:"RETRY_MAX_DELAY" default:"8s"`

	// Object storage (any S3 compatible endpoint)
	S3Key    string `envconfig:"S3_KEY" required:"true"`
	S3Secret string `envconfig:"S3_SECRET" required:"true"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket string `envconfig:"S3_BUCKET" required:"true"`

	SignedURLTTL       time.Duration `envconfig:"SIGNED_URL_TTL" default:"168h"`
	URLRefreshSchedule string        `envconfig:"URL_REFRESH_SCHEDULE" default:"@hourly"`
	URLRefreshWindow   time.Duration `envconfig:"URL_REFRESH_WINDOW" default:"24h"`

	// object uploads the mp3 next to the images, inline embeds it as a data URL
	AudioStorage string `envconfig:"AUDIO_STORAGE" default:"object"`

	// Sessions and rate limiting
	JWTSecret              string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL                 time.Duration `envconfig:"JWT_TTL" default:"24h"`
	RedisAddr              string        `envconfig:"REDIS_ADDR"`
	RedisPassword          string        `envconfig:"REDIS_PASSWORD"`
	RedisDB                int           `envconfig:"REDIS_DB" default:"0"`
	RateLimitWindow        time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1h"`
	RateLimitAnonymous     int           `envconfig:"RATE_LIMIT_ANONYMOUS" default:"5"`
	RateLimitAuthenticated int           `envconfig:"RATE_LIMIT_AUTHENTICATED" default:"30"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// MinJWTSecretLength is the shortest accepted HMAC key, 256 bits for HS256.
const MinJWTSecretLength = 32

// Validate checks settings envconfig cannot express. envconfig only enforces
// that required variables are set, so empty values are rejected here.
func (c *Config) Validate() error {
	for _, v := range []struct{ name, value string }{
		{"DB_HOST", c.DBHost},
		{"DB_USER", c.DBUser},
		{"DB_PASSWORD", c.DBPassword},
		{"DB_NAME", c.DBName},
		{"OPENAI_API_KEY", c.OpenAIAPIKey},
		{"S3_KEY", c.S3Key},
		{"S3_SECRET", c.S3Secret},
		{"S3_BUCKET", c.S3Bucket},
		{"JWT_SECRET", c.JWTSecret},
	} {
		if strings.TrimSpace(v.value) == "" {
			return fmt.Errorf("%s must not be empty", v.name)
		}
	}
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", MinJWTSecretLength, len(c.JWTSecret))
	}
	switch strings.ToLower(c.AudioStorage) {
	case "object", "inline":
	default:
		return fmt.Errorf("AUDIO_STORAGE must be object or inline, got %q", c.AudioStorage)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.SignedURLTTL <= 0 || c.SignedURLTTL > 7*24*time.Hour {
		// S3 SigV4 presigned URLs cannot outlive 7 days.
		return fmt.Errorf("SIGNED_URL_TTL must be within (0, 168h], got %s", c.SignedURLTTL)
	}
	if c.RateLimitAnonymous < 0 || c.RateLimitAuthenticated < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	return nil
}

// Load reads the configuration from the environment, honouring a local .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
