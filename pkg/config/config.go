package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hugh/serviexpress/pkg/util"
	"github.com/spf13/viper"
)

// Submission modes select how validated forms leave the process.
const (
	SubmitModeLog   = "log"
	SubmitModeHTTP  = "http"
	SubmitModeQueue = "queue"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Backend    BackendConfig
	Storage    StorageConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	Upload     UploadConfig
	Worker     WorkerConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	AllowedOrigins []string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type BackendConfig struct {
	SubmitMode     string
	URL            string
	TimeoutSeconds int
}

type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

type UploadConfig struct {
	MaxMB int
}

type WorkerConfig struct {
	Concurrency    int
	SweepCron      string
	RetentionHours int
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (b *BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// MaxBytes is the request body limit for form posts.
func (u *UploadConfig) MaxBytes() int64 {
	return int64(u.MaxMB) << 20
}

// Retention is how long a staged document may wait for delivery before the
// sweep removes it.
func (w *WorkerConfig) Retention() time.Duration {
	return time.Duration(w.RetentionHours) * time.Hour
}

// Validate checks that the settings needed by the selected submit mode are present.
func (c *Config) Validate() error {
	switch c.Backend.SubmitMode {
	case SubmitModeLog:
	case SubmitModeHTTP:
		if c.Backend.URL == "" {
			return fmt.Errorf("BACKEND_URL is required when SUBMIT_MODE=%s", SubmitModeHTTP)
		}
	case SubmitModeQueue:
		if c.Backend.URL == "" {
			return fmt.Errorf("BACKEND_URL is required when SUBMIT_MODE=%s", SubmitModeQueue)
		}
		if c.Storage.Bucket == "" {
			return fmt.Errorf("STORAGE_BUCKET is required when SUBMIT_MODE=%s", SubmitModeQueue)
		}
		// The server encrypts and the worker decrypts, so both need the same key.
		if c.Encryption.Key == "" {
			return fmt.Errorf("ENCRYPTION_KEY is required when SUBMIT_MODE=%s", SubmitModeQueue)
		}
	default:
		return fmt.Errorf("unknown SUBMIT_MODE %q", c.Backend.SubmitMode)
	}

	if c.Upload.MaxMB <= 0 {
		return fmt.Errorf("UPLOAD_MAX_MB must be positive, got %d", c.Upload.MaxMB)
	}
	if err := util.ValidateCronExpr(c.Worker.SweepCron); err != nil {
		return fmt.Errorf("STAGING_SWEEP_CRON: %w", err)
	}
	return nil
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("SUBMIT_MODE", SubmitModeLog)
	v.SetDefault("BACKEND_URL", "")
	v.SetDefault("BACKEND_TIMEOUT_SECONDS", 15)
	v.SetDefault("STORAGE_BUCKET", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("UPLOAD_MAX_MB", 10)
	v.SetDefault("WORKER_CONCURRENCY", 5)
	v.SetDefault("STAGING_SWEEP_CRON", "0 3 * * *")
	v.SetDefault("STAGING_RETENTION_HOURS", 72)

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		Backend: BackendConfig{
			SubmitMode:     strings.ToLower(v.GetString("SUBMIT_MODE")),
			URL:            strings.TrimRight(v.GetString("BACKEND_URL"), "/"),
			TimeoutSeconds: v.GetInt("BACKEND_TIMEOUT_SECONDS"),
		},
		Storage: StorageConfig{
			Bucket:          v.GetString("STORAGE_BUCKET"),
			Region:          v.GetString("STORAGE_REGION"),
			Endpoint:        v.GetString("STORAGE_ENDPOINT"),
			AccessKeyID:     v.GetString("STORAGE_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("STORAGE_SECRET_ACCESS_KEY"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Upload: UploadConfig{
			MaxMB: v.GetInt("UPLOAD_MAX_MB"),
		},
		Worker: WorkerConfig{
			Concurrency:    v.GetInt("WORKER_CONCURRENCY"),
			SweepCron:      v.GetString("STAGING_SWEEP_CRON"),
			RetentionHours: v.GetInt("STAGING_RETENTION_HOURS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
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
