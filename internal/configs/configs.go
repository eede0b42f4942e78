/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures the server by reading operating system environment variables: the running
environment, port, CORS allowed origins, session and invite lifetimes, message limits, and
the optional PostgreSQL and S3 backends.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int
	LogLevel    string

	// Security Settings
	AllowedOrigins []string
	JWTSecret      string
	SessionTTL     time.Duration

	// Realtime Settings
	InviteTTL     time.Duration
	SendQueueSize int

	// Message Limits
	MaxContentBytes    int
	MaxAttachments     int
	MaxAttachmentBytes int64

	// S3 Storage Settings. All empty keeps attachments inline.
	S3BucketName      string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Database Settings. Empty selects the in-memory store.
	DatabaseDSN string
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Port, err = intVar("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// --- Security Settings ---
	cfg.AllowedOrigins = []string{}
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		jwtSecret = "your_default_insecure_secret_key_change_me"
	}
	cfg.JWTSecret = jwtSecret

	if cfg.SessionTTL, err = durationVar("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	// --- Realtime Settings ---
	if cfg.InviteTTL, err = durationVar("INVITE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SendQueueSize, err = intVar("SEND_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}

	// --- Message Limits ---
	if cfg.MaxContentBytes, err = intVar("MAX_CONTENT_BYTES", 5000); err != nil {
		return nil, err
	}
	if cfg.MaxAttachments, err = intVar("MAX_ATTACHMENTS", 10); err != nil {
		return nil, err
	}
	maxAttachmentBytes, err := intVar("MAX_ATTACHMENT_BYTES", 5*1024*1024)
	if err != nil {
		return nil, err
	}
	cfg.MaxAttachmentBytes = int64(maxAttachmentBytes)

	// --- S3 Storage Settings ---
	cfg.S3BucketName = os.Getenv("S3_BUCKET_NAME")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3Region = os.Getenv("S3_REGION")
	cfg.S3AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
	cfg.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")

	if cfg.S3BucketName != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
		return nil, fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when S3_BUCKET_NAME is set")
	}

	// --- Database Settings ---
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")

	return cfg, nil
}

// intVar reads a positive integer variable, falling back to def when unset.
func intVar(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}

// durationVar reads a positive Go duration ("90s", "5m"), falling back to def when unset.
func durationVar(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return v, nil
}
