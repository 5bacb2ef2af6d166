package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string
	Env         string // "production" enables Secure cookies
	JWTSecret   string
	OTPSalt     string

	// OTPBypassEmail is a single developer address for which OTP issuance
	// stores a fixed known code and skips real email dispatch. Empty
	// disables the bypass.
	OTPBypassEmail string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	AIAPIURL string
	AIAPIKey string
	AIModel  string

	UploadDir string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:      "8080",
		Env:       "development",
		AIModel:   "gpt-4o-mini",
		UploadDir: "uploads",
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg.OTPSalt = os.Getenv("OTP_SALT")
	if cfg.OTPSalt == "" {
		return nil, fmt.Errorf("OTP_SALT environment variable is required")
	}

	cfg.OTPBypassEmail = os.Getenv("OTP_BYPASS_EMAIL")

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPPort = 587
	if p := os.Getenv("SMTP_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", p, err)
		}
		cfg.SMTPPort = port
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if cfg.SMTPHost != "" && cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}

	cfg.AIAPIURL = os.Getenv("AI_API_URL")
	cfg.AIAPIKey = os.Getenv("AI_API_KEY")
	if m := os.Getenv("AI_MODEL"); m != "" {
		cfg.AIModel = m
	}

	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		cfg.UploadDir = dir
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production hardening.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
