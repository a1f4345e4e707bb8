// Package config holds the client-side settings: where the auth API
// lives, how long to wait for it and where the session is persisted.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL  = "http://localhost:3000"
	DefaultTimeout  = 10 * time.Second
	DefaultDBPath   = "life-session.db"
	DefaultCooldown = 60 * time.Second
)

type Config struct {
	// BaseURL is the auth API root, without a trailing slash.
	BaseURL string
	// Timeout bounds every remote call.
	Timeout        time.Duration
	SessionDBPath  string
	ResendCooldown time.Duration
	LogLevel       string
}

func (c *Config) LoadDefaults() {
	c.BaseURL = DefaultBaseURL
	c.Timeout = DefaultTimeout
	c.SessionDBPath = DefaultDBPath
	c.ResendCooldown = DefaultCooldown
	c.LogLevel = "warn"
}

// LoadConfig applies defaults, then the LIFE_* environment (after an
// optional .env file).
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.LoadDefaults()

	if v := os.Getenv("LIFE_API_URL"); v != "" {
		cfg.BaseURL = v
	}
	if d, ok := envDuration("LIFE_API_TIMEOUT"); ok {
		cfg.Timeout = d
	}
	if v := os.Getenv("LIFE_SESSION_DB"); v != "" {
		cfg.SessionDBPath = v
	}
	if d, ok := envDuration("LIFE_RESEND_COOLDOWN"); ok {
		cfg.ResendCooldown = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
