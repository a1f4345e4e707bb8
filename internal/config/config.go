package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	EnableTLS   bool
	TLSPort     int
	AutoCert    bool
	Domain      string
	CertFile    string
	KeyFile     string
	AutoCertDir string
	Email       string

	AllowedOrigins []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	// CodeTTL is the verification code validity window.
	CodeTTL time.Duration
	// ExpiredRetention keeps expired codes around in Redis so a late
	// validation reports "expired" instead of "not found".
	ExpiredRetention time.Duration
	CodePepper       string

	TokenMode string // "jwt" or "opaque"
	JWTSecret string
	TokenTTL  time.Duration
}

type StorageConfig struct {
	CodeStore string // "memory" or "redis"
	UserStore string // "memory" or "scylla"
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string

	// TLSCAFile is only used in production.
	TLSCAFile string
}

type KafkaConfig struct {
	Brokers []string
}

type SMSConfig struct {
	Sender string // "log" or "kafka"
	Topic  string
}

type Config struct {
	Environment string
	Server      ServerConfig
	Logging     LoggingConfig
	Auth        AuthConfig
	Storage     StorageConfig
	Redis       RedisConfig
	Scylla      ScyllaConfig
	Kafka       KafkaConfig
	SMS         SMSConfig
}

// LoadConfig reads the process environment, after merging an optional .env
// file, into a Config.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("APP_ENV", EnvDevelopment),
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 3000),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			EnableTLS:      getEnvBool("TLS_ENABLED", false),
			TLSPort:        getEnvInt("TLS_PORT", 3443),
			AutoCert:       getEnvBool("TLS_AUTOCERT", false),
			Domain:         getEnv("TLS_DOMAIN", "localhost"),
			CertFile:       getEnv("TLS_CERT_FILE", ""),
			KeyFile:        getEnv("TLS_KEY_FILE", ""),
			AutoCertDir:    getEnv("TLS_AUTOCERT_DIR", "./certs"),
			Email:          getEnv("TLS_EMAIL", ""),
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Auth: AuthConfig{
			CodeTTL:          getEnvDuration("AUTH_CODE_TTL", 5*time.Minute),
			ExpiredRetention: getEnvDuration("AUTH_CODE_RETENTION", time.Hour),
			CodePepper:       getEnv("AUTH_CODE_PEPPER", ""),
			TokenMode:        getEnv("AUTH_TOKEN_MODE", "jwt"),
			JWTSecret:        getEnv("JWT_SECRET", ""),
			TokenTTL:         getEnvDuration("JWT_TTL", 30*24*time.Hour),
		},
		Storage: StorageConfig{
			CodeStore: getEnv("CODE_STORE", "memory"),
			UserStore: getEnv("USER_STORE", "memory"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
		},
		Scylla: ScyllaConfig{
			Nodes:     getEnvSlice("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace:  getEnv("SCYLLA_KEYSPACE", "life_auth"),
			Username:  getEnv("SCYLLA_USERNAME", ""),
			Password:  getEnv("SCYLLA_PASSWORD", ""),
			TLSCAFile: getEnv("SCYLLA_TLS_CA_FILE", "/app/certs/scylla-ca.pem"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		},
		SMS: SMSConfig{
			Sender: getEnv("SMS_SENDER", "log"),
			Topic:  getEnv("SMS_TOPIC", "sms.verification"),
		},
	}
}

// Validate rejects combinations that must never reach a running server.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case EnvDevelopment, EnvProduction, "test":
	default:
		errs = append(errs, fmt.Errorf("unknown APP_ENV %q", c.Environment))
	}
	if c.Auth.CodeTTL <= 0 {
		errs = append(errs, errors.New("AUTH_CODE_TTL must be positive"))
	}
	switch c.Auth.TokenMode {
	case "jwt":
		if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
			errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
		}
	case "opaque":
		if c.IsProduction() {
			errs = append(errs, errors.New("opaque tokens are not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_TOKEN_MODE %q", c.Auth.TokenMode))
	}
	if c.Storage.CodeStore != "memory" && c.Storage.CodeStore != "redis" {
		errs = append(errs, fmt.Errorf("unknown CODE_STORE %q", c.Storage.CodeStore))
	}
	if c.Storage.UserStore != "memory" && c.Storage.UserStore != "scylla" {
		errs = append(errs, fmt.Errorf("unknown USER_STORE %q", c.Storage.UserStore))
	}
	if c.SMS.Sender != "log" && c.SMS.Sender != "kafka" {
		errs = append(errs, fmt.Errorf("unknown SMS_SENDER %q", c.SMS.Sender))
	}
	if c.Server.EnableTLS && c.Server.AutoCert && c.Server.Domain == "" {
		errs = append(errs, errors.New("TLS_DOMAIN is required with TLS_AUTOCERT"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// ExposeCodes reports whether issued codes are echoed back in the
// send-code response. Only development deployments do this.
func (c *Config) ExposeCodes() bool {
	return c.IsDevelopment()
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
