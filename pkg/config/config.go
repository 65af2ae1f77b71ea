package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	API     APIConfig
	Backend BackendConfig
	Session SessionConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Booking BookingConfig
	Log     LogConfig
	OTEL    OTELConfig
}

// APIConfig holds the remote backend connection settings
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// BackendConfig selects the backend implementation.
// "remote" talks HTTP to APIConfig.BaseURL, "mock" runs the in-memory backend.
// StatePath, when set, persists the mock backend between runs.
type BackendConfig struct {
	Mode      string
	StatePath string
}

// SessionConfig holds session persistence configuration
type SessionConfig struct {
	Store   string
	Path    string
	Profile string
	TTL     time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig holds session bootstrap settings
type AuthConfig struct {
	BootstrapAttempts int
	BootstrapDelay    time.Duration
}

// BookingConfig holds booking workflow settings
type BookingConfig struct {
	AvailabilityDebounce time.Duration
	RefreshInterval      time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Env   string
	Level string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL: getEnv("MEDIBOOK_API_URL", "http://localhost:3001/api"),
			Timeout: getEnvAsDuration("MEDIBOOK_API_TIMEOUT", 10*time.Second),
		},
		Backend: BackendConfig{
			Mode:      getEnv("MEDIBOOK_BACKEND", "remote"),
			StatePath: getEnv("MEDIBOOK_MOCK_STATE", defaultMockStatePath()),
		},
		Session: SessionConfig{
			Store:   getEnv("MEDIBOOK_SESSION_STORE", "file"),
			Path:    getEnv("MEDIBOOK_SESSION_PATH", defaultSessionPath()),
			Profile: getEnv("MEDIBOOK_PROFILE", "default"),
			TTL:     getEnvAsDuration("MEDIBOOK_SESSION_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			BootstrapAttempts: getEnvAsInt("MEDIBOOK_AUTH_BOOTSTRAP_ATTEMPTS", 3),
			BootstrapDelay:    getEnvAsDuration("MEDIBOOK_AUTH_BOOTSTRAP_DELAY", 500*time.Millisecond),
		},
		Booking: BookingConfig{
			AvailabilityDebounce: getEnvAsDuration("MEDIBOOK_AVAILABILITY_DEBOUNCE", 0),
			RefreshInterval:      getEnvAsDuration("MEDIBOOK_REFRESH_INTERVAL", 0),
		},
		Log: LogConfig{
			Env:   getEnv("MEDIBOOK_ENV", "development"),
			Level: getEnv("MEDIBOOK_LOG_LEVEL", "warn"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "medibook"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and bounds
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case "remote", "mock":
	default:
		return fmt.Errorf("MEDIBOOK_BACKEND must be \"remote\" or \"mock\", got %q", c.Backend.Mode)
	}
	switch c.Session.Store {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("MEDIBOOK_SESSION_STORE must be \"file\", \"redis\" or \"memory\", got %q", c.Session.Store)
	}
	if c.Backend.Mode == "remote" && c.API.BaseURL == "" {
		return fmt.Errorf("MEDIBOOK_API_URL is required when MEDIBOOK_BACKEND is \"remote\"")
	}
	if c.Auth.BootstrapAttempts < 1 {
		return fmt.Errorf("MEDIBOOK_AUTH_BOOTSTRAP_ATTEMPTS must be at least 1, got %d", c.Auth.BootstrapAttempts)
	}
	return nil
}

// IsDev reports whether the client runs in development mode
func (c *Config) IsDev() bool {
	return c.Log.Env == "development"
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".medibook/session.json"
	}
	return filepath.Join(home, ".medibook", "session.json")
}

func defaultMockStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".medibook/mock_state.json"
	}
	return filepath.Join(home, ".medibook", "mock_state.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
