// Package config provides environment configuration for the autochat engine.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the application.
type Config struct {
	Environment string `env:"ENV" envDefault:"production"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Server settings
	ServerPort         string        `env:"PORT" envDefault:"8080"`
	ServerReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	ServerWriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Marketplace backend
	BackendURL   string `env:"BACKEND_URL" envDefault:"http://localhost:10000"`
	BackendToken string `env:"BACKEND_TOKEN"`

	// Database
	DatabaseURL    string        `env:"DATABASE_URL"`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"2"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate    bool          `env:"DB_AUTO_MIGRATE" envDefault:"false"`

	// LLM settings, used when the settings row leaves them blank
	OpenAIAPIKey      string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string  `env:"OPENAI_BASE_URL"`
	OpenAIModel       string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAITemperature float32 `env:"OPENAI_TEMPERATURE" envDefault:"0.7"`
	SystemPrompt      string  `env:"SYSTEM_PROMPT"`

	// Engine
	Workers                int           `env:"WORKERS" envDefault:"8"`
	ConversationPageSize   int           `env:"CONVERSATION_PAGE_SIZE" envDefault:"50"`
	HistoryPageSize        int           `env:"HISTORY_PAGE_SIZE" envDefault:"25"`
	CallTimeout            time.Duration `env:"CALL_TIMEOUT" envDefault:"30s"`
	ModelMaxAttempts       int           `env:"MODEL_MAX_ATTEMPTS" envDefault:"3"`
	ModelRetryDelay        time.Duration `env:"MODEL_RETRY_DELAY" envDefault:"5s"`
	Schedule               string        `env:"SCHEDULE" envDefault:"@every 1m"`
	TriggerOrderProcessing bool          `env:"TRIGGER_ORDER_PROCESSING" envDefault:"true"`

	// Rate limiting
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"10"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// NATS settings, events are disabled when NATSURL is empty
	NATSURL      string `env:"NATS_URL"`
	NATSCAFile   string `env:"NATS_CA_FILE"`
	NATSCertFile string `env:"NATS_CERT_FILE"`
	NATSKeyFile  string `env:"NATS_KEY_FILE"`
	NATSToken    string `env:"NATS_TOKEN"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint string `env:"TRACING_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values env tags cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.ModelMaxAttempts <= 0 {
		return fmt.Errorf("MODEL_MAX_ATTEMPTS must be positive, got %d", c.ModelMaxAttempts)
	}
	if c.ModelRetryDelay < 0 {
		return fmt.Errorf("MODEL_RETRY_DELAY must not be negative")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT must be positive")
	}
	if c.ConversationPageSize <= 0 {
		c.ConversationPageSize = 50
	}
	if c.HistoryPageSize <= 0 {
		c.HistoryPageSize = 25
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.ServerPort
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
