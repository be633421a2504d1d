package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	// CORSAllowedOrigins restricts browser callers; empty allows any origin.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// RateLimitRPS enables per-IP rate limiting when positive.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	CredentialsFile string `env:"CREDENTIALS_FILE" envDefault:"./credentials.json"`

	ProviderHTTPTimeout   time.Duration `env:"PROVIDER_HTTP_TIMEOUT" envDefault:"30s"`
	ProviderStreamTimeout time.Duration `env:"PROVIDER_STREAM_TIMEOUT"`
	RetryAttempts         int           `env:"PROVIDER_RETRY_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay        time.Duration `env:"PROVIDER_RETRY_BASE_DELAY" envDefault:"500ms"`
	PollInterval          time.Duration `env:"PROVIDER_POLL_INTERVAL" envDefault:"1s"`
	PollAttempts          int           `env:"PROVIDER_POLL_ATTEMPTS" envDefault:"60"`

	JobWorkers   int           `env:"JOB_WORKERS" envDefault:"4"`
	JobQueueSize int           `env:"JOB_QUEUE_SIZE" envDefault:"64"`
	JobRetention time.Duration `env:"JOB_RETENTION" envDefault:"1h"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile         string
	HTTPAddr        string
	LogLevel        string
	CredentialsFile string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.CredentialsFile != "" {
		cfg.CredentialsFile = overrides.CredentialsFile
	}

	return cfg, nil
}
