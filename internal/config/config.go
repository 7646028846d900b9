package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration. Values come from the environment
// (optionally seeded from .env) or from the YAML file named by CONFIG_FILE,
// with environment variables overriding the file.
type Config struct {
	Env     string        `yaml:"env" env:"APP_ENV" env-default:"development"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Events  EventsConfig  `yaml:"events"`
	Log     LogConfig     `yaml:"log"`
	API     APIConfig     `yaml:"api"`
}

type ServerConfig struct {
	BindAddr        string        `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" env-default:"1048576"`
	// AllowedOrigins is a comma separated list; "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.BindAddr + ":" + s.Port
}

type StorageConfig struct {
	// Driver is one of memory, postgres or sqlite.
	Driver       string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	DSN          string `yaml:"-" env:"DATABASE_URL"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	AutoMigrate  bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
}

type EventsConfig struct {
	// Driver is log or redis.
	Driver         string        `yaml:"driver" env:"EVENTS_DRIVER" env-default:"log"`
	RedisAddr      string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword  string        `yaml:"-" env:"REDIS_PASSWORD"`
	RedisDB        int           `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	ChannelPrefix  string        `yaml:"channel_prefix" env:"EVENTS_CHANNEL_PREFIX" env-default:""`
	Buffer         int           `yaml:"buffer" env:"EVENTS_BUFFER" env-default:"256"`
	MaxRetries     int           `yaml:"max_retries" env:"EVENTS_MAX_RETRIES" env-default:"3"`
	RetryDelay     time.Duration `yaml:"retry_delay" env:"EVENTS_RETRY_DELAY" env-default:"100ms"`
	PublishTimeout time.Duration `yaml:"publish_timeout" env:"EVENTS_PUBLISH_TIMEOUT" env-default:"5s"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type APIConfig struct {
	EnableMetrics     bool   `yaml:"enable_metrics" env:"ENABLE_METRICS" env-default:"true"`
	EnableSwagger     bool   `yaml:"enable_swagger" env:"ENABLE_SWAGGER" env-default:"false"`
	DefaultPageSize   int    `yaml:"default_page_size" env:"PAGE_SIZE_DEFAULT" env-default:"10"`
	MaxPageSize       int    `yaml:"max_page_size" env:"PAGE_SIZE_MAX" env-default:"100"`
	ImportMappingPath string `yaml:"import_mapping_path" env:"IMPORT_MAPPING_PATH" env-default:""`
	ImportMaxBytes    int64  `yaml:"import_max_bytes" env:"IMPORT_MAX_BYTES" env-default:"20971520"`
}

// Load reads configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that tags cannot express.
func (c *Config) Validate() error {
	var problems []string

	if p, err := strconv.Atoi(c.Server.Port); err != nil || p <= 0 || p > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %q is not a valid port", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		problems = append(problems, "MAX_BODY_BYTES must be positive")
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres", "sqlite":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			problems = append(problems, fmt.Sprintf("DATABASE_URL is required for storage driver %q", c.Storage.Driver))
		}
	default:
		problems = append(problems, fmt.Sprintf("STORAGE_DRIVER %q must be memory, postgres or sqlite", c.Storage.Driver))
	}

	switch c.Events.Driver {
	case "log":
	case "redis":
		if strings.TrimSpace(c.Events.RedisAddr) == "" {
			problems = append(problems, "REDIS_ADDR is required for the redis event driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("EVENTS_DRIVER %q must be log or redis", c.Events.Driver))
	}
	if c.Events.Buffer <= 0 {
		problems = append(problems, "EVENTS_BUFFER must be positive")
	}
	if c.Events.MaxRetries < 0 {
		problems = append(problems, "EVENTS_MAX_RETRIES must not be negative")
	}
	if c.Events.PublishTimeout <= 0 {
		problems = append(problems, "EVENTS_PUBLISH_TIMEOUT must be positive")
	}

	if c.API.DefaultPageSize <= 0 || c.API.MaxPageSize <= 0 {
		problems = append(problems, "page sizes must be positive")
	} else if c.API.DefaultPageSize > c.API.MaxPageSize {
		problems = append(problems, "PAGE_SIZE_DEFAULT must not exceed PAGE_SIZE_MAX")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LoadAndValidate loads the configuration and validates it.
func LoadAndValidate() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
