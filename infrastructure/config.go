package infrastructure

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting the API, migrator and worker need.
type Config struct {
	ServiceName string
	Host        string
	Port        int
	LogLevel    string

	DatabaseURL  string
	DatabaseName string

	EventsURL   string
	EventsTopic string

	RedisURL string
	CacheTTL time.Duration

	OTLPEndpoint   string
	MetricsEnabled bool

	DefaultLimit int
	MaxLimit     int
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// fileConfig mirrors the optional YAML config file (snake_case keys, durations as strings).
type fileConfig struct {
	ServiceName    string `yaml:"service_name"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	LogLevel       string `yaml:"log_level"`
	DatabaseURL    string `yaml:"database_url"`
	DatabaseName   string `yaml:"database_name"`
	EventsURL      string `yaml:"events_url"`
	EventsTopic    string `yaml:"events_topic"`
	RedisURL       string `yaml:"redis_url"`
	CacheTTL       string `yaml:"cache_ttl"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	MetricsEnabled *bool  `yaml:"metrics_enabled"`
	DefaultLimit   int    `yaml:"default_limit"`
	MaxLimit       int    `yaml:"max_limit"`
}

// LoadConfig loads .env (if present), then the YAML file at path (if path is non-empty),
// then lets environment variables override, applies defaults and validates.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}

	var raw fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg := &Config{
		ServiceName:    orDefault(raw.ServiceName, "staff-arabia-api"),
		Host:           orDefault(raw.Host, "0.0.0.0"),
		Port:           raw.Port,
		LogLevel:       orDefault(raw.LogLevel, "info"),
		DatabaseURL:    raw.DatabaseURL,
		DatabaseName:   raw.DatabaseName,
		EventsURL:      raw.EventsURL,
		EventsTopic:    orDefault(raw.EventsTopic, "documents.created"),
		RedisURL:       raw.RedisURL,
		CacheTTL:       30 * time.Second,
		OTLPEndpoint:   raw.OTLPEndpoint,
		MetricsEnabled: true,
		DefaultLimit:   raw.DefaultLimit,
		MaxLimit:       raw.MaxLimit,
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.DefaultLimit == 0 {
		cfg.DefaultLimit = 12
	}
	if cfg.MaxLimit == 0 {
		cfg.MaxLimit = 100
	}
	if raw.MetricsEnabled != nil {
		cfg.MetricsEnabled = *raw.MetricsEnabled
	}
	if raw.CacheTTL != "" {
		ttl, err := time.ParseDuration(raw.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("parse cache_ttl %q: %w", raw.CacheTTL, err)
		}
		cfg.CacheTTL = ttl
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("SERVICE_NAME", &cfg.ServiceName)
	setString("HOST", &cfg.Host)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("DATABASE_NAME", &cfg.DatabaseName)
	setString("EVENTS_URL", &cfg.EventsURL)
	setString("EVENTS_TOPIC", &cfg.EventsTopic)
	setString("REDIS_URL", &cfg.RedisURL)
	setString("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTLPEndpoint)

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &cfg.Port},
		{"DEFAULT_LIMIT", &cfg.DefaultLimit},
		{"MAX_LIMIT", &cfg.MaxLimit},
	}
	for _, e := range ints {
		v, ok := os.LookupEnv(e.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", e.key, v, err)
		}
		*e.dst = n
	}

	if v, ok := os.LookupEnv("CACHE_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CACHE_TTL %q: %w", v, err)
		}
		cfg.CacheTTL = ttl
	}
	if v, ok := os.LookupEnv("METRICS_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse METRICS_ENABLED %q: %w", v, err)
		}
		cfg.MetricsEnabled = enabled
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default_limit must be positive, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit (%d) must not be below default_limit (%d)", c.MaxLimit, c.DefaultLimit)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %v", c.CacheTTL)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	if c.EventsURL != "" && !strings.HasPrefix(c.EventsURL, "amqp") && !strings.HasPrefix(c.EventsURL, "nats") {
		return fmt.Errorf("events_url must use an amqp:// or nats:// scheme")
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
