package config

import (
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// Config is the root configuration for the iconbridge daemon.
	Config struct {
		Logger  LoggerConfig  `yaml:"logger"`
		Bus     BusConfig     `yaml:"bus"`
		Fetcher FetcherConfig `yaml:"fetcher"`
		Browser BrowserConfig `yaml:"browser"`
		Server  ServerConfig  `yaml:"server"`
		Metrics MetricsConfig `yaml:"metrics"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
	}

	// BusConfig selects the broadcast bus backing ("memory" or "redis").
	BusConfig struct {
		Type  string         `yaml:"type"`
		Redis BusRedisConfig `yaml:"redis"`
	}

	// BusRedisConfig is the Redis pub/sub configuration for the bus.
	BusRedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Topic    string `yaml:"topic"`
	}

	// FetcherConfig bounds the per-account fetch loop. The fetch timeout is
	// intentionally longer than the locator deadline so a late report still
	// has a delivery margin.
	FetcherConfig struct {
		LocatorDeadline time.Duration `yaml:"locator_deadline"`
		PollInterval    time.Duration `yaml:"poll_interval"`
		FetchTimeout    time.Duration `yaml:"fetch_timeout"`
		Cooldown        time.Duration `yaml:"cooldown"`
	}

	// BrowserConfig configures the Chrome DevTools driver.
	BrowserConfig struct {
		Headless bool   `yaml:"headless"`
		ExecPath string `yaml:"exec_path"`
	}

	// ServerConfig configures the HTTP front-end.
	ServerConfig struct {
		Port int `yaml:"port"`
	}

	// MetricsConfig configures the Prometheus registry.
	MetricsConfig struct {
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}
)

// LoadConfig loads configuration from a YAML file with environment variable
// support and applies defaults.
func LoadConfig(path string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = resolveEnv(data)
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// SetDefaults fills zero-valued fields with the defaults observed in the
// shipped product (5s locator deadline, 6s fetch timeout, 500ms cooldown).
func (c *Config) SetDefaults() {
	if c.Bus.Type == "" {
		c.Bus.Type = "memory"
	}
	if c.Bus.Redis.Topic == "" {
		c.Bus.Redis.Topic = "iconbridge:bus"
	}
	if c.Fetcher.LocatorDeadline == 0 {
		c.Fetcher.LocatorDeadline = 5 * time.Second
	}
	if c.Fetcher.PollInterval == 0 {
		c.Fetcher.PollInterval = 50 * time.Millisecond
	}
	if c.Fetcher.FetchTimeout == 0 {
		c.Fetcher.FetchTimeout = 6 * time.Second
	}
	if c.Fetcher.Cooldown == 0 {
		c.Fetcher.Cooldown = 500 * time.Millisecond
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5280
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "iconbridge"
	}
}

// resolveEnv replaces ${VAR} and ${VAR:default} placeholders in YAML content.
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
