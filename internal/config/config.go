package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	HTTP      HTTPConfig      `yaml:"http"`
	Queue     QueueConfig     `yaml:"queue"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the inbound JSON-RPC listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// HTTPConfig holds HTTP API settings.
type HTTPConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"` // POST requests per client IP, 0 disables
	JWTSecret          string   `yaml:"jwt_secret"`            // empty disables auth on /api
}

// Addr returns the listen address.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// QueueConfig holds the processing queue connection settings.
type QueueConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Timeout     time.Duration `yaml:"timeout"`      // per dispatch call, 0 means no limit
	DialTimeout time.Duration `yaml:"dial_timeout"` // 0 means no limit
}

// Addr returns the queue service address.
func (q QueueConfig) Addr() string {
	return net.JoinHostPort(q.Host, strconv.Itoa(q.Port))
}

// DatabaseConfig holds database connection settings. An empty URL keeps the
// dispatch history in memory.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// SchedulerConfig holds settings for the transaction scheduler.
type SchedulerConfig struct {
	Timezone string `yaml:"timezone"` // IANA name; empty means the host's local zone
}

// Location resolves Timezone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		HTTP: HTTPConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			CORSAllowedOrigins: []string{"*"},
			RateLimitPerMinute: 120,
		},
		Queue: QueueConfig{
			Host:        "localhost",
			Port:        4000,
			Timeout:     10 * time.Second,
			DialTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML configuration file at path and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads ".env" and "config.yaml" from the current directory when
// they exist, then applies environment overrides. Missing files fall back to
// defaults; any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := Load("config.yaml")
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = defaults()
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with the process environment. Empty variables are
// ignored.
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, func(key string) (string, bool) {
		v, ok := os.LookupEnv(key)
		return v, ok && strings.TrimSpace(v) != ""
	})
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("HOST", &cfg.Server.Host)
	num("PORT", &cfg.Server.Port)
	str("HTTP_HOST", &cfg.HTTP.Host)
	num("HTTP_PORT", &cfg.HTTP.Port)
	num("RATE_LIMIT_PER_MINUTE", &cfg.HTTP.RateLimitPerMinute)
	str("JWT_SECRET", &cfg.HTTP.JWTSecret)
	if v, ok := lookup("CORS_ALLOWED_ORIGINS"); ok {
		cfg.HTTP.CORSAllowedOrigins = splitList(v)
	}
	str("QUEUE_SERVICE_HOST", &cfg.Queue.Host)
	num("QUEUE_SERVICE_PORT", &cfg.Queue.Port)
	dur("QUEUE_TIMEOUT", &cfg.Queue.Timeout)
	dur("QUEUE_DIAL_TIMEOUT", &cfg.Queue.DialTimeout)
	str("DATABASE_URL", &cfg.Database.URL)
	str("SCHEDULER_TZ", &cfg.Scheduler.Timezone)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	for name, port := range map[string]int{
		"server.port": c.Server.Port,
		"http.port":   c.HTTP.Port,
		"queue.port":  c.Queue.Port,
	} {
		if port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s: %d is not a valid port", name, port))
		}
	}
	if c.Queue.Host == "" {
		errs = append(errs, errors.New("queue.host is required"))
	}
	if c.HTTP.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("http.rate_limit_per_minute must not be negative"))
	}
	if _, err := c.Scheduler.Location(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
