// Package config loads engine settings from defaults, an optional YAML file
// and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the deployment surface of the engine.
type Config struct {
	BaseURL        string
	DebounceDelay  time.Duration
	RequestTimeout time.Duration
	HealthTimeout  time.Duration
	ListenAddr     string
	LogLevel       string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:        "http://localhost:8000",
		DebounceDelay:  500 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
		HealthTimeout:  5 * time.Second,
		ListenAddr:     ":8080",
		LogLevel:       "info",
	}
}

// FileConfig is the YAML shape. Zero values mean "not set".
type FileConfig struct {
	Service struct {
		BaseURL        string        `yaml:"baseURL"`
		RequestTimeout time.Duration `yaml:"requestTimeout"`
		HealthTimeout  time.Duration `yaml:"healthTimeout"`
	} `yaml:"service"`
	Input struct {
		DebounceDelay time.Duration `yaml:"debounceDelay"`
	} `yaml:"input"`
	Server struct {
		ListenAddr string `yaml:"listenAddr"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Environment variables that override file and defaults.
const (
	EnvBaseURL        = "PROJECTION_BASE_URL"
	EnvDebounceDelay  = "PROJECTION_DEBOUNCE_DELAY"
	EnvRequestTimeout = "PROJECTION_REQUEST_TIMEOUT"
	EnvHealthTimeout  = "PROJECTION_HEALTH_TIMEOUT"
	EnvListenAddr     = "LISTEN_ADDR"
	EnvLogLevel       = "LOG_LEVEL"
)

// Load reads configPath, or the first of the default locations that exists,
// then applies environment overrides. A missing or unreadable file is not an
// error; a file that exists but does not parse is.
func Load(configPath string) (Config, error) {
	cfg := Default()

	candidates := []string{"configs/config.yaml"}
	if configPath != "" {
		candidates = []string{configPath}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath != "" && !errors.Is(err, os.ErrNotExist) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
			continue
		}

		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg, os.Getenv)
	return cfg, nil
}

// Merge copies every set field of src into dst.
func Merge(dst *Config, src FileConfig) {
	if v := strings.TrimSpace(src.Service.BaseURL); v != "" {
		dst.BaseURL = v
	}
	if src.Service.RequestTimeout > 0 {
		dst.RequestTimeout = src.Service.RequestTimeout
	}
	if src.Service.HealthTimeout > 0 {
		dst.HealthTimeout = src.Service.HealthTimeout
	}
	if src.Input.DebounceDelay > 0 {
		dst.DebounceDelay = src.Input.DebounceDelay
	}
	if v := strings.TrimSpace(src.Server.ListenAddr); v != "" {
		dst.ListenAddr = v
	}
	if v := strings.TrimSpace(src.Log.Level); v != "" {
		dst.LogLevel = v
	}
}

// ApplyEnvOverrides applies the environment on top of cfg. Values that do not
// parse are ignored.
func ApplyEnvOverrides(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
	if d, ok := envDuration(getenv, EnvDebounceDelay); ok {
		cfg.DebounceDelay = d
	}
	if d, ok := envDuration(getenv, EnvRequestTimeout); ok {
		cfg.RequestTimeout = d
	}
	if d, ok := envDuration(getenv, EnvHealthTimeout); ok {
		cfg.HealthTimeout = d
	}
	if v := strings.TrimSpace(getenv(EnvListenAddr)); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
}

func envDuration(getenv func(string) string, key string) (time.Duration, bool) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// Validate reports settings the engine cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: base URL %q must be absolute", c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: base URL scheme %q not supported", u.Scheme)
	}
	if c.DebounceDelay <= 0 {
		return errors.New("config: debounce delay must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: request timeout must be positive")
	}
	if c.HealthTimeout <= 0 {
		return errors.New("config: health timeout must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
