// Package config loads calsync settings from a YAML file, an optional .env
// file and CALSYNC_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/calsync/internal/errors"
)

// DefaultAdminCode is the enrollment code the signup form accepts for the
// admin role when none is configured. The backend checks it again.
const DefaultAdminCode = "ADMIN2024"

// Session backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Notification permission values.
const (
	PermissionDefault = "default"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

type Config struct {
	API           APIConfig           `yaml:"api"`
	Session       SessionConfig       `yaml:"session"`
	Signup        SignupConfig        `yaml:"signup"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Log           LogConfig           `yaml:"log"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
}

type APIConfig struct {
	// URL overrides base address resolution entirely.
	URL string `yaml:"url"`
	// Host is the host the client considers itself running on. A localhost
	// or bare IPv4 host points the client at a development backend on the
	// same host.
	Host             string        `yaml:"host"`
	Timeout          time.Duration `yaml:"timeout"`
	ValidateContract bool          `yaml:"validate_contract"`
}

type SessionConfig struct {
	Backend    string      `yaml:"backend"`
	Path       string      `yaml:"path"`
	Passphrase string      `yaml:"passphrase"`
	Redis      RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type SignupConfig struct {
	AdminCode string `yaml:"admin_code"`
}

type NotificationsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Permission is default (ask interactively), granted or denied.
	Permission string `yaml:"permission"`
	// TokenSource is device or webpush.
	TokenSource string `yaml:"token_source"`
	// DevicePath holds the installation id and web push keys.
	DevicePath string `yaml:"device_path"`
	// PushEndpoint is the push service URL a webpush subscription points at.
	PushEndpoint string `yaml:"push_endpoint"`
	// Source is polling or websocket.
	Source       string        `yaml:"source"`
	WebSocketURL string        `yaml:"websocket_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// MetricsAddr is where `notifications listen` serves /metrics and
	// /healthz. Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// Load reads the config file at path. An empty path uses DefaultPath and a
// missing default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := defaults()

	// .env in the working directory, then next to the config file
	loadDotEnv(".env")

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, errors.NewConfigInvalidError(fmt.Sprintf("parsing %s: %v", path, err))
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "reading config file", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides.
func Default() *Config {
	cfg := defaults()
	applyEnvOverrides(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			Timeout:          30 * time.Second,
			ValidateContract: true,
		},
		Session: SessionConfig{
			Backend: BackendFile,
			Path:    filepath.Join(configDir(), "session.json"),
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "calsync:",
			},
		},
		Signup: SignupConfig{
			AdminCode: DefaultAdminCode,
		},
		Notifications: NotificationsConfig{
			Enabled:      true,
			Permission:   PermissionDefault,
			TokenSource:  "device",
			DevicePath:   filepath.Join(configDir(), "device.json"),
			Source:       "polling",
			PollInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			SampleRate: 1.0,
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/calsync/config.yaml, falling back to the
// platform user config directory.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "calsync")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "calsync")
	}
	return ".calsync"
}

func loadDotEnv(path string) {
	// godotenv.Load never overrides variables that are already set
	_ = godotenv.Load(path) //nolint:errcheck // a missing .env is normal
}

func expandEnvVars(s string) string {
	return os.ExpandEnv(s)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CALSYNC_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("CALSYNC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("CALSYNC_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}
	if v := os.Getenv("CALSYNC_VALIDATE_CONTRACT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.API.ValidateContract = b
		}
	}
	if v := os.Getenv("CALSYNC_SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("CALSYNC_SESSION_PATH"); v != "" {
		cfg.Session.Path = v
	}
	if v := os.Getenv("CALSYNC_SESSION_PASSPHRASE"); v != "" {
		cfg.Session.Passphrase = v
	}
	if v := os.Getenv("CALSYNC_REDIS_ADDR"); v != "" {
		cfg.Session.Redis.Addr = v
	}
	if v := os.Getenv("CALSYNC_REDIS_PASSWORD"); v != "" {
		cfg.Session.Redis.Password = v
	}
	if v := os.Getenv("CALSYNC_ADMIN_CODE"); v != "" {
		cfg.Signup.AdminCode = v
	}
	if v := os.Getenv("CALSYNC_NOTIFICATIONS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Notifications.Enabled = b
		}
	}
	if v := os.Getenv("CALSYNC_NOTIFICATION_PERMISSION"); v != "" {
		cfg.Notifications.Permission = strings.ToLower(v)
	}
	if v := os.Getenv("CALSYNC_PUSH_ENDPOINT"); v != "" {
		cfg.Notifications.PushEndpoint = v
	}
	if v := os.Getenv("CALSYNC_WEBSOCKET_URL"); v != "" {
		cfg.Notifications.WebSocketURL = v
	}
	if v := os.Getenv("CALSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CALSYNC_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("CALSYNC_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = v
	}
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var problems []string

	if c.API.Timeout < 0 {
		problems = append(problems, "api.timeout must not be negative")
	}

	switch c.Session.Backend {
	case BackendFile:
		if c.Session.Path == "" {
			problems = append(problems, "session.path is required for the file backend")
		}
	case BackendRedis:
		if c.Session.Redis.Addr == "" {
			problems = append(problems, "session.redis.addr is required for the redis backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("session.backend %q must be one of file, redis, memory", c.Session.Backend))
	}

	switch c.Notifications.Permission {
	case PermissionDefault, PermissionGranted, PermissionDenied:
	default:
		problems = append(problems, fmt.Sprintf("notifications.permission %q must be one of default, granted, denied", c.Notifications.Permission))
	}

	switch c.Notifications.TokenSource {
	case "device":
	case "webpush":
		if c.Notifications.PushEndpoint == "" {
			problems = append(problems, "notifications.push_endpoint is required for the webpush token source")
		}
	default:
		problems = append(problems, fmt.Sprintf("notifications.token_source %q must be device or webpush", c.Notifications.TokenSource))
	}

	switch c.Notifications.Source {
	case "polling":
		if c.Notifications.PollInterval <= 0 {
			problems = append(problems, "notifications.poll_interval must be positive")
		}
	case "websocket":
		if c.Notifications.WebSocketURL == "" {
			problems = append(problems, "notifications.websocket_url is required for the websocket source")
		}
	default:
		problems = append(problems, fmt.Sprintf("notifications.source %q must be polling or websocket", c.Notifications.Source))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		problems = append(problems, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(problems) > 0 {
		return errors.NewConfigInvalidError(strings.Join(problems, "; "))
	}
	return nil
}

// ConfigDir returns the directory holding the config and session files.
func ConfigDir() string { return configDir() }
