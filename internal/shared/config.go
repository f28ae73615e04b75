package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API           APIConfig           `toml:"api"`
	Realtime      RealtimeConfig      `toml:"realtime"`
	Storage       StorageConfig       `toml:"storage"`
	Database      DatabaseConfig      `toml:"database"`
	Notifications NotificationsConfig `toml:"notifications"`
	Log           LogConfig           `toml:"log"`
	DevServer     DevServerConfig     `toml:"devserver"`
}

// APIConfig contains REST backend settings.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	LoginRoute     string `toml:"login_route"`
}

// Timeout returns the request timeout as a [time.Duration].
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RealtimeConfig contains WebSocket channel settings.
type RealtimeConfig struct {
	URL         string `toml:"url"`
	MaxAttempts int    `toml:"max_attempts"`
	BaseDelayMS int    `toml:"base_delay_ms"`
	MaxDelayMS  int    `toml:"max_delay_ms"`
}

// StorageConfig selects where the session snapshot is persisted.
type StorageConfig struct {
	Driver        string `toml:"driver"`
	Path          string `toml:"path"`
	FilePath      string `toml:"file_path"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisKey      string `toml:"redis_key"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	MaxOpenConns int `toml:"max_open_conns"`
	MaxIdleConns int `toml:"max_idle_conns"`
}

// NotificationsConfig contains notification fetch settings.
type NotificationsConfig struct {
	PageSize             int `toml:"page_size"`
	PrimeIntervalSeconds int `toml:"prime_interval_seconds"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// DevServerConfig contains settings for the local development backend.
type DevServerConfig struct {
	Addr              string `toml:"addr"`
	JWTSecret         string `toml:"jwt_secret"`
	AccessTTLSeconds  int    `toml:"access_ttl_seconds"`
	RefreshTTLSeconds int    `toml:"refresh_ttl_seconds"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFiles loads .env style files into the process environment.
//
// Missing files are skipped; variables already set in the environment win.
// A malformed file is skipped too and reported as [ErrInvalidConfig] once
// the remaining files are loaded.
func LoadEnvFiles(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, p, err))
		}
	}
	return errors.Join(errs...)
}

// ApplyEnv overrides config values with REELX_* environment variables.
func ApplyEnv(c *Config) {
	setString(&c.API.BaseURL, "REELX_API_URL")
	setInt(&c.API.TimeoutSeconds, "REELX_API_TIMEOUT_SECONDS")
	setString(&c.Realtime.URL, "REELX_WS_URL")
	setInt(&c.Realtime.MaxAttempts, "REELX_WS_MAX_ATTEMPTS")
	setString(&c.Storage.Driver, "REELX_STORAGE")
	setString(&c.Storage.Path, "REELX_DB_PATH")
	setString(&c.Storage.FilePath, "REELX_SESSION_FILE")
	setString(&c.Storage.RedisAddr, "REDIS_ADDR")
	setString(&c.Storage.RedisPassword, "REDIS_PASSWORD")
	setString(&c.Log.Level, "REELX_LOG_LEVEL")
	setString(&c.DevServer.Addr, "REELX_DEV_ADDR")
	setString(&c.DevServer.JWTSecret, "REELX_DEV_JWT_SECRET")
}

// Validate reports configuration values that would leave the client unusable.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	}
	if c.Realtime.MaxAttempts < 0 {
		return fmt.Errorf("%w: realtime.max_attempts must not be negative", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case "sqlite", "file", "redis":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, c.Storage.Driver)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
