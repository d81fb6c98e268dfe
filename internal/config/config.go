// Package config loads daemon configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config holds all daemon configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	OMDB      OMDBConfig      `mapstructure:"omdb"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Janitor   JanitorConfig   `mapstructure:"janitor"`
	Display   DisplayConfig   `mapstructure:"display"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// OMDBConfig holds the ratings provider credential and endpoint
type OMDBConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds the persistent store configuration
type CacheConfig struct {
	Dir        string `mapstructure:"dir"`         // empty = memory-only
	MemorySize int    `mapstructure:"memory_size"` // promotion layer capacity
}

// RateLimitConfig tunes the provider token bucket
type RateLimitConfig struct {
	Requests int `mapstructure:"requests"`  // tokens per window
	WindowMS int `mapstructure:"window_ms"` // window length in milliseconds
}

// JanitorConfig schedules the expired-entry sweep
type JanitorConfig struct {
	Schedule string `mapstructure:"schedule"` // cron expression
}

// DisplayConfig gates which sources appear in responses. Toggles only
// affect presentation; cached data is fetched and stored regardless.
type DisplayConfig struct {
	ShowIMDB           bool `mapstructure:"show_imdb"`
	ShowRottenTomatoes bool `mapstructure:"show_rotten_tomatoes"`
	ShowMetacritic     bool `mapstructure:"show_metacritic"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:8489",
		},
		OMDB: OMDBConfig{
			BaseURL: "https://www.omdbapi.com/",
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Dir:        defaultCacheDir(),
			MemorySize: 4096,
		},
		RateLimit: RateLimitConfig{
			Requests: 10,
			WindowMS: 1000,
		},
		Janitor: JanitorConfig{
			Schedule: "@hourly",
		},
		Display: DisplayConfig{
			ShowIMDB:           true,
			ShowRottenTomatoes: true,
			ShowMetacritic:     true,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultCacheDir returns the default cache directory for the current OS
func defaultCacheDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "reelrate")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".cache", "reelrate")
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reelrate", "reelrate.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "reelrate", "reelrate.log")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reelrate")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "reelrate")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides (REELRATE_OMDB_API_KEY etc.)
	viper.SetEnvPrefix("REELRATE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// HasAPIKey reports whether a provider credential is configured.
func (c *Config) HasAPIKey() bool {
	return c.OMDB.APIKey != ""
}

// Window returns the rate-limit window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMS) * time.Millisecond
}
