package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Images  ImagesConfig  `mapstructure:"images"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ImagesConfig holds the canonical host and the image cache layout
type ImagesConfig struct {
	Host       string   `mapstructure:"host"`        // Canonical image host, e.g. "images.example.com"
	Mirrors    []string `mapstructure:"mirrors"`     // Fallback hosts tried on network or 5xx failures
	CacheDir   string   `mapstructure:"cache_dir"`   // Root of the image and transport caches
	MaxEntries int      `mapstructure:"max_entries"` // Memory tier entry ceiling
	MaxBytes   int64    `mapstructure:"max_bytes"`   // Memory tier byte ceiling
	Extension  string   `mapstructure:"extension"`   // Cache file extension
}

// FetchConfig holds HTTP download settings
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	Retries        int           `mapstructure:"retries"`
	UserAgent      string        `mapstructure:"user_agent"`
	TransportCache bool          `mapstructure:"transport_cache"` // Keep a bbolt HTTP response cache
	ForceRefresh   bool          `mapstructure:"force_refresh"`   // Always bypass the transport cache
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Images: ImagesConfig{
			Host:       "",
			Mirrors:    []string{},
			CacheDir:   defaultCachePath(),
			MaxEntries: 200,
			MaxBytes:   64 << 20,
			Extension:  ".img",
		},
		Fetch: FetchConfig{
			Timeout:        30 * time.Second,
			Retries:        0,
			UserAgent:      "Artwork/1.0",
			TransportCache: true,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "artwork", "artwork.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "artwork", "artwork.log")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "artwork")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "artwork")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "artwork", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".cache", "artwork")
	}
}

// LoadConfig loads configuration from the default search paths and environment
func LoadConfig() (*Config, error) {
	v := viper.GetViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(defaultConfigPath())
	v.AddConfigPath(".")
	return load(v)
}

// LoadConfigFile loads configuration from an explicit file plus environment
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(expandHome(path))
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	// Environment variable overrides, e.g. ARTWORK_IMAGES_HOST
	v.SetEnvPrefix("ARTWORK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.Images.CacheDir = expandHome(cfg.Images.CacheDir)
	return cfg, nil
}

// setDefaults registers every key so environment overrides are seen by Unmarshal
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("images.host", cfg.Images.Host)
	v.SetDefault("images.mirrors", cfg.Images.Mirrors)
	v.SetDefault("images.cache_dir", cfg.Images.CacheDir)
	v.SetDefault("images.max_entries", cfg.Images.MaxEntries)
	v.SetDefault("images.max_bytes", cfg.Images.MaxBytes)
	v.SetDefault("images.extension", cfg.Images.Extension)

	v.SetDefault("fetch.timeout", cfg.Fetch.Timeout)
	v.SetDefault("fetch.retries", cfg.Fetch.Retries)
	v.SetDefault("fetch.user_agent", cfg.Fetch.UserAgent)
	v.SetDefault("fetch.transport_cache", cfg.Fetch.TransportCache)
	v.SetDefault("fetch.force_refresh", cfg.Fetch.ForceRefresh)

	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// SaveConfig saves the configuration to the default config file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	// Ensure config directory exists
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	viper.Set("images.host", cfg.Images.Host)
	viper.Set("images.mirrors", cfg.Images.Mirrors)
	viper.Set("images.cache_dir", cfg.Images.CacheDir)
	viper.Set("images.max_entries", cfg.Images.MaxEntries)
	viper.Set("images.max_bytes", cfg.Images.MaxBytes)
	viper.Set("images.extension", cfg.Images.Extension)

	viper.Set("fetch.timeout", cfg.Fetch.Timeout.String())
	viper.Set("fetch.retries", cfg.Fetch.Retries)
	viper.Set("fetch.user_agent", cfg.Fetch.UserAgent)
	viper.Set("fetch.transport_cache", cfg.Fetch.TransportCache)
	viper.Set("fetch.force_refresh", cfg.Fetch.ForceRefresh)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if a canonical image host is set
func (c *Config) IsConfigured() bool {
	return c.Images.Host != ""
}

// ImageDir returns the flat directory holding content-addressed image files
func (c *Config) ImageDir() string {
	return filepath.Join(c.Images.CacheDir, "images")
}

// TransportDir returns the root of the per-host transport cache databases
func (c *Config) TransportDir() string {
	return filepath.Join(c.Images.CacheDir, "transport")
}

// ClearCache removes all cached data
func ClearCache() error {
	cachePath := defaultCachePath()
	if err := os.RemoveAll(cachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// GetCachePath returns the cache directory path
func GetCachePath() string {
	return defaultCachePath()
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
