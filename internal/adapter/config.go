package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	User         UserConfig         `mapstructure:"user"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// UserConfig identifies the signed-in user
type UserConfig struct {
	ID          string `mapstructure:"id"`
	DisplayName string `mapstructure:"display_name"`
}

// RemoteConfig locates the remote document store
type RemoteConfig struct {
	Path         string        `mapstructure:"path"`          // SQLite database file
	PollInterval time.Duration `mapstructure:"poll_interval"` // cross-process change polling
	Timeout      time.Duration `mapstructure:"timeout"`       // per-call deadline, 0 for none
}

// CatalogConfig selects the course catalog source. URL wins over File.
type CatalogConfig struct {
	URL     string        `mapstructure:"url"`  // realtime-database REST base URL
	File    string        `mapstructure:"file"` // YAML catalog
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds local cache configuration
type CacheConfig struct {
	Dir string `mapstructure:"dir"` // empty keeps the cache in memory
}

// ConnectivityConfig controls the reachability prober
type ConnectivityConfig struct {
	Schedule string        `mapstructure:"schedule"` // cron expression or "@every 10s"
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File   string `mapstructure:"file"`
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			Path:         filepath.Join(defaultDataPath(), "remote.db"),
			PollInterval: time.Second,
		},
		Catalog: CatalogConfig{
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Dir: filepath.Join(defaultDataPath(), "cache"),
		},
		Connectivity: ConnectivityConfig{
			Schedule: "@every 10s",
			Timeout:  3 * time.Second,
		},
		Logging: LoggingConfig{
			File:   filepath.Join(defaultDataPath(), "fitsync.log"),
			Level:  "INFO",
			Format: "json",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "fitsync")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "fitsync")
	}
}

// DefaultConfigPath returns the default config directory for the current OS
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "fitsync")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "fitsync")
	}
}

// newViper builds a viper instance with defaults registered for every key so
// FITSYNC_* environment variables can override any of them.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("user.id", cfg.User.ID)
	v.SetDefault("user.display_name", cfg.User.DisplayName)
	v.SetDefault("remote.path", cfg.Remote.Path)
	v.SetDefault("remote.poll_interval", cfg.Remote.PollInterval)
	v.SetDefault("remote.timeout", cfg.Remote.Timeout)
	v.SetDefault("catalog.url", cfg.Catalog.URL)
	v.SetDefault("catalog.file", cfg.Catalog.File)
	v.SetDefault("catalog.timeout", cfg.Catalog.Timeout)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("connectivity.schedule", cfg.Connectivity.Schedule)
	v.SetDefault("connectivity.timeout", cfg.Connectivity.Timeout)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	// Environment variable overrides, e.g. FITSYNC_USER_ID
	v.SetEnvPrefix("FITSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from a .env file, the config file and the
// environment. configFile overrides the default location.
func LoadConfig(configFile string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	cfg := DefaultConfig()
	v := newViper(cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultConfigPath())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configFile != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.Remote.Path = expandHome(cfg.Remote.Path)
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)
	cfg.Catalog.File = expandHome(cfg.Catalog.File)
	cfg.Logging.File = expandHome(cfg.Logging.File)
	return cfg, nil
}

// SaveUser records the signed-in user in the config file, preserving other settings.
func SaveUser(configFile, userID string) error {
	return updateConfigFile(configFile, func(v *viper.Viper) {
		v.Set("user.id", userID)
	})
}

// ClearUser removes the signed-in user from the config file.
func ClearUser(configFile string) error {
	return SaveUser(configFile, "")
}

func updateConfigFile(configFile string, mutate func(v *viper.Viper)) error {
	if configFile == "" {
		configFile = filepath.Join(DefaultConfigPath(), "config.yaml")
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	mutate(v)

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ClearCache removes all cached data under dir
func ClearCache(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// expandHome expands a leading ~ to the user's home directory
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
