package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mmcdole/marquee/internal/log"
)

// Config holds all application configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging log.Config    `mapstructure:"logging"`
}

// StorageConfig locates the primary and quarantine stores
type StorageConfig struct {
	Dir         string        `mapstructure:"dir"`
	Primary     string        `mapstructure:"primary"`      // primary store name
	Quarantine  string        `mapstructure:"quarantine"`   // rescue store name
	OpenTimeout time.Duration `mapstructure:"open_timeout"` // file lock wait
	MaxReloads  int           `mapstructure:"max_reloads"`  // restarts allowed after a rescue
}

// UIConfig holds UI configuration
type UIConfig struct {
	Plain bool   `mapstructure:"plain"` // never start the TUI, print lines instead
	Theme string `mapstructure:"theme"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Dir:         defaultDataPath(),
			Primary:     "marquee",
			Quarantine:  "marquee-rescue",
			OpenTimeout: time.Second,
			MaxReloads:  1,
		},
		UI: UIConfig{
			Theme: "default",
		},
		Logging: log.Config{
			File:  filepath.Join(defaultStatePath(), "marquee.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default store directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "marquee", "db")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "marquee", "db")
	}
}

// defaultStatePath returns the default log directory for the current OS
func defaultStatePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "marquee")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "marquee")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "marquee")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "marquee")
	}
}

var envKeyReplacer = strings.NewReplacer(".", "_")

// LoadConfigFrom loads configuration from file (or the default search path
// when file is empty) and environment.
func LoadConfigFrom(file string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides, e.g. MARQUEE_STORAGE_DIR
	v.SetEnvPrefix("MARQUEE")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage.dir", cfg.Storage.Dir)
	v.SetDefault("storage.primary", cfg.Storage.Primary)
	v.SetDefault("storage.quarantine", cfg.Storage.Quarantine)
	v.SetDefault("storage.open_timeout", cfg.Storage.OpenTimeout)
	v.SetDefault("storage.max_reloads", cfg.Storage.MaxReloads)
	v.SetDefault("ui.plain", cfg.UI.Plain)
	v.SetDefault("ui.theme", cfg.UI.Theme)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// Validate rejects configurations the store layer cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.Storage.Dir == "":
		return fmt.Errorf("storage.dir must be set")
	case c.Storage.Primary == "":
		return fmt.Errorf("storage.primary must be set")
	case c.Storage.Quarantine == "":
		return fmt.Errorf("storage.quarantine must be set")
	case c.Storage.Primary == c.Storage.Quarantine:
		return fmt.Errorf("storage.primary and storage.quarantine must differ")
	case c.Storage.OpenTimeout < 0:
		return fmt.Errorf("storage.open_timeout must not be negative")
	case c.Storage.MaxReloads < 0:
		return fmt.Errorf("storage.max_reloads must not be negative")
	}
	return nil
}
