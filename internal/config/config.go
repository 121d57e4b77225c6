package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the top-level configuration for weatherapp.
type Config struct {
	ListenAddr  string            `mapstructure:"listen_addr"`
	LogFormat   string            `mapstructure:"log_format"`
	LogFile     string            `mapstructure:"log_file"`
	DefaultCity string            `mapstructure:"default_city"`
	CitiesFile  string            `mapstructure:"cities_file"`
	OpenWeather OpenWeatherConfig `mapstructure:"openweather"`
	Storage     StorageConfig     `mapstructure:"storage"`
}

// OpenWeatherConfig holds settings for the upstream weather API.
type OpenWeatherConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig defines the database backend.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig holds PostgreSQL-specific configuration.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// Load reads configuration from flag path, env vars, then default file paths.
// Precedence: flag → $WEATHERAPP_CONFIG env → ~/.config/weatherapp/config.yaml → /etc/weatherapp/config.yaml
//
// A .env file in the working directory, if present, is loaded into the
// process environment first. Variables already set are not overwritten.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	// Defaults. Every key needs one so AutomaticEnv can bind it on Unmarshal.
	v.SetDefault("listen_addr", "0.0.0.0:8000")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
	v.SetDefault("default_city", "Delhi")
	v.SetDefault("cities_file", "cities.json")
	v.SetDefault("openweather.api_key", "")
	v.SetDefault("openweather.base_url", "http://api.openweathermap.org/data/2.5/weather")
	v.SetDefault("openweather.timeout", 10*time.Second)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", "weather.db")
	v.SetDefault("storage.postgres.dsn", "")

	// Env var support: WEATHERAPP_OPENWEATHER_API_KEY etc.
	v.SetEnvPrefix("WEATHERAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv("WEATHERAPP_CONFIG"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "weatherapp"))
		}
		v.AddConfigPath("/etc/weatherapp")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if cfgPath := v.ConfigFileUsed(); cfgPath != "" {
		// The file may carry the API key.
		if info, err := os.Stat(cfgPath); err == nil {
			perm := info.Mode().Perm()
			if perm&0004 != 0 {
				slog.Warn("config file is world-readable", "path", cfgPath, "permissions", fmt.Sprintf("%04o", perm))
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete and correct.
func (c *Config) Validate() error {
	if c.OpenWeather.APIKey == "" {
		return fmt.Errorf("openweather.api_key is required")
	}
	if c.OpenWeather.BaseURL == "" {
		return fmt.Errorf("openweather.base_url is required")
	}
	if c.OpenWeather.Timeout < 0 {
		return fmt.Errorf("openweather.timeout must not be negative")
	}
	if strings.TrimSpace(c.DefaultCity) == "" {
		return fmt.Errorf("default_city is required")
	}
	if c.CitiesFile == "" {
		return fmt.Errorf("cities_file is required")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for sqlite driver")
		}
		dir := filepath.Dir(c.Storage.SQLite.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return fmt.Errorf("creating storage directory %q: %w", dir, err)
			}
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be 'sqlite' or 'postgres', got %q", c.Storage.Driver)
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("listen_addr %q is not a valid address: %w", c.ListenAddr, err)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}

	return nil
}

// DSN returns the appropriate DSN for the configured storage driver.
func (c *Config) DSN() string {
	switch c.Storage.Driver {
	case "sqlite":
		return c.Storage.SQLite.Path
	case "postgres":
		return c.Storage.Postgres.DSN
	default:
		return ""
	}
}
