/*
config.go - Server configuration

PURPOSE:
  Loads the settings cmd/server needs to build the store, engine, logger
  and scheduler.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file in the working directory (optional)
  3. YAML file given with -config (optional)
  4. FARM_* environment variables, dots become underscores:
     FARM_SERVER_PORT=9090, FARM_STORE_DRIVER=sqlite

EXAMPLE (farm.yaml):
  server:
    port: 8080
  store:
    driver: sqlite
    dsn: ./data/farm.db
  engine:
    alert_threshold_days: 7
    availability: committed
    timezone: Asia/Shanghai
  scheduler:
    enabled: true
    interval: 1h
  log:
    level: info
    format: json
*/
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"` // memory | sqlite
	DSN    string `mapstructure:"dsn"`
}

type EngineConfig struct {
	AlertThresholdDays int    `mapstructure:"alert_threshold_days"`
	Availability       string `mapstructure:"availability"` // committed | on_hand
	Timezone           string `mapstructure:"timezone"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Load reads configuration. path may be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "farm.db")
	v.SetDefault("engine.alert_threshold_days", 7)
	v.SetDefault("engine.availability", "committed")
	v.SetDefault("engine.timezone", "UTC")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver)
	}
	if c.Engine.AlertThresholdDays <= 0 {
		return fmt.Errorf("engine.alert_threshold_days must be positive, got %d", c.Engine.AlertThresholdDays)
	}
	if c.Engine.Availability != "committed" && c.Engine.Availability != "on_hand" {
		return fmt.Errorf("engine.availability must be committed or on_hand, got %q", c.Engine.Availability)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive, got %s", c.Scheduler.Interval)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Location is the time zone calendar days are counted in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine.timezone %q: %w", c.Engine.Timezone, err)
	}
	return loc, nil
}

func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// Logger builds the process logger.
func (c *Config) Logger() (*slog.Logger, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}
