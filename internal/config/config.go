// Package config loads service configuration from defaults, an optional
// config file and LEASEFIN_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/matthewbaird/leasefin/internal/jurisdiction"
	"github.com/matthewbaird/leasefin/internal/logger"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	Database     DatabaseConfig
	Log          LogConfig
	Jurisdiction JurisdictionConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string // development, production
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string // file path or ":memory:"
}

// DSN returns the modernc sqlite data source name.
func (c DatabaseConfig) DSN() string {
	if c.Path == ":memory:" {
		return c.Path
	}
	return "file:" + c.Path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// Logger converts LogConfig into the logger package's config.
func (c LogConfig) Logger() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = c.Format
	cfg.Output = c.Output
	return cfg
}

// JurisdictionConfig holds the advisory cap table.
type JurisdictionConfig struct {
	Default string // applied when a request names no jurisdiction
	Builtin bool   // merge the shipped caps under Rules
	Rules   []jurisdiction.Rule
}

// EffectiveRules returns the rule table the enforcer should load.
func (c JurisdictionConfig) EffectiveRules() []jurisdiction.Rule {
	if !c.Builtin {
		return c.Rules
	}
	return jurisdiction.WithBuiltins(c.Rules)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "leasefin")
	v.SetDefault("app.env", "development")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_body_size", 1<<20)

	v.SetDefault("database.path", "leasefin.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("jurisdiction.default", "")
	v.SetDefault("jurisdiction.builtin", true)
}

// Load loads configuration. Priority (highest to lowest):
// 1. Environment variables with LEASEFIN_ prefix (e.g., LEASEFIN_HTTP_PORT)
// 2. The config file at path, or config.yaml in . and /etc/leasefin when path is empty
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/leasefin")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("LEASEFIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Port:            v.GetInt("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Jurisdiction: JurisdictionConfig{
			Default: v.GetString("jurisdiction.default"),
			Builtin: v.GetBool("jurisdiction.builtin"),
		},
	}
	if err := v.UnmarshalKey("jurisdiction.rules", &cfg.Jurisdiction.Rules); err != nil {
		return nil, fmt.Errorf("decoding jurisdiction rules: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
