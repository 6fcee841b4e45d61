// Package config defines process configuration for the trading core,
// loaded from a YAML file with environment overrides (spec §3 ambient
// configuration surface).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level process configuration. Maps directly to the
// YAML file structure; sensitive fields are overridable via QL_* env vars.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Venues   []VenueConfig  `mapstructure:"venues"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	RiskFile string         `mapstructure:"risk_policy_file"`
}

// ServerConfig controls the OMS snapshot HTTP surface (spec §6).
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string    `mapstructure:"allowed_origins"`
}

// VenueConfig configures one venue adapter and its rate limiter.
type VenueConfig struct {
	Name              string  `mapstructure:"name"`
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	APISecret         string  `mapstructure:"api_secret"`
	Passphrase        string  `mapstructure:"passphrase"`
	RateLimitPerSec   float64 `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst    int     `mapstructure:"rate_limit_burst"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// MetricsConfig controls the Prometheus exposition surface.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// Load reads config from a YAML file with QL_* environment overrides for
// venue credentials, mirroring the pack's POLY_* env-var convention.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("QL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for i := range cfg.Venues {
		envKey := fmt.Sprintf("QL_VENUE_%s_API_KEY", strings.ToUpper(cfg.Venues[i].Name))
		if v := os.Getenv(envKey); v != "" {
			cfg.Venues[i].APIKey = v
		}
		envSecret := fmt.Sprintf("QL_VENUE_%s_API_SECRET", strings.ToUpper(cfg.Venues[i].Name))
		if v := os.Getenv(envSecret); v != "" {
			cfg.Venues[i].APISecret = v
		}
		envPass := fmt.Sprintf("QL_VENUE_%s_PASSPHRASE", strings.ToUpper(cfg.Venues[i].Name))
		if v := os.Getenv(envPass); v != "" {
			cfg.Venues[i].Passphrase = v
		}
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Venues) == 0 {
		return fmt.Errorf("at least one venue must be configured")
	}
	for _, venue := range c.Venues {
		if venue.Name == "" {
			return fmt.Errorf("venue name is required")
		}
		if venue.RateLimitPerSec <= 0 {
			return fmt.Errorf("venue %q: rate_limit_per_sec must be > 0", venue.Name)
		}
		if venue.RateLimitBurst <= 0 {
			return fmt.Errorf("venue %q: rate_limit_burst must be > 0", venue.Name)
		}
	}
	if c.RiskFile == "" {
		return fmt.Errorf("risk_policy_file is required")
	}
	return nil
}
