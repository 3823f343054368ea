package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Pricing PricingConfig `yaml:"pricing" mapstructure:"pricing"`
	Courier CourierConfig `yaml:"courier" mapstructure:"courier"`
	Weather WeatherConfig `yaml:"weather" mapstructure:"weather"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// PricingConfig configures the quote engine and its config cache.
type PricingConfig struct {
	ConfigCacheTTLSecs int  `yaml:"config_cache_ttl_secs" mapstructure:"config_cache_ttl_secs"`
	QuoteTTLSecs       int  `yaml:"quote_ttl_secs" mapstructure:"quote_ttl_secs"`
	ParallelRules      bool `yaml:"parallel_rules" mapstructure:"parallel_rules"`
}

// CourierConfig configures the third-party delivery quote provider. An
// empty API key disables the third-party rule entirely.
type CourierConfig struct {
	Key              string  `yaml:"key" mapstructure:"key"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	Provider         string  `yaml:"provider" mapstructure:"provider"`
	RequestsPerSec   float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// WeatherConfig configures the weather conditions provider. An empty API
// key means quotes are computed without the weather signal.
type WeatherConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst          int     `yaml:"burst" mapstructure:"burst"`
}

// ServerConfig configures the HTTP quote server.
type ServerConfig struct {
	Port                int `yaml:"port" mapstructure:"port"`
	HealthIntervalSecs  int `yaml:"health_interval_secs" mapstructure:"health_interval_secs"`
	RequestTimeoutSecs  int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	ShutdownTimeoutSecs int `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("pricing.config_cache_ttl_secs", 300)
	v.SetDefault("pricing.quote_ttl_secs", 600)
	v.SetDefault("pricing.parallel_rules", false)
	v.SetDefault("courier.base_url", "https://api.shipquick.io")
	v.SetDefault("courier.provider", "shipquick")
	v.SetDefault("courier.requests_per_sec", 20)
	v.SetDefault("courier.burst", 40)
	v.SetDefault("courier.max_attempts", 3)
	v.SetDefault("courier.initial_backoff_ms", 200)
	v.SetDefault("courier.max_backoff_ms", 2000)
	v.SetDefault("courier.failure_threshold", 5)
	v.SetDefault("courier.reset_timeout_secs", 30)
	v.SetDefault("weather.base_url", "https://api.skywatch.dev")
	v.SetDefault("weather.requests_per_sec", 10)
	v.SetDefault("weather.burst", 20)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.health_interval_secs", 300)
	v.SetDefault("server.request_timeout_secs", 10)
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given run mode. Modes map to
// commands: "serve" needs a listen port and a store, "quote" and "admin"
// only need a store.
func (c *Config) Validate(mode string) error {
	var problems []string

	needsStore := func() {
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "serve":
		needsStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Pricing.ConfigCacheTTLSecs <= 0 {
			problems = append(problems, "pricing.config_cache_ttl_secs must be > 0")
		}
		if c.Pricing.QuoteTTLSecs <= 0 {
			problems = append(problems, "pricing.quote_ttl_secs must be > 0")
		}
	case "quote", "admin":
		needsStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
