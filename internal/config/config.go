// Package config loads application configuration from config.yaml and the
// APPRAISE_ environment, and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/collectorvault/appraise/internal/provider"
)

// Config holds the full application configuration.
type Config struct {
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	Valuation  ValuationConfig  `yaml:"valuation" mapstructure:"valuation"`
	HTTPClient HTTPClientConfig `yaml:"http_client" mapstructure:"http_client"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the valuation cache backend.
type CacheConfig struct {
	// Driver is sqlite, postgres, or redis.
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPass   string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB     int    `yaml:"redis_db" mapstructure:"redis_db"`
	TTLHours    int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	// SweepMinutes is how often the expired-entry sweeper runs under serve.
	SweepMinutes int `yaml:"sweep_minutes" mapstructure:"sweep_minutes"`
}

// TTL returns the configured cache TTL.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// ProvidersConfig holds per-source adapter settings.
type ProvidersConfig struct {
	ScryVault  provider.AdapterConfig `yaml:"scryvault" mapstructure:"scryvault"`
	CardLedger provider.AdapterConfig `yaml:"cardledger" mapstructure:"cardledger"`
	GavelBid   provider.AdapterConfig `yaml:"gavelbid" mapstructure:"gavelbid"`
	// Disabled lists provider names to leave out of the registry.
	Disabled []string `yaml:"disabled" mapstructure:"disabled"`
}

// ValuationConfig tunes the fusion step.
type ValuationConfig struct {
	IQRMultiplier    float64 `yaml:"iqr_multiplier" mapstructure:"iqr_multiplier"`
	LowPercentile    float64 `yaml:"low_percentile" mapstructure:"low_percentile"`
	HighPercentile   float64 `yaml:"high_percentile" mapstructure:"high_percentile"`
	SampleWeight     float64 `yaml:"sample_weight" mapstructure:"sample_weight"`
	DispersionWeight float64 `yaml:"dispersion_weight" mapstructure:"dispersion_weight"`
	SampleNorm       int     `yaml:"sample_norm" mapstructure:"sample_norm"`
}

// HTTPClientConfig configures the shared outbound HTTP client.
type HTTPClientConfig struct {
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PerHostRate  int    `yaml:"per_host_rate" mapstructure:"per_host_rate"`
	PerHostBurst int    `yaml:"per_host_burst" mapstructure:"per_host_burst"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("APPRAISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "appraise.db")
	v.SetDefault("cache.ttl_hours", 6)
	v.SetDefault("cache.sweep_minutes", 15)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("http_client.timeout_secs", 15)
	v.SetDefault("http_client.per_host_rate", 10)
	v.SetDefault("http_client.per_host_burst", 10)
	v.SetDefault("providers.scryvault.base_url", "https://api.scryvault.io")
	v.SetDefault("providers.cardledger.base_url", "https://api.cardledger.com")
	v.SetDefault("providers.gavelbid.base_url", "https://gavelbid.com")
	v.SetDefault("valuation.iqr_multiplier", 1.5)
	v.SetDefault("valuation.low_percentile", 0.10)
	v.SetDefault("valuation.high_percentile", 0.90)
	v.SetDefault("valuation.sample_weight", 0.6)
	v.SetDefault("valuation.dispersion_weight", 0.4)
	v.SetDefault("valuation.sample_norm", 50)

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
