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
	Store       StoreConfig    `yaml:"store" mapstructure:"store"`
	Census      CensusConfig   `yaml:"census" mapstructure:"census"`
	InCore      InCoreConfig   `yaml:"incore" mapstructure:"incore"`
	Generate    GenerateConfig `yaml:"generate" mapstructure:"generate"`
	Output      OutputConfig   `yaml:"output" mapstructure:"output"`
	Fetch       FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Communities string         `yaml:"communities" mapstructure:"communities"`
	Log         LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the source snapshot cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// CensusConfig holds Census Bureau API settings.
type CensusConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"api_key" mapstructure:"api_key"`
	ACSYear int    `yaml:"acs_year" mapstructure:"acs_year"`
}

// InCoreConfig holds dataset catalog service settings.
type InCoreConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Token   string `yaml:"token" mapstructure:"token"`
}

// GenerateConfig configures inventory synthesis.
type GenerateConfig struct {
	Seed        int64  `yaml:"seed" mapstructure:"seed"`
	Version     string `yaml:"version" mapstructure:"version"`
	VersionText string `yaml:"version_text" mapstructure:"version_text"`
	Vintage     int    `yaml:"vintage" mapstructure:"vintage"`
	CountyLimit int    `yaml:"county_limit" mapstructure:"county_limit"`
}

// OutputConfig configures where community outputs land.
type OutputConfig struct {
	Root      string `yaml:"root" mapstructure:"root"`
	CommonDir string `yaml:"common_dir" mapstructure:"common_dir"`
}

// FetchConfig configures remote source downloads.
type FetchConfig struct {
	TempDir     string  `yaml:"temp_dir" mapstructure:"temp_dir"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
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
	v.SetEnvPrefix("HUI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "hui.db")
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.acs_year", 2012)
	v.SetDefault("incore.base_url", "https://incore.ncsa.illinois.edu")
	v.SetDefault("generate.seed", 9876)
	v.SetDefault("generate.version", "2.0.0")
	v.SetDefault("generate.version_text", "v2-0-0")
	v.SetDefault("generate.vintage", 2010)
	v.SetDefault("generate.county_limit", 4)
	v.SetDefault("output.root", "OutputData")
	v.SetDefault("output.common_dir", "00_communities")
	v.SetDefault("fetch.temp_dir", "/tmp/hui")
	v.SetDefault("fetch.rate_per_sec", 2)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("communities", "communities.yaml")
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
