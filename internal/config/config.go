package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig      `yaml:"store" mapstructure:"store"`
	RocketReach ProviderConfig   `yaml:"rocketreach" mapstructure:"rocketreach"`
	Enrichment  EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Server      ServerConfig     `yaml:"server" mapstructure:"server"`
	Log         LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ProviderConfig holds identity-provider credentials and client tuning.
// An empty APIKey means the provider is not configured.
type ProviderConfig struct {
	APIKey                  string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL                 string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs             int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitRPS            float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// Configured reports whether credentials are present.
func (p ProviderConfig) Configured() bool {
	return strings.TrimSpace(p.APIKey) != ""
}

// Timeout returns the per-call timeout.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.TimeoutSecs) * time.Second
}

// EnrichmentConfig configures orchestrator behavior.
type EnrichmentConfig struct {
	FreshnessHours  int    `yaml:"freshness_hours" mapstructure:"freshness_hours"`
	DefaultStrategy string `yaml:"default_strategy" mapstructure:"default_strategy"`
}

// FreshnessWindow returns how long a successful enrichment suppresses new calls.
func (e EnrichmentConfig) FreshnessWindow() time.Duration {
	if e.FreshnessHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(e.FreshnessHours) * time.Hour
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("ENRICHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "enricher.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("rocketreach.api_key", "")
	v.SetDefault("rocketreach.base_url", "https://api.rocketreach.co/api/v2")
	v.SetDefault("rocketreach.timeout_secs", 30)
	v.SetDefault("rocketreach.rate_limit_rps", 5.0)
	v.SetDefault("rocketreach.circuit_failure_threshold", 5)
	v.SetDefault("rocketreach.circuit_reset_secs", 60)
	v.SetDefault("enrichment.freshness_hours", 24)
	v.SetDefault("enrichment.default_strategy", "auto")

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

// strategies lists the accepted enrichment.default_strategy values.
var strategies = []string{"auto", "email", "linkedin", "name_company"}

// Validate checks the settings required by the given command mode
// ("enrich" or "serve") and reports every problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "enrich", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported (sqlite, postgres)", c.Store.Driver))
	}

	if !slices.Contains(strategies, c.Enrichment.DefaultStrategy) {
		problems = append(problems, fmt.Sprintf("enrichment.default_strategy must be one of %s", strings.Join(strategies, ", ")))
	}
	if c.Enrichment.FreshnessHours < 0 {
		problems = append(problems, "enrichment.freshness_hours must be >= 0")
	}
	if c.RocketReach.RateLimitRPS < 0 {
		problems = append(problems, "rocketreach.rate_limit_rps must be >= 0")
	}

	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
