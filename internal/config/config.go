package config

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full engine configuration. It is loaded once at process
// start and treated as immutable for the lifetime of a request.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Escalate EscalateConfig `yaml:"escalate" mapstructure:"escalate"`
	Executor ExecutorConfig `yaml:"executor" mapstructure:"executor"`
	Rank     RankConfig     `yaml:"rank" mapstructure:"rank"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the capability data source backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ExtractConfig configures deterministic entity extraction and the
// confidence filter.
type ExtractConfig struct {
	GazetteerPath    string             `yaml:"gazetteer_path" mapstructure:"gazetteer_path"`
	DefaultThreshold float64            `yaml:"default_threshold" mapstructure:"default_threshold"`
	Thresholds       map[string]float64 `yaml:"thresholds" mapstructure:"thresholds"`
	Fuzzy            FuzzyConfig        `yaml:"fuzzy" mapstructure:"fuzzy"`
}

// FuzzyConfig tunes the fuzzy fallback matcher.
type FuzzyConfig struct {
	MinTokenLen       int     `yaml:"min_token_len" mapstructure:"min_token_len"`
	Similarity        float64 `yaml:"similarity" mapstructure:"similarity"`
	ShortSimilarity   float64 `yaml:"short_similarity" mapstructure:"short_similarity"`
	ShortMaxLen       int     `yaml:"short_max_len" mapstructure:"short_max_len"`
	ConfidencePenalty float64 `yaml:"confidence_penalty" mapstructure:"confidence_penalty"`
}

// EscalateConfig configures the AI extraction escalator client.
type EscalateConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Key        string  `yaml:"key" mapstructure:"key"`
	Model      string  `yaml:"model" mapstructure:"model"`
	MaxTokens  int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RatePerMin float64 `yaml:"rate_per_min" mapstructure:"rate_per_min"`
}

// CapabilityConfig overrides per-capability execution parameters.
type CapabilityConfig struct {
	TimeoutMS int     `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	Boost     float64 `yaml:"boost" mapstructure:"boost"`
	Disabled  bool    `yaml:"disabled" mapstructure:"disabled"`
}

// ExecutorConfig configures the capability executor fan-out.
type ExecutorConfig struct {
	MaxConcurrent    int                         `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	DefaultTimeoutMS int                         `yaml:"default_timeout_ms" mapstructure:"default_timeout_ms"`
	GlobalTimeoutMS  int                         `yaml:"global_timeout_ms" mapstructure:"global_timeout_ms"`
	Capabilities     map[string]CapabilityConfig `yaml:"capabilities" mapstructure:"capabilities"`
}

// RankConfig configures result ranking weights and intent priors.
type RankConfig struct {
	ProximityWeight float64                       `yaml:"proximity_weight" mapstructure:"proximity_weight"`
	BoostWeight     float64                       `yaml:"boost_weight" mapstructure:"boost_weight"`
	Priors          map[string]map[string]float64 `yaml:"priors" mapstructure:"priors"`
}

// ServerConfig configures the HTTP search endpoint.
type ServerConfig struct {
	Port                    int `yaml:"port" mapstructure:"port"`
	AvailabilityRefreshSecs int `yaml:"availability_refresh_secs" mapstructure:"availability_refresh_secs"`
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
	v.SetEnvPrefix("QUERYENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "queryengine.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.availability_refresh_secs", 30)
	v.SetDefault("extract.default_threshold", 0.75)
	v.SetDefault("extract.thresholds", defaultThresholds())
	v.SetDefault("extract.fuzzy.min_token_len", 4)
	v.SetDefault("extract.fuzzy.similarity", 0.80)
	v.SetDefault("extract.fuzzy.short_similarity", 0.85)
	v.SetDefault("extract.fuzzy.short_max_len", 5)
	v.SetDefault("extract.fuzzy.confidence_penalty", 0.92)
	v.SetDefault("escalate.model", "claude-haiku-4-5-20251001")
	v.SetDefault("escalate.max_tokens", 1024)
	v.SetDefault("escalate.rate_per_min", 60)
	v.SetDefault("executor.max_concurrent", 4)
	v.SetDefault("executor.default_timeout_ms", 5000)
	v.SetDefault("executor.global_timeout_ms", 15000)
	v.SetDefault("rank.proximity_weight", 0.6)
	v.SetDefault("rank.boost_weight", 0.4)

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

// defaultThresholds lists an explicit confidence threshold for every entity
// type the planner knows. Types with intrinsically low base weights (generic
// multi-word vocabularies like stock status phrases) carry low thresholds;
// without an explicit entry they would be filtered unconditionally and
// produce zero-entity results.
func defaultThresholds() map[string]float64 {
	return map[string]float64{
		"equipment":    0.60,
		"symptom":      0.55,
		"severity":     0.50,
		"part":         0.50,
		"stock_status": 0.40,
		"location":     0.55,
		"fault_code":   0.80,
	}
}

// Validate checks the configuration invariants that must hold before the
// engine serves a single request. knownTypes is the set of entity types the
// planner routes on; each one must carry an explicit threshold — the default
// threshold only ever applies to ad-hoc types introduced by the escalator.
func (c *Config) Validate(knownTypes []string) error {
	var missing []string
	for _, t := range knownTypes {
		if _, ok := c.Extract.Thresholds[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return eris.Errorf("config: entity types missing explicit confidence thresholds: %s", strings.Join(missing, ", "))
	}

	for t, th := range c.Extract.Thresholds {
		if th < 0 || th > 1 {
			return eris.Errorf("config: threshold for %q out of range [0,1]: %v", t, th)
		}
	}
	if c.Extract.DefaultThreshold < 0 || c.Extract.DefaultThreshold > 1 {
		return eris.Errorf("config: default threshold out of range [0,1]: %v", c.Extract.DefaultThreshold)
	}
	if c.Executor.MaxConcurrent < 1 {
		return eris.New("config: executor.max_concurrent must be at least 1")
	}
	if c.Executor.DefaultTimeoutMS < 1 {
		return eris.New("config: executor.default_timeout_ms must be positive")
	}
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
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
