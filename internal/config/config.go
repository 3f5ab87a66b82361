package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danielpatrickdp/siteplan/internal/codec"
	"github.com/danielpatrickdp/siteplan/internal/update"
)

// EnvPrefix prefixes every environment variable override, e.g.
// SITEPLAN_LISTEN_ADDR.
const EnvPrefix = "SITEPLAN"

// #region service-config
// ServiceConfig is the runtime configuration shared by the binaries.
type ServiceConfig struct {
	ListenAddr  string `mapstructure:"listen_addr" validate:"required"`
	MetricsAddr string `mapstructure:"metrics_addr"` // empty disables /metrics
	DBPath      string `mapstructure:"db_path"`      // empty disables recording
	CatalogPath string `mapstructure:"catalog_path"` // empty uses the embedded sample
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Trace       bool   `mapstructure:"trace"`
	MaxSessions int    `mapstructure:"max_sessions" validate:"gte=0"`

	InvalidActionPenalty float64 `mapstructure:"invalid_action_penalty"`
	InfeasiblePenalty    float64 `mapstructure:"infeasible_penalty"`
	PassReward           float64 `mapstructure:"pass_reward"`
}

// DefaultServiceConfig returns the defaults applied before file, env and
// flags.
func DefaultServiceConfig() ServiceConfig {
	rewards := update.DefaultRewardConfig()
	return ServiceConfig{
		ListenAddr:           "localhost:50061",
		MetricsAddr:          "localhost:9464",
		DBPath:               "",
		CatalogPath:          "",
		LogLevel:             "info",
		Trace:                false,
		MaxSessions:          codec.DefaultServerConfig().MaxSessions,
		InvalidActionPenalty: rewards.InvalidActionPenalty,
		InfeasiblePenalty:    rewards.InfeasiblePenalty,
		PassReward:           rewards.PassReward,
	}
}

// #endregion service-config

// #region load
// Load merges, lowest first: defaults, the optional config file at path,
// SITEPLAN_* environment variables and changed flags. Flag names are the
// keys with dashes, e.g. --listen-addr.
func Load(path string, flags *pflag.FlagSet) (ServiceConfig, error) {
	v := viper.New()
	def := DefaultServiceConfig()
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("metrics_addr", def.MetricsAddr)
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("catalog_path", def.CatalogPath)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("trace", def.Trace)
	v.SetDefault("max_sessions", def.MaxSessions)
	v.SetDefault("invalid_action_penalty", def.InvalidActionPenalty)
	v.SetDefault("infeasible_penalty", def.InfeasiblePenalty)
	v.SetDefault("pass_reward", def.PassReward)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return ServiceConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !isKnownKey(key) {
				return
			}
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})
		if bindErr != nil {
			return ServiceConfig{}, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	var cfg ServiceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ServiceConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return ServiceConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func isKnownKey(key string) bool {
	switch key {
	case "listen_addr", "metrics_addr", "db_path", "catalog_path", "log_level", "trace",
		"max_sessions", "invalid_action_penalty", "infeasible_penalty", "pass_reward":
		return true
	}
	return false
}

// #endregion load

// #region accessors
// Rewards returns the reward schedule.
func (c ServiceConfig) Rewards() update.RewardConfig {
	return update.RewardConfig{
		InvalidActionPenalty: c.InvalidActionPenalty,
		InfeasiblePenalty:    c.InfeasiblePenalty,
		PassReward:           c.PassReward,
	}
}

// ServerConfig returns the gRPC service limits.
func (c ServiceConfig) ServerConfig() codec.ServerConfig {
	return codec.ServerConfig{MaxSessions: c.MaxSessions}
}

// NewLogger builds a production zap logger at the configured level.
func (c ServiceConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// #endregion accessors
