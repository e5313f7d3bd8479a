// Package config loads policygraph settings from an optional YAML file and
// POLICYGRAPH_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/policygraph/internal/engine"
	"github.com/roach88/policygraph/internal/nodes"
)

// EnvPrefix prefixes every environment override, e.g. POLICYGRAPH_LOG_LEVEL.
const EnvPrefix = "POLICYGRAPH"

// Config holds all application configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Store  StoreConfig  `mapstructure:"store"`
	Engine EngineConfig `mapstructure:"engine"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig locates the pass history database.
type StoreConfig struct {
	// Path is the SQLite database recording passes. Empty disables recording.
	Path string `mapstructure:"path"`
}

// EngineConfig bounds threshold arity and settling.
type EngineConfig struct {
	MaxThreshold    int `mapstructure:"max_threshold"`
	MaxSettlePasses int `mapstructure:"max_settle_passes"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "warn", Format: "text"},
		Engine: EngineConfig{
			MaxThreshold:    nodes.DefaultMaxThreshold,
			MaxSettlePasses: engine.DefaultMaxSettlePasses,
		},
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if _, err := ParseLevel(c.Log.Level); err != nil {
		warnings = append(warnings, fmt.Sprintf("log level %q is not recognized, using info", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		warnings = append(warnings, fmt.Sprintf("log format %q is not recognized, using text", c.Log.Format))
	}
	if c.Engine.MaxThreshold < 1 {
		warnings = append(warnings, fmt.Sprintf("engine max_threshold %d is below 1, using %d", c.Engine.MaxThreshold, nodes.DefaultMaxThreshold))
	}
	if c.Engine.MaxSettlePasses < 1 {
		warnings = append(warnings, fmt.Sprintf("engine max_settle_passes %d is below 1, using %d", c.Engine.MaxSettlePasses, engine.DefaultMaxSettlePasses))
	}

	return warnings
}

// Load reads configuration from file and environment. An empty path reads
// the environment only. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("engine.max_threshold", def.Engine.MaxThreshold)
	v.SetDefault("engine.max_settle_passes", def.Engine.MaxSettlePasses)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// ParseLevel maps a level name to a slog level. Names are case-insensitive.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// NewLogger builds a text or JSON slog logger writing to w. Unknown levels
// fall back to info, unknown formats to text.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	lvl, _ := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
