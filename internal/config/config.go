// Package config provides configuration management for the assistant.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"trading-assistant/internal/analysis/engine"
	"trading-assistant/internal/analysis/pivots"
	apperrors "trading-assistant/internal/errors"
	"trading-assistant/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Patterns PatternsConfig `mapstructure:"patterns"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Store    StoreConfig    `mapstructure:"store"`
	UI       UIConfig       `mapstructure:"ui"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-"`
}

// AnalysisConfig holds pivot, level and pipeline parameters.
type AnalysisConfig struct {
	LeftBars          int     `mapstructure:"left_bars"`
	RightBars         int     `mapstructure:"right_bars"`
	MinSpacingBars    int     `mapstructure:"min_spacing_bars"`
	MinPercentMove    float64 `mapstructure:"min_percent_move"`
	LevelTolerancePct float64 `mapstructure:"level_tolerance_pct"`
	TrendDirection    string  `mapstructure:"trend_direction"` // auto, up, down, none
	MaxActiveLevels   int     `mapstructure:"max_active_levels"`
	Workers           int     `mapstructure:"workers"`
}

// PatternsConfig holds pattern matcher thresholds.
type PatternsConfig struct {
	DojiThreshold     float64 `mapstructure:"doji_threshold"`
	ShoulderTolerance float64 `mapstructure:"shoulder_tolerance"`
	TouchTolerance    float64 `mapstructure:"touch_tolerance"`
	SwingStrength     int     `mapstructure:"swing_strength"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// StoreConfig holds candle cache configuration.
type StoreConfig struct {
	DBPath    string `mapstructure:"db_path"`
	DataDir   string `mapstructure:"data_dir"`
	Timeframe string `mapstructure:"timeframe"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "trading-assistant")
	}
	return filepath.Join(home, ".config", "trading-assistant")
}

// DefaultConfigPath returns the default configuration file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.toml")
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v)
	// Unmarshal of defaults alone does not fail.
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	p := pivots.DefaultOptions()
	v.SetDefault("analysis.left_bars", p.LeftBars)
	v.SetDefault("analysis.right_bars", p.RightBars)
	v.SetDefault("analysis.min_spacing_bars", p.MinSpacingBars)
	v.SetDefault("analysis.min_percent_move", p.MinPercentMove)
	v.SetDefault("analysis.level_tolerance_pct", 0.01)
	v.SetDefault("analysis.trend_direction", string(p.TrendDirection))
	v.SetDefault("analysis.max_active_levels", 5)
	v.SetDefault("analysis.workers", 4)

	v.SetDefault("patterns.doji_threshold", 0.1)
	v.SetDefault("patterns.shoulder_tolerance", 0.03)
	v.SetDefault("patterns.touch_tolerance", 0.005)
	v.SetDefault("patterns.swing_strength", 3)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", logging.DefaultLogPath())
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("store.db_path", filepath.Join(DefaultConfigDir(), "candles.db"))
	v.SetDefault("store.data_dir", ".")
	v.SetDefault("store.timeframe", "1d")

	v.SetDefault("ui.color_enabled", true)
}

func bindEnv(v *viper.Viper) {
	// Errors only occur for an empty key.
	_ = v.BindEnv("analysis.left_bars", "ASSISTANT_LEFT_BARS")
	_ = v.BindEnv("analysis.right_bars", "ASSISTANT_RIGHT_BARS")
	_ = v.BindEnv("logging.level", "ASSISTANT_LOG_LEVEL")
	_ = v.BindEnv("store.db_path", "ASSISTANT_DB_PATH")
}

// Load reads the TOML file at path, or the default path when empty. A
// missing file is replaced by a commented template and the defaults apply.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)
	bindEnv(v)

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking config file: %w", err)
		}
		if err := createTemplateConfig(path); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrConfigInvalid, path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", apperrors.ErrConfigInvalid, path, err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.EngineConfig().Validate(); err != nil {
		return err
	}
	if c.Analysis.Workers < 0 {
		return apperrors.NewValidationError("analysis.workers", c.Analysis.Workers, "must not be negative", apperrors.ErrConfigInvalid)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return apperrors.NewValidationError("logging.level", c.Logging.Level,
			"must be one of debug, info, warn, error, disabled", apperrors.ErrConfigInvalid)
	}
	if c.Store.DBPath == "" {
		return apperrors.NewValidationError("store.db_path", c.Store.DBPath, "must not be empty", apperrors.ErrConfigInvalid)
	}
	return nil
}

// EngineConfig maps the file settings onto the pipeline parameters.
// Thresholds the file does not expose keep their defaults.
func (c *Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()

	ec.Pivots.LeftBars = c.Analysis.LeftBars
	ec.Pivots.RightBars = c.Analysis.RightBars
	ec.Pivots.MinSpacingBars = c.Analysis.MinSpacingBars
	ec.Pivots.MinPercentMove = c.Analysis.MinPercentMove
	ec.Pivots.TrendDirection = pivots.TrendMode(c.Analysis.TrendDirection)
	ec.LevelTolerance = c.Analysis.LevelTolerancePct
	ec.MaxActiveLevels = c.Analysis.MaxActiveLevels
	ec.Workers = c.Analysis.Workers

	ec.Candlestick.DojiThreshold = c.Patterns.DojiThreshold
	ec.Structure.ShoulderTolerance = c.Patterns.ShoulderTolerance
	ec.Structure.TouchTolerance = c.Patterns.TouchTolerance
	ec.Structure.SwingStrength = c.Patterns.SwingStrength

	return ec
}

// LogConfig maps the logging section onto the logger configuration.
func (c *Config) LogConfig() logging.LogConfig {
	lc := logging.DefaultLogConfig()
	lc.Level = c.Logging.Level
	lc.File = c.Logging.File
	if c.Logging.FilePath != "" {
		lc.FilePath = c.Logging.FilePath
	}
	lc.MaxSize = c.Logging.MaxSizeMB
	lc.MaxBackups = c.Logging.MaxBackups
	lc.MaxAge = c.Logging.MaxAgeDays
	lc.Color = c.UI.ColorEnabled
	return lc
}
