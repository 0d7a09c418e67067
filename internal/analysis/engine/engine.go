// Package engine runs the full detection pipeline over candle arrays.
package engine

import (
	"math"

	"github.com/rs/zerolog"

	"trading-assistant/internal/analysis"
	"trading-assistant/internal/analysis/explain"
	"trading-assistant/internal/analysis/levels"
	"trading-assistant/internal/analysis/patterns"
	"trading-assistant/internal/analysis/pivots"
	"trading-assistant/internal/analysis/zones"
	apperrors "trading-assistant/internal/errors"
	"trading-assistant/internal/models"
)

// Config holds the pipeline parameters.
type Config struct {
	Pivots          pivots.Options
	LevelTolerance  float64
	MaxActiveLevels int
	Candlestick     patterns.CandlestickConfig
	Structure       patterns.StructureConfig
	Workers         int
}

// DefaultConfig returns the default pipeline parameters.
func DefaultConfig() Config {
	return Config{
		Pivots:          pivots.DefaultOptions(),
		LevelTolerance:  levels.DefaultTolerance,
		MaxActiveLevels: 5,
		Candlestick:     patterns.DefaultCandlestickConfig(),
		Structure:       patterns.DefaultStructureConfig(),
		Workers:         4,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Pivots.Validate(); err != nil {
		return err
	}
	if c.LevelTolerance < 0 || math.IsNaN(c.LevelTolerance) {
		return apperrors.NewValidationError("level_tolerance_pct", c.LevelTolerance, "must not be negative", apperrors.ErrConfigInvalid)
	}
	if c.MaxActiveLevels < 1 {
		return apperrors.NewValidationError("max_active_levels", c.MaxActiveLevels, "must be at least 1", apperrors.ErrConfigInvalid)
	}
	if c.Structure.SwingStrength < 1 {
		return apperrors.NewValidationError("swing_strength", c.Structure.SwingStrength, "must be at least 1", apperrors.ErrConfigInvalid)
	}
	if c.Candlestick.DojiThreshold <= 0 || c.Candlestick.DojiThreshold >= 1 {
		return apperrors.NewValidationError("doji_threshold", c.Candlestick.DojiThreshold, "must be in (0, 1)", apperrors.ErrConfigInvalid)
	}
	if c.Structure.ShoulderTolerance < 0 || c.Structure.TouchTolerance < 0 {
		return apperrors.NewValidationError("patterns", c.Structure, "tolerances must not be negative", apperrors.ErrConfigInvalid)
	}
	return nil
}

// Engine runs pivot detection, level aggregation, zone calculation and both
// pattern matchers. It keeps no state between calls and is safe for
// concurrent use.
type Engine struct {
	cfg         Config
	logger      zerolog.Logger
	candlestick *patterns.CandlestickDetector
	structure   *patterns.StructureDetector
}

// New creates an engine after validating cfg.
func New(cfg Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Engine{
		cfg:         cfg,
		logger:      logger.With().Str("component", "engine").Logger(),
		candlestick: patterns.NewCandlestickDetector(cfg.Candlestick),
		structure:   patterns.NewStructureDetector(cfg.Structure),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Analysis is the full output of one pipeline run, including the
// intermediate pivots and levels.
type Analysis struct {
	PivotHighs []analysis.PivotPoint    `json:"pivot_highs"`
	PivotLows  []analysis.PivotPoint    `json:"pivot_lows"`
	Levels     analysis.Levels          `json:"levels"`
	Result     analysis.DetectionResult `json:"result"`
}

// DetectAll runs the pipeline and returns its DetectionResult.
func (e *Engine) DetectAll(candles []models.Candle) (*analysis.DetectionResult, error) {
	a, err := e.Analyze(candles)
	if err != nil {
		return nil, err
	}
	return &a.Result, nil
}

// Analyze runs the pipeline. Malformed candles fail with a validation error;
// short input yields partial or empty results.
func (e *Engine) Analyze(candles []models.Candle) (*Analysis, error) {
	if err := analysis.ValidateCandles(candles); err != nil {
		e.logger.Warn().Err(err).Int("candles", len(candles)).Msg("Rejected candle input")
		return nil, err
	}

	a := &Analysis{
		Levels: analysis.Levels{Support: []analysis.PriceLevel{}, Resistance: []analysis.PriceLevel{}},
		Result: analysis.DetectionResult{
			Detected:     []analysis.PatternDetection{},
			ActiveLevels: analysis.ActiveLevels{Support: []float64{}, Resistance: []float64{}},
		},
	}
	if len(candles) == 0 {
		a.Result.AgentExplanation = explain.NoPatterns
		return a, nil
	}

	highs, lows, err := pivots.DetectPivotsWithFilters(candles, e.cfg.Pivots)
	if err != nil {
		return nil, apperrors.Wrap(err, "pivot detection")
	}
	a.PivotHighs, a.PivotLows = highs, lows
	a.Levels = levels.AggregatePivots(highs, lows, e.cfg.LevelTolerance)

	current := candles[len(candles)-1].Close
	tz, err := zones.Calculate(models.Closes(candles), models.Volumes(candles), current, a.Levels)
	if err != nil {
		return nil, apperrors.Wrap(err, "trading zones")
	}

	detected := e.structure.Detect(candles, a.Levels)
	detected = append(detected, e.candlestick.Detect(candles)...)
	if detected != nil {
		a.Result.Detected = detected
	}

	a.Result.ActiveLevels = analysis.ActiveLevels{
		Support:    roundedPrices(levels.Top(a.Levels.Support, e.cfg.MaxActiveLevels)),
		Resistance: roundedPrices(levels.Top(a.Levels.Resistance, e.cfg.MaxActiveLevels)),
	}
	a.Result.TradingZones = tz
	a.Result.CurrentPrice = current
	a.Result.AgentExplanation = explain.Synthesize(a.Result.Detected, a.Levels, current, tz)

	e.logger.Debug().
		Int("candles", len(candles)).
		Int("pivot_highs", len(highs)).
		Int("pivot_lows", len(lows)).
		Int("support_levels", len(a.Levels.Support)).
		Int("resistance_levels", len(a.Levels.Resistance)).
		Int("patterns", len(a.Result.Detected)).
		Msg("Detection complete")

	return a, nil
}

func roundedPrices(lv []analysis.PriceLevel) []float64 {
	out := make([]float64, len(lv))
	for i, l := range lv {
		out[i] = math.Round(l.Price*100) / 100
	}
	return out
}
