package analysis

import (
	"fmt"
	"math"

	apperrors "trading-assistant/internal/errors"
	"trading-assistant/internal/models"
)

// ValidateCandles checks the caller contract for a candle sequence: positive
// finite prices, consistent OHLC and strictly increasing timestamps. An empty
// sequence is valid.
func ValidateCandles(candles []models.Candle) error {
	for i, c := range candles {
		for _, p := range []struct {
			name  string
			value float64
		}{
			{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close},
		} {
			if !isPositiveFinite(p.value) {
				return apperrors.NewValidationError(
					fmt.Sprintf("candles[%d].%s", i, p.name), p.value,
					"prices must be positive and finite", apperrors.ErrInvalidPrice)
			}
		}
		if c.Low > math.Min(c.Open, c.Close) || c.High < math.Max(c.Open, c.Close) {
			return apperrors.NewValidationError(
				fmt.Sprintf("candles[%d]", i), c,
				"low must not exceed open/close and high must not be below them", apperrors.ErrInvalidOHLC)
		}
		if c.Volume < 0 {
			return apperrors.NewValidationError(
				fmt.Sprintf("candles[%d].volume", i), c.Volume,
				"volume must not be negative", apperrors.ErrInvalidCandles)
		}
		if i > 0 && c.Time <= candles[i-1].Time {
			return apperrors.NewValidationError(
				fmt.Sprintf("candles[%d].time", i), c.Time,
				fmt.Sprintf("must be after candles[%d].time (%d)", i-1, candles[i-1].Time),
				apperrors.ErrNonMonotonicTime)
		}
	}
	return nil
}

// ValidateSeries checks parallel high/low/timestamp arrays used by pivot detection.
func ValidateSeries(highs, lows []float64, timestamps []int64) error {
	if len(highs) != len(lows) || len(highs) != len(timestamps) {
		return apperrors.NewValidationError(
			"series", fmt.Sprintf("highs=%d lows=%d timestamps=%d", len(highs), len(lows), len(timestamps)),
			"highs, lows and timestamps must have equal length", apperrors.ErrLengthMismatch)
	}
	for i := range highs {
		if !isPositiveFinite(highs[i]) {
			return apperrors.NewValidationError(fmt.Sprintf("highs[%d]", i), highs[i],
				"prices must be positive and finite", apperrors.ErrInvalidPrice)
		}
		if !isPositiveFinite(lows[i]) {
			return apperrors.NewValidationError(fmt.Sprintf("lows[%d]", i), lows[i],
				"prices must be positive and finite", apperrors.ErrInvalidPrice)
		}
		if lows[i] > highs[i] {
			return apperrors.NewValidationError(fmt.Sprintf("lows[%d]", i), lows[i],
				fmt.Sprintf("low exceeds high (%v)", highs[i]), apperrors.ErrInvalidOHLC)
		}
		if i > 0 && timestamps[i] <= timestamps[i-1] {
			return apperrors.NewValidationError(fmt.Sprintf("timestamps[%d]", i), timestamps[i],
				fmt.Sprintf("must be after timestamps[%d] (%d)", i-1, timestamps[i-1]),
				apperrors.ErrNonMonotonicTime)
		}
	}
	return nil
}

// ValidatePrices checks a close-price series and its optional volume series.
func ValidatePrices(prices, volumes []float64) error {
	for i, p := range prices {
		if !isPositiveFinite(p) {
			return apperrors.NewValidationError(fmt.Sprintf("prices[%d]", i), p,
				"prices must be positive and finite", apperrors.ErrInvalidPrice)
		}
	}
	for i, v := range volumes {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return apperrors.NewValidationError(fmt.Sprintf("volumes[%d]", i), v,
				"volumes must be finite and non-negative", apperrors.ErrInvalidCandles)
		}
	}
	return nil
}

func isPositiveFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// ClampConfidence bounds a score to [0, 100] and rounds it to two decimals.
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		v = 100
	}
	return math.Round(v*100) / 100
}

// Clamp01 bounds v to [0, 1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
