// Package pivots detects swing highs and lows in price series and filters
// them down to the actionable ones.
package pivots

import (
	"fmt"

	"trading-assistant/internal/analysis"
	apperrors "trading-assistant/internal/errors"
	"trading-assistant/internal/models"
)

// TrendMode selects how the trend-structure filter infers direction.
type TrendMode string

const (
	TrendAuto TrendMode = "auto" // regression slope over the detection window
	TrendUp   TrendMode = "up"
	TrendDown TrendMode = "down"
	TrendNone TrendMode = "none" // filter disabled
)

// Options configures pivot detection and filtering.
type Options struct {
	LeftBars       int
	RightBars      int
	MinSpacingBars int     // 0 disables the spacing filter
	MinPercentMove float64 // fraction, 0.01 == 1%; 0 disables the filter
	TrendDirection TrendMode
	SidewaysDrift  float64 // |normalized drift| below this means no trend
}

// DefaultOptions returns the default 2-2 window with all filters enabled.
func DefaultOptions() Options {
	return Options{
		LeftBars:       2,
		RightBars:      2,
		MinSpacingBars: 3,
		MinPercentMove: 0.01,
		TrendDirection: TrendAuto,
		SidewaysDrift:  0.02,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.LeftBars < 1 {
		return apperrors.NewValidationError("left_bars", o.LeftBars, "must be at least 1", apperrors.ErrConfigInvalid)
	}
	if o.RightBars < 1 {
		return apperrors.NewValidationError("right_bars", o.RightBars, "must be at least 1", apperrors.ErrConfigInvalid)
	}
	if o.MinSpacingBars < 0 {
		return apperrors.NewValidationError("min_spacing_bars", o.MinSpacingBars, "must not be negative", apperrors.ErrConfigInvalid)
	}
	if o.MinPercentMove < 0 {
		return apperrors.NewValidationError("min_percent_move", o.MinPercentMove, "must not be negative", apperrors.ErrConfigInvalid)
	}
	if o.SidewaysDrift < 0 {
		return apperrors.NewValidationError("sideways_drift", o.SidewaysDrift, "must not be negative", apperrors.ErrConfigInvalid)
	}
	switch o.TrendDirection {
	case TrendAuto, TrendUp, TrendDown, TrendNone, "":
	default:
		return apperrors.NewValidationError("trend_direction", o.TrendDirection,
			"must be one of auto, up, down, none", apperrors.ErrConfigInvalid)
	}
	return nil
}

// FindPivots finds swing highs and lows with a left/right bar window.
//
// Bar i is a pivot high when highs[i] is the maximum of highs[i-leftBars ..
// i+rightBars]. Ties are broken in favour of the earliest index: every earlier
// bar in the window must be strictly lower, later bars may be equal. Pivot lows
// mirror this on lows. Bars closer than leftBars to the start or rightBars to
// the end are never pivots, and a series shorter than the window yields no
// pivots at all.
func FindPivots(highs, lows []float64, timestamps []int64, leftBars, rightBars int) ([]analysis.PivotPoint, []analysis.PivotPoint, error) {
	if leftBars < 1 || rightBars < 1 {
		return nil, nil, apperrors.NewValidationError("window", fmt.Sprintf("%d/%d", leftBars, rightBars),
			"left and right bars must be at least 1", apperrors.ErrConfigInvalid)
	}
	if err := analysis.ValidateSeries(highs, lows, timestamps); err != nil {
		return nil, nil, err
	}

	n := len(highs)
	if n < leftBars+rightBars+1 {
		return nil, nil, nil
	}

	var pivotHighs, pivotLows []analysis.PivotPoint
	for i := leftBars; i < n-rightBars; i++ {
		if isWindowExtreme(highs, i, leftBars, rightBars, func(a, b float64) bool { return a > b }) {
			pivotHighs = append(pivotHighs, analysis.PivotPoint{
				Index: i,
				Price: highs[i],
				Kind:  analysis.PivotHigh,
				Time:  timestamps[i],
			})
		}
		if isWindowExtreme(lows, i, leftBars, rightBars, func(a, b float64) bool { return a < b }) {
			pivotLows = append(pivotLows, analysis.PivotPoint{
				Index: i,
				Price: lows[i],
				Kind:  analysis.PivotLow,
				Time:  timestamps[i],
			})
		}
	}

	return pivotHighs, pivotLows, nil
}

// isWindowExtreme reports whether values[i] beats every earlier bar in the
// window and is not beaten by any later bar.
func isWindowExtreme(values []float64, i, left, right int, beats func(a, b float64) bool) bool {
	for j := i - left; j < i; j++ {
		if !beats(values[i], values[j]) {
			return false
		}
	}
	for j := i + 1; j <= i+right; j++ {
		if beats(values[j], values[i]) {
			return false
		}
	}
	return true
}

// FindPivotsSingleTF runs FindPivots over one candle array without filtering.
func FindPivotsSingleTF(candles []models.Candle, leftBars, rightBars int) ([]analysis.PivotPoint, []analysis.PivotPoint, error) {
	return FindPivots(models.Highs(candles), models.Lows(candles), models.Times(candles), leftBars, rightBars)
}

// DetectPivotsWithFilters finds raw pivots and then applies, in order, the
// minimum-spacing, minimum-percent-move and trend-structure filters. The
// result never holds more pivots than FindPivotsSingleTF on the same input.
func DetectPivotsWithFilters(candles []models.Candle, opts Options) ([]analysis.PivotPoint, []analysis.PivotPoint, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	if err := analysis.ValidateCandles(candles); err != nil {
		return nil, nil, err
	}

	highs, lows, err := FindPivotsSingleTF(candles, opts.LeftBars, opts.RightBars)
	if err != nil {
		return nil, nil, err
	}

	highs = filterSpacing(highs, opts.MinSpacingBars)
	lows = filterSpacing(lows, opts.MinSpacingBars)

	highs = filterPercentMove(highs, opts.MinPercentMove)
	lows = filterPercentMove(lows, opts.MinPercentMove)

	switch resolveTrend(candles, opts) {
	case TrendUp:
		highs = filterStructure(highs, true)
		lows = filterStructure(lows, true)
	case TrendDown:
		highs = filterStructure(highs, false)
		lows = filterStructure(lows, false)
	}

	return highs, lows, nil
}
