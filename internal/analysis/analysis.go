// Package analysis provides the shared types of the pattern-detection engine:
// pivots, price levels, trading zones and pattern detections.
package analysis

import "strings"

// PivotKind tells whether a pivot is a swing high or a swing low.
type PivotKind string

const (
	PivotHigh PivotKind = "high"
	PivotLow  PivotKind = "low"
)

// PivotPoint is a swing high or low found in one detection pass.
type PivotPoint struct {
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Kind  PivotKind `json:"kind"`
	Time  int64     `json:"time"`
}

// LevelType represents the type of price level.
type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
)

// PriceLevel is a cluster of pivots whose prices lie within a relative tolerance.
type PriceLevel struct {
	Price             float64   `json:"price"`
	Type              LevelType `json:"type"`
	TouchCount        int       `json:"touch_count"`
	FirstTouchedIndex int       `json:"first_touched_index"`
	LastTouchedIndex  int       `json:"last_touched_index"`
}

// Levels groups support and resistance levels.
type Levels struct {
	Support    []PriceLevel `json:"support"`
	Resistance []PriceLevel `json:"resistance"`
}

// Prices returns the representative prices of the given levels.
func Prices(levels []PriceLevel) []float64 {
	out := make([]float64, len(levels))
	for i, l := range levels {
		out[i] = l.Price
	}
	return out
}

// VolumeBin is one bucket of a volume-at-price histogram.
type VolumeBin struct {
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Volume float64 `json:"volume"`
}

// VolumeProfile is a volume-at-price histogram.
type VolumeProfile struct {
	Bins           []VolumeBin `json:"bins"`
	PointOfControl float64     `json:"point_of_control"`
}

// TrendState is the moving-average alignment of a series.
type TrendState string

const (
	TrendUp       TrendState = "uptrend"
	TrendDown     TrendState = "downtrend"
	TrendSideways TrendState = "sideways"
)

// TradingZones holds the four actionable price zones and the inputs they were derived from.
// Ordering always holds: BTDLevel < BuyLowLevel < RetestLevel < current price < SELevel.
type TradingZones struct {
	BTDLevel      float64            `json:"btd_level"`
	BuyLowLevel   float64            `json:"buy_low_level"`
	RetestLevel   float64            `json:"retest_level"`
	SELevel       float64            `json:"se_level"`
	MA20          float64            `json:"ma_20"`
	MA50          float64            `json:"ma_50"`
	MA200         float64            `json:"ma_200"`
	RecentHigh    float64            `json:"recent_high"`
	RecentLow     float64            `json:"recent_low"`
	FibLevels     map[string]float64 `json:"fib_levels"`
	VolumeProfile *VolumeProfile     `json:"volume_profile,omitempty"`
	Trend         TrendState         `json:"trend"`
	Fallback      bool               `json:"fallback"`
}

// PatternDirection represents the expected direction of a pattern.
type PatternDirection string

const (
	PatternBullish PatternDirection = "bullish"
	PatternBearish PatternDirection = "bearish"
	PatternNeutral PatternDirection = "neutral"
)

// Pattern type tags.
const (
	Doji                    = "doji"
	Hammer                  = "hammer"
	HangingMan              = "hanging_man"
	ShootingStar            = "shooting_star"
	InvertedHammer          = "inverted_hammer"
	BullishEngulfing        = "bullish_engulfing"
	BearishEngulfing        = "bearish_engulfing"
	MorningStar             = "morning_star"
	EveningStar             = "evening_star"
	ResistanceBreakout      = "resistance_breakout"
	SupportBreakdown        = "support_breakdown"
	SupportBounce           = "support_bounce"
	ResistanceRejection     = "resistance_rejection"
	HeadAndShoulders        = "head_and_shoulders"
	InverseHeadAndShoulders = "inverse_head_and_shoulders"
	DoubleTop               = "double_top"
	DoubleBottom            = "double_bottom"
)

// PatternName turns a pattern tag such as "bullish_engulfing" into
// "Bullish engulfing".
func PatternName(tag string) string {
	name := strings.ReplaceAll(tag, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// PatternDetection is one detected candlestick or chart pattern.
// Confidence is within [0, 100].
type PatternDetection struct {
	Type             string           `json:"type"`
	Direction        PatternDirection `json:"direction"`
	StartCandleIndex int              `json:"start_candle_index"`
	EndCandleIndex   int              `json:"end_candle_index"`
	Confidence       float64          `json:"confidence"`
	Description      string           `json:"description"`
}

// ActiveLevels lists the ranked support and resistance prices exposed to consumers.
type ActiveLevels struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

// DetectionResult is the root output of one pipeline invocation.
type DetectionResult struct {
	Detected         []PatternDetection `json:"detected"`
	ActiveLevels     ActiveLevels       `json:"active_levels"`
	AgentExplanation string             `json:"agent_explanation"`
	TradingZones     *TradingZones      `json:"trading_zones,omitempty"`
	CurrentPrice     float64            `json:"current_price"`
}
