package pivots

import (
	"sort"

	"trading-assistant/internal/analysis"
	apperrors "trading-assistant/internal/errors"
	"trading-assistant/internal/models"
)

// TimeframePivots holds the pivots found on one resampled timeframe. Indices
// always refer to the base candle array.
type TimeframePivots struct {
	BarsPerCandle int                   `json:"bars_per_candle"`
	CandleCount   int                   `json:"candle_count"`
	Highs         []analysis.PivotPoint `json:"highs"`
	Lows          []analysis.PivotPoint `json:"lows"`
}

// MTFResult contains pivots per timeframe and the pivots confirmed on at
// least two of them.
type MTFResult struct {
	Timeframes      []TimeframePivots     `json:"timeframes"`
	ConfluenceHighs []analysis.PivotPoint `json:"confluence_highs"`
	ConfluenceLows  []analysis.PivotPoint `json:"confluence_lows"`
}

// Resample groups consecutive candles into buckets of barsPerCandle. The last
// bucket may be partial. highIdx and lowIdx give, per bucket, the base index
// of the bar holding the bucket's high and low (earliest on ties).
func Resample(candles []models.Candle, barsPerCandle int) (out []models.Candle, highIdx, lowIdx []int) {
	if barsPerCandle < 1 || len(candles) == 0 {
		return nil, nil, nil
	}

	for start := 0; start < len(candles); start += barsPerCandle {
		end := start + barsPerCandle
		if end > len(candles) {
			end = len(candles)
		}
		bucket := models.Candle{
			Time:  candles[start].Time,
			Open:  candles[start].Open,
			High:  candles[start].High,
			Low:   candles[start].Low,
			Close: candles[end-1].Close,
		}
		hi, lo := start, start
		for i := start; i < end; i++ {
			c := candles[i]
			if c.High > bucket.High {
				bucket.High = c.High
				hi = i
			}
			if c.Low < bucket.Low {
				bucket.Low = c.Low
				lo = i
			}
			bucket.Volume += c.Volume
		}
		out = append(out, bucket)
		highIdx = append(highIdx, hi)
		lowIdx = append(lowIdx, lo)
	}
	return out, highIdx, lowIdx
}

// DetectMultiTimeframe runs DetectPivotsWithFilters on the base candles
// resampled by each factor (1 is the base timeframe itself).
func DetectMultiTimeframe(candles []models.Candle, factors []int, opts Options) (*MTFResult, error) {
	if err := analysis.ValidateCandles(candles); err != nil {
		return nil, err
	}
	for _, f := range factors {
		if f < 1 {
			return nil, apperrors.NewValidationError("factors", f, "resample factor must be at least 1", apperrors.ErrConfigInvalid)
		}
	}

	result := &MTFResult{}
	highVotes := make(map[int]int)
	lowVotes := make(map[int]int)

	for _, f := range factors {
		resampled, highIdx, lowIdx := Resample(candles, f)
		highs, lows, err := DetectPivotsWithFilters(resampled, opts)
		if err != nil {
			return nil, apperrors.Wrapf(err, "timeframe x%d", f)
		}

		tf := TimeframePivots{BarsPerCandle: f, CandleCount: len(resampled)}
		for _, p := range highs {
			tf.Highs = append(tf.Highs, toBase(p, highIdx, candles))
		}
		for _, p := range lows {
			tf.Lows = append(tf.Lows, toBase(p, lowIdx, candles))
		}
		for _, p := range tf.Highs {
			highVotes[p.Index]++
		}
		for _, p := range tf.Lows {
			lowVotes[p.Index]++
		}
		result.Timeframes = append(result.Timeframes, tf)
	}

	result.ConfluenceHighs = confluence(highVotes, candles, analysis.PivotHigh)
	result.ConfluenceLows = confluence(lowVotes, candles, analysis.PivotLow)
	return result, nil
}

func toBase(p analysis.PivotPoint, baseIdx []int, candles []models.Candle) analysis.PivotPoint {
	idx := baseIdx[p.Index]
	return analysis.PivotPoint{
		Index: idx,
		Price: p.Price,
		Kind:  p.Kind,
		Time:  candles[idx].Time,
	}
}

func confluence(votes map[int]int, candles []models.Candle, kind analysis.PivotKind) []analysis.PivotPoint {
	var indices []int
	for idx, n := range votes {
		if n >= 2 {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	out := make([]analysis.PivotPoint, 0, len(indices))
	for _, idx := range indices {
		price := candles[idx].High
		if kind == analysis.PivotLow {
			price = candles[idx].Low
		}
		out = append(out, analysis.PivotPoint{Index: idx, Price: price, Kind: kind, Time: candles[idx].Time})
	}
	return out
}
