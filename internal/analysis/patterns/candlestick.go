// Package patterns provides chart and candlestick pattern detection.
package patterns

import (
	"fmt"
	"math"

	"trading-assistant/internal/analysis"
	"trading-assistant/internal/models"
)

// CandlestickConfig holds the shape thresholds of the candlestick detector.
type CandlestickConfig struct {
	DojiThreshold      float64 // body <= this fraction of range
	ShadowRatio        float64 // hammer wick >= this multiple of body
	MaxOppositeWick    float64 // opposite wick <= this fraction of range
	LongBodyThreshold  float64 // body >= this fraction of range for star legs
	StarBodyThreshold  float64 // star body <= this fraction of range
	VolumeConfirmRatio float64 // volume >= this multiple of average
	TrendLookback      int     // closes checked for the preceding trend
}

// DefaultCandlestickConfig returns the default thresholds.
func DefaultCandlestickConfig() CandlestickConfig {
	return CandlestickConfig{
		DojiThreshold:      0.1,
		ShadowRatio:        2.0,
		MaxOppositeWick:    0.1,
		LongBodyThreshold:  0.6,
		StarBodyThreshold:  0.3,
		VolumeConfirmRatio: 1.5,
		TrendLookback:      3,
	}
}

// CandlestickDetector detects candlestick patterns in price data.
type CandlestickDetector struct {
	cfg CandlestickConfig
}

// NewCandlestickDetector creates a new candlestick pattern detector.
func NewCandlestickDetector(cfg CandlestickConfig) *CandlestickDetector {
	return &CandlestickDetector{cfg: cfg}
}

// DetectCandlestickPatterns validates candles and runs the default
// candlestick detector.
func DetectCandlestickPatterns(candles []models.Candle) ([]analysis.PatternDetection, error) {
	if err := analysis.ValidateCandles(candles); err != nil {
		return nil, err
	}
	return NewCandlestickDetector(DefaultCandlestickConfig()).Detect(candles), nil
}

// Detect scans every candle for single-, two- and three-candle patterns.
// Zero-range candles never match, so confidences stay finite. Candles must
// already satisfy analysis.ValidateCandles.
func (d *CandlestickDetector) Detect(candles []models.Candle) []analysis.PatternDetection {
	var patterns []analysis.PatternDetection
	avgVolume := averageVolume(candles)

	for i := range candles {
		if p := d.detectDoji(candles, i); p != nil {
			patterns = append(patterns, *p)
		}
		if p := d.detectHammerShape(candles, i); p != nil {
			patterns = append(patterns, *p)
		}
		if p := d.detectStarShape(candles, i); p != nil {
			patterns = append(patterns, *p)
		}
	}

	for i := 1; i < len(candles); i++ {
		if p := d.detectEngulfing(candles, i, avgVolume); p != nil {
			patterns = append(patterns, *p)
		}
	}

	for i := 2; i < len(candles); i++ {
		if p := d.detectMorningStar(candles, i); p != nil {
			patterns = append(patterns, *p)
		}
		if p := d.detectEveningStar(candles, i); p != nil {
			patterns = append(patterns, *p)
		}
	}

	return patterns
}

func bodySize(c models.Candle) float64 {
	return math.Abs(c.Close - c.Open)
}

func candleRange(c models.Candle) float64 {
	return c.High - c.Low
}

func upperShadow(c models.Candle) float64 {
	return c.High - max(c.Open, c.Close)
}

func lowerShadow(c models.Candle) float64 {
	return min(c.Open, c.Close) - c.Low
}

func isBullish(c models.Candle) bool {
	return c.Close > c.Open
}

func isBearish(c models.Candle) bool {
	return c.Close < c.Open
}

// averageVolume is the mean volume over all candles; 0 means the series has
// no volume data.
func averageVolume(candles []models.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var total int64
	for _, c := range candles {
		total += c.Volume
	}
	return float64(total) / float64(len(candles))
}

// volumeBonus scores how far volume exceeds the confirmation ratio, in [0, 1].
func (d *CandlestickDetector) volumeBonus(c models.Candle, avgVolume float64) float64 {
	if avgVolume <= 0 {
		return 0
	}
	ratio := float64(c.Volume) / avgVolume
	if ratio < d.cfg.VolumeConfirmRatio {
		return 0
	}
	return analysis.Clamp01(ratio / (2 * d.cfg.VolumeConfirmRatio))
}

// inUptrend reports whether the closes before idx rose for TrendLookback bars.
func (d *CandlestickDetector) inUptrend(candles []models.Candle, idx int) bool {
	n := d.cfg.TrendLookback
	if n < 1 || idx < n {
		return false
	}
	for j := idx - n; j < idx-1; j++ {
		if candles[j+1].Close <= candles[j].Close {
			return false
		}
	}
	return true
}

// inDowntrend reports whether the closes before idx fell for TrendLookback bars.
func (d *CandlestickDetector) inDowntrend(candles []models.Candle, idx int) bool {
	n := d.cfg.TrendLookback
	if n < 1 || idx < n {
		return false
	}
	for j := idx - n; j < idx-1; j++ {
		if candles[j+1].Close >= candles[j].Close {
			return false
		}
	}
	return true
}

// detectDoji scores 100 for open == close and falls linearly to 60 at the
// threshold body ratio.
func (d *CandlestickDetector) detectDoji(candles []models.Candle, idx int) *analysis.PatternDetection {
	c := candles[idx]
	rng := candleRange(c)
	if rng <= 0 {
		return nil
	}

	bodyRatio := bodySize(c) / rng
	if bodyRatio > d.cfg.DojiThreshold {
		return nil
	}

	return &analysis.PatternDetection{
		Type:             analysis.Doji,
		Direction:        analysis.PatternNeutral,
		StartCandleIndex: idx,
		EndCandleIndex:   idx,
		Confidence:       analysis.ClampConfidence(60 + 40*(1-bodyRatio/d.cfg.DojiThreshold)),
		Description:      fmt.Sprintf("Doji at candle %d: body is %.1f%% of range", idx, bodyRatio*100),
	}
}

// wickScore rates a reversal wick: how far the long wick exceeds ShadowRatio
// bodies and how small the opposite wick is.
func (d *CandlestickDetector) wickScore(long, opposite, body, rng float64) float64 {
	excess := analysis.Clamp01((long/body - d.cfg.ShadowRatio) / d.cfg.ShadowRatio)
	tight := analysis.Clamp01(1 - opposite/(d.cfg.MaxOppositeWick*rng))
	return 50 + 25*excess + 25*tight
}

// detectHammerShape matches a long lower wick under a small body. After an
// uptrend the shape is a hanging man, otherwise a hammer.
func (d *CandlestickDetector) detectHammerShape(candles []models.Candle, idx int) *analysis.PatternDetection {
	c := candles[idx]
	rng := candleRange(c)
	body := bodySize(c)
	if rng <= 0 || body/rng <= d.cfg.DojiThreshold {
		return nil
	}

	lower, upper := lowerShadow(c), upperShadow(c)
	if lower < d.cfg.ShadowRatio*body || upper > d.cfg.MaxOppositeWick*rng {
		return nil
	}

	p := &analysis.PatternDetection{
		Type:             analysis.Hammer,
		Direction:        analysis.PatternBullish,
		StartCandleIndex: idx,
		EndCandleIndex:   idx,
		Confidence:       analysis.ClampConfidence(d.wickScore(lower, upper, body, rng)),
	}
	if d.inUptrend(candles, idx) {
		p.Type = analysis.HangingMan
		p.Direction = analysis.PatternBearish
		p.Description = fmt.Sprintf("Hanging man at candle %d after a rise: lower wick %.1fx body", idx, lower/body)
	} else {
		p.Description = fmt.Sprintf("Hammer at candle %d: lower wick %.1fx body", idx, lower/body)
	}
	return p
}

// detectStarShape matches a long upper wick over a small body. After a
// downtrend the shape is an inverted hammer, otherwise a shooting star.
func (d *CandlestickDetector) detectStarShape(candles []models.Candle, idx int) *analysis.PatternDetection {
	c := candles[idx]
	rng := candleRange(c)
	body := bodySize(c)
	if rng <= 0 || body/rng <= d.cfg.DojiThreshold {
		return nil
	}

	lower, upper := lowerShadow(c), upperShadow(c)
	if upper < d.cfg.ShadowRatio*body || lower > d.cfg.MaxOppositeWick*rng {
		return nil
	}

	p := &analysis.PatternDetection{
		Type:             analysis.ShootingStar,
		Direction:        analysis.PatternBearish,
		StartCandleIndex: idx,
		EndCandleIndex:   idx,
		Confidence:       analysis.ClampConfidence(d.wickScore(upper, lower, body, rng)),
	}
	if d.inDowntrend(candles, idx) {
		p.Type = analysis.InvertedHammer
		p.Direction = analysis.PatternBullish
		p.Description = fmt.Sprintf("Inverted hammer at candle %d after a decline: upper wick %.1fx body", idx, upper/body)
	} else {
		p.Description = fmt.Sprintf("Shooting star at candle %d: upper wick %.1fx body", idx, upper/body)
	}
	return p
}

// detectEngulfing matches a body that strictly contains the previous
// opposite-colour body. Confidence is 50 when the bodies are equal in size and
// approaches 100 as the previous body shrinks relative to the current one.
func (d *CandlestickDetector) detectEngulfing(candles []models.Candle, idx int, avgVolume float64) *analysis.PatternDetection {
	prev := candles[idx-1]
	curr := candles[idx]

	var typ string
	var dir analysis.PatternDirection
	switch {
	case isBearish(prev) && isBullish(curr) && curr.Open < prev.Close && curr.Close > prev.Open:
		typ, dir = analysis.BullishEngulfing, analysis.PatternBullish
	case isBullish(prev) && isBearish(curr) && curr.Open > prev.Close && curr.Close < prev.Open:
		typ, dir = analysis.BearishEngulfing, analysis.PatternBearish
	default:
		return nil
	}

	prevBody, currBody := bodySize(prev), bodySize(curr)
	score := 50 + 50*(1-prevBody/currBody) + 10*d.volumeBonus(curr, avgVolume)

	return &analysis.PatternDetection{
		Type:             typ,
		Direction:        dir,
		StartCandleIndex: idx - 1,
		EndCandleIndex:   idx,
		Confidence:       analysis.ClampConfidence(score),
		Description: fmt.Sprintf("%s at candle %d: body %.2f engulfs prior body %.2f",
			analysis.PatternName(typ), idx, currBody, prevBody),
	}
}

// bodyRatio is body over range, or -1 for a zero-range candle.
func bodyRatio(c models.Candle) float64 {
	rng := candleRange(c)
	if rng <= 0 {
		return -1
	}
	return bodySize(c) / rng
}

// detectMorningStar matches a long bearish candle, a small star gapping below
// its close and a long bullish candle closing above the first midpoint.
func (d *CandlestickDetector) detectMorningStar(candles []models.Candle, idx int) *analysis.PatternDetection {
	first, star, third := candles[idx-2], candles[idx-1], candles[idx]

	if !isBearish(first) || bodyRatio(first) < d.cfg.LongBodyThreshold {
		return nil
	}
	starRatio := bodyRatio(star)
	if starRatio > d.cfg.StarBodyThreshold || max(star.Open, star.Close) >= first.Close {
		return nil
	}
	if !isBullish(third) || bodyRatio(third) < d.cfg.LongBodyThreshold {
		return nil
	}
	mid := (first.Open + first.Close) / 2
	if third.Close <= mid {
		return nil
	}

	penetration := analysis.Clamp01((third.Close - mid) / (first.Open - mid))
	return &analysis.PatternDetection{
		Type:             analysis.MorningStar,
		Direction:        analysis.PatternBullish,
		StartCandleIndex: idx - 2,
		EndCandleIndex:   idx,
		Confidence:       analysis.ClampConfidence(50 + 25*penetration + 25*starScore(starRatio, d.cfg.StarBodyThreshold)),
		Description:      fmt.Sprintf("Morning star ending at candle %d: recovered %.0f%% of the first body", idx, penetration*100),
	}
}

// detectEveningStar mirrors detectMorningStar at a top.
func (d *CandlestickDetector) detectEveningStar(candles []models.Candle, idx int) *analysis.PatternDetection {
	first, star, third := candles[idx-2], candles[idx-1], candles[idx]

	if !isBullish(first) || bodyRatio(first) < d.cfg.LongBodyThreshold {
		return nil
	}
	starRatio := bodyRatio(star)
	if starRatio > d.cfg.StarBodyThreshold || min(star.Open, star.Close) <= first.Close {
		return nil
	}
	if !isBearish(third) || bodyRatio(third) < d.cfg.LongBodyThreshold {
		return nil
	}
	mid := (first.Open + first.Close) / 2
	if third.Close >= mid {
		return nil
	}

	penetration := analysis.Clamp01((mid - third.Close) / (mid - first.Open))
	return &analysis.PatternDetection{
		Type:             analysis.EveningStar,
		Direction:        analysis.PatternBearish,
		StartCandleIndex: idx - 2,
		EndCandleIndex:   idx,
		Confidence:       analysis.ClampConfidence(50 + 25*penetration + 25*starScore(starRatio, d.cfg.StarBodyThreshold)),
		Description:      fmt.Sprintf("Evening star ending at candle %d: gave back %.0f%% of the first body", idx, penetration*100),
	}
}

// starScore is 1 for a flat star (or a zero-range one) and 0 at the threshold.
func starScore(ratio, threshold float64) float64 {
	if ratio < 0 {
		return 1
	}
	return analysis.Clamp01(1 - ratio/threshold)
}
