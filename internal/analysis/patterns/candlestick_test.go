package patterns

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"trading-assistant/internal/analysis"
	"trading-assistant/internal/analysis/levels"
	"trading-assistant/internal/analysis/pivots"
	apperrors "trading-assistant/internal/errors"
	"trading-assistant/internal/models"
)

func candle(t int64, o, h, l, c float64) models.Candle {
	return models.Candle{Time: t, Open: o, High: h, Low: l, Close: c}
}

func detectCandlesticks(t *testing.T, candles []models.Candle) []analysis.PatternDetection {
	t.Helper()
	found, err := DetectCandlestickPatterns(candles)
	if err != nil {
		t.Fatalf("DetectCandlestickPatterns failed: %v", err)
	}
	return found
}

func detectStructures(t *testing.T, candles []models.Candle, lv analysis.Levels) []analysis.PatternDetection {
	t.Helper()
	found, err := DetectStructuralPatterns(candles, lv)
	if err != nil {
		t.Fatalf("DetectStructuralPatterns failed: %v", err)
	}
	return found
}

// find returns the first detection of the given type ending at end, or nil.
func find(patterns []analysis.PatternDetection, typ string, end int) *analysis.PatternDetection {
	for i := range patterns {
		if patterns[i].Type == typ && patterns[i].EndCandleIndex == end {
			return &patterns[i]
		}
	}
	return nil
}

func TestCandlestick_PerfectDoji(t *testing.T) {
	candles := []models.Candle{
		candle(1, 100, 102, 99, 101.5),
		candle(2, 101, 102.5, 99.5, 101),
		candle(3, 101, 103, 100.5, 102.5),
	}

	p := find(detectCandlesticks(t, candles), analysis.Doji, 1)
	if p == nil {
		t.Fatal("Expected a doji at candle 1")
	}
	if p.Confidence < 90 {
		t.Errorf("Expected doji confidence >= 90, got %v", p.Confidence)
	}
	if p.Direction != analysis.PatternNeutral || p.StartCandleIndex != 1 {
		t.Errorf("Unexpected doji detection: %+v", p)
	}
}

func TestCandlestick_DojiConfidenceFallsWithBody(t *testing.T) {
	d := NewCandlestickDetector(DefaultCandlestickConfig())
	perfect := d.detectDoji([]models.Candle{candle(1, 100, 101, 99, 100)}, 0)
	wide := d.detectDoji([]models.Candle{candle(1, 100, 101, 99, 100.15)}, 0)
	if perfect == nil || wide == nil {
		t.Fatal("Expected both candles to be dojis")
	}
	if wide.Confidence >= perfect.Confidence {
		t.Errorf("Expected a wider body to score lower: %v vs %v", wide.Confidence, perfect.Confidence)
	}
	if perfect.Confidence != 100 {
		t.Errorf("Expected open == close to score 100, got %v", perfect.Confidence)
	}
}

func TestCandlestick_BullishEngulfingFixture(t *testing.T) {
	candles := []models.Candle{
		candle(1, 100, 100.5, 97.5, 98),
		candle(2, 97, 102.5, 96.5, 102),
	}

	p := find(detectCandlesticks(t, candles), analysis.BullishEngulfing, 1)
	if p == nil {
		t.Fatal("Expected bullish engulfing anchored at candle 1")
	}
	if p.Confidence < 75 {
		t.Errorf("Expected confidence >= 75, got %v", p.Confidence)
	}
	if p.StartCandleIndex != 0 || p.Direction != analysis.PatternBullish {
		t.Errorf("Unexpected detection: %+v", p)
	}
}

func TestCandlestick_MarginalEngulfing(t *testing.T) {
	candles := []models.Candle{
		candle(1, 100, 100.3, 97.8, 98),
		candle(2, 97.95, 100.2, 97.9, 100.1),
	}

	p := find(detectCandlesticks(t, candles), analysis.BullishEngulfing, 1)
	if p == nil {
		t.Fatal("Expected a marginal bullish engulfing")
	}
	if p.Confidence < 50 || p.Confidence > 70 {
		t.Errorf("Expected confidence in [50, 70], got %v", p.Confidence)
	}
}

func TestCandlestick_EngulfingRequiresStrictContainment(t *testing.T) {
	candles := []models.Candle{
		candle(1, 100, 100.5, 97.5, 98),
		candle(2, 98, 102.5, 97.5, 102),
	}
	if p := find(detectCandlesticks(t, candles), analysis.BullishEngulfing, 1); p != nil {
		t.Errorf("Expected no engulfing when the open equals the prior close, got %+v", p)
	}
}

func TestCandlestick_BearishEngulfing(t *testing.T) {
	candles := []models.Candle{
		candle(1, 98, 100.5, 97.5, 100),
		candle(2, 101, 101.5, 96.5, 97),
	}
	p := find(detectCandlesticks(t, candles), analysis.BearishEngulfing, 1)
	if p == nil {
		t.Fatal("Expected bearish engulfing")
	}
	if p.Direction != analysis.PatternBearish {
		t.Errorf("Expected bearish direction, got %s", p.Direction)
	}
}

func TestCandlestick_EngulfingVolumeBonus(t *testing.T) {
	candles := []models.Candle{
		candle(1, 100, 100.5, 97.5, 98),
		candle(2, 97, 102.5, 96.5, 102),
		candle(3, 102, 102.8, 101.5, 102.4),
	}
	base := find(detectCandlesticks(t, candles), analysis.BullishEngulfing, 1)

	candles[0].Volume, candles[1].Volume, candles[2].Volume = 100, 1000, 100
	boosted := find(detectCandlesticks(t, candles), analysis.BullishEngulfing, 1)
	if base == nil || boosted == nil {
		t.Fatal("Expected engulfing in both runs")
	}
	if boosted.Confidence <= base.Confidence {
		t.Errorf("Expected volume to raise confidence: %v vs %v", boosted.Confidence, base.Confidence)
	}
}

func downtrend() []models.Candle {
	return []models.Candle{
		candle(1, 106, 106.5, 104.5, 105),
		candle(2, 105, 105.5, 103.5, 104),
		candle(3, 104, 104.5, 102.5, 103),
	}
}

func uptrend() []models.Candle {
	return []models.Candle{
		candle(1, 96, 97.5, 95.5, 97),
		candle(2, 97, 98.5, 96.5, 98),
		candle(3, 98, 99.5, 97.5, 99),
	}
}

func TestCandlestick_HammerAndHangingMan(t *testing.T) {
	shape := candle(4, 100, 100.55, 98, 100.5)

	p := find(detectCandlesticks(t, append(downtrend(), shape)), analysis.Hammer, 3)
	if p == nil {
		t.Fatal("Expected a hammer after a decline")
	}
	if p.Direction != analysis.PatternBullish || p.Confidence < 80 {
		t.Errorf("Unexpected hammer: %+v", p)
	}

	p = find(detectCandlesticks(t, append(uptrend(), shape)), analysis.HangingMan, 3)
	if p == nil {
		t.Fatal("Expected a hanging man after a rise")
	}
	if p.Direction != analysis.PatternBearish {
		t.Errorf("Expected bearish hanging man, got %s", p.Direction)
	}
}

func TestCandlestick_ShootingStarAndInvertedHammer(t *testing.T) {
	shape := candle(4, 100, 102.5, 99.95, 100.5)

	if p := find(detectCandlesticks(t, append(uptrend(), shape)), analysis.ShootingStar, 3); p == nil {
		t.Error("Expected a shooting star")
	}
	if p := find(detectCandlesticks(t, append(downtrend(), shape)), analysis.InvertedHammer, 3); p == nil {
		t.Error("Expected an inverted hammer after a decline")
	}
}

func TestCandlestick_MorningAndEveningStar(t *testing.T) {
	morning := []models.Candle{
		candle(1, 110, 110.5, 103.5, 104),
		candle(2, 102.5, 103, 101.8, 102.3),
		candle(3, 103, 109.5, 102.5, 109),
	}
	p := find(detectCandlesticks(t, morning), analysis.MorningStar, 2)
	if p == nil {
		t.Fatal("Expected a morning star")
	}
	if p.StartCandleIndex != 0 || p.Confidence < 60 {
		t.Errorf("Unexpected morning star: %+v", p)
	}

	evening := []models.Candle{
		candle(1, 104, 110.5, 103.5, 110),
		candle(2, 111.5, 112.2, 111, 111.7),
		candle(3, 111, 111.5, 104.5, 105),
	}
	if p := find(detectCandlesticks(t, evening), analysis.EveningStar, 2); p == nil {
		t.Error("Expected an evening star")
	}
}

func TestCandlestick_ZeroRangeCandles(t *testing.T) {
	candles := []models.Candle{
		candle(1, 100, 100, 100, 100),
		candle(2, 100, 100, 100, 100),
		candle(3, 100, 100, 100, 100),
	}
	if got := detectCandlesticks(t, candles); len(got) != 0 {
		t.Errorf("Expected no patterns on zero-range candles, got %+v", got)
	}
	if got := detectCandlesticks(t, nil); len(got) != 0 {
		t.Errorf("Expected no patterns on empty input, got %+v", got)
	}
}

func TestDetect_RejectsMalformedCandles(t *testing.T) {
	backwards := []models.Candle{
		candle(2, 100, 102, 99, 101),
		candle(1, 101, 103, 100, 102),
	}
	if _, err := DetectCandlestickPatterns(backwards); !apperrors.Is(err, apperrors.ErrNonMonotonicTime) {
		t.Errorf("Expected ErrNonMonotonicTime from candlestick detection, got %v", err)
	}

	inverted := fromCloses(repeat(100, 30))
	inverted[12].High = inverted[12].Low - 1
	lv := analysis.Levels{Support: []analysis.PriceLevel{{Price: 99.5}}}
	found, err := DetectStructuralPatterns(inverted, lv)
	if !apperrors.Is(err, apperrors.ErrInvalidOHLC) {
		t.Errorf("Expected ErrInvalidOHLC from structural detection, got %v", err)
	}
	if len(found) != 0 {
		t.Errorf("Expected no partial results on malformed input, got %+v", found)
	}
}

// genCandles builds candles from small integer offsets so that zero bodies,
// zero wicks and zero ranges occur often.
func genCandles(offsets []int) []models.Candle {
	n := len(offsets) / 4
	candles := make([]models.Candle, n)
	base := 100.0
	for i := 0; i < n; i++ {
		o := base + float64(offsets[4*i]-2)
		c := base + float64(offsets[4*i+1]-2)
		h := math.Max(o, c) + float64(offsets[4*i+2])*0.5
		l := math.Min(o, c) - float64(offsets[4*i+3])*0.5
		candles[i] = models.Candle{Time: int64(i + 1), Open: o, High: h, Low: l, Close: c, Volume: int64(offsets[4*i+2] * 100)}
		base = math.Min(150, math.Max(50, c))
	}
	return candles
}

// Property: every detection has a confidence in [0, 100] and indices inside
// the input, including degenerate candles.
func TestProperty_ConfidenceBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("confidence within [0, 100]", prop.ForAll(
		func(offsets []int) bool {
			candles := genCandles(offsets)
			found, err := DetectCandlestickPatterns(candles)
			if err != nil {
				return false
			}

			highs, lows, err := pivots.FindPivotsSingleTF(candles, 2, 2)
			if err != nil {
				return false
			}
			lv := levels.AggregatePivots(highs, lows, 0.01)
			structural, err := DetectStructuralPatterns(candles, lv)
			if err != nil {
				return false
			}
			found = append(found, structural...)

			for _, p := range found {
				if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 100 {
					return false
				}
				if p.StartCandleIndex < 0 || p.EndCandleIndex >= len(candles) || p.StartCandleIndex > p.EndCandleIndex {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(400, gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}
