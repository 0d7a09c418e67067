package patterns

import (
	"fmt"
	"math"

	"trading-assistant/internal/analysis"
	"trading-assistant/internal/analysis/indicators"
	"trading-assistant/internal/analysis/pivots"
	"trading-assistant/internal/models"
)

// StructureConfig holds the thresholds of the structural detector.
type StructureConfig struct {
	SwingStrength     int     // bars on each side confirming a swing
	HeadMargin        float64 // head must exceed both shoulders by this fraction
	ShoulderTolerance float64 // max relative difference between shoulders
	DoubleTolerance   float64 // max relative difference between double-top peaks
	MinDoubleDepth    float64 // min trough depth below the peaks of a double
	TouchTolerance    float64 // max relative distance of a touch from a level
	VolumeLookback    int     // bars in the trailing volume average
}

// DefaultStructureConfig returns the default thresholds.
func DefaultStructureConfig() StructureConfig {
	return StructureConfig{
		SwingStrength:     3,
		HeadMargin:        0.01,
		ShoulderTolerance: 0.03,
		DoubleTolerance:   0.02,
		MinDoubleDepth:    0.03,
		TouchTolerance:    0.005,
		VolumeLookback:    20,
	}
}

// StructureDetector detects level interactions and multi-swing chart
// patterns.
type StructureDetector struct {
	cfg StructureConfig
}

// NewStructureDetector creates a new structural pattern detector.
func NewStructureDetector(cfg StructureConfig) *StructureDetector {
	return &StructureDetector{cfg: cfg}
}

// DetectStructuralPatterns validates candles and runs the default
// structural detector.
func DetectStructuralPatterns(candles []models.Candle, lv analysis.Levels) ([]analysis.PatternDetection, error) {
	if err := analysis.ValidateCandles(candles); err != nil {
		return nil, err
	}
	return NewStructureDetector(DefaultStructureConfig()).Detect(candles, lv), nil
}

// Detect emits, per level, the most recent breakout, breakdown, bounce or
// rejection, followed by the most recent head-and-shoulders and double
// formations. Too few candles, levels or swings yield no detections.
// Candles must already satisfy analysis.ValidateCandles.
func (d *StructureDetector) Detect(candles []models.Candle, lv analysis.Levels) []analysis.PatternDetection {
	if len(candles) < 2 {
		return nil
	}
	volumes := models.Volumes(candles)
	var patterns []analysis.PatternDetection

	for _, level := range lv.Resistance {
		if p := d.detectBreakout(candles, volumes, level); p != nil {
			patterns = append(patterns, *p)
		}
		if p := d.detectRejection(candles, level); p != nil {
			patterns = append(patterns, *p)
		}
	}
	for _, level := range lv.Support {
		if p := d.detectBreakdown(candles, volumes, level); p != nil {
			patterns = append(patterns, *p)
		}
		if p := d.detectBounce(candles, level); p != nil {
			patterns = append(patterns, *p)
		}
	}

	highs, lows, err := pivots.FindPivotsSingleTF(candles, d.cfg.SwingStrength, d.cfg.SwingStrength)
	if err != nil {
		return patterns
	}
	if p := d.detectHeadAndShoulders(candles, highs); p != nil {
		patterns = append(patterns, *p)
	}
	if p := d.detectInverseHeadAndShoulders(candles, lows); p != nil {
		patterns = append(patterns, *p)
	}
	if p := d.detectDoubleTop(candles, highs); p != nil {
		patterns = append(patterns, *p)
	}
	if p := d.detectDoubleBottom(candles, lows); p != nil {
		patterns = append(patterns, *p)
	}

	return patterns
}

// volumeScore compares the volume of bar i with the trailing average. With
// no volume data it returns a neutral 0.5. ok is false when volume exists
// but does not exceed the average.
func (d *StructureDetector) volumeScore(volumes []float64, i int) (score float64, ok bool) {
	avg := indicators.AverageVolume(volumes, i-d.cfg.VolumeLookback, i)
	if avg <= 0 {
		return 0.5, true
	}
	if volumes[i] <= avg {
		return 0, false
	}
	return analysis.Clamp01(volumes[i]/avg - 1), true
}

// detectBreakout finds the latest close crossing above a resistance level
// after the level was last touched.
func (d *StructureDetector) detectBreakout(candles []models.Candle, volumes []float64, level analysis.PriceLevel) *analysis.PatternDetection {
	if level.Price <= 0 {
		return nil
	}
	for i := len(candles) - 1; i >= max(1, level.LastTouchedIndex+1); i-- {
		prev, curr := candles[i-1], candles[i]
		if prev.Close > level.Price || curr.Close <= level.Price {
			continue
		}
		vol, ok := d.volumeScore(volumes, i)
		if !ok {
			continue
		}
		move := (curr.Close - level.Price) / level.Price
		return &analysis.PatternDetection{
			Type:             analysis.ResistanceBreakout,
			Direction:        analysis.PatternBullish,
			StartCandleIndex: i - 1,
			EndCandleIndex:   i,
			Confidence:       analysis.ClampConfidence(50 + 30*analysis.Clamp01(move/0.02) + 20*vol),
			Description:      fmt.Sprintf("Close %.2f broke above resistance %.2f at candle %d", curr.Close, level.Price, i),
		}
	}
	return nil
}

// detectBreakdown finds the latest close crossing below a support level
// after the level was last touched.
func (d *StructureDetector) detectBreakdown(candles []models.Candle, volumes []float64, level analysis.PriceLevel) *analysis.PatternDetection {
	if level.Price <= 0 {
		return nil
	}
	for i := len(candles) - 1; i >= max(1, level.LastTouchedIndex+1); i-- {
		prev, curr := candles[i-1], candles[i]
		if prev.Close < level.Price || curr.Close >= level.Price {
			continue
		}
		vol, ok := d.volumeScore(volumes, i)
		if !ok {
			continue
		}
		move := (level.Price - curr.Close) / level.Price
		return &analysis.PatternDetection{
			Type:             analysis.SupportBreakdown,
			Direction:        analysis.PatternBearish,
			StartCandleIndex: i - 1,
			EndCandleIndex:   i,
			Confidence:       analysis.ClampConfidence(50 + 30*analysis.Clamp01(move/0.02) + 20*vol),
			Description:      fmt.Sprintf("Close %.2f broke below support %.2f at candle %d", curr.Close, level.Price, i),
		}
	}
	return nil
}

// proximity is 1 for an exact touch and 0 at the tolerance edge.
func proximity(dist, tol float64) float64 {
	if tol <= 0 {
		return 1
	}
	return analysis.Clamp01(1 - dist/tol)
}

// detectBounce finds the latest candle whose low touches a support level and
// whose successor closes higher, excluding the pivot that formed the level.
func (d *StructureDetector) detectBounce(candles []models.Candle, level analysis.PriceLevel) *analysis.PatternDetection {
	if level.Price <= 0 {
		return nil
	}
	tol := d.cfg.TouchTolerance
	for i := len(candles) - 2; i >= max(0, level.FirstTouchedIndex+1); i-- {
		c, next := candles[i], candles[i+1]
		dist := math.Abs(c.Low-level.Price) / level.Price
		if dist > tol || c.Close < level.Price*(1-tol) || next.Close <= c.Close {
			continue
		}
		lift := analysis.Clamp01((next.Close - c.Close) / level.Price / 0.01)
		return &analysis.PatternDetection{
			Type:             analysis.SupportBounce,
			Direction:        analysis.PatternBullish,
			StartCandleIndex: i,
			EndCandleIndex:   i + 1,
			Confidence:       analysis.ClampConfidence(50 + 30*proximity(dist, tol) + 20*lift),
			Description:      fmt.Sprintf("Bounced off support %.2f at candle %d", level.Price, i),
		}
	}
	return nil
}

// detectRejection mirrors detectBounce on a resistance level.
func (d *StructureDetector) detectRejection(candles []models.Candle, level analysis.PriceLevel) *analysis.PatternDetection {
	if level.Price <= 0 {
		return nil
	}
	tol := d.cfg.TouchTolerance
	for i := len(candles) - 2; i >= max(0, level.FirstTouchedIndex+1); i-- {
		c, next := candles[i], candles[i+1]
		dist := math.Abs(c.High-level.Price) / level.Price
		if dist > tol || c.Close > level.Price*(1+tol) || next.Close >= c.Close {
			continue
		}
		drop := analysis.Clamp01((c.Close - next.Close) / level.Price / 0.01)
		return &analysis.PatternDetection{
			Type:             analysis.ResistanceRejection,
			Direction:        analysis.PatternBearish,
			StartCandleIndex: i,
			EndCandleIndex:   i + 1,
			Confidence:       analysis.ClampConfidence(50 + 30*proximity(dist, tol) + 20*drop),
			Description:      fmt.Sprintf("Rejected at resistance %.2f at candle %d", level.Price, i),
		}
	}
	return nil
}

type extreme struct {
	index int
	price float64
}

// lowestLow returns the lowest low strictly between from and to.
func lowestLow(candles []models.Candle, from, to int) (extreme, bool) {
	best, found := extreme{}, false
	for i := from + 1; i < to; i++ {
		if !found || candles[i].Low < best.price {
			best, found = extreme{i, candles[i].Low}, true
		}
	}
	return best, found
}

// highestHigh returns the highest high strictly between from and to.
func highestHigh(candles []models.Candle, from, to int) (extreme, bool) {
	best, found := extreme{}, false
	for i := from + 1; i < to; i++ {
		if !found || candles[i].High > best.price {
			best, found = extreme{i, candles[i].High}, true
		}
	}
	return best, found
}

// necklineAt projects the line through a and b to index i.
func necklineAt(a, b extreme, i int) float64 {
	if b.index == a.index {
		return a.price
	}
	return a.price + (b.price-a.price)*float64(i-a.index)/float64(b.index-a.index)
}

// shapeConfidence scores shoulder symmetry, neckline flatness and whether
// the neckline has already been broken.
func (d *StructureDetector) shapeConfidence(shoulderDiff float64, t1, t2 extreme, broken bool) float64 {
	symmetry := proximity(shoulderDiff, d.cfg.ShoulderTolerance)
	slope := math.Abs(t2.price-t1.price) / ((t1.price + t2.price) / 2)
	flatness := proximity(slope, d.cfg.ShoulderTolerance)
	score := 40 + 30*symmetry + 20*flatness
	if broken {
		score += 10
	}
	return analysis.ClampConfidence(score)
}

// detectHeadAndShoulders looks for the latest three consecutive swing highs
// with a dominant middle and roughly equal shoulders.
func (d *StructureDetector) detectHeadAndShoulders(candles []models.Candle, highs []analysis.PivotPoint) *analysis.PatternDetection {
	for i := len(highs) - 1; i >= 2; i-- {
		left, head, right := highs[i-2], highs[i-1], highs[i]
		taller := max(left.Price, right.Price)
		if head.Price < taller*(1+d.cfg.HeadMargin) {
			continue
		}
		diff := math.Abs(left.Price-right.Price) / taller
		if diff > d.cfg.ShoulderTolerance {
			continue
		}
		t1, ok1 := lowestLow(candles, left.Index, head.Index)
		t2, ok2 := lowestLow(candles, head.Index, right.Index)
		if !ok1 || !ok2 {
			continue
		}

		last := len(candles) - 1
		broken := last > right.Index && candles[last].Close < necklineAt(t1, t2, last)
		return &analysis.PatternDetection{
			Type:             analysis.HeadAndShoulders,
			Direction:        analysis.PatternBearish,
			StartCandleIndex: left.Index,
			EndCandleIndex:   right.Index,
			Confidence:       d.shapeConfidence(diff, t1, t2, broken),
			Description: fmt.Sprintf("Head and shoulders: head %.2f, shoulders %.2f/%.2f, neckline %.2f-%.2f",
				head.Price, left.Price, right.Price, t1.price, t2.price),
		}
	}
	return nil
}

// detectInverseHeadAndShoulders mirrors detectHeadAndShoulders on swing lows.
func (d *StructureDetector) detectInverseHeadAndShoulders(candles []models.Candle, lows []analysis.PivotPoint) *analysis.PatternDetection {
	for i := len(lows) - 1; i >= 2; i-- {
		left, head, right := lows[i-2], lows[i-1], lows[i]
		shallower := min(left.Price, right.Price)
		if head.Price > shallower*(1-d.cfg.HeadMargin) {
			continue
		}
		diff := math.Abs(left.Price-right.Price) / max(left.Price, right.Price)
		if diff > d.cfg.ShoulderTolerance {
			continue
		}
		p1, ok1 := highestHigh(candles, left.Index, head.Index)
		p2, ok2 := highestHigh(candles, head.Index, right.Index)
		if !ok1 || !ok2 {
			continue
		}

		last := len(candles) - 1
		broken := last > right.Index && candles[last].Close > necklineAt(p1, p2, last)
		return &analysis.PatternDetection{
			Type:             analysis.InverseHeadAndShoulders,
			Direction:        analysis.PatternBullish,
			StartCandleIndex: left.Index,
			EndCandleIndex:   right.Index,
			Confidence:       d.shapeConfidence(diff, p1, p2, broken),
			Description: fmt.Sprintf("Inverse head and shoulders: head %.2f, shoulders %.2f/%.2f, neckline %.2f-%.2f",
				head.Price, left.Price, right.Price, p1.price, p2.price),
		}
	}
	return nil
}

// doubleConfidence scores peak equality and the depth of the middle swing.
func (d *StructureDetector) doubleConfidence(diff, depth float64) float64 {
	depthScore := 1.0
	if d.cfg.MinDoubleDepth > 0 {
		depthScore = analysis.Clamp01(depth / (3 * d.cfg.MinDoubleDepth))
	}
	return analysis.ClampConfidence(45 + 35*proximity(diff, d.cfg.DoubleTolerance) + 20*depthScore)
}

// detectDoubleTop looks for the latest two consecutive swing highs at about
// the same price separated by a meaningful trough.
func (d *StructureDetector) detectDoubleTop(candles []models.Candle, highs []analysis.PivotPoint) *analysis.PatternDetection {
	for i := len(highs) - 1; i >= 1; i-- {
		first, second := highs[i-1], highs[i]
		diff := math.Abs(first.Price-second.Price) / max(first.Price, second.Price)
		if diff > d.cfg.DoubleTolerance {
			continue
		}
		trough, ok := lowestLow(candles, first.Index, second.Index)
		if !ok {
			continue
		}
		lower := min(first.Price, second.Price)
		depth := (lower - trough.price) / lower
		if depth < d.cfg.MinDoubleDepth {
			continue
		}
		return &analysis.PatternDetection{
			Type:             analysis.DoubleTop,
			Direction:        analysis.PatternBearish,
			StartCandleIndex: first.Index,
			EndCandleIndex:   second.Index,
			Confidence:       d.doubleConfidence(diff, depth),
			Description: fmt.Sprintf("Double top at %.2f and %.2f with neckline %.2f",
				first.Price, second.Price, trough.price),
		}
	}
	return nil
}

// detectDoubleBottom mirrors detectDoubleTop on swing lows.
func (d *StructureDetector) detectDoubleBottom(candles []models.Candle, lows []analysis.PivotPoint) *analysis.PatternDetection {
	for i := len(lows) - 1; i >= 1; i-- {
		first, second := lows[i-1], lows[i]
		diff := math.Abs(first.Price-second.Price) / max(first.Price, second.Price)
		if diff > d.cfg.DoubleTolerance {
			continue
		}
		peak, ok := highestHigh(candles, first.Index, second.Index)
		if !ok {
			continue
		}
		higher := max(first.Price, second.Price)
		depth := (peak.price - higher) / higher
		if depth < d.cfg.MinDoubleDepth {
			continue
		}
		return &analysis.PatternDetection{
			Type:             analysis.DoubleBottom,
			Direction:        analysis.PatternBullish,
			StartCandleIndex: first.Index,
			EndCandleIndex:   second.Index,
			Confidence:       d.doubleConfidence(diff, depth),
			Description: fmt.Sprintf("Double bottom at %.2f and %.2f with neckline %.2f",
				first.Price, second.Price, peak.price),
		}
	}
	return nil
}
