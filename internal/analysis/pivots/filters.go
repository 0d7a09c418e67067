package pivots

import (
	"math"

	"trading-assistant/internal/analysis"
	"trading-assistant/internal/analysis/indicators"
	"trading-assistant/internal/models"
)

// moreExtreme reports whether a is a stronger pivot than b of the same kind.
func moreExtreme(a, b analysis.PivotPoint) bool {
	if a.Kind == analysis.PivotHigh {
		return a.Price > b.Price
	}
	return a.Price < b.Price
}

// filterSpacing keeps one pivot out of every run of same-kind pivots closer
// than minSpacing bars to each other, preferring the more extreme price and,
// on equal prices, the earlier bar.
func filterSpacing(pivots []analysis.PivotPoint, minSpacing int) []analysis.PivotPoint {
	if minSpacing <= 0 || len(pivots) < 2 {
		return pivots
	}

	kept := make([]analysis.PivotPoint, 0, len(pivots))
	for _, p := range pivots {
		if len(kept) == 0 {
			kept = append(kept, p)
			continue
		}
		last := &kept[len(kept)-1]
		if p.Index-last.Index >= minSpacing {
			kept = append(kept, p)
			continue
		}
		if moreExtreme(p, *last) {
			*last = p
		}
	}
	return kept
}

// filterPercentMove drops a pivot whose price is within minMove (a fraction)
// of the previous retained pivot of the same kind.
func filterPercentMove(pivots []analysis.PivotPoint, minMove float64) []analysis.PivotPoint {
	if minMove <= 0 || len(pivots) < 2 {
		return pivots
	}

	kept := make([]analysis.PivotPoint, 0, len(pivots))
	for _, p := range pivots {
		if len(kept) == 0 {
			kept = append(kept, p)
			continue
		}
		prev := kept[len(kept)-1]
		if math.Abs(p.Price-prev.Price)/prev.Price < minMove {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// filterStructure keeps pivots consistent with the trend: higher highs and
// higher lows in an uptrend, lower highs and lower lows in a downtrend.
func filterStructure(pivots []analysis.PivotPoint, uptrend bool) []analysis.PivotPoint {
	if len(pivots) < 2 {
		return pivots
	}

	kept := make([]analysis.PivotPoint, 0, len(pivots))
	for _, p := range pivots {
		if len(kept) == 0 {
			kept = append(kept, p)
			continue
		}
		prev := kept[len(kept)-1]
		if uptrend && p.Price > prev.Price || !uptrend && p.Price < prev.Price {
			kept = append(kept, p)
		}
	}
	return kept
}

// resolveTrend maps the configured mode to up, down or none. Auto mode fits a
// regression line through bar midpoints of the whole detection window.
func resolveTrend(candles []models.Candle, opts Options) TrendMode {
	switch opts.TrendDirection {
	case TrendUp, TrendDown:
		return opts.TrendDirection
	case TrendAuto:
	default:
		return TrendNone
	}

	if len(candles) < 2 {
		return TrendNone
	}
	mids := make([]float64, len(candles))
	for i, c := range candles {
		mids[i] = (c.High + c.Low) / 2
	}
	drift := indicators.NormalizedDrift(mids)
	switch {
	case drift > opts.SidewaysDrift:
		return TrendUp
	case drift < -opts.SidewaysDrift:
		return TrendDown
	default:
		return TrendNone
	}
}
