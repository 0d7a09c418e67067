package levels

import (
	"sort"

	"trading-assistant/internal/analysis"
)

// Rank returns a copy of levels ordered by significance: more touches first,
// then the more recently touched, then the lower price.
func Rank(levels []analysis.PriceLevel) []analysis.PriceLevel {
	out := make([]analysis.PriceLevel, len(levels))
	copy(out, levels)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TouchCount != b.TouchCount {
			return a.TouchCount > b.TouchCount
		}
		if a.LastTouchedIndex != b.LastTouchedIndex {
			return a.LastTouchedIndex > b.LastTouchedIndex
		}
		return a.Price < b.Price
	})
	return out
}

// Top returns at most n ranked levels. n <= 0 returns all of them.
func Top(levels []analysis.PriceLevel, n int) []analysis.PriceLevel {
	ranked := Rank(levels)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// NearestBelow returns the level with the highest price strictly below price.
func NearestBelow(levels []analysis.PriceLevel, price float64) (analysis.PriceLevel, bool) {
	var best analysis.PriceLevel
	found := false
	for _, l := range levels {
		if l.Price < price && (!found || l.Price > best.Price) {
			best, found = l, true
		}
	}
	return best, found
}

// NearestAbove returns the level with the lowest price strictly above price.
func NearestAbove(levels []analysis.PriceLevel, price float64) (analysis.PriceLevel, bool) {
	var best analysis.PriceLevel
	found := false
	for _, l := range levels {
		if l.Price > price && (!found || l.Price < best.Price) {
			best, found = l, true
		}
	}
	return best, found
}

// Nearest finds the closest support below and resistance above price. Support
// levels that price has fallen through count as resistance and broken
// resistance counts as support, so both sides are searched.
func Nearest(lv analysis.Levels, price float64) (support, resistance *analysis.PriceLevel) {
	all := make([]analysis.PriceLevel, 0, len(lv.Support)+len(lv.Resistance))
	all = append(all, lv.Support...)
	all = append(all, lv.Resistance...)

	if s, ok := NearestBelow(all, price); ok {
		support = &s
	}
	if r, ok := NearestAbove(all, price); ok {
		resistance = &r
	}
	return support, resistance
}
