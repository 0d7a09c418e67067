// Package zones derives the buy-the-dip, buy-low, retest and sell-high price
// zones from moving averages, Fibonacci retracements and known levels.
package zones

import (
	"math"

	"trading-assistant/internal/analysis"
	"trading-assistant/internal/analysis/indicators"
	"trading-assistant/internal/analysis/levels"
	apperrors "trading-assistant/internal/errors"
)

const (
	// MinHistory is the number of prices below which the fixed ladder is used.
	MinHistory = 50
	// RecentWindow is the trailing window for the recent high and low.
	RecentWindow = 50

	// Fixed ladder used when history is short, and as the clamp fallback.
	FallbackBTD      = 0.92
	FallbackBuyLow   = 0.96
	FallbackRetest   = 0.98
	FallbackSellHigh = 1.03

	// minSellPremium is the smallest distance of the sell zone above price.
	minSellPremium = 1.01
	// minStep is the smallest relative gap the ordering pass allows between
	// two adjacent zones.
	minStep = 0.005
)

// CalculateAdvancedLevels computes trading zones from a close-price history
// and its optional volumes. It is Calculate without known levels.
func CalculateAdvancedLevels(prices, volumes []float64, currentPrice float64) (*analysis.TradingZones, error) {
	return Calculate(prices, volumes, currentPrice, analysis.Levels{})
}

// Calculate computes trading zones. Known support and resistance levels, when
// given, refine the retest and sell-high zones.
//
// The result always satisfies BTDLevel < BuyLowLevel < RetestLevel <
// currentPrice < SELevel. With fewer than MinHistory prices the fixed ladder
// 0.92/0.96/0.98/1.03 of the current price is returned unchanged.
func Calculate(prices, volumes []float64, currentPrice float64, lv analysis.Levels) (*analysis.TradingZones, error) {
	if math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) || currentPrice <= 0 {
		return nil, apperrors.NewValidationError("current_price", currentPrice,
			"must be positive and finite", apperrors.ErrInvalidPrice)
	}
	if err := analysis.ValidatePrices(prices, volumes); err != nil {
		return nil, err
	}

	recent := indicators.Tail(prices, RecentWindow)
	z := &analysis.TradingZones{
		MA20:          indicators.MovingAverage(prices, 20),
		MA50:          indicators.MovingAverage(prices, 50),
		MA200:         indicators.MovingAverage(prices, 200),
		RecentHigh:    indicators.Highest(recent),
		RecentLow:     indicators.Lowest(recent),
		VolumeProfile: indicators.VolumeProfile(prices, volumes, indicators.DefaultProfileBins),
		Trend:         analysis.TrendSideways,
	}
	fib := indicators.Retracement(z.RecentHigh, z.RecentLow)
	z.FibLevels = fib.Map()

	if len(prices) < MinHistory {
		z.BTDLevel = currentPrice * FallbackBTD
		z.BuyLowLevel = currentPrice * FallbackBuyLow
		z.RetestLevel = currentPrice * FallbackRetest
		z.SELevel = currentPrice * FallbackSellHigh
		z.Fallback = true
		return z, nil
	}

	z.Trend = trendState(currentPrice, z.MA20, z.MA50, z.MA200)

	below := func(v float64) bool { return v > 0 && v < currentPrice }

	// Deepest dip: the lower of the 200-MA and the 78.6% retracement.
	btd := pick(below, math.Min, z.MA200, fib.Level786)
	// Shallower dip: the higher of the 50-MA and the 61.8% retracement.
	buyLow := pick(below, math.Max, z.MA50, fib.Level618)
	// Retest: the 38.2% retracement or the nearest support, whichever is closer.
	support, resistance := levels.Nearest(lv, currentPrice)
	retestCandidates := []float64{fib.Level382}
	if support != nil {
		retestCandidates = append(retestCandidates, support.Price)
	}
	retest := pick(below, math.Max, retestCandidates...)

	above := func(v float64) bool { return v > currentPrice }
	sellCandidates := []float64{z.RecentHigh}
	if resistance != nil {
		sellCandidates = append(sellCandidates, resistance.Price)
	}
	se := pick(above, math.Min, sellCandidates...)
	if se > 0 {
		se = math.Max(se, currentPrice*minSellPremium)
	}

	z.RetestLevel = clampBelow(retest, currentPrice, currentPrice*FallbackRetest)
	z.BuyLowLevel = clampBelow(buyLow, z.RetestLevel,
		math.Min(currentPrice*FallbackBuyLow, z.RetestLevel*FallbackRetest))
	z.BTDLevel = clampBelow(btd, z.BuyLowLevel,
		math.Min(currentPrice*FallbackBTD, z.BuyLowLevel*FallbackBuyLow))
	z.SELevel = clampAbove(se, currentPrice, currentPrice*FallbackSellHigh)

	return z, nil
}

// pick reduces the candidates accepted by keep with combine. It returns 0
// when no candidate is accepted.
func pick(keep func(float64) bool, combine func(a, b float64) float64, candidates ...float64) float64 {
	result, found := 0.0, false
	for _, c := range candidates {
		if !keep(c) {
			continue
		}
		if !found {
			result, found = c, true
			continue
		}
		result = combine(result, c)
	}
	return result
}

// clampBelow returns v when it sits at least minStep below upper and is a
// usable price, otherwise fallback.
func clampBelow(v, upper, fallback float64) float64 {
	if v > 0 && !math.IsInf(v, 0) && v <= upper*(1-minStep) {
		return v
	}
	return fallback
}

// clampAbove returns v when it sits at least minStep above lower, otherwise
// fallback.
func clampAbove(v, lower, fallback float64) float64 {
	if !math.IsInf(v, 0) && v >= lower*(1+minStep) {
		return v
	}
	return fallback
}

func trendState(price, ma20, ma50, ma200 float64) analysis.TrendState {
	switch {
	case ma20 > ma50 && ma50 > ma200 && price > ma50:
		return analysis.TrendUp
	case ma20 < ma50 && ma50 < ma200 && price < ma50:
		return analysis.TrendDown
	default:
		return analysis.TrendSideways
	}
}
