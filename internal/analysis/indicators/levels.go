package indicators

import (
	"strconv"
)

// FibonacciRatios are the standard retracement ratios.
var FibonacciRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

// FibonacciLevels represents Fibonacci retracement levels of one swing.
type FibonacciLevels struct {
	SwingHigh float64
	SwingLow  float64
	Level236  float64 // 23.6%
	Level382  float64 // 38.2%
	Level500  float64 // 50%
	Level618  float64 // 61.8%
	Level786  float64 // 78.6%
}

// Retracement calculates retracement levels measured down from swingHigh
// towards swingLow, so deeper ratios give lower prices.
func Retracement(swingHigh, swingLow float64) FibonacciLevels {
	diff := swingHigh - swingLow
	return FibonacciLevels{
		SwingHigh: swingHigh,
		SwingLow:  swingLow,
		Level236:  swingHigh - diff*0.236,
		Level382:  swingHigh - diff*0.382,
		Level500:  swingHigh - diff*0.500,
		Level618:  swingHigh - diff*0.618,
		Level786:  swingHigh - diff*0.786,
	}
}

// Map returns the levels keyed by their ratio formatted as in FibonacciRatios.
func (f FibonacciLevels) Map() map[string]float64 {
	values := []float64{f.Level236, f.Level382, f.Level500, f.Level618, f.Level786}
	out := make(map[string]float64, len(values))
	for i, r := range FibonacciRatios {
		out[strconv.FormatFloat(r, 'f', -1, 64)] = values[i]
	}
	return out
}
