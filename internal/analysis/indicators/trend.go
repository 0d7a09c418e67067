package indicators

import (
	"github.com/markcheno/go-talib"
)

// SMA returns the simple moving average series of values. Entries before
// period-1 are zero.
func SMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(values) < period {
		return nil, ErrInsufficientData
	}
	if period == 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out, nil
	}
	return talib.Sma(values, period), nil
}

// MovingAverage returns the latest simple moving average over period bars.
// With fewer bars than period it averages all available bars, so a short
// history never fails. Empty input yields zero.
func MovingAverage(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	if len(values) < period {
		return Mean(values)
	}
	series, err := SMA(values, period)
	if err != nil {
		return Mean(Tail(values, period))
	}
	return series[len(series)-1]
}

// Slope returns the least-squares regression slope of values against their
// index, in price units per bar. Fewer than two values yield zero.
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	series := talib.LinearRegSlope(values, n)
	return series[n-1]
}

// NormalizedDrift returns the regression slope projected over the whole
// series and expressed as a fraction of the mean value. A value of 0.05 means
// the fitted line rises 5% of the mean from the first bar to the last.
func NormalizedDrift(values []float64) float64 {
	m := Mean(values)
	if m == 0 {
		return 0
	}
	return Slope(values) * float64(len(values)-1) / m
}
