package indicators

import (
	"trading-assistant/internal/analysis"
)

// DefaultProfileBins is the default number of price buckets of a volume profile.
const DefaultProfileBins = 10

// VolumeProfile builds a volume-at-price histogram from parallel price and
// volume series. It returns nil when the series lengths differ, when there is
// no volume at all, or when bins is not positive.
func VolumeProfile(prices, volumes []float64, bins int) *analysis.VolumeProfile {
	if len(prices) == 0 || len(prices) != len(volumes) || bins <= 0 {
		return nil
	}
	if sum(volumes) <= 0 {
		return nil
	}

	lo, hi := Lowest(prices), Highest(prices)
	if hi == lo {
		// Flat history collapses into a single bucket.
		bins = 1
	}
	width := (hi - lo) / float64(bins)

	profile := &analysis.VolumeProfile{Bins: make([]analysis.VolumeBin, bins)}
	for i := range profile.Bins {
		profile.Bins[i].Low = lo + width*float64(i)
		profile.Bins[i].High = lo + width*float64(i+1)
	}
	profile.Bins[bins-1].High = hi

	for i, p := range prices {
		idx := 0
		if width > 0 {
			idx = int((p - lo) / width)
		}
		if idx >= bins {
			idx = bins - 1
		}
		profile.Bins[idx].Volume += volumes[i]
	}

	best := 0
	for i, b := range profile.Bins {
		if b.Volume > profile.Bins[best].Volume {
			best = i
		}
	}
	profile.PointOfControl = (profile.Bins[best].Low + profile.Bins[best].High) / 2

	return profile
}

// AverageVolume returns the mean volume of the bars in [start, end). Out of
// range bounds are clipped; an empty window yields zero.
func AverageVolume(volumes []float64, start, end int) float64 {
	if start < 0 {
		start = 0
	}
	if end > len(volumes) {
		end = len(volumes)
	}
	if end <= start {
		return 0
	}
	return Mean(volumes[start:end])
}
