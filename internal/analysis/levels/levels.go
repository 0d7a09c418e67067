// Package levels clusters pivots into support and resistance levels.
package levels

import (
	"math"
	"sort"

	"trading-assistant/internal/analysis"
)

// DefaultTolerance is the relative width of one level cluster (1%).
const DefaultTolerance = 0.01

type cluster struct {
	sum      float64
	touches  int
	firstIdx int
	lastIdx  int
}

func (c *cluster) mean() float64 {
	return c.sum / float64(c.touches)
}

func (c *cluster) add(p analysis.PivotPoint) {
	c.sum += p.Price
	c.touches++
	if p.Index < c.firstIdx {
		c.firstIdx = p.Index
	}
	if p.Index > c.lastIdx {
		c.lastIdx = p.Index
	}
}

// AggregateLevels clusters pivot highs into resistance and pivot lows into
// support. Pivots are walked in price order and a new cluster starts whenever
// the next price exceeds (1+tolerance) times the current cluster mean. Every
// member of a later cluster is above that bound, so no two levels of one kind
// overlap within tolerance.
//
// Single-touch clusters are kept. The returned slices are in ascending price
// order, which callers must not rely on; use Rank or Nearest instead.
func AggregateLevels(pivots []analysis.PivotPoint, tolerance float64) analysis.Levels {
	if tolerance < 0 || math.IsNaN(tolerance) {
		tolerance = 0
	}

	var highs, lows []analysis.PivotPoint
	for _, p := range pivots {
		if p.Kind == analysis.PivotHigh {
			highs = append(highs, p)
		} else {
			lows = append(lows, p)
		}
	}

	return analysis.Levels{
		Support:    toLevels(clusterPivots(lows, tolerance), analysis.LevelSupport),
		Resistance: toLevels(clusterPivots(highs, tolerance), analysis.LevelResistance),
	}
}

// AggregatePivots is AggregateLevels over separate high and low slices.
func AggregatePivots(highs, lows []analysis.PivotPoint, tolerance float64) analysis.Levels {
	all := make([]analysis.PivotPoint, 0, len(highs)+len(lows))
	all = append(all, highs...)
	all = append(all, lows...)
	return AggregateLevels(all, tolerance)
}

func clusterPivots(pivots []analysis.PivotPoint, tolerance float64) []cluster {
	if len(pivots) == 0 {
		return nil
	}

	sorted := make([]analysis.PivotPoint, len(pivots))
	copy(sorted, pivots)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].Index < sorted[j].Index
	})

	var clusters []cluster
	current := cluster{firstIdx: sorted[0].Index, lastIdx: sorted[0].Index}
	current.add(sorted[0])
	for _, p := range sorted[1:] {
		if p.Price > (1+tolerance)*current.mean() {
			clusters = append(clusters, current)
			current = cluster{firstIdx: p.Index, lastIdx: p.Index}
		}
		current.add(p)
	}
	clusters = append(clusters, current)

	return clusters
}

func toLevels(clusters []cluster, kind analysis.LevelType) []analysis.PriceLevel {
	if len(clusters) == 0 {
		return []analysis.PriceLevel{}
	}
	out := make([]analysis.PriceLevel, len(clusters))
	for i, c := range clusters {
		out[i] = analysis.PriceLevel{
			Price:             c.mean(),
			Type:              kind,
			TouchCount:        c.touches,
			FirstTouchedIndex: c.firstIdx,
			LastTouchedIndex:  c.lastIdx,
		}
	}
	return out
}
