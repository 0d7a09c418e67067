package levels

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"trading-assistant/internal/analysis"
)

func high(idx int, price float64) analysis.PivotPoint {
	return analysis.PivotPoint{Index: idx, Price: price, Kind: analysis.PivotHigh}
}

func low(idx int, price float64) analysis.PivotPoint {
	return analysis.PivotPoint{Index: idx, Price: price, Kind: analysis.PivotLow}
}

func TestAggregateLevels_Clusters(t *testing.T) {
	pivots := []analysis.PivotPoint{
		high(10, 110), high(40, 110.5), high(70, 110.2),
		high(55, 120),
		low(20, 100), low(50, 100.4),
		low(80, 95),
	}

	lv := AggregateLevels(pivots, 0.01)

	if len(lv.Resistance) != 2 {
		t.Fatalf("Expected 2 resistance levels, got %+v", lv.Resistance)
	}
	r := Rank(lv.Resistance)[0]
	if r.TouchCount != 3 || math.Abs(r.Price-110.2333) > 0.001 {
		t.Errorf("Expected 3-touch level near 110.23, got %+v", r)
	}
	if r.FirstTouchedIndex != 10 || r.LastTouchedIndex != 70 {
		t.Errorf("Expected touches from 10 to 70, got %d..%d", r.FirstTouchedIndex, r.LastTouchedIndex)
	}
	if r.Type != analysis.LevelResistance {
		t.Errorf("Expected resistance, got %s", r.Type)
	}

	if len(lv.Support) != 2 {
		t.Fatalf("Expected 2 support levels, got %+v", lv.Support)
	}
	single := Rank(lv.Support)[1]
	if single.TouchCount != 1 || single.Price != 95 {
		t.Errorf("Expected the single-touch level to be kept and ranked last, got %+v", single)
	}
}

func TestAggregateLevels_Empty(t *testing.T) {
	lv := AggregateLevels(nil, 0.01)
	if lv.Support == nil || lv.Resistance == nil {
		t.Error("Expected empty, non-nil level slices")
	}
	if len(lv.Support) != 0 || len(lv.Resistance) != 0 {
		t.Errorf("Expected no levels, got %+v", lv)
	}
}

func TestAggregateLevels_SplitsOnClusterMean(t *testing.T) {
	// 100 and 101 average 100.5; 101.9 is beyond 1% of that mean and opens a
	// new level that 102.2 then joins.
	pivots := []analysis.PivotPoint{low(1, 100), low(2, 100.9), low(3, 101.9), low(4, 102.2)}

	lv := AggregateLevels(pivots, 0.01)
	if len(lv.Support) != 2 {
		t.Fatalf("Expected two levels, got %+v", lv.Support)
	}
	if lv.Support[0].TouchCount != 2 || lv.Support[1].TouchCount != 2 {
		t.Errorf("Expected 2 touches each, got %+v", lv.Support)
	}
	if lv.Support[1].Price <= 1.01*lv.Support[0].Price {
		t.Errorf("Expected levels further apart than tolerance, got %+v", lv.Support)
	}
}

func TestAggregatePivots(t *testing.T) {
	lv := AggregatePivots([]analysis.PivotPoint{high(5, 50)}, []analysis.PivotPoint{low(3, 40)}, 0.01)
	if len(lv.Resistance) != 1 || len(lv.Support) != 1 {
		t.Errorf("Expected one level of each kind, got %+v", lv)
	}
}

func TestRank(t *testing.T) {
	in := []analysis.PriceLevel{
		{Price: 10, TouchCount: 1, LastTouchedIndex: 90},
		{Price: 20, TouchCount: 3, LastTouchedIndex: 10},
		{Price: 30, TouchCount: 3, LastTouchedIndex: 50},
		{Price: 5, TouchCount: 1, LastTouchedIndex: 90},
	}

	got := Rank(in)
	want := []float64{30, 20, 5, 10}
	for i, w := range want {
		if got[i].Price != w {
			t.Errorf("Rank[%d]: expected %v, got %v", i, w, got[i].Price)
		}
	}
	if in[0].Price != 10 {
		t.Error("Expected Rank not to reorder its input")
	}

	if top := Top(in, 2); len(top) != 2 || top[0].Price != 30 {
		t.Errorf("Unexpected Top(2): %+v", top)
	}
	if top := Top(in, 0); len(top) != 4 {
		t.Errorf("Expected Top(0) to return all levels, got %d", len(top))
	}
}

func TestNearest(t *testing.T) {
	lv := analysis.Levels{
		Support:    []analysis.PriceLevel{{Price: 90}, {Price: 97}, {Price: 103}},
		Resistance: []analysis.PriceLevel{{Price: 110}, {Price: 105}},
	}

	s, r := Nearest(lv, 100)
	if s == nil || s.Price != 97 {
		t.Errorf("Expected support 97, got %+v", s)
	}
	if r == nil || r.Price != 103 {
		t.Errorf("Expected broken support 103 as nearest resistance, got %+v", r)
	}

	s, r = Nearest(lv, 200)
	if s == nil || s.Price != 110 || r != nil {
		t.Errorf("Expected support 110 and no resistance, got %+v / %+v", s, r)
	}

	if _, ok := NearestBelow(nil, 100); ok {
		t.Error("Expected no level below in an empty set")
	}
}

// Property: after aggregation no two levels of the same kind lie within
// tolerance of each other, and every pivot is counted exactly once.
func TestProperty_LevelsDoNotOverlap(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("levels are disjoint and conserve touches", prop.ForAll(
		func(prices []float64, tol float64) bool {
			pivots := make([]analysis.PivotPoint, len(prices))
			for i, p := range prices {
				pivots[i] = low(i, p)
			}
			lv := AggregateLevels(pivots, tol)

			touches := 0
			for i, l := range lv.Support {
				touches += l.TouchCount
				if i > 0 && l.Price <= (1+tol)*lv.Support[i-1].Price {
					return false
				}
			}
			return touches == len(prices)
		},
		gen.SliceOf(gen.Float64Range(50, 150)),
		gen.Float64Range(0, 0.05),
	))

	properties.TestingRun(t)
}
