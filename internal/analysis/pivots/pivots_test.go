package pivots

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"trading-assistant/internal/analysis"
	apperrors "trading-assistant/internal/errors"
	"trading-assistant/internal/models"
)

// candlesFromSteps builds a valid random-walk candle series where each step
// is the percent change of the close.
func candlesFromSteps(steps []float64) []models.Candle {
	candles := make([]models.Candle, len(steps))
	price := 100.0
	for i, s := range steps {
		open := price
		price = math.Max(1, price*(1+s/100))
		wick := (math.Abs(s)*0.3 + 0.1) / 100
		candles[i] = models.Candle{
			Time:   1700000000 + int64(i)*60,
			Open:   open,
			High:   math.Max(open, price) * (1 + wick),
			Low:    math.Min(open, price) * (1 - wick),
			Close:  price,
			Volume: 1000,
		}
	}
	return candles
}

func candlesFromHighs(highs []float64) []models.Candle {
	candles := make([]models.Candle, len(highs))
	for i, h := range highs {
		candles[i] = models.Candle{
			Time:  int64(i + 1),
			Open:  h - 0.25,
			High:  h,
			Low:   h - 0.5,
			Close: h - 0.25,
		}
	}
	return candles
}

func stepsGen() gopter.Gen {
	return gen.SliceOfN(200, gen.Float64Range(-2, 2))
}

func TestFindPivots_SimplePeaks(t *testing.T) {
	highs := []float64{1, 2, 5, 2, 1, 2, 6, 2, 1}
	candles := candlesFromHighs(highs)

	ph, pl, err := FindPivotsSingleTF(candles, 2, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ph) != 2 || ph[0].Index != 2 || ph[1].Index != 6 {
		t.Fatalf("Expected pivot highs at 2 and 6, got %+v", ph)
	}
	if ph[1].Price != 6 || ph[1].Kind != analysis.PivotHigh || ph[1].Time != 7 {
		t.Errorf("Unexpected pivot contents: %+v", ph[1])
	}
	if len(pl) != 1 || pl[0].Index != 4 || pl[0].Price != 0.5 {
		t.Errorf("Expected one pivot low at 4 (0.5), got %+v", pl)
	}
}

func TestFindPivots_TiePrefersEarliest(t *testing.T) {
	candles := candlesFromHighs([]float64{1, 1, 3, 3, 1, 1, 1})

	ph, _, err := FindPivotsSingleTF(candles, 2, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ph) != 1 || ph[0].Index != 2 {
		t.Errorf("Expected a single pivot high at the first of two equal bars (2), got %+v", ph)
	}
}

func TestFindPivots_DegenerateInput(t *testing.T) {
	candles := candlesFromHighs([]float64{1, 3, 1, 2})

	ph, pl, err := FindPivotsSingleTF(candles, 2, 2)
	if err != nil {
		t.Fatalf("Expected no error for short input, got %v", err)
	}
	if len(ph) != 0 || len(pl) != 0 {
		t.Errorf("Expected no pivots, got %d highs and %d lows", len(ph), len(pl))
	}

	if _, _, err := FindPivots(nil, nil, nil, 2, 2); err != nil {
		t.Errorf("Expected no error for empty input, got %v", err)
	}
}

func TestFindPivots_MalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		highs []float64
		lows  []float64
		times []int64
		want  error
	}{
		{"mismatched lengths", []float64{2, 3}, []float64{1}, []int64{1, 2}, apperrors.ErrLengthMismatch},
		{"non-monotonic time", []float64{2, 3}, []float64{1, 2}, []int64{2, 2}, apperrors.ErrNonMonotonicTime},
		{"NaN price", []float64{2, math.NaN()}, []float64{1, 2}, []int64{1, 2}, apperrors.ErrInvalidPrice},
		{"negative price", []float64{2, 3}, []float64{-1, 2}, []int64{1, 2}, apperrors.ErrInvalidPrice},
		{"low above high", []float64{2, 3}, []float64{2.5, 2}, []int64{1, 2}, apperrors.ErrInvalidOHLC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FindPivots(tt.highs, tt.lows, tt.times, 1, 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			var ve *apperrors.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("Expected a ValidationError, got %T", err)
			}
		})
	}
}

func TestFindPivots_InvalidWindow(t *testing.T) {
	_, _, err := FindPivots([]float64{1}, []float64{1}, []int64{1}, 0, 2)
	if !errors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("Expected ErrConfigInvalid, got %v", err)
	}
}

func TestFilterSpacing_KeepsMoreExtreme(t *testing.T) {
	in := []analysis.PivotPoint{
		{Index: 10, Price: 105, Kind: analysis.PivotHigh},
		{Index: 12, Price: 108, Kind: analysis.PivotHigh},
		{Index: 13, Price: 104, Kind: analysis.PivotHigh},
		{Index: 30, Price: 101, Kind: analysis.PivotHigh},
	}

	got := filterSpacing(in, 3)
	if len(got) != 2 {
		t.Fatalf("Expected 2 pivots, got %+v", got)
	}
	if got[0].Index != 12 || got[1].Index != 30 {
		t.Errorf("Expected pivots at 12 and 30, got %+v", got)
	}

	lows := []analysis.PivotPoint{
		{Index: 5, Price: 90, Kind: analysis.PivotLow},
		{Index: 6, Price: 90, Kind: analysis.PivotLow},
	}
	got = filterSpacing(lows, 3)
	if len(got) != 1 || got[0].Index != 5 {
		t.Errorf("Expected the earlier of two equal lows, got %+v", got)
	}
}

func TestFilterPercentMove(t *testing.T) {
	in := []analysis.PivotPoint{
		{Index: 5, Price: 100, Kind: analysis.PivotHigh},
		{Index: 15, Price: 100.5, Kind: analysis.PivotHigh},
		{Index: 25, Price: 103, Kind: analysis.PivotHigh},
	}

	got := filterPercentMove(in, 0.01)
	if len(got) != 2 || got[0].Index != 5 || got[1].Index != 25 {
		t.Errorf("Expected pivots at 5 and 25, got %+v", got)
	}
	if len(filterPercentMove(in, 0)) != 3 {
		t.Error("Expected a zero threshold to keep every pivot")
	}
}

func TestFilterStructure(t *testing.T) {
	in := []analysis.PivotPoint{
		{Index: 5, Price: 100, Kind: analysis.PivotLow},
		{Index: 15, Price: 98, Kind: analysis.PivotLow},
		{Index: 25, Price: 103, Kind: analysis.PivotLow},
	}

	up := filterStructure(in, true)
	if len(up) != 2 || up[1].Index != 25 {
		t.Errorf("Expected higher lows 5 and 25 in an uptrend, got %+v", up)
	}
	down := filterStructure(in, false)
	if len(down) != 2 || down[1].Index != 15 {
		t.Errorf("Expected lower lows 5 and 15 in a downtrend, got %+v", down)
	}
}

func TestResolveTrend(t *testing.T) {
	up := make([]float64, 100)
	for i := range up {
		up[i] = 0.5
	}
	candles := candlesFromSteps(up)

	opts := DefaultOptions()
	if got := resolveTrend(candles, opts); got != TrendUp {
		t.Errorf("Expected uptrend, got %s", got)
	}
	opts.TrendDirection = TrendNone
	if got := resolveTrend(candles, opts); got != TrendNone {
		t.Errorf("Expected filter disabled, got %s", got)
	}
	opts.TrendDirection = TrendDown
	if got := resolveTrend(candles, opts); got != TrendDown {
		t.Errorf("Expected forced downtrend, got %s", got)
	}
}

func TestOptions_Validate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Errorf("Expected default options to be valid, got %v", err)
	}

	bad := DefaultOptions()
	bad.TrendDirection = "sideways"
	if err := bad.Validate(); !errors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("Expected ErrConfigInvalid for unknown trend mode, got %v", err)
	}

	bad = DefaultOptions()
	bad.MinPercentMove = -1
	if err := bad.Validate(); !errors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("Expected ErrConfigInvalid for negative move, got %v", err)
	}
}

func TestDetectPivotsWithFilters_ReducesNoise(t *testing.T) {
	steps := make([]float64, 200)
	for i := range steps {
		// Fast zig-zag riding on a slow wave.
		steps[i] = 0.6*math.Sin(float64(i)*1.7) + 1.2*math.Sin(float64(i)/9)
	}
	candles := candlesFromSteps(steps)

	rawH, rawL, err := FindPivotsSingleTF(candles, 2, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	opts := DefaultOptions()
	opts.TrendDirection = TrendNone
	fH, fL, err := DetectPivotsWithFilters(candles, opts)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(fH)+len(fL) >= len(rawH)+len(rawL) {
		t.Errorf("Expected filters to drop pivots, raw=%d filtered=%d", len(rawH)+len(rawL), len(fH)+len(fL))
	}
}

// Property: no pivot is reported within left bars of the start or right bars
// of the end of the series.
func TestProperty_PivotBoundaryExclusion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("pivots respect window boundaries", prop.ForAll(
		func(steps []float64, n, left, right int) bool {
			candles := candlesFromSteps(steps[:n%(len(steps)+1)])
			highs, lows, err := FindPivotsSingleTF(candles, left, right)
			if err != nil {
				return false
			}
			for _, p := range append(highs, lows...) {
				if p.Index < left || p.Index >= len(candles)-right {
					return false
				}
			}
			return true
		},
		stepsGen(),
		gen.IntRange(0, 200),
		gen.IntRange(1, 6),
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}

// Property: filtering never adds pivots.
func TestProperty_FilteredPivotsNeverExceedRaw(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	modes := []TrendMode{TrendAuto, TrendUp, TrendDown, TrendNone}

	properties.Property("filtered count <= raw count", prop.ForAll(
		func(steps []float64, spacing int, move float64, mode int) bool {
			candles := candlesFromSteps(steps)
			opts := DefaultOptions()
			opts.MinSpacingBars = spacing
			opts.MinPercentMove = move
			opts.TrendDirection = modes[mode]

			rawH, rawL, err := FindPivotsSingleTF(candles, opts.LeftBars, opts.RightBars)
			if err != nil {
				return false
			}
			fH, fL, err := DetectPivotsWithFilters(candles, opts)
			if err != nil {
				return false
			}
			return len(fH) <= len(rawH) && len(fL) <= len(rawL)
		},
		stepsGen(),
		gen.IntRange(0, 10),
		gen.Float64Range(0, 0.05),
		gen.IntRange(0, len(modes)-1),
	))

	properties.TestingRun(t)
}

// Property: detection is a pure function of its input.
func TestProperty_PivotDetectionDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("same input, same pivots", prop.ForAll(
		func(steps []float64) bool {
			candles := candlesFromSteps(steps)
			h1, l1, err1 := DetectPivotsWithFilters(candles, DefaultOptions())
			h2, l2, err2 := DetectPivotsWithFilters(candles, DefaultOptions())
			return err1 == nil && err2 == nil && reflect.DeepEqual(h1, h2) && reflect.DeepEqual(l1, l2)
		},
		stepsGen(),
	))

	properties.TestingRun(t)
}
