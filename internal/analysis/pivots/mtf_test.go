package pivots

import (
	"math"
	"testing"
)

func TestResample(t *testing.T) {
	candles := candlesFromHighs([]float64{1, 4, 2, 3, 5})

	out, hi, lo := Resample(candles, 2)
	if len(out) != 3 {
		t.Fatalf("Expected 3 buckets (last partial), got %d", len(out))
	}
	if out[0].High != 4 || hi[0] != 1 {
		t.Errorf("Expected first bucket high 4 at base index 1, got %f at %d", out[0].High, hi[0])
	}
	if out[0].Low != 0.5 || lo[0] != 0 {
		t.Errorf("Expected first bucket low 0.5 at base index 0, got %f at %d", out[0].Low, lo[0])
	}
	if out[2].High != 5 || hi[2] != 4 || out[2].Time != candles[4].Time {
		t.Errorf("Unexpected partial bucket: %+v (high idx %d)", out[2], hi[2])
	}

	if o, _, _ := Resample(candles, 0); o != nil {
		t.Error("Expected nil for invalid factor")
	}
}

func TestDetectMultiTimeframe(t *testing.T) {
	steps := make([]float64, 240)
	for i := range steps {
		steps[i] = 1.5 * math.Sin(float64(i)/6)
	}
	candles := candlesFromSteps(steps)

	opts := DefaultOptions()
	opts.TrendDirection = TrendNone
	result, err := DetectMultiTimeframe(candles, []int{1, 2, 4}, opts)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Timeframes) != 3 {
		t.Fatalf("Expected 3 timeframes, got %d", len(result.Timeframes))
	}
	if result.Timeframes[1].CandleCount != 120 {
		t.Errorf("Expected 120 resampled candles at x2, got %d", result.Timeframes[1].CandleCount)
	}

	for _, tf := range result.Timeframes {
		for _, p := range tf.Highs {
			if p.Index < 0 || p.Index >= len(candles) || candles[p.Index].High != p.Price {
				t.Errorf("Timeframe x%d high does not map to base candle: %+v", tf.BarsPerCandle, p)
			}
		}
		for _, p := range tf.Lows {
			if p.Index < 0 || p.Index >= len(candles) || candles[p.Index].Low != p.Price {
				t.Errorf("Timeframe x%d low does not map to base candle: %+v", tf.BarsPerCandle, p)
			}
		}
	}

	if len(result.ConfluenceHighs) == 0 {
		t.Error("Expected swing highs of a slow wave to be confirmed on several timeframes")
	}
	for i := 1; i < len(result.ConfluenceHighs); i++ {
		if result.ConfluenceHighs[i].Index <= result.ConfluenceHighs[i-1].Index {
			t.Error("Expected confluence pivots ordered by index")
		}
	}
}

func TestDetectMultiTimeframe_InvalidFactor(t *testing.T) {
	candles := candlesFromHighs([]float64{1, 2, 3})
	if _, err := DetectMultiTimeframe(candles, []int{0}, DefaultOptions()); err == nil {
		t.Error("Expected an error for factor 0")
	}
}
