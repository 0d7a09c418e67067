package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"trading-assistant/internal/analysis"
	apperrors "trading-assistant/internal/errors"
	"trading-assistant/internal/logging"
)

const sampleCSV = `time,open,high,low,close,volume
1704117600,100,102,99,101,1200
1704204000,101,103,100,102,1500
`

const unsortedCSV = `time,open,high,low,close,volume
1704204000,101,103,100,102,1500
1704117600,100,102,99,101,1200
`

const sampleJSON = `[
  {"time": 1704117600, "open": 100, "high": 102, "low": 99, "close": 101, "volume": 1200},
  {"time": 1704204000, "open": 101, "high": 103, "low": 100, "close": 102}
]`

func TestReadCandles_CSV(t *testing.T) {
	candles, err := ReadCandles(strings.NewReader(sampleCSV), FormatCSV)
	if err != nil {
		t.Fatalf("ReadCandles failed: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(candles))
	}
	if candles[0].Time != 1704117600 || candles[0].Volume != 1200 {
		t.Errorf("Expected first row first, got %+v", candles[0])
	}
	if candles[1].Close != 102 {
		t.Errorf("Expected close 102, got %v", candles[1].Close)
	}
}

func TestReadCandles_KeepsFileOrder(t *testing.T) {
	candles, err := ReadCandles(strings.NewReader(unsortedCSV), FormatCSV)
	if err != nil {
		t.Fatalf("ReadCandles failed: %v", err)
	}
	if candles[0].Time != 1704204000 {
		t.Errorf("Expected rows in file order, got first time %d", candles[0].Time)
	}
	if err := analysis.ValidateCandles(candles); !apperrors.Is(err, apperrors.ErrNonMonotonicTime) {
		t.Errorf("Expected ErrNonMonotonicTime for an unsorted file, got %v", err)
	}
}

func TestReadCandles_JSON(t *testing.T) {
	candles, err := ReadCandles(strings.NewReader(sampleJSON), FormatJSON)
	if err != nil {
		t.Fatalf("ReadCandles failed: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(candles))
	}
	if candles[1].Volume != 0 {
		t.Errorf("Expected missing volume to read as 0, got %d", candles[1].Volume)
	}
}

func TestReadCandles_Invalid(t *testing.T) {
	if _, err := ReadCandles(strings.NewReader("{not json"), FormatJSON); !apperrors.Is(err, apperrors.ErrInvalidCandles) {
		t.Errorf("Expected ErrInvalidCandles, got %v", err)
	}
	if _, err := ReadCandles(strings.NewReader(""), "xml"); !apperrors.Is(err, apperrors.ErrInvalidCandles) {
		t.Errorf("Expected ErrInvalidCandles for unknown format, got %v", err)
	}
	if _, err := FormatFromPath("prices.txt"); err == nil {
		t.Errorf("Expected error for unknown extension")
	}
}

func TestWriteCandles_RoundTrip(t *testing.T) {
	candles := generateTestCandles(5, 100, 500)
	for _, format := range []Format{FormatCSV, FormatJSON} {
		var buf bytes.Buffer
		if err := WriteCandles(&buf, format, candles); err != nil {
			t.Fatalf("WriteCandles(%s) failed: %v", format, err)
		}
		got, err := ReadCandles(&buf, format)
		if err != nil {
			t.Fatalf("ReadCandles(%s) failed: %v", format, err)
		}
		if len(got) != len(candles) {
			t.Fatalf("%s: expected %d candles, got %d", format, len(candles), len(got))
		}
		for i := range candles {
			if !candlesEqual(candles[i], got[i]) {
				t.Errorf("%s: candle %d mismatch: %+v vs %+v", format, i, candles[i], got[i])
			}
		}
	}
}

func TestFileSource_LoadCandles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AAPL_1d.csv"), []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "TSLA.json"), []byte(sampleJSON), 0644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(dir)
	ctx := context.Background()

	got, err := src.LoadCandles(ctx, "AAPL", "1d")
	if err != nil || len(got) != 2 {
		t.Errorf("Expected 2 AAPL candles, got %d (err %v)", len(got), err)
	}

	got, err = src.LoadCandles(ctx, "TSLA", "1h")
	if err != nil || len(got) != 2 {
		t.Errorf("Expected fallback to TSLA.json, got %d (err %v)", len(got), err)
	}

	if _, err := src.LoadCandles(ctx, "MSFT", "1d"); !apperrors.Is(err, apperrors.ErrDataNotFound) {
		t.Errorf("Expected ErrDataNotFound, got %v", err)
	}
}

func TestFileSource_LogsToContextLogger(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AAPL_1d.csv"), []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), zerolog.New(&buf).Level(zerolog.DebugLevel))
	if _, err := NewFileSource(dir).LoadCandles(ctx, "AAPL", "1d"); err != nil {
		t.Fatalf("LoadCandles failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "AAPL_1d.csv") || !strings.Contains(out, `"symbol":"AAPL"`) {
		t.Errorf("Expected load logged with path and symbol, got %q", out)
	}
}

func TestReadCandlesFile_Missing(t *testing.T) {
	_, err := ReadCandlesFile(filepath.Join(t.TempDir(), "nope.csv"))
	if !apperrors.Is(err, apperrors.ErrDataNotFound) {
		t.Errorf("Expected ErrDataNotFound, got %v", err)
	}
}
