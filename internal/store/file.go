package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	apperrors "trading-assistant/internal/errors"
	"trading-assistant/internal/logging"
	"trading-assistant/internal/models"
)

// Format is a candle file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", apperrors.NewValidationError("path", path, "expected a .json or .csv file", apperrors.ErrInvalidCandles)
	}
}

// ReadCandles decodes candles from r. JSON input is an array of candle
// objects; CSV input has a time,open,high,low,close[,volume] header. Candles
// are returned sorted by time.
func ReadCandles(r io.Reader, format Format) ([]models.Candle, error) {
	var candles []models.Candle
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&candles); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidCandles, err)
		}
	case FormatCSV:
		if err := gocsv.Unmarshal(r, &candles); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidCandles, err)
		}
	default:
		return nil, apperrors.NewValidationError("format", format, "unknown candle format", apperrors.ErrInvalidCandles)
	}
	return candles, nil
}

// WriteCandles encodes candles to w.
func WriteCandles(w io.Writer, format Format, candles []models.Candle) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(candles)
	case FormatCSV:
		return gocsv.Marshal(&candles, w)
	default:
		return apperrors.NewValidationError("format", format, "unknown candle format", apperrors.ErrInvalidCandles)
	}
}

// ReadCandlesFile reads a .json or .csv candle file.
func ReadCandlesFile(path string) ([]models.Candle, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewDataError("candles", filepath.Base(path), "file not found", apperrors.ErrDataNotFound)
		}
		return nil, fmt.Errorf("failed to open candle file: %w", err)
	}
	defer f.Close()

	candles, err := ReadCandles(f, format)
	if err != nil {
		return nil, apperrors.Wrapf(err, "read %s", path)
	}
	return candles, nil
}

// FileSource loads candles from a directory holding one file per symbol and
// timeframe, named SYMBOL_TIMEFRAME.csv or SYMBOL_TIMEFRAME.json. A file
// named SYMBOL.csv or SYMBOL.json is used when no timeframe file exists.
type FileSource struct {
	Dir string
}

// NewFileSource creates a file source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

// LoadCandles implements CandleSource. The logger attached to ctx, if any,
// records which file was read.
func (s *FileSource) LoadCandles(ctx context.Context, symbol, timeframe string) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := logging.WithSymbol(logging.FromContext(ctx), symbol)

	candidates := s.candidates(symbol, timeframe)
	for _, name := range candidates {
		path := filepath.Join(s.Dir, name)
		if _, err := os.Stat(path); err == nil {
			candles, err := ReadCandlesFile(path)
			if err != nil {
				return nil, err
			}
			logger.Debug().Str("path", path).Int("count", len(candles)).Msg("Candles loaded from file")
			return candles, nil
		}
	}
	logger.Debug().Strs("tried", candidates).Str("dir", s.Dir).Msg("No candle file found")
	return nil, apperrors.NewDataError("candles", symbol, "no candle file in "+s.Dir, apperrors.ErrDataNotFound)
}

func (s *FileSource) candidates(symbol, timeframe string) []string {
	var names []string
	if timeframe != "" {
		names = append(names, symbol+"_"+timeframe+".csv", symbol+"_"+timeframe+".json")
	}
	return append(names, symbol+".csv", symbol+".json")
}
