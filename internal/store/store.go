// Package store provides candle sources and persistence for detection runs.
package store

import (
	"context"
	"time"

	"trading-assistant/internal/analysis"
	"trading-assistant/internal/models"
)

// CandleSource supplies candles for a symbol and timeframe.
type CandleSource interface {
	LoadCandles(ctx context.Context, symbol, timeframe string) ([]models.Candle, error)
}

// DataStore defines the interface for candle and detection persistence.
type DataStore interface {
	CandleSource

	// Candles
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error)
	ListSymbols(ctx context.Context) ([]string, error)

	// Detections
	SaveDetection(ctx context.Context, record *DetectionRecord) error
	GetDetections(ctx context.Context, filter DetectionFilter) ([]DetectionRecord, error)

	// Lifecycle
	Close() error
}

// DetectionRecord is one persisted engine result.
// RunID groups the records written by one invocation.
type DetectionRecord struct {
	ID        int64
	RunID     string
	Symbol    string
	Timeframe string
	CreatedAt time.Time
	Result    analysis.DetectionResult
}

// DetectionFilter represents filters for querying detection records.
type DetectionFilter struct {
	RunID     string
	Symbol    string
	Timeframe string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}
