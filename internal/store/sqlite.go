package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	apperrors "trading-assistant/internal/errors"
	"trading-assistant/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	logger  zerolog.Logger
	mu      sync.RWMutex
	imports map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:      db,
		logger:  logger.With().Str("component", "store").Str("path", dbPath).Logger(),
		imports: make(map[string]time.Time),
	}

	if err := store.initSchemaWithRetry(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err), "failed to initialize schema")
	}

	store.logger.Debug().Msg("store opened")
	return store, nil
}

// initSchemaWithRetry retries schema creation while another process holds
// the database lock. Other errors fail immediately.
func (s *SQLiteStore) initSchemaWithRetry() error {
	operation := func() error {
		err := s.initSchema()
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = 5 * time.Second

	return backoff.RetryNotify(operation, backoffStrategy, func(err error, wait time.Duration) {
		s.logger.Warn().Err(err).Dur("wait", wait).Msg("database busy, retrying")
	})
}

func isBusy(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked)
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for historical OHLCV data, time in epoch seconds
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		time INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, time)
	);

	-- Detection results, one row per engine run
	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		pattern_count INTEGER NOT NULL,
		explanation TEXT NOT NULL,
		result TEXT NOT NULL
	);

	-- Last import per symbol and timeframe
	CREATE TABLE IF NOT EXISTS import_status (
		key TEXT PRIMARY KEY,
		last_import INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_candles_time ON candles(time);
	CREATE INDEX IF NOT EXISTS idx_detections_symbol ON detections(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_detections_created ON detections(created_at);
	CREATE INDEX IF NOT EXISTS idx_detections_run ON detections(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveCandles upserts candles keyed by symbol, timeframe and time.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, timeframe, c.Time, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().Str("symbol", symbol).Str("timeframe", timeframe).Int("count", len(candles)).Msg("candles saved")
	return nil
}

// GetCandles retrieves candles whose time lies in [from, to], oldest first.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	return s.queryCandles(ctx, `
		SELECT time, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND time >= ? AND time <= ?
		ORDER BY time ASC
	`, symbol, timeframe, from.Unix(), to.Unix())
}

// LoadCandles returns every cached candle for the symbol and timeframe. An
// empty cache is reported as ErrDataNotFound.
func (s *SQLiteStore) LoadCandles(ctx context.Context, symbol, timeframe string) ([]models.Candle, error) {
	candles, err := s.queryCandles(ctx, `
		SELECT time, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY time ASC
	`, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, apperrors.NewDataError("candles", symbol, "no cached candles for timeframe "+timeframe, apperrors.ErrDataNotFound)
	}
	return candles, nil
}

func (s *SQLiteStore) queryCandles(ctx context.Context, query string, args ...interface{}) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// GetCandlesFreshness returns the time of the most recent candle, or the zero
// time when nothing is cached.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(time) FROM candles WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&latest)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return time.Unix(latest.Int64, 0).UTC(), nil
}

// ListSymbols returns the distinct cached symbols in alphabetical order.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM candles ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// SaveDetection stores an engine result and sets record.ID and CreatedAt.
func (s *SQLiteStore) SaveDetection(ctx context.Context, record *DetectionRecord) error {
	payload, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("failed to encode detection: %w", err)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO detections (run_id, symbol, timeframe, created_at, pattern_count, explanation, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.RunID, record.Symbol, record.Timeframe, record.CreatedAt.Unix(), len(record.Result.Detected),
		record.Result.AgentExplanation, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save detection: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read detection id: %w", err)
	}
	record.ID = id

	s.logger.Debug().Str("symbol", record.Symbol).Int64("id", id).Int("patterns", len(record.Result.Detected)).Msg("detection saved")
	return nil
}

// GetDetections retrieves detection records, newest first.
func (s *SQLiteStore) GetDetections(ctx context.Context, filter DetectionFilter) ([]DetectionRecord, error) {
	query := "SELECT id, run_id, symbol, timeframe, created_at, result FROM detections WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Timeframe != "" {
		query += " AND timeframe = ?"
		args = append(args, filter.Timeframe)
	}
	if !filter.StartDate.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.StartDate.Unix())
	}
	if !filter.EndDate.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, filter.EndDate.Unix())
	}

	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var records []DetectionRecord
	for rows.Next() {
		var r DetectionRecord
		var created int64
		var payload string
		if err := rows.Scan(&r.ID, &r.RunID, &r.Symbol, &r.Timeframe, &created, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &r.Result); err != nil {
			return nil, fmt.Errorf("failed to decode detection %d: %w", r.ID, err)
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		records = append(records, r)
	}

	return records, rows.Err()
}

func importKey(symbol, timeframe string) string {
	return symbol + "/" + timeframe
}

// GetLastImport returns when candles for the symbol and timeframe were last
// imported, or the zero time.
func (s *SQLiteStore) GetLastImport(symbol, timeframe string) time.Time {
	key := importKey(symbol, timeframe)

	s.mu.RLock()
	if t, ok := s.imports[key]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var last int64
	err := s.db.QueryRow(`SELECT last_import FROM import_status WHERE key = ?`, key).Scan(&last)
	if err != nil {
		return time.Time{}
	}
	t := time.Unix(last, 0).UTC()

	s.mu.Lock()
	s.imports[key] = t
	s.mu.Unlock()

	return t
}

// SetLastImport records an import time for the symbol and timeframe.
func (s *SQLiteStore) SetLastImport(symbol, timeframe string, t time.Time) error {
	key := importKey(symbol, timeframe)
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO import_status (key, last_import) VALUES (?, ?)
	`, key, t.Unix())
	if err != nil {
		return fmt.Errorf("failed to set last import: %w", err)
	}

	s.mu.Lock()
	s.imports[key] = t.Truncate(time.Second).UTC()
	s.mu.Unlock()

	return nil
}
