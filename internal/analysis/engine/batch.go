package engine

import (
	"context"
	"sort"
	"sync"

	"trading-assistant/internal/analysis"
	"trading-assistant/internal/logging"
	"trading-assistant/internal/models"
)

// BatchResult is the outcome of one symbol in a batch.
type BatchResult struct {
	Symbol string
	Result *analysis.DetectionResult
	Err    error
}

// DetectBatch runs DetectAll for every symbol on a pool of cfg.Workers
// goroutines. Each symbol gets its own result or error; symbols not started
// before ctx is done report ctx.Err(). A logger attached to ctx replaces the
// engine logger for this batch.
func (e *Engine) DetectBatch(ctx context.Context, series map[string][]models.Candle) map[string]BatchResult {
	logger := logging.FromContextOr(ctx, e.logger)

	symbols := make([]string, 0, len(series))
	for s := range series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	results := make(map[string]BatchResult, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup

	work := make(chan string, len(symbols))

	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range work {
				r := BatchResult{Symbol: symbol}
				select {
				case <-ctx.Done():
					r.Err = ctx.Err()
				default:
					r.Result, r.Err = e.DetectAll(series[symbol])
					log := logging.WithSymbol(logger, symbol)
					if r.Err != nil {
						log.Warn().Err(r.Err).Msg("Detection failed")
					} else {
						log.Debug().Int("patterns", len(r.Result.Detected)).Msg("Detection finished")
					}
				}
				mu.Lock()
				results[symbol] = r
				mu.Unlock()
			}
		}()
	}

	for _, s := range symbols {
		work <- s
	}
	close(work)

	wg.Wait()
	return results
}
