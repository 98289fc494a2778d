// Package yahoo fetches daily OHLCV history from Yahoo Finance. It is the
// engine's only market data source: deep backfills go through per-symbol
// history requests, the daily incremental sync through one batched download.
package yahoo

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

const defaultMaxRetries = 3

// Bar is one auto-adjusted daily OHLCV bar.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Client wraps the Yahoo Finance API with retry and logging.
type Client struct {
	log        zerolog.Logger
	maxRetries int
}

func NewClient(log zerolog.Logger) *Client {
	return &Client{
		log:        log.With().Str("client", "yahoo").Logger(),
		maxRetries: defaultMaxRetries,
	}
}

// DailyHistory fetches auto-adjusted daily bars for one symbol over a Yahoo
// period string ("5d", "1mo", "1y", "10y", "max"). Transient failures are
// retried with exponential backoff.
func (c *Client) DailyHistory(symbol, period string) ([]Bar, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt-1)) * time.Second
			c.log.Warn().
				Err(lastErr).
				Str("symbol", symbol).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Msg("Retrying history fetch")
			time.Sleep(wait)
		}

		bars, err := c.fetchHistory(symbol, period)
		if err != nil {
			lastErr = err
			continue
		}

		return bars, nil
	}

	return nil, fmt.Errorf("failed to fetch history for %s after %d attempts: %w", symbol, c.maxRetries, lastErr)
}

func (c *Client) fetchHistory(symbol, period string) ([]Bar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	params := models.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: true,
	}

	raw, err := t.History(params)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Date:   b.Date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}

	return bars, nil
}

// BatchDailyHistory fetches daily bars for several symbols in one request.
// Symbols that fail are logged and omitted from the result rather than
// failing the batch.
func (c *Client) BatchDailyHistory(symbols []string, period string) (map[string][]Bar, error) {
	if len(symbols) == 0 {
		return map[string][]Bar{}, nil
	}

	params := models.DefaultDownloadParams()
	params.Symbols = symbols
	params.Period = period
	params.Interval = "1d"

	result, err := multi.Download(symbols, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to download batch history: %w", err)
	}

	out := make(map[string][]Bar, len(symbols))
	for _, symbol := range symbols {
		raw, ok := result.Data[symbol]
		if !ok || len(raw) == 0 {
			if symErr, hasErr := result.Errors[symbol]; hasErr {
				c.log.Warn().Err(symErr).Str("symbol", symbol).Msg("Batch history failed for symbol")
			} else {
				c.log.Warn().Str("symbol", symbol).Msg("Batch history returned no bars")
			}
			continue
		}

		bars := make([]Bar, 0, len(raw))
		for _, b := range raw {
			bars = append(bars, Bar{
				Date:   b.Date,
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: int64(b.Volume),
			})
		}
		out[symbol] = bars
	}

	return out, nil
}

// PeriodForDays maps a lookback in calendar days to the smallest Yahoo
// period string that covers it.
func PeriodForDays(days int) string {
	switch {
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	case days <= 730:
		return "2y"
	case days <= 1825:
		return "5y"
	case days <= 3650:
		return "10y"
	default:
		return "max"
	}
}

// PeriodForYears is PeriodForDays for whole-year backfills.
func PeriodForYears(years int) string {
	return PeriodForDays(years * 365)
}
