package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	xhttp "hermes/pkg/http"
	xlogger "hermes/pkg/logger"
)

// Trading gaps (weekends, holidays) mean the requested date rarely has a bar.
// The lookback covers the longest BIST holiday stretch.
const lookbackDays = 14

// DailyClose is one end-of-day bar from the history endpoint.
type DailyClose struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Close float64 `json:"close"`
}

type historyResponse struct {
	Symbol  string       `json:"symbol"`
	Candles []DailyClose `json:"candles"`
}

// Config holds the market-data endpoint settings.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client fetches daily closes over HTTP and serves on-or-before lookups for
// outcome evaluation. Fetched series are cached per symbol and day window.
type Client struct {
	baseURL  string
	cacheTTL time.Duration
	client   *xhttp.Client
	cache    *seriesCache
	logger   *xlogger.Logger
}

// NewClient builds the price client. CacheTTL of zero keeps series forever;
// historical closes do not change, so long TTLs are safe.
func NewClient(cfg Config, logger *xlogger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		cacheTTL: cfg.CacheTTL,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		cache:    newSeriesCache(),
		logger:   logger,
	}
}

// ClosePrice returns the last close at or before the given date. A symbol or
// date the endpoint has no bar for reports (0, false, nil): not resolvable
// yet, not an error.
func (c *Client) ClosePrice(ctx context.Context, symbol string, onOrBefore time.Time) (float64, bool, error) {
	if symbol == "" {
		return 0, false, nil
	}
	series, err := c.history(ctx, symbol, onOrBefore)
	if err != nil {
		return 0, false, err
	}

	cutoff := onOrBefore.UTC().Format("2006-01-02")
	best := ""
	bestClose := 0.0
	for _, bar := range series {
		if bar.Date > cutoff || bar.Close <= 0 {
			continue
		}
		if bar.Date > best {
			best = bar.Date
			bestClose = bar.Close
		}
	}
	if best == "" {
		return 0, false, nil
	}
	return bestClose, true, nil
}

func (c *Client) history(ctx context.Context, symbol string, onOrBefore time.Time) ([]DailyClose, error) {
	to := onOrBefore.UTC().Format("2006-01-02")
	from := onOrBefore.UTC().AddDate(0, 0, -lookbackDays).Format("2006-01-02")
	key := symbol + "|" + from + "|" + to

	if series, ok := c.cache.Get(key); ok {
		return series, nil
	}

	var resp historyResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/api/v1/history/%s", c.baseURL, symbol),
		QueryParams: map[string][]string{
			"from":     {from},
			"to":       {to},
			"interval": {"1d"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}

	series := resp.Candles
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	c.cache.Set(key, series, c.cacheTTL)
	return series, nil
}
