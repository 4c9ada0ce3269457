package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	xlogger "hermes/pkg/logger"
)

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func historyServer(t *testing.T, candles map[string][]DailyClose, hits *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt64(hits, 1)
		}
		symbol := r.URL.Path[len("/api/v1/history/"):]
		series, ok := candles[symbol]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(historyResponse{Symbol: symbol, Candles: series})
	}))
}

func TestClosePricePicksLastBarOnOrBefore(t *testing.T) {
	srv := historyServer(t, map[string][]DailyClose{
		"THYAO.IS": {
			{Date: "2026-08-14", Close: 310},
			{Date: "2026-08-17", Close: 320},
			{Date: "2026-08-18", Close: 330},
		},
	}, nil)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, testLogger(t))

	// Saturday: the Friday close should win.
	saturday := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	price, ok, err := c.ClosePrice(context.Background(), "THYAO.IS", saturday)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if price != 310 {
		t.Fatalf("price = %v, want 310", price)
	}
}

func TestClosePriceIgnoresFutureBars(t *testing.T) {
	srv := historyServer(t, map[string][]DailyClose{
		"SPY": {
			{Date: "2026-08-17", Close: 500},
			{Date: "2026-08-18", Close: 510},
		},
	}, nil)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, testLogger(t))
	price, ok, err := c.ClosePrice(context.Background(), "SPY", time.Date(2026, 8, 17, 23, 0, 0, 0, time.UTC))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if price != 500 {
		t.Fatalf("price = %v, want 500", price)
	}
}

func TestClosePriceNoDataIsNotError(t *testing.T) {
	srv := historyServer(t, map[string][]DailyClose{"AAPL": {}}, nil)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, testLogger(t))
	_, ok, err := c.ClosePrice(context.Background(), "AAPL", time.Now())
	if err != nil {
		t.Fatalf("empty history should not error: %v", err)
	}
	if ok {
		t.Fatalf("expected no price")
	}
}

func TestClosePriceTransportErrorSurfaces(t *testing.T) {
	srv := historyServer(t, map[string][]DailyClose{}, nil) // every symbol 404s
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, testLogger(t))
	if _, _, err := c.ClosePrice(context.Background(), "MISSING", time.Now()); err == nil {
		t.Fatalf("expected error from upstream 404")
	}
}

func TestHistoryCached(t *testing.T) {
	var hits int64
	srv := historyServer(t, map[string][]DailyClose{
		"QQQ": {{Date: "2026-08-18", Close: 400}},
	}, &hits)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, CacheTTL: time.Minute}, testLogger(t))
	at := time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, ok, err := c.ClosePrice(context.Background(), "QQQ", at); err != nil || !ok {
			t.Fatalf("lookup %d: ok=%v err=%v", i, ok, err)
		}
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Fatalf("upstream hit %d times, want 1", got)
	}
}

func TestZeroCloseIgnored(t *testing.T) {
	srv := historyServer(t, map[string][]DailyClose{
		"GARAN.IS": {{Date: "2026-08-18", Close: 0}},
	}, nil)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, testLogger(t))
	_, ok, err := c.ClosePrice(context.Background(), "GARAN.IS", time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC))
	if err != nil || ok {
		t.Fatalf("zero close should be skipped: ok=%v err=%v", ok, err)
	}
}
