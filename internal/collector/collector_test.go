package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"TrendSpotter/internal/metrics"
	"TrendSpotter/internal/model"
)

func TestCollector_QuotesFallsBack(t *testing.T) {
	primary := &MockQuotes{Err: fmt.Errorf("upstream down")}
	fallback := &MockQuotes{Quotes: []model.CoinQuote{{Symbol: "BTC"}, {Symbol: "ETH"}}}
	c := &Collector{Quotes: primary, Fallback: fallback, Metrics: metrics.NewCollector()}

	quotes, err := c.FetchQuotes(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 fallback quotes, got %d", len(quotes))
	}
	if primary.Calls != 1 || fallback.Calls != 1 {
		t.Errorf("expected one call each, got primary=%d fallback=%d", primary.Calls, fallback.Calls)
	}
	if got := c.Metrics.APICallTotal(); got != 2 {
		t.Errorf("expected 2 api calls counted, got %d", got)
	}
}

func TestCollector_QuotesPrimaryOnly(t *testing.T) {
	primary := &MockQuotes{Quotes: []model.CoinQuote{{Symbol: "BTC"}}}
	fallback := &MockQuotes{Quotes: []model.CoinQuote{{Symbol: "ETH"}}}
	c := &Collector{Quotes: primary, Fallback: fallback}

	quotes, err := c.FetchQuotes(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Symbol != "BTC" {
		t.Errorf("expected primary quotes, got %v", quotes)
	}
	if fallback.Calls != 0 {
		t.Error("fallback should not be called when the primary succeeds")
	}
}

func TestCollector_QuotesNoPrimary(t *testing.T) {
	fallback := &MockQuotes{Quotes: []model.CoinQuote{{Symbol: "ETH"}}}
	c := &Collector{Fallback: fallback}

	quotes, err := c.FetchQuotes(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected fallback quotes, got %d", len(quotes))
	}
}

func TestCollector_DailyPricesDexFallback(t *testing.T) {
	history := &MockHistory{Err: fmt.Errorf("coin not served")}
	dex := &MockSymbolHistory{Prices: map[string][]float64{"ETH": {1, 2, 3}}}
	c := &Collector{History: history, Dex: dex}

	prices, err := c.DailyPrices(context.Background(), "ethereum", "ETH", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prices) != 3 {
		t.Fatalf("expected dex prices, got %v", prices)
	}
	if dex.Calls != 1 {
		t.Errorf("expected one dex call, got %d", dex.Calls)
	}
}

func TestCollector_DailyPricesRateLimitSkipsDex(t *testing.T) {
	history := &MockHistory{Err: fmt.Errorf("market chart: %w", ErrRateLimited)}
	dex := &MockSymbolHistory{Prices: map[string][]float64{"ETH": {1, 2, 3}}}
	c := &Collector{History: history, Dex: dex}

	_, err := c.DailyPrices(context.Background(), "ethereum", "ETH", 30)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit to propagate, got %v", err)
	}
	if dex.Calls != 0 {
		t.Error("dex fallback must not be burned on a rate limit")
	}
}

func TestCollector_ChartNotConfigured(t *testing.T) {
	c := &Collector{}
	if _, err := c.ChartImage(context.Background(), "BTC", "coinbase"); err == nil {
		t.Fatal("expected error when no chart provider is wired")
	}
}
