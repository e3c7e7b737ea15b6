package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"TrendSpotter/internal/metrics"
	"TrendSpotter/internal/model"
)

// newHTTPClient builds a client honoring an optional proxy URL.
func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

// Collector bundles every market data source the scan pipeline reads
// and counts each outbound call into the metrics collector. Quotes,
// Fallback, Dex and Chart may be nil; the accessors degrade
// accordingly. History, Tickers and Mappings must be wired.
type Collector struct {
	Quotes   QuoteProvider // primary ranked listing source
	Fallback QuoteProvider // keyless source when the primary fails
	History  HistoryProvider
	Dex      SymbolHistoryProvider // last-resort history for majors
	Tickers  TickerVolumeProvider
	Mappings MappingProvider
	Chart    ChartProvider

	Metrics *metrics.Collector
}

func (c *Collector) count(service string) {
	if c.Metrics != nil {
		c.Metrics.APICall(service)
	}
}

// FetchQuotes returns ranked quotes from the primary source, falling
// back to the secondary when the primary is absent or fails.
func (c *Collector) FetchQuotes(ctx context.Context, limit int) ([]model.CoinQuote, error) {
	if c.Quotes != nil {
		c.count(c.Quotes.Name())
		quotes, err := c.Quotes.FetchQuotes(ctx, limit)
		if err == nil {
			return quotes, nil
		}
		if c.Fallback == nil {
			return nil, err
		}
		log.Printf("[WARN] %s quotes failed: %v, falling back to %s",
			c.Quotes.Name(), err, c.Fallback.Name())
	}
	if c.Fallback == nil {
		return nil, fmt.Errorf("no quote provider configured")
	}
	c.count(c.Fallback.Name())
	return c.Fallback.FetchQuotes(ctx, limit)
}

// DailyPrices returns daily closes for a coin, oldest first. When the
// id-based source has no data, the symbol-keyed source covers the
// majors it knows. Rate limits propagate unchanged so the caller can
// push the coin to the next scan instead of burning the fallback.
func (c *Collector) DailyPrices(ctx context.Context, coinID, symbol string, days int) ([]float64, error) {
	c.count(c.History.Name())
	prices, err := c.History.FetchDailyPrices(ctx, coinID, days)
	if err == nil {
		return prices, nil
	}
	if errors.Is(err, ErrRateLimited) || c.Dex == nil {
		return nil, err
	}
	log.Printf("[WARN] %s history for %s failed: %v, trying %s",
		c.History.Name(), coinID, err, c.Dex.Name())
	c.count(c.Dex.Name())
	return c.Dex.FetchDailyPricesBySymbol(ctx, symbol, days)
}

// ExchangeVolumes returns the coin's 24h volume on each target exchange.
func (c *Collector) ExchangeVolumes(ctx context.Context, coinID string, exchanges []string) (map[string]float64, error) {
	c.count(c.Tickers.Name())
	return c.Tickers.FetchExchangeVolumes(ctx, coinID, exchanges)
}

// FetchMappings returns the symbol to coin id catalog.
func (c *Collector) FetchMappings(ctx context.Context) ([]model.CoinMapping, error) {
	c.count(c.Mappings.Name())
	return c.Mappings.FetchMappings(ctx)
}

// ChartImage renders a chart for the symbol, or reports that no chart
// provider is configured.
func (c *Collector) ChartImage(ctx context.Context, symbol, preferredExchange string) ([]byte, error) {
	if c.Chart == nil {
		return nil, fmt.Errorf("chart provider not configured")
	}
	c.count(c.Chart.Name())
	return c.Chart.FetchChart(ctx, symbol, preferredExchange)
}
