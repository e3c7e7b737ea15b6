package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

// chartExchangeOrder is tried after the preferred exchange when
// rendering fails; Binance has the widest TradingView coverage.
var chartExchangeOrder = []string{"coinbase", "binance", "mexc"}

// ChartIMGClient renders TradingView chart snapshots via chart-img.com.
type ChartIMGClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client

	limiter *Limiter
}

// NewChartIMGClient creates a chart renderer client.
func NewChartIMGClient(apiKey, proxyURL string) *ChartIMGClient {
	return &ChartIMGClient{
		APIKey:  apiKey,
		BaseURL: "https://api.chart-img.com",
		Client:  newHTTPClient(proxyURL),
		limiter: NewLimiter(120),
	}
}

func (c *ChartIMGClient) Name() string { return "chart-img" }

// tradingViewSymbol formats a ticker for one exchange's TradingView
// feed, or returns "" when the exchange is not supported.
func tradingViewSymbol(symbol, exchange string) string {
	s := strings.ToUpper(symbol)
	switch strings.ToLower(exchange) {
	case "coinbase":
		return "COINBASE:" + s + "USD"
	case "kraken":
		if s == "BTC" {
			s = "XBT"
		}
		return "KRAKEN:" + s + "USD"
	case "binance":
		return "BINANCE:" + s + "USDT"
	case "mexc":
		return "MEXC:" + s + "USDT"
	case "bybit":
		return "BYBIT:" + s + "USDT"
	case "okx":
		return "OKX:" + s + "-USDT"
	default:
		return ""
	}
}

// FetchChart renders a 1-month daily candle chart for the symbol,
// trying the preferred exchange first and falling through the default
// order when a feed rejects the ticker.
func (c *ChartIMGClient) FetchChart(ctx context.Context, symbol, preferredExchange string) ([]byte, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("chart-img: no API key configured")
	}

	tried := make(map[string]bool)
	exchanges := make([]string, 0, len(chartExchangeOrder)+1)
	for _, e := range append([]string{preferredExchange}, chartExchangeOrder...) {
		e = strings.ToLower(e)
		if e == "" || tried[e] {
			continue
		}
		tried[e] = true
		exchanges = append(exchanges, e)
	}

	var lastErr error
	for _, exchange := range exchanges {
		tvSymbol := tradingViewSymbol(symbol, exchange)
		if tvSymbol == "" {
			continue
		}

		png, err := c.render(ctx, tvSymbol)
		if err == nil {
			return png, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Printf("[WARN] chart render failed for %s: %v", tvSymbol, err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no supported exchange for %s", symbol)
	}
	return nil, fmt.Errorf("chart-img %s: %w", symbol, lastErr)
}

func (c *ChartIMGClient) render(ctx context.Context, tvSymbol string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"symbol":   tvSymbol,
		"interval": "1D",
		"range":    "1M",
		"theme":    "dark",
		"width":    800,
		"height":   400,
		"format":   "png",
		"studies":  []string{},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v2/tradingview/advanced-chart", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart-img fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("chart-img read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		c.limiter.RecordSuccess()
		return body, nil
	case http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("symbol not available")
	case http.StatusTooManyRequests:
		c.limiter.Record429()
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
}
