package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"TrendSpotter/internal/model"
)

// GeckoClient fetches price history, exchange tickers and the coin
// catalog from the CoinGecko public API. The keyless tier tolerates
// about five calls a minute, so every request goes through the limiter.
type GeckoClient struct {
	BaseURL string
	Client  *http.Client

	limiter *Limiter
}

// NewGeckoClient creates a CoinGecko client.
func NewGeckoClient(proxyURL string) *GeckoClient {
	return &GeckoClient{
		BaseURL: "https://api.coingecko.com/api/v3",
		Client:  newHTTPClient(proxyURL),
		limiter: NewLimiter(5),
	}
}

func (g *GeckoClient) Name() string { return "coingecko" }

// get performs one rate-limited GET and returns the raw body.
func (g *GeckoClient) get(ctx context.Context, path string) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", g.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "TrendSpotter/1.0")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coingecko read body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		g.limiter.Record429()
		return nil, fmt.Errorf("coingecko %s: %w", path, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko: status %d, body: %s", resp.StatusCode, string(body))
	}
	g.limiter.RecordSuccess()
	return body, nil
}

// FetchDailyPrices returns one closing price per day, oldest first.
func (g *GeckoClient) FetchDailyPrices(ctx context.Context, coinID string, days int) ([]float64, error) {
	path := fmt.Sprintf("/coins/%s/market_chart?vs_currency=usd&days=%d&interval=daily",
		url.PathEscape(coinID), days)
	body, err := g.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var chart struct {
		Prices [][]float64 `json:"prices"`
	}
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("coingecko decode chart: %w", err)
	}
	if len(chart.Prices) == 0 {
		return nil, fmt.Errorf("coingecko: no price history for %s", coinID)
	}

	prices := make([]float64, 0, len(chart.Prices))
	for _, point := range chart.Prices {
		if len(point) < 2 {
			continue
		}
		prices = append(prices, point[1])
	}
	return prices, nil
}

// geckoTicker is one market entry of the tickers response.
type geckoTicker struct {
	Market struct {
		Identifier string `json:"identifier"`
		Name       string `json:"name"`
	} `json:"market"`
	ConvertedVolume struct {
		USD float64 `json:"usd"`
	} `json:"converted_volume"`
}

// FetchExchangeVolumes returns the highest 24h USD volume seen on each
// of the target exchanges. Exchanges the coin does not trade on are
// absent from the result.
func (g *GeckoClient) FetchExchangeVolumes(ctx context.Context, coinID string, exchanges []string) (map[string]float64, error) {
	path := fmt.Sprintf("/coins/%s/tickers?include_exchange_logo=false&order=volume_desc",
		url.PathEscape(coinID))
	body, err := g.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Tickers []geckoTicker `json:"tickers"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("coingecko decode tickers: %w", err)
	}

	volumes := make(map[string]float64)
	for _, t := range parsed.Tickers {
		identifier := strings.ToLower(t.Market.Identifier)
		name := strings.ToLower(t.Market.Name)
		for _, exchange := range exchanges {
			target := strings.ToLower(exchange)
			if !strings.Contains(identifier, target) && !strings.Contains(name, target) {
				continue
			}
			// A coin can trade in several pairs on one exchange;
			// keep the most liquid.
			if t.ConvertedVolume.USD > volumes[exchange] {
				volumes[exchange] = t.ConvertedVolume.USD
			}
		}
	}
	return volumes, nil
}

// FetchMappings returns the full coin catalog: every coin id with its
// ticker symbol and display name.
func (g *GeckoClient) FetchMappings(ctx context.Context) ([]model.CoinMapping, error) {
	body, err := g.get(ctx, "/coins/list")
	if err != nil {
		return nil, err
	}

	var list []struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("coingecko decode coin list: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("coingecko: empty coin list")
	}

	mappings := make([]model.CoinMapping, 0, len(list))
	for _, row := range list {
		mappings = append(mappings, model.CoinMapping{
			Symbol: row.Symbol,
			CoinID: row.ID,
			Name:   row.Name,
		})
	}
	return mappings, nil
}
