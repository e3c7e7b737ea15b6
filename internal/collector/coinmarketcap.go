package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"TrendSpotter/internal/model"
)

// CMCClient fetches ranked listings from the CoinMarketCap pro API.
// Requires an API key; the free tier allows roughly 30 calls a minute.
type CMCClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client

	limiter *Limiter
}

// NewCMCClient creates a CoinMarketCap client.
func NewCMCClient(apiKey, proxyURL string) *CMCClient {
	return &CMCClient{
		APIKey:  apiKey,
		BaseURL: "https://pro-api.coinmarketcap.com/v1",
		Client:  newHTTPClient(proxyURL),
		limiter: NewLimiter(30),
	}
}

func (c *CMCClient) Name() string { return "coinmarketcap" }

// cmcListing is one entry of the listings/latest response.
type cmcListing struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Rank   int    `json:"cmc_rank"`
	Quote  struct {
		USD struct {
			Price            float64 `json:"price"`
			Volume24h        float64 `json:"volume_24h"`
			PercentChange7d  float64 `json:"percent_change_7d"`
			PercentChange30d float64 `json:"percent_change_30d"`
			PercentChange60d float64 `json:"percent_change_60d"`
			PercentChange90d float64 `json:"percent_change_90d"`
		} `json:"USD"`
	} `json:"quote"`
}

// FetchQuotes returns up to limit coins ordered by market cap rank.
func (c *CMCClient) FetchQuotes(ctx context.Context, limit int) ([]model.CoinQuote, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("coinmarketcap: no API key configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/cryptocurrency/listings/latest?start=1&limit=%d&convert=USD", c.BaseURL, limit)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap read body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.Record429()
		return nil, fmt.Errorf("coinmarketcap listings: %w", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinmarketcap: status %d, body: %s", resp.StatusCode, string(body))
	}
	c.limiter.RecordSuccess()

	var parsed struct {
		Data []cmcListing `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("coinmarketcap decode: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("coinmarketcap: no data returned")
	}

	quotes := make([]model.CoinQuote, 0, len(parsed.Data))
	for _, row := range parsed.Data {
		quotes = append(quotes, model.CoinQuote{
			Symbol:    row.Symbol,
			Name:      row.Name,
			Slug:      row.Slug,
			Rank:      row.Rank,
			Price:     row.Quote.USD.Price,
			Volume24h: row.Quote.USD.Volume24h,
			Gains: model.Gains{
				D7:  row.Quote.USD.PercentChange7d,
				D30: row.Quote.USD.PercentChange30d,
				D60: row.Quote.USD.PercentChange60d,
				D90: row.Quote.USD.PercentChange90d,
			},
		})
	}
	return quotes, nil
}
