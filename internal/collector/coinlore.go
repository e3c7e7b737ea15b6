package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"TrendSpotter/internal/model"
)

const coinLorePageSize = 100

// CoinLoreClient fetches ranked tickers from the keyless CoinLore API.
// It serves as the fallback quote source: no key, no auth, about one
// call a second, but only a 7d change field. The 30d gain for its coins
// is verified later from price history.
type CoinLoreClient struct {
	BaseURL string
	Client  *http.Client

	limiter *Limiter
}

// NewCoinLoreClient creates a CoinLore client.
func NewCoinLoreClient(proxyURL string) *CoinLoreClient {
	return &CoinLoreClient{
		BaseURL: "https://api.coinlore.net/api",
		Client:  newHTTPClient(proxyURL),
		limiter: NewLimiter(60),
	}
}

func (c *CoinLoreClient) Name() string { return "coinlore" }

// coinLoreTicker is one entry of the tickers response. CoinLore mixes
// JSON numbers and quoted numbers across fields, so the numeric ones
// are decoded loosely and parsed with safeFloat.
type coinLoreTicker struct {
	Symbol   string      `json:"symbol"`
	Name     string      `json:"name"`
	NameID   string      `json:"nameid"`
	Rank     int         `json:"rank"`
	PriceUSD interface{} `json:"price_usd"`
	Change7d interface{} `json:"percent_change_7d"`
	Volume24 interface{} `json:"volume24"`
}

// safeFloat parses a loosely typed numeric field: a JSON number, or a
// quoted number possibly carrying thousands separators.
func safeFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// FetchQuotes pages through the ranked ticker list until limit coins
// are collected or the catalog ends.
func (c *CoinLoreClient) FetchQuotes(ctx context.Context, limit int) ([]model.CoinQuote, error) {
	quotes := make([]model.CoinQuote, 0, limit)
	start := 0
	total := 0

	for len(quotes) < limit {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		u := fmt.Sprintf("%s/tickers/?start=%d&limit=%d", c.BaseURL, start, coinLorePageSize)
		req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.Client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("coinlore fetch: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("coinlore read body: %w", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.Record429()
			return nil, fmt.Errorf("coinlore tickers: %w", ErrRateLimited)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("coinlore: status %d, body: %s", resp.StatusCode, string(body))
		}
		c.limiter.RecordSuccess()

		var page struct {
			Data []coinLoreTicker `json:"data"`
			Info struct {
				CoinsNum int `json:"coins_num"`
			} `json:"info"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("coinlore decode: %w", err)
		}
		if len(page.Data) == 0 {
			break
		}
		if page.Info.CoinsNum > 0 {
			total = page.Info.CoinsNum
		}

		for _, row := range page.Data {
			quotes = append(quotes, model.CoinQuote{
				Symbol:    strings.ToUpper(row.Symbol),
				Name:      row.Name,
				Slug:      row.NameID,
				Rank:      row.Rank,
				Price:     safeFloat(row.PriceUSD),
				Volume24h: safeFloat(row.Volume24),
				Gains: model.Gains{
					D7: safeFloat(row.Change7d),
					// 30d is not served; it gets verified from
					// price history downstream.
				},
			})
		}

		start += len(page.Data)
		if len(page.Data) < coinLorePageSize {
			break
		}
		if total > 0 && start >= total {
			break
		}
	}

	if len(quotes) == 0 {
		return nil, fmt.Errorf("coinlore: no data returned")
	}
	if len(quotes) > limit {
		quotes = quotes[:limit]
	}
	return quotes, nil
}

// FetchBatch fetches quotes for specific CoinLore ids in one call. The
// ticker endpoint takes a comma separated id list and answers with a
// bare array instead of the paginated envelope.
func (c *CoinLoreClient) FetchBatch(ctx context.Context, ids []string) ([]model.CoinQuote, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/ticker/?id=%s", c.BaseURL, strings.Join(ids, ","))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinlore batch: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("coinlore read body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.Record429()
		return nil, fmt.Errorf("coinlore ticker: %w", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinlore: status %d, body: %s", resp.StatusCode, string(body))
	}
	c.limiter.RecordSuccess()

	var rows []coinLoreTicker
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("coinlore decode: %w", err)
	}

	quotes := make([]model.CoinQuote, 0, len(rows))
	for _, row := range rows {
		quotes = append(quotes, model.CoinQuote{
			Symbol:    strings.ToUpper(row.Symbol),
			Name:      row.Name,
			Slug:      row.NameID,
			Rank:      row.Rank,
			Price:     safeFloat(row.PriceUSD),
			Volume24h: safeFloat(row.Volume24),
			Gains:     model.Gains{D7: safeFloat(row.Change7d)},
		})
	}
	return quotes, nil
}
