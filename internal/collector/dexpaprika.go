package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// dexToken locates a token's most liquid on-chain representation.
type dexToken struct {
	Network string
	Address string
}

// knownDexTokens maps major symbols to the contract whose pools carry
// the volume. Wrapped forms stand in for the native asset.
var knownDexTokens = map[string]dexToken{
	"ETH":   {"ethereum", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"},
	"WETH":  {"ethereum", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"},
	"BTC":   {"ethereum", "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599"},
	"WBTC":  {"ethereum", "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599"},
	"SOL":   {"solana", "So11111111111111111111111111111111111111112"},
	"USDC":  {"ethereum", "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"},
	"USDT":  {"ethereum", "0xdac17f958d2ee523a2206206994597c13d831ec7"},
	"DAI":   {"ethereum", "0x6b175474e89094c44da98b954eedeac495271d0f"},
	"MATIC": {"polygon", "0x0000000000000000000000000000000000001010"},
	"AVAX":  {"avalanche", "0xb31f66aa3c1e785363f0875a1b74e27b85fd66c7"},
}

const dexMinPricePoints = 20

// DexPaprikaClient reads daily OHLCV from on-chain pools. It covers the
// handful of majors in knownDexTokens and serves as the history source
// of last resort when the id-based API has no data for a coin.
type DexPaprikaClient struct {
	BaseURL string
	Client  *http.Client

	limiter *Limiter
}

// NewDexPaprikaClient creates a DexPaprika client.
func NewDexPaprikaClient(proxyURL string) *DexPaprikaClient {
	return &DexPaprikaClient{
		BaseURL: "https://api.dexpaprika.com/v1",
		Client:  newHTTPClient(proxyURL),
		limiter: NewLimiter(120),
	}
}

func (d *DexPaprikaClient) Name() string { return "dexpaprika" }

func (d *DexPaprikaClient) get(ctx context.Context, path string) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", d.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexpaprika fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dexpaprika read body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		d.limiter.Record429()
		return nil, fmt.Errorf("dexpaprika %s: %w", path, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dexpaprika: status %d, body: %s", resp.StatusCode, string(body))
	}
	d.limiter.RecordSuccess()
	return body, nil
}

// topPoolID returns the id of the most liquid pool holding the token.
func (d *DexPaprikaClient) topPoolID(ctx context.Context, token dexToken) (string, error) {
	path := fmt.Sprintf("/networks/%s/tokens/%s/pools?limit=5", token.Network, url.PathEscape(token.Address))
	body, err := d.get(ctx, path)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Pools []struct {
			ID string `json:"id"`
		} `json:"pools"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("dexpaprika decode pools: %w", err)
	}
	if len(parsed.Pools) == 0 {
		return "", fmt.Errorf("dexpaprika: no pools for %s on %s", token.Address, token.Network)
	}
	return parsed.Pools[0].ID, nil
}

// FetchDailyPricesBySymbol returns daily pool closes for a known major,
// oldest first.
func (d *DexPaprikaClient) FetchDailyPricesBySymbol(ctx context.Context, symbol string, days int) ([]float64, error) {
	token, ok := knownDexTokens[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("dexpaprika: no known pool for %s", symbol)
	}

	poolID, err := d.topPoolID(ctx, token)
	if err != nil {
		return nil, err
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	path := fmt.Sprintf("/networks/%s/pools/%s/ohlcv?start=%s&end=%s&interval=1d&limit=%d",
		token.Network, url.PathEscape(poolID),
		start.Format("2006-01-02"), end.Format("2006-01-02"), days)
	body, err := d.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var candles []struct {
		Timestamp string  `json:"timestamp"`
		Close     float64 `json:"close"`
	}
	if err := json.Unmarshal(body, &candles); err != nil {
		return nil, fmt.Errorf("dexpaprika decode ohlcv: %w", err)
	}
	if len(candles) < dexMinPricePoints {
		return nil, fmt.Errorf("dexpaprika: only %d price points for %s, need %d",
			len(candles), symbol, dexMinPricePoints)
	}

	// ISO timestamps sort chronologically as strings.
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })

	prices := make([]float64, 0, len(candles))
	for _, c := range candles {
		prices = append(prices, c.Close)
	}
	return prices, nil
}
