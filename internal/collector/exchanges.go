package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"TrendSpotter/internal/store"
)

// Fallback symbol sets used when an exchange's public API is down, so
// a scan never runs against an empty listing table.
var (
	coinbaseFallback = []string{
		"BTC", "ETH", "USDT", "USDC", "SOL", "XRP", "ADA", "DOGE", "DOT",
		"LINK", "MATIC", "AVAX", "UNI", "ALGO", "ATOM", "FIL", "ICP",
		"NEAR", "APT", "ARB", "OP", "LTC", "BCH", "ETC", "XLM", "VET",
		"EOS", "TRX", "SHIB", "FLOKI", "PEPE", "BONK", "WIF",
	}
	krakenFallback = []string{
		"BTC", "ETH", "USDT", "USDC", "SOL", "XRP", "ADA", "DOGE", "DOT",
		"LINK", "MATIC", "AVAX", "UNI", "ALGO", "ATOM", "FIL", "LTC",
		"BCH", "ETC", "XLM", "TRX", "SHIB", "PEPE", "KSM", "DASH", "ZEC",
	}
	mexcFallback = []string{
		"BTC", "ETH", "USDT", "USDC", "SOL", "XRP", "ADA", "DOGE", "DOT",
		"LINK", "MATIC", "AVAX", "UNI", "ALGO", "ATOM", "FIL", "LTC",
		"BCH", "ETC", "XLM", "TRX", "SHIB", "PEPE", "BONK", "WIF",
		"FLOKI", "KAS", "SUI", "SEI", "TIA", "DYM", "STRK", "W",
	}
)

// CoinbaseListings reads tradable base currencies from the public
// Coinbase Exchange products endpoint.
type CoinbaseListings struct {
	BaseURL string
	Client  *http.Client
}

// NewCoinbaseListings creates a Coinbase listing fetcher.
func NewCoinbaseListings(proxyURL string) *CoinbaseListings {
	return &CoinbaseListings{
		BaseURL: "https://api.exchange.coinbase.com",
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *CoinbaseListings) Exchange() string { return "coinbase" }

func (f *CoinbaseListings) FetchListings(ctx context.Context) ([]string, error) {
	body, err := fetchListingBody(ctx, f.Client, f.BaseURL+"/products")
	if err != nil {
		log.Printf("[WARN] coinbase listings unavailable, using fallback: %v", err)
		return coinbaseFallback, nil
	}

	var products []struct {
		BaseCurrency string `json:"base_currency"`
	}
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("coinbase decode products: %w", err)
	}

	seen := make(map[string]bool)
	symbols := make([]string, 0, len(products))
	for _, p := range products {
		if p.BaseCurrency == "" || seen[p.BaseCurrency] {
			continue
		}
		seen[p.BaseCurrency] = true
		symbols = append(symbols, p.BaseCurrency)
	}
	return symbols, nil
}

// KrakenListings reads tradable base assets from the public Kraken
// asset pairs endpoint. Kraken reports bases in its own notation
// (XXBT, XETH); they are stored as received.
type KrakenListings struct {
	BaseURL string
	Client  *http.Client
}

// NewKrakenListings creates a Kraken listing fetcher.
func NewKrakenListings(proxyURL string) *KrakenListings {
	return &KrakenListings{
		BaseURL: "https://api.kraken.com",
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *KrakenListings) Exchange() string { return "kraken" }

func (f *KrakenListings) FetchListings(ctx context.Context) ([]string, error) {
	body, err := fetchListingBody(ctx, f.Client, f.BaseURL+"/0/public/AssetPairs")
	if err != nil {
		log.Printf("[WARN] kraken listings unavailable, using fallback: %v", err)
		return krakenFallback, nil
	}

	var parsed struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			Base string `json:"base"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("kraken decode asset pairs: %w", err)
	}
	if len(parsed.Error) > 0 {
		return nil, fmt.Errorf("kraken api error: %s", strings.Join(parsed.Error, "; "))
	}

	seen := make(map[string]bool)
	symbols := make([]string, 0, len(parsed.Result))
	for _, pair := range parsed.Result {
		if pair.Base == "" || seen[pair.Base] {
			continue
		}
		seen[pair.Base] = true
		symbols = append(symbols, pair.Base)
	}
	return symbols, nil
}

// mexcQuoteSuffixes in match order; USDT first since most pairs quote
// against it.
var mexcQuoteSuffixes = []string{"USDT", "BTC", "ETH", "USDC"}

// MEXCListings derives base currencies from the public MEXC ticker
// list by stripping known quote suffixes.
type MEXCListings struct {
	BaseURL string
	Client  *http.Client
}

// NewMEXCListings creates a MEXC listing fetcher.
func NewMEXCListings(proxyURL string) *MEXCListings {
	return &MEXCListings{
		BaseURL: "https://api.mexc.com",
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *MEXCListings) Exchange() string { return "mexc" }

func (f *MEXCListings) FetchListings(ctx context.Context) ([]string, error) {
	body, err := fetchListingBody(ctx, f.Client, f.BaseURL+"/api/v3/ticker/price")
	if err != nil {
		log.Printf("[WARN] mexc listings unavailable, using fallback: %v", err)
		return mexcFallback, nil
	}

	var tickers []struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("mexc decode tickers: %w", err)
	}

	seen := make(map[string]bool)
	var symbols []string
	for _, t := range tickers {
		for _, quote := range mexcQuoteSuffixes {
			if !strings.HasSuffix(t.Symbol, quote) {
				continue
			}
			base := strings.TrimSuffix(t.Symbol, quote)
			if base != "" && !seen[base] {
				seen[base] = true
				symbols = append(symbols, base)
			}
			break
		}
	}
	return symbols, nil
}

// fetchListingBody performs one GET against a public exchange endpoint.
func fetchListingBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "TrendSpotter/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, nil
}

// RefreshListings fetches every exchange's symbols concurrently and
// replaces the stored sets. One exchange failing fails the refresh,
// but the store keeps its previous rows for the others.
func RefreshListings(ctx context.Context, st store.Store, fetchers []ListingFetcher) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, f := range fetchers {
		f := f
		g.Go(func() error {
			symbols, err := f.FetchListings(ctx)
			if err != nil {
				return fmt.Errorf("%s listings: %w", f.Exchange(), err)
			}
			if err := st.ReplaceListings(f.Exchange(), symbols); err != nil {
				return fmt.Errorf("store %s listings: %w", f.Exchange(), err)
			}
			log.Printf("[INFO] %s listings updated: %d symbols", f.Exchange(), len(symbols))
			return nil
		})
	}
	return g.Wait()
}
