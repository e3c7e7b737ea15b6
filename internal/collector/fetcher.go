package collector

import (
	"context"
	"errors"

	"TrendSpotter/internal/model"
)

// ErrRateLimited marks a provider response that should be retried on a
// later scan instead of failing the run.
var ErrRateLimited = errors.New("rate limited")

// QuoteProvider returns ranked market snapshots for many coins at once.
type QuoteProvider interface {
	FetchQuotes(ctx context.Context, limit int) ([]model.CoinQuote, error)
	Name() string
}

// HistoryProvider returns daily closing prices by coin id, oldest first.
type HistoryProvider interface {
	FetchDailyPrices(ctx context.Context, coinID string, days int) ([]float64, error)
	Name() string
}

// SymbolHistoryProvider returns daily closing prices by ticker symbol,
// for coins the id-based source cannot serve.
type SymbolHistoryProvider interface {
	FetchDailyPricesBySymbol(ctx context.Context, symbol string, days int) ([]float64, error)
	Name() string
}

// TickerVolumeProvider returns 24h converted volume per target exchange.
type TickerVolumeProvider interface {
	FetchExchangeVolumes(ctx context.Context, coinID string, exchanges []string) (map[string]float64, error)
	Name() string
}

// MappingProvider returns the full symbol to coin id catalog.
type MappingProvider interface {
	FetchMappings(ctx context.Context) ([]model.CoinMapping, error)
	Name() string
}

// ListingFetcher returns the symbols tradable on one exchange.
type ListingFetcher interface {
	FetchListings(ctx context.Context) ([]string, error)
	Exchange() string
}

// ChartProvider renders a price chart image for a symbol.
type ChartProvider interface {
	FetchChart(ctx context.Context, symbol, preferredExchange string) ([]byte, error)
	Name() string
}
