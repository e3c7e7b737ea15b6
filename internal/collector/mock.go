package collector

import (
	"context"
	"fmt"

	"TrendSpotter/internal/model"
)

// MockQuotes returns controllable fixed quotes for development and
// testing.
type MockQuotes struct {
	Quotes []model.CoinQuote
	Err    error
	Calls  int
}

func (m *MockQuotes) Name() string { return "mock-quotes" }

func (m *MockQuotes) FetchQuotes(_ context.Context, limit int) ([]model.CoinQuote, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Quotes) > limit {
		return m.Quotes[:limit], nil
	}
	return m.Quotes, nil
}

// MockHistory serves canned daily prices by coin id.
type MockHistory struct {
	Prices map[string][]float64
	Err    error
	Calls  int
}

func (m *MockHistory) Name() string { return "mock-history" }

func (m *MockHistory) FetchDailyPrices(_ context.Context, coinID string, _ int) ([]float64, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	prices, ok := m.Prices[coinID]
	if !ok {
		return nil, fmt.Errorf("mock: no price history for %s", coinID)
	}
	return prices, nil
}

// MockSymbolHistory serves canned daily prices by ticker symbol.
type MockSymbolHistory struct {
	Prices map[string][]float64
	Err    error
	Calls  int
}

func (m *MockSymbolHistory) Name() string { return "mock-symbol-history" }

func (m *MockSymbolHistory) FetchDailyPricesBySymbol(_ context.Context, symbol string, _ int) ([]float64, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	prices, ok := m.Prices[symbol]
	if !ok {
		return nil, fmt.Errorf("mock: no price history for %s", symbol)
	}
	return prices, nil
}

// MockTickers serves canned per-exchange volumes keyed by coin id.
type MockTickers struct {
	Volumes map[string]map[string]float64
	Err     error
}

func (m *MockTickers) Name() string { return "mock-tickers" }

func (m *MockTickers) FetchExchangeVolumes(_ context.Context, coinID string, exchanges []string) (map[string]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]float64)
	for exchange, volume := range m.Volumes[coinID] {
		for _, want := range exchanges {
			if exchange == want {
				out[exchange] = volume
			}
		}
	}
	return out, nil
}

// MockMappings serves a fixed coin catalog.
type MockMappings struct {
	List []model.CoinMapping
	Err  error
}

func (m *MockMappings) Name() string { return "mock-mappings" }

func (m *MockMappings) FetchMappings(_ context.Context) ([]model.CoinMapping, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.List, nil
}

// MockListings serves a fixed symbol set for one exchange.
type MockListings struct {
	ExchangeName string
	Symbols      []string
	Err          error
}

func (m *MockListings) Exchange() string { return m.ExchangeName }

func (m *MockListings) FetchListings(_ context.Context) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Symbols, nil
}

// MockChart serves a fixed image.
type MockChart struct {
	PNG   []byte
	Err   error
	Calls int
}

func (m *MockChart) Name() string { return "mock-chart" }

func (m *MockChart) FetchChart(_ context.Context, _, _ string) ([]byte, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.PNG, nil
}
