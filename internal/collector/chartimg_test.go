package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTradingViewSymbol(t *testing.T) {
	tests := []struct {
		symbol   string
		exchange string
		want     string
	}{
		{"BTC", "coinbase", "COINBASE:BTCUSD"},
		{"BTC", "kraken", "KRAKEN:XBTUSD"},
		{"ETH", "kraken", "KRAKEN:ETHUSD"},
		{"sol", "binance", "BINANCE:SOLUSDT"},
		{"KAS", "mexc", "MEXC:KASUSDT"},
		{"APT", "bybit", "BYBIT:APTUSDT"},
		{"OP", "okx", "OKX:OP-USDT"},
		{"BTC", "gemini", ""},
	}

	for _, tt := range tests {
		if got := tradingViewSymbol(tt.symbol, tt.exchange); got != tt.want {
			t.Errorf("tradingViewSymbol(%q, %q): expected %q, got %q",
				tt.symbol, tt.exchange, tt.want, got)
		}
	}
}

func TestChartIMGClient_FallsThroughExchanges(t *testing.T) {
	png := []byte("\x89PNG fake image bytes")
	var rendered []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Symbol string `json:"symbol"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		rendered = append(rendered, payload.Symbol)
		if payload.Symbol == "COINBASE:FOOUSD" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.Write(png)
	}))
	defer server.Close()

	c := NewChartIMGClient("test-key", "")
	c.BaseURL = server.URL

	got, err := c.FetchChart(context.Background(), "FOO", "coinbase")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, png) {
		t.Error("expected the rendered image bytes back")
	}
	if len(rendered) != 2 || rendered[0] != "COINBASE:FOOUSD" || rendered[1] != "BINANCE:FOOUSDT" {
		t.Errorf("unexpected render order: %v", rendered)
	}
}

func TestChartIMGClient_PreferredFirst(t *testing.T) {
	var first string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Symbol string `json:"symbol"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		if first == "" {
			first = payload.Symbol
		}
		w.Write([]byte("img"))
	}))
	defer server.Close()

	c := NewChartIMGClient("test-key", "")
	c.BaseURL = server.URL

	if _, err := c.FetchChart(context.Background(), "BTC", "mexc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != "MEXC:BTCUSDT" {
		t.Errorf("expected preferred exchange rendered first, got %q", first)
	}
}

func TestChartIMGClient_AllExchangesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := NewChartIMGClient("test-key", "")
	c.BaseURL = server.URL

	if _, err := c.FetchChart(context.Background(), "FOO", ""); err == nil {
		t.Fatal("expected error when every exchange rejects the symbol")
	}
}

func TestChartIMGClient_NoAPIKey(t *testing.T) {
	c := NewChartIMGClient("", "")
	if _, err := c.FetchChart(context.Background(), "BTC", "coinbase"); err == nil {
		t.Fatal("expected error without an API key")
	}
}
