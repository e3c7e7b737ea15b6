package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"TrendSpotter/internal/store"
)

func TestCoinbaseListings_Dedupes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[
			{"base_currency": "BTC"},
			{"base_currency": "BTC"},
			{"base_currency": "ETH"},
			{"base_currency": ""}
		]`))
	}))
	defer server.Close()

	f := NewCoinbaseListings("")
	f.BaseURL = server.URL

	symbols, err := f.FetchListings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "BTC" || symbols[1] != "ETH" {
		t.Errorf("expected [BTC ETH], got %v", symbols)
	}
}

func TestCoinbaseListings_FallbackOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewCoinbaseListings("")
	f.BaseURL = server.URL

	symbols, err := f.FetchListings(context.Background())
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	if len(symbols) != len(coinbaseFallback) {
		t.Errorf("expected %d fallback symbols, got %d", len(coinbaseFallback), len(symbols))
	}
}

func TestKrakenListings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"error": [],
			"result": {
				"XXBTZUSD": {"base": "XXBT"},
				"XXBTZEUR": {"base": "XXBT"},
				"XETHZUSD": {"base": "XETH"}
			}
		}`))
	}))
	defer server.Close()

	f := NewKrakenListings("")
	f.BaseURL = server.URL

	symbols, err := f.FetchListings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(symbols) != 2 {
		t.Errorf("expected 2 unique bases, got %v", symbols)
	}
}

func TestKrakenListings_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": ["EGeneral:Internal error"], "result": {}}`))
	}))
	defer server.Close()

	f := NewKrakenListings("")
	f.BaseURL = server.URL

	if _, err := f.FetchListings(context.Background()); err == nil {
		t.Fatal("expected error when kraken reports one")
	}
}

func TestMEXCListings_StripsQuoteSuffixes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol": "BTCUSDT"},
			{"symbol": "BTCUSDC"},
			{"symbol": "ETHBTC"},
			{"symbol": "KASUSDT"},
			{"symbol": "EURGBP"}
		]`))
	}))
	defer server.Close()

	f := NewMEXCListings("")
	f.BaseURL = server.URL

	symbols, err := f.FetchListings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"BTC", "ETH", "KAS"}
	if len(symbols) != len(want) {
		t.Fatalf("expected %v, got %v", want, symbols)
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Errorf("symbol[%d]: expected %q, got %q", i, want[i], symbols[i])
		}
	}
}

func TestRefreshListings(t *testing.T) {
	st := store.NewMemoryStore()
	fetchers := []ListingFetcher{
		&MockListings{ExchangeName: "coinbase", Symbols: []string{"BTC", "ETH"}},
		&MockListings{ExchangeName: "kraken", Symbols: []string{"XXBT"}},
	}

	if err := RefreshListings(context.Background(), st, fetchers); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	listed, err := st.IsListed("eth", "coinbase")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !listed {
		t.Error("expected ETH listed on coinbase after refresh")
	}
	listed, err = st.IsListed("XXBT", "kraken")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !listed {
		t.Error("expected XXBT listed on kraken after refresh")
	}
}
