package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func coinLorePage(start, count, total int) map[string]interface{} {
	rows := make([]map[string]interface{}, 0, count)
	for i := 0; i < count; i++ {
		rank := start + i + 1
		rows = append(rows, map[string]interface{}{
			"symbol":            fmt.Sprintf("C%d", rank),
			"name":              fmt.Sprintf("Coin %d", rank),
			"nameid":            fmt.Sprintf("coin-%d", rank),
			"rank":              rank,
			"price_usd":         "1.50",
			"percent_change_7d": "9.25",
			"volume24":          2500000.75,
		})
	}
	return map[string]interface{}{
		"data": rows,
		"info": map[string]interface{}{"coins_num": total, "time": 1700000000},
	}
}

func TestCoinLoreClient_FetchQuotesPaginates(t *testing.T) {
	var starts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start")
		starts = append(starts, start)
		switch start {
		case "0":
			json.NewEncoder(w).Encode(coinLorePage(0, 100, 103))
		case "100":
			json.NewEncoder(w).Encode(coinLorePage(100, 3, 103))
		default:
			t.Errorf("unexpected start offset %q", start)
			json.NewEncoder(w).Encode(coinLorePage(0, 0, 103))
		}
	}))
	defer server.Close()

	c := NewCoinLoreClient("")
	c.BaseURL = server.URL

	quotes, err := c.FetchQuotes(context.Background(), 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(starts) != 2 || starts[0] != "0" || starts[1] != "100" {
		t.Errorf("unexpected pagination offsets: %v", starts)
	}
	if len(quotes) != 103 {
		t.Fatalf("expected 103 quotes, got %d", len(quotes))
	}

	q := quotes[0]
	if q.Symbol != "C1" || q.Slug != "coin-1" || q.Rank != 1 {
		t.Errorf("unexpected identity fields: %+v", q)
	}
	if q.Price != 1.50 {
		t.Errorf("expected price parsed from string, got %v", q.Price)
	}
	if q.Volume24h != 2500000.75 {
		t.Errorf("expected numeric volume kept, got %v", q.Volume24h)
	}
	if q.Gains.D7 != 9.25 {
		t.Errorf("expected 7d gain 9.25, got %v", q.Gains.D7)
	}
	if q.Gains.D30 != 0 {
		t.Errorf("expected 30d gain unset, got %v", q.Gains.D30)
	}
}

func TestCoinLoreClient_TruncatesToLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(coinLorePage(0, 100, 5000))
	}))
	defer server.Close()

	c := NewCoinLoreClient("")
	c.BaseURL = server.URL

	quotes, err := c.FetchQuotes(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 50 {
		t.Fatalf("expected quotes truncated to 50, got %d", len(quotes))
	}
}

func TestCoinLoreClient_FetchBatch(t *testing.T) {
	var gotIDs string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ticker/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotIDs = r.URL.Query().Get("id")
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"symbol":            "btc",
				"name":              "Bitcoin",
				"nameid":            "bitcoin",
				"rank":              1,
				"price_usd":         "65000.12",
				"percent_change_7d": "4.2",
				"volume24":          9000000.0,
			},
			{
				"symbol":            "kas",
				"name":              "Kaspa",
				"nameid":            "kaspa",
				"rank":              30,
				"price_usd":         0.155,
				"percent_change_7d": 12.0,
				"volume24":          "3,400,000",
			},
		})
	}))
	defer server.Close()

	c := NewCoinLoreClient("")
	c.BaseURL = server.URL

	quotes, err := c.FetchBatch(context.Background(), []string{"90", "32607"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotIDs != "90,32607" {
		t.Errorf("expected comma joined ids, got %q", gotIDs)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].Symbol != "BTC" || quotes[0].Price != 65000.12 {
		t.Errorf("unexpected first quote: %+v", quotes[0])
	}
	if quotes[1].Volume24h != 3400000 {
		t.Errorf("expected separators stripped, got %v", quotes[1].Volume24h)
	}
}

func TestCoinLoreClient_FetchBatchEmptyIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty id list")
	}))
	defer server.Close()

	c := NewCoinLoreClient("")
	c.BaseURL = server.URL

	quotes, err := c.FetchBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quotes != nil {
		t.Errorf("expected nil quotes, got %v", quotes)
	}
}

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want float64
	}{
		{"json number", float64(3.14), 3.14},
		{"quoted number", "6456.52", 6456.52},
		{"thousands separators", "1,234.5", 1234.5},
		{"padded", "  2.5 ", 2.5},
		{"garbage", "n/a", 0},
		{"nil", nil, 0},
		{"wrong type", true, 0},
	}

	for _, tt := range tests {
		if got := safeFloat(tt.in); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}
