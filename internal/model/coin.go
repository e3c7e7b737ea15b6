package model

// Gains holds percentage price changes over trailing windows.
type Gains struct {
	D7  float64
	D14 float64
	D30 float64
	D60 float64
	D90 float64
}

// CoinQuote is a market snapshot for one coin from a quote provider.
type CoinQuote struct {
	Symbol    string
	Name      string
	Slug      string
	Rank      int
	Price     float64
	Volume24h float64
	Gains     Gains
}

// CoinMapping links an exchange ticker symbol to a CoinGecko coin id.
type CoinMapping struct {
	Symbol string
	CoinID string
	Name   string
}
