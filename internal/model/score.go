package model

import "time"

// ScoreResult is the output of the uniformity calculation.
type ScoreResult struct {
	Score     float64
	TotalGain float64
}

// CachedScore is a price history plus its computed score, as persisted.
type CachedScore struct {
	CoinID    string
	Prices    []float64
	Score     float64
	TotalGain float64
	CachedAt  time.Time
}

// Candidate is a coin moving through the scan pipeline.
type Candidate struct {
	CoinQuote
	GeckoID         string
	ListedOn        []string
	ExchangeVolumes map[string]float64
	Uniformity      ScoreResult
	FromCache       bool
}

// ActiveCoin is a member of the qualified set persisted across scans.
type ActiveCoin struct {
	Symbol     string
	Name       string
	GeckoID    string
	Slug       string
	EnteredAt  time.Time
	LastSeenAt time.Time
	Gain7d     float64
	Gain30d    float64
	Score      float64
	Volumes    map[string]float64
}
