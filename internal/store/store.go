package store

import (
	"time"

	"TrendSpotter/internal/model"
)

// Store persists everything a scan needs between runs: the score cache,
// symbol mappings, exchange listings, the active coin set and run history.
type Store interface {
	// GetCachedScore returns the cached entry for a coin when it is newer
	// than ttl, or nil when absent or stale.
	GetCachedScore(coinID string, ttl time.Duration) (*model.CachedScore, error)
	PutCachedScore(cs *model.CachedScore) error
	// PurgeStaleScores deletes cache entries older than ttl and reports
	// how many were removed.
	PurgeStaleScores(ttl time.Duration) (int, error)
	// CacheStats returns the total entry count and how many are fresh
	// within ttl.
	CacheStats(ttl time.Duration) (total, fresh int, err error)
	ClearPriceCache() (int, error)

	// GetMapping resolves a ticker symbol to a coin id, nil when unknown.
	GetMapping(symbol string) (*model.CoinMapping, error)
	ReplaceMappings(mappings []model.CoinMapping) error
	MappingCount() (int, error)
	MappingsUpdatedAt() (time.Time, error)

	// ReplaceListings swaps the symbol set recorded for one exchange.
	ReplaceListings(exchange string, symbols []string) error
	ListedSymbols() ([]string, error)
	IsListed(symbol, exchange string) (bool, error)
	ListingsUpdatedAt() (time.Time, error)

	ActiveCoins() ([]model.ActiveCoin, error)
	// Reconcile replaces the active set with current and reports the
	// difference: coins not previously active are inserted and returned
	// as entered, coins no longer present are deleted and returned as
	// exited, the rest are updated in place.
	Reconcile(current []model.ActiveCoin) (entered, exited []model.ActiveCoin, err error)

	SaveScanHistory(runID string, coins []model.Candidate) error
	SaveScanRun(run *model.ScanRun) error
	RecentRuns(limit int) ([]model.ScanRun, error)

	Close() error
}

func activeKey(symbol, name string) string {
	return name + "_" + symbol
}
