package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"TrendSpotter/internal/model"
)

// MemoryStore is a map-backed Store used in tests and database-less runs.
type MemoryStore struct {
	mu         sync.Mutex
	scores     map[string]model.CachedScore
	mappings   map[string]model.CoinMapping
	mappingsAt time.Time
	listings   map[string]map[string]bool // exchange -> symbol set
	listingsAt time.Time
	active     map[string]model.ActiveCoin
	history    []model.Candidate
	runs       []model.ScanRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scores:   make(map[string]model.CachedScore),
		mappings: make(map[string]model.CoinMapping),
		listings: make(map[string]map[string]bool),
		active:   make(map[string]model.ActiveCoin),
	}
}

func (s *MemoryStore) GetCachedScore(coinID string, ttl time.Duration) (*model.CachedScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.scores[coinID]
	if !ok || time.Since(cs.CachedAt) >= ttl {
		return nil, nil
	}
	out := cs
	out.Prices = append([]float64(nil), cs.Prices...)
	return &out, nil
}

func (s *MemoryStore) PutCachedScore(cs *model.CachedScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *cs
	if stored.CachedAt.IsZero() {
		stored.CachedAt = time.Now()
	}
	stored.Prices = append([]float64(nil), cs.Prices...)
	s.scores[cs.CoinID] = stored
	return nil
}

func (s *MemoryStore) PurgeStaleScores(ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, cs := range s.scores {
		if time.Since(cs.CachedAt) >= ttl {
			delete(s.scores, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) CacheStats(ttl time.Duration) (total, fresh int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total = len(s.scores)
	for _, cs := range s.scores {
		if time.Since(cs.CachedAt) < ttl {
			fresh++
		}
	}
	return total, fresh, nil
}

func (s *MemoryStore) ClearPriceCache() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.scores)
	s.scores = make(map[string]model.CachedScore)
	return n, nil
}

func (s *MemoryStore) GetMapping(symbol string) (*model.CoinMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mappings[strings.ToLower(symbol)]
	if !ok {
		return nil, nil
	}
	out := m
	return &out, nil
}

func (s *MemoryStore) ReplaceMappings(mappings []model.CoinMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mappings = make(map[string]model.CoinMapping, len(mappings))
	for _, m := range mappings {
		key := strings.ToLower(m.Symbol)
		if _, exists := s.mappings[key]; exists {
			continue // first mapping wins
		}
		m.Symbol = key
		s.mappings[key] = m
	}
	s.mappingsAt = time.Now()
	return nil
}

func (s *MemoryStore) MappingCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mappings), nil
}

func (s *MemoryStore) MappingsUpdatedAt() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mappingsAt, nil
}

func (s *MemoryStore) ReplaceListings(exchange string, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		set[strings.ToUpper(sym)] = true
	}
	s.listings[exchange] = set
	s.listingsAt = time.Now()
	return nil
}

func (s *MemoryStore) ListedSymbols() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for _, set := range s.listings {
		for sym := range set {
			seen[sym] = true
		}
	}
	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *MemoryStore) IsListed(symbol, exchange string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listings[exchange][strings.ToUpper(symbol)], nil
}

func (s *MemoryStore) ListingsUpdatedAt() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listingsAt, nil
}

func (s *MemoryStore) ActiveCoins() ([]model.ActiveCoin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coins := make([]model.ActiveCoin, 0, len(s.active))
	for _, c := range s.active {
		coins = append(coins, c)
	}
	sort.Slice(coins, func(i, j int) bool {
		if coins[i].Score != coins[j].Score {
			return coins[i].Score > coins[j].Score
		}
		return coins[i].Symbol < coins[j].Symbol
	})
	return coins, nil
}

func (s *MemoryStore) Reconcile(current []model.ActiveCoin) (entered, exited []model.ActiveCoin, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentKeys := make(map[string]bool, len(current))
	now := time.Now()

	for _, c := range current {
		key := activeKey(c.Symbol, c.Name)
		currentKeys[key] = true
		if prev, seen := s.active[key]; seen {
			c.EnteredAt = prev.EnteredAt
			c.LastSeenAt = now
			s.active[key] = c
		} else {
			c.EnteredAt = now
			c.LastSeenAt = now
			s.active[key] = c
			entered = append(entered, c)
		}
	}

	var gone []string
	for key := range s.active {
		if !currentKeys[key] {
			gone = append(gone, key)
		}
	}
	sort.Strings(gone)
	for _, key := range gone {
		exited = append(exited, s.active[key])
		delete(s.active, key)
	}
	return entered, exited, nil
}

func (s *MemoryStore) SaveScanHistory(runID string, coins []model.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, coins...)
	return nil
}

func (s *MemoryStore) SaveScanRun(run *model.ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *run)
	return nil
}

func (s *MemoryStore) RecentRuns(limit int) ([]model.ScanRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := append([]model.ScanRun(nil), s.runs...)
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) Close() error { return nil }
