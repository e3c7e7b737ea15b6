package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"TrendSpotter/internal/model"
)

// SQLiteStore persists scan state to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_cache (
			coin_id          TEXT PRIMARY KEY,
			prices           TEXT,
			uniformity_score REAL DEFAULT 0,
			total_gain       REAL DEFAULT 0,
			cached_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_cache_ts ON price_cache(cached_at)`,

		`CREATE TABLE IF NOT EXISTS coin_mappings (
			symbol     TEXT NOT NULL,
			coin_id    TEXT NOT NULL,
			name       TEXT,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, coin_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mappings_symbol ON coin_mappings(symbol)`,

		`CREATE TABLE IF NOT EXISTS exchange_listings (
			symbol     TEXT NOT NULL,
			exchange   TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, exchange)
		)`,

		`CREATE TABLE IF NOT EXISTS active_coins (
			symbol       TEXT NOT NULL,
			name         TEXT NOT NULL,
			gecko_id     TEXT,
			slug         TEXT,
			entered_at   INTEGER NOT NULL,
			last_seen_at INTEGER NOT NULL,
			gain_7d      REAL,
			gain_30d     REAL,
			score        REAL,
			volumes      TEXT,
			PRIMARY KEY (symbol, name)
		)`,

		`CREATE TABLE IF NOT EXISTS scan_history (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT,
			scan_date       INTEGER NOT NULL,
			symbol          TEXT,
			name            TEXT,
			gain_7d         REAL,
			gain_30d        REAL,
			score           REAL,
			coinbase_volume TEXT,
			kraken_volume   TEXT,
			mexc_volume     TEXT,
			cmc_url         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_ts ON scan_history(scan_date)`,

		`CREATE TABLE IF NOT EXISTS scan_runs (
			run_id         TEXT PRIMARY KEY,
			trigger_type   TEXT,
			started_at     INTEGER NOT NULL,
			duration_ms    INTEGER,
			symbols        INTEGER,
			gain_qualified INTEGER,
			scored         INTEGER,
			cache_hits     INTEGER,
			qualified      INTEGER,
			entered        INTEGER,
			exited         INTEGER,
			api_calls      INTEGER,
			notifications  INTEGER,
			error          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON scan_runs(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetCachedScore(coinID string, ttl time.Duration) (*model.CachedScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl).Unix()
	row := s.db.QueryRow(`SELECT prices, uniformity_score, total_gain, cached_at
		FROM price_cache WHERE coin_id = ? AND cached_at > ?`, coinID, cutoff)

	var pricesJSON string
	var cachedAt int64
	cs := &model.CachedScore{CoinID: coinID}
	if err := row.Scan(&pricesJSON, &cs.Score, &cs.TotalGain, &cachedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query price cache: %w", err)
	}
	if err := json.Unmarshal([]byte(pricesJSON), &cs.Prices); err != nil {
		return nil, fmt.Errorf("decode cached prices: %w", err)
	}
	cs.CachedAt = time.Unix(cachedAt, 0)
	return cs, nil
}

func (s *SQLiteStore) PutCachedScore(cs *model.CachedScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pricesJSON, err := json.Marshal(cs.Prices)
	if err != nil {
		return fmt.Errorf("encode prices: %w", err)
	}
	cachedAt := cs.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO price_cache
		(coin_id, prices, uniformity_score, total_gain, cached_at)
		VALUES (?,?,?,?,?)`,
		cs.CoinID, string(pricesJSON), cs.Score, cs.TotalGain, cachedAt.Unix())
	return err
}

func (s *SQLiteStore) PurgeStaleScores(ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl).Unix()
	res, err := s.db.Exec(`DELETE FROM price_cache WHERE cached_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge price cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) CacheStats(ttl time.Duration) (total, fresh int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.db.QueryRow(`SELECT COUNT(*) FROM price_cache`).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("count price cache: %w", err)
	}
	cutoff := time.Now().Add(-ttl).Unix()
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM price_cache WHERE cached_at > ?`, cutoff).Scan(&fresh); err != nil {
		return 0, 0, fmt.Errorf("count fresh cache: %w", err)
	}
	return total, fresh, nil
}

func (s *SQLiteStore) ClearPriceCache() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM price_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear price cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) GetMapping(symbol string) (*model.CoinMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT symbol, coin_id, name FROM coin_mappings
		WHERE symbol = ? ORDER BY rowid LIMIT 1`, strings.ToLower(symbol))

	m := &model.CoinMapping{}
	if err := row.Scan(&m.Symbol, &m.CoinID, &m.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query mapping: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) ReplaceMappings(mappings []model.CoinMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM coin_mappings`); err != nil {
		return fmt.Errorf("clear mappings: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO coin_mappings
		(symbol, coin_id, name, updated_at) VALUES (?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, m := range mappings {
		if _, err := stmt.Exec(strings.ToLower(m.Symbol), m.CoinID, m.Name, now); err != nil {
			return fmt.Errorf("insert mapping %s: %w", m.Symbol, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) MappingCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM coin_mappings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count mappings: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) MappingsUpdatedAt() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ts int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(updated_at), 0) FROM coin_mappings`).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("query mapping age: %w", err)
	}
	if ts == 0 {
		return time.Time{}, nil
	}
	return time.Unix(ts, 0), nil
}

func (s *SQLiteStore) ReplaceListings(exchange string, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM exchange_listings WHERE exchange = ?`, exchange); err != nil {
		return fmt.Errorf("clear listings for %s: %w", exchange, err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO exchange_listings
		(symbol, exchange, updated_at) VALUES (?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, sym := range symbols {
		if _, err := stmt.Exec(strings.ToUpper(sym), exchange, now); err != nil {
			return fmt.Errorf("insert listing %s: %w", sym, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListedSymbols() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT DISTINCT symbol FROM exchange_listings ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query listed symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *SQLiteStore) IsListed(symbol, exchange string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM exchange_listings
		WHERE symbol = ? AND exchange = ?`, strings.ToUpper(symbol), exchange).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query listing: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListingsUpdatedAt() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ts int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(updated_at), 0) FROM exchange_listings`).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("query listing age: %w", err)
	}
	if ts == 0 {
		return time.Time{}, nil
	}
	return time.Unix(ts, 0), nil
}

func (s *SQLiteStore) ActiveCoins() ([]model.ActiveCoin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCoinsLocked()
}

func (s *SQLiteStore) activeCoinsLocked() ([]model.ActiveCoin, error) {
	rows, err := s.db.Query(`SELECT symbol, name, gecko_id, slug, entered_at,
		last_seen_at, gain_7d, gain_30d, score, volumes
		FROM active_coins ORDER BY score DESC, symbol`)
	if err != nil {
		return nil, fmt.Errorf("query active coins: %w", err)
	}
	defer rows.Close()

	var coins []model.ActiveCoin
	for rows.Next() {
		var c model.ActiveCoin
		var enteredAt, lastSeenAt int64
		var volumesJSON string
		if err := rows.Scan(&c.Symbol, &c.Name, &c.GeckoID, &c.Slug,
			&enteredAt, &lastSeenAt, &c.Gain7d, &c.Gain30d, &c.Score, &volumesJSON); err != nil {
			return nil, err
		}
		c.EnteredAt = time.Unix(enteredAt, 0)
		c.LastSeenAt = time.Unix(lastSeenAt, 0)
		if volumesJSON != "" {
			if err := json.Unmarshal([]byte(volumesJSON), &c.Volumes); err != nil {
				return nil, fmt.Errorf("decode volumes for %s: %w", c.Symbol, err)
			}
		}
		coins = append(coins, c)
	}
	return coins, rows.Err()
}

func (s *SQLiteStore) Reconcile(current []model.ActiveCoin) (entered, exited []model.ActiveCoin, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.activeCoinsLocked()
	if err != nil {
		return nil, nil, err
	}
	existingByKey := make(map[string]model.ActiveCoin, len(existing))
	for _, c := range existing {
		existingByKey[activeKey(c.Symbol, c.Name)] = c
	}
	currentKeys := make(map[string]bool, len(current))
	for _, c := range current {
		currentKeys[activeKey(c.Symbol, c.Name)] = true
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, c := range current {
		volumesJSON, err := json.Marshal(c.Volumes)
		if err != nil {
			return nil, nil, fmt.Errorf("encode volumes for %s: %w", c.Symbol, err)
		}
		if _, seen := existingByKey[activeKey(c.Symbol, c.Name)]; !seen {
			c.EnteredAt = now
			c.LastSeenAt = now
			if _, err := tx.Exec(`INSERT OR REPLACE INTO active_coins
				(symbol, name, gecko_id, slug, entered_at, last_seen_at,
				 gain_7d, gain_30d, score, volumes)
				VALUES (?,?,?,?,?,?,?,?,?,?)`,
				c.Symbol, c.Name, c.GeckoID, c.Slug, now.Unix(), now.Unix(),
				c.Gain7d, c.Gain30d, c.Score, string(volumesJSON)); err != nil {
				return nil, nil, fmt.Errorf("insert active %s: %w", c.Symbol, err)
			}
			entered = append(entered, c)
		} else {
			if _, err := tx.Exec(`UPDATE active_coins SET last_seen_at = ?,
				gecko_id = ?, slug = ?, gain_7d = ?, gain_30d = ?, score = ?, volumes = ?
				WHERE symbol = ? AND name = ?`,
				now.Unix(), c.GeckoID, c.Slug, c.Gain7d, c.Gain30d, c.Score,
				string(volumesJSON), c.Symbol, c.Name); err != nil {
				return nil, nil, fmt.Errorf("update active %s: %w", c.Symbol, err)
			}
		}
	}

	for _, c := range existing {
		if currentKeys[activeKey(c.Symbol, c.Name)] {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM active_coins WHERE symbol = ? AND name = ?`,
			c.Symbol, c.Name); err != nil {
			return nil, nil, fmt.Errorf("delete active %s: %w", c.Symbol, err)
		}
		exited = append(exited, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return entered, exited, nil
}

func (s *SQLiteStore) SaveScanHistory(runID string, coins []model.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO scan_history
		(run_id, scan_date, symbol, name, gain_7d, gain_30d, score,
		 coinbase_volume, kraken_volume, mexc_volume, cmc_url)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, c := range coins {
		if _, err := stmt.Exec(runID, now, c.Symbol, c.Name,
			c.Gains.D7, c.Gains.D30, c.Uniformity.Score,
			volumeText(c.ExchangeVolumes, "coinbase"),
			volumeText(c.ExchangeVolumes, "kraken"),
			volumeText(c.ExchangeVolumes, "mexc"),
			"https://coinmarketcap.com/currencies/"+c.Slug+"/"); err != nil {
			return fmt.Errorf("insert history %s: %w", c.Symbol, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveScanRun(run *model.ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO scan_runs
		(run_id, trigger_type, started_at, duration_ms, symbols, gain_qualified,
		 scored, cache_hits, qualified, entered, exited, api_calls, notifications, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, string(run.Trigger), run.StartedAt.Unix(), run.Duration.Milliseconds(),
		run.Symbols, run.GainQualified, run.Scored, run.CacheHits,
		run.Qualified, run.Entered, run.Exited, run.APICalls, run.Notifications, run.Error)
	return err
}

func (s *SQLiteStore) RecentRuns(limit int) ([]model.ScanRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT run_id, trigger_type, started_at, duration_ms,
		symbols, gain_qualified, scored, cache_hits, qualified, entered, exited,
		api_calls, notifications, error
		FROM scan_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.ScanRun
	for rows.Next() {
		var r model.ScanRun
		var trigger string
		var startedAt, durationMs int64
		if err := rows.Scan(&r.ID, &trigger, &startedAt, &durationMs,
			&r.Symbols, &r.GainQualified, &r.Scored, &r.CacheHits,
			&r.Qualified, &r.Entered, &r.Exited, &r.APICalls,
			&r.Notifications, &r.Error); err != nil {
			return nil, err
		}
		r.Trigger = model.ScanTrigger(trigger)
		r.StartedAt = time.Unix(startedAt, 0)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}

func volumeText(volumes map[string]float64, exchange string) string {
	v, ok := volumes[exchange]
	if !ok || v == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}
