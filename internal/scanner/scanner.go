package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"TrendSpotter/internal/calculator"
	"TrendSpotter/internal/collector"
	"TrendSpotter/internal/config"
	"TrendSpotter/internal/metrics"
	"TrendSpotter/internal/model"
	"TrendSpotter/internal/notifier"
	"TrendSpotter/internal/store"
)

// ErrScanInProgress is returned when a trigger arrives while another
// scan is still running.
var ErrScanInProgress = errors.New("scan already in progress")

// chartExchange is the feed tried first when rendering entry charts.
const chartExchange = "mexc"

// defaultSymbols keeps a scan meaningful when no exchange listings
// could be loaded at all.
var defaultSymbols = []string{"BTC", "ETH", "SOL", "XRP"}

// Notifier is the outbound message surface the scanner needs. A nil
// Notifier disables notifications.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
	SendPhotoWithRetry(ctx context.Context, photo []byte, caption string, maxRetries int) error
}

// Scanner runs the filter pipeline: ranked quotes, exchange listings,
// gain filter, per-exchange volumes, uniformity scoring, qualified-set
// reconciliation and notifications.
type Scanner struct {
	Config    *config.Config
	Store     store.Store
	Collector *collector.Collector
	Notifier  Notifier
	Listings  []collector.ListingFetcher
	Metrics   *metrics.Collector

	mu sync.Mutex
}

// Run executes one scan. Concurrent triggers get ErrScanInProgress.
func (s *Scanner) Run(ctx context.Context, trigger model.ScanTrigger) (*model.ScanReport, error) {
	if !s.mu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.mu.Unlock()

	if s.Metrics == nil {
		s.Metrics = metrics.NewCollector()
	}
	s.Metrics.Reset()

	run := model.ScanRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
	log.Printf("[INFO] scan %s started (trigger: %s)", run.ID, trigger)

	report, err := s.scan(ctx, &run)

	run.Duration = time.Since(run.StartedAt)
	run.APICalls = s.Metrics.APICallTotal()
	if err != nil {
		run.Error = err.Error()
		s.Metrics.Error("scan")
	}
	if saveErr := s.Store.SaveScanRun(&run); saveErr != nil {
		log.Printf("[ERROR] save scan run: %v", saveErr)
	}
	if err != nil {
		return nil, err
	}
	report.Run = run

	log.Printf("[INFO] filter summary: %d symbols, %d gain qualified, %d scored (%d cached), %d uniformity passed, %d entered, %d exited",
		run.Symbols, run.GainQualified, run.Scored, run.CacheHits, run.Qualified, run.Entered, run.Exited)
	log.Print(s.Metrics.Report())
	if s.Config.MetricsFile != "" {
		if saveErr := s.Metrics.Save(s.Config.MetricsFile); saveErr != nil {
			log.Printf("[WARN] save metrics: %v", saveErr)
		}
	}
	log.Printf("[INFO] scan %s finished in %s", run.ID, run.Duration.Round(time.Millisecond))
	return report, nil
}

func (s *Scanner) scan(ctx context.Context, run *model.ScanRun) (*model.ScanReport, error) {
	cfg := s.Config
	defer s.Metrics.Time("scan_total")()

	// Ranked quotes with gain data.
	stop := s.Metrics.Time("fetch_quotes")
	quotes, err := s.Collector.FetchQuotes(ctx, cfg.Scan.QuoteLimit)
	stop()
	if err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}
	run.Symbols = len(quotes)

	quoteBySymbol := make(map[string]model.CoinQuote, len(quotes))
	for _, q := range quotes {
		symbol := strings.ToUpper(q.Symbol)
		if symbol == "" {
			continue
		}
		// Duplicate symbols keep the higher ranked coin.
		if _, ok := quoteBySymbol[symbol]; !ok {
			quoteBySymbol[symbol] = q
		}
	}
	log.Printf("[INFO] got %d quotes (%d unique symbols)", len(quotes), len(quoteBySymbol))

	// Symbol universe from exchange listings.
	symbols := s.symbolUniverse(ctx)

	// Filter 1: stablecoins out, volume floor, gain thresholds.
	var gainQualified []model.Candidate
	deferred := make(map[string]bool)
	for _, symbol := range symbols {
		q, ok := quoteBySymbol[strings.ToUpper(symbol)]
		if !ok {
			continue
		}
		if IsStablecoin(q.Symbol) {
			continue
		}
		if !CheckVolume(q, cfg.Scan.MinVolume) {
			continue
		}
		pass, defer30 := CheckGains(q.Gains, cfg.Scan.MinGain7d, cfg.Scan.MinGain30d)
		if !pass {
			continue
		}
		if defer30 {
			deferred[strings.ToUpper(q.Symbol)] = true
		}
		gainQualified = append(gainQualified, model.Candidate{CoinQuote: q})
		s.Metrics.AddCoinsProcessed(1)
	}
	run.GainQualified = len(gainQualified)
	log.Printf("[INFO] gain filter passed: %d of %d listed symbols", len(gainQualified), len(symbols))
	if len(gainQualified) == 0 {
		return &model.ScanReport{}, nil
	}

	// Annotate which target exchanges list each coin.
	for i := range gainQualified {
		var listedOn []string
		for _, exchange := range cfg.Scan.TargetExchanges {
			listed, err := s.Store.IsListed(gainQualified[i].Symbol, exchange)
			if err != nil {
				log.Printf("[WARN] listing lookup %s/%s: %v", gainQualified[i].Symbol, exchange, err)
				continue
			}
			if listed {
				listedOn = append(listedOn, exchange)
			}
		}
		gainQualified[i].ListedOn = listedOn
	}

	// Map symbols to coin ids; unmapped coins drop out.
	if err := s.ensureMappings(ctx); err != nil {
		return nil, fmt.Errorf("coin mappings: %w", err)
	}
	var mapped []model.Candidate
	for _, c := range gainQualified {
		m, err := s.Store.GetMapping(c.Symbol)
		if err != nil {
			log.Printf("[WARN] mapping lookup %s: %v", c.Symbol, err)
			continue
		}
		if m == nil {
			log.Printf("[INFO] no coin id for %s, dropping", c.Symbol)
			continue
		}
		c.GeckoID = m.CoinID
		mapped = append(mapped, c)
	}
	if len(mapped) == 0 {
		log.Printf("[WARN] no gain-qualified coins could be mapped to coin ids")
		return &model.ScanReport{}, nil
	}

	// Per-exchange volumes for the notification captions.
	stop = s.Metrics.Time("exchange_volumes")
	for i := range mapped {
		volumes, err := s.Collector.ExchangeVolumes(ctx, mapped[i].GeckoID, cfg.Scan.TargetExchanges)
		if err != nil {
			if ctx.Err() != nil {
				stop()
				return nil, ctx.Err()
			}
			log.Printf("[WARN] exchange volumes for %s: %v", mapped[i].Symbol, err)
			volumes = map[string]float64{}
		}
		mapped[i].ExchangeVolumes = volumes
	}
	stop()

	// Filter 2: uniformity scoring, cache first.
	scored := s.scoreCandidates(ctx, run, mapped, deferred)
	run.Scored = len(scored)

	var qualified []model.Candidate
	for _, c := range scored {
		if c.Uniformity.Score >= cfg.Scan.UniformityMinScore && c.Uniformity.TotalGain > 0 {
			qualified = append(qualified, c)
		}
	}
	run.Qualified = len(qualified)

	// Rank best first; ties break on gain, then symbol for stable output.
	sort.SliceStable(qualified, func(i, j int) bool {
		a, b := qualified[i], qualified[j]
		if a.Uniformity.Score != b.Uniformity.Score {
			return a.Uniformity.Score > b.Uniformity.Score
		}
		if a.Uniformity.TotalGain != b.Uniformity.TotalGain {
			return a.Uniformity.TotalGain > b.Uniformity.TotalGain
		}
		return a.Symbol < b.Symbol
	})

	// Reconcile the qualified set; an empty result exits everything.
	current := make([]model.ActiveCoin, 0, len(qualified))
	for _, c := range qualified {
		current = append(current, toActiveCoin(c))
	}
	entered, exited, err := s.Store.Reconcile(current)
	if err != nil {
		return nil, fmt.Errorf("reconcile active set: %w", err)
	}
	run.Entered = len(entered)
	run.Exited = len(exited)

	// Entered coins in rank order, with their full candidate data.
	var enteredCandidates []model.Candidate
	for _, c := range qualified {
		for _, a := range entered {
			if a.Symbol == c.Symbol && a.Name == c.Name {
				enteredCandidates = append(enteredCandidates, c)
				break
			}
		}
	}

	if s.Notifier != nil {
		s.notify(ctx, run, enteredCandidates, exited)
	}

	if len(qualified) > 0 {
		if err := s.Store.SaveScanHistory(run.ID, qualified); err != nil {
			log.Printf("[ERROR] save scan history: %v", err)
		}
	}

	return &model.ScanReport{
		Qualified: qualified,
		Entered:   enteredCandidates,
		Exited:    exited,
	}, nil
}

// symbolUniverse returns every symbol listed on the target exchanges,
// refreshing the stored listings when they are missing or stale.
func (s *Scanner) symbolUniverse(ctx context.Context) []string {
	symbols, err := s.Store.ListedSymbols()
	if err != nil {
		log.Printf("[WARN] read exchange listings: %v", err)
	}

	stale := false
	if updatedAt, err := s.Store.ListingsUpdatedAt(); err == nil && !updatedAt.IsZero() {
		stale = time.Since(updatedAt) >= s.Config.ListingTTL()
	}

	if (len(symbols) == 0 || stale) && len(s.Listings) > 0 {
		log.Printf("[INFO] refreshing exchange listings (have %d symbols, stale=%v)", len(symbols), stale)
		if err := collector.RefreshListings(ctx, s.Store, s.Listings); err != nil {
			log.Printf("[WARN] refresh listings: %v", err)
		}
		if refreshed, err := s.Store.ListedSymbols(); err == nil && len(refreshed) > 0 {
			symbols = refreshed
		}
	}

	if len(symbols) == 0 {
		log.Printf("[WARN] no exchange listings available, using default symbol set")
		symbols = defaultSymbols
	}
	return symbols
}

// ensureMappings refreshes the symbol to coin id catalog when it is
// empty or stale. A failed refresh keeps existing rows usable.
func (s *Scanner) ensureMappings(ctx context.Context) error {
	count, err := s.Store.MappingCount()
	if err != nil {
		return err
	}
	stale := false
	if updatedAt, err := s.Store.MappingsUpdatedAt(); err == nil && !updatedAt.IsZero() {
		stale = time.Since(updatedAt) >= s.Config.MappingTTL()
	}
	if count > 0 && !stale {
		return nil
	}

	log.Printf("[INFO] refreshing coin mappings (have %d, stale=%v)", count, stale)
	mappings, err := s.Collector.FetchMappings(ctx)
	if err != nil {
		if count > 0 {
			log.Printf("[WARN] mapping refresh failed, keeping %d existing: %v", count, err)
			return nil
		}
		return err
	}
	return s.Store.ReplaceMappings(mappings)
}

// scoreCandidates resolves a uniformity score for each candidate from
// the price cache or fresh history. Coins whose source served no 30d
// gain get it verified from the same history. Rate-limited coins are
// skipped and retried on the next scan.
func (s *Scanner) scoreCandidates(ctx context.Context, run *model.ScanRun, candidates []model.Candidate, deferred map[string]bool) []model.Candidate {
	cfg := s.Config
	cacheTTL := cfg.PriceTTL()
	period := cfg.Scan.UniformityPeriod

	var scored []model.Candidate
	for _, c := range candidates {
		if ctx.Err() != nil {
			log.Printf("[WARN] scoring interrupted: %v", ctx.Err())
			break
		}

		cached, err := s.Store.GetCachedScore(c.GeckoID, cacheTTL)
		if err != nil {
			log.Printf("[WARN] score cache read %s: %v", c.GeckoID, err)
		}
		if cached != nil {
			s.Metrics.CacheResult("price", true)
			run.CacheHits++
			c.Uniformity = model.ScoreResult{Score: cached.Score, TotalGain: cached.TotalGain}
			c.FromCache = true
			if deferred[strings.ToUpper(c.Symbol)] && !s.verifyDeferredGains(&c, cached.Prices) {
				continue
			}
			log.Printf("[INFO] %s: cached score %.1f", c.Symbol, cached.Score)
			scored = append(scored, c)
			continue
		}
		s.Metrics.CacheResult("price", false)

		stop := s.Metrics.Time("price_history")
		prices, err := s.Collector.DailyPrices(ctx, c.GeckoID, c.Symbol, period)
		stop()
		if err != nil {
			if errors.Is(err, collector.ErrRateLimited) {
				log.Printf("[INFO] %s rate limited, retrying next scan", c.Symbol)
			} else {
				log.Printf("[WARN] price history for %s: %v", c.Symbol, err)
			}
			continue
		}
		if len(prices) < period {
			log.Printf("[INFO] %s: only %d price samples, need %d", c.Symbol, len(prices), period)
			continue
		}
		if deferred[strings.ToUpper(c.Symbol)] && !s.verifyDeferredGains(&c, prices) {
			continue
		}

		score, gain := calculator.CalculateUniformity(prices, period)
		c.Uniformity = model.ScoreResult{Score: score, TotalGain: gain}
		if err := s.Store.PutCachedScore(&model.CachedScore{
			CoinID:    c.GeckoID,
			Prices:    prices,
			Score:     score,
			TotalGain: gain,
			CachedAt:  time.Now(),
		}); err != nil {
			log.Printf("[WARN] cache score %s: %v", c.GeckoID, err)
		}
		log.Printf("[INFO] %s scored %.1f (%s), return %+.1f%%",
			c.Symbol, score, calculator.ScoreCategory(score, gain), gain)
		scored = append(scored, c)
	}
	return scored
}

// verifyDeferredGains backfills 7d/30d gains from price history for
// coins whose quote source served none, then re-applies the
// thresholds.
func (s *Scanner) verifyDeferredGains(c *model.Candidate, prices []float64) bool {
	gains, ok := calculator.GainsFromPrices(prices)
	if !ok {
		log.Printf("[INFO] %s: not enough history to verify gains", c.Symbol)
		return false
	}
	if gains.D7 <= s.Config.Scan.MinGain7d || gains.D30 <= s.Config.Scan.MinGain30d {
		log.Printf("[INFO] %s failed deferred gain check (7d %+.1f%%, 30d %+.1f%%)",
			c.Symbol, gains.D7, gains.D30)
		return false
	}
	c.Gains.D7 = gains.D7
	c.Gains.D30 = gains.D30
	return true
}

// notify sends entry and exit messages, attaching a chart image to
// entries when a chart provider is configured.
func (s *Scanner) notify(ctx context.Context, run *model.ScanRun, entered []model.Candidate, exited []model.ActiveCoin) {
	maxRetries := s.Config.Retry.MaxAttempts

	for _, c := range entered {
		caption := notifier.FormatEntry(c)
		sent := false

		if s.Collector.Chart != nil {
			png, err := s.Collector.ChartImage(ctx, c.Symbol, chartExchange)
			if err != nil {
				log.Printf("[WARN] chart for %s: %v", c.Symbol, err)
			} else if err := s.Notifier.SendPhotoWithRetry(ctx, png, caption, maxRetries); err != nil {
				log.Printf("[ERROR] send entry photo for %s: %v", c.Symbol, err)
			} else {
				sent = true
			}
		}
		if !sent {
			if err := s.Notifier.SendWithRetry(ctx, caption, maxRetries); err != nil {
				log.Printf("[ERROR] send entry for %s: %v", c.Symbol, err)
				s.Metrics.Error("notification")
				continue
			}
		}
		run.Notifications++
		s.Metrics.Increment("notifications_sent")
	}

	for _, c := range exited {
		if err := s.Notifier.SendWithRetry(ctx, notifier.FormatExit(c), maxRetries); err != nil {
			log.Printf("[ERROR] send exit for %s: %v", c.Symbol, err)
			s.Metrics.Error("notification")
			continue
		}
		run.Notifications++
		s.Metrics.Increment("notifications_sent")
	}
}

func toActiveCoin(c model.Candidate) model.ActiveCoin {
	return model.ActiveCoin{
		Symbol:  c.Symbol,
		Name:    c.Name,
		GeckoID: c.GeckoID,
		Slug:    c.Slug,
		Gain7d:  c.Gains.D7,
		Gain30d: c.Gains.D30,
		Score:   c.Uniformity.Score,
		Volumes: c.ExchangeVolumes,
	}
}
