package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"TrendSpotter/internal/collector"
	"TrendSpotter/internal/model"
	"TrendSpotter/internal/notifier"
	"TrendSpotter/internal/scanner"
	"TrendSpotter/internal/store"
)

// topCount is how many coins the /top command lists.
const topCount = 10

// ScanRunner runs one scan. Satisfied by *scanner.Scanner.
type ScanRunner interface {
	Run(ctx context.Context, trigger model.ScanTrigger) (*model.ScanReport, error)
}

// Notifier is the outbound surface for scheduled reports.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages the cron tasks and the Telegram command surface.
type Scheduler struct {
	Cron     *cron.Cron
	Scanner  ScanRunner
	Store    store.Store
	Notifier Notifier
	Listings []collector.ListingFetcher
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler with second-resolution cron.
func NewScheduler(ctx context.Context, sc ScanRunner, st store.Store, tn Notifier, listings []collector.ListingFetcher) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Scanner:  sc,
		Store:    st,
		Notifier: tn,
		Listings: listings,
		Ctx:      ctx,
	}
}

// RegisterAll registers the scan, listings refresh and cache purge tasks.
func (s *Scheduler) RegisterAll(scanCron, listingsCron string, priceTTL time.Duration) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	if _, err := s.Cron.AddFunc(listingsCron, s.listingsTask); err != nil {
		return fmt.Errorf("register listings task: %w", err)
	}
	// Hourly sweep keeps the price cache from growing unbounded.
	if _, err := s.Cron.AddFunc("0 15 * * * *", func() { s.purgeTask(priceTTL) }); err != nil {
		return fmt.Errorf("register cache purge: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunScanNow executes a scan immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunScanNow(trigger model.ScanTrigger) {
	s.runScan(trigger)
}

func (s *Scheduler) scanTask() {
	s.runScan(model.TriggerSchedule)
}

// runScan executes one scan and reports the outcome to Telegram. An
// overlapping trigger is dropped, not queued.
func (s *Scheduler) runScan(trigger model.ScanTrigger) {
	report, err := s.Scanner.Run(s.Ctx, trigger)
	if err != nil {
		if errors.Is(err, scanner.ErrScanInProgress) {
			log.Printf("[WARN] scan trigger %s dropped: %v", trigger, err)
			return
		}
		log.Printf("[ERROR] scan: %v", err)
		s.trySend(fmt.Sprintf("❌ Scan failed: %v", err))
		return
	}
	s.trySend(notifier.FormatScanSummary(report))
}

func (s *Scheduler) listingsTask() {
	log.Println("[INFO] running listings refresh")
	if err := collector.RefreshListings(s.Ctx, s.Store, s.Listings); err != nil {
		log.Printf("[ERROR] refresh listings: %v", err)
	}
}

func (s *Scheduler) purgeTask(ttl time.Duration) {
	removed, err := s.Store.PurgeStaleScores(ttl)
	if err != nil {
		log.Printf("[ERROR] purge price cache: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[INFO] purged %d stale price cache entries", removed)
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.ToLower(fields[0])
	// Group chats suffix commands with the bot name.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/scan":
		go s.runScan(model.TriggerCommand)
		return "⏳ Scan started"
	case "/status":
		active, err := s.Store.ActiveCoins()
		if err != nil {
			return fmt.Sprintf("⚠️ status unavailable: %v", err)
		}
		var last *model.ScanRun
		if runs, err := s.Store.RecentRuns(1); err == nil && len(runs) > 0 {
			last = &runs[0]
		}
		return notifier.FormatStatus(active, last)
	case "/top":
		active, err := s.Store.ActiveCoins()
		if err != nil {
			return fmt.Sprintf("⚠️ top unavailable: %v", err)
		}
		return notifier.FormatTop(active, topCount)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
