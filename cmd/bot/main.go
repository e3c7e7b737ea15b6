package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"TrendSpotter/internal/collector"
	"TrendSpotter/internal/config"
	"TrendSpotter/internal/metrics"
	"TrendSpotter/internal/model"
	"TrendSpotter/internal/notifier"
	"TrendSpotter/internal/scanner"
	"TrendSpotter/internal/scheduler"
	"TrendSpotter/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] TrendSpotter starting...")

	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded .env")
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init store
	var st store.Store
	if cfg.Database.SQLitePath != "" {
		ss, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite store failed, using in-memory: %v", err)
			st = store.NewMemoryStore()
		} else {
			st = ss
			defer ss.Close()
		}
	} else {
		st = store.NewMemoryStore()
	}

	// Init data sources
	m := metrics.NewCollector()
	col := &collector.Collector{
		Fallback: collector.NewCoinLoreClient(cfg.Proxy),
		Dex:      collector.NewDexPaprikaClient(cfg.Proxy),
		Metrics:  m,
	}
	gecko := collector.NewGeckoClient(cfg.Proxy)
	col.History = gecko
	col.Tickers = gecko
	col.Mappings = gecko
	if cfg.API.CMCKey != "" {
		col.Quotes = collector.NewCMCClient(cfg.API.CMCKey, cfg.Proxy)
	} else {
		log.Println("[WARN] no CMC API key, quotes come from CoinLore only")
	}
	if cfg.API.ChartImgKey != "" {
		col.Chart = collector.NewChartIMGClient(cfg.API.ChartImgKey, cfg.Proxy)
	}

	listings := []collector.ListingFetcher{
		collector.NewCoinbaseListings(cfg.Proxy),
		collector.NewKrakenListings(cfg.Proxy),
		collector.NewMEXCListings(cfg.Proxy),
	}

	// Init Telegram notifier
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	// Init scanner
	sc := &scanner.Scanner{
		Config:    cfg,
		Store:     st,
		Collector: col,
		Notifier:  tn,
		Listings:  listings,
		Metrics:   m,
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, sc, st, tn, listings)
	if err := sched.RegisterAll(cfg.Schedule.ScanCron, cfg.Schedule.ListingsCron, cfg.PriceTTL()); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Println("[INFO] Telegram polling started")

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, scanning now")
		go sched.RunScanNow(model.TriggerStartup)
	}

	log.Println("[INFO] TrendSpotter is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] TrendSpotter stopped")
}
