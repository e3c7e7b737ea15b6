package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"TrendSpotter/internal/collector"
	"TrendSpotter/internal/config"
	"TrendSpotter/internal/metrics"
	"TrendSpotter/internal/model"
	"TrendSpotter/internal/scanner"
	"TrendSpotter/internal/store"
)

func main() {
	godotenv.Load()

	app := &cli.App{
		Name:  "scanctl",
		Usage: "run and inspect trend scans from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/config.yaml",
				Usage:   "config file path",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "scan",
				Usage:  "run one scan and print the ranked results",
				Action: runScan,
			},
			{
				Name:   "status",
				Usage:  "show the qualified set and recent runs",
				Action: runStatus,
			},
			{
				Name:   "listings",
				Usage:  "refresh exchange listings",
				Action: runListings,
			},
			{
				Name:  "cache",
				Usage: "price cache maintenance",
				Subcommands: []*cli.Command{
					{Name: "stats", Usage: "show cache usage", Action: runCacheStats},
					{Name: "clear", Usage: "drop all cached price history", Action: runCacheClear},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

// setup loads config and opens the store. Telegram credentials are not
// required here; results go to stdout.
func setup(c *cli.Context) (*config.Config, store.Store, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	st, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, st, nil
}

func newCollector(cfg *config.Config, m *metrics.Collector) *collector.Collector {
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
	}
	return col
}

func listingFetchers(cfg *config.Config) []collector.ListingFetcher {
	return []collector.ListingFetcher{
		collector.NewCoinbaseListings(cfg.Proxy),
		collector.NewKrakenListings(cfg.Proxy),
		collector.NewMEXCListings(cfg.Proxy),
	}
}

func runScan(c *cli.Context) error {
	cfg, st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewCollector()
	sc := &scanner.Scanner{
		Config:    cfg,
		Store:     st,
		Collector: newCollector(cfg, m),
		Listings:  listingFetchers(cfg),
		Metrics:   m,
	}

	report, err := sc.Run(ctx, model.TriggerManual)
	if err != nil {
		return err
	}

	run := report.Run
	fmt.Printf("scanned %d symbols, %d passed gains, %d scored, %d qualified (%s, %d API calls)\n\n",
		run.Symbols, run.GainQualified, run.Scored, run.Qualified,
		run.Duration.Round(time.Second), run.APICalls)

	if len(report.Qualified) == 0 {
		color.Yellow("no coins qualified")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSYMBOL\tNAME\tSCORE\t7D\t30D\t24H VOLUME")
	for i, coin := range report.Qualified {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%+.1f%%\t%+.1f%%\t$%s\n",
			i+1, coin.Symbol, coin.Name, coin.Uniformity.Score,
			coin.Gains.D7, coin.Gains.D30, humanize.Comma(int64(coin.Volume24h)))
	}
	w.Flush()
	fmt.Println()

	for _, coin := range report.Entered {
		color.Green("+ %s entered the qualified list", coin.Symbol)
	}
	for _, coin := range report.Exited {
		color.Red("- %s left the qualified list", coin.Symbol)
	}
	return nil
}

func runStatus(c *cli.Context) error {
	_, st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.Close()

	active, err := st.ActiveCoins()
	if err != nil {
		return err
	}
	if len(active) == 0 {
		color.Yellow("no qualified coins right now")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tSCORE\t7D\t30D\tENTERED")
		for _, coin := range active {
			fmt.Fprintf(w, "%s\t%.1f\t%+.1f%%\t%+.1f%%\t%s\n",
				coin.Symbol, coin.Score, coin.Gain7d, coin.Gain30d, humanize.Time(coin.EnteredAt))
		}
		w.Flush()
	}

	runs, err := st.RecentRuns(5)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}
	fmt.Println("\nrecent scans:")
	for _, run := range runs {
		line := fmt.Sprintf("%s  %-8s  %d qualified  %s  %d API calls",
			run.StartedAt.Format("2006-01-02 15:04"), run.Trigger,
			run.Qualified, run.Duration.Round(time.Second), run.APICalls)
		if run.Error != "" {
			color.Red("%s  error: %s", line, run.Error)
		} else {
			fmt.Println(line)
		}
	}
	return nil
}

func runListings(c *cli.Context) error {
	cfg, st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetchers := listingFetchers(cfg)
	if err := collector.RefreshListings(ctx, st, fetchers); err != nil {
		return err
	}
	symbols, err := st.ListedSymbols()
	if err != nil {
		return err
	}
	color.Green("listings updated: %d symbols across %d exchanges", len(symbols), len(fetchers))
	return nil
}

func runCacheStats(c *cli.Context) error {
	cfg, st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.Close()

	total, fresh, err := st.CacheStats(cfg.PriceTTL())
	if err != nil {
		return err
	}
	fmt.Printf("price cache: %d entries, %d fresh within %s\n", total, fresh, cfg.Cache.PriceTTL)
	return nil
}

func runCacheClear(c *cli.Context) error {
	_, st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.ClearPriceCache()
	if err != nil {
		return err
	}
	color.Yellow("cleared %d cached price entries", n)
	return nil
}
