package notifier

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"TrendSpotter/internal/calculator"
	"TrendSpotter/internal/model"
)

// coinLink renders the symbol and name as a CoinMarketCap link, or as
// plain text when no slug is known.
func coinLink(symbol, name, slug string) string {
	label := fmt.Sprintf("%s (%s)", html.EscapeString(symbol), html.EscapeString(name))
	if slug == "" {
		return label
	}
	return fmt.Sprintf("<a href='https://coinmarketcap.com/currencies/%s/'>%s</a>", slug, label)
}

func exchangeEmoji(exchange string) string {
	switch exchange {
	case "coinbase":
		return "🟦"
	case "kraken":
		return "🐙"
	case "mexc":
		return "🟪"
	default:
		return "💱"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatEntry formats the notification for a coin entering the
// qualified set.
func FormatEntry(c model.Candidate) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🟢 %s\n\n", coinLink(c.Symbol, c.Name, c.Slug)))
	b.WriteString("📊 Gains:\n")
	b.WriteString(fmt.Sprintf("   7d: %+.1f%%\n", c.Gains.D7))
	b.WriteString(fmt.Sprintf("   30d: %+.1f%%\n\n", c.Gains.D30))
	b.WriteString(fmt.Sprintf("📈 Uniformity Score: %.1f/100 (%s)\n\n",
		c.Uniformity.Score, calculator.ScoreCategory(c.Uniformity.Score, c.Uniformity.TotalGain)))
	b.WriteString("💰 Exchange Volumes:\n")

	for _, exchange := range c.ListedOn {
		volume := c.ExchangeVolumes[exchange]
		if volume > 0 {
			b.WriteString(fmt.Sprintf("%s %s: $%s\n",
				exchangeEmoji(exchange), titleCase(exchange), humanize.Comma(int64(math.Round(volume)))))
		} else {
			b.WriteString(fmt.Sprintf("%s %s: No volume\n", exchangeEmoji(exchange), titleCase(exchange)))
		}
	}

	return b.String()
}

// FormatExit formats the notification for a coin leaving the
// qualified set.
func FormatExit(c model.ActiveCoin) string {
	return fmt.Sprintf("🔴 %s has left the qualified list", coinLink(c.Symbol, c.Name, c.Slug))
}

// FormatScanSummary formats the end-of-scan report.
func FormatScanSummary(report *model.ScanReport) string {
	run := report.Run
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>Scan Complete</b> | %s\n\n", run.StartedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Symbols fetched: %d\n", run.Symbols))
	b.WriteString(fmt.Sprintf("Passed gain filter: %d\n", run.GainQualified))
	b.WriteString(fmt.Sprintf("Scored: %d (%d cached)\n", run.Scored, run.CacheHits))
	b.WriteString(fmt.Sprintf("Qualified: %d\n", run.Qualified))
	b.WriteString(fmt.Sprintf("New entries: %d | Exits: %d\n", run.Entered, run.Exited))
	b.WriteString(fmt.Sprintf("Duration: %s | API calls: %d\n", run.Duration.Round(time.Second), run.APICalls))

	if len(report.Entered) > 0 {
		symbols := make([]string, 0, len(report.Entered))
		for _, c := range report.Entered {
			symbols = append(symbols, html.EscapeString(c.Symbol))
		}
		b.WriteString(fmt.Sprintf("\n🟢 In: %s\n", strings.Join(symbols, ", ")))
	}
	if len(report.Exited) > 0 {
		symbols := make([]string, 0, len(report.Exited))
		for _, c := range report.Exited {
			symbols = append(symbols, html.EscapeString(c.Symbol))
		}
		b.WriteString(fmt.Sprintf("🔴 Out: %s\n", strings.Join(symbols, ", ")))
	}

	return b.String()
}

// FormatStatus formats the current qualified set and last run for the
// /status command.
func FormatStatus(active []model.ActiveCoin, lastRun *model.ScanRun) string {
	var b strings.Builder

	b.WriteString("🤖 <b>TrendSpotter Status</b>\n\n")
	b.WriteString(fmt.Sprintf("Qualified coins: %d\n", len(active)))
	if lastRun != nil {
		b.WriteString(fmt.Sprintf("Last scan: %s (%s)\n", lastRun.StartedAt.Format("2006-01-02 15:04"), lastRun.Trigger))
		b.WriteString(fmt.Sprintf("Duration: %s | API calls: %d\n", lastRun.Duration.Round(time.Second), lastRun.APICalls))
		if lastRun.Error != "" {
			b.WriteString(fmt.Sprintf("⚠️ Last scan error: %s\n", html.EscapeString(lastRun.Error)))
		}
	} else {
		b.WriteString("Last scan: never\n")
	}

	if len(active) == 0 {
		b.WriteString("\nNo qualified coins right now.")
		return b.String()
	}

	b.WriteString("\n")
	for _, c := range active {
		b.WriteString(fmt.Sprintf("🟢 %s - %.1f/100 (7d %+.1f%%, 30d %+.1f%%)\n",
			html.EscapeString(c.Symbol), c.Score, c.Gain7d, c.Gain30d))
	}
	return b.String()
}

// FormatTop formats the best ranked qualified coins for the /top
// command.
func FormatTop(active []model.ActiveCoin, n int) string {
	if len(active) == 0 {
		return "No qualified coins right now."
	}
	if n > len(active) {
		n = len(active)
	}

	var b strings.Builder
	b.WriteString("🏆 <b>Top Qualified Coins</b>\n\n")
	for i := 0; i < n; i++ {
		c := active[i]
		b.WriteString(fmt.Sprintf("%d. %s - %.1f/100, 30d %+.1f%%, entered %s\n",
			i+1, coinLink(c.Symbol, c.Name, c.Slug), c.Score, c.Gain30d, humanize.Time(c.EnteredAt)))
	}
	return b.String()
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return strings.Join([]string{
		"🤖 <b>TrendSpotter Commands</b>",
		"",
		"/scan - run a scan now",
		"/status - qualified set and last scan",
		"/top - best ranked qualified coins",
		"/help - this message",
	}, "\n")
}
