package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

const maxTimingSamples = 100

// Summary is a point-in-time snapshot of collected metrics.
type Summary struct {
	DurationSeconds float64            `json:"duration_seconds"`
	Counts          map[string]int     `json:"counts"`
	APICalls        map[string]int     `json:"api_calls"`
	CacheHits       map[string]int     `json:"cache_hits"`
	CacheMisses     map[string]int     `json:"cache_misses"`
	Errors          map[string]int     `json:"errors"`
	AvgTimings      map[string]float64 `json:"avg_timings"`
	CoinsProcessed  int                `json:"coins_processed"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Collector accumulates counters and timings for one scan run.
// Safe for concurrent use.
type Collector struct {
	mu             sync.Mutex
	startedAt      time.Time
	counts         map[string]int
	apiCalls       map[string]int
	cacheHits      map[string]int
	cacheMisses    map[string]int
	errors         map[string]int
	timings        map[string][]float64
	coinsProcessed int
}

// NewCollector returns a reset Collector.
func NewCollector() *Collector {
	c := &Collector{}
	c.Reset()
	return c
}

// Reset clears all metrics and restarts the clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startedAt = time.Now()
	c.counts = make(map[string]int)
	c.apiCalls = make(map[string]int)
	c.cacheHits = make(map[string]int)
	c.cacheMisses = make(map[string]int)
	c.errors = make(map[string]int)
	c.timings = make(map[string][]float64)
	c.coinsProcessed = 0
}

// Increment adds one to a named counter.
func (c *Collector) Increment(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
}

// APICall records one outbound call to the named service.
func (c *Collector) APICall(service string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiCalls[service]++
	c.counts["api_calls_total"]++
}

// CacheResult records a hit or miss against the named cache.
func (c *Collector) CacheResult(cache string, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.cacheHits[cache]++
		c.counts["cache_hits_total"]++
	} else {
		c.cacheMisses[cache]++
		c.counts["cache_misses_total"]++
	}
}

// Error records an error of the named type.
func (c *Collector) Error(errType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[errType]++
	c.counts["errors_total"]++
}

// AddCoinsProcessed bumps the processed-coin total.
func (c *Collector) AddCoinsProcessed(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coinsProcessed += n
}

// Time starts a timing section. The returned func stops it:
//
//	defer c.Time("history_fetch")()
func (c *Collector) Time(name string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start).Seconds()
		c.mu.Lock()
		defer c.mu.Unlock()
		samples := append(c.timings[name], elapsed)
		if len(samples) > maxTimingSamples {
			samples = samples[len(samples)-maxTimingSamples:]
		}
		c.timings[name] = samples
	}
}

// APICallTotal returns the total number of recorded API calls.
func (c *Collector) APICallTotal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts["api_calls_total"]
}

// Summary snapshots the current metrics.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	avg := make(map[string]float64, len(c.timings))
	for name, samples := range c.timings {
		if len(samples) == 0 {
			continue
		}
		total := 0.0
		for _, s := range samples {
			total += s
		}
		avg[name] = total / float64(len(samples))
	}

	return Summary{
		DurationSeconds: time.Since(c.startedAt).Seconds(),
		Counts:          copyMap(c.counts),
		APICalls:        copyMap(c.apiCalls),
		CacheHits:       copyMap(c.cacheHits),
		CacheMisses:     copyMap(c.cacheMisses),
		Errors:          copyMap(c.errors),
		AvgTimings:      avg,
		CoinsProcessed:  c.coinsProcessed,
		Timestamp:       time.Now(),
	}
}

// Report renders a human-readable summary for the log.
func (c *Collector) Report() string {
	s := c.Summary()

	var b strings.Builder
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString("METRICS REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Duration: %.2fs\n", s.DurationSeconds)
	fmt.Fprintf(&b, "Coins processed: %d\n", s.CoinsProcessed)

	if len(s.APICalls) > 0 {
		b.WriteString("API calls:\n")
		for _, service := range sortedKeys(s.APICalls) {
			fmt.Fprintf(&b, "  %s: %d\n", service, s.APICalls[service])
		}
	}

	caches := sortedKeys(s.CacheHits)
	for name := range s.CacheMisses {
		if _, ok := s.CacheHits[name]; !ok {
			caches = append(caches, name)
		}
	}
	sort.Strings(caches)
	if len(caches) > 0 {
		b.WriteString("Cache:\n")
		for _, name := range caches {
			hits := s.CacheHits[name]
			misses := s.CacheMisses[name]
			total := hits + misses
			if total == 0 {
				continue
			}
			rate := float64(hits) / float64(total) * 100
			fmt.Fprintf(&b, "  %s: %d hits, %d misses (%.1f%% hit rate)\n", name, hits, misses, rate)
		}
	}

	if len(s.Errors) > 0 {
		b.WriteString("Errors:\n")
		for _, name := range sortedKeys(s.Errors) {
			fmt.Fprintf(&b, "  %s: %d\n", name, s.Errors[name])
		}
	}

	b.WriteString(strings.Repeat("=", 50))
	return b.String()
}

// Save appends the current summary to a JSON history file, keeping the
// last 100 runs.
func (c *Collector) Save(path string) error {
	var history []Summary
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, &history); err != nil {
			history = nil
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read metrics history: %w", err)
	}

	history = append(history, c.Summary())
	if len(history) > 100 {
		history = history[len(history)-100:]
	}

	out, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func copyMap(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
