// Package collector drives the incremental bar synchronization cycle:
// find what is missing per ticker, fetch only that delta, recompute
// indicators over enough trailing context, and append the genuinely new
// rows. One ticker failing never stops the rest of the batch.
package collector

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"go_stock_collector/models"
	"go_stock_collector/services/barstore"
	"go_stock_collector/services/indicators"
)

// ContextRows is how many already-persisted bars are blended back into
// the indicator window on intraday syncs. Forty rows cover the longest
// trailing window (20) twice over, so values at the fetch boundary match
// what a full-history recompute would produce.
const ContextRows = 40

// MarketDataSource fetches raw bars from the brokerage API.
// The intraday endpoint only serves the current trading day; since
// narrows the query within it. Implementations return errors rather
// than panicking so a bad ticker can be logged and skipped.
type MarketDataSource interface {
	FetchIntraday(ticker string, since *time.Time) ([]models.StockBar, error)
	FetchDaily(ticker string, start, end time.Time) ([]models.StockBar, error)
}

// BarPublisher is notified after rows are persisted (websocket stream,
// archive mirror). Publish failures are the publisher's problem; the
// sync result does not depend on them.
type BarPublisher interface {
	PublishBars(ticker, table string, bars []models.EnrichedBar)
}

// Progress is a snapshot of the most recent collection cycle
type Progress struct {
	Running       bool      `json:"running"`
	LastRun       time.Time `json:"last_run"`
	LastDuration  string    `json:"last_duration"`
	TickersOK     int       `json:"tickers_ok"`
	TickersFailed int       `json:"tickers_failed"`
	RowsPersisted int64     `json:"rows_persisted"`
}

// Collector owns the per-ticker synchronization workflow
type Collector struct {
	store      *barstore.Store
	source     MarketDataSource
	tickers    []string
	fetchDelay time.Duration
	publishers []BarPublisher

	mu       sync.RWMutex
	progress Progress
}

// New creates a collector for the given tickers
func New(store *barstore.Store, source MarketDataSource, tickers []string, fetchDelay time.Duration) *Collector {
	return &Collector{
		store:      store,
		source:     source,
		tickers:    tickers,
		fetchDelay: fetchDelay,
	}
}

// AddPublisher registers a publisher for newly persisted rows
func (c *Collector) AddPublisher(p BarPublisher) {
	c.publishers = append(c.publishers, p)
}

// Progress returns a snapshot of the last collection cycle
func (c *Collector) Progress() Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.progress
}

// SyncAll runs one collection cycle over every configured ticker, minute
// bars first then daily bars, pausing between source calls to respect
// upstream rate limits. Per-ticker failures are logged and skipped.
func (c *Collector) SyncAll() {
	start := time.Now()
	log.Println("Starting data collection cycle...")

	c.mu.Lock()
	c.progress = Progress{Running: true, LastRun: start}
	c.mu.Unlock()

	var ok, failed int
	var persisted int64

	for _, ticker := range c.tickers {
		tickerFailed := false
		for _, g := range []Granularity{Intraday, Daily} {
			n, err := c.Sync(ticker, g)
			if err != nil {
				log.Printf("Error syncing %s bars for '%s': %v", g, ticker, err)
				tickerFailed = true
			} else if n > 0 {
				log.Printf("'%s': stored %d new %s bars", ticker, n, g)
				persisted += int64(n)
			}
			time.Sleep(c.fetchDelay)
		}
		if tickerFailed {
			failed++
		} else {
			ok++
		}
	}

	c.mu.Lock()
	c.progress = Progress{
		Running:       false,
		LastRun:       start,
		LastDuration:  time.Since(start).Round(time.Millisecond).String(),
		TickersOK:     ok,
		TickersFailed: failed,
		RowsPersisted: persisted,
	}
	c.mu.Unlock()

	log.Printf("Collection cycle completed: ok=%d failed=%d rows=%d time=%s",
		ok, failed, persisted, time.Since(start).Round(time.Millisecond))
}

// Sync synchronizes one ticker at one granularity and returns how many
// new rows were persisted.
func (c *Collector) Sync(ticker string, g Granularity) (int, error) {
	table := g.Table()

	// A failed marker query degrades to "no marker": the cycle falls
	// back to a full-range fetch instead of halting.
	marker, err := c.store.LastTimestamp(ticker, table)
	if err != nil {
		log.Printf("Marker query failed for '%s' in %s, assuming empty: %v", ticker, table, err)
		marker = nil
	}

	fetched, err := c.fetchDelta(ticker, g, marker)
	if err != nil {
		return 0, err
	}
	if len(fetched) == 0 {
		return 0, nil
	}

	for i := range fetched {
		fetched[i].Timestamp = stripZone(fetched[i].Timestamp)
	}

	window := fetched
	if g.mergesContext() {
		recent, err := c.store.RecentBars(ticker, table, ContextRows)
		if err != nil {
			log.Printf("Context query failed for '%s' in %s, computing without history: %v", ticker, table, err)
			recent = nil
		}
		window = mergeBars(recent, fetched)
	} else {
		sortBars(window)
	}

	enriched := indicators.Compute(window)

	// Keep only rows past the marker, and only rows the engine could
	// fully enrich. Dropped cold-start rows get picked up once enough
	// trailing history has accumulated.
	newRows := make([]models.EnrichedBar, 0, len(enriched))
	for _, row := range enriched {
		if marker != nil && !row.Timestamp.After(*marker) {
			continue
		}
		if !row.Complete() {
			continue
		}
		newRows = append(newRows, row)
	}
	if len(newRows) == 0 {
		return 0, nil
	}

	n, err := c.store.Append(table, newRows)
	if err != nil {
		return 0, fmt.Errorf("append to %s failed: %w", table, err)
	}

	if n > 0 {
		for _, p := range c.publishers {
			p.PublishBars(ticker, table, newRows)
		}
	}
	return int(n), nil
}

// fetchDelta queries the source for the window this granularity is
// missing past the marker.
func (c *Collector) fetchDelta(ticker string, g Granularity, marker *time.Time) ([]models.StockBar, error) {
	now := time.Now()

	switch g {
	case Intraday:
		// The upstream minute endpoint only serves the current day. A
		// marker from a prior day means the gap in between cannot be
		// backfilled; the fetch restarts at today's open.
		var since *time.Time
		if marker != nil && sameDay(*marker, now) {
			since = marker
		}
		return c.source.FetchIntraday(ticker, since)

	case Daily:
		start := dailyEpoch
		if marker != nil {
			start = dateOf(*marker).AddDate(0, 0, 1)
		}
		today := dateOf(now)
		if start.After(today) {
			// Already caught up, nothing to query
			return nil, nil
		}
		return c.source.FetchDaily(ticker, start, today)
	}
	return nil, fmt.Errorf("unknown granularity %q", g)
}

// mergeBars unions stored context with freshly fetched bars,
// deduplicated by timestamp with the fetched row winning, sorted
// ascending.
func mergeBars(stored, fetched []models.StockBar) []models.StockBar {
	byTS := make(map[int64]models.StockBar, len(stored)+len(fetched))
	for _, b := range stored {
		byTS[b.Timestamp.UnixNano()] = b
	}
	for _, b := range fetched {
		byTS[b.Timestamp.UnixNano()] = b
	}

	merged := make([]models.StockBar, 0, len(byTS))
	for _, b := range byTS {
		merged = append(merged, b)
	}
	sortBars(merged)
	return merged
}

func sortBars(bars []models.StockBar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
}

// stripZone drops the timezone from a timestamp, keeping the wall-clock
// reading. Stored timestamps and all marker comparisons are naive.
func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
