package collector

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"go_stock_collector/models"
	"go_stock_collector/services/barstore"
)

type dailyCall struct {
	ticker string
	start  time.Time
	end    time.Time
}

// fakeSource replays canned bars and records what the collector asked for
type fakeSource struct {
	intradayBars map[string][]models.StockBar
	dailyBars    map[string][]models.StockBar
	failTickers  map[string]bool

	intradaySince []*time.Time
	dailyCalls    []dailyCall
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		intradayBars: make(map[string][]models.StockBar),
		dailyBars:    make(map[string][]models.StockBar),
		failTickers:  make(map[string]bool),
	}
}

func (f *fakeSource) FetchIntraday(ticker string, since *time.Time) ([]models.StockBar, error) {
	f.intradaySince = append(f.intradaySince, since)
	if f.failTickers[ticker] {
		return nil, errors.New("upstream unavailable")
	}
	return f.intradayBars[ticker], nil
}

func (f *fakeSource) FetchDaily(ticker string, start, end time.Time) ([]models.StockBar, error) {
	f.dailyCalls = append(f.dailyCalls, dailyCall{ticker: ticker, start: start, end: end})
	if f.failTickers[ticker] {
		return nil, errors.New("upstream unavailable")
	}
	return f.dailyBars[ticker], nil
}

type recordingPublisher struct {
	tickers []string
	tables  []string
	rows    int
}

func (r *recordingPublisher) PublishBars(ticker, table string, bars []models.EnrichedBar) {
	r.tickers = append(r.tickers, ticker)
	r.tables = append(r.tables, table)
	r.rows += len(bars)
}

func openTestStore(t *testing.T) *barstore.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "bars.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.MigrateBarModels(db))
	return barstore.NewStore(db)
}

func bar(ticker string, ts time.Time, close float64, volume int64) models.StockBar {
	return models.StockBar{
		Ticker:       ticker,
		Timestamp:    ts,
		Open:         decimal.NewFromFloat(close - 1),
		High:         decimal.NewFromFloat(close + 2),
		Low:          decimal.NewFromFloat(close - 2),
		Close:        decimal.NewFromFloat(close),
		Volume:       volume,
		TradingValue: decimal.NewFromFloat(close * float64(volume)),
	}
}

// todayAt builds a naive timestamp on the current local date, matching
// how fetched bars land after zone stripping.
func todayAt(hour, min int) time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, time.UTC)
}

func daysAgo(n int) time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -n)
}

func TestDailyColdStartFetchesFullHistory(t *testing.T) {
	store := openTestStore(t)
	source := newFakeSource()
	source.dailyBars["005930"] = []models.StockBar{
		bar("005930", daysAgo(4), 100, 1000),
		bar("005930", daysAgo(3), 102, 1100),
		bar("005930", daysAgo(2), 101, 900),
		bar("005930", daysAgo(1), 104, 1200),
	}

	col := New(store, source, []string{"005930"}, 0)
	n, err := col.Sync("005930", Daily)
	require.NoError(t, err)

	// The first fetched row has no second observation for its deviation
	// window and is dropped; the rest persist.
	assert.Equal(t, 3, n)

	require.Len(t, source.dailyCalls, 1)
	assert.Equal(t, time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC), source.dailyCalls[0].start)

	marker, err := store.LastTimestamp("005930", models.TableDaily)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.True(t, marker.Equal(daysAgo(1)))
}

func TestDailySecondRunPersistsNothing(t *testing.T) {
	store := openTestStore(t)
	source := newFakeSource()
	source.dailyBars["005930"] = []models.StockBar{
		bar("005930", daysAgo(3), 100, 1000),
		bar("005930", daysAgo(2), 102, 1100),
		bar("005930", daysAgo(1), 101, 900),
	}

	col := New(store, source, []string{"005930"}, 0)
	n, err := col.Sync("005930", Daily)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Same upstream payload again: everything is at or before the marker
	n, err = col.Sync("005930", Daily)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDailyCaughtUpSkipsFetch(t *testing.T) {
	store := openTestStore(t)
	source := newFakeSource()
	source.dailyBars["005930"] = []models.StockBar{
		bar("005930", daysAgo(2), 100, 1000),
		bar("005930", daysAgo(1), 102, 1100),
		bar("005930", daysAgo(0), 101, 900),
	}

	col := New(store, source, []string{"005930"}, 0)
	_, err := col.Sync("005930", Daily)
	require.NoError(t, err)
	require.Len(t, source.dailyCalls, 1)

	// Marker is today; the next window would start tomorrow
	n, err := col.Sync("005930", Daily)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, source.dailyCalls, 1, "source queried despite being caught up")
}

func TestIntradayIncrementalSync(t *testing.T) {
	store := openTestStore(t)
	source := newFakeSource()
	source.intradayBars["005930"] = []models.StockBar{
		bar("005930", todayAt(9, 0), 100, 500),
		bar("005930", todayAt(9, 1), 101, 600),
		bar("005930", todayAt(9, 2), 102, 400),
		bar("005930", todayAt(9, 3), 103, 700),
	}

	col := New(store, source, []string{"005930"}, 0)
	n, err := col.Sync("005930", Intraday)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// No marker yet on the first pass
	require.Len(t, source.intradaySince, 1)
	assert.Nil(t, source.intradaySince[0])

	// Upstream now serves an overlapping window: a revised last bar plus
	// two new ones. Only the rows past the marker may persist.
	source.intradayBars["005930"] = []models.StockBar{
		bar("005930", todayAt(9, 3), 999, 700),
		bar("005930", todayAt(9, 4), 104, 800),
		bar("005930", todayAt(9, 5), 105, 300),
	}

	n, err = col.Sync("005930", Intraday)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The second fetch was narrowed to the marker, which is today
	require.Len(t, source.intradaySince, 2)
	require.NotNil(t, source.intradaySince[1])
	assert.True(t, source.intradaySince[1].Equal(todayAt(9, 3)))

	// The already-persisted 09:03 row was not overwritten
	bars, err := store.Bars("005930", models.TableMinute, 10)
	require.NoError(t, err)
	require.Len(t, bars, 5)
	for _, b := range bars {
		if b.Timestamp.Equal(todayAt(9, 3)) {
			assert.True(t, b.Close.Equal(decimal.NewFromFloat(103)),
				"persisted row replaced by refetched duplicate")
		}
	}
}

func TestIntradayStaleMarkerRestartsAtOpen(t *testing.T) {
	store := openTestStore(t)
	source := newFakeSource()

	// Seed yesterday's session
	yesterday := daysAgo(1)
	source.intradayBars["005930"] = []models.StockBar{
		bar("005930", yesterday.Add(9*time.Hour), 100, 500),
		bar("005930", yesterday.Add(9*time.Hour+time.Minute), 101, 600),
	}
	col := New(store, source, []string{"005930"}, 0)
	_, err := col.Sync("005930", Intraday)
	require.NoError(t, err)

	// The marker is from a prior day, so the next fetch cannot narrow
	source.intradayBars["005930"] = []models.StockBar{
		bar("005930", todayAt(9, 0), 102, 400),
		bar("005930", todayAt(9, 1), 103, 700),
	}
	_, err = col.Sync("005930", Intraday)
	require.NoError(t, err)

	require.Len(t, source.intradaySince, 2)
	assert.Nil(t, source.intradaySince[1], "since sent despite stale marker")
}

func TestIntradayContextMergeCompletesColdStartRows(t *testing.T) {
	store := openTestStore(t)
	source := newFakeSource()
	source.intradayBars["005930"] = []models.StockBar{
		bar("005930", todayAt(9, 0), 100, 500),
		bar("005930", todayAt(9, 1), 101, 600),
	}

	col := New(store, source, []string{"005930"}, 0)
	n, err := col.Sync("005930", Intraday)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// A single new bar past the marker has stored context behind it, so
	// its deviation window is populated and it persists.
	source.intradayBars["005930"] = []models.StockBar{
		bar("005930", todayAt(9, 2), 102, 400),
	}
	n, err = col.Sync("005930", Intraday)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	latest, err := store.LatestBar("005930", models.TableMinute)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Timestamp.Equal(todayAt(9, 2)))
	assert.True(t, latest.Complete())
}

func TestSyncNormalizesTimezones(t *testing.T) {
	store := openTestStore(t)
	source := newFakeSource()

	seoul := time.FixedZone("KST", 9*3600)
	now := time.Now()
	zoned := time.Date(now.Year(), now.Month(), now.Day(), 10, 30, 0, 0, seoul)
	source.intradayBars["005930"] = []models.StockBar{
		bar("005930", zoned.Add(-time.Minute), 100, 500),
		bar("005930", zoned, 101, 600),
	}

	col := New(store, source, []string{"005930"}, 0)
	n, err := col.Sync("005930", Intraday)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// The wall-clock reading survives, the offset does not
	latest, err := store.LatestBar("005930", models.TableMinute)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Timestamp.Equal(todayAt(10, 30)))
}

func TestSyncAllContinuesPastFailingTicker(t *testing.T) {
	store := openTestStore(t)
	source := newFakeSource()
	source.failTickers["000001"] = true
	source.dailyBars["005930"] = []models.StockBar{
		bar("005930", daysAgo(2), 100, 1000),
		bar("005930", daysAgo(1), 102, 1100),
	}

	col := New(store, source, []string{"000001", "005930"}, 0)
	col.SyncAll()

	progress := col.Progress()
	assert.False(t, progress.Running)
	assert.Equal(t, 1, progress.TickersOK)
	assert.Equal(t, 1, progress.TickersFailed)
	assert.Equal(t, int64(1), progress.RowsPersisted)

	// The healthy ticker still got its rows
	marker, err := store.LastTimestamp("005930", models.TableDaily)
	require.NoError(t, err)
	assert.NotNil(t, marker)
}

func TestSyncPublishesPersistedRows(t *testing.T) {
	store := openTestStore(t)
	source := newFakeSource()
	source.dailyBars["005930"] = []models.StockBar{
		bar("005930", daysAgo(3), 100, 1000),
		bar("005930", daysAgo(2), 102, 1100),
		bar("005930", daysAgo(1), 101, 900),
	}

	pub := &recordingPublisher{}
	col := New(store, source, []string{"005930"}, 0)
	col.AddPublisher(pub)

	n, err := col.Sync("005930", Daily)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Len(t, pub.tickers, 1)
	assert.Equal(t, "005930", pub.tickers[0])
	assert.Equal(t, models.TableDaily, pub.tables[0])
	assert.Equal(t, 2, pub.rows)

	// A no-op cycle publishes nothing
	_, err = col.Sync("005930", Daily)
	require.NoError(t, err)
	assert.Len(t, pub.tickers, 1)
}

func TestSyncRejectsUnknownGranularity(t *testing.T) {
	store := openTestStore(t)
	col := New(store, newFakeSource(), nil, 0)

	_, err := col.Sync("005930", Granularity("weekly"))
	assert.Error(t, err)
}

func TestMergeBarsFetchedWins(t *testing.T) {
	ts := todayAt(9, 0)
	stored := []models.StockBar{
		bar("005930", ts, 100, 500),
		bar("005930", ts.Add(time.Minute), 101, 600),
	}
	fetched := []models.StockBar{
		bar("005930", ts.Add(time.Minute), 999, 700),
		bar("005930", ts.Add(2*time.Minute), 102, 400),
	}

	merged := mergeBars(stored, fetched)
	require.Len(t, merged, 3)
	assert.True(t, merged[0].Timestamp.Equal(ts))
	assert.True(t, merged[1].Close.Equal(decimal.NewFromFloat(999)))
	assert.True(t, merged[2].Timestamp.Equal(ts.Add(2*time.Minute)))
}
