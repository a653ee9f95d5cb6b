package kisapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchIntradayParsesBars(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		assert.Equal(t, "test-key", r.Header.Get("appkey"))
		assert.Equal(t, "test-secret", r.Header.Get("appsecret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ticker": "005930",
			"bars": [
				{"time": "2025-03-10T09:00:00+09:00", "open": 100, "high": 102, "low": 99, "close": 101, "volume": 500, "amount": 50500},
				{"time": "2025-03-10T09:01:00+09:00", "open": 101, "high": 103, "low": 100, "close": 102, "volume": 600, "amount": 61200}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-secret")
	since := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	bars, err := client.FetchIntraday("005930", &since)
	require.NoError(t, err)

	assert.Equal(t, "/uapi/chart/v1/minute", gotPath)
	assert.Equal(t, "005930", gotQuery["ticker"][0])
	assert.NotEmpty(t, gotQuery["start"])

	require.Len(t, bars, 2)
	assert.Equal(t, "005930", bars[0].Ticker)
	assert.True(t, bars[0].Close.Equal(decimal.NewFromFloat(101)))
	assert.Equal(t, int64(500), bars[0].Volume)

	// The exchange offset comes through untouched; the collector strips it
	seoul := time.FixedZone("KST", 9*3600)
	assert.True(t, bars[0].Timestamp.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, seoul)))
}

func TestFetchIntradayWithoutSince(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("start"))
		w.Write([]byte(`{"ticker": "005930", "bars": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "s")
	bars, err := client.FetchIntraday("005930", nil)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestFetchDailyParsesDates(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{
			"ticker": "005930",
			"bars": [
				{"date": "2025-03-07", "open": 100, "high": 105, "low": 98, "close": 104, "volume": 10000, "amount": 1040000}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "s")
	start := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	bars, err := client.FetchDaily("005930", start, end)
	require.NoError(t, err)

	assert.Equal(t, "1980-01-01", gotQuery["start"][0])
	assert.Equal(t, "2025-03-10", gotQuery["end"][0])

	require.Len(t, bars, 1)
	assert.True(t, bars[0].Timestamp.Equal(time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)))
	assert.True(t, bars[0].TradingValue.Equal(decimal.NewFromFloat(1040000)))
}

func TestFetchDailyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "s")
	_, err := client.FetchDaily("005930", time.Now().AddDate(0, 0, -1), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFetchIntradayBadTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ticker": "005930", "bars": [{"time": "not-a-time", "close": 1}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "s")
	_, err := client.FetchIntraday("005930", nil)
	assert.Error(t, err)
}
