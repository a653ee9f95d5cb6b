// Package kisapi is the brokerage chart-data client. It only covers the
// two history endpoints the collector needs; order and balance APIs are
// out of scope for this service.
package kisapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"go_stock_collector/models"
)

const (
	minuteChartPath = "/uapi/chart/v1/minute"
	dailyChartPath  = "/uapi/chart/v1/daily"

	dateFormat = "2006-01-02"
)

// Client talks to the brokerage open API. Failures come back as errors
// for the caller to log and skip; the client never panics on bad data.
type Client struct {
	baseURL    string
	appKey     string
	appSecret  string
	httpClient *http.Client
}

// NewClient creates a brokerage API client
func NewClient(baseURL, appKey, appSecret string) *Client {
	return &Client{
		baseURL:   baseURL,
		appKey:    appKey,
		appSecret: appSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ChartResponse represents the chart API response
type ChartResponse struct {
	Ticker string     `json:"ticker"`
	Bars   []ChartBar `json:"bars"`
}

// ChartBar is one bar as returned by the API. Minute bars carry an
// RFC3339 time with the exchange offset; daily bars carry a plain date.
type ChartBar struct {
	Time   string  `json:"time"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	Amount float64 `json:"amount"`
}

// FetchIntraday fetches today's minute bars for a ticker. The upstream
// endpoint only serves the current trading day; when since is set the
// query is narrowed to bars at or after it.
func (c *Client) FetchIntraday(ticker string, since *time.Time) ([]models.StockBar, error) {
	params := url.Values{}
	params.Set("ticker", ticker)
	if since != nil {
		params.Set("start", since.Format(time.RFC3339))
	}

	resp, err := c.get(minuteChartPath, params)
	if err != nil {
		return nil, fmt.Errorf("minute chart request for %s failed: %w", ticker, err)
	}

	bars := make([]models.StockBar, 0, len(resp.Bars))
	for _, rb := range resp.Bars {
		ts, err := time.Parse(time.RFC3339, rb.Time)
		if err != nil {
			return nil, fmt.Errorf("invalid bar time %q for %s: %w", rb.Time, ticker, err)
		}
		bars = append(bars, toStockBar(ticker, ts, rb))
	}
	return bars, nil
}

// FetchDaily fetches daily bars for a ticker over a closed date range.
func (c *Client) FetchDaily(ticker string, start, end time.Time) ([]models.StockBar, error) {
	params := url.Values{}
	params.Set("ticker", ticker)
	params.Set("start", start.Format(dateFormat))
	params.Set("end", end.Format(dateFormat))

	resp, err := c.get(dailyChartPath, params)
	if err != nil {
		return nil, fmt.Errorf("daily chart request for %s failed: %w", ticker, err)
	}

	bars := make([]models.StockBar, 0, len(resp.Bars))
	for _, rb := range resp.Bars {
		ts, err := time.Parse(dateFormat, rb.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid bar date %q for %s: %w", rb.Date, ticker, err)
		}
		bars = append(bars, toStockBar(ticker, ts, rb))
	}
	return bars, nil
}

func (c *Client) get(path string, params url.Values) (*ChartResponse, error) {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chartResp ChartResponse
	if err := json.Unmarshal(body, &chartResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &chartResp, nil
}

func toStockBar(ticker string, ts time.Time, rb ChartBar) models.StockBar {
	return models.StockBar{
		Ticker:       ticker,
		Timestamp:    ts,
		Open:         decimal.NewFromFloat(rb.Open),
		High:         decimal.NewFromFloat(rb.High),
		Low:          decimal.NewFromFloat(rb.Low),
		Close:        decimal.NewFromFloat(rb.Close),
		Volume:       rb.Volume,
		TradingValue: decimal.NewFromFloat(rb.Amount),
	}
}
