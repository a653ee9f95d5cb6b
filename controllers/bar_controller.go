package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go_stock_collector/services/barstore"
	"go_stock_collector/services/collector"
)

const (
	defaultBarLimit = 100
	maxBarLimit     = 1000
)

// BarController serves read-only bar and indicator queries
type BarController struct {
	store *barstore.Store
}

// NewBarController creates a bar controller
func NewBarController(store *barstore.Store) *BarController {
	return &BarController{store: store}
}

// GetTickers returns per-ticker row counts for a granularity
// GET /api/v1/tickers?granularity=daily
func (bc *BarController) GetTickers(c *gin.Context) {
	g, ok := granularityParam(c)
	if !ok {
		return
	}

	counts, err := bc.store.TickerCounts(g.Table())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"granularity": g,
		"tickers":     counts,
	})
}

// GetBars returns the newest enriched bars for a ticker, ascending
// GET /api/v1/bars/:ticker?granularity=intraday&limit=100
func (bc *BarController) GetBars(c *gin.Context) {
	ticker := c.Param("ticker")
	g, ok := granularityParam(c)
	if !ok {
		return
	}

	limit := defaultBarLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "limit must be a positive integer"})
			return
		}
		if n > maxBarLimit {
			n = maxBarLimit
		}
		limit = n
	}

	bars, err := bc.store.Bars(ticker, g.Table(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker":      ticker,
		"granularity": g,
		"count":       len(bars),
		"bars":        bars,
	})
}

// GetLatestBar returns the newest enriched bar for a ticker
// GET /api/v1/bars/:ticker/latest?granularity=intraday
func (bc *BarController) GetLatestBar(c *gin.Context) {
	ticker := c.Param("ticker")
	g, ok := granularityParam(c)
	if !ok {
		return
	}

	bar, err := bc.store.LatestBar(ticker, g.Table())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed", "message": err.Error()})
		return
	}
	if bar == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no bars for ticker"})
		return
	}

	c.JSON(http.StatusOK, bar)
}

// granularityParam reads the granularity query parameter, defaulting to
// daily, and rejects unknown values.
func granularityParam(c *gin.Context) (collector.Granularity, bool) {
	g := collector.Granularity(c.DefaultQuery("granularity", string(collector.Daily)))
	if !g.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "granularity must be intraday or daily",
		})
		return g, false
	}
	return g, true
}
