package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go_stock_collector/services/collector"
)

// SyncController exposes manual sync triggers and cycle status
type SyncController struct {
	collector *collector.Collector
}

// NewSyncController creates a sync controller
func NewSyncController(col *collector.Collector) *SyncController {
	return &SyncController{collector: col}
}

// GetStatus returns the last collection cycle's progress
// GET /api/v1/sync/status
func (sc *SyncController) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, sc.collector.Progress())
}

// TriggerAll starts a full collection cycle in the background
// POST /api/v1/sync
func (sc *SyncController) TriggerAll(c *gin.Context) {
	if sc.collector.Progress().Running {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "already_running",
			"message": "A collection cycle is already in progress",
		})
		return
	}

	go sc.collector.SyncAll()

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "started",
		"message": "Collection cycle started",
	})
}

// TriggerTicker synchronizes one ticker at one granularity and waits
// for the result
// POST /api/v1/sync/:ticker?granularity=intraday
func (sc *SyncController) TriggerTicker(c *gin.Context) {
	ticker := c.Param("ticker")
	g, ok := granularityParam(c)
	if !ok {
		return
	}

	n, err := sc.collector.Sync(ticker, g)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "sync_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker":      ticker,
		"granularity": g,
		"rows_stored": n,
	})
}
