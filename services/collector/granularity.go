package collector

import (
	"time"

	"go_stock_collector/models"
)

// Granularity selects one of the two synchronization strategies. The two
// differ on purpose: intraday syncs blend trailing history back in before
// computing indicators, daily syncs compute over the fetched batch alone.
// Keeping the variants explicit keeps that asymmetry visible.
type Granularity string

const (
	Intraday Granularity = "intraday"
	Daily    Granularity = "daily"
)

// Far-past start for the first daily sync of a ticker, so the full
// listing history is fetched.
var dailyEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Table returns the bar table this granularity persists into
func (g Granularity) Table() string {
	if g == Intraday {
		return models.TableMinute
	}
	return models.TableDaily
}

// Valid reports whether g is a known granularity
func (g Granularity) Valid() bool {
	return g == Intraday || g == Daily
}

// mergesContext reports whether this granularity blends recently
// persisted rows into the indicator window before computing.
func (g Granularity) mergesContext() bool {
	return g == Intraday
}
