// Package barstore is the gorm-backed persistence layer for bar data.
// Writes are append-only; rows already present for a (ticker, timestamp)
// pair are silently skipped so overlapping sync windows stay harmless.
package barstore

import (
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go_stock_collector/models"
)

// Store wraps the shared database handle for bar tables
type Store struct {
	db *gorm.DB
}

// NewStore creates a bar store on the given database handle
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// TickerCount is one row of the per-ticker summary
type TickerCount struct {
	Ticker string `json:"ticker"`
	Rows   int64  `gorm:"column:row_count" json:"rows"`
}

// LastTimestamp returns the newest persisted timestamp for a ticker in
// the given table, or nil when the ticker has no rows yet.
func (s *Store) LastTimestamp(ticker, table string) (*time.Time, error) {
	var last sql.NullTime
	row := s.db.Table(table).
		Where("ticker = ?", ticker).
		Select("MAX(timestamp)").
		Row()
	if err := row.Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to query last timestamp in %s: %w", table, err)
	}
	if !last.Valid {
		return nil, nil
	}
	ts := last.Time
	return &ts, nil
}

// RecentBars returns up to limit of the newest bars for a ticker,
// ascending by timestamp.
func (s *Store) RecentBars(ticker, table string, limit int) ([]models.StockBar, error) {
	var bars []models.StockBar
	err := s.db.Table(table).
		Where("ticker = ?", ticker).
		Order("timestamp DESC").
		Limit(limit).
		Find(&bars).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent bars in %s: %w", table, err)
	}

	// Reverse to chronological order
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// Append inserts enriched rows into the given table and returns how many
// were actually written. Duplicate (ticker, timestamp) rows are skipped,
// not treated as failures.
func (s *Store) Append(table string, rows []models.EnrichedBar) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	res := s.db.Table(table).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to append %d rows to %s: %w", len(rows), table, res.Error)
	}
	return res.RowsAffected, nil
}

// Bars returns up to limit of the newest enriched bars for a ticker,
// ascending by timestamp.
func (s *Store) Bars(ticker, table string, limit int) ([]models.EnrichedBar, error) {
	var bars []models.EnrichedBar
	err := s.db.Table(table).
		Where("ticker = ?", ticker).
		Order("timestamp DESC").
		Limit(limit).
		Find(&bars).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query bars in %s: %w", table, err)
	}

	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// LatestBar returns the newest enriched bar for a ticker, or nil when
// the ticker has no rows.
func (s *Store) LatestBar(ticker, table string) (*models.EnrichedBar, error) {
	var bar models.EnrichedBar
	err := s.db.Table(table).
		Where("ticker = ?", ticker).
		Order("timestamp DESC").
		First(&bar).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest bar in %s: %w", table, err)
	}
	return &bar, nil
}

// TickerCounts returns the persisted row count per ticker for a table
func (s *Store) TickerCounts(table string) ([]TickerCount, error) {
	var counts []TickerCount
	err := s.db.Table(table).
		Select("ticker, COUNT(*) AS row_count").
		Group("ticker").
		Order("ticker").
		Find(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count tickers in %s: %w", table, err)
	}
	return counts, nil
}
