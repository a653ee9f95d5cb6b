package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bar tables, one per granularity. Within one (ticker, table) pair the
// timestamp is unique and rows are kept sorted ascending.
const (
	TableMinute = "stock_data_min"
	TableDaily  = "stock_data_day"
)

// StockBar is one OHLCV record for one instrument at one timestamp.
// For daily bars the timestamp is a date; for minute bars a date-time.
// Timestamps are stored timezone-naive (wall clock, no offset).
type StockBar struct {
	Ticker       string          `gorm:"primaryKey;size:20" json:"ticker"`
	Timestamp    time.Time       `gorm:"primaryKey" json:"timestamp"`
	Open         decimal.Decimal `gorm:"type:decimal(15,2)" json:"open"`
	High         decimal.Decimal `gorm:"type:decimal(15,2)" json:"high"`
	Low          decimal.Decimal `gorm:"type:decimal(15,2)" json:"low"`
	Close        decimal.Decimal `gorm:"type:decimal(15,2)" json:"close"`
	Volume       int64           `json:"volume"`
	TradingValue decimal.Decimal `gorm:"type:decimal(20,2)" json:"trading_value"`
}

// EnrichedBar is a StockBar plus derived indicator columns. Indicator
// fields are nullable; a row is only persisted once every indicator the
// engine can produce for it is set.
//
// MACD stores the histogram (MACD line minus signal line), not the raw
// MACD line. Downstream feature sets depend on this exact quantity.
type EnrichedBar struct {
	StockBar

	MA5            decimal.NullDecimal `gorm:"type:decimal(15,6)" json:"ma5"`
	MA20           decimal.NullDecimal `gorm:"type:decimal(15,6)" json:"ma20"`
	RSI            decimal.NullDecimal `gorm:"type:decimal(15,6)" json:"rsi"`
	MACD           decimal.NullDecimal `gorm:"type:decimal(15,6)" json:"macd"`
	BollingerUpper decimal.NullDecimal `gorm:"type:decimal(15,6)" json:"bollinger_upper"`
	BollingerLower decimal.NullDecimal `gorm:"type:decimal(15,6)" json:"bollinger_lower"`
	VWAP           decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"vwap"`
}

// Complete reports whether every indicator column is set.
func (b *EnrichedBar) Complete() bool {
	for _, f := range []decimal.NullDecimal{
		b.MA5, b.MA20, b.RSI, b.MACD, b.BollingerUpper, b.BollingerLower, b.VWAP,
	} {
		if !f.Valid {
			return false
		}
	}
	return true
}

// MigrateBarModels creates the per-granularity bar tables
func MigrateBarModels(db *gorm.DB) error {
	for _, table := range []string{TableMinute, TableDaily} {
		if err := db.Table(table).AutoMigrate(&EnrichedBar{}); err != nil {
			return err
		}
	}
	return nil
}
