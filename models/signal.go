package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeSignal records a recommendation produced by the analysis job.
// Signals are advisory only; no orders are placed from them.
type TradeSignal struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Ticker      string          `gorm:"index:idx_signal_ticker;size:20" json:"ticker"`
	Granularity string          `json:"granularity"` // intraday, daily
	Action      string          `json:"action"`      // buy, sell, neutral
	RSI         decimal.Decimal `gorm:"type:decimal(15,6)" json:"rsi"`
	MACDHist    decimal.Decimal `gorm:"type:decimal(15,6)" json:"macd_hist"`
	Note        string          `json:"note"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MigrateSignalModels runs database migrations for signal models
func MigrateSignalModels(db *gorm.DB) error {
	return db.AutoMigrate(&TradeSignal{})
}
