// Package analysis is the lower-frequency downstream job: it reads the
// freshest enriched bars and records advisory trade signals. No orders
// are placed and no model inference happens here.
package analysis

import (
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go_stock_collector/models"
	"go_stock_collector/services/barstore"
)

// Signal thresholds on the enriched indicator columns
var (
	rsiOversold   = decimal.NewFromInt(30)
	rsiOverbought = decimal.NewFromInt(70)
)

// Analyzer evaluates enriched bars into trade signals
type Analyzer struct {
	db      *gorm.DB
	store   *barstore.Store
	tickers []string
}

// NewAnalyzer creates an analyzer over the given tickers
func NewAnalyzer(db *gorm.DB, store *barstore.Store, tickers []string) *Analyzer {
	return &Analyzer{db: db, store: store, tickers: tickers}
}

// Run evaluates the latest daily bar of every ticker. Failures are
// logged per ticker; the batch always finishes.
func (a *Analyzer) Run() {
	log.Println("Starting analysis cycle...")

	for _, ticker := range a.tickers {
		bar, err := a.store.LatestBar(ticker, models.TableDaily)
		if err != nil {
			log.Printf("Error loading latest bar for '%s': %v", ticker, err)
			continue
		}
		if bar == nil {
			log.Printf("'%s': no bar data yet, skipping analysis", ticker)
			continue
		}

		signal := evaluate(ticker, bar)
		if signal == nil {
			continue
		}

		if err := a.db.Create(signal).Error; err != nil {
			log.Printf("Error saving signal for '%s': %v", ticker, err)
			continue
		}
		log.Printf("'%s': %s signal (rsi=%s macd_hist=%s)",
			ticker, signal.Action, signal.RSI.StringFixed(2), signal.MACDHist.StringFixed(4))
	}

	log.Println("Analysis cycle completed")
}

// evaluate derives a signal from the RSI and MACD histogram of the
// latest bar. Neutral readings produce no signal row.
func evaluate(ticker string, bar *models.EnrichedBar) *models.TradeSignal {
	if !bar.RSI.Valid || !bar.MACD.Valid {
		return nil
	}

	rsi := bar.RSI.Decimal
	hist := bar.MACD.Decimal

	var action, note string
	switch {
	case rsi.LessThanOrEqual(rsiOversold) && hist.IsPositive():
		action = "buy"
		note = "oversold with rising momentum"
	case rsi.GreaterThanOrEqual(rsiOverbought) && hist.IsNegative():
		action = "sell"
		note = "overbought with fading momentum"
	default:
		return nil
	}

	return &models.TradeSignal{
		Ticker:      ticker,
		Granularity: "daily",
		Action:      action,
		RSI:         rsi,
		MACDHist:    hist,
		Note:        note,
	}
}
