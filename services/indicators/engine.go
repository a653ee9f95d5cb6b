// Package indicators enriches ordered bar sequences with rolling
// technical indicators. It performs no I/O and keeps no state between
// calls; every value is derived from the supplied window alone.
package indicators

import (
	"math"

	"github.com/shopspring/decimal"

	"go_stock_collector/models"
)

// Indicator parameters. Rolling windows shrink at the start of the
// sequence instead of going null: a row with only 3 predecessors gets a
// 4-row average, not a missing value.
const (
	MA5Window       = 5
	MA20Window      = 20
	RSIWindow       = 14
	MACDFastSpan    = 12
	MACDSlowSpan    = 26
	MACDSignalSpan  = 9
	BollingerWindow = 20
	BollingerWidth  = 2.0

	// Substituted for a zero cumulative volume so VWAP stays finite.
	vwapEpsilon = 1e-10
)

// Compute enriches bars, sorted ascending by timestamp, with indicator
// columns. The result has the same length and order as the input; rows
// are never reordered or dropped. An empty input yields an empty result.
//
// The only indicator that can come back null is the Bollinger pair on
// rows whose trailing window holds a single observation, where the
// sample standard deviation is undefined.
func Compute(bars []models.StockBar) []models.EnrichedBar {
	if len(bars) == 0 {
		return nil
	}

	n := len(bars)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close.InexactFloat64()
		volumes[i] = float64(b.Volume)
	}

	ma5 := rollingMean(closes, MA5Window)
	ma20 := rollingMean(closes, MA20Window)
	rsi := computeRSI(closes)
	macdHist := computeMACDHistogram(closes)
	stddev := rollingSampleStd(closes, BollingerWindow)
	vwap := computeVWAP(closes, volumes)

	enriched := make([]models.EnrichedBar, n)
	for i := range bars {
		e := models.EnrichedBar{StockBar: bars[i]}
		e.MA5 = validDecimal(ma5[i])
		e.MA20 = validDecimal(ma20[i])
		e.RSI = validDecimal(rsi[i])
		e.MACD = validDecimal(macdHist[i])
		if !math.IsNaN(stddev[i]) {
			e.BollingerUpper = validDecimal(ma20[i] + BollingerWidth*stddev[i])
			e.BollingerLower = validDecimal(ma20[i] - BollingerWidth*stddev[i])
		}
		e.VWAP = validDecimal(vwap[i])
		enriched[i] = e
	}
	return enriched
}

// rollingMean computes a trailing mean with a shrinking window at the
// start of the sequence (minimum one observation).
func rollingMean(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	sum := 0.0
	for i, v := range vals {
		sum += v
		count := window
		if i+1 < window {
			count = i + 1
		} else if i >= window {
			sum -= vals[i-window]
		}
		out[i] = sum / float64(count)
	}
	return out
}

// rollingSampleStd computes the trailing sample standard deviation with
// a shrinking window. Windows with fewer than two observations yield NaN.
func rollingSampleStd(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		count := i - lo + 1
		if count < 2 {
			out[i] = math.NaN()
			continue
		}
		mean := 0.0
		for _, v := range vals[lo : i+1] {
			mean += v
		}
		mean /= float64(count)
		variance := 0.0
		for _, v := range vals[lo : i+1] {
			d := v - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(count-1))
	}
	return out
}

// ema computes an exponential moving average with smoothing factor
// alpha = 2/(span+1), seeded with the first observation.
func ema(vals []float64, span int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// computeRSI computes a 14-period RSI over trailing means of gains and
// losses. The first row has no delta and counts as zero gain, zero loss.
//
// A zero loss average pins RSI at 100, except when the gain average is
// also zero: a fully flat window has no direction and resolves to the
// neutral 50 instead of an undefined 0/0.
func computeRSI(closes []float64) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGain := rollingMean(gains, RSIWindow)
	avgLoss := rollingMean(losses, RSIWindow)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		switch {
		case avgGain[i] == 0 && avgLoss[i] == 0:
			out[i] = 50
		case avgLoss[i] == 0:
			out[i] = 100
		default:
			rs := avgGain[i] / avgLoss[i]
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// computeMACDHistogram computes the MACD histogram: the MACD line
// (EMA12 - EMA26) minus its 9-span signal EMA. The histogram is what
// gets stored under the macd column.
func computeMACDHistogram(closes []float64) []float64 {
	fast := ema(closes, MACDFastSpan)
	slow := ema(closes, MACDSlowSpan)

	macdLine := make([]float64, len(closes))
	for i := range macdLine {
		macdLine[i] = fast[i] - slow[i]
	}
	signal := ema(macdLine, MACDSignalSpan)

	out := make([]float64, len(closes))
	for i := range out {
		out[i] = macdLine[i] - signal[i]
	}
	return out
}

// computeVWAP computes the cumulative volume-weighted average price,
// relative to the start of the supplied window.
func computeVWAP(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	cumPV := 0.0
	cumVol := 0.0
	for i := range closes {
		cumPV += closes[i] * volumes[i]
		cumVol += volumes[i]
		denom := cumVol
		if denom == 0 {
			denom = vwapEpsilon
		}
		out[i] = cumPV / denom
	}
	return out
}

func validDecimal(v float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
}
