// Package indicators is the pure indicator kernel: stateless functions from
// an ordered daily OHLCV series to indicator values at the most recent bar.
// Every function reports whether its value is defined for the given history
// length; an undefined value is propagated as missing, never as zero.
package indicators

import (
	"errors"
	"math"

	"vietnam-stock-trader/models"
)

// ErrInsufficientHistory marks a series too short to analyze. A symbol with
// fewer than models.MinAnalyzableBars bars is skipped, not scored zero.
var ErrInsufficientHistory = errors.New("insufficient price history")

// SMA returns the arithmetic mean of the last period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMA returns the full exponential moving average series using the standard
// smoothing alpha = 2/(span+1), seeded with the first value.
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / float64(span+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI computes the Relative Strength Index over the last period price
// differences using a simple (not Wilder-smoothed) rolling mean.
// When there are no losses in the window the RSI is 100.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	var gains, losses float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// macdSignalSpan is the EMA span of the MACD signal line.
const macdSignalSpan = 9

// MACD returns the MACD line (EMA12 − EMA26) and its 9-span EMA signal line
// as full series. Defined once the series covers the slow EMA span plus the
// signal span.
func MACD(closes []float64) (macd, signal []float64, ok bool) {
	if len(closes) < 26+macdSignalSpan {
		return nil, nil, false
	}
	ema12 := EMA(closes, 12)
	ema26 := EMA(closes, 26)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = ema12[i] - ema26[i]
	}
	signal = EMA(macd, macdSignalSpan)
	return macd, signal, true
}

// Bollinger returns the 2-sigma Bollinger bands around the period SMA.
// The deviation is the population standard deviation of the window.
func Bollinger(closes []float64, period int, width float64) (upper, middle, lower float64, ok bool) {
	middle, ok = SMA(closes, period)
	if !ok {
		return 0, 0, 0, false
	}
	variance := 0.0
	for _, c := range closes[len(closes)-period:] {
		d := c - middle
		variance += d * d
	}
	stdev := math.Sqrt(variance / float64(period))
	return middle + width*stdev, middle, middle - width*stdev, true
}

// ATR is the simple rolling mean of the True Range over the last period
// bars, where TR = max(high−low, |high−prevClose|, |low−prevClose|).
func ATR(bars []models.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}
	sum := 0.0
	start := len(bars) - period
	for i := start; i < len(bars); i++ {
		high := float64(bars[i].High)
		low := float64(bars[i].Low)
		prevClose := float64(bars[i-1].Close)
		tr := high - low
		if d := math.Abs(high - prevClose); d > tr {
			tr = d
		}
		if d := math.Abs(low - prevClose); d > tr {
			tr = d
		}
		sum += tr
	}
	return sum / float64(period), true
}

// ReturnOverBars is the percent change of the latest close against the close
// window bars back, counting the window inclusive of the current bar.
func ReturnOverBars(closes []float64, window int) (float64, bool) {
	if window <= 0 || len(closes) < window || closes[len(closes)-window] == 0 {
		return 0, false
	}
	return (closes[len(closes)-1]/closes[len(closes)-window] - 1) * 100, true
}

// MomentumWindow is the bar window of the short momentum rule.
const MomentumWindow = 5

// Compute derives the indicator snapshot at the most recent bar. Bars must
// be ordered ascending by date; fewer than models.MinAnalyzableBars bars
// returns ErrInsufficientHistory.
func Compute(symbol string, bars []models.Bar) (*models.Snapshot, error) {
	if len(bars) < models.MinAnalyzableBars {
		return nil, ErrInsufficientHistory
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = float64(b.Close)
		volumes[i] = float64(b.Volume)
	}
	last := bars[len(bars)-1]

	snap := &models.Snapshot{
		Symbol: symbol,
		Price:  last.Close,
		Volume: last.Volume,
	}

	if v, ok := RSI(closes, 14); ok {
		snap.RSI14 = &v
	}
	if v, ok := SMA(closes, 20); ok {
		snap.SMA20 = &v
	}
	if v, ok := SMA(closes, 50); ok {
		snap.SMA50 = &v
	}
	if v, ok := SMA(closes, 200); ok {
		snap.SMA200 = &v
	}
	if macd, signal, ok := MACD(closes); ok {
		n := len(macd)
		m, s := macd[n-1], signal[n-1]
		h := m - s
		snap.MACD = &m
		snap.MACDSignal = &s
		snap.MACDHist = &h
		pm, ps := macd[n-2], signal[n-2]
		snap.PrevMACD = &pm
		snap.PrevMACDSignal = &ps
	}
	if upper, middle, lower, ok := Bollinger(closes, 20, 2); ok {
		snap.BBUpper = &upper
		snap.BBMiddle = &middle
		snap.BBLower = &lower
	}
	if v, ok := ATR(bars, 14); ok {
		snap.ATR14 = &v
	}
	if v, ok := SMA(volumes, 20); ok {
		snap.VolumeSMA20 = &v
	}
	if v, ok := ReturnOverBars(closes, MomentumWindow); ok {
		snap.Return5D = &v
	}
	if v, ok := ReturnOverBars(closes, 7); ok {
		snap.Return7D = &v
	}
	if v, ok := ReturnOverBars(closes, 30); ok {
		snap.Return30D = &v
	}

	return snap, nil
}
