package models

import "time"

// MinAnalyzableBars is the minimum history length a symbol needs before any
// signal is produced for it. Shorter series are skipped entirely.
const MinAnalyzableBars = 50

// Bar is one daily OHLCV bar. Prices are integer VND; the upstream feed
// quotes in thousands and is rescaled once at the ingest boundary.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   int64     `json:"open"`
	High   int64     `json:"high"`
	Low    int64     `json:"low"`
	Close  int64     `json:"close"`
	Volume int64     `json:"volume"`
}

// Snapshot holds the indicator values at the most recent bar of a series.
// A nil field means the indicator is undefined for the available history;
// the scoring rules skip undefined indicators rather than treating them
// as zero.
type Snapshot struct {
	Symbol string
	Price  int64
	Volume int64

	RSI14 *float64

	SMA20  *float64
	SMA50  *float64
	SMA200 *float64

	MACD           *float64
	MACDSignal     *float64
	MACDHist       *float64
	PrevMACD       *float64
	PrevMACDSignal *float64

	BBUpper  *float64
	BBMiddle *float64
	BBLower  *float64

	ATR14 *float64

	VolumeSMA20 *float64

	Return5D  *float64
	Return7D  *float64
	Return30D *float64
}

// Fundamentals are the ratio inputs of the fundamental scoring rules. Each
// field is nil when the data provider has no figure for the symbol.
type Fundamentals struct {
	PE           *float64 `json:"pe"`
	ROE          *float64 `json:"roe"`
	DebtToEquity *float64 `json:"debt_to_equity"`
}
