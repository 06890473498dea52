// Package strategy converts an indicator snapshot, optionally augmented with
// news sentiment and fundamental ratios, into a scored trading signal. The
// score is a sum of additive rules; each rule fires at most once and a
// missing indicator silently skips its rule.
package strategy

import (
	"fmt"
	"math"

	"vietnam-stock-trader/models"
)

// Category weights applied when sentiment and fundamentals are both present.
// With either missing the raw technical score is used directly.
const (
	weightTechnical   = 0.40
	weightSentiment   = 0.35
	weightFundamental = 0.25
)

// Inputs bundles everything the scoring function may consider. Sentiment is
// a classifier score in [-1, 1]; nil optional inputs keep the signal
// technical-only.
type Inputs struct {
	Snapshot     *models.Snapshot
	Sentiment    *float64
	Fundamentals *models.Fundamentals
}

// Score evaluates the rule table against in and returns the signal. Two
// calls with identical inputs yield identical results, reasons included.
func Score(in Inputs) models.Signal {
	snap := in.Snapshot

	tech, reasons := technicalScore(snap)

	sent := 0
	if in.Sentiment != nil {
		var sentReasons []string
		sent, sentReasons = sentimentScore(*in.Sentiment)
		reasons = append(reasons, sentReasons...)
	}

	fund := 0
	if in.Fundamentals != nil {
		fund = fundamentalScore(in.Fundamentals)
	}

	combined := in.Sentiment != nil && in.Fundamentals != nil
	total := tech
	if combined {
		total = int(math.Round(weightTechnical*float64(tech) +
			weightSentiment*float64(sent) +
			weightFundamental*float64(fund)))
	}

	kind := bucket(total)
	sig := models.Signal{
		Symbol:           snap.Symbol,
		Kind:             kind,
		Score:            total,
		Confidence:       math.Min(math.Abs(float64(total))/100, 1.0),
		Price:            snap.Price,
		Reasons:          reasons,
		TechnicalScore:   tech,
		SentimentScore:   sent,
		FundamentalScore: fund,
		Combined:         combined,
	}

	if kind != models.SignalHold {
		target, stop := Targets(kind, snap.Price, snap.ATR14)
		sig.Target = &target
		sig.StopLoss = &stop
	}
	return sig
}

// technicalScore applies the technical rule rows in table order:
// RSI, MACD, trend, Bollinger, volume, momentum.
func technicalScore(snap *models.Snapshot) (int, []string) {
	score := 0
	var reasons []string

	// RSI bands; exactly one fires.
	if snap.RSI14 != nil {
		rsi := *snap.RSI14
		switch {
		case rsi < 30:
			score += 20
			reasons = append(reasons, fmt.Sprintf("RSI oversold (%.1f)", rsi))
		case rsi < 40:
			score += 10
			reasons = append(reasons, fmt.Sprintf("RSI low (%.1f)", rsi))
		case rsi > 70:
			score -= 20
			reasons = append(reasons, fmt.Sprintf("RSI overbought (%.1f)", rsi))
		case rsi > 60:
			score -= 10
		}
	}

	// MACD relative to its signal line; macd == signal counts as below.
	if snap.MACD != nil && snap.MACDSignal != nil &&
		snap.PrevMACD != nil && snap.PrevMACDSignal != nil {
		curr := *snap.MACD - *snap.MACDSignal
		prev := *snap.PrevMACD - *snap.PrevMACDSignal
		if curr > 0 {
			if prev <= 0 {
				score += 20
				reasons = append(reasons, "MACD bullish crossover")
			} else {
				score += 10
				reasons = append(reasons, "MACD above signal")
			}
		} else {
			if prev >= 0 {
				score -= 20
				reasons = append(reasons, "MACD bearish crossover")
			} else {
				score -= 10
				reasons = append(reasons, "MACD below signal")
			}
		}
	}

	// Trend: the composite rule wins over the bare price-vs-SMA20 rule.
	if snap.SMA20 != nil {
		price := float64(snap.Price)
		sma20 := *snap.SMA20
		switch {
		case snap.SMA50 != nil && price > sma20 && sma20 > *snap.SMA50:
			score += 25
			reasons = append(reasons, "UPTREND")
		case snap.SMA50 != nil && price < sma20 && sma20 < *snap.SMA50:
			score -= 20
			reasons = append(reasons, "DOWNTREND")
		case price > sma20:
			score += 10
		case price < sma20:
			score -= 10
		}
	}

	// Bollinger band breaches; the bands themselves don't score.
	if snap.BBUpper != nil && snap.BBLower != nil {
		price := float64(snap.Price)
		if price < *snap.BBLower {
			score += 15
			reasons = append(reasons, "Price below lower BB")
		} else if price > *snap.BBUpper {
			score -= 15
			reasons = append(reasons, "Price above upper BB")
		}
	}

	// Volume relative to its 20-day average.
	if snap.VolumeSMA20 != nil && *snap.VolumeSMA20 > 0 {
		ratio := float64(snap.Volume) / *snap.VolumeSMA20
		if ratio > 1.5 {
			score += 10
			reasons = append(reasons, fmt.Sprintf("High volume (%.1fx avg)", ratio))
		} else if ratio < 0.5 {
			score -= 5
		}
	}

	// Short momentum over the last 5 bars.
	if snap.Return5D != nil {
		if *snap.Return5D > 5 {
			score += 10
			reasons = append(reasons, fmt.Sprintf("Strong momentum (+%.1f%%)", *snap.Return5D))
		} else if *snap.Return5D < -5 {
			score -= 10
		}
	}

	return score, reasons
}

// sentimentScore maps a classifier score in [-1, 1] onto the -50..50 scale.
func sentimentScore(s float64) (int, []string) {
	delta := int(math.Round(50 * s))
	if delta > 50 {
		delta = 50
	} else if delta < -50 {
		delta = -50
	}
	switch {
	case delta > 0:
		return delta, []string{"Positive news"}
	case delta < 0:
		return delta, []string{"Negative news"}
	default:
		return 0, nil
	}
}

// fundamentalScore applies the P/E, ROE and debt-to-equity rules.
func fundamentalScore(f *models.Fundamentals) int {
	score := 0
	if f.PE != nil {
		pe := *f.PE
		switch {
		case pe > 5 && pe < 15:
			score += 15
		case pe > 30:
			score -= 10
		case pe < 0:
			score -= 15
		}
	}
	if f.ROE != nil {
		roe := *f.ROE
		if roe > 15 {
			score += 15
		} else if roe < 5 {
			score -= 10
		}
	}
	if f.DebtToEquity != nil {
		de := *f.DebtToEquity
		if de < 0.5 {
			score += 10
		} else if de > 2 {
			score -= 15
		}
	}
	return score
}

// bucket assigns the signal bucket for a composite score.
func bucket(score int) models.SignalKind {
	switch {
	case score >= 50:
		return models.SignalStrongBuy
	case score >= 20:
		return models.SignalBuy
	case score <= -50:
		return models.SignalStrongSell
	case score <= -20:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}
