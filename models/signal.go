package models

import "time"

// SignalKind is the bucketed trading recommendation.
type SignalKind string

const (
	SignalStrongBuy  SignalKind = "STRONG_BUY"
	SignalBuy        SignalKind = "BUY"
	SignalHold       SignalKind = "HOLD"
	SignalSell       SignalKind = "SELL"
	SignalStrongSell SignalKind = "STRONG_SELL"
)

// IsBuy reports whether the signal recommends entering.
func (k SignalKind) IsBuy() bool {
	return k == SignalBuy || k == SignalStrongBuy
}

// IsSell reports whether the signal recommends exiting.
func (k SignalKind) IsSell() bool {
	return k == SignalSell || k == SignalStrongSell
}

// Signal is a scored recommendation for one symbol at one evaluation.
// Target and StopLoss are set for every non-HOLD signal.
type Signal struct {
	Symbol     string     `json:"symbol"`
	Kind       SignalKind `json:"signal"`
	Score      int        `json:"score"`
	Confidence float64    `json:"confidence"`
	Price      int64      `json:"price"`
	Target     *int64     `json:"target,omitempty"`
	StopLoss   *int64     `json:"stop_loss,omitempty"`
	Reasons    []string   `json:"reasons"`

	// Category breakdown. Combined is true when sentiment and fundamentals
	// were both available and the weighted blend was applied.
	TechnicalScore   int  `json:"technical_score"`
	SentimentScore   int  `json:"sentiment_score"`
	FundamentalScore int  `json:"fundamental_score"`
	Combined         bool `json:"combined"`

	CreatedAt time.Time `json:"created_at"`
}
