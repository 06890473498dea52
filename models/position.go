package models

// LotSize is the minimum tradable quantity on the Vietnamese exchanges.
// It is an exchange rule, not a tunable.
const LotSize = 100

type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position is one holding in the portfolio. Shares are always a positive
// multiple of LotSize while the position is open.
type Position struct {
	Symbol   string         `json:"symbol"`
	Shares   int64          `json:"shares"`
	BuyPrice int64          `json:"buy_price"`
	BuyCost  int64          `json:"buy_cost"`
	BuyDate  Date           `json:"buy_date"`
	Target   int64          `json:"target"`
	StopLoss int64          `json:"stop_loss"`
	Status   PositionStatus `json:"status"`

	// Mark-to-market fields, refreshed every tick.
	CurrentPrice int64   `json:"current_price"`
	CurrentValue int64   `json:"current_value"`
	PnL          int64   `json:"pnl"`
	PnLPercent   float64 `json:"pnl_percent"`

	// Set exactly once, when the position closes.
	SellPrice int64 `json:"sell_price,omitempty"`
	SellDate  *Date `json:"sell_date,omitempty"`
	FinalPnL  int64 `json:"final_pnl,omitempty"`
}

// MarkToMarket refreshes the valuation fields against price.
func (p *Position) MarkToMarket(price int64) {
	p.CurrentPrice = price
	p.CurrentValue = price * p.Shares
	p.PnL = p.CurrentValue - p.BuyCost
	if p.BuyCost != 0 {
		p.PnLPercent = float64(p.PnL) / float64(p.BuyCost) * 100
	}
}

// Close transitions the position OPEN -> CLOSED at price on date. The
// transition happens exactly once; a closed position is never reopened.
func (p *Position) Close(price int64, date Date) {
	p.MarkToMarket(price)
	p.Status = PositionClosed
	p.SellPrice = price
	d := date
	p.SellDate = &d
	p.FinalPnL = price*p.Shares - p.BuyCost
}
