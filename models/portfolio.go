package models

import (
	"fmt"
	"time"
)

// HistoryPoint is one entry in the portfolio's append-only value timeline.
type HistoryPoint struct {
	Date       Date    `json:"date"`
	TotalValue int64   `json:"total_value"`
	Cash       int64   `json:"cash"`
	Invested   int64   `json:"invested"`
	PnL        int64   `json:"pnl"`
	PnLPercent float64 `json:"pnl_percent"`
}

// Portfolio is the singleton document the decision engine advances one tick
// at a time. All monetary fields are integer VND.
type Portfolio struct {
	Created       Date   `json:"created"`
	InitialBudget int64  `json:"initial_budget"`
	Currency      string `json:"currency"`
	Cash          int64  `json:"cash"`

	Positions       []Position     `json:"positions"`
	ClosedPositions []Position     `json:"closed_positions"`
	Trades          []Trade        `json:"trades"`
	History         []HistoryPoint `json:"history"`

	LastUpdated time.Time `json:"last_updated"`
}

// NewPortfolio creates an empty portfolio holding budget in cash.
func NewPortfolio(budget int64, created Date) *Portfolio {
	return &Portfolio{
		Created:         created,
		InitialBudget:   budget,
		Currency:        "VND",
		Cash:            budget,
		Positions:       []Position{},
		ClosedPositions: []Position{},
		Trades:          []Trade{},
		History:         []HistoryPoint{},
		LastUpdated:     time.Now(),
	}
}

// TotalValue is cash plus the mark-to-market value of every open position.
func (p *Portfolio) TotalValue() int64 {
	total := p.Cash
	for i := range p.Positions {
		total += p.Positions[i].CurrentValue
	}
	return total
}

// Invested is the mark-to-market value held in open positions.
func (p *Portfolio) Invested() int64 {
	return p.TotalValue() - p.Cash
}

// FindOpen returns the open position for symbol, or nil.
func (p *Portfolio) FindOpen(symbol string) *Position {
	for i := range p.Positions {
		if p.Positions[i].Symbol == symbol {
			return &p.Positions[i]
		}
	}
	return nil
}

// OpenSymbols returns the set of symbols with an open position.
func (p *Portfolio) OpenSymbols() map[string]bool {
	open := make(map[string]bool, len(p.Positions))
	for i := range p.Positions {
		open[p.Positions[i].Symbol] = true
	}
	return open
}

// Clone returns a deep copy. The engine mutates a clone during a tick so a
// failed tick leaves the loaded document untouched; closed positions are
// copied by value, never aliased.
func (p *Portfolio) Clone() *Portfolio {
	c := *p
	c.Positions = append([]Position(nil), p.Positions...)
	c.ClosedPositions = append([]Position(nil), p.ClosedPositions...)
	c.Trades = append([]Trade(nil), p.Trades...)
	c.History = append([]HistoryPoint(nil), p.History...)
	for i := range c.Positions {
		if d := c.Positions[i].SellDate; d != nil {
			dd := *d
			c.Positions[i].SellDate = &dd
		}
	}
	for i := range c.ClosedPositions {
		if d := c.ClosedPositions[i].SellDate; d != nil {
			dd := *d
			c.ClosedPositions[i].SellDate = &dd
		}
	}
	return &c
}

// Validate checks the document invariants that must hold after every
// successful tick. A violation means the tick is aborted unpersisted.
func (p *Portfolio) Validate() error {
	if p.Cash < 0 {
		return fmt.Errorf("cash is negative: %d", p.Cash)
	}
	seen := make(map[string]bool, len(p.Positions))
	for i := range p.Positions {
		pos := &p.Positions[i]
		if pos.Status != PositionOpen {
			return fmt.Errorf("position %s in open list has status %s", pos.Symbol, pos.Status)
		}
		if pos.Shares <= 0 || pos.Shares%LotSize != 0 {
			return fmt.Errorf("position %s has invalid share count %d", pos.Symbol, pos.Shares)
		}
		if seen[pos.Symbol] {
			return fmt.Errorf("duplicate open position for %s", pos.Symbol)
		}
		seen[pos.Symbol] = true
	}
	for i := range p.ClosedPositions {
		pos := &p.ClosedPositions[i]
		if pos.Status != PositionClosed {
			return fmt.Errorf("position %s in closed list has status %s", pos.Symbol, pos.Status)
		}
	}
	var buys, sells int
	for _, t := range p.Trades {
		if t.Status == string(OrderRejected) {
			continue
		}
		switch t.Action {
		case TradeBuy:
			buys++
		case TradeSell:
			sells++
		default:
			return fmt.Errorf("trade with unknown action %q", t.Action)
		}
	}
	if buys != len(p.Positions)+len(p.ClosedPositions) {
		return fmt.Errorf("trade log mismatch: %d buys for %d positions",
			buys, len(p.Positions)+len(p.ClosedPositions))
	}
	if sells != len(p.ClosedPositions) {
		return fmt.Errorf("trade log mismatch: %d sells for %d closed positions",
			sells, len(p.ClosedPositions))
	}
	if n := len(p.History); n > 0 {
		last := p.History[n-1]
		if last.TotalValue != p.TotalValue() {
			return fmt.Errorf("history out of sync: last total_value %d, portfolio %d",
				last.TotalValue, p.TotalValue())
		}
	}
	return nil
}
