package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vietnam-stock-trader/models"
)

// SaveTrade archives one executed or rejected trade.
func (r *Repository) SaveTrade(ctx context.Context, trade *models.Trade) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO trades (id, trade_date, action, symbol, shares, price, total, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.New(), trade.Date.Time(), string(trade.Action), trade.Symbol,
		trade.Shares, trade.Price, trade.Total, trade.Reason, trade.Status)

	if err != nil {
		return fmt.Errorf("failed to archive trade: %w", err)
	}
	return nil
}

// RecentTrades returns the newest archived trades, newest first.
func (r *Repository) RecentTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT trade_date, action, symbol, shares, price, total, reason, status
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		var action string
		var date time.Time
		if err := rows.Scan(&date, &action, &t.Symbol, &t.Shares, &t.Price, &t.Total, &t.Reason, &t.Status); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Date = models.NewDate(date)
		t.Action = models.TradeAction(action)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
