package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"vietnam-stock-trader/models"
	"vietnam-stock-trader/observability"
)

// PaperBroker simulates order execution. Every accepted order fills
// immediately and in full at the requested price; there is no slippage and
// no partial fill in paper mode.
type PaperBroker struct{}

// NewPaperBroker creates a paper broker.
func NewPaperBroker() *PaperBroker {
	return &PaperBroker{}
}

// PlaceOrder validates and fills an order. Orders that violate exchange
// rules are rejected, never silently adjusted.
func (b *PaperBroker) PlaceOrder(ctx context.Context, symbol string, side models.TradeAction, qty, price int64) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.TransientError(err)
	}

	order := &models.Order{
		ID:     uuid.NewString(),
		Symbol: symbol,
		Side:   side,
		Qty:    qty,
		Price:  price,
	}

	if qty <= 0 || qty%models.LotSize != 0 {
		order.Status = models.OrderRejected
		return order, models.BrokerRejectionError(
			fmt.Errorf("quantity %d is not a positive multiple of %d", qty, models.LotSize))
	}
	if price <= 0 {
		order.Status = models.OrderRejected
		return order, models.BrokerRejectionError(fmt.Errorf("non-positive price %d", price))
	}

	order.Status = models.OrderFilled
	observability.WithSymbol(symbol).Info("paper order filled",
		"order_id", order.ID,
		"side", side,
		"qty", qty,
		"price", price)
	return order, nil
}
