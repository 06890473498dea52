package services

import (
	"context"
	"testing"

	"vietnam-stock-trader/models"
)

func TestPaperBrokerFills(t *testing.T) {
	b := NewPaperBroker()
	order, err := b.PlaceOrder(context.Background(), "FPT", models.TradeBuy, 100, 70500)
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if order.Status != models.OrderFilled {
		t.Errorf("status = %s, want FILLED", order.Status)
	}
	if order.ID == "" {
		t.Error("filled order should carry an ID")
	}
	if order.Qty != 100 || order.Price != 70500 {
		t.Errorf("fill = %d @ %d, want requested 100 @ 70500", order.Qty, order.Price)
	}
}

func TestPaperBrokerRejects(t *testing.T) {
	tests := []struct {
		name  string
		qty   int64
		price int64
	}{
		{"odd lot", 150, 70500},
		{"zero quantity", 0, 70500},
		{"negative quantity", -100, 70500},
		{"zero price", 100, 0},
		{"negative price", 100, -1},
	}

	b := NewPaperBroker()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := b.PlaceOrder(context.Background(), "FPT", models.TradeSell, tt.qty, tt.price)
			if err == nil {
				t.Fatal("PlaceOrder() should reject the order")
			}
			if models.KindOf(err) != models.FailureBrokerRejection {
				t.Errorf("failure kind = %s, want broker_rejection", models.KindOf(err))
			}
			if order == nil || order.Status != models.OrderRejected {
				t.Errorf("order = %+v, want status REJECTED", order)
			}
		})
	}
}

func TestPaperBrokerHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPaperBroker().PlaceOrder(ctx, "FPT", models.TradeBuy, 100, 70500); err == nil {
		t.Fatal("PlaceOrder() should fail on a cancelled context")
	}
}
