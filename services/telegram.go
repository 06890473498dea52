package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"vietnam-stock-trader/models"
	"vietnam-stock-trader/observability"
)

// TelegramService sends trade and signal alerts to a Telegram chat.
type TelegramService struct {
	client *resty.Client
	chatID string
}

// NewTelegramService creates a Telegram notifier for the given bot token and
// chat.
func NewTelegramService(botToken, chatID string) *TelegramService {
	client := resty.New().
		SetBaseURL("https://api.telegram.org/bot" + botToken).
		SetTimeout(15 * time.Second)

	return &TelegramService{
		client: client,
		chatID: chatID,
	}
}

// telegramResponse is the Bot API envelope.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers one HTML-formatted message. Notification failures are
// reported but must never fail a tick; callers log and move on.
func (s *TelegramService) Send(ctx context.Context, text string) error {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest("telegram", "send_message")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI("telegram", "send_message")

	_, err := GetGlobalRegistry().Execute(ctx, BreakerTelegram, func() (any, error) {
		var payload telegramResponse
		resp, err := s.client.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"chat_id":    s.chatID,
				"text":       text,
				"parse_mode": "HTML",
			}).
			SetResult(&payload).
			Post("/sendMessage")
		if err != nil {
			return nil, fmt.Errorf("failed to send telegram message: %w", err)
		}
		if resp.IsError() || !payload.OK {
			return nil, fmt.Errorf("telegram API error: status %d, %s", resp.StatusCode(), payload.Description)
		}
		return nil, nil
	})
	if err != nil {
		metrics.RecordExternalAPIError("telegram", "send_message", "transient")
	}
	return err
}

// NotifyTrade sends an executed-trade alert.
func (s *TelegramService) NotifyTrade(ctx context.Context, trade models.Trade) error {
	emoji := "\U0001F7E2" // green circle
	if trade.Action == models.TradeSell {
		emoji = "\U0001F534" // red circle
	}
	msg := fmt.Sprintf(`%s <b>Trade Executed</b>

<b>Action:</b> %s
<b>Symbol:</b> %s
<b>Shares:</b> %d
<b>Price:</b> %d VND
<b>Total:</b> %d VND
<b>Reason:</b> %s`,
		emoji, trade.Action, trade.Symbol, trade.Shares, trade.Price, trade.Total, trade.Reason)
	return s.Send(ctx, msg)
}

// NotifySignal sends a trading-signal alert.
func (s *TelegramService) NotifySignal(ctx context.Context, sig models.Signal) error {
	emoji := "➡️" // right arrow
	if sig.Kind.IsBuy() {
		emoji = "\U0001F4C8" // chart up
	} else if sig.Kind.IsSell() {
		emoji = "\U0001F4C9" // chart down
	}

	reasons := sig.Reasons
	if len(reasons) > 5 {
		reasons = reasons[:5]
	}
	var lines []string
	for _, r := range reasons {
		lines = append(lines, "• "+r)
	}

	msg := fmt.Sprintf(`%s <b>Trading Signal: %s</b>

<b>Symbol:</b> %s
<b>Score:</b> %d
<b>Confidence:</b> %.0f%%
%s`,
		emoji, sig.Kind, sig.Symbol, sig.Score, sig.Confidence*100, strings.Join(lines, "\n"))
	return s.Send(ctx, msg)
}

// NotifyTickSummary sends the end-of-tick portfolio summary.
func (s *TelegramService) NotifyTickSummary(ctx context.Context, p *models.Portfolio) error {
	total := p.TotalValue()
	pnl := total - p.InitialBudget
	var pnlPct float64
	if p.InitialBudget != 0 {
		pnlPct = float64(pnl) / float64(p.InitialBudget) * 100
	}
	msg := fmt.Sprintf("\U0001F4CA"+` <b>Portfolio Update</b>

<b>Total Value:</b> %d VND
<b>Cash:</b> %d VND
<b>Open Positions:</b> %d
<b>P&amp;L:</b> %d VND (%.2f%%)`,
		total, p.Cash, len(p.Positions), pnl, pnlPct)
	return s.Send(ctx, msg)
}
