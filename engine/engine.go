// Package engine runs the per-tick state transition over the portfolio
// document: mark open positions to market, apply exit rules, scan the
// watchlist for at most one entry, then append history and persist. A tick
// either commits atomically or leaves the on-disk document untouched.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"vietnam-stock-trader/config"
	"vietnam-stock-trader/indicators"
	"vietnam-stock-trader/models"
	"vietnam-stock-trader/observability"
	"vietnam-stock-trader/strategy"
)

// historyDays is how much daily history is requested per symbol. A year of
// calendar days comfortably covers the longest indicator window.
const historyDays = 365

// MarketData supplies prices and history. Phase 1 uses LatestClose; Phase 3
// uses History.
type MarketData interface {
	History(ctx context.Context, symbol string, days int) ([]models.Bar, error)
	LatestClose(ctx context.Context, symbol string) (int64, error)
}

// FundamentalsProvider supplies financial ratios for the scoring function.
type FundamentalsProvider interface {
	Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
}

// Broker executes orders. In paper mode every valid order fills at the
// requested price.
type Broker interface {
	PlaceOrder(ctx context.Context, symbol string, side models.TradeAction, qty, price int64) (*models.Order, error)
}

// NewsProvider supplies recent headlines mentioning a symbol.
type NewsProvider interface {
	Headlines(ctx context.Context, symbol string) ([]string, error)
}

// SentimentProvider classifies headlines into a score in [-1, 1]. A nil
// score means nothing to classify.
type SentimentProvider interface {
	Classify(ctx context.Context, symbol string, headlines []string) (*float64, error)
}

// Archiver records signals and trades in the optional archive database.
type Archiver interface {
	SaveSignal(ctx context.Context, sig *models.Signal) error
	SaveTrade(ctx context.Context, trade *models.Trade) error
}

// Notifier delivers alerts. Notification failures never fail a tick.
type Notifier interface {
	NotifyTrade(ctx context.Context, trade models.Trade) error
	NotifySignal(ctx context.Context, sig models.Signal) error
	NotifyTickSummary(ctx context.Context, p *models.Portfolio) error
}

// Store persists the portfolio document and serializes ticks.
type Store interface {
	Lock(ctx context.Context) error
	Unlock() error
	Load() (*models.Portfolio, error)
	Save(p *models.Portfolio) error
}

// Engine drives the tick. Optional collaborators (fundamentals, news,
// sentiment, archive, notify) may be nil; the engine degrades to
// technical-only signals without them.
type Engine struct {
	cfg    config.TradingConfig
	store  Store
	data   MarketData
	broker Broker

	fundamentals FundamentalsProvider
	news         NewsProvider
	sentiment    SentimentProvider
	archive      Archiver
	notify       Notifier

	// now is replaceable so tests control the tick date.
	now func() time.Time
}

// Option configures optional collaborators.
type Option func(*Engine)

// WithFundamentals enables fundamental scoring.
func WithFundamentals(f FundamentalsProvider) Option {
	return func(e *Engine) { e.fundamentals = f }
}

// WithSentiment enables news sentiment scoring.
func WithSentiment(news NewsProvider, classifier SentimentProvider) Option {
	return func(e *Engine) {
		e.news = news
		e.sentiment = classifier
	}
}

// WithArchive enables the signal and trade archive.
func WithArchive(a Archiver) Option {
	return func(e *Engine) { e.archive = a }
}

// WithNotifier enables alerts.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notify = n }
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given store, data feed and broker.
func New(cfg config.TradingConfig, st Store, data MarketData, broker Broker, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		store:  st,
		data:   data,
		broker: broker,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tick runs one full decision cycle and returns the persisted portfolio.
// The engine mutates a clone of the loaded document; a failure at any phase
// discards the clone and leaves the on-disk state untouched.
func (e *Engine) Tick(ctx context.Context) (*models.Portfolio, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()

	if err := e.store.Lock(ctx); err != nil {
		metrics.RecordTickError(string(models.FailurePersistence))
		timer.ObserveTick("error")
		return nil, models.PersistenceError(err)
	}
	defer e.store.Unlock()

	loaded, err := e.store.Load()
	if err != nil {
		metrics.RecordTickError(string(models.FailurePersistence))
		timer.ObserveTick("error")
		return nil, models.PersistenceError(err)
	}

	today := models.NewDate(e.now())
	var work *models.Portfolio
	if loaded == nil {
		observability.Info("no portfolio document, initializing",
			"budget", e.cfg.InitialBudgetVND)
		work = models.NewPortfolio(e.cfg.InitialBudgetVND, today)
	} else {
		work = loaded.Clone()
	}

	e.markToMarket(ctx, work)
	sold := e.applyExitRules(ctx, work, today)
	e.scanForEntry(ctx, work, today, sold)

	e.appendHistory(work, today)
	work.LastUpdated = e.now()

	if err := work.Validate(); err != nil {
		observability.Error("tick aborted on invariant violation", "error", err)
		metrics.RecordTickError(string(models.FailureInvariant))
		timer.ObserveTick("invariant_violation")
		return nil, models.InvariantError(err)
	}

	if err := e.store.Save(work); err != nil {
		observability.Error("tick aborted on failed save", "error", err)
		metrics.RecordTickError(string(models.FailurePersistence))
		timer.ObserveTick("persistence_error")
		return nil, models.PersistenceError(err)
	}

	metrics.SetPortfolioGauges(work.TotalValue(), work.Cash, len(work.Positions))
	timer.ObserveTick("ok")

	if e.notify != nil {
		if err := e.notify.NotifyTickSummary(ctx, work); err != nil {
			observability.Warn("tick summary notification failed", "error", err)
		}
	}
	return work, nil
}

// markToMarket refreshes every open position against the latest close. A
// failed fetch carries the prior price forward; a stale price must not look
// like a price move.
func (e *Engine) markToMarket(ctx context.Context, p *models.Portfolio) {
	for i := range p.Positions {
		pos := &p.Positions[i]
		price, err := e.data.LatestClose(ctx, pos.Symbol)
		if err != nil {
			observability.WithSymbol(pos.Symbol).Warn("stale price, carrying forward",
				"price", pos.CurrentPrice,
				"error", err)
			price = pos.CurrentPrice
		}
		pos.MarkToMarket(price)
	}
}

// applyExitRules evaluates stop-loss then target per open position, in
// portfolio order. Sells are applied immediately so later positions see the
// updated cash. Returns the set of symbols sold this tick; those are
// excluded from the entry scan for one tick.
func (e *Engine) applyExitRules(ctx context.Context, p *models.Portfolio, today models.Date) map[string]bool {
	sold := make(map[string]bool)
	remaining := p.Positions[:0]

	for i := range p.Positions {
		pos := p.Positions[i]

		var reason string
		switch {
		case pos.CurrentPrice <= pos.StopLoss:
			reason = fmt.Sprintf("STOP LOSS at %d", pos.CurrentPrice)
		case pos.CurrentPrice >= pos.Target:
			reason = fmt.Sprintf("TARGET REACHED at %d", pos.CurrentPrice)
		default:
			remaining = append(remaining, pos)
			continue
		}

		if e.sell(ctx, p, &pos, reason, today) {
			sold[pos.Symbol] = true
		} else {
			remaining = append(remaining, pos)
		}
	}
	p.Positions = remaining
	return sold
}

// sell closes pos at its current price. A broker rejection is recorded in
// the trade log without mutating cash or positions.
func (e *Engine) sell(ctx context.Context, p *models.Portfolio, pos *models.Position, reason string, today models.Date) bool {
	metrics := observability.GetMetrics()
	price := pos.CurrentPrice

	order, err := e.broker.PlaceOrder(ctx, pos.Symbol, models.TradeSell, pos.Shares, price)
	if err != nil {
		if models.KindOf(err) == models.FailureBrokerRejection {
			observability.WithSymbol(pos.Symbol).Warn("sell rejected by broker", "error", err)
			p.Trades = append(p.Trades, models.Trade{
				Date:   today,
				Action: models.TradeSell,
				Symbol: pos.Symbol,
				Shares: pos.Shares,
				Price:  price,
				Total:  price * pos.Shares,
				Reason: reason,
				Status: string(models.OrderRejected),
			})
			return false
		}
		observability.WithSymbol(pos.Symbol).Warn("sell failed, keeping position", "error", err)
		return false
	}

	pos.Close(price, today)
	proceeds := price * pos.Shares
	p.Cash += proceeds - commission(proceeds, e.cfg.CommissionRate)
	p.ClosedPositions = append(p.ClosedPositions, *pos)

	trade := models.Trade{
		Date:   today,
		Action: models.TradeSell,
		Symbol: pos.Symbol,
		Shares: pos.Shares,
		Price:  price,
		Total:  proceeds,
		Reason: reason,
	}
	p.Trades = append(p.Trades, trade)

	metrics.RecordTrade(string(models.TradeSell), sellReasonLabel(pos.CurrentPrice, pos.StopLoss))
	observability.WithSymbol(pos.Symbol).Info("position closed",
		"order_id", order.ID,
		"shares", pos.Shares,
		"price", price,
		"final_pnl", pos.FinalPnL,
		"reason", reason)

	e.recordTrade(ctx, &trade)
	if e.notify != nil {
		if err := e.notify.NotifyTrade(ctx, trade); err != nil {
			observability.Warn("trade notification failed", "error", err)
		}
	}
	return true
}

// scanForEntry ranks the watchlist and opens at most one new position. The
// single-entry cap keeps churn bounded and convergence toward max positions
// monotonic.
func (e *Engine) scanForEntry(ctx context.Context, p *models.Portfolio, today models.Date, sold map[string]bool) {
	metrics := observability.GetMetrics()

	if len(p.Positions) >= e.cfg.MaxPositions {
		observability.Debug("entry scan skipped, at max positions", "open", len(p.Positions))
		return
	}
	if p.Cash < e.cfg.MinEntryCashVND {
		observability.Debug("entry scan skipped, insufficient cash", "cash", p.Cash)
		return
	}

	open := p.OpenSymbols()
	var candidates []models.Signal
	for _, symbol := range e.cfg.Watchlist {
		if open[symbol] {
			continue
		}
		if sold[symbol] {
			// One-tick cooldown after a sell.
			metrics.RecordSkippedSymbol("cooldown")
			continue
		}

		sig, err := e.evaluate(ctx, symbol)
		if err != nil {
			switch models.KindOf(err) {
			case models.FailureSchema:
				metrics.RecordSkippedSymbol("not_analyzable")
				observability.WithSymbol(symbol).Debug("symbol not analyzable", "error", err)
			default:
				metrics.RecordSkippedSymbol("transient")
				observability.WithSymbol(symbol).Warn("symbol skipped this tick", "error", err)
			}
			continue
		}
		candidates = append(candidates, *sig)
	}

	// Rank by score descending, stable lexicographic tiebreak by symbol.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})

	if len(candidates) == 0 {
		observability.Info("entry scan found no candidates")
		return
	}
	best := candidates[0]
	if best.Score < e.cfg.EntryScoreThreshold {
		observability.Info("no candidate above entry threshold",
			"best_symbol", best.Symbol,
			"best_score", best.Score,
			"threshold", e.cfg.EntryScoreThreshold)
		return
	}

	shares := entryShares(p.Cash, best.Price, e.cfg.CommissionRate, e.entryPicks(p))
	if shares < models.LotSize {
		metrics.RecordSkippedSymbol("below_lot")
		observability.WithSymbol(best.Symbol).Info("top candidate unaffordable",
			"price", best.Price,
			"cash", p.Cash)
		return
	}

	e.buy(ctx, p, best, shares, today)
}

// entryPicks returns how many ways the cash is split for sizing. Single-pick
// mode commits everything to the one entry; diversify mode splits across the
// remaining position slots.
func (e *Engine) entryPicks(p *models.Portfolio) int {
	if !e.cfg.Diversify {
		return 1
	}
	n := e.cfg.MaxPositions - len(p.Positions)
	if n < 1 {
		n = 1
	}
	return n
}

// entryShares sizes an entry: lot-floored shares whose cost plus commission
// fits in the cash allotted to this pick.
func entryShares(cash, price int64, commissionRate float64, picks int) int64 {
	if price <= 0 || picks < 1 {
		return 0
	}
	notional := cash / int64(picks)
	raw := notional / price
	shares := (raw / models.LotSize) * models.LotSize
	for shares >= models.LotSize {
		cost := shares * price
		if cost+commission(cost, commissionRate) <= cash {
			return shares
		}
		shares -= models.LotSize
	}
	return 0
}

// buy opens a new position on sig.
func (e *Engine) buy(ctx context.Context, p *models.Portfolio, sig models.Signal, shares int64, today models.Date) {
	metrics := observability.GetMetrics()

	order, err := e.broker.PlaceOrder(ctx, sig.Symbol, models.TradeBuy, shares, sig.Price)
	if err != nil {
		if models.KindOf(err) == models.FailureBrokerRejection {
			observability.WithSymbol(sig.Symbol).Warn("buy rejected by broker", "error", err)
			p.Trades = append(p.Trades, models.Trade{
				Date:   today,
				Action: models.TradeBuy,
				Symbol: sig.Symbol,
				Shares: shares,
				Price:  sig.Price,
				Total:  sig.Price * shares,
				Reason: buyReason(sig),
				Status: string(models.OrderRejected),
			})
			return
		}
		observability.WithSymbol(sig.Symbol).Warn("buy failed", "error", err)
		return
	}

	cost := sig.Price * shares
	target, stop := sig.Price, sig.Price
	if sig.Target != nil {
		target = *sig.Target
	}
	if sig.StopLoss != nil {
		stop = *sig.StopLoss
	}

	pos := models.Position{
		Symbol:       sig.Symbol,
		Shares:       shares,
		BuyPrice:     sig.Price,
		BuyCost:      cost,
		BuyDate:      today,
		Target:       target,
		StopLoss:     stop,
		Status:       models.PositionOpen,
		CurrentPrice: sig.Price,
		CurrentValue: cost,
	}
	p.Positions = append(p.Positions, pos)
	p.Cash -= cost + commission(cost, e.cfg.CommissionRate)

	trade := models.Trade{
		Date:   today,
		Action: models.TradeBuy,
		Symbol: sig.Symbol,
		Shares: shares,
		Price:  sig.Price,
		Total:  cost,
		Reason: buyReason(sig),
	}
	p.Trades = append(p.Trades, trade)

	metrics.RecordTrade(string(models.TradeBuy), "entry")
	observability.WithSymbol(sig.Symbol).Info("position opened",
		"order_id", order.ID,
		"shares", shares,
		"price", sig.Price,
		"cost", cost,
		"target", target,
		"stop_loss", stop,
		"score", sig.Score)

	e.recordTrade(ctx, &trade)
	if e.notify != nil {
		if err := e.notify.NotifyTrade(ctx, trade); err != nil {
			observability.Warn("trade notification failed", "error", err)
		}
	}
}

// evaluate fetches history and optional enrichments for symbol and scores
// it. Enrichment failures degrade to a technical-only signal.
func (e *Engine) evaluate(ctx context.Context, symbol string) (*models.Signal, error) {
	bars, err := e.data.History(ctx, symbol, historyDays)
	if err != nil {
		return nil, err
	}
	snap, err := indicators.Compute(symbol, bars)
	if err != nil {
		return nil, models.SchemaError(err)
	}

	in := strategy.Inputs{Snapshot: snap}

	if e.news != nil && e.sentiment != nil {
		headlines, err := e.news.Headlines(ctx, symbol)
		if err != nil {
			observability.WithSymbol(symbol).Warn("headline fetch failed", "error", err)
		} else if sent, err := e.sentiment.Classify(ctx, symbol, headlines); err != nil {
			observability.WithSymbol(symbol).Warn("sentiment classification failed", "error", err)
		} else {
			in.Sentiment = sent
		}
	}

	if e.fundamentals != nil {
		if f, err := e.fundamentals.Fundamentals(ctx, symbol); err != nil {
			observability.WithSymbol(symbol).Warn("fundamentals fetch failed", "error", err)
		} else {
			in.Fundamentals = f
		}
	}

	sig := strategy.Score(in)
	sig.CreatedAt = e.now()

	metrics := observability.GetMetrics()
	metrics.RecordSignal(string(sig.Kind), sig.Score, sig.Confidence)

	if e.archive != nil {
		if err := e.archive.SaveSignal(ctx, &sig); err != nil {
			observability.WithSymbol(symbol).Warn("signal archive failed", "error", err)
		}
	}
	if e.notify != nil && sig.Kind != models.SignalHold {
		if err := e.notify.NotifySignal(ctx, sig); err != nil {
			observability.Warn("signal notification failed", "error", err)
		}
	}
	return &sig, nil
}

// Analyze scores a single symbol without touching the portfolio.
func (e *Engine) Analyze(ctx context.Context, symbol string) (*models.Signal, error) {
	return e.evaluate(ctx, symbol)
}

// appendHistory records the tick's closing value. P&L is measured against
// the initial budget.
func (e *Engine) appendHistory(p *models.Portfolio, today models.Date) {
	total := p.TotalValue()
	pnl := total - p.InitialBudget
	var pnlPct float64
	if p.InitialBudget != 0 {
		pnlPct = float64(pnl) / float64(p.InitialBudget) * 100
	}
	p.History = append(p.History, models.HistoryPoint{
		Date:       today,
		TotalValue: total,
		Cash:       p.Cash,
		Invested:   total - p.Cash,
		PnL:        pnl,
		PnLPercent: pnlPct,
	})
}

func (e *Engine) recordTrade(ctx context.Context, trade *models.Trade) {
	if e.archive == nil {
		return
	}
	if err := e.archive.SaveTrade(ctx, trade); err != nil {
		observability.Warn("trade archive failed", "symbol", trade.Symbol, "error", err)
	}
}

// commission computes the brokerage fee on a notional, rounded to whole VND.
// A zero rate (paper default) produces zero.
func commission(notional int64, rate float64) int64 {
	if rate == 0 {
		return 0
	}
	return decimal.NewFromInt(notional).
		Mul(decimal.NewFromFloat(rate)).
		Round(0).
		IntPart()
}

// buyReason summarizes the signal for the trade log: the score plus the
// first couple of rule reasons.
func buyReason(sig models.Signal) string {
	reason := fmt.Sprintf("Score %+d", sig.Score)
	n := len(sig.Reasons)
	if n > 2 {
		n = 2
	}
	for _, r := range sig.Reasons[:n] {
		reason += ", " + r
	}
	return reason
}

// sellReasonLabel maps an exit to its metrics label.
func sellReasonLabel(price, stop int64) string {
	if price <= stop {
		return "stop_loss"
	}
	return "target"
}
