package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"vietnam-stock-trader/config"
	"vietnam-stock-trader/models"
)

// tickDay is the fixed clock every test engine runs under.
var tickDay = time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)

// trendingBars builds 60 daily bars alternating +300/-250 ending at last.
// The shape is chosen so the scoring table lands on +55: a MACD bullish
// crossover, an SMA20 > SMA50 uptrend and a 2x volume spike on the final
// bar, with the RSI staying neutral. ATR(14) works out to exactly 475.
func trendingBars(last int64) []models.Bar {
	const n = 60
	closes := make([]int64, n)
	closes[0] = last - 1750
	for i := 1; i < n; i++ {
		if (i-1)%2 == 0 {
			closes[i] = closes[i-1] + 300
		} else {
			closes[i] = closes[i-1] - 250
		}
	}
	return barsFromCloses(closes, 200000)
}

// flatBars builds 60 identical bars. A constant series scores -40 (RSI 100
// plus a zero-on-zero MACD), well below any entry threshold.
func flatBars(price int64) []models.Bar {
	closes := make([]int64, 60)
	for i := range closes {
		closes[i] = price
	}
	return barsFromCloses(closes, 100000)
}

func barsFromCloses(closes []int64, lastVolume int64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		o := c
		if i > 0 {
			o = closes[i-1]
		}
		hi, lo := o, c
		if c > o {
			hi, lo = c, o
		}
		vol := int64(100000)
		if i == len(closes)-1 {
			vol = lastVolume
		}
		bars[i] = models.Bar{
			Date:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   o,
			High:   hi + 100,
			Low:    lo - 100,
			Close:  c,
			Volume: vol,
		}
	}
	return bars
}

type fakeData struct {
	bars     map[string][]models.Bar
	closes   map[string]int64
	histErr  map[string]error
	closeErr map[string]error

	histCalls []string
}

func (f *fakeData) History(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	f.histCalls = append(f.histCalls, symbol)
	if err := f.histErr[symbol]; err != nil {
		return nil, err
	}
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, models.TransientError(fmt.Errorf("no data for %s", symbol))
	}
	return bars, nil
}

func (f *fakeData) LatestClose(ctx context.Context, symbol string) (int64, error) {
	if err := f.closeErr[symbol]; err != nil {
		return 0, err
	}
	if price, ok := f.closes[symbol]; ok {
		return price, nil
	}
	if bars, ok := f.bars[symbol]; ok && len(bars) > 0 {
		return bars[len(bars)-1].Close, nil
	}
	return 0, models.TransientError(fmt.Errorf("no close for %s", symbol))
}

type memStore struct {
	doc     *models.Portfolio
	saveErr error
	locked  bool
}

func (s *memStore) Lock(ctx context.Context) error {
	if s.locked {
		return fmt.Errorf("already locked")
	}
	s.locked = true
	return nil
}

func (s *memStore) Unlock() error {
	s.locked = false
	return nil
}

func (s *memStore) Load() (*models.Portfolio, error) {
	if s.doc == nil {
		return nil, nil
	}
	return s.doc.Clone(), nil
}

func (s *memStore) Save(p *models.Portfolio) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.doc = p.Clone()
	return nil
}

type fakeBroker struct {
	rejectSells bool
	rejectBuys  bool
}

func (b *fakeBroker) PlaceOrder(ctx context.Context, symbol string, side models.TradeAction, qty, price int64) (*models.Order, error) {
	if side == models.TradeSell && b.rejectSells || side == models.TradeBuy && b.rejectBuys {
		return nil, models.BrokerRejectionError(fmt.Errorf("order refused"))
	}
	return &models.Order{
		ID:     uuid.NewString(),
		Symbol: symbol,
		Side:   side,
		Qty:    qty,
		Price:  price,
		Status: models.OrderFilled,
	}, nil
}

func testConfig(watchlist ...string) config.TradingConfig {
	return config.TradingConfig{
		InitialBudgetVND:    7_500_000,
		MaxPositions:        5,
		MinEntryCashVND:     5_000_000,
		EntryScoreThreshold: 30,
		Watchlist:           watchlist,
	}
}

func newTestEngine(cfg config.TradingConfig, st Store, data MarketData, broker Broker, opts ...Option) *Engine {
	opts = append(opts, WithClock(func() time.Time { return tickDay }))
	return New(cfg, st, data, broker, opts...)
}

// seededStore holds a document with one open FPT position bought at 70500
// and the matching trade log entry.
func seededStore() *memStore {
	p := models.NewPortfolio(7_500_000, models.NewDate(tickDay.AddDate(0, 0, -1)))
	pos := models.Position{
		Symbol:       "FPT",
		Shares:       100,
		BuyPrice:     70500,
		BuyCost:      7_050_000,
		BuyDate:      p.Created,
		Target:       71925,
		StopLoss:     69788,
		Status:       models.PositionOpen,
		CurrentPrice: 70500,
		CurrentValue: 7_050_000,
	}
	p.Positions = append(p.Positions, pos)
	p.Cash = 450_000
	p.Trades = append(p.Trades, models.Trade{
		Date:   pos.BuyDate,
		Action: models.TradeBuy,
		Symbol: "FPT",
		Shares: 100,
		Price:  70500,
		Total:  7_050_000,
		Reason: "Score +55",
	})
	return &memStore{doc: p}
}

func TestTickInitializesPortfolio(t *testing.T) {
	st := &memStore{}
	data := &fakeData{bars: map[string][]models.Bar{"FPT": flatBars(50000)}}
	eng := newTestEngine(testConfig("FPT"), st, data, &fakeBroker{})

	p, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if p.InitialBudget != 7_500_000 || p.Cash != 7_500_000 {
		t.Errorf("budget/cash = %d/%d, want 7500000/7500000", p.InitialBudget, p.Cash)
	}
	if !p.Created.Equal(models.NewDate(tickDay)) {
		t.Errorf("created = %s, want %s", p.Created, models.NewDate(tickDay))
	}
	if st.doc == nil {
		t.Fatal("initialized document was not persisted")
	}
	if st.locked {
		t.Error("lock not released after tick")
	}
}

func TestTickBuysTopCandidate(t *testing.T) {
	st := &memStore{}
	data := &fakeData{bars: map[string][]models.Bar{"FPT": trendingBars(70500)}}
	eng := newTestEngine(testConfig("FPT"), st, data, &fakeBroker{})

	p, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if len(p.Positions) != 1 {
		t.Fatalf("open positions = %d, want 1", len(p.Positions))
	}
	pos := p.Positions[0]
	if pos.Symbol != "FPT" || pos.Shares != 100 {
		t.Errorf("position = %s x%d, want FPT x100", pos.Symbol, pos.Shares)
	}
	if pos.BuyPrice != 70500 || pos.BuyCost != 7_050_000 {
		t.Errorf("buy price/cost = %d/%d, want 70500/7050000", pos.BuyPrice, pos.BuyCost)
	}
	if pos.Target != 71925 || pos.StopLoss != 69788 {
		t.Errorf("target/stop = %d/%d, want 71925/69788", pos.Target, pos.StopLoss)
	}
	if p.Cash != 450_000 {
		t.Errorf("cash = %d, want 450000", p.Cash)
	}

	if len(p.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(p.Trades))
	}
	trade := p.Trades[0]
	if trade.Action != models.TradeBuy || trade.Total != 7_050_000 {
		t.Errorf("trade = %+v", trade)
	}
	if !strings.HasPrefix(trade.Reason, "Score +55") {
		t.Errorf("trade reason = %q, want it to start with Score +55", trade.Reason)
	}

	if len(p.History) != 1 {
		t.Fatalf("history = %d points, want 1", len(p.History))
	}
	point := p.History[0]
	if point.TotalValue != 7_500_000 || point.PnL != 0 {
		t.Errorf("history point = %+v, want total 7500000 pnl 0", point)
	}
	if point.Invested != 7_050_000 {
		t.Errorf("invested = %d, want 7050000", point.Invested)
	}
}

func TestTickHonorsEntryThreshold(t *testing.T) {
	st := &memStore{}
	data := &fakeData{bars: map[string][]models.Bar{"FPT": flatBars(50000)}}
	eng := newTestEngine(testConfig("FPT"), st, data, &fakeBroker{})

	p, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(p.Positions) != 0 || len(p.Trades) != 0 {
		t.Errorf("flat market should trade nothing, got %d positions %d trades",
			len(p.Positions), len(p.Trades))
	}
	if p.Cash != 7_500_000 {
		t.Errorf("cash = %d, want untouched 7500000", p.Cash)
	}
}

func TestTickStopLoss(t *testing.T) {
	st := seededStore()
	data := &fakeData{closes: map[string]int64{"FPT": 66900}}
	eng := newTestEngine(testConfig("FPT"), st, data, &fakeBroker{})

	p, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if len(p.Positions) != 0 {
		t.Fatalf("open positions = %d, want 0", len(p.Positions))
	}
	if len(p.ClosedPositions) != 1 {
		t.Fatalf("closed positions = %d, want 1", len(p.ClosedPositions))
	}
	closed := p.ClosedPositions[0]
	if closed.Status != models.PositionClosed || closed.SellPrice != 66900 {
		t.Errorf("closed = %+v", closed)
	}
	if closed.FinalPnL != -360_000 {
		t.Errorf("final pnl = %d, want -360000", closed.FinalPnL)
	}
	if closed.SellDate == nil || !closed.SellDate.Equal(models.NewDate(tickDay)) {
		t.Errorf("sell date = %v, want %s", closed.SellDate, models.NewDate(tickDay))
	}
	if p.Cash != 7_140_000 {
		t.Errorf("cash = %d, want 7140000", p.Cash)
	}

	sell := p.Trades[len(p.Trades)-1]
	if sell.Action != models.TradeSell || sell.Reason != "STOP LOSS at 66900" {
		t.Errorf("sell trade = %+v", sell)
	}

	// The sold symbol sits out the same tick's entry scan even though cash
	// is back above the entry floor.
	if len(data.histCalls) != 0 {
		t.Errorf("history fetched for cooled-down symbol: %v", data.histCalls)
	}

	point := p.History[len(p.History)-1]
	if point.TotalValue != 7_140_000 || point.PnL != -360_000 {
		t.Errorf("history point = %+v, want total 7140000 pnl -360000", point)
	}
}

func TestTickTargetReached(t *testing.T) {
	st := seededStore()
	data := &fakeData{closes: map[string]int64{"FPT": 72000}}
	eng := newTestEngine(testConfig("FPT"), st, data, &fakeBroker{})

	p, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if len(p.ClosedPositions) != 1 {
		t.Fatalf("closed positions = %d, want 1", len(p.ClosedPositions))
	}
	if got := p.ClosedPositions[0].FinalPnL; got != 150_000 {
		t.Errorf("final pnl = %d, want 150000", got)
	}
	if p.Cash != 7_650_000 {
		t.Errorf("cash = %d, want 7650000", p.Cash)
	}
	sell := p.Trades[len(p.Trades)-1]
	if sell.Reason != "TARGET REACHED at 72000" {
		t.Errorf("sell reason = %q", sell.Reason)
	}
}

func TestTickCooldownLastsOneTick(t *testing.T) {
	st := seededStore()
	data := &fakeData{
		bars:   map[string][]models.Bar{"FPT": trendingBars(70500)},
		closes: map[string]int64{"FPT": 66900},
	}
	eng := newTestEngine(testConfig("FPT"), st, data, &fakeBroker{})
	ctx := context.Background()

	p, err := eng.Tick(ctx)
	if err != nil {
		t.Fatalf("first Tick() error = %v", err)
	}
	if len(p.Positions) != 0 {
		t.Fatal("stop loss should have closed the position")
	}

	// The next tick may re-enter the symbol.
	p, err = eng.Tick(ctx)
	if err != nil {
		t.Fatalf("second Tick() error = %v", err)
	}
	if len(p.Positions) != 1 || p.Positions[0].Symbol != "FPT" {
		t.Fatalf("second tick should re-enter FPT, got %+v", p.Positions)
	}
	if p.Cash != 90_000 {
		t.Errorf("cash = %d, want 90000", p.Cash)
	}
}

func TestTickTieBreaksBySymbol(t *testing.T) {
	st := &memStore{}
	data := &fakeData{bars: map[string][]models.Bar{
		"BBB": trendingBars(70500),
		"AAA": trendingBars(70500),
	}}
	eng := newTestEngine(testConfig("BBB", "AAA"), st, data, &fakeBroker{})

	p, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(p.Positions) != 1 {
		t.Fatalf("open positions = %d, want 1", len(p.Positions))
	}
	if p.Positions[0].Symbol != "AAA" {
		t.Errorf("picked %s, want AAA on an equal-score tie", p.Positions[0].Symbol)
	}
}

func TestTickCarriesStalePrice(t *testing.T) {
	st := seededStore()
	data := &fakeData{closeErr: map[string]error{
		"FPT": models.TransientError(errors.New("feed down")),
	}}
	eng := newTestEngine(testConfig("FPT"), st, data, &fakeBroker{})

	p, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(p.Positions) != 1 {
		t.Fatalf("position should survive a stale price, got %d", len(p.Positions))
	}
	pos := p.Positions[0]
	if pos.CurrentPrice != 70500 || pos.CurrentValue != 7_050_000 {
		t.Errorf("carried price/value = %d/%d, want 70500/7050000",
			pos.CurrentPrice, pos.CurrentValue)
	}
	if pos.PnL != 0 {
		t.Errorf("stale price must not look like a move, pnl = %d", pos.PnL)
	}
}

func TestTickSkipsScanWhenCashLow(t *testing.T) {
	st := seededStore() // 450000 cash, below the 5M entry floor
	data := &fakeData{
		closes: map[string]int64{"FPT": 70500},
		bars:   map[string][]models.Bar{"VNM": trendingBars(25000)},
	}
	eng := newTestEngine(testConfig("FPT", "VNM"), st, data, &fakeBroker{})

	p, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(data.histCalls) != 0 {
		t.Errorf("scan ran despite low cash: fetched %v", data.histCalls)
	}
	if len(p.Positions) != 1 {
		t.Errorf("positions = %d, want the seeded 1", len(p.Positions))
	}
}

func TestTickSkipsScanAtMaxPositions(t *testing.T) {
	st := seededStore()
	st.doc.Cash = 20_000_000
	cfg := testConfig("FPT", "VNM")
	cfg.MaxPositions = 1
	data := &fakeData{
		closes: map[string]int64{"FPT": 70500},
		bars:   map[string][]models.Bar{"VNM": trendingBars(25000)},
	}
	eng := newTestEngine(cfg, st, data, &fakeBroker{})

	if _, err := eng.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(data.histCalls) != 0 {
		t.Errorf("scan ran despite max positions: fetched %v", data.histCalls)
	}
}

func TestTickSkipsUnanalyzableSymbols(t *testing.T) {
	st := &memStore{}
	short := flatBars(50000)[:models.MinAnalyzableBars-1]
	data := &fakeData{
		bars: map[string][]models.Bar{
			"AAA": short, // not analyzable
			"BBB": trendingBars(70500),
		},
		histErr: map[string]error{
			"CCC": models.TransientError(errors.New("timeout")),
		},
	}
	eng := newTestEngine(testConfig("AAA", "BBB", "CCC"), st, data, &fakeBroker{})

	p, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(p.Positions) != 1 || p.Positions[0].Symbol != "BBB" {
		t.Fatalf("positions = %+v, want just BBB", p.Positions)
	}
}

func TestTickBrokerRejectedSell(t *testing.T) {
	st := seededStore()
	data := &fakeData{closes: map[string]int64{"FPT": 66900}}
	eng := newTestEngine(testConfig("FPT"), st, data, &fakeBroker{rejectSells: true})

	p, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if len(p.Positions) != 1 {
		t.Fatalf("rejected sell must keep the position, got %d open", len(p.Positions))
	}
	if p.Cash != 450_000 {
		t.Errorf("cash = %d, want unchanged 450000", p.Cash)
	}
	last := p.Trades[len(p.Trades)-1]
	if last.Status != string(models.OrderRejected) {
		t.Errorf("last trade status = %q, want REJECTED", last.Status)
	}
	if last.Action != models.TradeSell || last.Reason != "STOP LOSS at 66900" {
		t.Errorf("rejected trade = %+v", last)
	}
}

func TestTickAbortsOnSaveFailure(t *testing.T) {
	st := seededStore()
	st.saveErr = errors.New("disk full")
	before, _ := json.Marshal(st.doc)

	data := &fakeData{closes: map[string]int64{"FPT": 72000}}
	eng := newTestEngine(testConfig("FPT"), st, data, &fakeBroker{})

	_, err := eng.Tick(context.Background())
	if err == nil {
		t.Fatal("Tick() should fail when the save fails")
	}
	if models.KindOf(err) != models.FailurePersistence {
		t.Errorf("failure kind = %s, want persistence", models.KindOf(err))
	}

	after, _ := json.Marshal(st.doc)
	if string(before) != string(after) {
		t.Error("failed tick mutated the stored document")
	}
	if st.locked {
		t.Error("lock not released after failed tick")
	}
}

func TestTickIsDeterministic(t *testing.T) {
	run := func() []byte {
		st := seededStore()
		data := &fakeData{
			bars:   map[string][]models.Bar{"FPT": trendingBars(70500), "VNM": trendingBars(25000)},
			closes: map[string]int64{"FPT": 72000},
		}
		eng := newTestEngine(testConfig("FPT", "VNM"), st, data, &fakeBroker{})
		p, err := eng.Tick(context.Background())
		if err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		doc, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		return doc
	}

	first := run()
	for i := 0; i < 3; i++ {
		if string(run()) != string(first) {
			t.Fatal("identical inputs produced different documents")
		}
	}
}

func TestAnalyzeDoesNotTouchPortfolio(t *testing.T) {
	st := seededStore()
	before, _ := json.Marshal(st.doc)
	data := &fakeData{bars: map[string][]models.Bar{"FPT": trendingBars(70500)}}
	eng := newTestEngine(testConfig("FPT"), st, data, &fakeBroker{})

	sig, err := eng.Analyze(context.Background(), "FPT")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if sig.Score != 55 || sig.Kind != models.SignalStrongBuy {
		t.Errorf("signal = %s score %d, want STRONG_BUY 55", sig.Kind, sig.Score)
	}
	if sig.Target == nil || *sig.Target != 71925 {
		t.Errorf("target = %v, want 71925", sig.Target)
	}
	if sig.StopLoss == nil || *sig.StopLoss != 69788 {
		t.Errorf("stop = %v, want 69788", sig.StopLoss)
	}

	after, _ := json.Marshal(st.doc)
	if string(before) != string(after) {
		t.Error("Analyze mutated the stored document")
	}
}

func TestEntryShares(t *testing.T) {
	tests := []struct {
		name  string
		cash  int64
		price int64
		rate  float64
		picks int
		want  int64
	}{
		{"full cash single pick", 7_500_000, 70500, 0, 1, 100},
		{"commission fits", 7_500_000, 70500, 0.0015, 1, 100},
		{"commission forces a lot down", 7_050_000, 70500, 0.0015, 1, 0},
		{"lot floor", 7_049_999, 70500, 0, 1, 0},
		{"diversified split", 15_000_000, 25000, 0, 5, 100},
		{"cash below one lot", 1_000_000, 70500, 0, 1, 0},
		{"zero price", 7_500_000, 0, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entryShares(tt.cash, tt.price, tt.rate, tt.picks); got != tt.want {
				t.Errorf("entryShares() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCommission(t *testing.T) {
	if got := commission(7_050_000, 0.0015); got != 10_575 {
		t.Errorf("commission = %d, want 10575", got)
	}
	if got := commission(7_050_000, 0); got != 0 {
		t.Errorf("zero rate commission = %d, want 0", got)
	}
}

func TestBuyReason(t *testing.T) {
	sig := models.Signal{
		Score:   55,
		Reasons: []string{"MACD bullish crossover", "UPTREND", "High volume (1.9x avg)"},
	}
	want := "Score +55, MACD bullish crossover, UPTREND"
	if got := buyReason(sig); got != want {
		t.Errorf("buyReason() = %q, want %q", got, want)
	}
	if got := buyReason(models.Signal{Score: -5}); got != "Score -5" {
		t.Errorf("buyReason() = %q, want Score -5", got)
	}
}
