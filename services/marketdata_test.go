package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"vietnam-stock-trader/models"
)

// resetBreakers swaps in a fresh circuit breaker registry so failure tests
// cannot trip the breaker for later tests.
func resetBreakers(t *testing.T) {
	t.Helper()
	GetGlobalRegistry()
	old := globalRegistry
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))
	t.Cleanup(func() { SetGlobalRegistry(old) })
}

const dailyOhlcPayload = `{
  "status": "Success",
  "data": [
    {"symbol": "FPT", "trading_date": "2026-08-20", "open": "70.0", "high": "71.2", "low": "69.5", "close": "70.5", "volume": "1200000"},
    {"symbol": "FPT", "trading_date": "2026-08-21", "open": "70.5", "high": "72.0", "low": "70.1", "close": "71.0", "volume": "900000"}
  ]
}`

func TestHistoryRescalesPrices(t *testing.T) {
	resetBreakers(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/Market/DailyOhlc" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("symbol"); got != "FPT" {
			t.Errorf("symbol query = %q, want FPT", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(dailyOhlcPayload))
	}))
	defer srv.Close()

	svc := NewMarketDataService(srv.URL, "VCI")
	bars, err := svc.History(context.Background(), "FPT", 30)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}

	first := bars[0]
	if first.Open != 70000 || first.High != 71200 || first.Low != 69500 || first.Close != 70500 {
		t.Errorf("first bar = %+v, want prices rescaled to whole VND", first)
	}
	if first.Volume != 1200000 {
		t.Errorf("volume = %d, want 1200000", first.Volume)
	}
	if bars[1].Close != 71000 {
		t.Errorf("second close = %d, want 71000", bars[1].Close)
	}
}

func TestLatestCloseUsesNewestBar(t *testing.T) {
	resetBreakers(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(dailyOhlcPayload))
	}))
	defer srv.Close()

	svc := NewMarketDataService(srv.URL, "VCI")
	price, err := svc.LatestClose(context.Background(), "FPT")
	if err != nil {
		t.Fatalf("LatestClose() error = %v", err)
	}
	if price != 71000 {
		t.Errorf("LatestClose() = %d, want 71000", price)
	}
}

func TestHistoryFeedFailureIsTransient(t *testing.T) {
	resetBreakers(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewMarketDataService(srv.URL, "VCI")
	_, err := svc.History(context.Background(), "FPT", 30)
	if err == nil {
		t.Fatal("History() should fail on a 502")
	}
	if models.KindOf(err) != models.FailureTransient {
		t.Errorf("failure kind = %s, want transient", models.KindOf(err))
	}
}

func TestHistoryBadPayloadIsSchemaError(t *testing.T) {
	resetBreakers(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "Success", "data": [
			{"symbol": "FPT", "trading_date": "2026-08-20", "open": "70.0", "high": "71.2", "low": "69.5", "close": "garbage", "volume": "1000"}
		]}`))
	}))
	defer srv.Close()

	svc := NewMarketDataService(srv.URL, "VCI")
	_, err := svc.History(context.Background(), "FPT", 30)
	if err == nil {
		t.Fatal("History() should fail on an unparseable price")
	}
	if models.KindOf(err) != models.FailureSchema {
		t.Errorf("failure kind = %s, want schema", models.KindOf(err))
	}
}

func TestFundamentalsMapsEmptyToNil(t *testing.T) {
	resetBreakers(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "Success", "data": {"symbol": "FPT", "pe": "12.5", "roe": "", "debt_to_equity": "0.8"}}`))
	}))
	defer srv.Close()

	svc := NewMarketDataService(srv.URL, "VCI")
	f, err := svc.Fundamentals(context.Background(), "FPT")
	if err != nil {
		t.Fatalf("Fundamentals() error = %v", err)
	}
	if f.PE == nil || *f.PE != 12.5 {
		t.Errorf("PE = %v, want 12.5", f.PE)
	}
	if f.ROE != nil {
		t.Errorf("ROE = %v, want nil for an empty field", *f.ROE)
	}
	if f.DebtToEquity == nil || *f.DebtToEquity != 0.8 {
		t.Errorf("DebtToEquity = %v, want 0.8", f.DebtToEquity)
	}
}

func TestRescalePrice(t *testing.T) {
	tests := []struct {
		quote string
		want  int64
	}{
		{"70.5", 70500},
		{"68.75", 68750},
		{"100", 100000},
		{"0.05", 50},
		{"70.1235", 70124},
	}
	for _, tt := range tests {
		got, err := rescalePrice(tt.quote)
		if err != nil {
			t.Errorf("rescalePrice(%q) error = %v", tt.quote, err)
			continue
		}
		if got != tt.want {
			t.Errorf("rescalePrice(%q) = %d, want %d", tt.quote, got, tt.want)
		}
	}

	if _, err := rescalePrice("n/a"); err == nil {
		t.Error("rescalePrice should reject a non-numeric quote")
	}
}

func TestDecodeBarRejectsBadRows(t *testing.T) {
	tests := []struct {
		name                                  string
		date, open, high, low, close, volume string
	}{
		{"bad date", "21-08-2026", "70", "71", "69", "70.5", "1000"},
		{"bad volume", "2026-08-21", "70", "71", "69", "70.5", "many"},
		{"zero close", "2026-08-21", "70", "71", "69", "0", "1000"},
		{"negative volume", "2026-08-21", "70", "71", "69", "70.5", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeBar(tt.date, tt.open, tt.high, tt.low, tt.close, tt.volume); err == nil {
				t.Error("decodeBar() should reject the row")
			}
		})
	}
}
