package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"vietnam-stock-trader/models"
	"vietnam-stock-trader/observability"
)

// priceScale rescales feed quotes (thousands of VND) to integer VND. The
// multiplication happens exactly once, at this ingest boundary; everything
// downstream works in whole VND.
var priceScale = decimal.NewFromInt(1000)

// VN30Symbols are the components of the VN30 blue-chip index.
var VN30Symbols = []string{
	"ACB", "BCM", "BID", "BVH", "CTG", "FPT", "GAS", "GVR",
	"HDB", "HPG", "MBB", "MSN", "MWG", "NVL", "PDR", "PLX",
	"PNJ", "POW", "SAB", "SSI", "STB", "TCB", "TPB", "VCB",
	"VHM", "VIB", "VIC", "VJC", "VNM", "VPB", "VRE",
}

// MarketDataService fetches daily OHLCV history and financial ratios for
// Vietnamese equities from the configured feed.
type MarketDataService struct {
	client *resty.Client
	source string
}

// NewMarketDataService creates a market data client for the given base URL
// and data source ("VCI", "TCBS" or "SSI").
func NewMarketDataService(baseURL, source string) *MarketDataService {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")

	return &MarketDataService{
		client: client,
		source: source,
	}
}

// dailyOhlcResponse is the feed's daily history payload. Prices arrive as
// strings in thousands of VND.
type dailyOhlcResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    []struct {
		Symbol      string `json:"symbol"`
		TradingDate string `json:"trading_date"`
		Open        string `json:"open"`
		High        string `json:"high"`
		Low         string `json:"low"`
		Close       string `json:"close"`
		Volume      string `json:"volume"`
	} `json:"data"`
}

// ratiosResponse is the feed's financial ratio payload. Absent ratios come
// back as empty strings.
type ratiosResponse struct {
	Status string `json:"status"`
	Data   struct {
		Symbol       string `json:"symbol"`
		PE           string `json:"pe"`
		ROE          string `json:"roe"`
		DebtToEquity string `json:"debt_to_equity"`
	} `json:"data"`
}

// History returns the last days calendar days of daily bars for symbol,
// ordered ascending by date, with prices rescaled to integer VND.
func (s *MarketDataService) History(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest("marketdata", "history")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI("marketdata", "history")

	to := time.Now()
	from := to.AddDate(0, 0, -days)

	var payload dailyOhlcResponse
	fetch := func() (any, error) {
		return nil, WithRetry(ctx, DefaultRetryConfig, func() error {
			resp, err := s.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"symbol":   symbol,
					"source":   s.source,
					"from":     from.Format("2006-01-02"),
					"to":       to.Format("2006-01-02"),
					"interval": "1D",
				}).
				SetResult(&payload).
				Get("/api/v2/Market/DailyOhlc")
			if err != nil {
				return fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
			}
			if resp.IsError() {
				return fmt.Errorf("feed returned status %d for %s", resp.StatusCode(), symbol)
			}
			return nil
		})
	}

	if _, err := GetGlobalRegistry().Execute(ctx, BreakerMarketData, fetch); err != nil {
		metrics.RecordExternalAPIError("marketdata", "history", "transient")
		return nil, models.TransientError(err)
	}

	bars := make([]models.Bar, 0, len(payload.Data))
	for _, row := range payload.Data {
		bar, err := decodeBar(row.TradingDate, row.Open, row.High, row.Low, row.Close, row.Volume)
		if err != nil {
			metrics.RecordExternalAPIError("marketdata", "history", "schema")
			return nil, models.SchemaError(fmt.Errorf("bad bar for %s on %s: %w", symbol, row.TradingDate, err))
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// LatestClose returns the most recent daily close for symbol in integer VND.
func (s *MarketDataService) LatestClose(ctx context.Context, symbol string) (int64, error) {
	bars, err := s.History(ctx, symbol, 7)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, models.TransientError(fmt.Errorf("no recent bars for %s", symbol))
	}
	return bars[len(bars)-1].Close, nil
}

// Fundamentals returns the financial ratios for symbol. A ratio the feed has
// no figure for stays nil.
func (s *MarketDataService) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest("marketdata", "ratios")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI("marketdata", "ratios")

	var payload ratiosResponse
	fetch := func() (any, error) {
		return nil, WithRetry(ctx, DefaultRetryConfig, func() error {
			resp, err := s.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"symbol": symbol,
					"source": s.source,
				}).
				SetResult(&payload).
				Get("/api/v2/Market/FinancialRatios")
			if err != nil {
				return fmt.Errorf("failed to fetch ratios for %s: %w", symbol, err)
			}
			if resp.IsError() {
				return fmt.Errorf("feed returned status %d for %s ratios", resp.StatusCode(), symbol)
			}
			return nil
		})
	}

	if _, err := GetGlobalRegistry().Execute(ctx, BreakerMarketData, fetch); err != nil {
		metrics.RecordExternalAPIError("marketdata", "ratios", "transient")
		return nil, models.TransientError(err)
	}

	f := &models.Fundamentals{}
	var err error
	if f.PE, err = parseOptionalFloat(payload.Data.PE); err != nil {
		return nil, models.SchemaError(fmt.Errorf("bad PE for %s: %w", symbol, err))
	}
	if f.ROE, err = parseOptionalFloat(payload.Data.ROE); err != nil {
		return nil, models.SchemaError(fmt.Errorf("bad ROE for %s: %w", symbol, err))
	}
	if f.DebtToEquity, err = parseOptionalFloat(payload.Data.DebtToEquity); err != nil {
		return nil, models.SchemaError(fmt.Errorf("bad debt_to_equity for %s: %w", symbol, err))
	}
	return f, nil
}

// decodeBar converts one feed row to a Bar, rescaling thousands of VND to
// whole VND with exact decimal arithmetic.
func decodeBar(date, open, high, low, close, volume string) (models.Bar, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return models.Bar{}, fmt.Errorf("invalid trading_date %q: %w", date, err)
	}

	o, err := rescalePrice(open)
	if err != nil {
		return models.Bar{}, fmt.Errorf("open: %w", err)
	}
	h, err := rescalePrice(high)
	if err != nil {
		return models.Bar{}, fmt.Errorf("high: %w", err)
	}
	l, err := rescalePrice(low)
	if err != nil {
		return models.Bar{}, fmt.Errorf("low: %w", err)
	}
	c, err := rescalePrice(close)
	if err != nil {
		return models.Bar{}, fmt.Errorf("close: %w", err)
	}
	v, err := strconv.ParseInt(volume, 10, 64)
	if err != nil {
		return models.Bar{}, fmt.Errorf("invalid volume %q: %w", volume, err)
	}
	if c <= 0 || v < 0 {
		return models.Bar{}, fmt.Errorf("non-positive close %d or negative volume %d", c, v)
	}

	return models.Bar{Date: d, Open: o, High: h, Low: l, Close: c, Volume: v}, nil
}

// rescalePrice converts a quote in thousands of VND to whole VND.
func rescalePrice(quote string) (int64, error) {
	d, err := decimal.NewFromString(quote)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", quote, err)
	}
	return d.Mul(priceScale).Round(0).IntPart(), nil
}

// parseOptionalFloat parses a ratio field, mapping the feed's empty string
// to nil.
func parseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
