// Package dashboard renders the portfolio as a static HTML page after every
// tick. The page is self-contained and written atomically so a reader never
// sees a half-rendered file.
package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"vietnam-stock-trader/models"
)

// Renderer writes the portfolio page to a fixed path.
type Renderer struct {
	path string
	tmpl *template.Template
}

// New creates a renderer targeting path.
func New(path string) (*Renderer, error) {
	tmpl, err := template.New("portfolio").Funcs(template.FuncMap{
		"vnd": formatVND,
		"pct": func(v float64) string { return fmt.Sprintf("%+.2f%%", v) },
	}).Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}
	return &Renderer{path: path, tmpl: tmpl}, nil
}

// pageData is everything the template needs.
type pageData struct {
	Portfolio   *models.Portfolio
	TotalValue  int64
	Invested    int64
	PnL         int64
	PnLPercent  float64
	GeneratedAt string
	Trades      []models.Trade
}

// maxTradesShown caps the trade log section of the page.
const maxTradesShown = 20

// Render writes the portfolio page. Like the portfolio store it writes to a
// temp file and renames, so a crash mid-render leaves the old page intact.
func (r *Renderer) Render(p *models.Portfolio) error {
	total := p.TotalValue()
	pnl := total - p.InitialBudget
	var pnlPct float64
	if p.InitialBudget != 0 {
		pnlPct = float64(pnl) / float64(p.InitialBudget) * 100
	}

	trades := p.Trades
	if len(trades) > maxTradesShown {
		trades = trades[len(trades)-maxTradesShown:]
	}
	// Newest first.
	reversed := make([]models.Trade, len(trades))
	for i, t := range trades {
		reversed[len(trades)-1-i] = t
	}

	data := pageData{
		Portfolio:   p,
		TotalValue:  total,
		Invested:    total - p.Cash,
		PnL:         pnl,
		PnLPercent:  pnlPct,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Trades:      reversed,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dashboard directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write dashboard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace dashboard: %w", err)
	}
	return nil
}

// Path returns the rendered page path.
func (r *Renderer) Path() string {
	return r.path
}

// formatVND renders an amount with thousands separators.
func formatVND(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := fmt.Sprintf("%d", v)
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return sign + string(out)
}

const pageTemplate = `<!DOCTYPE html>
<html lang="vi">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>VN Stock Portfolio</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem; background: #0f1419; color: #e6e6e6; }
h1, h2 { color: #fff; }
.cards { display: flex; gap: 1rem; flex-wrap: wrap; margin-bottom: 2rem; }
.card { background: #1a2129; border-radius: 8px; padding: 1rem 1.5rem; min-width: 180px; }
.card .label { color: #8a949e; font-size: 0.8rem; text-transform: uppercase; }
.card .value { font-size: 1.4rem; font-weight: 600; margin-top: 0.25rem; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
th, td { text-align: right; padding: 0.5rem 0.75rem; border-bottom: 1px solid #2a333d; }
th:first-child, td:first-child { text-align: left; }
th { color: #8a949e; font-size: 0.8rem; text-transform: uppercase; }
.pos { color: #4caf50; }
.neg { color: #ef5350; }
.muted { color: #8a949e; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>VN Stock Portfolio</h1>
<p class="muted">Generated {{.GeneratedAt}} &middot; Currency: {{.Portfolio.Currency}} &middot; Since {{.Portfolio.Created}}</p>

<div class="cards">
  <div class="card"><div class="label">Total Value</div><div class="value">{{vnd .TotalValue}}</div></div>
  <div class="card"><div class="label">Cash</div><div class="value">{{vnd .Portfolio.Cash}}</div></div>
  <div class="card"><div class="label">Invested</div><div class="value">{{vnd .Invested}}</div></div>
  <div class="card"><div class="label">P&amp;L</div><div class="value {{if ge .PnL 0}}pos{{else}}neg{{end}}">{{vnd .PnL}} ({{pct .PnLPercent}})</div></div>
</div>

<h2>Open Positions ({{len .Portfolio.Positions}})</h2>
<table>
<tr><th>Symbol</th><th>Shares</th><th>Buy</th><th>Current</th><th>Value</th><th>P&amp;L</th><th>%</th><th>Target</th><th>Stop</th></tr>
{{range .Portfolio.Positions}}
<tr>
  <td>{{.Symbol}}</td><td>{{.Shares}}</td><td>{{vnd .BuyPrice}}</td><td>{{vnd .CurrentPrice}}</td>
  <td>{{vnd .CurrentValue}}</td>
  <td class="{{if ge .PnL 0}}pos{{else}}neg{{end}}">{{vnd .PnL}}</td>
  <td class="{{if ge .PnL 0}}pos{{else}}neg{{end}}">{{pct .PnLPercent}}</td>
  <td>{{vnd .Target}}</td><td>{{vnd .StopLoss}}</td>
</tr>
{{else}}
<tr><td colspan="9" class="muted">No open positions</td></tr>
{{end}}
</table>

<h2>Closed Positions ({{len .Portfolio.ClosedPositions}})</h2>
<table>
<tr><th>Symbol</th><th>Shares</th><th>Buy</th><th>Sell</th><th>Sold</th><th>Final P&amp;L</th></tr>
{{range .Portfolio.ClosedPositions}}
<tr>
  <td>{{.Symbol}}</td><td>{{.Shares}}</td><td>{{vnd .BuyPrice}}</td><td>{{vnd .SellPrice}}</td>
  <td>{{with .SellDate}}{{.}}{{end}}</td>
  <td class="{{if ge .FinalPnL 0}}pos{{else}}neg{{end}}">{{vnd .FinalPnL}}</td>
</tr>
{{else}}
<tr><td colspan="6" class="muted">No closed positions</td></tr>
{{end}}
</table>

<h2>Recent Trades</h2>
<table>
<tr><th>Date</th><th>Action</th><th>Symbol</th><th>Shares</th><th>Price</th><th>Total</th><th>Reason</th></tr>
{{range .Trades}}
<tr>
  <td>{{.Date}}</td><td>{{.Action}}{{if .Status}} ({{.Status}}){{end}}</td><td>{{.Symbol}}</td>
  <td>{{.Shares}}</td><td>{{vnd .Price}}</td><td>{{vnd .Total}}</td><td>{{.Reason}}</td>
</tr>
{{else}}
<tr><td colspan="7" class="muted">No trades yet</td></tr>
{{end}}
</table>
</body>
</html>
`
