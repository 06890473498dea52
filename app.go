package main

import (
	"context"
	"fmt"

	"vietnam-stock-trader/config"
	"vietnam-stock-trader/dashboard"
	"vietnam-stock-trader/engine"
	"vietnam-stock-trader/models"
	"vietnam-stock-trader/observability"
	"vietnam-stock-trader/repository"
	"vietnam-stock-trader/store"
)

// App wires the decision engine, the portfolio store, the dashboard and the
// optional archive behind one facade used by the HTTP handlers and the
// scheduler.
type App struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
	repo   *repository.Repository
	board  *dashboard.Renderer
}

// NewApp creates a new App.
func NewApp(cfg *config.Config, st *store.Store, eng *engine.Engine, repo *repository.Repository, board *dashboard.Renderer) *App {
	return &App{
		cfg:    cfg,
		store:  st,
		engine: eng,
		repo:   repo,
		board:  board,
	}
}

// shutdown releases held resources.
func (a *App) shutdown() {
	if a.repo != nil {
		a.repo.Close()
	}
}

// Tick runs one decision cycle and refreshes the dashboard page.
func (a *App) Tick(ctx context.Context) (*models.Portfolio, error) {
	p, err := a.engine.Tick(ctx)
	if err != nil {
		return nil, err
	}
	if a.board != nil {
		if err := a.board.Render(p); err != nil {
			observability.Warn("dashboard render failed", "error", err)
		}
	}
	return p, nil
}

// Analyze scores one symbol without touching the portfolio.
func (a *App) Analyze(ctx context.Context, symbol string) (*models.Signal, error) {
	return a.engine.Analyze(ctx, symbol)
}

// Portfolio returns the last persisted portfolio document. Saves are atomic
// renames, so an unlocked read always sees a complete document.
func (a *App) Portfolio() (*models.Portfolio, error) {
	p, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("no portfolio document yet, run a tick first")
	}
	return p, nil
}

// Signals returns recent archived signals.
func (a *App) Signals(ctx context.Context, limit int) ([]models.Signal, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("signal archive not configured")
	}
	return a.repo.RecentSignals(ctx, limit)
}

// HasArchive reports whether the archive database is wired.
func (a *App) HasArchive() bool {
	return a.repo != nil
}

// ArchiveHealth pings the archive database.
func (a *App) ArchiveHealth(ctx context.Context) error {
	if a.repo == nil {
		return fmt.Errorf("archive not configured")
	}
	return a.repo.Health(ctx)
}
