package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vietnam-stock-trader/config"
	"vietnam-stock-trader/dashboard"
	"vietnam-stock-trader/engine"
	"vietnam-stock-trader/observability"
	"vietnam-stock-trader/repository"
	"vietnam-stock-trader/scheduler"
	"vietnam-stock-trader/services"
	"vietnam-stock-trader/store"
)

func main() {
	// No .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	observability.InitLogger(os.Getenv("APP_ENV") == "production")
	observability.InitMetrics()

	cfg, err := config.Load()
	if err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Core collaborators.
	st := store.New(cfg.Store.PortfolioPath)
	marketData := services.NewMarketDataService(cfg.MarketData.BaseURL, cfg.MarketData.Source)
	broker := services.NewPaperBroker()

	board, err := dashboard.New(cfg.Store.DashboardPath)
	if err != nil {
		observability.Fatal("failed to initialize dashboard", "error", err)
	}

	// Optional collaborators, each degrading gracefully when unconfigured.
	var opts []engine.Option
	opts = append(opts, engine.WithFundamentals(marketData))

	var repo *repository.Repository
	if cfg.HasDatabase() {
		repo, err = repository.NewRepository(ctx, cfg.Database.URL)
		if err != nil {
			observability.Warn("archive database unavailable, continuing without it", "error", err)
			repo = nil
		} else if err := repo.Migrate(ctx); err != nil {
			observability.Warn("archive migration failed, continuing without archive", "error", err)
			repo.Close()
			repo = nil
		}
	}
	if repo != nil {
		opts = append(opts, engine.WithArchive(repo))
	}

	if cfg.HasSentiment() {
		classifier, err := services.NewSentimentService(ctx, cfg.Sentiment.AWSRegion, cfg.Sentiment.ModelID)
		if err != nil {
			observability.Warn("sentiment classifier unavailable, signals stay technical-only", "error", err)
		} else {
			opts = append(opts, engine.WithSentiment(services.NewNewsService(), classifier))
		}
	} else {
		observability.Info("sentiment not configured, signals stay technical-only")
	}

	if cfg.HasTelegram() {
		opts = append(opts, engine.WithNotifier(
			services.NewTelegramService(cfg.Telegram.BotToken, cfg.Telegram.ChatID)))
	}

	eng := engine.New(cfg.Trading, st, marketData, broker, opts...)
	app := NewApp(cfg, st, eng, repo, board)
	defer app.shutdown()

	// Scheduler fires ticks during market hours.
	sched, err := scheduler.New(cfg.Scheduler.IntervalMinutes, cfg.Scheduler.Timezone, func(ctx context.Context) error {
		_, err := app.Tick(ctx)
		return err
	})
	if err != nil {
		observability.Fatal("failed to initialize scheduler", "error", err)
	}
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			observability.Error("scheduler exited", "error", err)
		}
	}()

	// HTTP server.
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           NewRouter(NewAPIHandler(app, cfg), cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		observability.Info("HTTP server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Fatal("HTTP server failed", "error", err)
		}
	}()

	<-ctx.Done()
	observability.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		observability.Error("HTTP shutdown failed", "error", err)
	}
}
