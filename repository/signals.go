package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"vietnam-stock-trader/models"
)

// SaveSignal archives one scored signal.
func (r *Repository) SaveSignal(ctx context.Context, sig *models.Signal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO signals (id, symbol, signal, score, confidence, price, target, stop_loss,
			reasons, technical_score, sentiment_score, fundamental_score, combined, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, uuid.New(), sig.Symbol, string(sig.Kind), sig.Score, sig.Confidence, sig.Price,
		sig.Target, sig.StopLoss, sig.Reasons,
		sig.TechnicalScore, sig.SentimentScore, sig.FundamentalScore, sig.Combined, sig.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to archive signal: %w", err)
	}
	return nil
}

// RecentSignals returns the newest archived signals, newest first.
func (r *Repository) RecentSignals(ctx context.Context, limit int) ([]models.Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT symbol, signal, score, confidence, price, target, stop_loss,
			reasons, technical_score, sentiment_score, fundamental_score, combined, created_at
		FROM signals
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var s models.Signal
		var kind string
		err := rows.Scan(&s.Symbol, &kind, &s.Score, &s.Confidence, &s.Price, &s.Target, &s.StopLoss,
			&s.Reasons, &s.TechnicalScore, &s.SentimentScore, &s.FundamentalScore, &s.Combined, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		s.Kind = models.SignalKind(kind)
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// SignalsForSymbol returns the newest archived signals for one symbol.
func (r *Repository) SignalsForSymbol(ctx context.Context, symbol string, limit int) ([]models.Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT symbol, signal, score, confidence, price, target, stop_loss,
			reasons, technical_score, sentiment_score, fundamental_score, combined, created_at
		FROM signals
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals for %s: %w", symbol, err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var s models.Signal
		var kind string
		err := rows.Scan(&s.Symbol, &kind, &s.Score, &s.Confidence, &s.Price, &s.Target, &s.StopLoss,
			&s.Reasons, &s.TechnicalScore, &s.SentimentScore, &s.FundamentalScore, &s.Combined, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		s.Kind = models.SignalKind(kind)
		signals = append(signals, s)
	}
	return signals, rows.Err()
}
