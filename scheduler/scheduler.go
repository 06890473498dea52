// Package scheduler invokes the decision tick on a fixed cadence during
// Vietnamese market hours. Ticks outside trading sessions are skipped, not
// queued.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"vietnam-stock-trader/observability"
)

// HOSE trading sessions (local time): morning 09:00-11:30, afternoon
// 13:00-15:00, Monday through Friday.
const (
	morningOpenHour    = 9
	morningCloseHour   = 11
	morningCloseMinute = 30
	afternoonOpenHour  = 13
	afternoonCloseHour = 15
)

// TickFunc runs one decision cycle.
type TickFunc func(ctx context.Context) error

// Scheduler fires the tick at a fixed interval, gated to market hours.
type Scheduler struct {
	interval time.Duration
	location *time.Location
	tick     TickFunc

	// now is replaceable so tests control the clock.
	now func() time.Time
}

// New creates a scheduler. timezone must name the exchange's local zone,
// normally Asia/Ho_Chi_Minh.
func New(intervalMinutes int, timezone string, tick TickFunc) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid market timezone %q: %w", timezone, err)
	}
	return &Scheduler{
		interval: time.Duration(intervalMinutes) * time.Minute,
		location: loc,
		tick:     tick,
		now:      time.Now,
	}, nil
}

// Run fires the tick every interval until ctx is cancelled. The first tick
// fires immediately when the market is open.
func (s *Scheduler) Run(ctx context.Context) error {
	observability.Info("scheduler started",
		"interval", s.interval,
		"timezone", s.location.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			observability.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	now := s.now().In(s.location)
	if !s.MarketOpen(now) {
		observability.Debug("market closed, skipping tick", "time", now.Format(time.RFC3339))
		return
	}
	if err := s.tick(ctx); err != nil {
		observability.Error("scheduled tick failed", "error", err)
	}
}

// MarketOpen reports whether t falls inside a HOSE trading session.
func (s *Scheduler) MarketOpen(t time.Time) bool {
	t = t.In(s.location)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := t.Hour()*60 + t.Minute()
	morningOpen := morningOpenHour * 60
	morningClose := morningCloseHour*60 + morningCloseMinute
	afternoonOpen := afternoonOpenHour * 60
	afternoonClose := afternoonCloseHour * 60

	inMorning := minutes >= morningOpen && minutes < morningClose
	inAfternoon := minutes >= afternoonOpen && minutes < afternoonClose
	return inMorning || inAfternoon
}
