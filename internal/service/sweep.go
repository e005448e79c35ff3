package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically fails queued posts that never got a terminal status
// (a crash between the reservation and the outcome write). Failing them
// frees their quota slot so the channel is not blocked for the day.
type Sweeper struct {
	ledger     Ledger
	stuckAfter time.Duration
	cron       *cron.Cron
}

func NewSweeper(ledger Ledger, spec string, stuckAfter time.Duration) (*Sweeper, error) {
	s := &Sweeper{
		ledger:     ledger,
		stuckAfter: stuckAfter,
		cron:       cron.New(),
	}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) Start() { s.cron.Start() }

func (s *Sweeper) Stop() {
	// Wait for a sweep in flight before returning.
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.stuckAfter)
	n, err := s.ledger.SweepStuckQueued(ctx, cutoff)
	if err != nil {
		slog.Error("stuck queued sweep failed", "err", err)
		return
	}
	if n > 0 {
		slog.Warn("swept stuck queued posts", "count", n, "older_than", cutoff.Format(time.RFC3339))
	}
}
