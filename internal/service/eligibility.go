package service

import (
	"context"
	"time"

	"github.com/mlevan/autopost/internal/localtime"
	"github.com/mlevan/autopost/internal/model"
)

// quotaStatuses are the post statuses that occupy a quota slot. Queued posts
// count so an in-flight attempt reserves its slot; failed posts do not, so a
// failing channel is retried on later ticks.
var quotaStatuses = []model.PostStatus{model.PostQueued, model.PostSent}

// Evaluator decides whether a channel may post at a given instant: the
// auto-post gate, the channel-local posting window, and the per-local-day
// quota against the ledger.
type Evaluator struct {
	ledger Ledger
}

func NewEvaluator(ledger Ledger) *Evaluator {
	return &Evaluator{ledger: ledger}
}

func (e *Evaluator) ShouldPost(ctx context.Context, ch model.Channel, now time.Time) (bool, error) {
	if !ch.AutoPostEnabled || ch.PostingFrequencyPerDay <= 0 {
		return false, nil
	}

	local, err := localtime.Localize(now, ch.Timezone)
	if err != nil {
		return false, err
	}

	if !localtime.InWindow(local, ch.PostingWindowStart, ch.PostingWindowEnd) {
		return false, nil
	}

	dayStart, dayEnd := localtime.DayBounds(local)
	count, err := e.ledger.CountForDay(ctx, ch.ID, quotaStatuses, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return false, err
	}
	return count < ch.PostingFrequencyPerDay, nil
}

// DayBoundsFor returns the UTC bounds of the channel-local calendar day
// containing now. Callers must have validated the timezone already.
func DayBoundsFor(ch model.Channel, now time.Time) (time.Time, time.Time, error) {
	local, err := localtime.Localize(now, ch.Timezone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, end := localtime.DayBounds(local)
	return start.UTC(), end.UTC(), nil
}
