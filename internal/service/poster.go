package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mlevan/autopost/internal/client"
	"github.com/mlevan/autopost/internal/content"
	"github.com/mlevan/autopost/internal/model"
)

type Options struct {
	// Workers bounds how many channels are processed concurrently per tick.
	Workers         int
	GenerateTimeout time.Duration
	SendTimeout     time.Duration
}

// Poster drives one tick: evaluate every auto-post channel, and for eligible
// ones generate content, reserve a quota slot in the ledger, deliver, and
// record the outcome. Failures are isolated per channel.
type Poster struct {
	channels ChannelSource
	ledger   Ledger
	registry *content.Registry
	gateway  DeliveryGateway
	eval     *Evaluator
	opts     Options
}

func NewPoster(channels ChannelSource, ledger Ledger, registry *content.Registry, gateway DeliveryGateway, opts Options) *Poster {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 60 * time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	return &Poster{
		channels: channels,
		ledger:   ledger,
		registry: registry,
		gateway:  gateway,
		eval:     NewEvaluator(ledger),
		opts:     opts,
	}
}

// RunTick processes all auto-post channels for the given instant. It never
// returns a per-channel error; only the initial channel listing can fail.
func (p *Poster) RunTick(ctx context.Context, now time.Time) (TickStats, error) {
	channels, err := p.channels.ListAutoPostEnabled(ctx)
	if err != nil {
		return TickStats{}, err
	}

	var (
		mu    sync.Mutex
		stats = TickStats{Channels: len(channels)}
	)

	g := &errgroup.Group{}
	g.SetLimit(p.opts.Workers)
	for _, ch := range channels {
		g.Go(func() error {
			outcome := p.processChannel(ctx, ch, now)
			mu.Lock()
			switch outcome {
			case outcomeSent:
				stats.Eligible++
				stats.Sent++
			case outcomeFailed:
				stats.Eligible++
				stats.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return stats, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

func (p *Poster) processChannel(ctx context.Context, ch model.Channel, now time.Time) outcome {
	log := slog.With("channel", ch.InternalName, "channel_id", ch.ID.String())

	ok, err := p.eval.ShouldPost(ctx, ch, now)
	if err != nil {
		log.Error("eligibility check failed, channel skipped", "err", err)
		return outcomeSkipped
	}
	if !ok {
		return outcomeSkipped
	}

	// Quota is charged at attempt time: from here on every path ends in a
	// ledger entry.
	text, err := p.generate(ctx, ch, now)
	if err != nil {
		log.Warn("content generation failed", "strategy", ch.ContentStrategy, "err", err)
		if _, recErr := p.ledger.RecordFailed(ctx, ch.ID, "", now, err.Error()); recErr != nil {
			log.Error("failed to record generation failure", "err", recErr)
		}
		return outcomeFailed
	}

	dayStart, dayEnd, err := DayBoundsFor(ch, now)
	if err != nil {
		log.Error("day bounds failed, channel skipped", "err", err)
		return outcomeSkipped
	}

	postID, reserved, err := p.ledger.ReserveQueued(ctx, ch.ID, text, now, dayStart, dayEnd, ch.PostingFrequencyPerDay)
	if err != nil {
		// Nothing was written; the channel is re-evaluated next tick.
		log.Error("ledger reservation failed, channel skipped", "err", err)
		return outcomeSkipped
	}
	if !reserved {
		// A concurrent attempt claimed the last slot after our evaluation.
		log.Info("quota slot no longer available, skipping")
		return outcomeSkipped
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.opts.SendTimeout)
	defer cancel()
	msgID, sentAt, err := p.gateway.Send(sendCtx, ch.TelegramChatID, text)
	if err != nil {
		p.recordDeliveryFailure(ctx, log, postID, err)
		return outcomeFailed
	}
	if sentAt.IsZero() {
		sentAt = now
	}

	if err := p.ledger.MarkSent(ctx, postID, sentAt); err != nil {
		// The message is out but the ledger still says queued; the sweep will
		// reconcile this record.
		log.Error("failed to mark post sent", "post_id", postID.String(), "err", err)
		return outcomeFailed
	}

	log.Info("post sent", "post_id", postID.String(), "message_id", msgID)
	return outcomeSent
}

func (p *Poster) generate(ctx context.Context, ch model.Channel, now time.Time) (string, error) {
	gen := p.registry.Resolve(ch.ContentStrategy)
	if gen == nil {
		return "", errors.New("no content generator available")
	}

	genCtx, cancel := context.WithTimeout(ctx, p.opts.GenerateTimeout)
	defer cancel()

	text, err := gen.Generate(genCtx, ch, now)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New("generator produced empty content")
	}
	return text, nil
}

func (p *Poster) recordDeliveryFailure(ctx context.Context, log *slog.Logger, postID uuid.UUID, err error) {
	// Retryable vs. permanent only changes log severity; either way the post
	// is finalized as failed and the channel retries on a later tick.
	var de *client.DeliveryError
	if errors.As(err, &de) && !de.Retryable {
		log.Error("delivery failed permanently", "post_id", postID.String(), "reason", de.Reason)
	} else {
		log.Warn("delivery failed, will retry on a later tick", "post_id", postID.String(), "err", err)
	}

	if markErr := p.ledger.MarkFailed(ctx, postID, err.Error()); markErr != nil {
		log.Error("failed to mark post failed, record left queued for sweep", "post_id", postID.String(), "err", markErr)
	}
}
