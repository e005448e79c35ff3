// Package repo holds the persistence contracts the posting engine depends
// on and their postgres and sqlite implementations.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mlevan/autopost/internal/model"
)

type ChannelRepository interface {
	List(ctx context.Context) ([]model.Channel, error)
	ListAutoPostEnabled(ctx context.Context) ([]model.Channel, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Channel, error)
	GetByInternalName(ctx context.Context, name string) (*model.Channel, error)
	// UpsertByInternalName creates the channel or replaces the configuration
	// of an existing channel with the same internal name. The channel's ID is
	// filled in on return.
	UpsertByInternalName(ctx context.Context, ch *model.Channel) error
	Update(ctx context.Context, ch *model.Channel) error
}

// PostLedger is the durable record of post attempts and their outcomes.
// Entries are created queued and transition exactly once to sent or failed.
type PostLedger interface {
	// ReserveQueued inserts a queued post only if the channel's count of
	// queued+sent posts scheduled within [dayStart, dayEnd) is still below
	// limit. The check and the insert are atomic per channel, so two
	// concurrent ticks can never both claim the last quota slot. Returns
	// reserved=false without error when the quota is exhausted.
	ReserveQueued(ctx context.Context, channelID uuid.UUID, content string, scheduledFor, dayStart, dayEnd time.Time, limit int) (id uuid.UUID, reserved bool, err error)

	// CreateQueued inserts a queued post unconditionally. Durable when it
	// returns.
	CreateQueued(ctx context.Context, channelID uuid.UUID, content string, scheduledFor time.Time) (uuid.UUID, error)

	// RecordFailed inserts a post directly in failed state, used when content
	// generation fails before anything could be queued.
	RecordFailed(ctx context.Context, channelID uuid.UUID, content string, scheduledFor time.Time, reason string) (uuid.UUID, error)

	// MarkSent and MarkFailed finalize a queued post. Both are idempotent:
	// repeating a call with the same terminal status is a no-op, and a post
	// already in the other terminal state is left untouched.
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	CountForDay(ctx context.Context, channelID uuid.UUID, statuses []model.PostStatus, dayStart, dayEnd time.Time) (int, error)
	ListRecent(ctx context.Context, channelID uuid.UUID, limit int) ([]model.Post, error)

	// SweepStuckQueued fails queued posts created before the cutoff. These
	// are attempts whose status transition was lost (process crash between
	// reserve and finalize); failing them frees their quota slot.
	SweepStuckQueued(ctx context.Context, olderThan time.Time) (int, error)
}
