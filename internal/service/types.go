package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mlevan/autopost/internal/model"
)

// DeliveryGateway attempts delivery to a channel's destination. Implemented
// by client.TelegramClient; failures carry *client.DeliveryError.
type DeliveryGateway interface {
	Send(ctx context.Context, chatID int64, text string) (messageID int, sentAt time.Time, err error)
}

// Ledger is the slice of the post ledger the posting engine drives.
type Ledger interface {
	ReserveQueued(ctx context.Context, channelID uuid.UUID, content string, scheduledFor, dayStart, dayEnd time.Time, limit int) (uuid.UUID, bool, error)
	RecordFailed(ctx context.Context, channelID uuid.UUID, content string, scheduledFor time.Time, reason string) (uuid.UUID, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	CountForDay(ctx context.Context, channelID uuid.UUID, statuses []model.PostStatus, dayStart, dayEnd time.Time) (int, error)
	SweepStuckQueued(ctx context.Context, olderThan time.Time) (int, error)
}

// ChannelSource lists the channels a tick considers.
type ChannelSource interface {
	ListAutoPostEnabled(ctx context.Context) ([]model.Channel, error)
}

// TickStats summarizes one orchestrator pass.
type TickStats struct {
	Channels int `json:"channels"`
	Eligible int `json:"eligible"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}
