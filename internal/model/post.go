package model

import (
	"time"

	"github.com/google/uuid"
)

type PostStatus string

const (
	PostQueued PostStatus = "queued"
	PostSent   PostStatus = "sent"
	PostFailed PostStatus = "failed"
)

// Post is one ledger entry: an attempt to publish to a channel and its
// outcome. Created as queued, transitions exactly once to sent or failed.
type Post struct {
	ID           uuid.UUID
	ChannelID    uuid.UUID
	Status       PostStatus
	ScheduledFor time.Time
	SentAt       *time.Time
	Error        *string
	Content      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
