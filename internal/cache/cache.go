package cache

import (
	"context"

	"github.com/google/uuid"
)

// LinkCache keeps the set of article links a channel posted recently.
type LinkCache interface {
	Recent(ctx context.Context, channelID uuid.UUID) ([]string, error)
	Remember(ctx context.Context, channelID uuid.UUID, link string) error
}
