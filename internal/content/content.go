// Package content produces the text that gets posted to a channel. Each
// strategy implements Generator; channels pick a strategy by name and the
// registry resolves it, falling back to the default for unknown names.
package content

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mlevan/autopost/internal/model"
)

type Generator interface {
	Generate(ctx context.Context, ch model.Channel, now time.Time) (string, error)
}

// GenerationError wraps any failure to produce text for a channel.
type GenerationError struct {
	Strategy string
	Reason   string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("content generation (%s): %s: %v", e.Strategy, e.Reason, e.Err)
	}
	return fmt.Sprintf("content generation (%s): %s", e.Strategy, e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// LinkHistory remembers which article links a channel has posted recently so
// the news strategy does not repeat them. Implemented by the redis cache; a
// no-op implementation is used when redis is disabled.
type LinkHistory interface {
	Recent(ctx context.Context, channelID uuid.UUID) ([]string, error)
	Remember(ctx context.Context, channelID uuid.UUID, link string) error
}

type NoopLinkHistory struct{}

func (NoopLinkHistory) Recent(context.Context, uuid.UUID) ([]string, error) { return nil, nil }
func (NoopLinkHistory) Remember(context.Context, uuid.UUID, string) error   { return nil }
