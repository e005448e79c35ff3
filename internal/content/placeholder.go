package content

import (
	"context"
	"fmt"
	"time"

	"github.com/mlevan/autopost/internal/model"
)

// PlaceholderGenerator emits a static update line. It is the default
// strategy and keeps a channel alive before a real strategy is configured.
type PlaceholderGenerator struct{}

func (PlaceholderGenerator) Generate(_ context.Context, ch model.Channel, now time.Time) (string, error) {
	return fmt.Sprintf("[%s] Updates for %s (topic: %s). Stay tuned!",
		now.UTC().Format(time.RFC3339), ch.InternalName, ch.Topic), nil
}
