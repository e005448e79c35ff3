// Package client holds the delivery gateway: the one place that talks to the
// Telegram Bot API.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// DeliveryError is a typed delivery failure. Retryable failures (floods,
// server errors, timeouts) are expected to succeed on a later tick.
type DeliveryError struct {
	Retryable bool
	Reason    string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (retryable=%t): %s", e.Retryable, e.Reason)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type TelegramClient struct {
	bot     *tele.Bot
	limiter *rate.Limiter
}

// NewTelegramClient builds a send-only Telegram client. Telegram allows
// roughly 30 messages per second bot-wide; the limiter stays under that.
func NewTelegramClient(token string) (*TelegramClient, error) {
	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	return &TelegramClient{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(20), 20),
	}, nil
}

// Send delivers text to the chat and returns the Telegram message id and the
// server-side send time.
func (c *TelegramClient) Send(ctx context.Context, chatID int64, text string) (int, time.Time, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, time.Time{}, &DeliveryError{Retryable: true, Reason: "rate limit wait aborted", Err: err}
	}

	msg, err := c.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{
		ParseMode: tele.ModeHTML,
	})
	if err != nil {
		return 0, time.Time{}, classify(err)
	}

	sentAt := msg.Time()
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	return msg.ID, sentAt, nil
}

func classify(err error) error {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &DeliveryError{Retryable: true, Reason: fmt.Sprintf("flood control, retry after %ds", flood.RetryAfter), Err: err}
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		// 4xx responses (bad chat id, bot kicked, message too long) will not
		// fix themselves on retry.
		if apiErr.Code >= 500 {
			return &DeliveryError{Retryable: true, Reason: apiErr.Description, Err: err}
		}
		return &DeliveryError{Retryable: false, Reason: apiErr.Description, Err: err}
	}

	// Anything else is transport-level (timeouts, DNS, connection resets).
	return &DeliveryError{Retryable: true, Reason: err.Error(), Err: err}
}
