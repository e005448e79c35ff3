package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlevan/autopost/internal/localtime"
	"github.com/mlevan/autopost/internal/model"
)

func berlinChannel() model.Channel {
	return model.Channel{
		ID:                     uuid.New(),
		InternalName:           "tech_daily",
		TelegramChatID:         -100123,
		Topic:                  "technology",
		PostingFrequencyPerDay: 3,
		PostingWindowStart:     &model.TimeOfDay{Hour: 9},
		PostingWindowEnd:       &model.TimeOfDay{Hour: 18},
		Timezone:               "Europe/Berlin",
		AutoPostEnabled:        true,
	}
}

// 2024-06-01 08:00 UTC is 10:00 in Berlin (CEST), inside the 09:00-18:00 window.
var insideWindowUTC = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func TestShouldPost_AutoPostDisabled(t *testing.T) {
	t.Parallel()

	ch := berlinChannel()
	ch.AutoPostEnabled = false

	ok, err := NewEvaluator(newFakeLedger()).ShouldPost(context.Background(), ch, insideWindowUTC)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldPost_ZeroFrequency(t *testing.T) {
	t.Parallel()

	ch := berlinChannel()
	ch.PostingFrequencyPerDay = 0

	ok, err := NewEvaluator(newFakeLedger()).ShouldPost(context.Background(), ch, insideWindowUTC)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldPost_OutsideWindow(t *testing.T) {
	t.Parallel()

	ch := berlinChannel()
	// 05:00 UTC is 07:00 Berlin, before the window opens.
	ok, err := NewEvaluator(newFakeLedger()).ShouldPost(context.Background(), ch, time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldPost_InvalidTimezone(t *testing.T) {
	t.Parallel()

	ch := berlinChannel()
	ch.Timezone = "Mars/OlympusMons"

	_, err := NewEvaluator(newFakeLedger()).ShouldPost(context.Background(), ch, insideWindowUTC)
	require.ErrorIs(t, err, localtime.ErrInvalidTimeZone)
}

func TestShouldPost_QuotaCounting(t *testing.T) {
	t.Parallel()

	ch := berlinChannel()
	ledger := newFakeLedger()
	eval := NewEvaluator(ledger)
	ctx := context.Background()

	dayStart, dayEnd, err := DayBoundsFor(ch, insideWindowUTC)
	require.NoError(t, err)

	// Fill the quota: three reserved slots, one of them delivered.
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, reserved, err := ledger.ReserveQueued(ctx, ch.ID, "post", insideWindowUTC, dayStart, dayEnd, ch.PostingFrequencyPerDay)
		require.NoError(t, err)
		require.True(t, reserved)
		ids = append(ids, id)
	}
	require.NoError(t, ledger.MarkSent(ctx, ids[0], insideWindowUTC))

	ok, err := eval.ShouldPost(ctx, ch, insideWindowUTC)
	require.NoError(t, err)
	assert.False(t, ok, "quota of 3 is used up by queued+sent posts")

	// A failed post frees its slot.
	require.NoError(t, ledger.MarkFailed(ctx, ids[1], "flood wait"))
	ok, err = eval.ShouldPost(ctx, ch, insideWindowUTC)
	require.NoError(t, err)
	assert.True(t, ok, "failed posts do not occupy quota")
}

func TestShouldPost_QuotaResetsAtLocalMidnight(t *testing.T) {
	t.Parallel()

	ch := berlinChannel()
	ch.PostingFrequencyPerDay = 1
	ch.PostingWindowStart = nil
	ch.PostingWindowEnd = nil

	ledger := newFakeLedger()
	eval := NewEvaluator(ledger)
	ctx := context.Background()

	dayStart, dayEnd, err := DayBoundsFor(ch, insideWindowUTC)
	require.NoError(t, err)
	_, reserved, err := ledger.ReserveQueued(ctx, ch.ID, "post", insideWindowUTC, dayStart, dayEnd, 1)
	require.NoError(t, err)
	require.True(t, reserved)

	ok, err := eval.ShouldPost(ctx, ch, insideWindowUTC)
	require.NoError(t, err)
	assert.False(t, ok)

	// 22:30 UTC the same calendar date is 00:30 Berlin on June 2nd: a new
	// local day, so the quota is fresh.
	nextLocalDay := time.Date(2024, 6, 1, 22, 30, 0, 0, time.UTC)
	ok, err = eval.ShouldPost(ctx, ch, nextLocalDay)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestShouldPost_LedgerErrorPropagates(t *testing.T) {
	t.Parallel()

	ledger := newFakeLedger()
	ledger.countErr = errors.New("ledger down")

	_, err := NewEvaluator(ledger).ShouldPost(context.Background(), berlinChannel(), insideWindowUTC)
	require.ErrorIs(t, err, ledger.countErr)
}

func TestShouldPost_MidnightWrapWindow(t *testing.T) {
	t.Parallel()

	ch := berlinChannel()
	ch.PostingWindowStart = &model.TimeOfDay{Hour: 22}
	ch.PostingWindowEnd = &model.TimeOfDay{Hour: 2}

	eval := NewEvaluator(newFakeLedger())
	ctx := context.Background()

	// 21:30 UTC = 23:30 Berlin, inside the wrapped window.
	ok, err := eval.ShouldPost(ctx, ch, time.Date(2024, 6, 1, 21, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ok)

	// 23:00 UTC = 01:00 Berlin next day, still inside.
	ok, err = eval.ShouldPost(ctx, ch, time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ok)

	// 10:00 UTC = 12:00 Berlin, outside.
	ok, err = eval.ShouldPost(ctx, ch, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)
}
