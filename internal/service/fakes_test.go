package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlevan/autopost/internal/model"
)

// fakeLedger is an in-memory Ledger with the same quota semantics as the SQL
// implementations: queued and sent posts occupy a slot, failed posts do not.
type fakeLedger struct {
	mu    sync.Mutex
	posts map[uuid.UUID]*model.Post

	reserveErr error
	countErr   error
	markErr    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{posts: make(map[uuid.UUID]*model.Post)}
}

func (l *fakeLedger) countLocked(channelID uuid.UUID, statuses []model.PostStatus, dayStart, dayEnd time.Time) int {
	n := 0
	for _, p := range l.posts {
		if p.ChannelID != channelID {
			continue
		}
		if p.ScheduledFor.Before(dayStart) || !p.ScheduledFor.Before(dayEnd) {
			continue
		}
		for _, s := range statuses {
			if p.Status == s {
				n++
				break
			}
		}
	}
	return n
}

func (l *fakeLedger) ReserveQueued(_ context.Context, channelID uuid.UUID, content string, scheduledFor, dayStart, dayEnd time.Time, limit int) (uuid.UUID, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reserveErr != nil {
		return uuid.Nil, false, l.reserveErr
	}
	if l.countLocked(channelID, []model.PostStatus{model.PostQueued, model.PostSent}, dayStart, dayEnd) >= limit {
		return uuid.Nil, false, nil
	}
	id := uuid.New()
	l.posts[id] = &model.Post{
		ID:           id,
		ChannelID:    channelID,
		Status:       model.PostQueued,
		ScheduledFor: scheduledFor,
		Content:      content,
		CreatedAt:    scheduledFor,
	}
	return id, true, nil
}

func (l *fakeLedger) RecordFailed(_ context.Context, channelID uuid.UUID, content string, scheduledFor time.Time, reason string) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := uuid.New()
	l.posts[id] = &model.Post{
		ID:           id,
		ChannelID:    channelID,
		Status:       model.PostFailed,
		ScheduledFor: scheduledFor,
		Error:        &reason,
		Content:      content,
		CreatedAt:    scheduledFor,
	}
	return id, nil
}

func (l *fakeLedger) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.markErr != nil {
		return l.markErr
	}
	if p, ok := l.posts[id]; ok && p.Status == model.PostQueued {
		p.Status = model.PostSent
		p.SentAt = &sentAt
	}
	return nil
}

func (l *fakeLedger) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.markErr != nil {
		return l.markErr
	}
	if p, ok := l.posts[id]; ok && p.Status == model.PostQueued {
		p.Status = model.PostFailed
		p.Error = &reason
	}
	return nil
}

func (l *fakeLedger) CountForDay(_ context.Context, channelID uuid.UUID, statuses []model.PostStatus, dayStart, dayEnd time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.countErr != nil {
		return 0, l.countErr
	}
	return l.countLocked(channelID, statuses, dayStart, dayEnd), nil
}

func (l *fakeLedger) SweepStuckQueued(_ context.Context, olderThan time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.posts {
		if p.Status == model.PostQueued && p.CreatedAt.Before(olderThan) {
			p.Status = model.PostFailed
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) byStatus(status model.PostStatus) []*model.Post {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.Post
	for _, p := range l.posts {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeGateway struct {
	mu     sync.Mutex
	sent   []sentMessage
	sentAt time.Time

	// errFor fails sends addressed to these chat IDs.
	errFor map[int64]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{errFor: make(map[int64]error)}
}

func (g *fakeGateway) Send(_ context.Context, chatID int64, text string) (int, time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.errFor[chatID]; err != nil {
		return 0, time.Time{}, err
	}
	g.sent = append(g.sent, sentMessage{chatID: chatID, text: text})
	return len(g.sent), g.sentAt, nil
}

func (g *fakeGateway) messages() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.sent...)
}

type fakeChannels struct {
	items []model.Channel
	err   error
}

func (f *fakeChannels) ListAutoPostEnabled(context.Context) ([]model.Channel, error) {
	return f.items, f.err
}

type genFunc func(ctx context.Context, ch model.Channel, now time.Time) (string, error)

func (f genFunc) Generate(ctx context.Context, ch model.Channel, now time.Time) (string, error) {
	return f(ctx, ch, now)
}
