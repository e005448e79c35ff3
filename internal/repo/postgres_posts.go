package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mlevan/autopost/internal/model"
)

type PostgresPostLedger struct {
	db *sql.DB
}

func NewPostgresPostLedger(db *sql.DB) *PostgresPostLedger {
	return &PostgresPostLedger{db: db}
}

func (r *PostgresPostLedger) ReserveQueued(ctx context.Context, channelID uuid.UUID, content string, scheduledFor, dayStart, dayEnd time.Time, limit int) (uuid.UUID, bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return uuid.Nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the channel row so concurrent reservations for the same channel
	// serialize; the count below then observes every committed and in-flight
	// reservation.
	var locked string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM channels WHERE id = $1 FOR UPDATE
	`, channelID.String()).Scan(&locked)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("lock channel: %w", err)
	}

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM posts
		WHERE channel_id = $1
		  AND status IN ('queued', 'sent')
		  AND scheduled_for >= $2 AND scheduled_for < $3
	`, channelID.String(), dayStart, dayEnd).Scan(&count)
	if err != nil {
		return uuid.Nil, false, err
	}
	if count >= limit {
		if err := tx.Commit(); err != nil {
			return uuid.Nil, false, err
		}
		return uuid.Nil, false, nil
	}

	id := uuid.New()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO posts (id, channel_id, status, scheduled_for, content, created_at, updated_at)
		VALUES ($1, $2, 'queued', $3, $4, $5, $5)
	`, id.String(), channelID.String(), scheduledFor, content, now); err != nil {
		return uuid.Nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (r *PostgresPostLedger) CreateQueued(ctx context.Context, channelID uuid.UUID, content string, scheduledFor time.Time) (uuid.UUID, error) {
	return r.insert(ctx, channelID, model.PostQueued, content, scheduledFor, "")
}

func (r *PostgresPostLedger) RecordFailed(ctx context.Context, channelID uuid.UUID, content string, scheduledFor time.Time, reason string) (uuid.UUID, error) {
	return r.insert(ctx, channelID, model.PostFailed, content, scheduledFor, reason)
}

func (r *PostgresPostLedger) insert(ctx context.Context, channelID uuid.UUID, status model.PostStatus, content string, scheduledFor time.Time, reason string) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (id, channel_id, status, scheduled_for, error, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id.String(), channelID.String(), string(status), scheduledFor, nullStr(reason), content, now)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *PostgresPostLedger) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET status = 'sent',
		    sent_at = COALESCE(sent_at, $2),
		    updated_at = now()
		WHERE id = $1 AND status IN ('queued', 'sent')
	`, id.String(), sentAt)
	return err
}

func (r *PostgresPostLedger) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET status = 'failed',
		    error = COALESCE(error, $2),
		    updated_at = now()
		WHERE id = $1 AND status IN ('queued', 'failed')
	`, id.String(), nullStr(reason))
	return err
}

func (r *PostgresPostLedger) CountForDay(ctx context.Context, channelID uuid.UUID, statuses []model.PostStatus, dayStart, dayEnd time.Time) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(statuses))
	args := []any{channelID.String(), dayStart, dayEnd}
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+4)
		args = append(args, string(s))
	}

	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM posts
		WHERE channel_id = $1
		  AND scheduled_for >= $2 AND scheduled_for < $3
		  AND status IN (`+strings.Join(placeholders, ", ")+`)
	`, args...).Scan(&count)
	return count, err
}

func (r *PostgresPostLedger) ListRecent(ctx context.Context, channelID uuid.UUID, limit int) ([]model.Post, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, channel_id, status, scheduled_for, sent_at, error, content, created_at, updated_at
		FROM posts
		WHERE channel_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, channelID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Post
	for rows.Next() {
		var (
			p              model.Post
			id, chID       string
			status         string
			sentAt         sql.NullTime
			reason         sql.NullString
		)
		if err := rows.Scan(&id, &chID, &status, &p.ScheduledFor, &sentAt, &reason, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if p.ChannelID, err = uuid.Parse(chID); err != nil {
			return nil, err
		}
		p.Status = model.PostStatus(status)
		if sentAt.Valid {
			t := sentAt.Time
			p.SentAt = &t
		}
		if reason.Valid {
			s := reason.String
			p.Error = &s
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresPostLedger) SweepStuckQueued(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET status = 'failed',
		    error = 'stuck queued post swept',
		    updated_at = now()
		WHERE status = 'queued' AND created_at < $1
	`, olderThan)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
