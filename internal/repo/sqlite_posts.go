package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mlevan/autopost/internal/model"
)

type SQLitePostLedger struct {
	db *sql.DB
}

func NewSQLitePostLedger(db *sql.DB) *SQLitePostLedger {
	return &SQLitePostLedger{db: db}
}

func (r *SQLitePostLedger) ReserveQueued(ctx context.Context, channelID uuid.UUID, content string, scheduledFor, dayStart, dayEnd time.Time, limit int) (uuid.UUID, bool, error) {
	// The pool is capped at one connection, so the count and the insert in
	// this transaction cannot interleave with another reservation.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM posts
		WHERE channel_id = ?
		  AND status IN ('queued', 'sent')
		  AND scheduled_for >= ? AND scheduled_for < ?
	`, channelID.String(), dayStart.UnixMilli(), dayEnd.UnixMilli()).Scan(&count)
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
	now := time.Now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO posts (id, channel_id, status, scheduled_for, content, created_at, updated_at)
		VALUES (?, ?, 'queued', ?, ?, ?, ?)
	`, id.String(), channelID.String(), scheduledFor.UnixMilli(), content, now, now); err != nil {
		return uuid.Nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (r *SQLitePostLedger) CreateQueued(ctx context.Context, channelID uuid.UUID, content string, scheduledFor time.Time) (uuid.UUID, error) {
	return r.insert(ctx, channelID, model.PostQueued, content, scheduledFor, "")
}

func (r *SQLitePostLedger) RecordFailed(ctx context.Context, channelID uuid.UUID, content string, scheduledFor time.Time, reason string) (uuid.UUID, error) {
	return r.insert(ctx, channelID, model.PostFailed, content, scheduledFor, reason)
}

func (r *SQLitePostLedger) insert(ctx context.Context, channelID uuid.UUID, status model.PostStatus, content string, scheduledFor time.Time, reason string) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now().UTC().UnixMilli()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (id, channel_id, status, scheduled_for, error, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id.String(), channelID.String(), string(status), scheduledFor.UnixMilli(), nullStr(reason), content, now, now)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *SQLitePostLedger) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET status = 'sent',
		    sent_at = COALESCE(sent_at, ?),
		    updated_at = ?
		WHERE id = ? AND status IN ('queued', 'sent')
	`, sentAt.UnixMilli(), time.Now().UTC().UnixMilli(), id.String())
	return err
}

func (r *SQLitePostLedger) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET status = 'failed',
		    error = COALESCE(error, ?),
		    updated_at = ?
		WHERE id = ? AND status IN ('queued', 'failed')
	`, nullStr(reason), time.Now().UTC().UnixMilli(), id.String())
	return err
}

func (r *SQLitePostLedger) CountForDay(ctx context.Context, channelID uuid.UUID, statuses []model.PostStatus, dayStart, dayEnd time.Time) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(statuses))
	args := []any{channelID.String(), dayStart.UnixMilli(), dayEnd.UnixMilli()}
	for i, s := range statuses {
		placeholders[i] = "?"
		args = append(args, string(s))
	}

	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM posts
		WHERE channel_id = ?
		  AND scheduled_for >= ? AND scheduled_for < ?
		  AND status IN (`+strings.Join(placeholders, ", ")+`)
	`, args...).Scan(&count)
	return count, err
}

func (r *SQLitePostLedger) ListRecent(ctx context.Context, channelID uuid.UUID, limit int) ([]model.Post, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, channel_id, status, scheduled_for, sent_at, error, content, created_at, updated_at
		FROM posts
		WHERE channel_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, channelID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Post
	for rows.Next() {
		var (
			p            model.Post
			id, chID     string
			status       string
			scheduledMS  int64
			sentMS       sql.NullInt64
			reason       sql.NullString
			createdMS    int64
			updatedMS    int64
		)
		if err := rows.Scan(&id, &chID, &status, &scheduledMS, &sentMS, &reason, &p.Content, &createdMS, &updatedMS); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if p.ChannelID, err = uuid.Parse(chID); err != nil {
			return nil, err
		}
		p.Status = model.PostStatus(status)
		p.ScheduledFor = time.UnixMilli(scheduledMS).UTC()
		p.CreatedAt = time.UnixMilli(createdMS).UTC()
		p.UpdatedAt = time.UnixMilli(updatedMS).UTC()
		if sentMS.Valid {
			t := time.UnixMilli(sentMS.Int64).UTC()
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

func (r *SQLitePostLedger) SweepStuckQueued(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET status = 'failed',
		    error = 'stuck queued post swept',
		    updated_at = ?
		WHERE status = 'queued' AND created_at < ?
	`, time.Now().UTC().UnixMilli(), olderThan.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
