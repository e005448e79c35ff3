package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/mlevan/autopost/internal/model"
)

type SQLiteChannelRepo struct {
	db *sql.DB
}

func NewSQLiteChannelRepo(db *sql.DB) *SQLiteChannelRepo {
	return &SQLiteChannelRepo{db: db}
}

func (r *SQLiteChannelRepo) List(ctx context.Context) ([]model.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		ORDER BY internal_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChannels(rows)
}

func (r *SQLiteChannelRepo) ListAutoPostEnabled(ctx context.Context) ([]model.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE auto_post_enabled = 1
		ORDER BY internal_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChannels(rows)
}

func (r *SQLiteChannelRepo) Get(ctx context.Context, id uuid.UUID) (*model.Channel, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE id = ?
	`, id.String())
	return scanOneChannel(row)
}

func (r *SQLiteChannelRepo) GetByInternalName(ctx context.Context, name string) (*model.Channel, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE internal_name = ?
	`, name)
	return scanOneChannel(row)
}

func (r *SQLiteChannelRepo) UpsertByInternalName(ctx context.Context, ch *model.Channel) error {
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	sources, err := marshalSources(ch.NewsSources)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO channels (`+channelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(internal_name) DO UPDATE SET
			telegram_chat_id = excluded.telegram_chat_id,
			topic = excluded.topic,
			language_code = excluded.language_code,
			posting_frequency_per_day = excluded.posting_frequency_per_day,
			posting_window_start = excluded.posting_window_start,
			posting_window_end = excluded.posting_window_end,
			timezone = excluded.timezone,
			auto_post_enabled = excluded.auto_post_enabled,
			content_strategy = excluded.content_strategy,
			generate_images = excluded.generate_images,
			news_sources = excluded.news_sources
	`,
		ch.ID.String(), ch.InternalName, ch.TelegramChatID, ch.Topic, ch.LanguageCode,
		ch.PostingFrequencyPerDay, timeOfDayArg(ch.PostingWindowStart), timeOfDayArg(ch.PostingWindowEnd),
		ch.Timezone, ch.AutoPostEnabled, ch.ContentStrategy, ch.GenerateImages, sources,
	); err != nil {
		return err
	}

	// The conflict path keeps the existing row's id; read it back.
	var id string
	if err := r.db.QueryRowContext(ctx, `
		SELECT id FROM channels WHERE internal_name = ?
	`, ch.InternalName).Scan(&id); err != nil {
		return err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	ch.ID = parsed
	return nil
}

func (r *SQLiteChannelRepo) Update(ctx context.Context, ch *model.Channel) error {
	sources, err := marshalSources(ch.NewsSources)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE channels SET
			internal_name = ?,
			telegram_chat_id = ?,
			topic = ?,
			language_code = ?,
			posting_frequency_per_day = ?,
			posting_window_start = ?,
			posting_window_end = ?,
			timezone = ?,
			auto_post_enabled = ?,
			content_strategy = ?,
			generate_images = ?,
			news_sources = ?
		WHERE id = ?
	`,
		ch.InternalName, ch.TelegramChatID, ch.Topic, ch.LanguageCode,
		ch.PostingFrequencyPerDay, timeOfDayArg(ch.PostingWindowStart), timeOfDayArg(ch.PostingWindowEnd),
		ch.Timezone, ch.AutoPostEnabled, ch.ContentStrategy, ch.GenerateImages, sources,
		ch.ID.String(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
