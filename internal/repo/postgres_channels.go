package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/mlevan/autopost/internal/model"
)

type PostgresChannelRepo struct {
	db *sql.DB
}

func NewPostgresChannelRepo(db *sql.DB) *PostgresChannelRepo {
	return &PostgresChannelRepo{db: db}
}

const channelColumns = `id, internal_name, telegram_chat_id, topic, language_code,
	posting_frequency_per_day, posting_window_start, posting_window_end,
	timezone, auto_post_enabled, content_strategy, generate_images, news_sources`

func (r *PostgresChannelRepo) List(ctx context.Context) ([]model.Channel, error) {
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

func (r *PostgresChannelRepo) ListAutoPostEnabled(ctx context.Context) ([]model.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE auto_post_enabled = TRUE
		ORDER BY internal_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChannels(rows)
}

func (r *PostgresChannelRepo) Get(ctx context.Context, id uuid.UUID) (*model.Channel, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE id = $1
	`, id.String())
	return scanOneChannel(row)
}

func (r *PostgresChannelRepo) GetByInternalName(ctx context.Context, name string) (*model.Channel, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE internal_name = $1
	`, name)
	return scanOneChannel(row)
}

func (r *PostgresChannelRepo) UpsertByInternalName(ctx context.Context, ch *model.Channel) error {
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	sources, err := marshalSources(ch.NewsSources)
	if err != nil {
		return err
	}

	var id string
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO channels (`+channelColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (internal_name) DO UPDATE SET
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
		RETURNING id
	`,
		ch.ID.String(), ch.InternalName, ch.TelegramChatID, ch.Topic, ch.LanguageCode,
		ch.PostingFrequencyPerDay, timeOfDayArg(ch.PostingWindowStart), timeOfDayArg(ch.PostingWindowEnd),
		ch.Timezone, ch.AutoPostEnabled, ch.ContentStrategy, ch.GenerateImages, sources,
	).Scan(&id)
	if err != nil {
		return err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	ch.ID = parsed
	return nil
}

func (r *PostgresChannelRepo) Update(ctx context.Context, ch *model.Channel) error {
	sources, err := marshalSources(ch.NewsSources)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE channels SET
			internal_name = $2,
			telegram_chat_id = $3,
			topic = $4,
			language_code = $5,
			posting_frequency_per_day = $6,
			posting_window_start = $7,
			posting_window_end = $8,
			timezone = $9,
			auto_post_enabled = $10,
			content_strategy = $11,
			generate_images = $12,
			news_sources = $13
		WHERE id = $1
	`,
		ch.ID.String(), ch.InternalName, ch.TelegramChatID, ch.Topic, ch.LanguageCode,
		ch.PostingFrequencyPerDay, timeOfDayArg(ch.PostingWindowStart), timeOfDayArg(ch.PostingWindowEnd),
		ch.Timezone, ch.AutoPostEnabled, ch.ContentStrategy, ch.GenerateImages, sources,
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

var ErrNotFound = errors.New("not found")

// ---- shared row scanning ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(s rowScanner) (model.Channel, error) {
	var (
		ch          model.Channel
		id          string
		windowStart sql.NullString
		windowEnd   sql.NullString
		sources     string
	)
	if err := s.Scan(
		&id,
		&ch.InternalName,
		&ch.TelegramChatID,
		&ch.Topic,
		&ch.LanguageCode,
		&ch.PostingFrequencyPerDay,
		&windowStart,
		&windowEnd,
		&ch.Timezone,
		&ch.AutoPostEnabled,
		&ch.ContentStrategy,
		&ch.GenerateImages,
		&sources,
	); err != nil {
		return model.Channel{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return model.Channel{}, err
	}
	ch.ID = parsed

	if ch.PostingWindowStart, err = timeOfDayFromNull(windowStart); err != nil {
		return model.Channel{}, err
	}
	if ch.PostingWindowEnd, err = timeOfDayFromNull(windowEnd); err != nil {
		return model.Channel{}, err
	}
	if sources != "" {
		if err := json.Unmarshal([]byte(sources), &ch.NewsSources); err != nil {
			return model.Channel{}, err
		}
	}
	return ch, nil
}

func scanChannels(rows *sql.Rows) ([]model.Channel, error) {
	var out []model.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func scanOneChannel(row *sql.Row) (*model.Channel, error) {
	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func timeOfDayArg(t *model.TimeOfDay) any {
	if t == nil {
		return nil
	}
	return t.String()
}

func timeOfDayFromNull(v sql.NullString) (*model.TimeOfDay, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := model.ParseTimeOfDay(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func marshalSources(sources []string) (string, error) {
	if len(sources) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(sources)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
