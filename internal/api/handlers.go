package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mlevan/autopost/internal/content"
	"github.com/mlevan/autopost/internal/localtime"
	"github.com/mlevan/autopost/internal/model"
	"github.com/mlevan/autopost/internal/repo"
	"github.com/mlevan/autopost/internal/scheduler"
	"github.com/mlevan/autopost/internal/service"
)

type Handler struct {
	sched    *scheduler.Scheduler
	poster   *service.Poster
	channels repo.ChannelRepository
	ledger   repo.PostLedger
	registry *content.Registry
}

func NewHandler(s *scheduler.Scheduler, p *service.Poster, channels repo.ChannelRepository, ledger repo.PostLedger, registry *content.Registry) *Handler {
	return &Handler{sched: s, poster: p, channels: channels, ledger: ledger, registry: registry}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

// SchedulerTick runs one posting pass immediately, outside the timer.
func (h *Handler) SchedulerTick(w http.ResponseWriter, r *http.Request) {
	stats, err := h.poster.RunTick(r.Context(), time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ---- channels ----

type channelPayload struct {
	InternalName           string   `json:"internalName"`
	TelegramChatID         int64    `json:"telegramChatId"`
	Topic                  string   `json:"topic"`
	LanguageCode           string   `json:"languageCode"`
	PostingFrequencyPerDay int      `json:"postingFrequencyPerDay"`
	PostingWindowStart     string   `json:"postingWindowStart"`
	PostingWindowEnd       string   `json:"postingWindowEnd"`
	Timezone               string   `json:"timezone"`
	AutoPostEnabled        bool     `json:"autoPostEnabled"`
	ContentStrategy        string   `json:"contentStrategy"`
	GenerateImages         bool     `json:"generateImages"`
	NewsSources            []string `json:"newsSources"`
}

type channelView struct {
	ID uuid.UUID `json:"id"`
	channelPayload
}

func viewOf(ch model.Channel) channelView {
	v := channelView{
		ID: ch.ID,
		channelPayload: channelPayload{
			InternalName:           ch.InternalName,
			TelegramChatID:         ch.TelegramChatID,
			Topic:                  ch.Topic,
			LanguageCode:           ch.LanguageCode,
			PostingFrequencyPerDay: ch.PostingFrequencyPerDay,
			Timezone:               ch.Timezone,
			AutoPostEnabled:        ch.AutoPostEnabled,
			ContentStrategy:        ch.ContentStrategy,
			GenerateImages:         ch.GenerateImages,
			NewsSources:            ch.NewsSources,
		},
	}
	if ch.PostingWindowStart != nil {
		v.PostingWindowStart = ch.PostingWindowStart.String()
	}
	if ch.PostingWindowEnd != nil {
		v.PostingWindowEnd = ch.PostingWindowEnd.String()
	}
	return v
}

func (p channelPayload) toModel() (model.Channel, error) {
	if p.InternalName == "" {
		return model.Channel{}, errors.New("internalName is required")
	}
	if p.PostingFrequencyPerDay < 0 {
		return model.Channel{}, errors.New("postingFrequencyPerDay must be >= 0")
	}
	tz := p.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := localtime.Localize(time.Now().UTC(), tz); err != nil {
		return model.Channel{}, fmt.Errorf("timezone: %w", err)
	}
	if (p.PostingWindowStart == "") != (p.PostingWindowEnd == "") {
		return model.Channel{}, errors.New("postingWindowStart and postingWindowEnd must be set together")
	}

	ch := model.Channel{
		InternalName:           p.InternalName,
		TelegramChatID:         p.TelegramChatID,
		Topic:                  p.Topic,
		LanguageCode:           p.LanguageCode,
		PostingFrequencyPerDay: p.PostingFrequencyPerDay,
		Timezone:               tz,
		AutoPostEnabled:        p.AutoPostEnabled,
		ContentStrategy:        p.ContentStrategy,
		GenerateImages:         p.GenerateImages,
		NewsSources:            p.NewsSources,
	}
	if p.PostingWindowStart != "" {
		start, err := model.ParseTimeOfDay(p.PostingWindowStart)
		if err != nil {
			return model.Channel{}, err
		}
		end, err := model.ParseTimeOfDay(p.PostingWindowEnd)
		if err != nil {
			return model.Channel{}, err
		}
		ch.PostingWindowStart = &start
		ch.PostingWindowEnd = &end
	}
	return ch, nil
}

func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	items := make([]channelView, 0, len(channels))
	for _, ch := range channels {
		items = append(items, viewOf(ch))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// UpsertChannel creates the channel or replaces the configuration of an
// existing one with the same internal name.
func (h *Handler) UpsertChannel(w http.ResponseWriter, r *http.Request) {
	var payload channelPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	ch, err := payload.toModel()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.channels.UpsertByInternalName(r.Context(), &ch); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(ch))
}

func (h *Handler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}

	var payload channelPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	ch, err := payload.toModel()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ch.ID = id

	if err := h.channels.Update(r.Context(), &ch); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "channel not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ch))
}

// ---- posts ----

type postView struct {
	ID           uuid.UUID  `json:"id"`
	ChannelID    uuid.UUID  `json:"channelId"`
	Status       string     `json:"status"`
	ScheduledFor time.Time  `json:"scheduledFor"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	Error        *string    `json:"error,omitempty"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (h *Handler) ListChannelPosts(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 20)

	posts, err := h.ledger.ListRecent(r.Context(), id, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]postView, 0, len(posts))
	for _, p := range posts {
		items = append(items, postView{
			ID:           p.ID,
			ChannelID:    p.ChannelID,
			Status:       string(p.Status),
			ScheduledFor: p.ScheduledFor,
			SentAt:       p.SentAt,
			Error:        p.Error,
			Content:      p.Content,
			CreatedAt:    p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// PreviewChannel generates content for the channel without sending anything
// or touching the ledger.
func (h *Handler) PreviewChannel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}

	ch, err := h.channels.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "channel not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	gen := h.registry.Resolve(ch.ContentStrategy)
	text, err := gen.Generate(r.Context(), *ch, now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": text, "generatedAt": now})
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
