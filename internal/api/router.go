package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("GET /v1/scheduler/status", h.SchedulerStatus)
	mux.HandleFunc("POST /v1/scheduler/start", h.SchedulerStart)
	mux.HandleFunc("POST /v1/scheduler/stop", h.SchedulerStop)
	mux.HandleFunc("POST /v1/scheduler/tick", h.SchedulerTick)

	mux.HandleFunc("GET /v1/channels", h.ListChannels)
	mux.HandleFunc("POST /v1/channels", h.UpsertChannel)
	mux.HandleFunc("PUT /v1/channels/{id}", h.UpdateChannel)
	mux.HandleFunc("GET /v1/channels/{id}/posts", h.ListChannelPosts)
	mux.HandleFunc("GET /v1/channels/{id}/preview", h.PreviewChannel)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("autopost"))
	})

	return mux
}
