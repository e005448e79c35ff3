package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mlevan/autopost/internal/api"
	"github.com/mlevan/autopost/internal/cache"
	"github.com/mlevan/autopost/internal/client"
	"github.com/mlevan/autopost/internal/config"
	"github.com/mlevan/autopost/internal/content"
	"github.com/mlevan/autopost/internal/repo"
	"github.com/mlevan/autopost/internal/scheduler"
	"github.com/mlevan/autopost/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	slog.Info("autopost starting",
		"addr", cfg.Server.Address,
		"db", cfg.Database.Driver,
		"interval", cfg.Scheduler.Interval.String(),
		"workers", cfg.Scheduler.Workers,
		"redis", cfg.Redis.Enabled,
	)

	ctx := context.Background()

	db, driver, err := repo.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("database open failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	var (
		channels repo.ChannelRepository
		ledger   repo.PostLedger
	)
	if driver == "postgres" {
		channels = repo.NewPostgresChannelRepo(db)
		ledger = repo.NewPostgresPostLedger(db)
	} else {
		channels = repo.NewSQLiteChannelRepo(db)
		ledger = repo.NewSQLitePostLedger(db)
	}

	var history content.LinkHistory = content.NoopLinkHistory{}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		history = cache.NewRedisLinkCache(rdb, cfg.Redis.TTL)
	}

	registry := content.BuildRegistry(cfg.OpenAI, history)
	slog.Info("content strategies registered", "strategies", registry.Names())

	gateway, err := client.NewTelegramClient(cfg.Telegram.Token)
	if err != nil {
		slog.Error("telegram client init failed", "err", err)
		os.Exit(1)
	}

	poster := service.NewPoster(channels, ledger, registry, gateway, service.Options{
		Workers:         cfg.Scheduler.Workers,
		GenerateTimeout: cfg.Scheduler.GenerateTimeout,
		SendTimeout:     cfg.Scheduler.SendTimeout,
	})

	sched, err := scheduler.New(cfg.Scheduler.Interval, func(ctx context.Context, now time.Time) {
		stats, err := poster.RunTick(ctx, now)
		if err != nil {
			slog.Error("posting tick failed", "err", err)
			return
		}
		slog.Info("posting tick stats",
			"channels", stats.Channels,
			"eligible", stats.Eligible,
			"sent", stats.Sent,
			"failed", stats.Failed,
		)
	})
	if err != nil {
		slog.Error("scheduler init failed", "err", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	sweeper, err := service.NewSweeper(ledger, cfg.Scheduler.SweepSpec, cfg.Scheduler.StuckAfter)
	if err != nil {
		slog.Error("sweeper init failed", "err", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	handler := api.NewHandler(sched, poster, channels, ledger, registry)
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(handler)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "err", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
