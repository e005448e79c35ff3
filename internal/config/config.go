package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Telegram  TelegramConfig
	OpenAI    OpenAIConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string
	PostgresURL string
	SQLitePath  string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type TelegramConfig struct {
	Token string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type SchedulerConfig struct {
	Interval        time.Duration
	Workers         int
	GenerateTimeout time.Duration
	SendTimeout     time.Duration
	SweepSpec       string
	StuckAfter      time.Duration
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "sqlite"),
			PostgresURL: os.Getenv("POSTGRES_URL"),
			SQLitePath:  getEnv("SQLITE_PATH", "./autopost.db"),
		},
		Telegram: TelegramConfig{
			Token: mustEnv("TELEGRAM_BOT_TOKEN"),
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Scheduler: SchedulerConfig{
			Interval:        time.Duration(getEnvInt("TICK_INTERVAL_SECONDS", 600)) * time.Second,
			Workers:         getEnvInt("TICK_WORKERS", 4),
			GenerateTimeout: time.Duration(getEnvInt("GENERATE_TIMEOUT_SECONDS", 60)) * time.Second,
			SendTimeout:     time.Duration(getEnvInt("SEND_TIMEOUT_SECONDS", 30)) * time.Second,
			SweepSpec:       getEnv("SWEEP_CRON_SPEC", "@every 15m"),
			StuckAfter:      time.Duration(getEnvInt("STUCK_QUEUED_MINUTES", 30)) * time.Minute,
		},
		Redis: loadRedisConfig(),
	}

	validate(cfg)
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 259200)) * time.Second,
	}
}

func validate(cfg *Config) {
	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			panic("SQLITE_PATH must not be empty")
		}
	case "postgres":
		if cfg.Database.PostgresURL == "" {
			panic("POSTGRES_URL is required when DB_DRIVER=postgres")
		}
	default:
		panic(fmt.Sprintf("unknown DB_DRIVER: %s", cfg.Database.Driver))
	}
	if cfg.Scheduler.Interval <= 0 {
		panic("TICK_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Scheduler.Workers <= 0 {
		panic("TICK_WORKERS must be > 0")
	}
	if cfg.Scheduler.GenerateTimeout <= 0 || cfg.Scheduler.SendTimeout <= 0 {
		panic("generate/send timeouts must be > 0")
	}
	if cfg.Scheduler.StuckAfter <= 0 {
		panic("STUCK_QUEUED_MINUTES must be > 0")
	}
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}
