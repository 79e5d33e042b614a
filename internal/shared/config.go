package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string

	RedisAddr string
	RedisPass string
	RedisDB   int

	WebhookURL     string
	WebhookTimeout time.Duration
	WebhookRPS     int

	PollInterval      time.Duration
	PollTimeout       time.Duration
	PollFailureBudget int
	TrackTTLSec       int

	SubmitSource string
}

func Load() Config {
	// Optional .env for local runs; the environment always wins.
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/intake?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),

		RedisAddr: env("REDIS_ADDR", ""),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),

		WebhookURL:     env("WEBHOOK_URL", ""),
		WebhookTimeout: time.Duration(atoi("WEBHOOK_TIMEOUT_SECONDS", 10)) * time.Second,
		WebhookRPS:     atoi("WEBHOOK_RPS", 5),

		PollInterval:      time.Duration(atoi("POLL_INTERVAL_SECONDS", 10)) * time.Second,
		PollTimeout:       time.Duration(atoi("POLL_TIMEOUT_SECONDS", 600)) * time.Second,
		PollFailureBudget: atoi("POLL_FAILURE_BUDGET", 3),
		TrackTTLSec:       atoi("TRACK_TTL_SECONDS", 86400),

		SubmitSource: env("SUBMIT_SOURCE", "web"),
	}
	if c.WebhookURL == "" {
		log.Info().Msg("WEBHOOK_URL is empty; submission notifications disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
