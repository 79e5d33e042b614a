package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "hotel_intake/internal/adapters/http_server"
	"hotel_intake/internal/adapters/memory"
	"hotel_intake/internal/adapters/observability"
	redisad "hotel_intake/internal/adapters/redis"
	"hotel_intake/internal/adapters/webhook"
	"hotel_intake/internal/app"
	"hotel_intake/internal/domain"
	"hotel_intake/internal/shared"
	mysqlstore "hotel_intake/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	store := mysqlstore.New(db)

	var tracker domain.Tracker
	if cfg.RedisAddr != "" {
		tracker = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis settled-marker tracker")
	} else {
		tracker = memory.New()
	}

	var notifier domain.Notifier
	if cfg.WebhookURL != "" {
		notifier = webhook.New(cfg.WebhookURL, cfg.WebhookTimeout, cfg.WebhookRPS)
	}

	sub := app.NewSubmissionService(store, notifier, cfg.SubmitSource, cfg.WebhookTimeout)
	watch := app.NewWatchManager(store, tracker, app.RealClock(), app.WatchConfig{
		Interval:      cfg.PollInterval,
		Timeout:       cfg.PollTimeout,
		FailureBudget: cfg.PollFailureBudget,
		TrackTTLSec:   cfg.TrackTTLSec,
	})
	pres := app.NewPresenter(store)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Sub: sub, Watch: watch, Pres: pres, Store: store})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
