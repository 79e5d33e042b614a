// Operator tool: drives each request identifier given on the command line to
// a terminal watch state and logs the outcome.
package main

import (
	"context"
	"database/sql"
	"os"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_intake/internal/adapters/memory"
	"hotel_intake/internal/adapters/observability"
	redisad "hotel_intake/internal/adapters/redis"
	"hotel_intake/internal/app"
	"hotel_intake/internal/domain"
	"hotel_intake/internal/shared"
	mysqlstore "hotel_intake/internal/storage/mysql"
)

const maxConcurrentWatches = 8

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	ids := os.Args[1:]
	if len(ids) == 0 {
		log.Fatal().Msg("usage: watch <request-id> [request-id ...]")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	store := mysqlstore.New(db)
	var tracker domain.Tracker
	if cfg.RedisAddr != "" {
		tracker = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	} else {
		tracker = memory.New()
	}
	mgr := app.NewWatchManager(store, tracker, app.RealClock(), app.WatchConfig{
		Interval:      cfg.PollInterval,
		Timeout:       cfg.PollTimeout,
		FailureBudget: cfg.PollFailureBudget,
		TrackTTLSec:   cfg.TrackTTLSec,
	})

	sem := semaphore.NewWeighted(maxConcurrentWatches)
	var wg sync.WaitGroup

	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)

			snap, err := mgr.Wait(ctx, id)
			if err != nil {
				log.Warn().Str("request_id", id).Err(err).Msg("watch failed")
				return
			}
			log.Info().
				Str("request_id", id).
				Str("state", string(snap.State)).
				Str("workbook_url", snap.WorkbookURL).
				Msg("watch settled")
		}(id)
	}

	wg.Wait()
	log.Info().Msg("all watches settled")
}
