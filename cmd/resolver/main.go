package main

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"tour_atlas/internal/adapters/gemini"
	"tour_atlas/internal/adapters/geocode"
	"tour_atlas/internal/adapters/observability"
	"tour_atlas/internal/adapters/places"
	redisad "tour_atlas/internal/adapters/redis"
	"tour_atlas/internal/app"
	"tour_atlas/internal/domain"
	"tour_atlas/internal/reliability"
	"tour_atlas/internal/shared"
	mysqlrepo "tour_atlas/internal/storage/mysql"
)

// Batch resolver: destinations run concurrently under a semaphore, but the
// candidates within each destination stay sequential to respect the shared
// per-key rate limits of the external sources.
func main() {
	_ = godotenv.Load()
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	if len(cfg.Destinations) == 0 {
		log.Fatal().Msg("RESOLVE_DESTINATIONS is empty; nothing to do")
	}
	log.Info().
		Strs("destinations", cfg.Destinations).
		Int("workers", cfg.Workers).
		Msg("batch resolver starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	placesCl, err := places.New(cfg.PlacesBase, cfg.PlacesKey, cfg.PlacesRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize places client")
	}
	geocodeCl := geocode.New(cfg.GeocodeBase, cfg.GeocodeRPS)
	geminiCl, err := gemini.New(cfg.GeminiBase, cfg.GeminiKey, cfg.GeminiModel, cfg.GeminiRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gemini client")
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	} else {
		cache = reliability.NewMemoryCache()
	}

	repo := mysqlrepo.New(db)
	health := reliability.NewController()
	retrier := reliability.NewRetrier()
	cascade := app.NewCascade(placesCl, geocodeCl, geminiCl, cache, health, retrier)
	resolver := app.NewTourService(geminiCl, cascade, repo, health, retrier)

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for _, dest := range cfg.Destinations {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(destination string) {
			defer wg.Done()
			defer sem.Release(1)

			tour, err := resolver.ResolveTour(ctx, destination)
			if err != nil {
				log.Warn().Str("destination", destination).Err(err).Msg("resolve failed")
				return
			}
			log.Info().
				Str("destination", destination).
				Str("tour_id", tour.ID).
				Int("landmarks", len(tour.Landmarks)).
				Msg("resolve ok")
		}(dest)
	}

	wg.Wait()
	log.Info().Msg("batch resolution completed")
}
