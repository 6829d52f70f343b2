package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"tour_atlas/internal/adapters/gemini"
	"tour_atlas/internal/adapters/geocode"
	server "tour_atlas/internal/adapters/http_server"
	"tour_atlas/internal/adapters/observability"
	"tour_atlas/internal/adapters/places"
	redisad "tour_atlas/internal/adapters/redis"
	"tour_atlas/internal/app"
	"tour_atlas/internal/domain"
	"tour_atlas/internal/reliability"
	"tour_atlas/internal/shared"
	mysqlrepo "tour_atlas/internal/storage/mysql"
)

func main() {
	_ = godotenv.Load()
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

	// external sources
	placesCl, err := places.New(cfg.PlacesBase, cfg.PlacesKey, cfg.PlacesRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize places client")
	}
	geocodeCl := geocode.New(cfg.GeocodeBase, cfg.GeocodeRPS)
	geminiCl, err := gemini.New(cfg.GeminiBase, cfg.GeminiKey, cfg.GeminiModel, cfg.GeminiRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gemini client")
	}

	// cache: redis when configured, process-local TTL map otherwise
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	} else {
		cache = reliability.NewMemoryCache()
		log.Info().Msg("REDIS_ADDR empty, using in-memory cache")
	}

	// pipeline
	repo := mysqlrepo.New(db)
	health := reliability.NewController()
	retrier := reliability.NewRetrier()
	cascade := app.NewCascade(placesCl, geocodeCl, geminiCl, cache, health, retrier)
	resolver := app.NewTourService(geminiCl, cascade, repo, health, retrier)
	q := app.NewTourQueryService(repo, cache, cfg.CacheTTL)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Resolver: resolver, Q: q, Health: health})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
