package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	PlacesBase string
	PlacesKey  string
	PlacesRPS  int

	GeocodeBase string
	GeocodeRPS  int

	GeminiBase  string
	GeminiKey   string
	GeminiModel string
	GeminiRPS   int

	CacheTTL time.Duration

	// Batch resolver settings.
	Destinations []string
	Workers      int
}

func Load() Config {
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
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/touratlas?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", ""),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		PlacesBase:  env("PLACES_BASE_URL", "https://places.example-maps.com/v1"),
		PlacesKey:   env("PLACES_API_KEY", ""),
		PlacesRPS:   atoi("PLACES_RPS", 5),
		GeocodeBase: env("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeRPS:  atoi("GEOCODE_RPS", 1),
		GeminiBase:  env("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiKey:   env("GEMINI_API_KEY", ""),
		GeminiModel: env("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiRPS:   atoi("GEMINI_RPS", 2),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		Workers:     atoi("RESOLVE_WORKERS", 4),
	}
	if ds := env("RESOLVE_DESTINATIONS", ""); ds != "" {
		for _, d := range strings.Split(ds, ",") {
			if d = strings.TrimSpace(d); d != "" {
				c.Destinations = append(c.Destinations, d)
			}
		}
	}
	if c.PlacesKey == "" {
		log.Warn().Msg("PLACES_API_KEY is empty")
	}
	if c.GeminiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
