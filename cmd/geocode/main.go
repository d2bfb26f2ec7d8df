package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/locationup/locationup-go/internal/geocode"
	"github.com/locationup/locationup-go/pkg/config"
	"github.com/locationup/locationup-go/pkg/logger"
	"github.com/locationup/locationup-go/pkg/metrics"
	"github.com/locationup/locationup-go/pkg/redis"
)

// geocode resolves city names to coordinates from the command line, reusing
// the shared cache so repeated runs stay off the public API.
func main() {
	logg := logger.New(logger.Options{ServiceName: "geocode"})
	ctx := context.Background()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: geocode <city> [city...]")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "geocode",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	client, err := geocode.NewClient(cfg.Geocode.BaseURL,
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithHTTPClient(&http.Client{Timeout: cfg.Geocode.Timeout}),
	)
	if err != nil {
		logg.Error(ctx, "failed to create geocode client", err)
		os.Exit(1)
	}

	storage, err := geocode.NewRedisStorage(redisClient)
	if err != nil {
		logg.Error(ctx, "failed to create geocode storage", err)
		os.Exit(1)
	}

	cache, err := geocode.NewCache(ctx, client, storage,
		geocode.WithCacheLogger(logg),
		geocode.WithCacheMetrics(metrics.NewGeocodeMetrics(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		logg.Error(ctx, "failed to create geocode cache", err)
		os.Exit(1)
	}

	unresolved := 0
	for _, city := range os.Args[1:] {
		coords, ok := cache.Geocode(ctx, city)
		if !ok {
			fmt.Printf("%s\tnot found\n", city)
			unresolved++
			continue
		}
		fmt.Printf("%s\t%.4f,%.4f\n", city, coords.Lat, coords.Lng)
	}
	if unresolved > 0 {
		os.Exit(1)
	}
}
