package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/i474232898/wind-harvest/internal/config"
	"github.com/i474232898/wind-harvest/internal/forecast"
	"github.com/i474232898/wind-harvest/internal/forecast/providers"
	"github.com/i474232898/wind-harvest/internal/logging"
	"github.com/i474232898/wind-harvest/internal/metrics"
	"github.com/i474232898/wind-harvest/internal/store"
)

// components holds everything the commands need, built from one config.
type components struct {
	cfg      *config.AppConfig
	log      *zap.Logger
	registry *prometheus.Registry
	store    *store.CachedStore
	engine   *forecast.Engine
	resolver *forecast.Resolver
	sweeper  *forecast.Sweeper
}

func build(cfg *config.AppConfig) (*components, error) {
	log, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer := metrics.NewObserver(registry)

	fileStore, err := store.NewFileStore(cfg.RawDir(), cfg.ServableDir(), cfg.RawExtension)
	if err != nil {
		return nil, err
	}
	cached, err := store.NewCachedStore(fileStore, cfg.PayloadCacheSize)
	if err != nil {
		return nil, err
	}

	// Shared HTTP client for outbound feed calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.FetchRatePerSecond), 1)
	fetcher := providers.NewNOMADSFetcher(httpClient, cfg.NOMADSBaseURL, limiter)
	converter := providers.NewGrib2JSON(cfg.Grib2JSONBin, cfg.ConvertTimeout, log)

	clock := forecast.SystemClock{}
	c := &components{
		cfg:      cfg,
		log:      log,
		registry: registry,
		store:    cached,
		engine: forecast.NewEngine(cached, fetcher, converter, forecast.EngineConfig{
			HorizonDays: cfg.HarvestHorizonDays,
			Clock:       clock,
			Logger:      log,
			Observer:    observer,
		}),
		resolver: forecast.NewResolver(cached, forecast.ResolverConfig{
			HorizonDays: cfg.ServingHorizonDays,
			Clock:       clock,
			Logger:      log,
			Observer:    observer,
		}),
		sweeper: forecast.NewSweeper(cached, forecast.SweeperConfig{
			MaxAge:   cfg.RetentionMaxAge,
			Clock:    clock,
			Logger:   log,
			Observer: observer,
		}),
	}
	log.Debug("components ready",
		zap.String("rawDir", cfg.RawDir()),
		zap.String("servableDir", cfg.ServableDir()),
		zap.String("fetcher", fetcher.Name()))
	return c, nil
}

func (c *components) close() {
	_ = c.log.Sync()
}
