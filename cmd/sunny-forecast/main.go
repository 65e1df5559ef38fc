package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	httpapi "github.com/i474232898/sunny-forecast/internal/api/http"
	"github.com/i474232898/sunny-forecast/internal/common"
	"github.com/i474232898/sunny-forecast/internal/config"
	"github.com/i474232898/sunny-forecast/internal/geocode"
	"github.com/i474232898/sunny-forecast/internal/logger"
	"github.com/i474232898/sunny-forecast/internal/mapview"
	"github.com/i474232898/sunny-forecast/internal/observability"
	"github.com/i474232898/sunny-forecast/internal/registry"
	"github.com/i474232898/sunny-forecast/internal/scheduler"
	"github.com/i474232898/sunny-forecast/internal/store"
	"github.com/i474232898/sunny-forecast/internal/weather"
	"github.com/i474232898/sunny-forecast/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider and geocoder calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Providers with resilience (backoff + circuit breaker).
	provs := providers.NewDefault(httpClient, cfg.MetNoUserAgent)
	service := weather.NewService(provs, log, metrics)

	creds, closeCreds, err := newCredentialStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open credential store")
	}
	defer closeCreds()

	history := store.NewHistoryStore(cfg.HistoryMax, cfg.HistoryMaxAge, nil)
	board := mapview.NewBoard()

	reg := registry.New(registry.Options{
		Forecaster:   service,
		MapView:      board,
		Geocoder:     newGeocoder(cfg, httpClient, metrics),
		Credentials:  creds,
		History:      history,
		Logger:       log,
		Metrics:      metrics,
		FetchTimeout: 2 * cfg.HTTPTimeout * time.Duration(providers.DefaultBackoff.MaxRetries+1),
	})
	defer reg.Close()

	for _, at := range cfg.InitialLocations {
		if _, err := reg.Add(ctx, at, ""); err != nil {
			log.WithError(err).WithField("location", at.String()).Warn("failed to add initial location")
		}
	}

	// Scheduler that periodically refreshes every location.
	sched := scheduler.New(reg, cfg.RefreshInterval, log)
	if err := sched.Start(); err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "sunny-forecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "sunny-forecast",
			"locations": reg.Len(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Registry:    reg,
		Providers:   service.Providers(),
		Credentials: creds,
		History:     history,
		Markers:     board,
	})

	go func() {
		log.WithField("port", cfg.Port).Info("http server listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Error("fiber server stopped")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
}

func newCredentialStore(ctx context.Context, cfg *config.AppConfig) (registry.CredentialStore, func(), error) {
	if cfg.CredentialStore != "mongo" {
		return store.NewMemoryCredentialStore(cfg.Credentials()), func() {}, nil
	}

	s, err := store.NewMongoCredentialStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, nil, err
	}
	// Keys from the environment never overwrite keys set through the API.
	if err := s.Seed(ctx, cfg.Credentials()); err != nil {
		_ = s.Close(context.Background())
		return nil, nil, err
	}
	return s, func() { _ = s.Close(context.Background()) }, nil
}

func newGeocoder(cfg *config.AppConfig, client *http.Client, metrics *observability.Metrics) geocode.Geocoder {
	var inner geocode.Geocoder
	switch cfg.Geocoder {
	case "google":
		inner = geocode.NewGoogleGeocoder(cfg.GoogleGeocoderAPIKey)
	default:
		ua := common.FirstNonEmpty(cfg.MetNoUserAgent, providers.DefaultMetNoUserAgent)
		inner = geocode.NewNominatimClient(client, cfg.NominatimURL, ua, cfg.NominatimCountryCodes)
	}
	return geocode.NewCachedGeocoder(inner, cfg.GeocodeCacheSize, metrics)
}
