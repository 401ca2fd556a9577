package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"main/internal/application/service/ingestion"
	"main/internal/config"
	"main/internal/domain/interfaces"
	infrabroker "main/internal/infrastructure/broker"
	infracache "main/internal/infrastructure/cache"
	infrainstruments "main/internal/infrastructure/instruments"
	infrasources "main/internal/infrastructure/sources"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	repo, err := infrainstruments.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init instruments repo: %v", err)
	}
	defer repo.Close()
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Fatalf("failed to ensure schema: %v", err)
	}

	var invalidationCache interfaces.InvalidationCache
	if cfg.Redis.Addr != "" {
		redisCache, err := infracache.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisCache.Close()
		invalidationCache = redisCache
	}

	var publisher interfaces.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		amqpPublisher, err := infrabroker.NewPublisher(cfg.RabbitMQ, logger)
		if err != nil {
			logger.Fatalf("failed to init rabbitmq publisher: %v", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	catalog, err := infrasources.LoadCatalog(cfg.Ingestion.CatalogPath)
	if err != nil {
		logger.Fatalf("failed to load source catalog: %v", err)
	}
	httpClient := &http.Client{Timeout: cfg.Ingestion.HTTPTimeout}
	specs, err := infrasources.Build(catalog, httpClient)
	if err != nil {
		logger.Fatalf("failed to build sources: %v", err)
	}

	fanout := ingestion.NewFanOut(cfg.Ingestion.FetchDeadline, ingestion.Retrier{
		MaxAttempts: cfg.Ingestion.RetryMaxAttempts,
		BaseDelay:   cfg.Ingestion.RetryBaseDelay,
		MaxJitter:   cfg.Ingestion.RetryMaxJitter,
	})

	scheduler := ingestion.NewScheduler(logger)
	profiles := ingestion.DefaultProfiles()
	for _, d := range cfg.Ingestion.EnabledDomains {
		profile := profiles[d]
		profile.Sources = specs[d]
		if len(profile.Sources) == 0 {
			logger.WithField("domain", d.String()).Warn("no sources in catalog, domain disabled")
			continue
		}
		if override, ok := cfg.Ingestion.CronOverrides[d]; ok {
			profile.CronSpec = override
		}
		if cfg.Ingestion.HistoryCap > 0 {
			profile.HistoryCap = cfg.Ingestion.HistoryCap
		}

		runner := buildRunner(profile, repo, fanout, logger, invalidationCache, publisher, cfg.Ingestion.ReconcileConcurrency)
		if err := scheduler.Register(runner); err != nil {
			logger.Fatalf("failed to register %s job: %v", d, err)
		}
	}

	scheduler.Start()

	<-ctx.Done()
	logger.Info("shutting down ingestion daemon")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Errorf("scheduler shutdown error: %v", err)
	}
	logger.Info("ingestion daemon stopped")
}

func buildRunner(
	profile ingestion.Profile,
	repo *infrainstruments.Repository,
	fanout *ingestion.FanOut,
	logger *logrus.Logger,
	invalidationCache interfaces.InvalidationCache,
	publisher interfaces.EventPublisher,
	concurrency int,
) *ingestion.Runner {
	opts := []ingestion.RunnerOption{
		ingestion.WithReconcileConcurrency(concurrency),
	}
	if invalidationCache != nil {
		opts = append(opts, ingestion.WithCache(invalidationCache))
	}
	if publisher != nil {
		opts = append(opts, ingestion.WithPublisher(publisher))
	}
	return ingestion.NewRunner(profile, repo, fanout, logger, opts...)
}
