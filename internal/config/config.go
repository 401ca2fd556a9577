package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	domain "main/internal/domain/entity/instruments"
)

const (
	defaultEnv             = "development"
	defaultCatalogPath     = "cmd/ingest/sources.json"
	defaultUpdatesExchange = "markets.updates"
	defaultRedisDB         = 0

	defaultFetchDeadline        = 5 * time.Minute
	defaultHTTPTimeout          = 10 * time.Second
	defaultRetryMaxAttempts     = 3
	defaultRetryBaseDelay       = 5 * time.Second
	defaultRetryMaxJitter       = time.Second
	defaultReconcileConcurrency = 8
)

// Config keeps the runtime configuration for the ingestion daemon.
type Config struct {
	Env       string
	Postgres  PostgresConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Ingestion IngestionConfig
}

// PostgresConfig stores database connection parameters.
type PostgresConfig struct {
	DSN string
}

// RedisConfig stores Redis connection parameters. An empty Addr disables the
// cache invalidation layer.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RabbitMQConfig stores broker parameters. An empty URL disables update
// event publishing.
type RabbitMQConfig struct {
	URL             string
	UpdatesExchange string
}

// IngestionConfig stores engine behavior: schedules, deadlines and retry
// policy shared by all domains.
type IngestionConfig struct {
	CatalogPath          string
	EnabledDomains       []domain.Domain
	CronOverrides        map[domain.Domain]string
	FetchDeadline        time.Duration
	HTTPTimeout          time.Duration
	RetryMaxAttempts     int
	RetryBaseDelay       time.Duration
	RetryMaxJitter       time.Duration
	ReconcileConcurrency int
	HistoryCap           int
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN is required")
	}

	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DB: %w", err)
	}

	enabled, err := enabledDomains()
	if err != nil {
		return nil, err
	}

	fetchDeadline, err := getSeconds("FETCH_DEADLINE_SEC", defaultFetchDeadline)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := getSeconds("HTTP_TIMEOUT_SEC", defaultHTTPTimeout)
	if err != nil {
		return nil, err
	}
	retryAttempts, err := getInt("RETRY_MAX_ATTEMPTS", defaultRetryMaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("parse RETRY_MAX_ATTEMPTS: %w", err)
	}
	retryBaseDelay, err := getMillis("RETRY_BASE_DELAY_MS", defaultRetryBaseDelay)
	if err != nil {
		return nil, err
	}
	retryMaxJitter, err := getMillis("RETRY_MAX_JITTER_MS", defaultRetryMaxJitter)
	if err != nil {
		return nil, err
	}
	concurrency, err := getInt("RECONCILE_CONCURRENCY", defaultReconcileConcurrency)
	if err != nil {
		return nil, fmt.Errorf("parse RECONCILE_CONCURRENCY: %w", err)
	}
	historyCap, err := getInt("HISTORY_CAP", 0)
	if err != nil {
		return nil, fmt.Errorf("parse HISTORY_CAP: %w", err)
	}

	return &Config{
		Env: getString("APP_ENV", defaultEnv),
		Postgres: PostgresConfig{
			DSN: dsn,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		RabbitMQ: RabbitMQConfig{
			URL:             os.Getenv("RABBITMQ_URL"),
			UpdatesExchange: getString("RABBITMQ_UPDATES_EXCHANGE", defaultUpdatesExchange),
		},
		Ingestion: IngestionConfig{
			CatalogPath:          getString("SOURCES_FILE", defaultCatalogPath),
			EnabledDomains:       enabled,
			CronOverrides:        cronOverrides(enabled),
			FetchDeadline:        fetchDeadline,
			HTTPTimeout:          httpTimeout,
			RetryMaxAttempts:     retryAttempts,
			RetryBaseDelay:       retryBaseDelay,
			RetryMaxJitter:       retryMaxJitter,
			ReconcileConcurrency: concurrency,
			HistoryCap:           historyCap,
		},
	}, nil
}

func enabledDomains() ([]domain.Domain, error) {
	raw := getString("ENABLED_DOMAINS", "")
	if raw == "" {
		return []domain.Domain{
			domain.DomainForex,
			domain.DomainCrypto,
			domain.DomainIndices,
			domain.DomainCommodities,
			domain.DomainInterbank,
		}, nil
	}

	var enabled []domain.Domain
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := domain.NewDomain(part)
		if err != nil {
			return nil, fmt.Errorf("parse ENABLED_DOMAINS: %w", err)
		}
		enabled = append(enabled, d)
	}
	if len(enabled) == 0 {
		return nil, errors.New("ENABLED_DOMAINS resolves to no domains")
	}
	return enabled, nil
}

// cronOverrides reads per-domain cadence overrides such as FOREX_CRON.
func cronOverrides(domains []domain.Domain) map[domain.Domain]string {
	overrides := make(map[domain.Domain]string)
	for _, d := range domains {
		key := strings.ToUpper(d.String()) + "_CRON"
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			overrides[d] = value
		}
	}
	return overrides
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getSeconds(key string, fallback time.Duration) (time.Duration, error) {
	seconds, err := getInt(key, 0)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if seconds <= 0 {
		return fallback, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

func getMillis(key string, fallback time.Duration) (time.Duration, error) {
	millis, err := getInt(key, 0)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if millis <= 0 {
		return fallback, nil
	}
	return time.Duration(millis) * time.Millisecond, nil
}
