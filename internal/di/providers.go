package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"hermes/internal/domain/repository"
	"hermes/internal/handler/api"
	mid "hermes/internal/middleware"
	internalrepo "hermes/internal/repository"
	"hermes/internal/service/newsfeed"
	"hermes/internal/services/calibration"
	"hermes/internal/services/delaystats"
	"hermes/internal/services/marketdata"
	"hermes/internal/usecase"
	"hermes/pkg/cache"
	pkgch "hermes/pkg/clickhouse"
	"hermes/pkg/config"
	pkgkafka "hermes/pkg/kafka"
	applogger "hermes/pkg/logger"
	"hermes/pkg/metrics"
	"hermes/pkg/server"
)

// ProvideLogger creates the application logger with an attached collector so
// the diagnostics endpoint can serve recent aggregated entries.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "console"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	l, err := applogger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   5 * time.Minute,
		CountThreshold: 200,
	})
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCacheService creates the KV backend for state snapshots: Redis when
// enabled, an in-memory cache otherwise (dev/test only, state dies with the
// process).
func ProvideCacheService(cfg *config.Config) (cache.Service, error) {
	if cfg.Redis.Enabled {
		host, port := splitRedisAddr(cfg.Redis.Addr)
		return cache.NewRedisCache(
			cache.WithRedisHost(host),
			cache.WithRedisPort(port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix("hermes"),
		)
	}
	return cache.NewMemoryCache(), nil
}

func splitRedisAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		if addr != "" {
			return addr, 6379
		}
		return "localhost", 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}
	return host, port
}

// ProvideSnapshotStore wraps the cache service as a snapshot store.
func ProvideSnapshotStore(c cache.Service) repository.SnapshotStore {
	return internalrepo.NewKVSnapshotStore(c)
}

// ProvidePriceSource creates the HTTP daily-close client.
func ProvidePriceSource(cfg *config.Config, logger *applogger.Logger) repository.PriceSource {
	return marketdata.NewClient(marketdata.Config{
		BaseURL:  cfg.MarketData.BaseURL,
		Timeout:  cfg.MarketData.Timeout,
		CacheTTL: cfg.MarketData.CacheTTL,
	}, logger)
}

// ProvideClickHouseClient creates a ClickHouse client with the outcome table
// schema initialized. Returns nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.OutcomeSchema(cfg.ClickHouse.Database, outcomeTable(cfg))); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func outcomeTable(cfg *config.Config) string {
	if cfg.ClickHouse.Table != "" {
		return cfg.ClickHouse.Table
	}
	return "calibration_outcomes"
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
// Returns nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCalibrationService builds the calibration engine with whatever
// optional collaborators config enabled.
func ProvideCalibrationService(
	store repository.SnapshotStore,
	prices repository.PriceSource,
	m repository.Metrics,
	logger *applogger.Logger,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	cfg *config.Config,
) *calibration.Service {
	opts := make([]calibration.Option, 0, 2)
	if chClient != nil {
		table := cfg.ClickHouse.Database + "." + outcomeTable(cfg)
		opts = append(opts, calibration.WithOutcomeSink(internalrepo.NewClickHouseOutcomeStore(chClient.DB(), table)))
	}
	if producer != nil && cfg.Kafka.OutcomesTopic != "" {
		opts = append(opts, calibration.WithOutcomePublisher(internalrepo.NewKafkaOutcomePublisher(producer, cfg.Kafka.OutcomesTopic)))
	}
	return calibration.NewService(store, prices, m, logger, opts...)
}

// ProvideDelayStats builds the ingestion-delay tracker.
func ProvideDelayStats(store repository.SnapshotStore, logger *applogger.Logger) *delaystats.Service {
	return delaystats.NewService(store, logger)
}

// ProvideEventProcessor creates the scoring pipeline use case.
func ProvideEventProcessor(
	calib *calibration.Service,
	delays *delaystats.Service,
	m repository.Metrics,
	logger *applogger.Logger,
) *usecase.EventProcessor {
	return usecase.NewEventProcessor(calib, delays, m, logger)
}

// ProvideNewsfeedStream creates the classified-events WebSocket stream.
// Returns nil when disabled.
func ProvideNewsfeedStream(cfg *config.Config) repository.EventStream {
	if !cfg.Newsfeed.Enabled {
		return nil
	}
	return newsfeed.New(
		cfg.Newsfeed.APIKey,
		cfg.Newsfeed.WebSocketURL,
		cfg.Newsfeed.Channels,
		cfg.Newsfeed.ReconnectDelay,
		cfg.Newsfeed.PingInterval,
	)
}

// ProvideEventCollector creates the stream collector with its pipeline.
// Returns nil when the newsfeed is disabled.
func ProvideEventCollector(
	stream repository.EventStream,
	processor *usecase.EventProcessor,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.EventCollector {
	if stream == nil {
		return nil
	}
	popts := make([]mid.PipelineOption, 0, 2)
	if cfg.Pipeline.MaxRPS > 0 {
		popts = append(popts, mid.WithMaxRPS(cfg.Pipeline.MaxRPS))
	}
	if cfg.Pipeline.BufferSize > 0 {
		popts = append(popts, mid.WithBufferSize(cfg.Pipeline.BufferSize))
	}
	pipe := mid.NewIngestPipeline(processor, m, popts...)
	return usecase.NewEventCollector(stream, processor, m, pipe)
}

// ProvideKafkaEventsHandler registers the handler for the events topic.
func ProvideKafkaEventsHandler(proc *usecase.EventProcessor, m repository.Metrics, cfg *config.Config) *usecase.KafkaEventsHandler {
	return usecase.NewKafkaEventsHandler(cfg.Kafka.EventsTopic, proc, m)
}

// ProvideEventsHandler creates the HTTP handler.
func ProvideEventsHandler(
	logger *applogger.Logger,
	proc *usecase.EventProcessor,
	calib *calibration.Service,
	delays *delaystats.Service,
) *api.EventsEchoHandler {
	return api.NewEventsEchoHandler(logger, proc, calib, delays)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.EventCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaEventsHandler,
	calib *calibration.Service,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	handler *api.EventsEchoHandler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, logger, collector, consumer, kh, calib, chClient, producer)
	app.SetHTTPHandler(handler)
	return app
}
