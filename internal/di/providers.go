package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"OutSift/internal/detector"
	"OutSift/internal/domain/repository"
	mid "OutSift/internal/middleware"
	internalrepo "OutSift/internal/repository"
	"OutSift/internal/scorer"
	"OutSift/internal/service/stream"
	"OutSift/internal/usecase"
	pkgcache "OutSift/pkg/cache"
	pkgch "OutSift/pkg/clickhouse"
	"OutSift/pkg/config"
	pkgkafka "OutSift/pkg/kafka"
	"OutSift/pkg/logger"
	"OutSift/pkg/metrics"
	"OutSift/pkg/queue"
	"OutSift/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	level := "info"
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	l, err := logger.New(&logger.Config{Level: level, Format: format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
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

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + db + ".observations (ts DateTime, detector String, idx UInt64, score Float64, prediction Int8, label Int8) ENGINE=MergeTree ORDER BY (detector, idx)",
		"CREATE TABLE IF NOT EXISTS " + db + ".snapshots (ts DateTime, detector String, observations UInt64, metrics String) ENGINE=MergeTree ORDER BY (detector, ts)",
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
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

// ProvideKafkaConsumer creates a Kafka consumer for the feedback topic.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache creates the Redis cache, or nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideArchive creates ClickHouse-backed observation storage.
func ProvideArchive(chClient *pkgch.Client, cfg *config.Config) repository.Archive {
	db := cfg.ClickHouse.Database
	return internalrepo.NewClickHouseArchive(chClient.DB(), db+".observations", db+".snapshots")
}

// ProvidePublisher creates the Kafka event publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.PredictionsTopic, cfg.Kafka.SnapshotsTopic)
}

// ProvideSnapshotQueue creates the Redis job queue with the snapshot archive
// job registered, or nil when Redis is disabled.
func ProvideSnapshotQueue(
	lgr *logger.Logger,
	rc *pkgcache.RedisCache,
	archive repository.Archive,
	m repository.Metrics,
	cfg *config.Config,
) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	qc := &queue.QueueConfig{
		Workers:    cfg.Redis.Queue.Workers,
		RetryLimit: cfg.Redis.Queue.RetryLimit,
		RetryDelay: cfg.Redis.Queue.RetryDelay,
	}
	q := queue.NewRedisQueue(lgr, qc, rc.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewSnapshotArchiveJob(archive, m))
	return q
}

// ProvideSession builds the evaluation session around the HTTP score source.
func ProvideSession(cfg *config.Config) *detector.Session {
	return detector.NewSession(scorer.New(cfg),
		detector.WithThreshold(cfg.Detector.Threshold),
		detector.WithRollWindow(cfg.Detector.RollWindow),
	)
}

// ProvideEvaluator wires the evaluator with all configured side channels.
func ProvideEvaluator(
	session *detector.Session,
	pub repository.Publisher,
	archive repository.Archive,
	m repository.Metrics,
	rc *pkgcache.RedisCache,
	q *queue.RedisQueue,
	cfg *config.Config,
) *usecase.Evaluator {
	opts := []usecase.EvaluatorOption{
		usecase.WithPublisher(pub),
		usecase.WithArchive(archive),
	}
	if rc != nil {
		// memory L1 keeps hot snapshot reads off Redis
		layered := pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemorySize(256))
		opts = append(opts, usecase.WithSnapshotCache(layered, cfg.Redis.SnapshotTTL))
	} else {
		opts = append(opts, usecase.WithSnapshotCache(pkgcache.NewMemoryCache(), cfg.Redis.SnapshotTTL))
	}
	if q != nil {
		opts = append(opts, usecase.WithSnapshotQueue(q))
	}
	return usecase.NewEvaluator(cfg.Detector.Name, session, m, opts...)
}

// ProvideFeedbackHandler registers the handler for the feedback topic.
func ProvideFeedbackHandler(eval *usecase.Evaluator, m repository.Metrics, cfg *config.Config) *usecase.KafkaFeedbackHandler {
	return usecase.NewKafkaFeedbackHandler(cfg.Kafka.FeedbackTopic, eval, m)
}

// ProvideObservationCollector creates the stream collector, or nil when no
// stream is configured.
func ProvideObservationCollector(
	lgr *logger.Logger,
	eval *usecase.Evaluator,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.ObservationCollector {
	if !cfg.Stream.Enabled {
		return nil
	}
	src := stream.New(lgr, cfg.Stream.URL, cfg.Stream.Token, cfg.Stream.ReconnectDelay, cfg.Stream.PingInterval)
	proc := usecase.NewStreamProcessor(eval, m)
	pipe := mid.NewScoringPipeline(proc, m,
		mid.WithMaxRPS(cfg.Stream.MaxRPS),
		mid.WithBufferSize(cfg.Stream.BufferSize),
	)
	return usecase.NewObservationCollector(src, proc, m, pipe)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	eval *usecase.Evaluator,
	collector *usecase.ObservationCollector,
	consumer *pkgkafka.Consumer,
	fh *usecase.KafkaFeedbackHandler,
	chClient *pkgch.Client,
	rc *pkgcache.RedisCache,
	q *queue.RedisQueue,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, lgr, eval, collector, consumer, fh, chClient, rc, q)
}
