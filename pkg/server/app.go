package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"OutSift/internal/handler/api"
	icache "OutSift/internal/service/cache"
	"OutSift/internal/usecase"
	pkgcache "OutSift/pkg/cache"
	pkgch "OutSift/pkg/clickhouse"
	"OutSift/pkg/config"
	xhttp "OutSift/pkg/http"
	pkgkafka "OutSift/pkg/kafka"
	applogger "OutSift/pkg/logger"
	"OutSift/pkg/queue"
)

// App encapsulates the entire application lifecycle: HTTP API, optional
// stream collector, feedback consumer, and the snapshot job queue.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	eval        *usecase.Evaluator
	collector   *usecase.ObservationCollector
	consumer    *pkgkafka.Consumer
	fh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	redisCache  *pkgcache.RedisCache
	jobQueue    *queue.RedisQueue
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	eval *usecase.Evaluator,
	collector *usecase.ObservationCollector,
	consumer *pkgkafka.Consumer,
	fh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	redisCache *pkgcache.RedisCache,
	jobQueue *queue.RedisQueue,
) *App {
	return &App{
		cfg:        cfg,
		logger:     lgr,
		eval:       eval,
		collector:  collector,
		consumer:   consumer,
		fh:         fh,
		chClient:   chClient,
		redisCache: redisCache,
		jobQueue:   jobQueue,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	// HTTP API over the evaluator
	httpHandler := a.httpHandler
	if httpHandler == nil {
		h := api.NewDetectorEchoHandler(l, a.eval)
		if a.cfg.Redis.Enabled {
			h.SetCache(icache.NewRedisCache(icache.RedisConfig{
				Addr:     a.cfg.Redis.Addr,
				Password: a.cfg.Redis.Password,
				DB:       a.cfg.Redis.DB,
			}))
		} else {
			h.SetCache(icache.NewTTLCache())
		}
		httpHandler = h
	}

	serverOpts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		serverOpts = append(serverOpts, xhttp.WithRequestMetrics(l, 500*time.Millisecond))
	}
	a.httpServer = xhttp.NewServer(httpHandler, serverOpts...)

	// Snapshot job queue
	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			l.Error("snapshot queue start error", applogger.Error(err))
		} else {
			l.Info("snapshot queue started")
		}
	}

	// Stream collector
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.String("url", a.cfg.Stream.URL))
	}

	// Feedback consumer
	if a.consumer != nil && a.fh != nil {
		a.consumer.RegisterHandler(a.fh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.fh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger
	l.Info("shutting down...")

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			l.Warn("snapshot queue stop error", applogger.Error(err))
		}
	}

	// Close the Kafka producer behind the evaluator's publisher
	if err := a.eval.Close(); err != nil {
		l.Warn("publisher close error", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
