// Package bootstrap holds the process wiring shared by every stage binary:
// configuration, logging, tracing, the object store, the bus and the HTTP
// server lifecycle.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/speechflow/internal/bus"
	"github.com/your-org/speechflow/internal/ledger"
	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/internal/stage"
	"github.com/your-org/speechflow/pkg/config"
	"github.com/your-org/speechflow/pkg/kafka"
	"github.com/your-org/speechflow/pkg/logger"
	"github.com/your-org/speechflow/pkg/storage/objectstore"
	"github.com/your-org/speechflow/pkg/tracing"
)

const shutdownTimeout = 30 * time.Second

// App is a fully wired process. Close releases everything Setup opened.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   objectstore.Client
	Emitter stage.Emitter
	Ledger  ledger.Ledger

	closers []func(context.Context) error
}

// Setup loads configuration from the environment and connects the shared
// dependencies.
func Setup(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return New(ctx, cfg)
}

// New wires an App from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logr, err := logger.New(cfg.App.LogLevel, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	app := &App{Config: cfg, Logger: logr}

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		Attributes:  tracing.ParseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName: cfg.App.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	app.closers = append(app.closers, traceShutdown)

	store, err := objectstore.New(objectstore.Config{
		Provider:  cfg.Storage.Provider,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("init object store: %w", err)
	}
	app.Store = store
	app.closers = append(app.closers, func(context.Context) error { return store.Close() })

	app.Emitter = app.newEmitter()

	app.Ledger = ledger.Nop{}
	if cfg.Ledger.Enabled {
		l, err := ledger.NewRedis(ctx, ledger.RedisConfig{
			Addr:     cfg.Ledger.RedisAddr,
			Password: cfg.Ledger.RedisPassword,
			DB:       cfg.Ledger.RedisDB,
			TTL:      cfg.Ledger.TTL,
		})
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("init ledger: %w", err)
		}
		app.Ledger = l
		app.closers = append(app.closers, func(context.Context) error { return l.Close() })
	}

	return app, nil
}

func (a *App) newEmitter() stage.Emitter {
	cfg := a.Config
	switch {
	case cfg.Bus.Transport == "kafka":
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		})
		a.closers = append(a.closers, producer.Close)
		return bus.NewKafkaEmitter(producer)
	case cfg.Bus.SinkURL != "":
		return bus.NewHTTPEmitter(cfg.Bus.SinkURL, cfg.Bus.SinkTimeout)
	default:
		a.Logger.Warn("K_SINK is not set, emitted events will be dropped")
		return bus.Disabled{Logger: a.Logger}
	}
}

// Runner wraps h with the app's emitter and ledger.
func (a *App) Runner(h stage.Handler) *stage.Runner {
	return stage.NewRunner(stage.RunnerParams{
		Handler: h,
		Emitter: a.Emitter,
		Ledger:  a.Ledger,
		Logger:  a.Logger,
	})
}

// StagingDir is the parent of per-invocation scratch directories.
func (a *App) StagingDir() string {
	if a.Config.Staging.Dir != "" {
		return a.Config.Staging.Dir
	}
	return os.TempDir()
}

// Serve exposes runner over HTTP until ctx is cancelled and, when Kafka
// consumption is enabled, feeds it events of the accepted types.
func (a *App) Serve(ctx context.Context, runner *stage.Runner, opts stage.HTTPOptions, accepts ...pipeline.EventType) error {
	cfg := a.Config
	if opts.Timeout == 0 {
		opts.Timeout = cfg.HTTP.HandlerTimeout
	}
	handler := stage.NewHTTPHandler(runner, a.Logger, opts)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("stage starting", zap.String("stage", runner.Name()), zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("http server shutdown failed", zap.Error(err))
		}
		return nil
	})

	if cfg.Bus.KafkaConsume && len(accepts) > 0 {
		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		source := bus.NewKafkaSource(runner, a.Logger, accepts...)
		g.Go(func() error {
			defer consumer.Close() //nolint:errcheck
			a.Logger.Info("kafka consumer starting", zap.String("topic", cfg.Kafka.Topic), zap.String("group", cfg.Kafka.GroupID))
			if err := consumer.Run(gctx, source.Handle); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("kafka consumer: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.Logger.Sync()
}
