package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-service/internal/data/migrations"
	"payment-service/internal/data/repository"
	"payment-service/internal/gateway"
	"payment-service/internal/metrics"
	"payment-service/internal/notify"
	"payment-service/internal/usecase"
	"payment-service/internal/wire"
	"payment-service/internal/worker"
	"payment-service/pkg/cache"
	"payment-service/pkg/database"
	"payment-service/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&runMigrations, "migrate", false, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	config, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := config.Validate(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return err
	}

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.Bool("sandbox", config.Gateway.Sandbox),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return err
	}
	defer db.Close()
	logger.Info("Database connected successfully")

	if runMigrations {
		if _, err := migrations.Run(ctx, db, logger); err != nil {
			return err
		}
	}

	store, err := newCache(ctx, config, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	repos := repository.NewRepository(db, logger).WithMethodCache(store, config.Redis.MethodTTL, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gw, err := gateway.NewClient(gateway.Config{
		BaseURL:     config.Gateway.BaseURL,
		AccessToken: config.Gateway.AccessToken,
		Timeout:     config.Gateway.Timeout,
	})
	if err != nil {
		return err
	}

	publisher, err := newPublisher(config, logger)
	if err != nil {
		return err
	}

	pool := worker.NewPool(config.Worker.Size, config.Worker.QueueSize, m.WorkerQueueDepth, logger)
	defer stopDispatch(pool, publisher, logger)

	dispatcher := notify.NewDispatcher(
		pool,
		notify.NewSalesClient(config.Sales.BaseURL, config.Sales.Timeout, nil),
		publisher,
		m,
		config.Sales.Timeout+5*time.Second,
		logger,
	)

	service := usecase.NewService(repos, usecase.Dependencies{
		Gateway:  gw,
		Notifier: dispatcher,
		Dedupe:   store,
		Metrics:  m,
	}, config, logger)

	verifier := gateway.NewSignatureVerifier(config.Gateway.WebhookSecret)
	if !verifier.Enabled() {
		logger.Warn("Webhook signature verification disabled, GATEWAY_WEBHOOK_SECRET is empty")
	}

	app := wire.Wiring(wire.Deps{
		Service:  service,
		Verifier: verifier,
		DB:       db,
		Metrics:  m,
	}, config, logger)

	return serveHTTP(ctx, app.Router, config, logger)
}

func serveHTTP(ctx context.Context, handler http.Handler, config *utils.Config, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.App.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", zap.Duration("timeout", config.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

type stopper interface {
	Stop()
}

// stopDispatch drains queued notifications before the producer they publish through is closed.
func stopDispatch(pool stopper, publisher notify.Publisher, logger *zap.Logger) {
	pool.Stop()
	if err := publisher.Close(); err != nil {
		logger.Error("Failed to close event publisher", zap.Error(err))
	}
}

// newCache uses redis when REDIS_ADDR is set and the in-process cache otherwise.
func newCache(ctx context.Context, config *utils.Config, logger *zap.Logger) (cache.Cache, error) {
	if config.Redis.Addr == "" {
		logger.Info("REDIS_ADDR not set, using in-process cache")
		return cache.NewMemory(), nil
	}

	store, err := cache.NewRedis(ctx, config.Redis.Addr, config.Redis.Password, config.Redis.DB, config.App.Name)
	if err != nil {
		logger.Error("Failed to connect to redis", zap.Error(err), zap.String("addr", config.Redis.Addr))
		return nil, err
	}
	logger.Info("Redis connected", zap.String("addr", config.Redis.Addr))
	return store, nil
}

func newPublisher(config *utils.Config, logger *zap.Logger) (notify.Publisher, error) {
	if len(config.Kafka.Brokers) == 0 {
		logger.Info("KAFKA_BROKERS not set, payment events are not published")
		return notify.NopPublisher{}, nil
	}

	publisher, err := notify.NewKafkaPublisher(config.Kafka.Brokers, config.Kafka.Topic)
	if err != nil {
		logger.Error("Failed to create kafka producer", zap.Error(err))
		return nil, err
	}
	logger.Info("Kafka publisher ready",
		zap.Strings("brokers", config.Kafka.Brokers),
		zap.String("topic", config.Kafka.Topic),
	)
	return publisher, nil
}
