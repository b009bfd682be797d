package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"forecast-service/internal/aggregate"
	"forecast-service/internal/api"
	"forecast-service/internal/common/camunda"
	"forecast-service/internal/common/config"
	"forecast-service/internal/common/database"
	"forecast-service/internal/common/logger"
	"forecast-service/internal/common/observability"
	"forecast-service/internal/forecast"
	"forecast-service/internal/query"
	"forecast-service/internal/resolution"
	"forecast-service/internal/series"

	apf "forecast-service/internal/workers/resolution/aggregate-price-forecast"
	rmv "forecast-service/internal/workers/resolution/resolve-metric-value"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	if err := run(cfg, log); err != nil {
		zapLog.Fatal("forecast service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx := context.Background()

	log.Info("Starting forecast service", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
		"source":      cfg.Dataset.Source,
	})

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer obs.Shutdown(context.Background())

	// --- Dataset ---
	var db *sql.DB
	if cfg.Dataset.Source == config.SourcePostgres {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(ctx, cfg.Database.Postgres)
			return err
		}, 10, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			return err
		}
		defer pg.Close()
		db = pg.DB
	}

	store, err := series.LoadStore(ctx, cfg.Dataset, db, log)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	// --- Engine ---
	engine := forecast.NewEngine(
		forecast.WithFitTimeout(config.GetDuration(cfg.Forecast.FitTimeout)),
		forecast.WithMaxIterations(cfg.Forecast.MaxIterations),
	)
	policy := resolution.NewPolicy(engine, log)
	aggregator := aggregate.NewAggregator(policy, cfg.Aggregate.Parallelism, log)

	opts := query.Options{
		MemoSize: cfg.Cache.MemoSize,
		MemoTTL:  config.GetDuration(cfg.Cache.MemoTTL),
	}
	if cfg.Cache.RedisEnabled {
		rc, err := database.NewRedis(ctx, cfg.Database.Redis)
		if err != nil {
			// The cache is optional; queries still work without it.
			log.Warn("Redis unavailable, aggregate cache disabled", map[string]interface{}{"error": err})
		} else {
			defer rc.Close()
			opts.AggregateCache = query.NewRedisAggregateCache(rc.Client, cfg.Cache.KeyPrefix, config.GetDuration(cfg.Cache.AggregateTTL))
		}
	}

	svc, err := query.NewService(store, policy, aggregator, obs, log, opts)
	if err != nil {
		return fmt.Errorf("query service: %w", err)
	}

	// --- Workers ---
	var workers *camunda.Workers
	if cfg.Camunda.Enabled {
		zc, err := camunda.Connect(ctx, camunda.ClientConfigFrom(cfg.Camunda), log)
		if err != nil {
			return fmt.Errorf("zeebe: %w", err)
		}
		defer zc.Close()

		workers = camunda.NewWorkers(zc.GetClient(), log)
		if err := registerWorkers(cfg, workers, svc, log); err != nil {
			return err
		}
	}

	// --- Servers ---
	errCh := make(chan error, 2)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = newMetricsServer(cfg.Metrics.Address)
		go func() {
			log.Info("Health/Metrics server listening", map[string]interface{}{"address": cfg.Metrics.Address})
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	server := api.NewServer(cfg.Server, svc, log)
	go func() {
		if err := server.Listen(cfg.Server.Address); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		log.Error("Server stopped unexpectedly", map[string]interface{}{"error": err})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if workers != nil {
		workers.Close()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", map[string]interface{}{"error": err})
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("Metrics server shutdown failed", map[string]interface{}{"error": err})
		}
	}

	log.Info("Forecast service stopped", nil)
	return nil
}

func registerWorkers(cfg *config.Config, workers *camunda.Workers, svc *query.Service, log logger.Logger) error {
	resolve, err := rmv.NewHandler(rmv.HandlerOptions{AppConfig: cfg, Querier: svc, Logger: log})
	if err != nil {
		return err
	}
	if resolve.IsEnabled() {
		c := resolve.GetConfig()
		if err := workers.Register(camunda.WorkerOptions{
			TaskType:      rmv.TaskType,
			MaxJobsActive: c.MaxJobsActive,
			Timeout:       c.Timeout,
		}, resolve); err != nil {
			return err
		}
	}

	agg, err := apf.NewHandler(apf.HandlerOptions{AppConfig: cfg, Aggregator: svc, Logger: log})
	if err != nil {
		return err
	}
	if agg.IsEnabled() {
		c := agg.GetConfig()
		if err := workers.Register(camunda.WorkerOptions{
			TaskType:      apf.TaskType,
			MaxJobsActive: c.MaxJobsActive,
			Timeout:       c.Timeout,
		}, agg); err != nil {
			return err
		}
	}

	log.Info("Workers registered", map[string]interface{}{"count": workers.Len()})
	return nil
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
