// Package api exposes the query service over HTTP.
package api

import (
	"context"

	"forecast-service/internal/common/config"
	"forecast-service/internal/common/logger"
	"forecast-service/internal/query"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// QueryService is what the handlers need from the query layer.
type QueryService interface {
	PredictRainfall(ctx context.Context, p query.Params) (*query.RainfallResponse, error)
	PredictCombined(ctx context.Context, p query.Params) (*query.CombinedResponse, error)
	AggregatePrices(ctx context.Context, year int) (*query.AggregateResponse, error)
	Regions() []string
}

type Server struct {
	app     *fiber.App
	svc     QueryService
	limiter *rate.Limiter
	logger  logger.Logger
}

func NewServer(cfg config.ServerConfig, svc QueryService, log logger.Logger) *Server {
	s := &Server{
		svc:    svc,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "forecast-service",
		ReadTimeout:           config.GetDuration(cfg.ReadTimeout),
		WriteTimeout:          config.GetDuration(cfg.WriteTimeout),
		IdleTimeout:           config.GetDuration(cfg.IdleTimeout),
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		// Request values outlive the handler in the query memo.
		Immutable:             true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(s.requestID, s.accessLog, s.recoverPanic, s.rateLimit)

	s.app.Get("/health", s.health)
	s.app.Get("/regions", s.regions)
	s.app.Post("/predict_rainfall", s.predictRainfall)
	s.app.Post("/predict", s.predictCombined)
	s.app.Post("/predict_price", s.predictPrice)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("HTTP server listening", map[string]interface{}{"address": addr})
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
