package api

import (
	"fmt"
	"strconv"
	"time"

	apperrors "forecast-service/internal/common/errors"
	"forecast-service/internal/common/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	localRequestID  = "request_id"
)

// requestID reuses the caller's request id or assigns a new one.
func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals(localRequestID, id)
	c.Set(HeaderRequestID, id)
	return c.Next()
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusFor(err)
	}
	route := c.Route().Path
	metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

	fields := map[string]interface{}{
		"method":      c.Method(),
		"path":        c.Path(),
		"status":      status,
		"duration_ms": time.Since(start).Milliseconds(),
		"request_id":  requestIDFrom(c),
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Warn("Request failed", fields)
	} else {
		s.logger.Debug("Request served", fields)
	}
	return err
}

func (s *Server) recoverPanic(c *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
		}
	}()
	return c.Next()
}

// rateLimit applies the shared token bucket to everything except /health.
func (s *Server) rateLimit(c *fiber.Ctx) error {
	if s.limiter == nil || c.Path() == "/health" {
		return c.Next()
	}
	if !s.limiter.Allow() {
		c.Set(fiber.HeaderRetryAfter, "1")
		return apperrors.NewRateLimitedError()
	}
	return c.Next()
}

func requestIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}
