package api

import (
	"encoding/json"
	"errors"

	apperrors "forecast-service/internal/common/errors"
	"forecast-service/internal/query"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"regions": len(s.svc.Regions()),
	})
}

func (s *Server) regions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"regions": s.svc.Regions(),
		"status":  query.StatusSuccess,
	})
}

func (s *Server) predictRainfall(c *fiber.Ctx) error {
	p, err := s.params(c)
	if err != nil {
		return err
	}
	resp, err := s.svc.PredictRainfall(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (s *Server) predictCombined(c *fiber.Ctx) error {
	p, err := s.params(c)
	if err != nil {
		return err
	}
	resp, err := s.svc.PredictCombined(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (s *Server) predictPrice(c *fiber.Ctx) error {
	in, err := input(c)
	if err != nil {
		return err
	}
	year, err := query.ParseYear(in["year"])
	if err != nil {
		return err
	}
	resp, err := s.svc.AggregatePrices(c.UserContext(), year)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (s *Server) params(c *fiber.Ctx) (query.Params, error) {
	in, err := input(c)
	if err != nil {
		return query.Params{}, err
	}
	return query.ParseParams(in["region"], in["year"])
}

// input reads the request fields from a JSON body or, failing that, from form
// values. Absent fields are left out of the map.
func input(c *fiber.Ctx) (map[string]interface{}, error) {
	in := make(map[string]interface{})
	if c.Is("json") {
		if len(c.Body()) == 0 {
			return in, nil
		}
		if err := json.Unmarshal(c.Body(), &in); err != nil {
			return nil, apperrors.NewInvalidRequestError(err)
		}
		if in == nil {
			in = make(map[string]interface{})
		}
		return in, nil
	}
	for _, key := range []string{"region", "year"} {
		if v := c.FormValue(key); v != "" {
			in[key] = v
		}
	}
	return in, nil
}

// handleError renders every error the handlers and middleware return.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error":      fe.Message,
			"status":     "error",
			"request_id": requestIDFrom(c),
		})
	}

	stdErr := apperrors.AsStandardError(err)
	if stdErr.Code == apperrors.ErrCodeInternal {
		s.logger.WithError(err).Error("Unhandled error", map[string]interface{}{
			"path":       c.Path(),
			"request_id": requestIDFrom(c),
		})
	}

	body := fiber.Map{
		"error":      stdErr.Message,
		"code":       stdErr.Code,
		"status":     "error",
		"request_id": requestIDFrom(c),
	}
	for _, key := range []string{apperrors.MetaAvailableRegions, apperrors.MetaAvailableYears, apperrors.MetaMaxPredictYear} {
		if v, ok := stdErr.Metadata[key]; ok {
			body[key] = v
		}
	}
	return c.Status(stdErr.HTTPStatus()).JSON(body)
}

func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperrors.AsStandardError(err).HTTPStatus()
}
