package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast-service/internal/aggregate"
	"forecast-service/internal/api"
	"forecast-service/internal/common/config"
	"forecast-service/internal/common/logger"
	"forecast-service/internal/forecast"
	"forecast-service/internal/query"
	"forecast-service/internal/resolution"
	"forecast-service/internal/series"
)

type stack struct {
	server *api.Server
	redis  *miniredis.Miniredis
}

func writeTable(t *testing.T, dir, name, entityCol string, from, to int, rows map[string]func(year int) string, order []string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(entityCol)
	for y := from; y <= to; y++ {
		fmt.Fprintf(&b, ",%d", y)
	}
	b.WriteString("\n")
	for _, entity := range order {
		b.WriteString(entity)
		for y := from; y <= to; y++ {
			b.WriteString("," + rows[entity](y))
		}
		b.WriteString("\n")
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func setup(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	only := func(year int, v string) func(int) string {
		return func(y int) string {
			if y == year {
				return v
			}
			return ""
		}
	}
	rainfall := writeTable(t, dir, "rainfall.csv", "PR", 1950, 2022, map[string]func(int) string{
		"R01": func(y int) string { return fmt.Sprintf("%.3f", 1000+40*math.Sin(float64(y))) },
		"R02": only(2020, "5"),
	}, []string{"R01", "R02"})
	sunshine := writeTable(t, dir, "sunshine.csv", "PR", 1960, 2022, map[string]func(int) string{
		"R01": func(y int) string { return "2000" },
	}, []string{"R01"})
	price := writeTable(t, dir, "price.csv", "product", 2005, 2023, map[string]func(int) string{
		"rice": func(y int) string { return fmt.Sprintf("%d", 100+2*(y-2005)) },
		"salt": func(y int) string {
			switch y {
			case 2022:
				return "6"
			case 2023:
				return "4"
			}
			return ""
		},
	}, []string{"rice", "salt"})

	yaml := fmt.Sprintf(`
server:
  address: ":0"
dataset:
  source: csv
  rainfall:
    path: %s
  sunshine:
    path: %s
  price:
    path: %s
cache:
  redis_enabled: true
  key_prefix: e2e
database:
  redis:
    address: %s
logging:
  level: debug
  format: console
`, rainfall, sunshine, price, mr.Addr())
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	cfg, err := config.LoadFromFile(cfgPath)
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	store, err := series.LoadStore(context.Background(), cfg.Dataset, nil, log)
	require.NoError(t, err)

	engine := forecast.NewEngine(
		forecast.WithFitTimeout(config.GetDuration(cfg.Forecast.FitTimeout)),
		forecast.WithMaxIterations(cfg.Forecast.MaxIterations),
	)
	policy := resolution.NewPolicy(engine, log)
	agg := aggregate.NewAggregator(policy, cfg.Aggregate.Parallelism, log)

	client := redis.NewClient(&redis.Options{Addr: cfg.Database.Redis.Address})
	t.Cleanup(func() { client.Close() })

	svc, err := query.NewService(store, policy, agg, nil, log, query.Options{
		MemoSize:       cfg.Cache.MemoSize,
		MemoTTL:        config.GetDuration(cfg.Cache.MemoTTL),
		AggregateCache: query.NewRedisAggregateCache(client, cfg.Cache.KeyPrefix, config.GetDuration(cfg.Cache.AggregateTTL)),
	})
	require.NoError(t, err)

	return &stack{server: api.NewServer(cfg.Server, svc, log), redis: mr}
}

func (s *stack) post(t *testing.T, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestE2E_Rainfall(t *testing.T) {
	s := setup(t)

	status, body := s.post(t, "/predict_rainfall", `{"region":"R01","year":2000}`)
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 1000+40*math.Sin(2000), body["rain"], 0.006)
	assert.Equal(t, false, body["predicted"])
	assert.Equal(t, "mm×1000", body["unit"])

	status, body = s.post(t, "/predict_rainfall", `{"region":"R01","year":"2026"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["predicted"])
	require.NotNil(t, body["rain"])

	status, body = s.post(t, "/predict_rainfall", `{"region":"R02","year":2025}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INSUFFICIENT_HISTORY", body["code"])
	assert.Equal(t, []interface{}{float64(2020)}, body["available_years"])

	status, body = s.post(t, "/predict_rainfall", `{"region":"R01","year":2027}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, float64(2026), body["max_predict_year"])

	status, body = s.post(t, "/predict_rainfall", `{"region":"R09","year":2000}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, []interface{}{"R01", "R02"}, body["available_regions"])
}

func TestE2E_Combined(t *testing.T) {
	s := setup(t)

	status, body := s.post(t, "/predict", `{"region":"R01","year":2010}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2000.0, body["sunshine"])
	// salt has no 2010 value.
	assert.Len(t, body["price_result"], 1)

	status, body = s.post(t, "/predict", `{"region":"R02","year":2020}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5.0, body["rain"])
	assert.Nil(t, body["sunshine"])
}

func TestE2E_PriceAggregateIsCached(t *testing.T) {
	s := setup(t)

	status, body := s.post(t, "/predict_price", `{"year":2025}`)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, s.redis.Exists("e2e:aggregate:2025"))

	items, ok := body["price_result"].([]interface{})
	require.True(t, ok)
	var salt map[string]interface{}
	for _, it := range items {
		item := it.(map[string]interface{})
		growth, ok := item["growth_rate"].(float64)
		require.True(t, ok)
		assert.Greater(t, growth, -5.0)
		if item["product"] == "salt" {
			salt = item
		}
	}
	require.NotNil(t, salt, "two points fall back to the mean")
	assert.Equal(t, 5.0, salt["predicted_price"])
	assert.Equal(t, 25.0, salt["growth_rate"])

	_, again := s.post(t, "/predict_price", `{"year":2025}`)
	assert.Equal(t, body["price_result"], again["price_result"])
}
