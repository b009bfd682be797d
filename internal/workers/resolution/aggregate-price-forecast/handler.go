package aggregatepriceforecast

import (
	"context"
	"fmt"
	"time"

	"forecast-service/internal/common/config"
	"forecast-service/internal/common/errors"
	"forecast-service/internal/common/logger"
	"forecast-service/internal/common/metrics"
	"forecast-service/internal/common/validation"
	"forecast-service/internal/query"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "aggregate-price-forecast"

var schema = validation.MustCompile(inputSchema)

type Aggregator interface {
	AggregatePrices(ctx context.Context, year int) (*query.AggregateResponse, error)
}

type Handler struct {
	config       *Config
	aggregator   Aggregator
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Aggregator   Aggregator
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Aggregator == nil {
		return nil, fmt.Errorf("%s: aggregator is required", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config:       cfg,
		aggregator:   opts.Aggregator,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing price aggregation", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputValidationError([]string{err.Error()})
	}

	result, err := schema.ValidateInput(variables)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		if missing := result.MissingFields(); len(missing) > 0 {
			return nil, errors.NewMissingParameterError(missing...)
		}
		return nil, errors.NewInputValidationError(result.GetErrorMessages())
	}
	return &Input{Year: variables["year"]}, nil
}

// Execute runs the aggregate price query for the input year.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	year, err := query.ParseYear(input.Year)
	if err != nil {
		return nil, err
	}
	resp, err := h.aggregator.AggregatePrices(ctx, year)
	if err != nil {
		return nil, err
	}
	return &Output{
		Year:        resp.Year,
		Predicted:   resp.Predicted,
		PriceResult: resp.PriceResult,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.AsStandardError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("Price aggregation completed", map[string]interface{}{
		"jobKey":     job.GetKey(),
		"year":       output.Year,
		"candidates": len(output.PriceResult),
	})
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}
