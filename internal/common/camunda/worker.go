package camunda

import (
	"fmt"
	"sync"
	"time"

	"forecast-service/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler is implemented by every worker package.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
}

// Workers owns the job workers opened against one client.
type Workers struct {
	client zbc.Client
	logger logger.Logger

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewWorkers(client zbc.Client, log logger.Logger) *Workers {
	return &Workers{
		client:  client,
		logger:  log.WithFields(map[string]interface{}{"component": "workers"}),
		workers: make(map[string]worker.JobWorker),
	}
}

// Register opens a job worker for the task type. Registering a task type twice
// is an error.
func (w *Workers) Register(opts WorkerOptions, h JobHandler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.workers[opts.TaskType]; exists {
		return fmt.Errorf("worker for %s already registered", opts.TaskType)
	}

	jobWorker := w.client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(h.Handle).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Name(fmt.Sprintf("%s-worker", opts.TaskType)).
		Open()
	w.workers[opts.TaskType] = jobWorker

	w.logger.Info("Worker registered", map[string]interface{}{
		"taskType":      opts.TaskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})
	return nil
}

// Close stops every worker and waits for in-flight jobs.
func (w *Workers) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for taskType, jw := range w.workers {
		w.logger.Info("Stopping worker", map[string]interface{}{"taskType": taskType})
		jw.Close()
		jw.AwaitClose()
	}
	w.workers = make(map[string]worker.JobWorker)
}

func (w *Workers) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.workers)
}
