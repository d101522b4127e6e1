package task

import (
	"log/slog"
	"sync"

	"github.com/phrazzld/dayreport/internal/config"
)

// Runner is the bounded background executor: a fixed-size queue drained by
// a fixed number of workers. Submit never blocks.
type Runner struct {
	queue    *TaskQueue
	pool     *WorkerPool
	logger   *slog.Logger
	stopOnce sync.Once
}

// NewRunner creates a Runner sized by cfg. Call Start before submitting.
func NewRunner(cfg config.TaskConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_runner")

	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	queue := NewTaskQueue(size, logger)
	return &Runner{
		queue:  queue,
		pool:   NewWorkerPool(queue, cfg.WorkerCount, logger),
		logger: logger,
	}
}

// SetErrorHandler forwards to the worker pool. Call before Start.
func (r *Runner) SetErrorHandler(handler func(job Job, err error)) {
	r.pool.SetErrorHandler(handler)
}

// Submit queues job. It returns ErrQueueFull or ErrQueueClosed when the job
// cannot be accepted.
func (r *Runner) Submit(job Job) error {
	return r.queue.Enqueue(job)
}

// Start launches the workers.
func (r *Runner) Start() {
	r.pool.Start()
}

// Stop refuses new jobs, cancels the context of running ones and waits for
// the workers. Jobs still queued either see a cancelled context or never run.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.queue.Close()
		r.pool.Stop()
	})
}
