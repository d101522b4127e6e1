package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// WorkerPool manages a pool of worker goroutines that process jobs
// from a queue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	// queue provides read access to the jobs to be processed
	queue TaskQueueReader

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg conc.WaitGroup

	// ctx is used for cancellation and shutdown signaling
	ctx context.Context

	// cancel is the function to call to cancel the context
	cancel context.CancelFunc

	logger *slog.Logger

	// errorHandler is called when a job fails or panics.
	// If nil, errors are only logged
	errorHandler func(job Job, err error)
}

// NewWorkerPool creates a new worker pool reading from queue
func NewWorkerPool(queue TaskQueueReader, workerCount int, logger *slog.Logger) *WorkerPool {
	if workerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", workerCount,
			"default_count", 1)
		workerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:       queue,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// SetErrorHandler sets the handler for job failures. Call before Start.
func (p *WorkerPool) SetErrorHandler(handler func(job Job, err error)) {
	p.errorHandler = handler
}

// Start launches the workers
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool", "worker_count", p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		id := i
		p.wg.Go(func() { p.worker(id) })
	}
}

// Stop cancels running jobs and waits for every worker to return
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(id int) {
	p.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return

		case job, ok := <-p.queue.GetChannel():
			if !ok {
				p.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			p.process(job, id)
		}
	}
}

// process runs one job. A panic is converted to an error so one bad job
// never takes a worker down.
func (p *WorkerPool) process(job Job, workerID int) {
	logger := p.logger.With("job_id", job.ID(), "worker_id", workerID)
	logger.Debug("processing job")

	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = job.Execute(p.ctx) })
	if r := pc.Recovered(); r != nil {
		err = fmt.Errorf("job panicked: %v", r.Value)
		logger.Error("job panicked", "panic", r.Value, "stack", string(r.Stack))
	}

	if err == nil {
		logger.Debug("job finished")
		return
	}

	logger.Warn("job failed", "error", err)
	if p.errorHandler != nil {
		p.errorHandler(job, err)
	}
}
