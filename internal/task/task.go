package task

import (
	"context"
)

// Job is a unit of background work run by the worker pool.
type Job interface {
	// ID returns the job's identifier, used for logging
	ID() string

	// Execute runs the job. The context is cancelled when the pool stops.
	Execute(ctx context.Context) error
}

// TaskQueueReader provides read-only access to the job channel
// allowing workers to consume jobs without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming jobs
	GetChannel() <-chan Job
}

// TaskQueueWriter provides write access to the job queue
type TaskQueueWriter interface {
	// Enqueue adds a job to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(job Job) error

	// Close closes the queue, preventing further submission
	Close()
}
