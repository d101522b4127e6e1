package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dayreport/internal/aggregate"
	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/phrazzld/dayreport/internal/events"
	"github.com/phrazzld/dayreport/internal/fetch"
	"github.com/phrazzld/dayreport/internal/quota"
	"github.com/phrazzld/dayreport/internal/redact"
)

// Fetcher retrieves every record behind a source endpoint.
type Fetcher interface {
	FetchAll(ctx context.Context, req domain.Request, onPage fetch.PageFunc) ([]domain.Record, error)
}

// Quota admits artifacts against the daily budget.
type Quota interface {
	Reserve(ctx context.Context) (*quota.Reservation, error)
	SizeCheck(n int64) (quota.Size, error)
}

// ArtifactStore persists rendered artifacts.
type ArtifactStore interface {
	TaskDir(taskID string) string
	Write(taskID, day, ext string, data []byte) (string, error)
}

// Renderer encodes one day's records.
type Renderer interface {
	Render(day string, records []domain.Record) ([]byte, error)
	Extension() string
}

// Submitter accepts background jobs without blocking.
type Submitter interface {
	Submit(job Job) error
}

// Deps are the collaborators of a Registry.
type Deps struct {
	Fetcher    Fetcher
	Aggregator *aggregate.Aggregator
	Quota      Quota
	Renderer   Renderer
	Store      ArtifactStore
	Bus        events.Publisher
	Runner     Submitter
	Logger     *slog.Logger

	// Now and NewID are optional; they default to time.Now and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// entry pairs a task with the channel closed when it turns terminal.
type entry struct {
	task *domain.Task
	done chan struct{}
}

// Registry owns every task for the lifetime of the process. All state
// changes go through it, and each one is broadcast on the bus.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*entry
	order []string

	deps   Deps
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.New().String() }
	}
	if deps.Aggregator == nil {
		deps.Aggregator = aggregate.New(nil, deps.Now)
	}
	return &Registry{
		tasks:  make(map[string]*entry),
		deps:   deps,
		logger: deps.Logger.With("component", "task_registry"),
	}
}

// Submit validates req, records a pending task and queues its pipeline.
// Validation failures return domain.ErrValidation and create nothing. When
// the runner refuses the job the task is moved to error and the runner's
// error is returned alongside the snapshot.
func (r *Registry) Submit(ctx context.Context, req domain.Request) (domain.Task, error) {
	validated, err := fetch.ValidateRequest(req)
	if err != nil {
		return domain.Task{}, err
	}

	id := r.deps.NewID()
	t := domain.NewTask(id, validated, r.deps.Now())

	r.mu.Lock()
	r.tasks[id] = &entry{task: t, done: make(chan struct{})}
	r.order = append(r.order, id)
	snap := t.Snapshot()
	r.mu.Unlock()

	r.logger.Info("task submitted",
		"task_id", id,
		"method", validated.Method,
		"url", redact.URL(validated.APIURL))
	r.publish(ctx, events.KindTaskUpdate, snap)

	if err := r.deps.Runner.Submit(&pipelineJob{registry: r, id: id}); err != nil {
		r.fail(ctx, id, fmt.Errorf("task not started: %w", err))
		failed, _ := r.Get(id)
		return failed, err
	}
	return snap, nil
}

// Get returns a snapshot of one task.
func (r *Registry) Get(id string) (domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return e.task.Snapshot(), nil
}

// List returns snapshots of every task in submission order.
func (r *Registry) List() []domain.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tasks[id].task.Snapshot())
	}
	return out
}

// Wait blocks until the task is terminal or ctx is done, and returns the
// latest snapshot.
func (r *Registry) Wait(ctx context.Context, id string) (domain.Task, error) {
	r.mu.RLock()
	e, ok := r.tasks[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return domain.Task{}, ctx.Err()
	}
	return r.Get(id)
}

// update applies mutate to a non-terminal task and broadcasts the result.
// mutate reports whether anything changed; unchanged tasks are not
// broadcast.
func (r *Registry) update(ctx context.Context, id string, mutate func(t *domain.Task) bool) bool {
	r.mu.Lock()
	e, ok := r.tasks[id]
	if !ok || e.task.Status.IsTerminal() || !mutate(e.task) {
		r.mu.Unlock()
		return false
	}
	e.task.UpdatedAt = r.deps.Now()
	snap := e.task.Snapshot()
	r.mu.Unlock()

	r.publish(ctx, events.KindTaskUpdate, snap)
	return true
}

// setProgress moves a processing task forward. Progress never decreases.
func (r *Registry) setProgress(ctx context.Context, id string, progress int) {
	r.update(ctx, id, func(t *domain.Task) bool {
		if t.Status != domain.StatusProcessing || progress <= t.Progress {
			return false
		}
		t.Progress = min(progress, 100)
		return true
	})
}

// finish moves a task into a terminal state, broadcasts the update followed
// by task-completed or error, and releases waiters. Only the first call for a task has any effect.
func (r *Registry) finish(ctx context.Context, id string, status domain.Status, mutate func(t *domain.Task)) bool {
	r.mu.Lock()
	e, ok := r.tasks[id]
	if !ok || !e.task.Status.CanTransition(status) {
		r.mu.Unlock()
		return false
	}
	e.task.Status = status
	mutate(e.task)
	e.task.UpdatedAt = r.deps.Now()
	snap := e.task.Snapshot()
	r.mu.Unlock()

	r.publish(ctx, events.KindTaskUpdate, snap)
	switch status {
	case domain.StatusCompleted:
		r.publish(ctx, events.KindTaskCompleted, snap)
	case domain.StatusError:
		r.publish(ctx, events.KindError, snap)
	}
	close(e.done)
	return true
}

// fail records err as the task's terminal error.
func (r *Registry) fail(ctx context.Context, id string, err error) {
	msg := redact.Error(err)
	if r.finish(ctx, id, domain.StatusError, func(t *domain.Task) { t.ErrorMessage = msg }) {
		r.logger.Error("task failed", "task_id", id, "error", msg)
	}
}

func (r *Registry) publish(ctx context.Context, kind events.Kind, snap domain.Task) {
	if r.deps.Bus == nil {
		return
	}
	r.deps.Bus.Publish(ctx, events.Event{Kind: kind, Task: snap})
}
