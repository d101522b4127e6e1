package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/phrazzld/dayreport/internal/events"
	"github.com/phrazzld/dayreport/internal/quota"
	"github.com/phrazzld/dayreport/internal/reveal"
)

var fixedNow = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTasks is an in-memory TaskService. Submit publishes a pending update
// on bus when one is set.
type fakeTasks struct {
	mu        sync.Mutex
	tasks     map[string]domain.Task
	order     []string
	submitErr error
	bus       events.Publisher
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: make(map[string]domain.Task)}
}

func (f *fakeTasks) Submit(ctx context.Context, req domain.Request) (domain.Task, error) {
	if req.APIURL == "" {
		return domain.Task{}, domain.Invalidf("URL is required")
	}
	if f.submitErr != nil {
		return domain.Task{}, f.submitErr
	}

	f.mu.Lock()
	id := fmt.Sprintf("task-%d", len(f.order)+1)
	snap := domain.NewTask(id, req, fixedNow).Snapshot()
	f.tasks[id] = snap
	f.order = append(f.order, id)
	f.mu.Unlock()

	if f.bus != nil {
		f.bus.Publish(ctx, events.Event{Kind: events.KindTaskUpdate, Task: snap})
	}
	return snap, nil
}

func (f *fakeTasks) Get(id string) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return t, nil
}

func (f *fakeTasks) List() []domain.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Task, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.tasks[id])
	}
	return out
}

type fakeQuota struct {
	status quota.Status
	err    error
}

func (f fakeQuota) Status(context.Context) (quota.Status, error) {
	return f.status, f.err
}

// fakeRevealer accepts paths under /data and rejects everything else.
type fakeRevealer struct {
	err error
}

func (f fakeRevealer) Reveal(_ context.Context, path string) (reveal.Result, error) {
	if f.err != nil {
		return reveal.Result{}, f.err
	}
	if len(path) < 6 || path[:6] != "/data/" {
		return reveal.Result{}, domain.Invalidf("file path is outside the data directory")
	}
	return reveal.Result{Path: path, Opened: true}, nil
}
