package task

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/phrazzld/dayreport/internal/platform/logger"
	"github.com/sourcegraph/conc/panics"
)

// Progress milestones.
const (
	fetchProgressCap  = 70
	fetchProgressStep = 2
	aggregatedAt      = 80
	generationSpan    = 15
	completedAt       = 100
)

// pipelineJob runs one task's pipeline on a worker.
type pipelineJob struct {
	registry *Registry
	id       string
}

func (j *pipelineJob) ID() string { return j.id }

// Execute runs the pipeline. Every outcome, including a panic, ends in a
// terminal state for the task.
func (j *pipelineJob) Execute(ctx context.Context) error {
	r := j.registry

	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = r.run(ctx, j.id) })
	if rec := pc.Recovered(); rec != nil {
		r.logger.Error("task pipeline panicked", "task_id", j.id, "panic", rec.Value, "stack", string(rec.Stack))
		err = fmt.Errorf("internal error: %v", rec.Value)
	}

	if err != nil {
		r.fail(ctx, j.id, err)
	}
	return err
}

// dayOutcome is the result of generating one day's artifact.
type dayOutcome struct {
	artifact string
	skipped  bool
}

func (r *Registry) run(ctx context.Context, id string) error {
	req, ok := r.request(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}

	log := r.logger.With("task_id", id)
	ctx = logger.WithContext(ctx, log)

	started := r.update(ctx, id, func(t *domain.Task) bool {
		if t.Status != domain.StatusPending {
			return false
		}
		t.Status = domain.StatusProcessing
		t.Progress = 0
		return true
	})
	if !started {
		log.Warn("task is not pending, skipping")
		return nil
	}
	log.Info("task processing started")

	records, err := r.deps.Fetcher.FetchAll(ctx, req, func(page, total int) {
		r.setProgress(ctx, id, min(fetchProgressCap, page*fetchProgressStep))
	})
	if err != nil {
		return err
	}

	buckets := r.deps.Aggregator.Group(records)
	days := buckets.Days()
	r.update(ctx, id, func(t *domain.Task) bool {
		t.RecordCount = len(records)
		t.Progress = max(t.Progress, aggregatedAt)
		return true
	})
	log.Info("records aggregated", "records", len(records), "days", len(days))

	var artifacts, skipped []string
	for i, day := range days {
		out, err := r.generateDay(ctx, id, day, buckets[day])
		if err != nil {
			return fmt.Errorf("generate %s: %w", day, err)
		}
		if out.skipped {
			skipped = append(skipped, day)
		} else {
			artifacts = append(artifacts, out.artifact)
		}
		r.setProgress(ctx, id, aggregatedAt+(i+1)*generationSpan/len(days))
	}

	dir := r.deps.Store.TaskDir(id)
	summary := fmt.Sprintf("%d artifacts generated from %d records", len(artifacts), len(records))
	if len(skipped) > 0 {
		summary += fmt.Sprintf("; %d days skipped", len(skipped))
	}

	r.finish(ctx, id, domain.StatusCompleted, func(t *domain.Task) {
		t.Progress = completedAt
		t.Artifacts = artifacts
		t.SkippedDays = skipped
		t.ResultDir = dir
		t.ResultSummary = summary
	})
	log.Info("task completed", "artifacts", len(artifacts), "skipped_days", len(skipped), "result_dir", dir)
	return nil
}

// generateDay reserves quota, renders, size-checks, writes and commits one
// day's artifact. Quota exhaustion and oversize artifacts skip the day;
// every other error is returned.
func (r *Registry) generateDay(ctx context.Context, id, day string, records []domain.Record) (dayOutcome, error) {
	log := logger.FromContext(ctx).With("day", day)

	reservation, err := r.deps.Quota.Reserve(ctx)
	if errors.Is(err, domain.ErrQuotaExceeded) {
		log.Warn("daily quota exhausted, skipping day", "error", err)
		return dayOutcome{skipped: true}, nil
	}
	if err != nil {
		return dayOutcome{}, err
	}
	defer reservation.Release()

	data, err := r.deps.Renderer.Render(day, records)
	if err != nil {
		return dayOutcome{}, fmt.Errorf("render artifact: %w", err)
	}

	size, err := r.deps.Quota.SizeCheck(int64(len(data)))
	if errors.Is(err, domain.ErrArtifactTooLarge) {
		log.Warn("artifact too large, skipping day", "error", err)
		return dayOutcome{skipped: true}, nil
	}
	if err != nil {
		return dayOutcome{}, err
	}

	path, err := r.deps.Store.Write(id, day, r.deps.Renderer.Extension(), data)
	if err != nil {
		return dayOutcome{}, err
	}

	count, err := reservation.Commit(ctx)
	if err != nil {
		return dayOutcome{}, err
	}

	log.Info("artifact written",
		"file", filepath.Base(path),
		"records", len(records),
		"bytes", size.Bytes,
		"daily_count", count)
	return dayOutcome{artifact: filepath.Base(path)}, nil
}

// request returns the stored submission for a task.
func (r *Registry) request(id string) (domain.Request, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tasks[id]
	if !ok {
		return domain.Request{}, false
	}
	return e.task.Request.Clone(), true
}
