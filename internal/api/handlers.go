package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/dayreport/internal/api/shared"
	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/phrazzld/dayreport/internal/platform/logger"
	"github.com/phrazzld/dayreport/internal/quota"
	"github.com/phrazzld/dayreport/internal/redact"
	"github.com/phrazzld/dayreport/internal/reveal"
)

// TaskService is the task registry as seen by the transport.
type TaskService interface {
	Submit(ctx context.Context, req domain.Request) (domain.Task, error)
	Get(id string) (domain.Task, error)
	List() []domain.Task
}

// QuotaReporter reports today's artifact budget.
type QuotaReporter interface {
	Status(ctx context.Context) (quota.Status, error)
}

// Revealer validates and opens artifact locations.
type Revealer interface {
	Reveal(ctx context.Context, path string) (reveal.Result, error)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Port      int    `json:"port"`
	Timestamp int64  `json:"timestamp"`
}

// TaskListResponse is the body of GET /api/tasks.
type TaskListResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

// RevealRequest is the body of POST /api/reveal.
type RevealRequest struct {
	Path string `json:"path" validate:"required"`
}

// Handler serves the REST endpoints.
type Handler struct {
	tasks  TaskService
	quota  QuotaReporter
	reveal Revealer
	port   int
	now    func() time.Time
	logger *slog.Logger
}

// NewHandler creates a Handler. port is reported by the health check.
func NewHandler(tasks TaskService, quota QuotaReporter, revealer Revealer, port int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		tasks:  tasks,
		quota:  quota,
		reveal: revealer,
		port:   port,
		now:    time.Now,
		logger: logger.With("component", "api_handler"),
	}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		Port:      h.port,
		Timestamp: h.now().UnixMilli(),
	})
}

// SubmitTask handles POST /api/tasks. The task runs in the background; the
// response is the pending snapshot with 202 Accepted.
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req domain.Request
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	snap, err := h.tasks.Submit(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit task")
		return
	}

	logger.FromContext(r.Context()).Info("task accepted",
		"task_id", snap.ID,
		"url", redact.URL(snap.Request.APIURL))
	shared.RespondWithJSON(w, r, http.StatusAccepted, snap)
}

// ListTasks handles GET /api/tasks.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{Tasks: h.tasks.List()})
}

// GetTask handles GET /api/tasks/{id}.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	snap, err := h.tasks.Get(chi.URLParam(r, "id"))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, snap)
}

// QuotaStatus handles GET /api/quota.
func (h *Handler) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.quota.Status(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read quota")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, status)
}

// Reveal handles POST /api/reveal.
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	var req RevealRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	res, err := h.reveal.Reveal(r.Context(), req.Path)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to open file location")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}
