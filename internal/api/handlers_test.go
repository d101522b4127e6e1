package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/dayreport/internal/api/shared"
	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/phrazzld/dayreport/internal/quota"
	"github.com/phrazzld/dayreport/internal/reveal"
	"github.com/phrazzld/dayreport/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", h.SubmitTask)
		r.Get("/tasks", h.ListTasks)
		r.Get("/tasks/{id}", h.GetTask)
		r.Get("/quota", h.QuotaStatus)
		r.Post("/reveal", h.Reveal)
	})
	return r
}

func newTestHandler(tasks TaskService, q QuotaReporter, rv Revealer) *Handler {
	h := NewHandler(tasks, q, rv, 8765, discardLogger())
	h.now = func() time.Time { return fixedNow }
	return h
}

func do(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := setupRouter(newTestHandler(newFakeTasks(), fakeQuota{}, fakeRevealer{}))

	w := do(t, router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{Status: "ok", Port: 8765, Timestamp: fixedNow.UnixMilli()}, resp)
}

func TestSubmitTask(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitErr  error
		wantStatus int
		wantError  string
	}{
		{
			name:       "accepted",
			body:       `{"apiUrl":"https://example.com/api","requestType":"POST","requestBody":{"q":1}}`,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "malformed JSON",
			body:       `{"apiUrl":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request",
		},
		{
			name:       "validation failure",
			body:       `{"apiUrl":""}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request: URL is required",
		},
		{
			name:       "queue full",
			body:       `{"apiUrl":"https://example.com/api"}`,
			submitErr:  fmt.Errorf("%w: queue capacity 1 reached", task.ErrQueueFull),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "Task queue is full",
		},
		{
			name:       "unexpected failure",
			body:       `{"apiUrl":"https://example.com/api"}`,
			submitErr:  errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to submit task",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tasks := newFakeTasks()
			tasks.submitErr = tc.submitErr
			router := setupRouter(newTestHandler(tasks, fakeQuota{}, fakeRevealer{}))

			w := do(t, router, http.MethodPost, "/api/tasks", tc.body)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantError != "" {
				var resp shared.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Contains(t, resp.Error, tc.wantError)
				assert.Empty(t, tasks.List(), "no task recorded")
				return
			}

			var snap domain.Task
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
			assert.Equal(t, "task-1", snap.ID)
			assert.Equal(t, domain.StatusPending, snap.Status)
			assert.Equal(t, "https://example.com/api", snap.Request.APIURL)
			assert.JSONEq(t, `{"q":1}`, string(snap.Request.Body))
		})
	}
}

func TestListAndGetTask(t *testing.T) {
	tasks := newFakeTasks()
	router := setupRouter(newTestHandler(tasks, fakeQuota{}, fakeRevealer{}))

	for i := 0; i < 2; i++ {
		w := do(t, router, http.MethodPost, "/api/tasks", `{"apiUrl":"https://example.com/api"}`)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := do(t, router, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list TaskListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Tasks, 2)
	assert.Equal(t, "task-1", list.Tasks[0].ID)
	assert.Equal(t, "task-2", list.Tasks[1].ID)

	w = do(t, router, http.MethodGet, "/api/tasks/task-2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap domain.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "task-2", snap.ID)

	w = do(t, router, http.MethodGet, "/api/tasks/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Task not found")
}

func TestListTasks_Empty(t *testing.T) {
	router := setupRouter(newTestHandler(newFakeTasks(), fakeQuota{}, fakeRevealer{}))

	w := do(t, router, http.MethodGet, "/api/tasks", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tasks":[]}`, w.Body.String())
}

func TestQuotaStatus(t *testing.T) {
	status := quota.Status{Date: "2024-03-09", Count: 3, Limit: 120, Remaining: 117, MaxBytes: 1024}
	router := setupRouter(newTestHandler(newFakeTasks(), fakeQuota{status: status}, fakeRevealer{}))

	w := do(t, router, http.MethodGet, "/api/quota", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var got quota.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, status, got)

	failing := setupRouter(newTestHandler(newFakeTasks(), fakeQuota{err: domain.ErrPersistence}, fakeRevealer{}))
	w = do(t, failing, http.MethodGet, "/api/quota", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to read quota")
}

func TestReveal(t *testing.T) {
	tests := []struct {
		name       string
		revealer   fakeRevealer
		body       string
		wantStatus int
	}{
		{"inside data root", fakeRevealer{}, `{"path":"/data/task_1/2024-01-15.xlsx"}`, http.StatusOK},
		{"outside data root", fakeRevealer{}, `{"path":"/etc/passwd"}`, http.StatusBadRequest},
		{"missing path", fakeRevealer{}, `{}`, http.StatusBadRequest},
		{"opener failure", fakeRevealer{err: errors.New("no display")}, `{"path":"/data/x"}`, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := setupRouter(newTestHandler(newFakeTasks(), fakeQuota{}, tc.revealer))

			w := do(t, router, http.MethodPost, "/api/reveal", tc.body)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantStatus == http.StatusOK {
				var res reveal.Result
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
				assert.Equal(t, "/data/task_1/2024-01-15.xlsx", res.Path)
				assert.True(t, res.Opened)
			}
		})
	}
}
