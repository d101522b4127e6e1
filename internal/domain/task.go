package domain

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/phrazzld/dayreport/internal/redact"
)

// Status represents the lifecycle state of a task.
type Status string

// Possible task status values
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether the state machine allows s -> to.
// A processing task may report progress without changing state.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusProcessing || to == StatusError
	case StatusProcessing:
		return to == StatusProcessing || to == StatusCompleted || to == StatusError
	default:
		return false
	}
}

// HTTP methods accepted for source endpoints.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Request is the immutable snapshot of a caller's submission. The
// json_object, header_name and header_value rules are registered by the
// fetch package's validator.
type Request struct {
	APIURL  string            `json:"apiUrl" validate:"required"`
	Method  string            `json:"requestType" validate:"omitempty,oneof=GET POST"`
	Body    json.RawMessage   `json:"requestBody,omitempty" validate:"omitempty,json_object"`
	Headers map[string]string `json:"headers,omitempty" validate:"omitempty,dive,keys,header_name,endkeys,header_value"`
}

// Clone returns a deep copy of the request.
func (r Request) Clone() Request {
	return Request{
		APIURL:  r.APIURL,
		Method:  r.Method,
		Body:    bytes.Clone(r.Body),
		Headers: maps.Clone(r.Headers),
	}
}

// Task is one unit of work. It is owned by the task registry; every other
// component sees copies produced by Snapshot.
type Task struct {
	ID            string    `json:"id"`
	Status        Status    `json:"status"`
	Progress      int       `json:"progress"`
	Request       Request   `json:"request"`
	RecordCount   int       `json:"recordCount"`
	Artifacts     []string  `json:"artifacts,omitempty"`
	SkippedDays   []string  `json:"skippedDays,omitempty"`
	ResultDir     string    `json:"resultDir,omitempty"`
	ResultSummary string    `json:"resultSummary,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewTask creates a pending task for the given request.
func NewTask(id string, req Request, now time.Time) *Task {
	return &Task{
		ID:        id,
		Status:    StatusPending,
		Request:   req.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Snapshot returns an independent copy safe to hand to other goroutines.
// Credentials in the request URL, headers and body template are masked.
func (t *Task) Snapshot() Task {
	s := *t
	s.Request = t.Request.Clone()
	s.Request.APIURL = redact.URL(t.Request.APIURL)
	if len(t.Request.Body) > 0 {
		s.Request.Body = redact.JSON(t.Request.Body)
	}
	s.Request.Headers = redact.Headers(t.Request.Headers)
	s.Artifacts = slices.Clone(t.Artifacts)
	s.SkippedDays = slices.Clone(t.SkippedDays)
	return s
}
