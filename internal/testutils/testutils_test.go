package testutils

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/dayreport/internal/api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestSlogHandler(t *testing.T) {
	logger, h := NewTestLogger()

	logger.With("component", "bus").Warn("subscriber failed", "subscriber_id", 2)
	logger.Info("other")

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "bus", entries[0]["component"])
	assert.Equal(t, int64(2), entries[0]["subscriber_id"])
	assert.NotContains(t, entries[1], "component")

	assert.Len(t, h.Find("other"), 1)
	assert.Empty(t, h.Find("missing"))

	h.Clear()
	assert.Empty(t, h.Entries())
}

func TestResponseHelpers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ok")
	require.NoError(t, err)
	body := DecodeJSONResponse[map[string]string](t, resp, http.StatusOK)
	assert.Equal(t, "ok", body["status"])

	resp, err = http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	AssertErrorResponse(t, resp, http.StatusNotFound, "not found")

	resp, err = http.Get(srv.URL + "/ok")
	require.NoError(t, err)
	CleanupResponseBody(t, resp)
	_, err = io.ReadAll(resp.Body)
	assert.NoError(t, err)
}
