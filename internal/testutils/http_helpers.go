package testutils

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/phrazzld/dayreport/internal/api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CleanupResponseBody closes resp's body when the test ends.
func CleanupResponseBody(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp != nil && resp.Body != nil {
		t.Cleanup(func() {
			if err := resp.Body.Close(); err != nil {
				t.Logf("Warning: failed to close response body: %v", err)
			}
		})
	}
}

// DecodeJSONResponse asserts the status code and decodes the body into T.
func DecodeJSONResponse[T any](t *testing.T, resp *http.Response, expectedStatus int) T {
	t.Helper()
	CleanupResponseBody(t, resp)

	require.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out), "failed to decode response body")
	return out
}

// AssertErrorResponse asserts an error response's status code and that its
// message contains expectedErrorMsgPart.
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedErrorMsgPart string) {
	t.Helper()

	errResp := DecodeJSONResponse[shared.ErrorResponse](t, resp, expectedStatus)
	assert.Contains(t, errResp.Error, expectedErrorMsgPart)
}
