package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/dayreport/internal/config"
	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func testConfig() config.FetchConfig {
	return config.FetchConfig{
		PageSize:         2,
		PauseEvery:       0,
		Timeout:          5 * time.Second,
		MaxResponseBytes: 1 << 20,
		MaxPages:         100,
	}
}

func newTestFetcher(cfg config.FetchConfig) *Fetcher {
	return New(cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// pagedServer serves fixed JSON bodies by page index read from the POST body.
func pagedServer(t *testing.T, pages map[int]string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		n := int(gjson.GetBytes(body, "page").Int())
		payload, ok := pages[n]
		if !ok {
			http.Error(w, "no such page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetchAll_Pagination(t *testing.T) {
	t.Parallel()

	srv, hits := pagedServer(t, map[int]string{
		1: `{"data":[{"id":1},{"id":2}]}`,
		2: `{"data":[{"id":3},{"id":4}]}`,
		3: `{"data":[{"id":5}]}`,
	})

	var progress []int
	recs, err := newTestFetcher(testConfig()).FetchAll(context.Background(),
		domain.Request{APIURL: srv.URL, Method: domain.MethodPost},
		func(page, total int) { progress = append(progress, total) })
	require.NoError(t, err)

	require.Len(t, recs, 5)
	for i, r := range recs {
		assert.Equal(t, int64(i+1), r.Result().Get("id").Int())
	}
	assert.Equal(t, []int{2, 4, 5}, progress)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestFetchAll_LaterPageFailureTruncates(t *testing.T) {
	t.Parallel()

	srv, _ := pagedServer(t, map[int]string{
		1: `[{"id":1},{"id":2}]`,
		2: `[{"id":3},{"id":4}]`,
	})

	recs, err := newTestFetcher(testConfig()).FetchAll(context.Background(),
		domain.Request{APIURL: srv.URL}, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 4)
}

func TestFetchAll_FirstPageFailureIsFatal(t *testing.T) {
	t.Parallel()

	srv, _ := pagedServer(t, map[int]string{})

	_, err := newTestFetcher(testConfig()).FetchAll(context.Background(),
		domain.Request{APIURL: srv.URL}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, fe.Page)
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
}

func TestFetchAll_InvalidJSONOnFirstPage(t *testing.T) {
	t.Parallel()

	srv, _ := pagedServer(t, map[int]string{1: `{"data": [`})

	_, err := newTestFetcher(testConfig()).FetchAll(context.Background(),
		domain.Request{APIURL: srv.URL}, nil)
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestFetchAll_EmptyResult(t *testing.T) {
	t.Parallel()

	for name, payload := range map[string]string{
		"empty array": `[]`,
		"empty data":  `{"data":[]}`,
		"null":        `null`,
	} {
		payload := payload
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv, _ := pagedServer(t, map[int]string{1: payload})
			_, err := newTestFetcher(testConfig()).FetchAll(context.Background(),
				domain.Request{APIURL: srv.URL}, nil)
			assert.ErrorIs(t, err, domain.ErrEmptyResult)
		})
	}
}

func TestFetchAll_HasMoreFalseStops(t *testing.T) {
	t.Parallel()

	srv, hits := pagedServer(t, map[int]string{
		1: `{"list":[{"id":1},{"id":2}],"hasMore":false}`,
		2: `{"list":[{"id":3}]}`,
	})

	recs, err := newTestFetcher(testConfig()).FetchAll(context.Background(),
		domain.Request{APIURL: srv.URL}, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetchAll_ResponseTooLarge(t *testing.T) {
	t.Parallel()

	big := `[` + strings.Repeat(`{"v":"xxxxxxxxxx"},`, 100) + `{"v":1}]`
	srv, _ := pagedServer(t, map[int]string{1: big})

	cfg := testConfig()
	cfg.MaxResponseBytes = 256

	_, err := newTestFetcher(cfg).FetchAll(context.Background(),
		domain.Request{APIURL: srv.URL}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResponseTooLarge)
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestFetchAll_MaxPages(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.WriteString(w, `[{"id":1},{"id":2}]`)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.MaxPages = 3

	recs, err := newTestFetcher(cfg).FetchAll(context.Background(),
		domain.Request{APIURL: srv.URL}, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 6)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchAll_PostBodyMergesTemplate(t *testing.T) {
	t.Parallel()

	var (
		gotBody   []byte
		gotHeader string
		gotType   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Get("X-Api-Key")
		gotType = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, `{"id":1}`)
	}))
	t.Cleanup(srv.Close)

	req := domain.Request{
		APIURL:  srv.URL,
		Method:  domain.MethodPost,
		Body:    json.RawMessage(`{"filter":{"status":"open"},"page":99}`),
		Headers: map[string]string{"X-Api-Key": "k-123"},
	}
	recs, err := newTestFetcher(testConfig()).FetchAll(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "open", gjson.GetBytes(gotBody, "filter.status").String())
	assert.Equal(t, int64(1), gjson.GetBytes(gotBody, "page").Int())
	assert.Equal(t, int64(2), gjson.GetBytes(gotBody, "pageSize").Int())
	assert.Equal(t, "k-123", gotHeader)
	assert.Equal(t, "application/json", gotType)
}

func TestFetchAll_GetEncodesQuery(t *testing.T) {
	t.Parallel()

	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		query = r.URL.Query()
		_, _ = io.WriteString(w, `[{"id":1}]`)
	}))
	t.Cleanup(srv.Close)

	req := domain.Request{
		APIURL: srv.URL + "/items?fixed=yes",
		Method: domain.MethodGet,
		Body:   json.RawMessage(`{"q":"abc","ids":[1,2],"active":true}`),
	}
	_, err := newTestFetcher(testConfig()).FetchAll(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"yes"}, query["fixed"])
	assert.Equal(t, []string{"abc"}, query["q"])
	assert.Equal(t, []string{"[1,2]"}, query["ids"])
	assert.Equal(t, []string{"true"}, query["active"])
	assert.Equal(t, []string{"1"}, query["page"])
	assert.Equal(t, []string{"2"}, query["pageSize"])
}

func TestFetchAll_PausesEveryNPages(t *testing.T) {
	t.Parallel()

	srv, _ := pagedServer(t, map[int]string{
		1: `[{"id":1},{"id":2}]`,
		2: `[{"id":3}]`,
	})

	cfg := testConfig()
	cfg.PauseEvery = 1
	cfg.Pause = 50 * time.Millisecond

	start := time.Now()
	recs, err := newTestFetcher(cfg).FetchAll(context.Background(),
		domain.Request{APIURL: srv.URL}, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFetchAll_CancelledDuringPause(t *testing.T) {
	t.Parallel()

	srv, _ := pagedServer(t, map[int]string{
		1: `[{"id":1},{"id":2}]`,
		2: `[{"id":3}]`,
	})

	cfg := testConfig()
	cfg.PauseEvery = 1
	cfg.Pause = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestFetcher(cfg).FetchAll(ctx, domain.Request{APIURL: srv.URL}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchAll_InvalidURLIssuesNoRequest(t *testing.T) {
	t.Parallel()

	_, err := newTestFetcher(testConfig()).FetchAll(context.Background(),
		domain.Request{APIURL: "file:///etc/passwd"}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFetchAll_RedirectToDisallowedScheme(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "ftp://example.com/data", http.StatusFound)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestFetcher(testConfig()).FetchAll(context.Background(),
		domain.Request{APIURL: srv.URL, Method: domain.MethodGet}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestParsePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantRecs []string
		wantMore bool
		wantErr  bool
	}{
		{name: "bare array full", body: `[1,2]`, wantRecs: []string{"1", "2"}, wantMore: true},
		{name: "bare array short", body: `[1]`, wantRecs: []string{"1"}},
		{name: "data array", body: `{"data":[{"a":1},{"a":2}],"total":9}`, wantRecs: []string{`{"a":1}`, `{"a":2}`}, wantMore: true},
		{name: "list array", body: `{"list":[{"a":1}]}`, wantRecs: []string{`{"a":1}`}},
		{name: "data before list", body: `{"list":[1],"data":[2]}`, wantRecs: []string{"2"}},
		{name: "data not array falls back to list", body: `{"data":{"x":1},"list":[3]}`, wantRecs: []string{"3"}},
		{name: "has more false", body: `{"data":[1,2],"hasMore":false}`, wantRecs: []string{"1", "2"}},
		{name: "single object", body: `{"id":7}`, wantRecs: []string{`{"id":7}`}},
		{name: "single scalar", body: `"hello"`, wantRecs: []string{`"hello"`}},
		{name: "null", body: `null`},
		{name: "invalid", body: `{`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := parsePage([]byte(tc.body), 2)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got := make([]string, 0, len(p.records))
			for _, r := range p.records {
				got = append(got, string(r))
			}
			if tc.wantRecs == nil {
				tc.wantRecs = []string{}
			}
			assert.Equal(t, tc.wantRecs, got)
			assert.Equal(t, tc.wantMore, p.more)
		})
	}
}

func TestCheckRedirectLimit(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "https://example.com/next", nil)
	via := make([]*http.Request, maxRedirects)
	err := checkRedirect(req, via)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), fmt.Sprintf("%d redirects", maxRedirects))
}
