package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/dayreport/internal/config"
	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/phrazzld/dayreport/internal/redact"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const maxRedirects = 5

// ErrResponseTooLarge is returned when a page body exceeds the configured cap.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// errInvalidJSON marks a page whose body is not valid JSON.
var errInvalidJSON = errors.New("response is not valid JSON")

// PageFunc is invoked after each successful page with the 1-based page index
// and the number of records accumulated so far.
type PageFunc func(page, total int)

// Fetcher walks a paginated endpoint until it is exhausted.
type Fetcher struct {
	client *http.Client
	cfg    config.FetchConfig
	logger *slog.Logger
}

// New creates a Fetcher. A nil client gets a default one carrying the
// configured per-page timeout and the scheme-restricted redirect policy.
func New(cfg config.FetchConfig, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout:       cfg.Timeout,
			CheckRedirect: checkRedirect,
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "fetcher"),
	}
}

// page is the sniffed content of one response.
type page struct {
	records []domain.Record
	more    bool
}

// FetchAll retrieves every record the endpoint exposes, in page order then
// intra-page order. A failure on the first page is fatal; a failure on any
// later page ends pagination and keeps what was already accumulated.
func (f *Fetcher) FetchAll(ctx context.Context, req domain.Request, onPage PageFunc) ([]domain.Record, error) {
	if err := ValidateURL(req.APIURL); err != nil {
		return nil, err
	}

	log := f.logger.With("url", redact.URL(req.APIURL))

	var all []domain.Record
	for n := 1; ; n++ {
		p, err := f.fetchPage(ctx, req, n)
		if err != nil {
			if n == 1 {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrFetch, ctx.Err())
			}
			log.Warn("page fetch failed, keeping records fetched so far",
				"page", n,
				"records", len(all),
				"error", redact.Error(err))
			break
		}

		all = append(all, p.records...)
		if onPage != nil {
			onPage(n, len(all))
		}

		if !p.more {
			break
		}
		if f.cfg.MaxPages > 0 && n >= f.cfg.MaxPages {
			log.Warn("page limit reached, stopping pagination", "pages", n, "records", len(all))
			break
		}
		if f.cfg.PauseEvery > 0 && n%f.cfg.PauseEvery == 0 {
			if err := sleep(ctx, f.cfg.Pause); err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
			}
		}
	}

	if len(all) == 0 {
		return nil, domain.ErrEmptyResult
	}

	log.Debug("fetch complete", "records", len(all))
	return all, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, req domain.Request, n int) (page, error) {
	httpReq, err := f.buildRequest(ctx, req, n)
	if err != nil {
		return page{}, &domain.FetchError{Page: n, Err: err}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return page{}, &domain.FetchError{Page: n, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return page{}, &domain.FetchError{
			Page:       n,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	limit := f.cfg.MaxResponseBytes
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return page{}, &domain.FetchError{Page: n, Err: err}
	}
	if int64(len(body)) > limit {
		return page{}, &domain.FetchError{Page: n, Err: ErrResponseTooLarge}
	}

	p, err := parsePage(body, f.cfg.PageSize)
	if err != nil {
		return page{}, &domain.FetchError{Page: n, Err: err}
	}
	return p, nil
}

// buildRequest merges the page coordinates into the body template and
// encodes it for the request method.
func (f *Fetcher) buildRequest(ctx context.Context, req domain.Request, n int) (*http.Request, error) {
	params, err := pageParams(req.Body, n, f.cfg.PageSize)
	if err != nil {
		return nil, err
	}

	var httpReq *http.Request
	if strings.EqualFold(req.Method, domain.MethodGet) {
		u, err := url.Parse(req.APIURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		gjson.ParseBytes(params).ForEach(func(k, v gjson.Result) bool {
			q.Set(k.String(), queryValue(v))
			return true
		})
		u.RawQuery = q.Encode()

		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, req.APIURL, bytes.NewReader(params))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpReq.Header.Set("Accept", "application/json")
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}
	return httpReq, nil
}

// pageParams returns the body template with page and pageSize set.
func pageParams(template []byte, n, size int) ([]byte, error) {
	body := bytes.TrimSpace(template)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		body = []byte("{}")
	} else {
		body = bytes.Clone(body)
	}

	out, err := sjson.SetBytes(body, "page", n)
	if err != nil {
		return nil, fmt.Errorf("merge page index: %w", err)
	}
	out, err = sjson.SetBytes(out, "pageSize", size)
	if err != nil {
		return nil, fmt.Errorf("merge page size: %w", err)
	}
	return out, nil
}

// queryValue renders a body member as a query parameter: strings verbatim,
// everything else as its JSON text.
func queryValue(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.String()
	case gjson.Null:
		return ""
	default:
		return v.Raw
	}
}

// parsePage sniffs the response envelope. Shapes are tried in order: bare
// array, object with a "data" array, object with a "list" array, and finally
// any other value as a single record.
func parsePage(body []byte, size int) (page, error) {
	if !gjson.ValidBytes(body) {
		return page{}, errInvalidJSON
	}

	res := gjson.ParseBytes(body)
	switch {
	case res.Type == gjson.Null:
		return page{}, nil
	case res.IsArray():
		recs := arrayRecords(res)
		return page{records: recs, more: len(recs) == size}, nil
	case res.IsObject():
		for _, name := range []string{"data", "list"} {
			arr, ok := member(res, name)
			if !ok || !arr.IsArray() {
				continue
			}
			recs := arrayRecords(arr)
			more := len(recs) == size
			if hasMore, ok := member(res, "hasMore"); ok && hasMore.Type == gjson.False {
				more = false
			}
			return page{records: recs, more: more}, nil
		}
	}

	return page{records: []domain.Record{domain.Record(strings.TrimSpace(res.Raw))}}, nil
}

func member(obj gjson.Result, name string) (gjson.Result, bool) {
	return domain.Record(obj.Raw).Field(name)
}

func arrayRecords(arr gjson.Result) []domain.Record {
	var recs []domain.Record
	arr.ForEach(func(_, v gjson.Result) bool {
		recs = append(recs, domain.Record(v.Raw))
		return true
	})
	return recs
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	switch req.URL.Scheme {
	case "http", "https":
		return nil
	default:
		return domain.Invalidf("redirect to disallowed scheme %q", req.URL.Scheme)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
