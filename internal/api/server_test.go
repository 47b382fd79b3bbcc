package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/rentwatch/internal/orchestrator"
	"github.com/jmylchreest/rentwatch/internal/store"
	"github.com/jmylchreest/rentwatch/pkg/listing"
)

type fakeRunner struct {
	mu       sync.Mutex
	result   orchestrator.RunResult
	gotURL   string
	gotModel string
	counts   map[listing.Strategy]int64
	history  []orchestrator.ScrapeAttemptRecord
	stopped  bool
}

func (f *fakeRunner) Run(_ context.Context, indexURL, model string) orchestrator.RunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotURL, f.gotModel = indexURL, model
	return f.result
}

func (f *fakeRunner) ProcessedCount(s listing.Strategy) int64 { return f.counts[s] }
func (f *fakeRunner) ResetProcessedCount(s listing.Strategy)   { f.counts[s] = 0 }
func (f *fakeRunner) History() []orchestrator.ScrapeAttemptRecord {
	return f.history
}
func (f *fakeRunner) RequestStop()        { f.stopped = true }
func (f *fakeRunner) ClearStop()          { f.stopped = false }
func (f *fakeRunner) StopRequested() bool { return f.stopped }

type testServer struct {
	*httptest.Server
	store  *store.Memory
	runner *fakeRunner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "rentwatch_test_total", Help: "test"}))

	ts := &testServer{
		store: store.NewMemory(),
		runner: &fakeRunner{
			result: orchestrator.RunResult{Status: orchestrator.StatusSuccess},
			counts: map[listing.Strategy]int64{listing.StrategyAI: 4, listing.StrategyManual: 9},
		},
	}
	srv := New(Options{Store: ts.store, Runner: ts.runner, Gatherer: reg})
	ts.Server = httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

const listingBody = `{"url":"https://wolfnieruchomosci.gratka.pl/ob/1","title":"Dom","rent":4500,"area":120}`

func TestListings_CreateGetList(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/listings", listingBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created listing.Listing
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, 4500, *created.Rent)

	resp, body = ts.do(t, http.MethodGet, "/listings/"+itoa(created.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got listing.Listing
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, created, got)

	resp, body = ts.do(t, http.MethodGet, "/listings?url=https://wolfnieruchomosci.gratka.pl/ob/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found []listing.Listing
	require.NoError(t, json.Unmarshal(body, &found))
	assert.Len(t, found, 1)

	resp, body = ts.do(t, http.MethodGet, "/listings?url=https://example.com/none", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestListings_DuplicateURLConflict(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/listings", listingBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/listings", listingBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "already exists")
}

func TestListings_Invalid(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"url":`},
		{"missing url", `{"title":"Dom"}`},
		{"relative url", `{"url":"/ob/1"}`},
		{"negative rent", `{"url":"https://example.com/ob/1","rent":-5}`},
		{"unknown field", `{"url":"https://example.com/ob/1","price":5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodPost, "/listings", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
		})
	}
}

func TestListings_UpdateAndNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/listings", listingBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created listing.Listing
	require.NoError(t, json.Unmarshal(body, &created))

	update := `{"url":"https://wolfnieruchomosci.gratka.pl/ob/1","rent":5000,"manual_elapsed_time":0.7}`
	resp, body = ts.do(t, http.MethodPut, "/listings/"+itoa(created.ID), update)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated listing.Listing
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, 5000, *updated.Rent)
	assert.Equal(t, 0.7, *updated.ManualElapsedTime)

	resp, _ = ts.do(t, http.MethodPut, "/listings/999", update)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/listings/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/listings/abc", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScrape_PassesRequestToRunner(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.result = orchestrator.RunResult{
		Status:   orchestrator.StatusSuccess,
		IndexURL: "https://example.com/index",
		Model:    "gpt-4o",
		Combined: []listing.Scraped{{URL: "https://example.com/ob/1", Strategy: listing.StrategyAI}},
	}

	resp, body := ts.do(t, http.MethodPost, "/scrape", `{"url":"https://example.com/index","model":"gpt-4o"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "https://example.com/index", ts.runner.gotURL)
	assert.Equal(t, "gpt-4o", ts.runner.gotModel)

	var res orchestrator.RunResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, orchestrator.StatusSuccess, res.Status)
	assert.Len(t, res.Combined, 1)
}

func TestScrape_EmptyBodyUsesDefaults(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/scrape", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, ts.runner.gotURL)
	assert.Empty(t, ts.runner.gotModel)
}

func TestScrape_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		result orchestrator.RunResult
		want   int
	}{
		{"in progress", orchestrator.RunResult{Status: orchestrator.StatusError, Err: orchestrator.ErrRunInProgress}, http.StatusConflict},
		{"cancelled", orchestrator.RunResult{Status: orchestrator.StatusCancelled, Err: orchestrator.ErrStopRequested}, http.StatusConflict},
		{"failed", orchestrator.RunResult{Status: orchestrator.StatusError, Error: "discover: fetch failed"}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.runner.result = tt.result
			resp, _ := ts.do(t, http.MethodPost, "/scrape", `{}`)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestScrape_InvalidURL(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, http.MethodPost, "/scrape", `{"url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCounters(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/scrape/counters/manual", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"strategy":"manual","processed":9}`, string(body))

	resp, body = ts.do(t, http.MethodDelete, "/scrape/counters/ai", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"strategy":"ai","processed":0}`, string(body))
	assert.Equal(t, int64(9), ts.runner.counts[listing.StrategyManual])

	resp, _ = ts.do(t, http.MethodGet, "/scrape/counters/robot", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistory_EmptyIsArray(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, http.MethodGet, "/scrape/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestStopAndResume(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/scrape/stop", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"stop_requested":true}`, string(body))
	assert.True(t, ts.runner.stopped)

	resp, body = ts.do(t, http.MethodDelete, "/scrape/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"stop_requested":false}`, string(body))
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "rentwatch_test_total")
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, http.MethodDelete, "/listings", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Contains(t, string(body), "error")
}

func TestRemoteStoreAgainstServer(t *testing.T) {
	ts := newTestServer(t)
	remote := store.NewRemote(store.RemoteConfig{BaseURL: ts.URL})
	ctx := context.Background()

	created, err := remote.Create(ctx, listing.Listing{URL: "https://example.com/ob/7", Rent: listing.Ptr(3100)})
	require.NoError(t, err)

	_, err = remote.Create(ctx, listing.Listing{URL: "https://example.com/ob/7"})
	assert.ErrorIs(t, err, store.ErrDuplicateURL)

	found, err := remote.FindByURL(ctx, "https://example.com/ob/7")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = remote.Get(ctx, 404)
	assert.ErrorIs(t, err, store.ErrNotFound)

	stored, err := ts.store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3100, *stored.Rent)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
