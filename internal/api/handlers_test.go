package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggokuldas06/tds-project1/internal/config"
	"github.com/ggokuldas06/tds-project1/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSubmitter struct {
	err       error
	submitted []*models.TaskRequest
}

func (f *fakeSubmitter) Submit(req *models.TaskRequest) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, req)
	return nil
}

// fakeDedupe mirrors the store contract: a triple is a replay once
// claimed, until Forget releases it.
type fakeDedupe struct {
	seen    map[string]bool
	replay  bool // force MarkSeen to report a replay
	err     error
	calls   int
	forgets int
}

func dedupeTestKey(task string, round int, nonce string) string {
	return fmt.Sprintf("%s:%d:%s", task, round, nonce)
}

func (f *fakeDedupe) MarkSeen(ctx context.Context, task string, round int, nonce string) (bool, error) {
	f.calls++
	if f.err != nil {
		return true, f.err
	}
	if f.replay {
		return false, nil
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := dedupeTestKey(task, round, nonce)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeDedupe) Forget(ctx context.Context, task string, round int, nonce string) error {
	f.forgets++
	delete(f.seen, dedupeTestKey(task, round, nonce))
	return nil
}

func (f *fakeDedupe) Close() error { return nil }

type fakeRunLister struct {
	runs []models.TaskRun
	err  error
}

func (f *fakeRunLister) RunsForTask(ctx context.Context, task string) ([]models.TaskRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.runs, nil
}

func testConfig() *config.Config {
	return &config.Config{
		StudentEmail:       "student@example.com",
		StudentSecret:      "tds-secret",
		RateLimitPerMinute: 600,
	}
}

func newTestServer(cfg *config.Config) (*Server, *fakeSubmitter, *fakeDedupe, *fakeRunLister, *gin.Engine) {
	pool := &fakeSubmitter{}
	dedupe := &fakeDedupe{}
	runs := &fakeRunLister{}
	server := NewServer(cfg, pool, dedupe, runs)
	return server, pool, dedupe, runs, server.Routes()
}

func validBody() string {
	return `{
		"email": "student@example.com",
		"secret": "tds-secret",
		"task": "sum-of-sales-x1z9k",
		"round": 1,
		"nonce": "ab12",
		"brief": "Sum the sales columns from data.csv.",
		"checks": ["page loads"],
		"evaluation_url": "https://eval.example.com/notify"
	}`
}

func postBuild(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/build", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	_, _, _, _, router := newTestServer(testConfig())

	for _, path := range []string{"/", "/health"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, path)

		var resp models.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "1.0.0", resp.Version)
	}
}

func TestBuildRejectsMalformedJSON(t *testing.T) {
	_, pool, _, _, router := newTestServer(testConfig())

	w := postBuild(router, `{"email": `)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["detail"])
	assert.Empty(t, pool.submitted)
}

func TestBuildRejectsMissingFields(t *testing.T) {
	_, pool, _, _, router := newTestServer(testConfig())

	w := postBuild(router, `{"email": "student@example.com", "secret": "tds-secret"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, pool.submitted)
}

func TestBuildRejectsWrongEmail(t *testing.T) {
	_, pool, dedupe, _, router := newTestServer(testConfig())

	body := strings.Replace(validBody(), "student@example.com", "intruder@example.com", 1)
	// Make the secret wrong too; the email check must win.
	body = strings.Replace(body, "tds-secret", "wrong", 1)
	w := postBuild(router, body)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Email does not match configured student email", resp["detail"])

	assert.Empty(t, pool.submitted)
	assert.Zero(t, dedupe.calls, "rejected requests must not touch the dedupe store")
}

func TestBuildRejectsWrongSecret(t *testing.T) {
	_, pool, _, _, router := newTestServer(testConfig())

	body := strings.Replace(validBody(), "tds-secret", "wrong", 1)
	w := postBuild(router, body)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid secret", resp["detail"])
	assert.Empty(t, pool.submitted)
}

func TestBuildAcceptsTask(t *testing.T) {
	_, pool, dedupe, _, router := newTestServer(testConfig())

	w := postBuild(router, validBody())

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, "Task sum-of-sales-x1z9k received and processing started", resp.Message)

	require.Len(t, pool.submitted, 1)
	got := pool.submitted[0]
	assert.Equal(t, "sum-of-sales-x1z9k", got.Task)
	assert.Equal(t, 1, got.Round)
	assert.Equal(t, "ab12", got.Nonce)
	assert.Equal(t, 1, dedupe.calls)
}

func TestBuildAcknowledgesReplay(t *testing.T) {
	_, pool, dedupe, _, router := newTestServer(testConfig())
	dedupe.replay = true

	w := postBuild(router, validBody())

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Contains(t, resp.Message, "already received")

	assert.Empty(t, pool.submitted, "replays must not re-enqueue work")
}

func TestBuildDedupeFailureFailsOpen(t *testing.T) {
	_, pool, dedupe, _, router := newTestServer(testConfig())
	dedupe.err = errors.New("redis gone")

	w := postBuild(router, validBody())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, pool.submitted, 1, "a broken dedupe store must not drop tasks")
}

func TestBuildQueueFull(t *testing.T) {
	_, pool, dedupe, _, router := newTestServer(testConfig())
	pool.err = errors.New("task queue is full")

	w := postBuild(router, validBody())

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Server is at capacity, retry later", resp["detail"])

	assert.Equal(t, 1, dedupe.forgets, "a shed task must release its dedupe claim")
}

func TestBuildRetryAfterShedIsEnqueued(t *testing.T) {
	_, pool, _, _, router := newTestServer(testConfig())
	pool.err = errors.New("task queue is full")

	w := postBuild(router, validBody())
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Empty(t, pool.submitted)

	// Capacity returns; the sender retries the identical delivery. It
	// must be accepted and enqueued, not waved through as a replay.
	pool.err = nil
	w = postBuild(router, validBody())

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Task sum-of-sales-x1z9k received and processing started", resp.Message)

	require.Len(t, pool.submitted, 1)
	assert.Equal(t, "sum-of-sales-x1z9k", pool.submitted[0].Task)
}

func TestTaskRunsEndpoint(t *testing.T) {
	_, _, _, lister, router := newTestServer(testConfig())
	lister.runs = []models.TaskRun{
		{RunID: "r1", Task: "t1", Round: 1, Status: models.RunStatusCompleted},
		{RunID: "r2", Task: "t1", Round: 2, Status: models.RunStatusDeploying},
	}

	req := httptest.NewRequest("GET", "/api/tasks/t1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Task  string           `json:"task"`
		Count int              `json:"count"`
		Runs  []models.TaskRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "t1", resp.Task)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Runs, 2)
	assert.Equal(t, "r1", resp.Runs[0].RunID)
}

func TestTaskRunsStoreError(t *testing.T) {
	_, _, _, lister, router := newTestServer(testConfig())
	lister.err = errors.New("db closed")

	req := httptest.NewRequest("GET", "/api/tasks/t1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsEndpointGated(t *testing.T) {
	cfg := testConfig()
	_, _, _, _, router := newTestServer(cfg)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "metrics should be absent by default")

	cfg.EnableMetrics = true
	_, _, _, _, router = newTestServer(cfg)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "codedeploy_")
}
