package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/analysis-service/internal/analysis"
	"github.com/cuongbtq/analysis-service/internal/api/dto"
	"github.com/cuongbtq/analysis-service/internal/api/handler"
	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/cuongbtq/analysis-service/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	standardKey  = "ak_standard-key"
	unlimitedKey = "ak_unlimited-key"
)

type fakeAuthenticator map[string]*domain.Account

func (f fakeAuthenticator) Authenticate(_ context.Context, rawKey string) (*domain.Account, error) {
	if a, ok := f[rawKey]; ok {
		return a, nil
	}
	return nil, domain.ErrInvalidAPIKey
}

type memoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func (m *memoryJobStore) CreateJob(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memoryJobStore) GetJobByID(_ context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (m *memoryJobStore) UpdateJobStatus(_ context.Context, id, status string, output []domain.Issue, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status, job.Output, job.Error = status, output, errorMsg
	m.jobs[id] = job
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, []byte, string) error { return nil }

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, inputs []string) ([]domain.Issue, error) {
	switch inputs[0] {
	case "01":
		return nil, errors.New("analysis failed")
	case "6060":
		return []domain.Issue{domain.Issue(rawIssue)}, nil
	}
	return []domain.Issue{}, nil
}

const rawIssue = `{"title":"Exception State","address":"0x92","tx_sequence":{"steps":[{"input":"0x6060"}]},"min_gas_used":1021,"sourceMap":"1:2:0"}`

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

type testEnv struct {
	router   *gin.Engine
	service  *analysis.Service
	counters *ratelimit.MemoryStore
	standard *domain.Account
}

func newTestEnv(t *testing.T, throttle *IPThrottle, checkers map[string]handler.HealthChecker) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, dto.RegisterValidators())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &memoryJobStore{jobs: make(map[string]domain.Job)}
	svc := analysis.NewService(store, nopPublisher{}, stubAnalyzer{}, logger)
	counters := ratelimit.NewMemoryStore()

	standard := &domain.Account{ID: "acc-standard", Type: domain.AccountTypeStandard}
	auth := fakeAuthenticator{
		standardKey:  standard,
		unlimitedKey: {ID: "acc-unlimited", Type: domain.AccountTypeUnlimited},
	}

	r := SetupRouter(&handler.Dependencies{
		Logger:         logger,
		ServiceName:    "analysis-api-service",
		Analysis:       svc,
		HealthCheckers: checkers,
	}, Options{
		Authenticator: auth,
		Limiter:       ratelimit.New(counters, ratelimit.DefaultWindows()),
		Throttle:      throttle,
	})

	return &testEnv{router: r, service: svc, counters: counters, standard: standard}
}

func (e *testEnv) do(method, path, key, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestRouter_Authentication(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic " + standardKey},
		{name: "unknown key", header: "Bearer ak_nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/mythril/v1/analysis/"+uuid.NewString(), nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			resp := decode[dto.ErrorResponse](t, w)
			assert.Equal(t, http.StatusUnauthorized, resp.Status)
		})
	}
}

func TestRouter_SubmitAndQuery(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(http.MethodPost, "/mythril/v1/analysis", unlimitedKey, `{"type":"bytecode","contract":"abcc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	submitted := decode[dto.SubmitAnalysisResponse](t, w)
	assert.Equal(t, domain.JobStatusQueued, submitted.Result)
	_, err := uuid.Parse(submitted.UUID)
	require.NoError(t, err)

	w = env.do(http.MethodGet, "/mythril/v1/analysis/"+submitted.UUID, unlimitedKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.StatusResponse{Result: domain.JobStatusQueued, UUID: submitted.UUID}, decode[dto.StatusResponse](t, w))

	w = env.do(http.MethodGet, "/mythril/v1/analysis/"+submitted.UUID+"/issues", unlimitedKey, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Result is not Finished", decode[dto.ErrorResponse](t, w).Message)

	require.NoError(t, env.service.Process(context.Background(), submitted.UUID))

	w = env.do(http.MethodGet, "/mythril/v1/analysis/"+submitted.UUID+"/issues", unlimitedKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRouter_IssuesAreReturnedAsReported(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(http.MethodPost, "/mythril/v1/analysis", unlimitedKey, `{"type":"bytecode","contract":"6060"}`)
	require.Equal(t, http.StatusOK, w.Code)
	id := decode[dto.SubmitAnalysisResponse](t, w).UUID

	require.NoError(t, env.service.Process(context.Background(), id))

	w = env.do(http.MethodGet, "/mythril/v1/analysis/"+id+"/issues", unlimitedKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "["+rawIssue+"]", w.Body.String())
}

func TestRouter_ErrorStatusCarriesMessage(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(http.MethodPost, "/mythril/v1/analysis", unlimitedKey, `{"type":"bytecode","contracts":["01","abcc"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	id := decode[dto.SubmitAnalysisResponse](t, w).UUID

	require.NoError(t, env.service.Process(context.Background(), id))

	w = env.do(http.MethodGet, "/mythril/v1/analysis/"+id, unlimitedKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.StatusResponse{Result: domain.JobStatusError, Message: "analysis failed"}, decode[dto.StatusResponse](t, w))
}

func TestRouter_SubmitValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"type":`},
		{name: "missing type", body: `{"contract":"abcc"}`},
		{name: "odd length bytecode", body: `{"type":"bytecode","contract":"abc"}`},
		{name: "non hex bytecode", body: `{"type":"bytecode","contracts":["abcc","zz"]}`},
		{name: "both contract and contracts", body: `{"type":"bytecode","contract":"abcc","contracts":["01"]}`},
		{name: "neither contract nor contracts", body: `{"type":"bytecode"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/mythril/v1/analysis", unlimitedKey, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRouter_LookupErrors(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(http.MethodGet, "/mythril/v1/analysis/notexist", unlimitedKey, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := uuid.NewString()
	w = env.do(http.MethodGet, "/mythril/v1/analysis/"+id, unlimitedKey, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[dto.ErrorResponse](t, w).Message, id)

	w = env.do(http.MethodGet, "/mythril/v1/analysis/"+id+"/issues", unlimitedKey, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_FiveMinuteLimit(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(http.MethodGet, "/mythril/v1/analysis/notexist", standardKey, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	counters, err := env.counters.Get(context.Background(), env.standard.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counters.FiveMin.Count)

	counters.FiveMin.Count = 10
	env.counters.Set(env.standard.ID, *counters)

	w = env.do(http.MethodGet, "/mythril/v1/analysis/notexist", standardKey, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, domain.WindowFiveMin, w.Header().Get("X-RateLimit-Window"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	counters.FiveMin.Start = counters.FiveMin.Start.Add(-5 * time.Minute)
	env.counters.Set(env.standard.ID, *counters)

	w = env.do(http.MethodGet, "/mythril/v1/analysis/notexist", standardKey, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_UnlimitedAccountIsNotCounted(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	for i := 0; i < 30; i++ {
		w := env.do(http.MethodGet, "/mythril/v1/analysis/notexist", unlimitedKey, "")
		require.Equal(t, http.StatusBadRequest, w.Code)
	}

	counters, err := env.counters.Get(context.Background(), "acc-unlimited")
	require.NoError(t, err)
	assert.Zero(t, counters.OneDay.Count)
}

func TestRouter_Throttle(t *testing.T) {
	env := newTestEnv(t, NewIPThrottle(0.001, 2, time.Minute), nil)

	for i := 0; i < 2; i++ {
		w := env.do(http.MethodGet, "/mythril/v1/analysis/notexist", unlimitedKey, "")
		require.Equal(t, http.StatusBadRequest, w.Code)
	}

	w := env.do(http.MethodGet, "/mythril/v1/analysis/notexist", unlimitedKey, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Window"))
}

func TestRouter_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		env := newTestEnv(t, nil, map[string]handler.HealthChecker{"postgres": stubChecker{}})

		w := env.do(http.MethodGet, "/health", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[dto.HealthResponse](t, w)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "ok", resp.Checks["postgres"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		env := newTestEnv(t, nil, map[string]handler.HealthChecker{
			"postgres": stubChecker{},
			"redis":    stubChecker{err: errors.New("connection refused")},
		})

		w := env.do(http.MethodGet, "/health", "", "")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decode[dto.HealthResponse](t, w)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "connection refused", resp.Checks["redis"])
	})
}

func TestRouter_CORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(http.MethodOptions, "/mythril/v1/analysis", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestIPThrottle_Cleanup(t *testing.T) {
	throttle := NewIPThrottle(1, 1, time.Millisecond)
	assert.True(t, throttle.Allow("10.0.0.1"))
	assert.False(t, throttle.Allow("10.0.0.1"))

	time.Sleep(5 * time.Millisecond)
	throttle.Cleanup()

	assert.Empty(t, throttle.entries)
	assert.True(t, throttle.Allow("10.0.0.1"))
}
