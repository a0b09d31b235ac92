package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/breaker"
	"github.com/rohansen856/database-layering/internal/cache"
	"github.com/rohansen856/database-layering/internal/config"
	apierrors "github.com/rohansen856/database-layering/internal/errors"
	"github.com/rohansen856/database-layering/internal/handler"
	"github.com/rohansen856/database-layering/internal/health"
	"github.com/rohansen856/database-layering/internal/metrics"
	"github.com/rohansen856/database-layering/internal/ratelimit"
	"github.com/rohansen856/database-layering/internal/router"
	"github.com/rohansen856/database-layering/internal/service"
	"github.com/rohansen856/database-layering/internal/store"
)

// testStack assembles the full request path over in-memory backends.
type testStack struct {
	server    *Server
	cfg       *config.Config
	mem       map[string]*store.MemoryStore
	queue     *store.MemoryQueue
	events    *store.MemoryEventLog
	readModel *store.MemoryReadModel
	worker    *service.WorkerService
	projector *service.ProjectorService
}

func newTestStack(t *testing.T, mutate func(cfg *config.Config)) *testStack {
	t.Helper()
	logger := zap.NewNop()

	cfg := config.DefaultConfig()
	cfg.Partitions = []config.PartitionConfig{
		{Name: "p0", Region: "us-east", Driver: "memory"},
		{Name: "p1", Region: "eu-west", Driver: "memory"},
	}
	cfg.Auth.Enabled = false
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Backend = "memory"
	cfg.Cache.L2.Enabled = false
	cfg.Events.Enabled = false
	cfg.WriteBuffer.Enabled = false
	cfg.ReadModel.Enabled = false
	cfg.ReadModel.Driver = "memory"
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	promReg := prometheus.NewRegistry()
	m := metrics.NewMetrics(promReg)

	stack := &testStack{cfg: cfg, mem: make(map[string]*store.MemoryStore)}

	backends := make(map[string]store.Store, len(cfg.Partitions))
	partitions := make([]router.Partition, 0, len(cfg.Partitions))
	checker := health.NewChecker(logger)
	for _, p := range cfg.Partitions {
		ms := store.NewMemoryStore()
		stack.mem[p.Name] = ms
		backends[p.Name] = ms
		partitions = append(partitions, router.Partition{Name: p.Name, Region: p.Region, Driver: p.Driver})
		checker.AddPartition(p.Name, ms.Ping)
	}

	rt, err := router.New(router.Mode(cfg.Routing.Mode), partitions, cfg.Routing.DefaultRegion, logger)
	require.NoError(t, err)

	breakers := breaker.NewRegistry(breaker.Config{
		Threshold:     cfg.Breaker.Threshold,
		Cooldown:      cfg.Breaker.Cooldown,
		OnStateChange: m.RecordBreakerTransition,
	}, logger)

	tiered := cache.NewTiered(cache.NewL1(cfg.Cache.L1.MaxEntries, cfg.Cache.L1.TTL, logger), nil, cfg.Cache.L2.TTL, logger)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(store.NewMemoryWindow(), cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, logger)
		checker.AddComponent("rate_limit", limiter.Ping)
	}

	var events store.EventLog
	if cfg.Events.Enabled {
		stack.events = store.NewMemoryEventLog()
		events = stack.events
		checker.AddComponent("events", stack.events.Ping)
	}
	var queue store.Queue
	if cfg.WriteBuffer.Enabled {
		stack.queue = store.NewMemoryQueue()
		queue = stack.queue
		checker.AddComponent("write_buffer", stack.queue.Ping)
	}
	var readModel store.ReadModel
	if cfg.ReadModel.Enabled {
		stack.readModel = store.NewMemoryReadModel()
		readModel = stack.readModel
		checker.AddComponent("read_model", stack.readModel.Ping)
	}

	svc := service.NewStorageService(backends, rt, breakers, tiered, events, queue, readModel,
		cfg.Routing.ReplicationEnabled, m, logger)

	if cfg.WriteBuffer.Enabled {
		stack.worker = service.NewWorkerService(queue, svc, cfg.WriteBuffer.BatchSize, cfg.WriteBuffer.PollInterval, m, logger)
	}
	if cfg.ReadModel.Enabled {
		stack.projector = service.NewProjectorService(events, readModel, cfg.Events.BatchSize, cfg.Events.PollInterval, m, logger)
	}

	handlers := handler.NewHandlers(svc, tiered, limiter, breakers, stack.worker, stack.projector,
		events, checker, apierrors.NewHandler(logger), logger)

	stack.server = NewServer(cfg, handlers, limiter, m, promReg, logger)
	stack.server.SetupRoutes()
	return stack
}

func (s *testStack) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.server.GetHandler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

type writeBody struct {
	Success      bool     `json:"success"`
	Key          string   `json:"key"`
	Partition    string   `json:"partition"`
	ReplicatedTo []string `json:"replicated_to"`
	Cached       bool     `json:"cached"`
	Queued       bool     `json:"queued"`
	EventID      string   `json:"event_id"`
	Message      string   `json:"message"`
}

type readBody struct {
	Success    bool    `json:"success"`
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	CacheHit   bool    `json:"cache_hit"`
	CacheLevel string  `json:"cache_level"`
	Partition  string  `json:"partition"`
	Fallback   bool    `json:"fallback"`
	LatencyMs  float64 `json:"latency_ms"`
	Message    string  `json:"message"`
}

func TestWriteReadRoundTrip(t *testing.T) {
	stack := newTestStack(t, nil)

	rec := stack.do(t, http.MethodPost, "/write", map[string]string{"key": "user:1", "value": "alice"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var wr writeBody
	decodeBody(t, rec, &wr)
	assert.True(t, wr.Success)
	assert.NotEmpty(t, wr.Partition)
	assert.True(t, wr.Cached)
	assert.False(t, wr.Queued)
	assert.Equal(t, "record created", wr.Message)

	rec = stack.do(t, http.MethodPost, "/write", map[string]string{"key": "user:1", "value": "bob"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &wr)
	assert.Equal(t, "record updated", wr.Message)

	rec = stack.do(t, http.MethodGet, "/read/user:1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rd readBody
	decodeBody(t, rec, &rd)
	assert.True(t, rd.Success)
	assert.Equal(t, "bob", rd.Value)
	assert.True(t, rd.CacheHit)
	assert.Equal(t, cache.TierL1, rd.CacheLevel)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestWriteValidation(t *testing.T) {
	stack := newTestStack(t, nil)

	cases := []struct {
		name string
		body interface{}
	}{
		{"missing key", map[string]string{"value": "v"}},
		{"missing value", map[string]string{"key": "k"}},
		{"oversized key", map[string]string{"key": strings.Repeat("k", 256), "value": "v"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := stack.do(t, http.MethodPost, "/write", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp apierrors.ErrorResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, apierrors.ErrorCodeInvalidRequest, resp.ErrorCode)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/write", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	stack.server.GetHandler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadNotFoundIsNormalOutcome(t *testing.T) {
	stack := newTestStack(t, nil)

	rec := stack.do(t, http.MethodGet, "/read/ghost", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var rd readBody
	decodeBody(t, rec, &rd)
	assert.False(t, rd.Success)
	assert.Equal(t, "Key not found", rd.Message)
}

func TestAuthProtectsRecordAndAdminRoutes(t *testing.T) {
	stack := newTestStack(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.APIKey = "test-key"
	})

	rec := stack.do(t, http.MethodPost, "/write", map[string]string{"key": "k", "value": "v"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = stack.do(t, http.MethodPost, "/admin/cache/clear", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	authed := map[string]string{"X-API-Key": "test-key"}
	rec = stack.do(t, http.MethodPost, "/write", map[string]string{"key": "k", "value": "v"}, authed)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = stack.do(t, http.MethodPost, "/admin/cache/clear", nil, authed)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Observability endpoints stay open without a key.
	for _, path := range []string{"/health", "/stats", "/partitions"} {
		rec = stack.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRateLimitEndToEnd(t *testing.T) {
	stack := newTestStack(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.MaxRequests = 2
	})
	client := map[string]string{"X-Client-ID": "tenant-a"}

	for i := 0; i < 2; i++ {
		rec := stack.do(t, http.MethodGet, "/read/ghost", nil, client)
		require.Equal(t, http.StatusNotFound, rec.Code, "missing keys still consume budget")
	}

	rec := stack.do(t, http.MethodGet, "/read/ghost", nil, client)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var resp apierrors.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, apierrors.ErrorCodeRateLimited, resp.ErrorCode)

	// Stats and health are not rate limited.
	rec = stack.do(t, http.MethodGet, "/stats", nil, client)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Resetting the client restores its budget.
	rec = stack.do(t, http.MethodDelete, "/admin/rate-limit/tenant-a", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = stack.do(t, http.MethodGet, "/read/ghost", nil, client)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryServesReadModel(t *testing.T) {
	stack := newTestStack(t, func(cfg *config.Config) {
		cfg.Events.Enabled = true
		cfg.ReadModel.Enabled = true
	})

	rec := stack.do(t, http.MethodPost, "/write", map[string]string{"key": "user:1", "value": "alice"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wr writeBody
	decodeBody(t, rec, &wr)
	assert.NotEmpty(t, wr.EventID)

	// The projection lags until the projector runs.
	rec = stack.do(t, http.MethodGet, "/query/user:1", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	stack.projector.ProjectOnce(context.Background())

	rec = stack.do(t, http.MethodGet, "/query/user:1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var q struct {
		Key        string `json:"key"`
		Value      string `json:"value"`
		WriteCount int64  `json:"write_count"`
		Source     string `json:"source"`
	}
	decodeBody(t, rec, &q)
	assert.Equal(t, "alice", q.Value)
	assert.Equal(t, int64(1), q.WriteCount)
	assert.Equal(t, "read_model", q.Source)
}

func TestQueryWithoutReadModelIsUnavailable(t *testing.T) {
	stack := newTestStack(t, nil)

	rec := stack.do(t, http.MethodGet, "/query/user:1", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp apierrors.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, apierrors.ErrorCodeServiceDown, resp.ErrorCode)
}

func TestBufferedWriteAppliesAfterDrain(t *testing.T) {
	stack := newTestStack(t, func(cfg *config.Config) {
		cfg.WriteBuffer.Enabled = true
	})

	rec := stack.do(t, http.MethodPost, "/write", map[string]string{"key": "user:1", "value": "alice"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var wr writeBody
	decodeBody(t, rec, &wr)
	assert.True(t, wr.Queued)
	assert.Empty(t, wr.Partition)

	// Not yet visible: the write sits in the queue.
	rec = stack.do(t, http.MethodGet, "/read/user:1", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	stack.worker.DrainOnce(context.Background())

	rec = stack.do(t, http.MethodGet, "/read/user:1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rd readBody
	decodeBody(t, rec, &rd)
	assert.Equal(t, "alice", rd.Value)
}

func TestPartitionsEndpoint(t *testing.T) {
	stack := newTestStack(t, nil)

	rec := stack.do(t, http.MethodGet, "/partitions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Mode       string `json:"mode"`
		Count      int    `json:"count"`
		Partitions []struct {
			Name    string `json:"name"`
			Healthy bool   `json:"healthy"`
		} `json:"partitions"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "hash", resp.Mode)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Partitions, 2)
	assert.True(t, resp.Partitions[0].Healthy)
}

func TestStatsEndpoint(t *testing.T) {
	stack := newTestStack(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
	})

	rec := stack.do(t, http.MethodPost, "/write", map[string]string{"key": "k", "value": "v"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = stack.do(t, http.MethodGet, "/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Service struct {
			Writes int64 `json:"writes"`
		} `json:"service"`
		Partitions []struct {
			Name string `json:"name"`
		} `json:"partitions"`
		RateLimit *struct {
			MaxRequests int `json:"max_requests"`
		} `json:"rate_limit"`
		Features struct {
			RateLimit bool `json:"rate_limit"`
			L2Cache   bool `json:"l2_cache"`
		} `json:"features"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, int64(1), resp.Service.Writes)
	assert.Len(t, resp.Partitions, 2)
	require.NotNil(t, resp.RateLimit)
	assert.Equal(t, 100, resp.RateLimit.MaxRequests)
	assert.True(t, resp.Features.RateLimit)
	assert.False(t, resp.Features.L2Cache)
}

func TestHealthEndpoint(t *testing.T) {
	stack := newTestStack(t, nil)

	rec := stack.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report health.Report
	decodeBody(t, rec, &report)
	assert.Equal(t, health.StatusHealthy, report.Status)
	assert.Equal(t, "up", report.Partitions["p0"])
	assert.Equal(t, "up", report.Partitions["p1"])
}

func TestUnknownRoutesReturnJSON(t *testing.T) {
	stack := newTestStack(t, nil)

	rec := stack.do(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp apierrors.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, apierrors.ErrorCodeNotFound, resp.ErrorCode)

	rec = stack.do(t, http.MethodDelete, "/write", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, apierrors.ErrorCodeMethodNotAllowed, resp.ErrorCode)
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	stack := newTestStack(t, nil)

	rec := stack.do(t, http.MethodPost, "/write", map[string]string{"key": "k", "value": "v"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = stack.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "kv_requests_total")
	assert.Contains(t, body, "kv_store_operations_total")
}
