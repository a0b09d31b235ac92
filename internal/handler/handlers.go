// Package handler provides HTTP request handlers for the storage service.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/breaker"
	"github.com/rohansen856/database-layering/internal/cache"
	apierrors "github.com/rohansen856/database-layering/internal/errors"
	"github.com/rohansen856/database-layering/internal/health"
	"github.com/rohansen856/database-layering/internal/ratelimit"
	"github.com/rohansen856/database-layering/internal/service"
	"github.com/rohansen856/database-layering/internal/store"
)

// maxKeyLength matches the key column width of the partition stores.
const maxKeyLength = 255

// Handlers contains all HTTP handlers and their dependencies. The limiter,
// worker, projector and events fields are nil when the matching feature is
// disabled.
type Handlers struct {
	storage      *service.StorageService
	cache        *cache.Tiered
	limiter      *ratelimit.Limiter
	breakers     *breaker.Registry
	worker       *service.WorkerService
	projector    *service.ProjectorService
	events       store.EventLog
	checker      *health.Checker
	errorHandler *apierrors.Handler
	logger       *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	storage *service.StorageService,
	tiered *cache.Tiered,
	limiter *ratelimit.Limiter,
	breakers *breaker.Registry,
	worker *service.WorkerService,
	projector *service.ProjectorService,
	events store.EventLog,
	checker *health.Checker,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		storage:      storage,
		cache:        tiered,
		limiter:      limiter,
		breakers:     breakers,
		worker:       worker,
		projector:    projector,
		events:       events,
		checker:      checker,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

type writeRequest struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Region string `json:"region,omitempty"`
}

type writeResponse struct {
	Success      bool     `json:"success"`
	Key          string   `json:"key"`
	Partition    string   `json:"partition,omitempty"`
	ReplicatedTo []string `json:"replicated_to,omitempty"`
	Cached       bool     `json:"cached"`
	Queued       bool     `json:"queued"`
	EventID      string   `json:"event_id,omitempty"`
	Message      string   `json:"message"`
}

// Write handles POST /write requests.
func (h *Handlers) Write(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body", requestID)
		return
	}
	if req.Key == "" {
		h.errorHandler.WriteValidationError(w, "key is required", requestID)
		return
	}
	if len(req.Key) > maxKeyLength {
		h.errorHandler.WriteValidationError(w, "key must not exceed 255 bytes", requestID)
		return
	}
	if req.Value == "" {
		h.errorHandler.WriteValidationError(w, "value is required", requestID)
		return
	}

	region := req.Region
	if hdr := r.Header.Get("X-Region"); hdr != "" {
		region = hdr
	}

	res, err := h.storage.Write(r.Context(), req.Key, req.Value, region)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := writeResponse{
		Success:      true,
		Key:          res.Key,
		Partition:    res.Partition,
		ReplicatedTo: res.ReplicatedTo,
		Cached:       res.Cached,
		Queued:       res.Queued,
		EventID:      res.EventID,
	}
	switch {
	case res.Queued:
		resp.Message = "write queued"
	case res.Created:
		resp.Message = "record created"
	default:
		resp.Message = "record updated"
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

type readResponse struct {
	Success    bool       `json:"success"`
	Key        string     `json:"key"`
	Value      string     `json:"value,omitempty"`
	CacheHit   bool       `json:"cache_hit"`
	CacheLevel string     `json:"cache_level,omitempty"`
	Partition  string     `json:"partition,omitempty"`
	Fallback   bool       `json:"fallback,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	LatencyMs  float64    `json:"latency_ms"`
	Message    string     `json:"message,omitempty"`
}

// Read handles GET /read/{key} requests.
func (h *Handlers) Read(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key := mux.Vars(r)["key"]

	res, err := h.storage.Read(r.Context(), key, r.Header.Get("X-Region"))
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		// An absent key is a normal outcome, not a failure.
		if errors.Is(err, store.ErrNotFound) {
			h.logger.Debug("key not found", zap.String("key", key))
			h.writeJSONResponse(w, http.StatusNotFound, readResponse{
				Success:   false,
				Key:       key,
				LatencyMs: latencyMs,
				Message:   "Key not found",
			})
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := readResponse{
		Success:    true,
		Key:        res.Key,
		Value:      res.Value,
		CacheHit:   res.CacheHit,
		CacheLevel: res.CacheLevel,
		Partition:  res.Partition,
		Fallback:   res.Fallback,
		LatencyMs:  latencyMs,
	}
	if !res.CreatedAt.IsZero() {
		createdAt := res.CreatedAt
		resp.CreatedAt = &createdAt
	}
	if !res.UpdatedAt.IsZero() {
		updatedAt := res.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

type queryResponse struct {
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	WriteCount int64     `json:"write_count"`
	UpdatedAt  time.Time `json:"updated_at"`
	Source     string    `json:"source"`
}

// Query handles GET /query/{key} requests against the read model.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	key := mux.Vars(r)["key"]

	rec, err := h.storage.Query(r.Context(), key)
	if err != nil {
		if errors.Is(err, service.ErrReadModelDisabled) {
			h.errorHandler.WriteServiceUnavailable(w, "read model disabled", requestID)
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, queryResponse{
		Key:        rec.Key,
		Value:      rec.Value,
		WriteCount: rec.WriteCount,
		UpdatedAt:  rec.UpdatedAt,
		Source:     "read_model",
	})
}

// Health handles GET /health requests. Degraded still answers 200; only a
// service with no reachable partition answers 503.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Check(r.Context())
	h.writeJSONResponse(w, health.HTTPStatus(report), report)
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
