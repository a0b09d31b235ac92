package handler

import (
	"net/http"
	"time"

	"github.com/rohansen856/database-layering/internal/breaker"
	"github.com/rohansen856/database-layering/internal/cache"
	"github.com/rohansen856/database-layering/internal/ratelimit"
	"github.com/rohansen856/database-layering/internal/service"
)

type queueStats struct {
	Depth int64 `json:"depth"`
	service.WorkerStats
}

type eventStats struct {
	StreamLength int64                   `json:"stream_length"`
	Projector    *service.ProjectorStats `json:"projector,omitempty"`
}

type featureFlags struct {
	Buffered  bool `json:"buffered_writes"`
	Events    bool `json:"events"`
	ReadModel bool `json:"read_model"`
	RateLimit bool `json:"rate_limit"`
	L2Cache   bool `json:"l2_cache"`
}

type statsResponse struct {
	Service    service.Stats               `json:"service"`
	Partitions []service.PartitionStatus   `json:"partitions"`
	Cache      cache.Stats                 `json:"cache"`
	RateLimit  *ratelimit.Stats            `json:"rate_limit,omitempty"`
	Breakers   map[string]breaker.Snapshot `json:"breakers"`
	Queue      *queueStats                 `json:"queue,omitempty"`
	Events     *eventStats                 `json:"events,omitempty"`
	Features   featureFlags                `json:"features"`
	Timestamp  time.Time                   `json:"timestamp"`
}

// Stats handles GET /stats requests.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := statsResponse{
		Service:    h.storage.Stats(),
		Partitions: h.storage.PartitionStatuses(ctx),
		Cache:      h.cache.Stats(ctx),
		Breakers:   h.breakers.Snapshots(),
		Features: featureFlags{
			Buffered:  h.storage.Buffered(),
			Events:    h.storage.EventsEnabled(),
			ReadModel: h.storage.ReadModelEnabled(),
			RateLimit: h.limiter != nil,
			L2Cache:   h.cache.L2Enabled(),
		},
		Timestamp: time.Now().UTC(),
	}

	if h.limiter != nil {
		limiterStats := h.limiter.Stats()
		resp.RateLimit = &limiterStats
	}
	if h.worker != nil {
		resp.Queue = &queueStats{
			Depth:       h.storage.QueueDepth(ctx),
			WorkerStats: h.worker.Stats(),
		}
	}
	if h.events != nil {
		events := &eventStats{}
		if n, err := h.events.Len(ctx); err == nil {
			events.StreamLength = n
		}
		if h.projector != nil {
			projStats := h.projector.Stats()
			events.Projector = &projStats
		}
		resp.Events = events
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

type partitionInfo struct {
	Name    string `json:"name"`
	Region  string `json:"region"`
	Driver  string `json:"driver"`
	Healthy bool   `json:"healthy"`
}

type partitionsResponse struct {
	Mode          string          `json:"mode"`
	DefaultRegion string          `json:"default_region,omitempty"`
	Count         int             `json:"count"`
	Partitions    []partitionInfo `json:"partitions"`
}

// Partitions handles GET /partitions requests.
func (h *Handlers) Partitions(w http.ResponseWriter, r *http.Request) {
	statuses := h.storage.PartitionStatuses(r.Context())

	infos := make([]partitionInfo, 0, len(statuses))
	for _, s := range statuses {
		infos = append(infos, partitionInfo{
			Name:    s.Name,
			Region:  s.Region,
			Driver:  s.Driver,
			Healthy: s.Healthy,
		})
	}

	h.writeJSONResponse(w, http.StatusOK, partitionsResponse{
		Mode:          string(h.storage.RoutingMode()),
		DefaultRegion: h.storage.HomeRegion(),
		Count:         len(infos),
		Partitions:    infos,
	})
}
