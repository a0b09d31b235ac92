package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rohansen856/database-layering/internal/breaker"
	"github.com/rohansen856/database-layering/internal/cache"
	"github.com/rohansen856/database-layering/internal/metrics"
	"github.com/rohansen856/database-layering/internal/model"
	"github.com/rohansen856/database-layering/internal/router"
	"github.com/rohansen856/database-layering/internal/store"
)

// ErrReadModelDisabled is returned by Query when no read model is configured.
var ErrReadModelDisabled = errors.New("read model disabled")

// WriteResult describes the outcome of a write operation
type WriteResult struct {
	Key          string
	Partition    string
	ReplicatedTo []string
	Cached       bool
	Queued       bool
	Created      bool
	EventID      string
}

// ReadResult describes the outcome of a read operation
type ReadResult struct {
	Key        string
	Value      string
	CacheHit   bool
	CacheLevel string
	Partition  string
	Fallback   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PartitionStatus is a point-in-time view of one partition backend
type PartitionStatus struct {
	Name    string          `json:"name"`
	Region  string          `json:"region"`
	Driver  string          `json:"driver"`
	Healthy bool            `json:"healthy"`
	Records int64           `json:"records"`
	Pool    store.PoolStats `json:"pool"`
}

// Stats are cumulative counters for the storage service
type Stats struct {
	Writes        int64 `json:"writes"`
	Reads         int64 `json:"reads"`
	QueuedWrites  int64 `json:"queued_writes"`
	FallbackReads int64 `json:"fallback_reads"`
}

// StorageService coordinates partition stores, the tiered cache, circuit
// breakers and the optional event log behind a single write/read API.
type StorageService struct {
	backends  map[string]store.Store
	router    *router.Router
	breakers  *breaker.Registry
	cache     *cache.Tiered
	events    store.EventLog
	queue     store.Queue
	readModel store.ReadModel
	replicate bool
	metrics   *metrics.Metrics
	logger    *zap.Logger

	writes        atomic.Int64
	reads         atomic.Int64
	queuedWrites  atomic.Int64
	fallbackReads atomic.Int64
}

// NewStorageService creates a new storage service. events, queue and
// readModel may be nil when the corresponding feature is disabled; a nil
// queue means writes go straight to durable storage.
func NewStorageService(
	backends map[string]store.Store,
	rt *router.Router,
	breakers *breaker.Registry,
	tiered *cache.Tiered,
	events store.EventLog,
	queue store.Queue,
	readModel store.ReadModel,
	replicate bool,
	m *metrics.Metrics,
	logger *zap.Logger,
) *StorageService {
	return &StorageService{
		backends:  backends,
		router:    rt,
		breakers:  breakers,
		cache:     tiered,
		events:    events,
		queue:     queue,
		readModel: readModel,
		replicate: replicate,
		metrics:   m,
		logger:    logger,
	}
}

// Write stores a key/value pair. In buffered mode the write is queued and
// applied asynchronously; otherwise it is applied immediately.
func (s *StorageService) Write(ctx context.Context, key, value, regionHint string) (WriteResult, error) {
	if s.queue != nil {
		return s.enqueue(ctx, key, value)
	}
	return s.Apply(ctx, key, value, regionHint)
}

func (s *StorageService) enqueue(ctx context.Context, key, value string) (WriteResult, error) {
	item := model.QueuedWrite{
		Key:        key,
		Value:      value,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, item); err != nil {
		return WriteResult{}, fmt.Errorf("enqueue write: %w", err)
	}

	// Drop any cached copy; readers fall through to storage until the
	// worker applies the queued write.
	s.cache.Invalidate(ctx, key)

	s.queuedWrites.Add(1)
	if depth, err := s.queue.Len(ctx); err == nil {
		s.metrics.UpdateQueueDepth(depth)
	}
	s.logger.Debug("write queued", zap.String("key", key))
	return WriteResult{Key: key, Queued: true}, nil
}

// Apply writes a key/value pair to durable storage, bypassing the write
// buffer. It routes to the primary partition, fans out replication, refreshes
// the cache and publishes a record event when the event log is enabled.
func (s *StorageService) Apply(ctx context.Context, key, value, regionHint string) (WriteResult, error) {
	primary, _ := s.router.Primary(key, regionHint)
	backend, ok := s.backends[primary.Name]
	if !ok {
		return WriteResult{}, fmt.Errorf("no backend for partition %q", primary.Name)
	}

	var rec model.Record
	var created bool
	br := s.breakers.Get("partition:" + primary.Name)

	start := time.Now()
	err := br.Call(ctx, func(ctx context.Context) error {
		var putErr error
		rec, created, putErr = backend.Put(ctx, key, value)
		return putErr
	})
	s.metrics.RecordStoreOperation(primary.Name, "put", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return WriteResult{}, err
	}

	s.cache.Populate(ctx, key, rec)

	result := WriteResult{
		Key:       key,
		Partition: primary.Name,
		Cached:    true,
		Created:   created,
	}

	if s.replicate {
		result.ReplicatedTo = s.replicateRecord(ctx, primary.Name, key, value)
	}

	if s.events != nil {
		eventType := model.EventRecordUpdated
		if created {
			eventType = model.EventRecordCreated
		}
		eventID, err := s.events.Append(ctx, eventType, key, value)
		if err != nil {
			return WriteResult{}, fmt.Errorf("append event: %w", err)
		}
		result.EventID = eventID
		s.metrics.RecordEventPublished(string(eventType))
	}

	s.writes.Add(1)
	s.logger.Debug("write applied",
		zap.String("key", key),
		zap.String("partition", primary.Name),
		zap.Bool("created", created),
		zap.Strings("replicated_to", result.ReplicatedTo))
	return result, nil
}

// replicateRecord copies the write to every other partition. Failures are
// logged and skipped; the returned slice names only the partitions that
// acknowledged the copy.
func (s *StorageService) replicateRecord(ctx context.Context, primaryName, key, value string) []string {
	targets := s.router.ReplicaTargets(primaryName)
	if len(targets) == 0 {
		return nil
	}

	var mu sync.Mutex
	replicated := make([]string, 0, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			backend, ok := s.backends[target.Name]
			if !ok {
				s.logger.Warn("replication target has no backend", zap.String("partition", target.Name))
				return nil
			}
			br := s.breakers.Get("partition:" + target.Name)
			err := br.Call(gctx, func(ctx context.Context) error {
				_, _, putErr := backend.Put(ctx, key, value)
				return putErr
			})
			if err != nil {
				s.metrics.RecordReplication(target.Name, "error")
				s.logger.Warn("replication failed",
					zap.String("key", key),
					zap.String("partition", target.Name),
					zap.Error(err))
				return nil
			}
			s.metrics.RecordReplication(target.Name, "ok")
			mu.Lock()
			replicated = append(replicated, target.Name)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(replicated)
	return replicated
}

// Read looks up a key, serving from cache when possible. On a cache miss the
// primary partition is consulted and the cache refreshed. In region mode with
// replication enabled, a miss on the primary falls back to scanning the other
// partitions for a replicated copy.
func (s *StorageService) Read(ctx context.Context, key, regionHint string) (ReadResult, error) {
	s.reads.Add(1)

	if rec, level, ok := s.cache.Lookup(ctx, key); ok {
		if level == cache.TierL2 {
			s.metrics.RecordCacheMiss(cache.TierL1)
		}
		s.metrics.RecordCacheHit(level)
		return ReadResult{
			Key:        key,
			Value:      rec.Value,
			CacheHit:   true,
			CacheLevel: level,
			CreatedAt:  rec.CreatedAt,
			UpdatedAt:  rec.UpdatedAt,
		}, nil
	}
	s.metrics.RecordCacheMiss(cache.TierL1)
	if s.cache.L2Enabled() {
		s.metrics.RecordCacheMiss(cache.TierL2)
	}

	primary, _ := s.router.Primary(key, regionHint)
	rec, err := s.readPartition(ctx, primary.Name, key)
	if err == nil {
		s.cache.Populate(ctx, key, rec)
		return ReadResult{
			Key:       key,
			Value:     rec.Value,
			Partition: primary.Name,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}, nil
	}

	if s.router.Mode() == router.ModeRegion && s.replicate {
		if res, ok := s.fallbackScan(ctx, primary.Name, key); ok {
			return res, nil
		}
	}
	return ReadResult{}, err
}

// fallbackScan checks the remaining partitions in declaration order for a
// replicated copy of the key.
func (s *StorageService) fallbackScan(ctx context.Context, primaryName, key string) (ReadResult, bool) {
	for _, p := range s.router.Partitions() {
		if p.Name == primaryName {
			continue
		}
		rec, err := s.readPartition(ctx, p.Name, key)
		if err != nil {
			continue
		}
		s.cache.Populate(ctx, key, rec)
		s.fallbackReads.Add(1)
		s.logger.Info("read served from fallback partition",
			zap.String("key", key),
			zap.String("partition", p.Name))
		return ReadResult{
			Key:       key,
			Value:     rec.Value,
			Partition: p.Name,
			Fallback:  true,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}, true
	}
	return ReadResult{}, false
}

func (s *StorageService) readPartition(ctx context.Context, name, key string) (model.Record, error) {
	backend, ok := s.backends[name]
	if !ok {
		return model.Record{}, fmt.Errorf("no backend for partition %q", name)
	}

	var rec model.Record
	br := s.breakers.Get("partition:" + name)

	start := time.Now()
	err := br.Call(ctx, func(ctx context.Context) error {
		var getErr error
		rec, getErr = backend.Get(ctx, key)
		return getErr
	})
	s.metrics.RecordStoreOperation(name, "get", statusOf(err), time.Since(start).Seconds())
	return rec, err
}

// Query reads the denormalized projection for a key.
func (s *StorageService) Query(ctx context.Context, key string) (model.ReadModelRecord, error) {
	if s.readModel == nil {
		return model.ReadModelRecord{}, ErrReadModelDisabled
	}
	return s.readModel.Get(ctx, key)
}

// Partitions returns the configured partition set in declaration order.
func (s *StorageService) Partitions() []router.Partition {
	return s.router.Partitions()
}

// RoutingMode returns the configured routing mode.
func (s *StorageService) RoutingMode() router.Mode {
	return s.router.Mode()
}

// HomeRegion returns the default region used in region mode.
func (s *StorageService) HomeRegion() string {
	return s.router.HomeRegion()
}

// PartitionStatuses reports health, record counts and pool usage for every
// partition backend.
func (s *StorageService) PartitionStatuses(ctx context.Context) []PartitionStatus {
	partitions := s.router.Partitions()
	statuses := make([]PartitionStatus, 0, len(partitions))
	for _, p := range partitions {
		status := PartitionStatus{Name: p.Name, Region: p.Region, Driver: p.Driver}
		if backend, ok := s.backends[p.Name]; ok {
			status.Pool = backend.PoolStats()
			if err := backend.Ping(ctx); err == nil {
				status.Healthy = true
				if n, err := backend.Count(ctx); err == nil {
					status.Records = n
				}
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// QueueDepth reports the write buffer backlog, or zero when buffering is off.
func (s *StorageService) QueueDepth(ctx context.Context) int64 {
	if s.queue == nil {
		return 0
	}
	depth, err := s.queue.Len(ctx)
	if err != nil {
		return 0
	}
	return depth
}

// Buffered reports whether writes are queued instead of applied inline.
func (s *StorageService) Buffered() bool {
	return s.queue != nil
}

// EventsEnabled reports whether writes publish record events.
func (s *StorageService) EventsEnabled() bool {
	return s.events != nil
}

// ReadModelEnabled reports whether the query path has a projection to serve.
func (s *StorageService) ReadModelEnabled() bool {
	return s.readModel != nil
}

// Stats returns cumulative service counters.
func (s *StorageService) Stats() Stats {
	return Stats{
		Writes:        s.writes.Load(),
		Reads:         s.reads.Load(),
		QueuedWrites:  s.queuedWrites.Load(),
		FallbackReads: s.fallbackReads.Load(),
	}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, breaker.ErrOpen):
		return "rejected"
	default:
		return "error"
	}
}
