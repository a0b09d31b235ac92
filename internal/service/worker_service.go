package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/metrics"
	"github.com/rohansen856/database-layering/internal/store"
)

// drainTimeout bounds one batch of queued writes, including replication.
const drainTimeout = 30 * time.Second

// WorkerStats are cumulative counters for the write buffer worker
type WorkerStats struct {
	Running   bool  `json:"running"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// WorkerService drains the write buffer in the background, applying queued
// writes to durable storage in arrival order.
type WorkerService struct {
	queue    store.Queue
	storage  *StorageService
	batch    int
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger

	processed atomic.Int64
	failed    atomic.Int64
	running   atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWorkerService creates a worker draining queue into storage
func NewWorkerService(
	queue store.Queue,
	storage *StorageService,
	batchSize int,
	pollInterval time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *WorkerService {
	return &WorkerService{
		queue:    queue,
		storage:  storage,
		batch:    batchSize,
		interval: pollInterval,
		metrics:  m,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the drain loop
func (s *WorkerService) Start() {
	s.running.Store(true)
	s.logger.Info("write buffer worker started",
		zap.Int("batch_size", s.batch),
		zap.Duration("poll_interval", s.interval))
	go s.run()
}

func (s *WorkerService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			s.DrainOnce(ctx)
			cancel()
		}
	}
}

// DrainOnce dequeues and applies one batch. A write that fails is logged,
// counted and dropped; the rest of the batch still applies. Returns the
// number of items dequeued.
func (s *WorkerService) DrainOnce(ctx context.Context) int {
	items, err := s.queue.DequeueBatch(ctx, s.batch)
	if err != nil {
		s.logger.Warn("dequeue failed", zap.Error(err))
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	for _, item := range items {
		if _, err := s.storage.Apply(ctx, item.Key, item.Value, ""); err != nil {
			s.failed.Add(1)
			s.metrics.RecordQueueProcessed("error")
			s.logger.Error("queued write failed",
				zap.String("key", item.Key),
				zap.Time("enqueued_at", item.EnqueuedAt),
				zap.Error(err))
			continue
		}
		s.processed.Add(1)
		s.metrics.RecordQueueProcessed("ok")
	}

	if depth, err := s.queue.Len(ctx); err == nil {
		s.metrics.UpdateQueueDepth(depth)
	}
	return len(items)
}

// Stop halts the loop after the in-flight batch completes
func (s *WorkerService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.running.Store(false)
		s.logger.Info("write buffer worker stopped",
			zap.Int64("processed", s.processed.Load()),
			zap.Int64("failed", s.failed.Load()))
	})
}

// Stats returns cumulative worker counters
func (s *WorkerService) Stats() WorkerStats {
	return WorkerStats{
		Running:   s.running.Load(),
		Processed: s.processed.Load(),
		Failed:    s.failed.Load(),
	}
}
