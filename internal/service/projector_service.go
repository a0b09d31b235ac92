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

// projectTimeout bounds one projection batch.
const projectTimeout = 30 * time.Second

// ProjectorStats are cumulative counters for the event projector
type ProjectorStats struct {
	Running   bool   `json:"running"`
	Projected int64  `json:"projected"`
	Cursor    string `json:"cursor"`
}

// ProjectorService tails the event log and folds each event into the read
// model. Delivery is at least once: the cursor only advances past an event
// after its apply succeeds, so a failed apply is retried on the next pass.
// Redelivered events hit the read model's idempotent upsert.
type ProjectorService struct {
	log       store.EventLog
	readModel store.ReadModel
	batch     int
	interval  time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu     sync.Mutex
	cursor string

	projected atomic.Int64
	running   atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewProjectorService creates a projector reading log into readModel
func NewProjectorService(
	log store.EventLog,
	readModel store.ReadModel,
	batchSize int,
	pollInterval time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ProjectorService {
	return &ProjectorService{
		log:       log,
		readModel: readModel,
		batch:     batchSize,
		interval:  pollInterval,
		metrics:   m,
		logger:    logger,
		cursor:    "0",
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the projection loop
func (s *ProjectorService) Start() {
	s.running.Store(true)
	s.logger.Info("event projector started",
		zap.Int("batch_size", s.batch),
		zap.Duration("poll_interval", s.interval))
	go s.run()
}

func (s *ProjectorService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), projectTimeout)
			s.ProjectOnce(ctx)
			cancel()
		}
	}
}

// ProjectOnce reads one batch past the cursor and applies it in order. On
// the first failed apply the batch stops and the cursor stays put, so the
// failed event leads the next batch. Returns the number of events applied.
func (s *ProjectorService) ProjectOnce(ctx context.Context) int {
	events, err := s.log.ReadAfter(ctx, s.Cursor(), s.batch)
	if err != nil {
		s.logger.Warn("event log read failed", zap.Error(err))
		return 0
	}

	applied := 0
	for _, ev := range events {
		if err := s.readModel.Apply(ctx, ev.Key, ev.Value); err != nil {
			s.logger.Error("projection apply failed",
				zap.String("event_id", ev.ID),
				zap.String("key", ev.Key),
				zap.Error(err))
			break
		}
		s.setCursor(ev.ID)
		s.projected.Add(1)
		s.metrics.RecordEventProjected()
		applied++
	}
	return applied
}

// Stop halts the loop after the in-flight batch completes
func (s *ProjectorService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.running.Store(false)
		s.logger.Info("event projector stopped",
			zap.Int64("projected", s.projected.Load()),
			zap.String("cursor", s.Cursor()))
	})
}

// Cursor returns the id of the last successfully applied event
func (s *ProjectorService) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *ProjectorService) setCursor(id string) {
	s.mu.Lock()
	s.cursor = id
	s.mu.Unlock()
}

// Stats returns cumulative projector counters
func (s *ProjectorService) Stats() ProjectorStats {
	return ProjectorStats{
		Running:   s.running.Load(),
		Projected: s.projected.Load(),
		Cursor:    s.Cursor(),
	}
}
