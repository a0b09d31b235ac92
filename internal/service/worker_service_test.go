package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/model"
	"github.com/rohansen856/database-layering/internal/router"
	"github.com/rohansen856/database-layering/internal/store"
)

// poisonStore rejects writes for one key and delegates the rest.
type poisonStore struct {
	*store.MemoryStore
	key string
}

func (p *poisonStore) Put(ctx context.Context, key, value string) (model.Record, bool, error) {
	if key == p.key {
		return model.Record{}, false, errors.New("write rejected")
	}
	return p.MemoryStore.Put(ctx, key, value)
}

func newWorkerFixture(t *testing.T) (*fixture, *StorageService, *WorkerService) {
	t.Helper()
	f := newFixture(t, router.ModeHash, hashPartitions(), "")
	f.queue = store.NewMemoryQueue()
	svc := f.service(false)
	worker := NewWorkerService(f.queue, svc, 10, 10*time.Millisecond, f.metrics, zap.NewNop())
	return f, svc, worker
}

func TestWorkerAppliesQueuedWritesInOrder(t *testing.T) {
	f, svc, worker := newWorkerFixture(t)
	ctx := context.Background()

	_, err := svc.Write(ctx, "user:1", "first", "")
	require.NoError(t, err)
	_, err = svc.Write(ctx, "user:1", "second", "")
	require.NoError(t, err)
	_, err = svc.Write(ctx, "user:2", "other", "")
	require.NoError(t, err)

	drained := worker.DrainOnce(ctx)
	assert.Equal(t, 3, drained)

	// FIFO order means the later value wins.
	primary := f.rt.Route("user:1")
	rec, err := f.mem[primary.Name].Get(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, "second", rec.Value)

	depth, err := f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)

	stats := worker.Stats()
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestWorkerContinuesPastFailedItem(t *testing.T) {
	f := newFixture(t, router.ModeRegion, []router.Partition{{Name: "solo", Region: "us-east", Driver: "memory"}}, "us-east")
	f.queue = store.NewMemoryQueue()
	backing := store.NewMemoryStore()
	f.backends["solo"] = &poisonStore{MemoryStore: backing, key: "poison"}
	svc := f.service(false)
	worker := NewWorkerService(f.queue, svc, 10, 10*time.Millisecond, f.metrics, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Write(ctx, "poison", "boom", "")
	require.NoError(t, err)
	_, err = svc.Write(ctx, "fine", "ok", "")
	require.NoError(t, err)

	drained := worker.DrainOnce(ctx)
	assert.Equal(t, 2, drained)

	rec, err := backing.Get(ctx, "fine")
	require.NoError(t, err)
	assert.Equal(t, "ok", rec.Value)

	stats := worker.Stats()
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestWorkerDrainsInBackground(t *testing.T) {
	f, svc, worker := newWorkerFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Write(ctx, "batch:key", "v", "")
		require.NoError(t, err)
	}

	worker.Start()
	defer worker.Stop()

	require.Eventually(t, func() bool {
		depth, err := f.queue.Len(ctx)
		return err == nil && depth == 0
	}, 2*time.Second, 10*time.Millisecond)

	primary := f.rt.Route("batch:key")
	_, err := f.mem[primary.Name].Get(ctx, "batch:key")
	require.NoError(t, err)
}

func TestWorkerStopIsIdempotent(t *testing.T) {
	_, _, worker := newWorkerFixture(t)
	worker.Start()
	worker.Stop()
	worker.Stop()
	assert.False(t, worker.Stats().Running)
}
