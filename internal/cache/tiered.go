package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/model"
	"github.com/rohansen856/database-layering/internal/store"
)

// Tier labels as reported on the read path.
const (
	TierL1 = "L1"
	TierL2 = "L2"
)

// Stats is the cache section of the stats endpoint.
type Stats struct {
	L1Size      int   `json:"l1_size"`
	L1Max       int   `json:"l1_max_entries"`
	L1Hits      int64 `json:"l1_hits"`
	L1Misses    int64 `json:"l1_misses"`
	L1Evictions int64 `json:"l1_evictions"`
	L2Enabled   bool  `json:"l2_enabled"`
	L2Hits      int64 `json:"l2_hits"`
	L2Misses    int64 `json:"l2_misses"`
	L2Errors    int64 `json:"l2_errors"`
	L2Keys      int64 `json:"l2_keys"`
}

// Tiered composes the L1 tier with an optional L2. L2 failures never
// surface to readers; the cache degrades to L1-only and keeps serving.
type Tiered struct {
	l1     *L1
	l2     store.Cache
	l2TTL  time.Duration
	logger *zap.Logger

	l1Hits   atomic.Int64
	l1Misses atomic.Int64
	l2Hits   atomic.Int64
	l2Misses atomic.Int64
	l2Errors atomic.Int64
}

// NewTiered builds the tiered cache. l2 may be nil when the networked tier
// is disabled.
func NewTiered(l1 *L1, l2 store.Cache, l2TTL time.Duration, logger *zap.Logger) *Tiered {
	return &Tiered{
		l1:     l1,
		l2:     l2,
		l2TTL:  l2TTL,
		logger: logger,
	}
}

// Lookup checks L1 then L2. An L2 hit is promoted into L1 with a fresh L1
// TTL so subsequent reads stay in process. The returned tier is TierL1 or
// TierL2 on a hit.
func (t *Tiered) Lookup(ctx context.Context, key string) (model.Record, string, bool) {
	if rec, ok := t.l1.Get(key); ok {
		t.l1Hits.Add(1)
		return rec, TierL1, true
	}
	t.l1Misses.Add(1)

	if t.l2 == nil {
		return model.Record{}, "", false
	}

	rec, err := t.l2.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			t.l2Misses.Add(1)
		} else {
			t.l2Errors.Add(1)
			t.logger.Warn("L2 cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		return model.Record{}, "", false
	}

	t.l2Hits.Add(1)
	t.l1.Set(key, rec)
	return rec, TierL2, true
}

// Populate writes through both tiers. The L2 write is best effort.
func (t *Tiered) Populate(ctx context.Context, key string, rec model.Record) {
	t.l1.Set(key, rec)

	if t.l2 == nil {
		return
	}
	if err := t.l2.Set(ctx, key, rec, t.l2TTL); err != nil {
		t.l2Errors.Add(1)
		t.logger.Warn("L2 cache populate failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes the key from both tiers. An L2 delete failure is
// logged and counted but never fails the caller; the entry expires by TTL
// at the latest.
func (t *Tiered) Invalidate(ctx context.Context, key string) {
	t.l1.Delete(key)

	if t.l2 == nil {
		return
	}
	if err := t.l2.Delete(ctx, key); err != nil {
		t.l2Errors.Add(1)
		t.logger.Warn("L2 cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear empties both tiers and reports how many entries each dropped.
func (t *Tiered) Clear(ctx context.Context) (int, int64, error) {
	l1Dropped := t.l1.Purge()

	if t.l2 == nil {
		return l1Dropped, 0, nil
	}
	l2Dropped, err := t.l2.Flush(ctx)
	if err != nil {
		t.l2Errors.Add(1)
		return l1Dropped, l2Dropped, err
	}
	return l1Dropped, l2Dropped, nil
}

// Available reports whether the L2 tier is reachable. A cache without L2
// is trivially available.
func (t *Tiered) Available(ctx context.Context) bool {
	if t.l2 == nil {
		return true
	}
	return t.l2.Ping(ctx) == nil
}

// L2Enabled reports whether a networked tier is configured.
func (t *Tiered) L2Enabled() bool {
	return t.l2 != nil
}

// Stats snapshots both tiers. L2 key counting is skipped when L2 is down.
func (t *Tiered) Stats(ctx context.Context) Stats {
	s := Stats{
		L1Size:      t.l1.Len(),
		L1Max:       t.l1.MaxEntries(),
		L1Hits:      t.l1Hits.Load(),
		L1Misses:    t.l1Misses.Load(),
		L1Evictions: t.l1.Evictions(),
		L2Enabled:   t.l2 != nil,
		L2Hits:      t.l2Hits.Load(),
		L2Misses:    t.l2Misses.Load(),
		L2Errors:    t.l2Errors.Load(),
	}
	if t.l2 != nil {
		if keys, err := t.l2.Keys(ctx); err == nil {
			s.L2Keys = keys
		}
	}
	return s
}
