package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/model"
)

func TestL1SetGetDelete(t *testing.T) {
	c := NewL1(10, time.Minute, zap.NewNop())

	c.Set("k1", model.Record{Key: "k1", Value: "v1"})

	rec, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, "v1", rec.Value)

	c.Delete("k1")
	_, ok = c.Get("k1")
	assert.False(t, ok)
}

func TestL1ExpiredEntriesAreMisses(t *testing.T) {
	c := NewL1(10, 20*time.Millisecond, zap.NewNop())

	c.Set("k1", model.Record{Key: "k1", Value: "v1"})
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("k1")
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired entry is removed lazily on read")
}

func TestL1CapacityNeverExceeded(t *testing.T) {
	c := NewL1(5, time.Minute, zap.NewNop())

	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("k%d", i), model.Record{Key: fmt.Sprintf("k%d", i)})
		assert.LessOrEqual(t, c.Len(), 5)
	}
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, int64(15), c.Evictions())
}

func TestL1OverwriteDoesNotEvict(t *testing.T) {
	c := NewL1(2, time.Minute, zap.NewNop())

	c.Set("k1", model.Record{Key: "k1", Value: "v1"})
	c.Set("k2", model.Record{Key: "k2", Value: "v2"})
	c.Set("k1", model.Record{Key: "k1", Value: "v1b"})

	assert.Equal(t, 2, c.Len())
	assert.Zero(t, c.Evictions())

	rec, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, "v1b", rec.Value)
}

func TestL1Purge(t *testing.T) {
	c := NewL1(10, time.Minute, zap.NewNop())

	c.Set("k1", model.Record{Key: "k1"})
	c.Set("k2", model.Record{Key: "k2"})

	assert.Equal(t, 2, c.Purge())
	assert.Zero(t, c.Len())
}
