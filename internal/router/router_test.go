package router

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func threePartitions() []Partition {
	return []Partition{
		{Name: "shard1", Region: "us-east", Driver: "memory"},
		{Name: "shard2", Region: "eu-west", Driver: "memory"},
		{Name: "shard3", Region: "asia-pac", Driver: "memory"},
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	r, err := New(ModeHash, threePartitions(), "us-east", zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("key-%d", i)
		first := r.Route(key)
		for j := 0; j < 5; j++ {
			assert.Equal(t, first.Name, r.Route(key).Name)
		}
	}
}

func TestRouteSpreadsKeys(t *testing.T) {
	r, err := New(ModeHash, threePartitions(), "us-east", zap.NewNop())
	require.NoError(t, err)

	counts := make(map[string]int)
	for i := 0; i < 300; i++ {
		counts[r.Route(fmt.Sprintf("key-%d", i)).Name]++
	}

	require.Len(t, counts, 3, "every partition should receive keys")
	for name, n := range counts {
		assert.GreaterOrEqual(t, n, 60, "partition %s starved: %d", name, n)
		assert.LessOrEqual(t, n, 140, "partition %s overloaded: %d", name, n)
	}
}

func TestResolveHonorsPinAndDefaultsHome(t *testing.T) {
	r, err := New(ModeRegion, threePartitions(), "us-east", zap.NewNop())
	require.NoError(t, err)

	p, pinned := r.Resolve("eu-west")
	assert.True(t, pinned)
	assert.Equal(t, "shard2", p.Name)

	// Hints are trimmed and case-insensitive.
	p, pinned = r.Resolve("  EU-WEST ")
	assert.True(t, pinned)
	assert.Equal(t, "shard2", p.Name)

	p, pinned = r.Resolve("mars-north")
	assert.False(t, pinned, "unknown region must fall back, not error")
	assert.Equal(t, "shard1", p.Name)

	p, pinned = r.Resolve("")
	assert.False(t, pinned)
	assert.Equal(t, "shard1", p.Name)
}

func TestPrimaryIgnoresHintInHashMode(t *testing.T) {
	r, err := New(ModeHash, threePartitions(), "us-east", zap.NewNop())
	require.NoError(t, err)

	want := r.Route("some-key")
	got, pinned := r.Primary("some-key", "eu-west")
	assert.True(t, pinned)
	assert.Equal(t, want.Name, got.Name)
}

func TestReplicaTargetsExcludePrimary(t *testing.T) {
	r, err := New(ModeRegion, threePartitions(), "us-east", zap.NewNop())
	require.NoError(t, err)

	targets := r.ReplicaTargets("shard2")
	require.Len(t, targets, 2)
	assert.Equal(t, "shard1", targets[0].Name)
	assert.Equal(t, "shard3", targets[1].Name)
}

func TestNewRejectsBadPartitionSets(t *testing.T) {
	_, err := New(ModeHash, nil, "us-east", zap.NewNop())
	assert.Error(t, err)

	dup := []Partition{{Name: "shard1"}, {Name: "shard1"}}
	_, err = New(ModeHash, dup, "us-east", zap.NewNop())
	assert.Error(t, err)

	_, err = New(ModeRegion, threePartitions(), "atlantis", zap.NewNop())
	assert.Error(t, err)
}
