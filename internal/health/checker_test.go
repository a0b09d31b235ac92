package health

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func up(ctx context.Context) error   { return nil }
func down(ctx context.Context) error { return errors.New("unreachable") }

func TestAllChecksPassingIsHealthy(t *testing.T) {
	c := NewChecker(zap.NewNop())
	c.AddPartition("shard1", up)
	c.AddPartition("shard2", up)
	c.AddComponent("cache", up)

	report := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "up", report.Partitions["shard1"])
	assert.Equal(t, "up", report.Components["cache"])
	assert.Equal(t, http.StatusOK, HTTPStatus(report))
}

func TestOnePartitionDownIsDegraded(t *testing.T) {
	c := NewChecker(zap.NewNop())
	c.AddPartition("shard1", up)
	c.AddPartition("shard2", down)

	report := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "down", report.Partitions["shard2"])
	assert.Equal(t, http.StatusOK, HTTPStatus(report), "degraded still serves traffic")
}

func TestComponentDownIsDegraded(t *testing.T) {
	c := NewChecker(zap.NewNop())
	c.AddPartition("shard1", up)
	c.AddComponent("rate_limit", down)

	report := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, http.StatusOK, HTTPStatus(report))
}

func TestAllPartitionsDownIsUnhealthy(t *testing.T) {
	c := NewChecker(zap.NewNop())
	c.AddPartition("shard1", down)
	c.AddPartition("shard2", down)
	c.AddComponent("cache", up)

	report := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(report))
}

func TestCheckerWithoutChecksIsHealthy(t *testing.T) {
	c := NewChecker(zap.NewNop())
	report := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
}
