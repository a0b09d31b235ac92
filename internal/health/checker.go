// Package health aggregates liveness checks for partitions and supporting
// components. Checks only observe; they never consume rate limit budget or
// mutate breaker state.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the overall service health
type Status string

const (
	// StatusHealthy means every check passed.
	StatusHealthy Status = "healthy"
	// StatusDegraded means at least one partition is reachable but some
	// check failed.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy means no partition is reachable.
	StatusUnhealthy Status = "unhealthy"
)

// checkTimeout bounds each individual probe.
const checkTimeout = 2 * time.Second

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

type check struct {
	name string
	fn   CheckFunc
}

// Report is the health endpoint payload
type Report struct {
	Status     Status            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Partitions map[string]string `json:"partitions"`
	Components map[string]string `json:"components,omitempty"`
}

// Checker runs registered checks and folds them into a Report
type Checker struct {
	mu         sync.Mutex
	partitions []check
	components []check
	logger     *zap.Logger
}

// NewChecker creates an empty checker
func NewChecker(logger *zap.Logger) *Checker {
	return &Checker{logger: logger}
}

// AddPartition registers a partition probe. Partition reachability decides
// whether the service is unhealthy or merely degraded.
func (c *Checker) AddPartition(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partitions = append(c.partitions, check{name: name, fn: fn})
}

// AddComponent registers a supporting component probe such as the cache or
// the rate limit backend.
func (c *Checker) AddComponent(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, check{name: name, fn: fn})
}

// Check runs every probe and reports the aggregate status. The service is
// unhealthy only when no partition responds; anything less is degraded.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.Lock()
	partitions := append([]check(nil), c.partitions...)
	components := append([]check(nil), c.components...)
	c.mu.Unlock()

	report := Report{
		Timestamp:  time.Now().UTC(),
		Partitions: make(map[string]string, len(partitions)),
	}
	if len(components) > 0 {
		report.Components = make(map[string]string, len(components))
	}

	partitionsUp := 0
	allUp := true
	for _, p := range partitions {
		if err := c.probe(ctx, p); err != nil {
			report.Partitions[p.name] = "down"
			allUp = false
			continue
		}
		report.Partitions[p.name] = "up"
		partitionsUp++
	}
	for _, comp := range components {
		if err := c.probe(ctx, comp); err != nil {
			report.Components[comp.name] = "down"
			allUp = false
			continue
		}
		report.Components[comp.name] = "up"
	}

	switch {
	case len(partitions) > 0 && partitionsUp == 0:
		report.Status = StatusUnhealthy
	case allUp:
		report.Status = StatusHealthy
	default:
		report.Status = StatusDegraded
	}
	return report
}

func (c *Checker) probe(ctx context.Context, ck check) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := ck.fn(ctx); err != nil {
		c.logger.Warn("health check failed", zap.String("check", ck.name), zap.Error(err))
		return err
	}
	return nil
}

// HTTPStatus maps a report to the status code the health endpoint returns.
// Degraded still serves 200; only a service with no reachable partition
// answers 503.
func HTTPStatus(r Report) int {
	if r.Status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
