// Package ratelimit implements per-client sliding-window admission
// control. The limiter fails open: when its window store is unreachable,
// requests are admitted and the failure is logged and counted.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/store"
)

// Decision is the admission verdict for one request.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetIn is how long until the window frees budget: the retry-after
	// guidance on a rejection, the full window on an admission.
	ResetIn time.Duration
}

// Stats is the rate-limit section of the stats endpoint.
type Stats struct {
	Enabled     bool  `json:"enabled"`
	MaxRequests int   `json:"max_requests"`
	WindowSecs  int64 `json:"window_seconds"`
	Allowed     int64 `json:"allowed"`
	Rejected    int64 `json:"rejected"`
	FailOpen    int64 `json:"fail_open"`
}

// Limiter checks clients against a shared request budget per window.
type Limiter struct {
	window store.Window
	max    int
	span   time.Duration
	logger *zap.Logger

	allowed  atomic.Int64
	rejected atomic.Int64
	failOpen atomic.Int64
}

// New creates a limiter over the given window store.
func New(window store.Window, maxRequests int, span time.Duration, logger *zap.Logger) *Limiter {
	return &Limiter{
		window: window,
		max:    maxRequests,
		span:   span,
		logger: logger,
	}
}

// Check decides whether the client's request is admitted. Window-store
// errors admit the request with a full budget (fail open).
func (l *Limiter) Check(ctx context.Context, clientID string) Decision {
	allowed, remaining, resetIn, err := l.window.Check(ctx, clientID, l.max, l.span)
	if err != nil {
		l.failOpen.Add(1)
		l.logger.Warn("rate limit store unavailable, failing open",
			zap.String("client_id", clientID),
			zap.Error(err))
		return Decision{Allowed: true, Remaining: l.max, ResetIn: 0}
	}

	if !allowed {
		l.rejected.Add(1)
		return Decision{Allowed: false, Remaining: 0, ResetIn: resetIn}
	}

	l.allowed.Add(1)
	return Decision{Allowed: true, Remaining: remaining, ResetIn: resetIn}
}

// ResetClient drops the recorded requests for one client.
func (l *Limiter) ResetClient(ctx context.Context, clientID string) error {
	return l.window.Reset(ctx, clientID)
}

// Ping reports whether the window store is reachable. Used by health
// checks instead of Check so probing never consumes budget.
func (l *Limiter) Ping(ctx context.Context) error {
	return l.window.Ping(ctx)
}

// Stats snapshots the limiter configuration and counters.
func (l *Limiter) Stats() Stats {
	return Stats{
		Enabled:     true,
		MaxRequests: l.max,
		WindowSecs:  int64(l.span.Seconds()),
		Allowed:     l.allowed.Load(),
		Rejected:    l.rejected.Load(),
		FailOpen:    l.failOpen.Load(),
	}
}
