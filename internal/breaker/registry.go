package breaker

import (
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Registry holds one breaker per named dependency, created lazily with a
// shared Config. The process constructs exactly one Registry at startup;
// there is no package-global breaker table.
type Registry struct {
	breakers *xsync.MapOf[string, *Breaker]
	cfg      Config
	logger   *zap.Logger
}

// NewRegistry creates an empty registry with shared breaker tuning.
func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	return &Registry{
		breakers: xsync.NewMapOf[string, *Breaker](),
		cfg:      cfg,
		logger:   logger,
	}
}

// Get returns the breaker for the named dependency, creating it on first
// use. Concurrent first calls for the same name converge on one instance.
func (r *Registry) Get(name string) *Breaker {
	b, _ := r.breakers.LoadOrCompute(name, func() *Breaker {
		return New(name, r.cfg, r.logger)
	})
	return b
}

// Snapshots returns the current view of every breaker, keyed by name.
func (r *Registry) Snapshots() map[string]Snapshot {
	out := make(map[string]Snapshot)
	r.breakers.Range(func(name string, b *Breaker) bool {
		out[name] = b.Snapshot()
		return true
	})
	return out
}

// States returns just the state per breaker, the shape health reporting
// uses.
func (r *Registry) States() map[string]State {
	out := make(map[string]State)
	r.breakers.Range(func(name string, b *Breaker) bool {
		out[name] = b.State()
		return true
	})
	return out
}
