package circuitbreaker

import (
	"sort"
	"sync"
)

// Registry owns one circuit breaker per logical endpoint key.
// Breakers are created lazily on first use and live for the lifetime of the registry.
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	config   func(name string) Config
}

// Status is a point-in-time view of a single breaker.
type Status struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	Open                bool   `json:"open"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// NewRegistry creates a registry that builds breakers with the given config factory.
// A nil factory uses EndpointConfig.
func NewRegistry(config func(name string) Config) *Registry {
	if config == nil {
		config = EndpointConfig
	}
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
	}
}

// Get returns the breaker for key, creating it if needed.
func (r *Registry) Get(key string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	cfg := r.config(key)
	cfg.Name = key
	cb := New(cfg)
	r.breakers[key] = cb
	return cb
}

// Snapshot returns the status of every breaker created so far, sorted by name.
func (r *Registry) Snapshot() []Status {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(breakers))
	for _, cb := range breakers {
		out = append(out, Status{
			Name:                cb.Name(),
			State:               cb.State().String(),
			Open:                cb.IsOpen(),
			ConsecutiveFailures: cb.Counts().ConsecutiveFailures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
