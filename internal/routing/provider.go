package routing

import (
	"context"
	"sync"
	"time"

	"github.com/leadgate-ai/leadgate/pkg/logging"
)

// Getter fetches the active policy from wherever it lives.
type Getter interface {
	Get(ctx context.Context) (Config, error)
}

// Provider serves the active policy from a short-lived cache. A fetch
// failure degrades to the last known policy, then to the built-in default,
// so a classification decision never stalls on a configuration fetch.
type Provider struct {
	source Getter
	ttl    time.Duration
	logger *logging.Logger
	now    func() time.Time

	mu        sync.Mutex
	cached    Config
	hasCached bool
	fetchedAt time.Time
}

// DefaultTTL bounds policy staleness between explicit invalidations.
const DefaultTTL = 30 * time.Second

// NewProvider wraps a policy source with a TTL cache.
func NewProvider(source Getter, ttl time.Duration, logger *logging.Logger) *Provider {
	if source == nil {
		panic("routing: policy source cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Provider{
		source: source,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Active returns the current policy, refreshing the cache when the TTL has
// lapsed. Never returns an error: staleness is acceptable, blocking lead
// processing is not.
func (p *Provider) Active(ctx context.Context) Config {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasCached && p.now().Sub(p.fetchedAt) < p.ttl {
		return p.cached
	}

	cfg, err := p.source.Get(ctx)
	if err != nil {
		if p.hasCached {
			p.logger.Warn("routing policy fetch failed, using last known policy", "error", err)
			return p.cached
		}
		p.logger.Warn("routing policy fetch failed with no cache, using defaults", "error", err)
		return DefaultConfig()
	}

	p.cached = cfg
	p.hasCached = true
	p.fetchedAt = p.now()
	return cfg
}

// Invalidate drops the cached policy so the next read hits the store.
// Called from the administrative update path.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasCached = false
}
