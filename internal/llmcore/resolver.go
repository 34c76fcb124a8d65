package llmcore

import (
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// adapterCacheSize bounds the process-wide adapter-instance cache. Adapters
// are cheap to construct but carry a pre-built httpclient.Client, so
// reusing them across requests for the same underlying model avoids
// rebuilding transports on every turn.
const adapterCacheSize = 256

// responsesSuffix is the suffix carried by public model ids. Resolve strips
// it to recover the underlying model name that is actually sent to the
// provider.
const responsesSuffix = "-responses"

// AdapterFactory builds an Adapter for a given underlying model name.
type AdapterFactory func(underlyingModel string) (Adapter, error)

// Resolver maps a client-facing model alias to a ModelRoute, resolving
// through a configured prefix table and caching constructed adapters.
type Resolver struct {
	mu     sync.RWMutex
	routes []routeEntry
	cache  *lru.Cache[string, Adapter]
}

type routeEntry struct {
	prefix  string
	owner   string
	models  []string
	created time.Time
	factory AdapterFactory
}

// NewResolver creates an empty Resolver. Call Register for each backend.
func NewResolver() *Resolver {
	cache, _ := lru.New[string, Adapter](adapterCacheSize)

	return &Resolver{cache: cache}
}

// Register binds every public model id in models to factory, routing
// calls whose underlying model (after stripping the "-responses" suffix)
// starts with prefix. owner is reported as the model's owned_by in
// listings. Prefixes are matched longest-first so a backend can register
// both a catch-all ("") and more specific overrides.
func (r *Resolver) Register(prefix, owner string, models []string, factory AdapterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes = append(r.routes, routeEntry{
		prefix:  prefix,
		owner:   owner,
		models:  models,
		created: time.Now(),
		factory: factory,
	})
}

// Resolve returns the ModelRoute for a client-supplied public model id.
// A "-responses" suffix, when present, is stripped to produce the
// underlying model name passed to the provider; an id without the suffix
// is used unchanged. Backend routing is matched against that underlying
// name.
func (r *Resolver) Resolve(model string) (*ModelRoute, error) {
	underlying := strings.TrimSuffix(model, responsesSuffix)

	r.mu.RLock()

	var (
		best    *routeEntry
		bestLen = -1
	)

	for i := range r.routes {
		entry := &r.routes[i]
		if !strings.HasPrefix(underlying, entry.prefix) {
			continue
		}

		if len(entry.prefix) > bestLen {
			best = entry
			bestLen = len(entry.prefix)
		}
	}

	supported := r.supportedModelsLocked()

	r.mu.RUnlock()

	if best == nil {
		return nil, fmt.Errorf("no provider registered for model %q, supported models: %s", model, strings.Join(supported, ", "))
	}

	if cached, ok := r.cache.Get(model); ok {
		return &ModelRoute{Adapter: cached, UnderlyingModel: underlying}, nil
	}

	adapter, err := best.factory(underlying)
	if err != nil {
		return nil, fmt.Errorf("build adapter for model %q: %w", model, err)
	}

	r.cache.Add(model, adapter)

	return &ModelRoute{Adapter: adapter, UnderlyingModel: underlying}, nil
}

func (r *Resolver) supportedModelsLocked() []string {
	var ids []string
	for _, entry := range r.routes {
		ids = append(ids, entry.models...)
	}

	return ids
}

// ModelSummary is a listing entry for the /v1/models surface.
type ModelSummary struct {
	ID      string
	OwnedBy string
	Created time.Time
}

// List enumerates every registered public model id.
func (r *Resolver) List() []ModelSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ModelSummary

	for _, entry := range r.routes {
		for _, id := range entry.models {
			out = append(out, ModelSummary{ID: id, OwnedBy: entry.owner, Created: entry.created})
		}
	}

	return out
}
