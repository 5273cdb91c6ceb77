package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/iot-bridge/internal/deviceclient"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry resolves node ids to platform identities.
//
// It wraps a Repository with a read-through cache keyed by node id. Misses
// are not cached, so an identity provisioned while the bridge runs is found
// on the node's next attempt. Writes go through the registry to keep the
// cache coherent.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]deviceclient.Identity
	cacheMu sync.RWMutex
	logger  Logger

	// gen changes on every write. A lookup only fills the cache if no write
	// happened while it read the repository.
	gen uint64
}

// NewRegistry creates a registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]deviceclient.Identity),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads every identity from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	ids, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading identities: %w", err)
	}

	cache := make(map[string]deviceclient.Identity, len(ids))
	for _, id := range ids {
		cache[id.NodeID] = id
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.gen++
	r.cacheMu.Unlock()

	r.logger.Info("identity cache refreshed", "count", len(ids))
	return nil
}

// LookupIdentity returns the identity registered for nodeID, or an error
// wrapping ErrNotFound.
func (r *Registry) LookupIdentity(ctx context.Context, nodeID string) (deviceclient.Identity, error) {
	r.cacheMu.RLock()
	id, ok := r.cache[nodeID]
	gen := r.gen
	r.cacheMu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := r.repo.Get(ctx, nodeID)
	if err != nil {
		return deviceclient.Identity{}, err
	}

	r.cacheMu.Lock()
	if r.gen == gen {
		r.cache[nodeID] = id
	}
	r.cacheMu.Unlock()

	return id, nil
}

// Register stores id and updates the cache.
func (r *Registry) Register(ctx context.Context, id deviceclient.Identity) error {
	if err := r.repo.Save(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[id.NodeID] = id
	r.gen++
	r.cacheMu.Unlock()

	r.logger.Info("identity registered", "node_id", id.NodeID, "device_id", id.DeviceID)
	return nil
}

// Unregister removes the identity for nodeID. Sessions already running keep
// their identity until they end.
func (r *Registry) Unregister(ctx context.Context, nodeID string) error {
	if err := r.repo.Delete(ctx, nodeID); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, nodeID)
	r.gen++
	r.cacheMu.Unlock()

	r.logger.Info("identity unregistered", "node_id", nodeID)
	return nil
}

// Count returns the number of cached identities.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// List returns every stored identity ordered by node id.
func (r *Registry) List(ctx context.Context) ([]deviceclient.Identity, error) {
	return r.repo.List(ctx)
}
