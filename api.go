package layercache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/layercache/codec"
	pr "github.com/unkn0wn-root/layercache/provider"
)

// Cache is the layered, provider-agnostic cache API.
// V is the caller's value type. Serialization is handled by a pluggable Codec[V].
//
// The only errors returned are ErrInvalidKey and codec encode failures.
// Provider faults are absorbed: reads treat them as misses, writes as false.
type Cache[V any] interface {
	// Single
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	GetOr(ctx context.Context, key string, def V) (V, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	Has(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) bool

	// Multiple (per-key loops over the single operations)
	GetMultiple(ctx context.Context, keys []string, def V) (map[string]V, error)
	SetMultiple(ctx context.Context, items map[string]V, ttl time.Duration) (bool, error)
	DeleteMultiple(ctx context.Context, keys []string) (bool, error)

	// Layers
	Layer(name string) (pr.Provider, error)
	Layers() []pr.Provider
	StorageKey(key string) (string, error)

	Close(context.Context) error
}

// Layer binds a provider to an optional logical name.
// Position in Options.Layers is its priority: index 0 is read first.
type Layer struct {
	Name     string
	Provider pr.Provider
}

// Named returns a layer addressable through Cache.Layer(name).
func Named(name string, p pr.Provider) Layer { return Layer{Name: name, Provider: p} }

// Anonymous returns a layer reachable only positionally.
func Anonymous(p pr.Provider) Layer { return Layer{Provider: p} }

// PopulatePolicy decides the expiry of entries copied into faster layers on a
// lower-layer hit.
type PopulatePolicy int

const (
	// PopulateNoExpiry writes population entries without expiry. They live until
	// overwritten, deleted, cleared or evicted by the layer itself.
	PopulateNoExpiry PopulatePolicy = iota
	// PopulateInheritExpiry copies the source entry's expiry, when the source
	// layer reports one.
	PopulateInheritExpiry
)

// Options tune the behavior of the layered cache.
// Only Layers is required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Layers []Layer // ordered fastest -> slowest

	Namespace  string         // prefix isolating this keyspace, e.g. "user:"; may be empty
	Codec      c.Codec[V]     // nil => codec.NewValue[V]()
	Logger     Logger         // if nil, NopLogger is used
	Hooks      Hooks          // if nil, NopHooks is used
	DefaultTTL time.Duration  // applied when Set is called with ttl == 0; 0 => never expires
	Population PopulatePolicy // default PopulateNoExpiry
	Clock      func() time.Time
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
