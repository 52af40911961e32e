package layercache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	c "github.com/unkn0wn-root/layercache/codec"
	"github.com/unkn0wn-root/layercache/internal/util"
	pr "github.com/unkn0wn-root/layercache/provider"
)

var errRejected = errors.New("layercache: write rejected by provider")

type layer struct {
	label string // name, or "#<index>" when anonymous
	p     pr.Provider
}

type cache[V any] struct {
	ns         string
	layers     []layer
	named      map[string]pr.Provider
	names      []string // sorted, for error messages
	codec      c.Codec[V]
	log        Logger
	hooks      Hooks
	defaultTTL time.Duration
	population PopulatePolicy
	now        func() time.Time
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if len(opts.Layers) == 0 {
		return nil, ErrNoLayers
	}

	cc := &cache[V]{
		ns:         opts.Namespace,
		layers:     make([]layer, 0, len(opts.Layers)),
		named:      make(map[string]pr.Provider),
		defaultTTL: opts.DefaultTTL,
		population: opts.Population,
		now:        opts.Clock,
	}

	for i, l := range opts.Layers {
		if l.Provider == nil {
			return nil, &ConfigError{Index: i, Reason: "provider is nil"}
		}
		label := "#" + strconv.Itoa(i)
		if l.Name != "" {
			if _, dup := cc.named[l.Name]; dup {
				return nil, &ConfigError{Index: i, Reason: fmt.Sprintf("duplicate layer name %q", l.Name)}
			}
			cc.named[l.Name] = l.Provider
			cc.names = append(cc.names, l.Name)
			label = l.Name
		}
		cc.layers = append(cc.layers, layer{label: label, p: l.Provider})
	}
	sort.Strings(cc.names)

	// defaults
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if opts.Codec != nil {
		cc.codec = opts.Codec
	} else {
		cc.codec = c.NewValue[V]()
	}
	if cc.now == nil {
		cc.now = time.Now
	}
	return cc, nil
}

func (cc *cache[V]) StorageKey(key string) (string, error) {
	k, err := util.StorageKey(cc.ns, key)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return k, nil
}

func (cc *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	k, err := cc.StorageKey(key)
	if err != nil {
		return zero, false, err
	}
	v, ok := cc.get(ctx, k)
	return v, ok, nil
}

func (cc *cache[V]) GetOr(ctx context.Context, key string, def V) (V, error) {
	v, ok, err := cc.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

// get cascades from layer 0 downwards and populates faster layers on a hit below 0.
func (cc *cache[V]) get(ctx context.Context, k string) (V, bool) {
	var zero V
	for i, l := range cc.layers {
		e, ok, err := l.p.Get(ctx, k)
		if err != nil {
			cc.fault(l, "get", k, err)
			continue
		}
		if !ok {
			continue
		}
		v, err := cc.codec.Decode(e.Value)
		if err != nil {
			cc.selfHeal(ctx, l, k, err)
			continue
		}
		cc.hooks.LayerHit(l.label, i)
		if i > 0 {
			cc.populate(ctx, k, e, i)
		}
		return v, true
	}
	cc.hooks.Miss()
	return zero, false
}

// populate copies the raw stored bytes into layers hit-1 .. 0.
// Failures are reported through logs and hooks only; the read already succeeded.
func (cc *cache[V]) populate(ctx context.Context, k string, src pr.Entry, hit int) {
	var exp time.Time
	if cc.population == PopulateInheritExpiry {
		exp = src.ExpiresAt
	}
	for i := hit - 1; i >= 0; i-- {
		l := cc.layers[i]
		ok, err := l.p.Set(ctx, k, src.Value, exp)
		switch {
		case err != nil:
			cc.fault(l, "set", k, err)
			cc.hooks.PopulateFailed(l.label, i, err)
		case !ok:
			cc.log.Debug("population rejected by provider (pressure)", Fields{"layer": l.label, "key": k})
			cc.hooks.PopulateFailed(l.label, i, errRejected)
		default:
			cc.hooks.Populated(l.label, i)
		}
	}
	cc.log.Debug("populated faster layers", Fields{"key": k, "from": cc.layers[hit].label, "count": hit})
}

func (cc *cache[V]) selfHeal(ctx context.Context, l layer, k string, cause error) {
	cc.log.Warn("dropping undecodable entry", Fields{"layer": l.label, "key": k, "err": cause})
	cc.hooks.SelfHeal(l.label, k, "value_decode")
	if err := l.p.Del(ctx, k); err != nil {
		cc.fault(l, "del", k, err)
	}
}

func (cc *cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) (bool, error) {
	k, err := cc.StorageKey(key)
	if err != nil {
		return false, err
	}
	b, err := cc.codec.Encode(value)
	if err != nil {
		return false, fmt.Errorf("layercache: encode %q: %w", key, err)
	}
	return cc.set(ctx, k, b, cc.expiresAt(ttl)), nil
}

func (cc *cache[V]) expiresAt(ttl time.Duration) time.Time {
	if ttl == 0 {
		ttl = cc.defaultTTL
	}
	return util.ExpiresAt(ttl, cc.now())
}

// set broadcasts to every layer; a failing layer does not stop the rest.
func (cc *cache[V]) set(ctx context.Context, k string, b []byte, exp time.Time) bool {
	all := true
	for _, l := range cc.layers {
		ok, err := l.p.Set(ctx, k, b, exp)
		if err != nil {
			cc.fault(l, "set", k, err)
			all = false
			continue
		}
		if !ok {
			cc.log.Debug("Set rejected by provider (pressure)", Fields{"layer": l.label, "key": k})
			cc.hooks.SetRejected(l.label, k)
			all = false
		}
	}
	return all
}

func (cc *cache[V]) Delete(ctx context.Context, key string) (bool, error) {
	k, err := cc.StorageKey(key)
	if err != nil {
		return false, err
	}
	return cc.del(ctx, k), nil
}

func (cc *cache[V]) del(ctx context.Context, k string) bool {
	all := true
	for _, l := range cc.layers {
		if err := l.p.Del(ctx, k); err != nil {
			cc.fault(l, "del", k, err)
			all = false
		}
	}
	return all
}

func (cc *cache[V]) Has(ctx context.Context, key string) (bool, error) {
	k, err := cc.StorageKey(key)
	if err != nil {
		return false, err
	}
	for _, l := range cc.layers {
		ok, err := l.p.Has(ctx, k)
		if err != nil {
			cc.fault(l, "has", k, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (cc *cache[V]) Clear(ctx context.Context) bool {
	all := true
	for _, l := range cc.layers {
		if err := l.p.Clear(ctx); err != nil {
			cc.fault(l, "clear", "", err)
			all = false
		}
	}
	cc.log.Info("cleared layers", Fields{"layers": len(cc.layers), "ok": all})
	return all
}

// storageKeys derives every key up front so an invalid key fails the whole
// call before any layer is touched.
func (cc *cache[V]) storageKeys(keys []string) ([]string, error) {
	out := make([]string, len(keys))
	for i, key := range keys {
		k, err := cc.StorageKey(key)
		if err != nil {
			return nil, err
		}
		out[i] = k
	}
	return out, nil
}

func (cc *cache[V]) GetMultiple(ctx context.Context, keys []string, def V) (map[string]V, error) {
	storage, err := cc.storageKeys(keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]V, len(keys))
	for i, key := range keys {
		if _, seen := out[key]; seen {
			continue
		}
		if v, ok := cc.get(ctx, storage[i]); ok {
			out[key] = v
		} else {
			out[key] = def
		}
	}
	return out, nil
}

func (cc *cache[V]) SetMultiple(ctx context.Context, items map[string]V, ttl time.Duration) (bool, error) {
	// stable iteration order keeps layer traffic deterministic
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	storage, err := cc.storageKeys(keys)
	if err != nil {
		return false, err
	}
	payloads := make([][]byte, len(keys))
	for i, key := range keys {
		b, err := cc.codec.Encode(items[key])
		if err != nil {
			return false, fmt.Errorf("layercache: encode %q: %w", key, err)
		}
		payloads[i] = b
	}

	exp := cc.expiresAt(ttl)
	all := true
	for i := range keys {
		if !cc.set(ctx, storage[i], payloads[i], exp) {
			all = false
		}
	}
	return all, nil
}

func (cc *cache[V]) DeleteMultiple(ctx context.Context, keys []string) (bool, error) {
	storage, err := cc.storageKeys(keys)
	if err != nil {
		return false, err
	}
	all := true
	for _, k := range storage {
		if !cc.del(ctx, k) {
			all = false
		}
	}
	return all, nil
}

func (cc *cache[V]) Layer(name string) (pr.Provider, error) {
	if p, ok := cc.named[name]; ok {
		return p, nil
	}
	return nil, &UnknownLayerError{Name: name, Known: append([]string(nil), cc.names...)}
}

func (cc *cache[V]) Layers() []pr.Provider {
	out := make([]pr.Provider, len(cc.layers))
	for i, l := range cc.layers {
		out[i] = l.p
	}
	return out
}

// Close closes every provider, best effort, and joins their errors.
func (cc *cache[V]) Close(ctx context.Context) error {
	var errs []error
	for _, l := range cc.layers {
		if err := l.p.Close(ctx); err != nil {
			cc.fault(l, "close", "", err)
			errs = append(errs, fmt.Errorf("layer %s: %w", l.label, err))
		}
	}
	return errors.Join(errs...)
}

func (cc *cache[V]) fault(l layer, op, k string, err error) {
	cc.log.Warn("layer fault absorbed", Fields{"layer": l.label, "op": op, "key": k, "err": err})
	cc.hooks.LayerFault(l.label, op, err)
}
