package layercache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	c "github.com/unkn0wn-root/layercache/codec"
	pr "github.com/unkn0wn-root/layercache/provider"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memProvider struct {
	clock *fakeClock
	m     map[string]pr.Entry
	calls map[string]int
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider(clock *fakeClock) *memProvider {
	return &memProvider{clock: clock, m: make(map[string]pr.Entry), calls: make(map[string]int)}
}

func (p *memProvider) Get(_ context.Context, key string) (pr.Entry, bool, error) {
	p.calls["get"]++
	e, ok := p.m[key]
	if !ok {
		return pr.Entry{}, false, nil
	}
	if e.Expired(p.clock.Now()) {
		delete(p.m, key)
		return pr.Entry{}, false, nil
	}
	return e, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, exp time.Time) (bool, error) {
	p.calls["set"]++
	p.m[key] = pr.Entry{Value: value, ExpiresAt: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.calls["del"]++
	delete(p.m, key)
	return nil
}

func (p *memProvider) Has(ctx context.Context, key string) (bool, error) {
	p.calls["has"]++
	e, ok := p.m[key]
	return ok && !e.Expired(p.clock.Now()), nil
}

func (p *memProvider) Clear(_ context.Context) error {
	p.calls["clear"]++
	p.m = make(map[string]pr.Entry)
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) total() int {
	n := 0
	for _, v := range p.calls {
		n += v
	}
	return n
}

// failingProvider errors on every operation.
type failingProvider struct{ err error }

var _ pr.Provider = (*failingProvider)(nil)

func (p *failingProvider) Get(context.Context, string) (pr.Entry, bool, error) {
	return pr.Entry{}, false, p.err
}
func (p *failingProvider) Set(context.Context, string, []byte, time.Time) (bool, error) {
	return false, p.err
}
func (p *failingProvider) Del(context.Context, string) error         { return p.err }
func (p *failingProvider) Has(context.Context, string) (bool, error) { return false, p.err }
func (p *failingProvider) Clear(context.Context) error               { return p.err }
func (p *failingProvider) Close(context.Context) error               { return p.err }

// rejectingProvider refuses every write without error.
type rejectingProvider struct{ *memProvider }

func (p *rejectingProvider) Set(context.Context, string, []byte, time.Time) (bool, error) {
	return false, nil
}

type recordingHooks struct {
	NopHooks
	hits      []int
	misses    int
	populated []int
	faults    []string
	rejected  []string
	healed    []string
}

func (h *recordingHooks) LayerHit(_ string, i int)         { h.hits = append(h.hits, i) }
func (h *recordingHooks) Miss()                            { h.misses++ }
func (h *recordingHooks) Populated(_ string, i int)        { h.populated = append(h.populated, i) }
func (h *recordingHooks) LayerFault(l, op string, _ error) { h.faults = append(h.faults, l+":"+op) }
func (h *recordingHooks) SetRejected(l, _ string)          { h.rejected = append(h.rejected, l) }
func (h *recordingHooks) SelfHeal(l, _, _ string)          { h.healed = append(h.healed, l) }

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestCache[V any](t *testing.T, layers []Layer, optsOpt func(*Options[V])) *cache[V] {
	t.Helper()
	opts := Options[V]{
		Namespace: "test:",
		Layers:    layers,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New[V](opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	impl, ok := cc.(*cache[V])
	if !ok {
		t.Fatalf("unexpected concrete type for Cache")
	}
	return impl
}

func withClock[V any](clock *fakeClock) func(*Options[V]) {
	return func(o *Options[V]) { o.Clock = clock.Now }
}

// ==============================
// Construction
// ==============================

func TestNewRequiresLayers(t *testing.T) {
	_, err := New[string](Options[string]{})
	if !errors.Is(err, ErrNoLayers) || !errors.Is(err, ErrConfig) {
		t.Fatalf("want ErrNoLayers/ErrConfig, got %v", err)
	}
}

func TestNewRejectsBadLayers(t *testing.T) {
	clock := newFakeClock()

	_, err := New[string](Options[string]{Layers: []Layer{Anonymous(nil)}})
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Index != 0 || !errors.Is(err, ErrConfig) {
		t.Fatalf("nil provider: got %v", err)
	}

	_, err = New[string](Options[string]{Layers: []Layer{
		Named("memory", newMemProvider(clock)),
		Named("memory", newMemProvider(clock)),
	}})
	if !errors.As(err, &ce) || ce.Index != 1 {
		t.Fatalf("duplicate name: got %v", err)
	}
}

// ==============================
// Read / write basics
// ==============================

func TestSetThenGet(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l0, l1 := newMemProvider(clock), newMemProvider(clock)
	cc := newTestCache[user](t, []Layer{Anonymous(l0), Anonymous(l1)}, withClock[user](clock))

	v := user{ID: "1", Name: "Ada"}
	if ok, err := cc.Set(ctx, "u:1", v, 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	got, ok, err := cc.Get(ctx, "u:1")
	if err != nil || !ok || got != v {
		t.Fatalf("Get: ok=%v err=%v got=%v", ok, err, got)
	}

	k, _ := cc.StorageKey("u:1")
	for i, p := range []*memProvider{l0, l1} {
		if _, ok := p.m[k]; !ok {
			t.Fatalf("layer %d missing broadcast write", i)
		}
	}
}

func TestMissReturnsDefault(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	h := &recordingHooks{}
	cc := newTestCache[string](t, []Layer{Anonymous(newMemProvider(clock))}, func(o *Options[string]) {
		o.Hooks = h
	})

	if _, ok, err := cc.Get(ctx, "nope"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if got, err := cc.GetOr(ctx, "nope", "D"); err != nil || got != "D" {
		t.Fatalf("GetOr: got %q err=%v", got, err)
	}
	if h.misses != 2 {
		t.Fatalf("misses=%d want 2", h.misses)
	}
}

// A stored value equal to the caller's default is still a hit.
func TestStoredDefaultIsHit(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l0, l1 := newMemProvider(clock), newMemProvider(clock)
	cc := newTestCache[int](t, []Layer{Anonymous(l0), Anonymous(l1)}, nil)

	k, _ := cc.StorageKey("zero")
	b, _ := c.NewValue[int]().Encode(0)
	l1.m[k] = pr.Entry{Value: b}

	got, ok, err := cc.Get(ctx, "zero")
	if err != nil || !ok || got != 0 {
		t.Fatalf("got=%v ok=%v err=%v", got, ok, err)
	}
	if _, ok := l0.m[k]; !ok {
		t.Fatalf("hit equal to default must still populate layer 0")
	}
}

// ==============================
// Write-through population
// ==============================

func TestWriteThroughPopulation(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l0, l1, l2 := newMemProvider(clock), newMemProvider(clock), newMemProvider(clock)
	h := &recordingHooks{}
	cc := newTestCache[string](t, []Layer{Anonymous(l0), Anonymous(l1), Anonymous(l2)}, func(o *Options[string]) {
		o.Hooks = h
		o.Clock = clock.Now
	})

	k, _ := cc.StorageKey("deep")
	b, _ := c.NewValue[string]().Encode("V")
	l2.m[k] = pr.Entry{Value: b, ExpiresAt: clock.Now().Add(time.Minute)}

	got, ok, err := cc.Get(ctx, "deep")
	if err != nil || !ok || got != "V" {
		t.Fatalf("Get: got=%q ok=%v err=%v", got, ok, err)
	}

	for i, p := range []*memProvider{l0, l1} {
		e, ok := p.m[k]
		if !ok {
			t.Fatalf("layer %d was not populated", i)
		}
		if !e.ExpiresAt.IsZero() {
			t.Fatalf("layer %d: population must not carry expiry by default, got %v", i, e.ExpiresAt)
		}
	}
	// population runs from the hit layer backwards
	if len(h.populated) != 2 || h.populated[0] != 1 || h.populated[1] != 0 {
		t.Fatalf("populated order=%v want [1 0]", h.populated)
	}
	if len(h.hits) != 1 || h.hits[0] != 2 {
		t.Fatalf("hits=%v want [2]", h.hits)
	}

	// the source entry expires; the populated copies do not
	clock.Advance(2 * time.Minute)
	if ok, _ := cc.Has(ctx, "deep"); !ok {
		t.Fatalf("populated entries should outlive the source expiry")
	}
}

func TestPopulateInheritExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l0, l1 := newMemProvider(clock), newMemProvider(clock)
	cc := newTestCache[string](t, []Layer{Anonymous(l0), Anonymous(l1)}, func(o *Options[string]) {
		o.Clock = clock.Now
		o.Population = PopulateInheritExpiry
	})

	k, _ := cc.StorageKey("k")
	exp := clock.Now().Add(time.Minute)
	b, _ := c.NewValue[string]().Encode("v")
	l1.m[k] = pr.Entry{Value: b, ExpiresAt: exp}

	if _, ok, _ := cc.Get(ctx, "k"); !ok {
		t.Fatalf("expected hit")
	}
	if got := l0.m[k].ExpiresAt; !got.Equal(exp) {
		t.Fatalf("inherited expiry=%v want %v", got, exp)
	}

	clock.Advance(2 * time.Minute)
	if ok, _ := cc.Has(ctx, "k"); ok {
		t.Fatalf("inherited entries should expire with the source")
	}
}

// Layers [Memory, Database]; Database holds u1 -> Bob, Memory is empty.
func TestMemoryDatabaseScenario(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	memory, database := newMemProvider(clock), newMemProvider(clock)
	cc := newTestCache[string](t, []Layer{Named("memory", memory), Named("database", database)}, nil)

	k, _ := cc.StorageKey("u1")
	// written by something other than layercache: plain text, no envelope
	database.m[k] = pr.Entry{Value: []byte("Bob")}

	got, ok, err := cc.Get(ctx, "u1")
	if err != nil || !ok || got != "Bob" {
		t.Fatalf("Get: got=%q ok=%v err=%v", got, ok, err)
	}

	mem, err := cc.Layer("memory")
	if err != nil {
		t.Fatal(err)
	}
	if has, _ := mem.Has(ctx, k); !has {
		t.Fatalf("memory layer should hold u1 after population")
	}
	e, ok, _ := mem.Get(ctx, k)
	if !ok || string(e.Value) != "Bob" {
		t.Fatalf("memory layer value=%q ok=%v", e.Value, ok)
	}
}

// ==============================
// Delete / Clear / Has
// ==============================

func TestDeleteAndHas(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l0, l1 := newMemProvider(clock), newMemProvider(clock)
	cc := newTestCache[string](t, []Layer{Anonymous(l0), Anonymous(l1)}, nil)

	_, _ = cc.Set(ctx, "k", "v", 0)
	if ok, _ := cc.Has(ctx, "k"); !ok {
		t.Fatalf("Has after Set should be true")
	}
	if ok, err := cc.Delete(ctx, "k"); err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if ok, _ := cc.Has(ctx, "k"); ok {
		t.Fatalf("Has after Delete should be false")
	}
	for _, d := range []string{"", "D", "other"} {
		if got, _ := cc.GetOr(ctx, "k", d); got != d {
			t.Fatalf("GetOr after Delete: got %q want %q", got, d)
		}
	}
	// deleting an absent key is not a failure
	if ok, _ := cc.Delete(ctx, "never-set"); !ok {
		t.Fatalf("Delete of absent key should be true")
	}
}

func TestHasShortCircuits(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l0, l1 := newMemProvider(clock), newMemProvider(clock)
	cc := newTestCache[string](t, []Layer{Anonymous(l0), Anonymous(l1)}, nil)

	k, _ := cc.StorageKey("k")
	l0.m[k] = pr.Entry{Value: []byte("x")}
	if ok, _ := cc.Has(ctx, "k"); !ok {
		t.Fatalf("expected true")
	}
	if l1.calls["has"] != 0 {
		t.Fatalf("layer 1 consulted after layer 0 reported true")
	}

	delete(l0.m, k)
	l1.m[k] = pr.Entry{Value: []byte("x")}
	if ok, _ := cc.Has(ctx, "k"); !ok {
		t.Fatalf("expected true from layer 1")
	}
}

func TestClearEveryLayer(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l0, l1 := newMemProvider(clock), newMemProvider(clock)
	cc := newTestCache[string](t, []Layer{Anonymous(l0), Anonymous(l1)}, nil)

	keys := []string{"a", "b", "c"}
	for _, k := range keys {
		_, _ = cc.Set(ctx, k, "v-"+k, 0)
	}
	if !cc.Clear(ctx) {
		t.Fatalf("Clear should succeed")
	}
	for _, k := range keys {
		if ok, _ := cc.Has(ctx, k); ok {
			t.Fatalf("%q still present after Clear", k)
		}
		sk, _ := cc.StorageKey(k)
		for i, p := range cc.Layers() {
			if ok, _ := p.Has(ctx, sk); ok {
				t.Fatalf("%q still present in layer %d", k, i)
			}
		}
	}
}

// ==============================
// Multiple
// ==============================

func TestGetMultiple(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cc := newTestCache[string](t, []Layer{Anonymous(newMemProvider(clock))}, nil)

	_, _ = cc.Set(ctx, "K1", "V1", 0)
	_, _ = cc.Set(ctx, "K2", "V2", 0)

	got, err := cc.GetMultiple(ctx, []string{"K1", "K2", "K3"}, "D")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"K1": "V1", "K2": "V2", "K3": "D"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("got[%s]=%q want %q", k, got[k], v)
		}
	}
}

func TestSetAndDeleteMultiple(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l0, l1 := newMemProvider(clock), newMemProvider(clock)
	cc := newTestCache[int](t, []Layer{Anonymous(l0), Anonymous(l1)}, nil)

	ok, err := cc.SetMultiple(ctx, map[string]int{"a": 1, "b": 2, "c": 3}, 0)
	if err != nil || !ok {
		t.Fatalf("SetMultiple: ok=%v err=%v", ok, err)
	}
	if len(l0.m) != 3 || len(l1.m) != 3 {
		t.Fatalf("expected 3 entries per layer, got %d/%d", len(l0.m), len(l1.m))
	}

	ok, err = cc.DeleteMultiple(ctx, []string{"a", "c"})
	if err != nil || !ok {
		t.Fatalf("DeleteMultiple: ok=%v err=%v", ok, err)
	}
	got, _ := cc.GetMultiple(ctx, []string{"a", "b", "c"}, -1)
	if got["a"] != -1 || got["b"] != 2 || got["c"] != -1 {
		t.Fatalf("after DeleteMultiple got %v", got)
	}
}

func TestInvalidKeyTouchesNoLayer(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l0 := newMemProvider(clock)
	cc := newTestCache[string](t, []Layer{Anonymous(l0)}, nil)

	checks := map[string]func() error{
		"Get":    func() error { _, _, err := cc.Get(ctx, " "); return err },
		"GetOr":  func() error { _, err := cc.GetOr(ctx, "", "d"); return err },
		"Set":    func() error { _, err := cc.Set(ctx, "\t", "v", 0); return err },
		"Delete": func() error { _, err := cc.Delete(ctx, ""); return err },
		"Has":    func() error { _, err := cc.Has(ctx, "  "); return err },
		"GetMultiple": func() error {
			_, err := cc.GetMultiple(ctx, []string{"ok", ""}, "d")
			return err
		},
		"SetMultiple": func() error {
			_, err := cc.SetMultiple(ctx, map[string]string{"ok": "v", " ": "v"}, 0)
			return err
		},
		"DeleteMultiple": func() error {
			_, err := cc.DeleteMultiple(ctx, []string{"ok", "\n"})
			return err
		},
		"StorageKey": func() error { _, err := cc.StorageKey(""); return err },
	}
	for name, fn := range checks {
		if err := fn(); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("%s: want ErrInvalidKey, got %v", name, err)
		}
	}
	if n := l0.total(); n != 0 {
		t.Fatalf("provider touched %d times by invalid-key calls", n)
	}
}

// ==============================
// TTL
// ==============================

func TestNonPositiveTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cc := newTestCache[string](t, []Layer{Anonymous(newMemProvider(clock))}, withClock[string](clock))

	_, _ = cc.Set(ctx, "k", "v", -10*time.Second)
	_, _ = cc.Set(ctx, "absent", "v", 0)
	clock.Advance(365 * 24 * time.Hour)
	for _, k := range []string{"k", "absent"} {
		if ok, _ := cc.Has(ctx, k); !ok {
			t.Fatalf("%q expired; non-positive TTLs never expire", k)
		}
	}
}

func TestPositiveTTLExpires(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	p := newMemProvider(clock)
	cc := newTestCache[string](t, []Layer{Anonymous(p)}, withClock[string](clock))

	_, _ = cc.Set(ctx, "k", "v", 30*time.Second)
	k, _ := cc.StorageKey("k")
	if want := clock.Now().Add(30 * time.Second); !p.m[k].ExpiresAt.Equal(want) {
		t.Fatalf("expiry=%v want %v", p.m[k].ExpiresAt, want)
	}
	clock.Advance(31 * time.Second)
	if ok, _ := cc.Has(ctx, "k"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestDefaultTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	p := newMemProvider(clock)
	cc := newTestCache[string](t, []Layer{Anonymous(p)}, func(o *Options[string]) {
		o.Clock = clock.Now
		o.DefaultTTL = time.Minute
	})

	_, _ = cc.Set(ctx, "dflt", "v", 0)
	_, _ = cc.Set(ctx, "forever", "v", -1)
	clock.Advance(2 * time.Minute)
	if ok, _ := cc.Has(ctx, "dflt"); ok {
		t.Fatalf("ttl=0 should use DefaultTTL")
	}
	if ok, _ := cc.Has(ctx, "forever"); !ok {
		t.Fatalf("negative ttl must never expire, even with DefaultTTL")
	}
}

// ==============================
// Partial failure
// ==============================

func TestSetContinuesPastFailingLayer(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l0, l2 := newMemProvider(clock), newMemProvider(clock)
	h := &recordingHooks{}
	cc := newTestCache[string](t, []Layer{
		Anonymous(l0),
		Named("broken", &failingProvider{err: errors.New("down")}),
		Anonymous(l2),
	}, func(o *Options[string]) { o.Hooks = h })

	ok, err := cc.Set(ctx, "k", "v", 0)
	if err != nil {
		t.Fatalf("provider faults must not surface: %v", err)
	}
	if ok {
		t.Fatalf("aggregate must be false when one layer fails")
	}
	k, _ := cc.StorageKey("k")
	if _, ok := l0.m[k]; !ok {
		t.Fatalf("layer 0 missing write")
	}
	if _, ok := l2.m[k]; !ok {
		t.Fatalf("layer 2 missing write; broadcast stopped at the failing layer")
	}
	if len(h.faults) != 1 || h.faults[0] != "broken:set" {
		t.Fatalf("faults=%v", h.faults)
	}

	if ok, _ := cc.Delete(ctx, "k"); ok {
		t.Fatalf("Delete aggregate must be false")
	}
	if _, ok := l2.m[k]; ok {
		t.Fatalf("Delete did not reach layer 2")
	}
	if cc.Clear(ctx) {
		t.Fatalf("Clear aggregate must be false")
	}
}

func TestGetSkipsFaultyLayer(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l1 := newMemProvider(clock)
	cc := newTestCache[string](t, []Layer{Anonymous(&failingProvider{err: errors.New("down")}), Anonymous(l1)}, nil)

	k, _ := cc.StorageKey("k")
	b, _ := c.NewValue[string]().Encode("v")
	l1.m[k] = pr.Entry{Value: b}

	got, ok, err := cc.Get(ctx, "k")
	if err != nil || !ok || got != "v" {
		t.Fatalf("got=%q ok=%v err=%v", got, ok, err)
	}
	if ok, err := cc.Has(ctx, "k"); err != nil || !ok {
		t.Fatalf("Has should skip the faulty layer: ok=%v err=%v", ok, err)
	}
}

func TestSetRejected(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	h := &recordingHooks{}
	cc := newTestCache[string](t, []Layer{
		Named("full", &rejectingProvider{newMemProvider(clock)}),
		Anonymous(newMemProvider(clock)),
	}, func(o *Options[string]) { o.Hooks = h })

	if ok, _ := cc.Set(ctx, "k", "v", 0); ok {
		t.Fatalf("rejected write must make the aggregate false")
	}
	if len(h.rejected) != 1 || h.rejected[0] != "full" {
		t.Fatalf("rejected=%v", h.rejected)
	}
}

func TestSelfHealOnUndecodable(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l0, l1 := newMemProvider(clock), newMemProvider(clock)
	h := &recordingHooks{}
	cc := newTestCache[int](t, []Layer{Anonymous(l0), Anonymous(l1)}, func(o *Options[int]) { o.Hooks = h })

	k, _ := cc.StorageKey("n")
	l0.m[k] = pr.Entry{Value: []byte("not-an-int")}
	good, _ := c.NewValue[int]().Encode(7)
	l1.m[k] = pr.Entry{Value: good}

	got, ok, err := cc.Get(ctx, "n")
	if err != nil || !ok || got != 7 {
		t.Fatalf("got=%v ok=%v err=%v", got, ok, err)
	}
	if len(h.healed) != 1 || h.healed[0] != "#0" {
		t.Fatalf("healed=%v", h.healed)
	}
	// layer 0 now holds the good value again via population
	if e := l0.m[k]; string(e.Value) != string(good) {
		t.Fatalf("layer 0 not repaired: %q", e.Value)
	}
}

func TestEncodeErrorTouchesNoLayer(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	p := newMemProvider(clock)
	cc := newTestCache[chan int](t, []Layer{Anonymous(p)}, nil)

	if ok, err := cc.Set(ctx, "ch", make(chan int), 0); err == nil || ok {
		t.Fatalf("expected encode error, ok=%v err=%v", ok, err)
	}
	if p.calls["set"] != 0 {
		t.Fatalf("provider written despite encode failure")
	}
}

// ==============================
// Layer addressing
// ==============================

func TestLayerByName(t *testing.T) {
	clock := newFakeClock()
	memory, db := newMemProvider(clock), newMemProvider(clock)
	anon := newMemProvider(clock)
	cc := newTestCache[string](t, []Layer{Named("memory", memory), Anonymous(anon), Named("db", db)}, nil)

	got, err := cc.Layer("memory")
	if err != nil || got != pr.Provider(memory) {
		t.Fatalf("Layer(memory) = %v, %v", got, err)
	}
	if got, _ := cc.Layer("db"); got != pr.Provider(db) {
		t.Fatalf("Layer(db) returned a different instance")
	}

	_, err = cc.Layer("bogus")
	var ule *UnknownLayerError
	if !errors.As(err, &ule) || !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("want UnknownLayerError, got %v", err)
	}
	if errors.Is(err, ErrNoNamedLayers) {
		t.Fatalf("named layers exist; must not report ErrNoNamedLayers")
	}
	if len(ule.Known) != 2 || ule.Known[0] != "db" || ule.Known[1] != "memory" {
		t.Fatalf("Known=%v", ule.Known)
	}

	layers := cc.Layers()
	if len(layers) != 3 || layers[0] != pr.Provider(memory) || layers[1] != pr.Provider(anon) || layers[2] != pr.Provider(db) {
		t.Fatalf("Layers() not positional")
	}
}

func TestLayerWithoutNames(t *testing.T) {
	clock := newFakeClock()
	cc := newTestCache[string](t, []Layer{Anonymous(newMemProvider(clock))}, nil)

	_, err := cc.Layer("memory")
	if !errors.Is(err, ErrNoNamedLayers) || !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("want ErrNoNamedLayers, got %v", err)
	}
}

func TestNamespacesIsolate(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	shared := newMemProvider(clock)
	users := newTestCache[string](t, []Layer{Anonymous(shared)}, func(o *Options[string]) { o.Namespace = "user:" })
	orders := newTestCache[string](t, []Layer{Anonymous(shared)}, func(o *Options[string]) { o.Namespace = "order:" })

	_, _ = users.Set(ctx, "1", "ada", 0)
	if ok, _ := orders.Has(ctx, "1"); ok {
		t.Fatalf("namespaces leaked into each other")
	}
}

func TestCloseJoinsErrors(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	boom := errors.New("close failed")
	cc := newTestCache[string](t, []Layer{Anonymous(newMemProvider(clock)), Named("bad", &failingProvider{err: boom})}, nil)

	err := cc.Close(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("want joined close error, got %v", err)
	}
}
