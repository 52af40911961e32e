// Package asynchook runs layercache hooks on a small worker pool so slow
// sinks never block cache calls. Events are dropped when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{HitEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := layercache.New[User](layercache.Options[User]{
//	    Namespace: "app:prod:user:",
//	    Layers:    []layercache.Layer{layercache.Named("memory", mem), layercache.Named("redis", rds)},
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/layercache"
)

type Hooks struct {
	inner   layercache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ layercache.Hooks = (*Hooks)(nil)

func New(inner layercache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = layercache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded on a full queue or after Close.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) LayerHit(l string, i int)  { h.try(func() { h.inner.LayerHit(l, i) }) }
func (h *Hooks) Miss()                     { h.try(h.inner.Miss) }
func (h *Hooks) Populated(l string, i int) { h.try(func() { h.inner.Populated(l, i) }) }
func (h *Hooks) PopulateFailed(l string, i int, err error) {
	h.try(func() { h.inner.PopulateFailed(l, i, err) })
}
func (h *Hooks) LayerFault(l, op string, err error) {
	h.try(func() { h.inner.LayerFault(l, op, err) })
}
func (h *Hooks) SetRejected(l, k string) { h.try(func() { h.inner.SetRejected(l, k) }) }
func (h *Hooks) SelfHeal(l, k, r string) { h.try(func() { h.inner.SelfHeal(l, k, r) }) }
