// Package ristretto is an in-process layercache provider backed by dgraph-io/ristretto.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/layercache/provider"
)

type item struct {
	b   []byte
	exp time.Time
}

type Provider struct {
	c     *rc.Cache
	async bool
	now   func() time.Time
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Async skips waiting for ristretto's write buffer after Set.
	// A Get issued right after Set may then miss.
	Async bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, async: cfg.Async, now: time.Now}, nil
}

func (p *Provider) lookup(key string) (item, bool) {
	v, ok := p.c.Get(key)
	if !ok {
		return item{}, false
	}
	it, ok := v.(item)
	if !ok {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return item{}, false
	}
	if !it.exp.IsZero() && !p.now().Before(it.exp) {
		p.c.Del(key)
		return item{}, false
	}
	return it, true
}

func (p *Provider) Get(_ context.Context, key string) (pr.Entry, bool, error) {
	it, ok := p.lookup(key)
	if !ok {
		return pr.Entry{}, false, nil
	}
	return pr.Entry{Value: it.b, ExpiresAt: it.exp}, true, nil
}

// Set costs each entry by its byte length. ok=false means ristretto dropped
// the write (full buffer, or admission policy once the buffer is drained).
// In Async mode admission is not confirmed.
func (p *Provider) Set(_ context.Context, key string, value []byte, expiresAt time.Time) (bool, error) {
	ttl, live := pr.TTL(expiresAt, p.now())
	if !live {
		p.c.Del(key)
		return true, nil
	}
	if !p.c.SetWithTTL(key, item{b: value, exp: expiresAt}, int64(len(value)), ttl) {
		return false, nil
	}
	if p.async {
		return true, nil
	}
	p.c.Wait()
	_, ok := p.c.Get(key)
	return ok, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Has(_ context.Context, key string) (bool, error) {
	_, ok := p.lookup(key)
	return ok, nil
}

func (p *Provider) Clear(_ context.Context) error {
	p.c.Clear()
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Helper to expose metrics if desired by the application (not part of provider.Provider).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
