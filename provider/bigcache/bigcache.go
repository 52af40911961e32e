// Package bigcache is a shared-memory layercache provider backed by allegro/bigcache.
//
// bigcache only knows a global LifeWindow, so every entry is framed with its
// own absolute expiry and checked on read.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/layercache/internal/wire"
	pr "github.com/unkn0wn-root/layercache/provider"
)

type Provider struct {
	c   *bc.BigCache
	now func() time.Time
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	LifeWindow         time.Duration // upper bound for any entry; 0 => 24h
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	Shards             int // power of two; 0 => bigcache default
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 24 * time.Hour
	}
	conf := bc.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, now: time.Now}, nil
}

func (p *Provider) Get(_ context.Context, key string) (pr.Entry, bool, error) {
	raw, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return pr.Entry{}, false, nil
	}
	if err != nil {
		return pr.Entry{}, false, err
	}
	exp, b, err := wire.DecodeEntry(raw)
	if err != nil {
		// not written by us, or torn; drop it
		_ = p.c.Delete(key)
		return pr.Entry{}, false, nil
	}
	e := pr.Entry{Value: b, ExpiresAt: exp}
	if e.Expired(p.now()) {
		_ = p.c.Delete(key)
		return pr.Entry{}, false, nil
	}
	return e, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, expiresAt time.Time) (bool, error) {
	if _, live := pr.TTL(expiresAt, p.now()); !live {
		return true, p.Del(ctx, key)
	}
	if err := p.c.Set(key, wire.EncodeEntry(expiresAt, value)); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Provider) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

func (p *Provider) Clear(_ context.Context) error {
	return p.c.Reset()
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
