// Package redis is a remote layercache provider backed by go-redis.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/layercache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

const (
	DefaultPrefix    = "layercache:"
	defaultScanCount = 500
)

type Redis struct {
	rdb         goredis.UniversalClient
	prefix      string
	scanCount   int64
	closeClient bool
	now         func() time.Time
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client goredis.UniversalClient
	// Prefix scopes every key this provider writes. Clear removes exactly the
	// keys under it. Empty => DefaultPrefix.
	Prefix      string
	ScanCount   int64 // SCAN COUNT hint for Clear; 0 => 500
	CloseClient bool  // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	p := &Redis{
		rdb:         cfg.Client,
		prefix:      cfg.Prefix,
		scanCount:   cfg.ScanCount,
		closeClient: cfg.CloseClient,
		now:         time.Now,
	}
	if p.prefix == "" {
		p.prefix = DefaultPrefix
	}
	if p.scanCount <= 0 {
		p.scanCount = defaultScanCount
	}
	return p, nil
}

func (p *Redis) key(k string) string { return p.prefix + k }

// Get reads the value and its remaining TTL in one round trip.
func (p *Redis) Get(ctx context.Context, key string) (pr.Entry, bool, error) {
	k := p.key(key)
	var (
		get *goredis.StringCmd
		ttl *goredis.DurationCmd
	)
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		get = pipe.Get(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return pr.Entry{}, false, err // transport/server error
	}
	b, err := get.Bytes()
	if errors.Is(err, goredis.Nil) {
		return pr.Entry{}, false, nil // miss
	}
	if err != nil {
		return pr.Entry{}, false, err
	}
	e := pr.Entry{Value: b}
	// -1 => no expiry, -2 => gone between the two commands
	if d := ttl.Val(); d > 0 {
		e.ExpiresAt = p.now().Add(d)
	}
	return e, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, expiresAt time.Time) (bool, error) {
	ttl, live := pr.TTL(expiresAt, p.now())
	if !live {
		return true, p.Del(ctx, key)
	}
	// ttl == 0 is "no expiry" for go-redis
	if err := p.rdb.Set(ctx, p.key(key), value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, p.key(key)).Err()
}

func (p *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, p.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear deletes every key under the provider prefix using SCAN.
// Other keys in the same database are left alone.
func (p *Redis) Clear(ctx context.Context) error {
	var cursor uint64
	match := escapeGlob(p.prefix) + "*"
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, match, p.scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
