// Package natskv is a remote layercache provider backed by a NATS JetStream
// key-value bucket.
//
// JetStream KV only supports a bucket-wide TTL, so entries are framed with
// their own expiry. Storage keys are base64url-encoded because KV keys allow a
// restricted alphabet.
package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/unkn0wn-root/layercache/internal/wire"
	pr "github.com/unkn0wn-root/layercache/provider"
)

var ErrNilBucket = errors.New("natskv provider: nil bucket")

type Provider struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

var _ pr.Provider = (*Provider)(nil)

func New(kv jetstream.KeyValue) (*Provider, error) {
	if kv == nil {
		return nil, ErrNilBucket
	}
	return &Provider{kv: kv, now: time.Now}, nil
}

// Open creates or updates bucket on js and returns a provider over it.
func Open(ctx context.Context, js jetstream.JetStream, bucket string) (*Provider, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, err
	}
	return New(kv)
}

func encodeKey(k string) string { return base64.RawURLEncoding.EncodeToString([]byte(k)) }

func (p *Provider) Get(ctx context.Context, key string) (pr.Entry, bool, error) {
	k := encodeKey(key)
	ent, err := p.kv.Get(ctx, k)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return pr.Entry{}, false, nil
	}
	if err != nil {
		return pr.Entry{}, false, err
	}
	exp, b, err := wire.DecodeEntry(ent.Value())
	if err != nil {
		_ = p.kv.Purge(ctx, k)
		return pr.Entry{}, false, nil
	}
	e := pr.Entry{Value: b, ExpiresAt: exp}
	if e.Expired(p.now()) {
		_ = p.kv.Purge(ctx, k)
		return pr.Entry{}, false, nil
	}
	return e, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, expiresAt time.Time) (bool, error) {
	if _, live := pr.TTL(expiresAt, p.now()); !live {
		return true, p.Del(ctx, key)
	}
	if _, err := p.kv.Put(ctx, encodeKey(key), wire.EncodeEntry(expiresAt, value)); err != nil {
		return false, err
	}
	return true, nil
}

// Del purges the key so no delete marker history is kept.
func (p *Provider) Del(ctx context.Context, key string) error {
	err := p.kv.Purge(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (p *Provider) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

func (p *Provider) Clear(ctx context.Context) error {
	lister, err := p.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil
		}
		return err
	}
	defer func() { _ = lister.Stop() }()

	var errs []error
	for k := range lister.Keys() {
		if err := p.kv.Purge(ctx, k); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close is a no-op; the NATS connection belongs to the caller.
func (p *Provider) Close(context.Context) error { return nil }
