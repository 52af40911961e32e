// Package layercache implements a unified cache facade over an ordered set of
// heterogeneous key-value layers (in-process, shared-memory, remote, durable).
//
// Components:
//   - Provider: primitive byte store with absolute expiries (ristretto, bigcache,
//     redis, NATS KV, gorm, postgres). Layer 0 is the fastest.
//   - Codec[V]: (de)serializes V <-> []byte. The default codec.Value[V] wraps each
//     payload in a tagged envelope (string / JSON / msgpack / CBOR).
//   - Logger and Hooks: observability for absorbed layer faults.
//
// Keys:
//
//	<ns><hex(sha256(key))> - every logical key, in every layer
//
// Reads cascade from layer 0 downwards. The first layer holding the key wins
// and the stored bytes are copied into every faster layer (write-through
// population). Set, Delete and Clear are broadcast to every layer, continuing
// past failures; the result is true only if every layer succeeded.
//
//	cache, _ := layercache.New[User](layercache.Options[User]{
//	    Namespace: "user:",
//	    Layers: []layercache.Layer{
//	        layercache.Named("memory", ristrettoProvider),
//	        layercache.Named("redis", redisProvider),
//	        layercache.Named("db", gormProvider),
//	    },
//	})
//	u, ok, err := cache.Get(ctx, "u1")
package layercache
