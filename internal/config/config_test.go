package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/layercache"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Len(t, cfg.Layers, 1)
	assert.Equal(t, "memory", cfg.Layers[0].Name)
	assert.Equal(t, TypeRistretto, cfg.Layers[0].Type)
	assert.Equal(t, "no_expiry", cfg.Population)
}

func TestYAMLThenEnv(t *testing.T) {
	path := writeFile(t, "layercache.yaml", `
namespace: "user:"
default_ttl: 90s
population: inherit
log:
  backend: zap
  level: debug
layers:
  - name: memory
    type: bigcache
    bigcache:
      life_window: 10m
      shards: 16
  - name: shared
    type: redis
    redis:
      addr: localhost:6379
      prefix: "app:"
`)
	t.Setenv("LAYERCACHE_NAMESPACE", "order:")
	t.Setenv("LAYERCACHE_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("LAYERCACHE_DEFAULT_TTL", "not-a-duration")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "order:", cfg.Namespace, "env overrides yaml")
	assert.Equal(t, 90*time.Second, cfg.DefaultTTL, "unparsable env keeps yaml value")
	assert.Equal(t, "inherit", cfg.Population)
	assert.Equal(t, "zap", cfg.Log.Backend)
	assert.Equal(t, "text", cfg.Log.Format, "defaults survive a partial yaml block")
	require.Len(t, cfg.Layers, 2, "yaml layers replace the default stack")
	assert.Equal(t, 10*time.Minute, cfg.Layers[0].BigCache.LifeWindow)
	assert.Equal(t, "redis.internal:6380", cfg.Layers[1].Redis.Addr)
	assert.Equal(t, "app:", cfg.Layers[1].Redis.Prefix)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown type":   "layers:\n  - type: memcached\n",
		"duplicate name": "layers:\n  - {name: a, type: ristretto}\n  - {name: a, type: bigcache}\n",
		"missing addr":   "layers:\n  - type: redis\n",
		"missing bucket": "layers:\n  - type: natskv\n    nats: {url: 'nats://x'}\n",
		"bad population": "population: sometimes\n",
		"empty layers":   "layers: []\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(writeFile(t, "c.yaml", body))
			assert.Error(t, err)
		})
	}
}

func TestDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "LAYERCACHE_TEST_DOTENV=from-file\n")
	t.Setenv("LAYERCACHE_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("LAYERCACHE_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("LAYERCACHE_TEST_DOTENV"))
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestBuildStack(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := &Config{
		Namespace: "t:",
		Layers: []Layer{
			{Name: "memory", Type: TypeRistretto},
			{Type: TypeBigCache},
			{Name: "redis", Type: TypeRedis, Redis: Redis{Addr: mr.Addr()}},
			{Name: "db", Type: TypeSQLite, SQLite: SQLite{Path: "file:buildstack?mode=memory&cache=shared"}},
		},
		Population: "inherit",
	}
	s, err := Build(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.Len(t, s.Layers, 4)
	assert.Equal(t, "", s.Layers[1].Name)

	opts := CacheOptions[string](cfg, s, nil)
	assert.Equal(t, layercache.PopulateInheritExpiry, opts.Population)

	cache, err := layercache.New[string](opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close(ctx) })

	ok, err := cache.Set(ctx, "k", "v", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, name := range []string{"memory", "redis", "db"} {
		p, err := cache.Layer(name)
		require.NoError(t, err)
		k, _ := cache.StorageKey("k")
		has, err := p.Has(ctx, k)
		require.NoError(t, err)
		assert.True(t, has, "layer %s missing broadcast write", name)
	}
}

func TestBuildFailureIsReported(t *testing.T) {
	cfg := &Config{Layers: []Layer{
		{Name: "memory", Type: TypeRistretto},
		{Name: "nats", Type: TypeNATS, NATS: NATS{URL: "nats://127.0.0.1:1", Bucket: "b"}},
	}}
	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layers[1] (natskv)")
}

func TestNewLogger(t *testing.T) {
	for _, backend := range []string{"slog", "logrus", "zap"} {
		t.Run(backend, func(t *testing.T) {
			var buf bytes.Buffer
			l, flush, err := NewLogger(Log{Backend: backend, Level: "warn", Format: "json"}, &buf)
			require.NoError(t, err)

			l.Info("quiet", nil)
			l.Warn("loud", layercache.Fields{"layer": "memory"})
			flush()

			out := buf.String()
			assert.NotContains(t, out, "quiet")
			assert.Contains(t, out, "loud")
			assert.True(t, strings.Contains(out, `"layer":"memory"`), "json output: %s", out)
		})
	}

	_, _, err := NewLogger(Log{Backend: "syslog"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, _, err = NewLogger(Log{Backend: "zap", Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}
