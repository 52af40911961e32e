package config

import (
	"context"
	"errors"
	"fmt"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/unkn0wn-root/layercache"
	pr "github.com/unkn0wn-root/layercache/provider"
	"github.com/unkn0wn-root/layercache/provider/bigcache"
	"github.com/unkn0wn-root/layercache/provider/gormstore"
	"github.com/unkn0wn-root/layercache/provider/natskv"
	"github.com/unkn0wn-root/layercache/provider/postgres"
	"github.com/unkn0wn-root/layercache/provider/redis"
	"github.com/unkn0wn-root/layercache/provider/ristretto"
)

// Stack is a built layer list plus the connections Build opened for it.
type Stack struct {
	Layers  []layercache.Layer
	closers []func() error
}

// Close releases connections that providers do not own (NATS, SQLite).
// Providers themselves are closed by the cache.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Build opens a provider for every configured layer, in order.
// On error everything opened so far is closed.
func Build(ctx context.Context, cfg *Config) (*Stack, error) {
	s := &Stack{}
	for i, lc := range cfg.Layers {
		p, err := s.open(ctx, lc)
		if err != nil {
			for _, l := range s.Layers {
				_ = l.Provider.Close(ctx)
			}
			_ = s.Close()
			return nil, fmt.Errorf("config build: layers[%d] (%s): %w", i, lc.Type, err)
		}
		if lc.Name != "" {
			s.Layers = append(s.Layers, layercache.Named(lc.Name, p))
		} else {
			s.Layers = append(s.Layers, layercache.Anonymous(p))
		}
	}
	return s, nil
}

func (s *Stack) open(ctx context.Context, lc Layer) (pr.Provider, error) {
	switch lc.Type {
	case TypeRistretto:
		r := lc.Ristretto
		return ristretto.New(ristretto.Config{
			NumCounters: coalesceInt(r.NumCounters, 1e5),
			MaxCost:     coalesceInt(r.MaxCost, 64<<20),
			BufferItems: coalesceInt(r.BufferItems, 64),
		})

	case TypeBigCache:
		b := lc.BigCache
		return bigcache.New(ctx, bigcache.Config{
			LifeWindow:         b.LifeWindow,
			Shards:             b.Shards,
			HardMaxCacheSizeMB: b.HardMaxCacheSizeMB,
		})

	case TypeRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     lc.Redis.Addr,
			Password: lc.Redis.Password,
			DB:       lc.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping: %w", err)
		}
		return redis.New(redis.Config{Client: rdb, Prefix: lc.Redis.Prefix, CloseClient: true})

	case TypeNATS:
		nc, err := nats.Connect(lc.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, err
		}
		p, err := natskv.Open(ctx, js, lc.NATS.Bucket)
		if err != nil {
			nc.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() error { nc.Close(); return nil })
		return p, nil

	case TypeSQLite:
		db, err := gorm.Open(gormsqlite.Open(lc.SQLite.Path), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		p, err := gormstore.New(ctx, gormstore.Config{DB: db, Table: lc.SQLite.Table, AutoMigrate: true})
		if err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		s.closers = append(s.closers, sqlDB.Close)
		return p, nil

	case TypePostgres:
		pool, err := postgres.NewPool(ctx, lc.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		p, err := postgres.New(ctx, postgres.Config{
			Pool:        pool,
			Table:       lc.Postgres.Table,
			CreateTable: true,
			ClosePool:   true,
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown layer type %q", lc.Type)
}

// CacheOptions maps the process config onto cache options for value type V.
func CacheOptions[V any](cfg *Config, s *Stack, log layercache.Logger) layercache.Options[V] {
	opts := layercache.Options[V]{
		Layers:     s.Layers,
		Namespace:  cfg.Namespace,
		DefaultTTL: cfg.DefaultTTL,
		Logger:     log,
	}
	if cfg.Population == "inherit" {
		opts.Population = layercache.PopulateInheritExpiry
	}
	return opts
}

func coalesceInt(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}
