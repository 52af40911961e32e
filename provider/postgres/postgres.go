// Package postgres is a durable layercache provider on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pr "github.com/unkn0wn-root/layercache/provider"
)

var (
	ErrNilPool      = errors.New("postgres provider: nil pool")
	ErrInvalidTable = errors.New("postgres provider: invalid table name")
)

const DefaultTable = "layercache_entries"

var tableRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type Provider struct {
	pool      *pgxpool.Pool
	closePool bool
	now       func() time.Time

	qGet, qSet, qDel, qHas, qClear string
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Pool        *pgxpool.Pool
	Table       string // empty => DefaultTable
	CreateTable bool   // run CREATE TABLE IF NOT EXISTS on New
	ClosePool   bool   // set true only if this provider exclusively owns the pool
}

// NewPool parses dsn and returns a pool that answered a ping.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Pool == nil {
		return nil, ErrNilPool
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !tableRE.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}

	p := &Provider{
		pool:      cfg.Pool,
		closePool: cfg.ClosePool,
		now:       time.Now,
		qGet:      `SELECT value, expires_at FROM ` + table + ` WHERE key = $1`,
		qSet: `INSERT INTO ` + table + ` (key, value, expires_at) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		qDel:   `DELETE FROM ` + table + ` WHERE key = $1`,
		qHas:   `SELECT EXISTS (SELECT 1 FROM ` + table + ` WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2))`,
		qClear: `DELETE FROM ` + table,
	}
	if cfg.CreateTable {
		ddl := `CREATE TABLE IF NOT EXISTS ` + table + ` (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			expires_at TIMESTAMPTZ
		)`
		if _, err := p.pool.Exec(ctx, ddl); err != nil {
			return nil, fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return p, nil
}

func (p *Provider) Get(ctx context.Context, key string) (pr.Entry, bool, error) {
	var (
		b   []byte
		exp *time.Time
	)
	err := p.pool.QueryRow(ctx, p.qGet, key).Scan(&b, &exp)
	if errors.Is(err, pgx.ErrNoRows) {
		return pr.Entry{}, false, nil
	}
	if err != nil {
		return pr.Entry{}, false, fmt.Errorf("postgres: get: %w", err)
	}
	e := pr.Entry{Value: b}
	if exp != nil {
		e.ExpiresAt = *exp
	}
	if e.Expired(p.now()) {
		if err := p.Del(ctx, key); err != nil {
			return pr.Entry{}, false, err
		}
		return pr.Entry{}, false, nil
	}
	return e, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, expiresAt time.Time) (bool, error) {
	if _, live := pr.TTL(expiresAt, p.now()); !live {
		return true, p.Del(ctx, key)
	}
	var exp *time.Time
	if !expiresAt.IsZero() {
		exp = &expiresAt
	}
	if value == nil {
		value = []byte{}
	}
	if _, err := p.pool.Exec(ctx, p.qSet, key, value, exp); err != nil {
		return false, fmt.Errorf("postgres: upsert: %w", err)
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, p.qDel, key); err != nil {
		return fmt.Errorf("postgres: delete: %w", err)
	}
	return nil
}

func (p *Provider) Has(ctx context.Context, key string) (bool, error) {
	var ok bool
	if err := p.pool.QueryRow(ctx, p.qHas, key, p.now()).Scan(&ok); err != nil {
		return false, fmt.Errorf("postgres: has: %w", err)
	}
	return ok, nil
}

func (p *Provider) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, p.qClear); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

func (p *Provider) Close(context.Context) error {
	if p.closePool {
		p.pool.Close()
	}
	return nil
}
