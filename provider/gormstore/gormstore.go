// Package gormstore is a durable layercache provider over any gorm dialect
// (SQLite in tests, via glebarez/sqlite).
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pr "github.com/unkn0wn-root/layercache/provider"
)

var ErrNilDB = errors.New("gormstore provider: nil db")

const DefaultTable = "layercache_entries"

// Row is one stored entry. ExpiresAt is unix nanoseconds; 0 => never.
type Row struct {
	Key       string `gorm:"primaryKey;column:key;size:512"`
	Value     []byte `gorm:"column:value;not null"`
	ExpiresAt int64  `gorm:"column:expires_at;not null;default:0;index"`
}

type Provider struct {
	db    *gorm.DB
	table string
	now   func() time.Time
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	DB          *gorm.DB
	Table       string // empty => DefaultTable
	AutoMigrate bool
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.DB == nil {
		return nil, ErrNilDB
	}
	p := &Provider{db: cfg.DB, table: cfg.Table, now: time.Now}
	if p.table == "" {
		p.table = DefaultTable
	}
	if cfg.AutoMigrate {
		if err := p.tx(ctx).AutoMigrate(&Row{}); err != nil {
			return nil, fmt.Errorf("gormstore: migrate %s: %w", p.table, err)
		}
	}
	return p, nil
}

func (p *Provider) tx(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx).Table(p.table)
}

// byKey goes through clause.Eq so the dialect quotes "key", a reserved word in MySQL.
func (p *Provider) byKey(ctx context.Context, key string) *gorm.DB {
	return p.tx(ctx).Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key})
}

func (p *Provider) Get(ctx context.Context, key string) (pr.Entry, bool, error) {
	var row Row
	if err := p.byKey(ctx, key).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pr.Entry{}, false, nil
		}
		return pr.Entry{}, false, fmt.Errorf("gormstore: get: %w", err)
	}
	e := pr.Entry{Value: row.Value}
	if row.ExpiresAt != 0 {
		e.ExpiresAt = time.Unix(0, row.ExpiresAt)
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
	row := Row{Key: key, Value: value}
	if !expiresAt.IsZero() {
		row.ExpiresAt = expiresAt.UnixNano()
	}
	if row.Value == nil {
		row.Value = []byte{}
	}
	err := p.tx(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"expires_at": row.ExpiresAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return false, fmt.Errorf("gormstore: upsert: %w", err)
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	if err := p.byKey(ctx, key).Delete(&Row{}).Error; err != nil {
		return fmt.Errorf("gormstore: delete: %w", err)
	}
	return nil
}

func (p *Provider) Has(ctx context.Context, key string) (bool, error) {
	var n int64
	err := p.byKey(ctx, key).
		Where("(expires_at = 0 OR expires_at > ?)", p.now().UnixNano()).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("gormstore: has: %w", err)
	}
	return n > 0, nil
}

func (p *Provider) Clear(ctx context.Context) error {
	if err := p.tx(ctx).Where("1 = 1").Delete(&Row{}).Error; err != nil {
		return fmt.Errorf("gormstore: clear: %w", err)
	}
	return nil
}

// Purge removes expired rows. Reads already ignore them; this only reclaims space.
func (p *Provider) Purge(ctx context.Context) (int64, error) {
	res := p.tx(ctx).Where("expires_at <> 0 AND expires_at <= ?", p.now().UnixNano()).Delete(&Row{})
	if res.Error != nil {
		return 0, fmt.Errorf("gormstore: purge: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close is a no-op; the *gorm.DB belongs to the caller.
func (p *Provider) Close(context.Context) error { return nil }
