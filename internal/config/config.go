// Package config loads the layer stack used by layerctl.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "layercache.yaml"

// Layer types understood by Build.
const (
	TypeRistretto = "ristretto"
	TypeBigCache  = "bigcache"
	TypeRedis     = "redis"
	TypeNATS      = "natskv"
	TypeSQLite    = "sqlite"
	TypePostgres  = "postgres"
)

type Config struct {
	Namespace  string        `yaml:"namespace"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
	// Population is "no_expiry" (default) or "inherit".
	Population string  `yaml:"population"`
	Log        Log     `yaml:"log"`
	Layers     []Layer `yaml:"layers"`
}

type Log struct {
	Backend string `yaml:"backend"` // slog | logrus | zap
	Level   string `yaml:"level"`   // debug | info | warn | error
	Format  string `yaml:"format"`  // text | json
}

// Layer is one entry of the ordered stack, fastest first.
// Only the block matching Type is read.
type Layer struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	Ristretto Ristretto `yaml:"ristretto"`
	BigCache  BigCache  `yaml:"bigcache"`
	Redis     Redis     `yaml:"redis"`
	NATS      NATS      `yaml:"nats"`
	SQLite    SQLite    `yaml:"sqlite"`
	Postgres  Postgres  `yaml:"postgres"`
}

type Ristretto struct {
	NumCounters int64 `yaml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost"`
	BufferItems int64 `yaml:"buffer_items"`
}

type BigCache struct {
	LifeWindow         time.Duration `yaml:"life_window"`
	Shards             int           `yaml:"shards"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type NATS struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`
}

type SQLite struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

type Postgres struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// Defaults is a single in-process layer named "memory".
func Defaults() Config {
	return Config{
		Population: "no_expiry",
		Log:        Log{Backend: "slog", Level: "info", Format: "text"},
		Layers: []Layer{{
			Name:      "memory",
			Type:      TypeRistretto,
			Ristretto: Ristretto{NumCounters: 1e5, MaxCost: 64 << 20, BufferItems: 64},
		}},
	}
}

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	return LoadFrom(DefaultConfigFile)
}

// LoadDotEnv exports variables from the given .env files (".env" when none)
// without overriding the real environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config dotenv %s: %w", p, err)
		}
	}
	return nil
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config. Backend addresses
// apply to every layer of that type.
func loadEnv(cfg *Config) {
	setString(&cfg.Namespace, "LAYERCACHE_NAMESPACE")
	setDuration(&cfg.DefaultTTL, "LAYERCACHE_DEFAULT_TTL")
	setString(&cfg.Population, "LAYERCACHE_POPULATION")
	setString(&cfg.Log.Backend, "LAYERCACHE_LOG_BACKEND")
	setString(&cfg.Log.Level, "LAYERCACHE_LOG_LEVEL")
	setString(&cfg.Log.Format, "LAYERCACHE_LOG_FORMAT")

	for i := range cfg.Layers {
		l := &cfg.Layers[i]
		switch l.Type {
		case TypeRedis:
			setString(&l.Redis.Addr, "LAYERCACHE_REDIS_ADDR")
			setString(&l.Redis.Password, "LAYERCACHE_REDIS_PASSWORD")
			setInt(&l.Redis.DB, "LAYERCACHE_REDIS_DB")
		case TypeNATS:
			setString(&l.NATS.URL, "LAYERCACHE_NATS_URL")
		case TypeSQLite:
			setString(&l.SQLite.Path, "LAYERCACHE_SQLITE_PATH")
		case TypePostgres:
			setString(&l.Postgres.DSN, "LAYERCACHE_POSTGRES_DSN")
		}
	}
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if len(cfg.Layers) == 0 {
		return errors.New("layers: at least one layer is required")
	}
	switch cfg.Population {
	case "", "no_expiry", "inherit":
	default:
		return fmt.Errorf("population: unknown policy %q", cfg.Population)
	}
	seen := make(map[string]bool)
	for i, l := range cfg.Layers {
		if l.Name != "" {
			if seen[l.Name] {
				return fmt.Errorf("layers[%d]: duplicate name %q", i, l.Name)
			}
			seen[l.Name] = true
		}
		var missing string
		switch l.Type {
		case TypeRistretto, TypeBigCache:
		case TypeRedis:
			if l.Redis.Addr == "" {
				missing = "redis.addr"
			}
		case TypeNATS:
			if l.NATS.URL == "" {
				missing = "nats.url"
			} else if l.NATS.Bucket == "" {
				missing = "nats.bucket"
			}
		case TypeSQLite:
			if l.SQLite.Path == "" {
				missing = "sqlite.path"
			}
		case TypePostgres:
			if l.Postgres.DSN == "" {
				missing = "postgres.dsn"
			}
		default:
			return fmt.Errorf("layers[%d]: unknown type %q", i, l.Type)
		}
		if missing != "" {
			return fmt.Errorf("layers[%d]: %s is required", i, missing)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
