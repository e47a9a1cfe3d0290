// Package storage provides the durable key-value backends the cart is saved to.
package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/abgdnv/rocketcart/internal/cart"
	"github.com/abgdnv/rocketcart/internal/config"
	"github.com/abgdnv/rocketcart/pkg/bootstrap"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

//go:embed migrations
var migrationsFS embed.FS

// Store is a cart.KeyValueStore that owns a connection.
type Store interface {
	cart.KeyValueStore
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the backend selected by cfg.Driver. Every call to the returned
// store is bounded by cfg.Timeout.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		s = NewMemoryStore()
	case config.DriverSQLite:
		s, err = OpenSQLite(ctx, cfg.SQLite.Path)
	case config.DriverRedis:
		client, cerr := bootstrap.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Timeout)
		if cerr != nil {
			return nil, cerr
		}
		s = NewRedisStore(client)
	case config.DriverPostgres:
		if err = MigratePostgres(cfg.Postgres.URL); err != nil {
			return nil, err
		}
		pool, perr := bootstrap.NewDbPool(ctx, cfg.Postgres.URL, cfg.Postgres.Timeout)
		if perr != nil {
			return nil, perr
		}
		s = NewPgStore(pool)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return WithTimeout(s, cfg.Timeout), nil
}

type timeoutStore struct {
	Store
	timeout time.Duration
}

// WithTimeout bounds Get, Set and Ping of s by timeout. A zero timeout returns s unchanged.
func WithTimeout(s Store, timeout time.Duration) Store {
	if timeout <= 0 {
		return s
	}
	return &timeoutStore{Store: s, timeout: timeout}
}

func (t *timeoutStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.Get(ctx, key)
}

func (t *timeoutStore) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.Set(ctx, key, value)
}

func (t *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.Ping(ctx)
}
