// Package repository selects the command store backend from configuration.
package repository

import (
	"context"
	"fmt"
	"io"

	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/logger"
	"github.com/oshokin/relay-switch/internal/repository/badger"
	"github.com/oshokin/relay-switch/internal/repository/redis"
	"github.com/oshokin/relay-switch/internal/stream"
)

// Backend is a command store that can also append entries and be closed.
type Backend interface {
	stream.Store
	stream.Appender
	io.Closer
}

// Open connects the backend named by cfg.Driver.
//
//nolint:ireturn // The concrete backend depends on configuration.
func Open(ctx context.Context, cfg config.Store) (Backend, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		store := redis.New(redis.Options{
			Address:  cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		if err := store.Ping(ctx); err != nil {
			_ = store.Close()

			return nil, err
		}

		logger.InfoKV(ctx, "Connected to redis", "address", cfg.Address, "db", cfg.DB)

		return store, nil
	case config.DriverBadger:
		store, err := badger.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}

		logger.InfoKV(ctx, "Opened badger store", "path", cfg.Path)

		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
	}
}
