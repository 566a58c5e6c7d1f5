package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"shopfloor/internal/app"
	"shopfloor/internal/config"
	"shopfloor/internal/core/idempotency"
	"shopfloor/internal/core/lock"
	"shopfloor/internal/infrastructure/cache"
	"shopfloor/internal/infrastructure/http/v1/handlers"
	"shopfloor/internal/infrastructure/numerator"
	"shopfloor/internal/infrastructure/storage/memory"
	"shopfloor/internal/infrastructure/storage/postgres"
	"shopfloor/internal/infrastructure/storage/postgres/catalog_repo"
	"shopfloor/internal/infrastructure/storage/postgres/document_repo"
	"shopfloor/internal/infrastructure/storage/postgres/register_repo"
	"shopfloor/pkg/logger"
)

// resources holds the opened storage and optional Redis collaborators.
type resources struct {
	backend     app.Backend
	locker      lock.Locker
	idempotency idempotency.Store
	checks      map[string]handlers.Pinger
	closers     []func()
}

// Close releases connections in reverse order of opening.
func (rt *resources) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func openResources(ctx context.Context, cfg *config.Config) (*resources, error) {
	rt := &resources{checks: map[string]handlers.Pinger{}}

	switch cfg.App.Storage {
	case config.StorageMemory:
		rt.backend = app.MemoryBackend(memory.New())
		logger.Warn(ctx, "using in-memory storage; data is lost on restart")

	case config.StoragePostgres:
		if err := rt.openPostgres(ctx, cfg); err != nil {
			rt.Close()
			return nil, err
		}
	}

	if cfg.Redis.Enabled() {
		rdb, err := cache.Connect(ctx, cfg.Redis.Address)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		rt.checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		rt.locker = cache.NewLocker(rdb, "shopfloor:lock:")

		// Postgres keeps keys next to the ledger; Redis serves memory mode.
		if rt.idempotency == nil {
			rt.idempotency = newRedisIdempotency(rdb, cfg)
		}
	}

	return rt, nil
}

func (rt *resources) openPostgres(ctx context.Context, cfg *config.Config) error {
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	rt.closers = append(rt.closers, pool.Close)
	rt.checks["database"] = pool
	pool.LogStats(ctx)

	if cfg.Database.AutoMigrate {
		if err := postgres.ApplySchema(ctx, pool); err != nil {
			return err
		}
		logger.Info(ctx, "database schema applied")
	}

	txManager := postgres.NewTxManager(pool)
	auditSvc, err := postgres.NewAuditService(txManager)
	if err != nil {
		return fmt.Errorf("create audit service: %w", err)
	}

	rt.backend = app.Backend{
		TxManager:     txManager,
		Orders:        catalog_repo.NewOrderRepo(txManager),
		Stages:        catalog_repo.NewStageRepo(txManager),
		Reports:       document_repo.NewReportRepo(txManager),
		FinishedGoods: register_repo.NewFinishedGoodsRepo(txManager),
		Scrap:         register_repo.NewScrapRepo(txManager),
		Audit:         auditSvc,
		Numerator: numerator.NewWithProvider(func(ctx context.Context) numerator.Querier {
			return txManager.GetQuerier(ctx)
		}),
	}
	rt.idempotency = postgres.NewIdempotencyStore(txManager, cfg.Idempotency.TTL.Duration)
	return nil
}

func newRedisIdempotency(rdb redis.UniversalClient, cfg *config.Config) idempotency.Store {
	return cache.NewIdempotencyStore(rdb, cfg.Idempotency.TTL.Duration)
}
