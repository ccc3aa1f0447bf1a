package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leonid6372/stock-arena/internal/common/config"
	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/common/repositories/memory"
	"github.com/leonid6372/stock-arena/internal/common/repositories/postgres"
	redisrepo "github.com/leonid6372/stock-arena/internal/common/repositories/redis"
	"github.com/leonid6372/stock-arena/migrations"
	"github.com/leonid6372/stock-arena/pkg/goosemigrate"
	"github.com/leonid6372/stock-arena/pkg/log"
	"github.com/redis/go-redis/v9"
)

type Storage struct {
	Accounts  domain.AccountsRepository
	Portfolio domain.PortfolioRepository
	Snapshots domain.QuotesRepository

	closers []func()
}

func (s *Storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// OpenStorage picks postgres when a host is configured and the in-memory store otherwise.
// Quote snapshots go to redis when configured, else next to the ledger.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	s := &Storage{}

	if cfg.Postgres.Host == "" {
		log.Warn("postgres host is empty, using in-memory store (data will not persist)")

		store := memory.NewStore()
		s.Accounts, s.Portfolio, s.Snapshots = store, store, store
	} else {
		log.Info("init postgres...")

		if err := goosemigrate.NewMigrator(cfg.GetPostgresURL(), migrations.FS, cfg.Postgres.Schema).Up(); err != nil {
			return nil, fmt.Errorf("migrations up failed: %w", err)
		}

		pool, err := pgxpool.New(ctx, cfg.GetPostgresURL())
		if err != nil {
			return nil, fmt.Errorf("postgres init failed: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres ping failed: %w", err)
		}

		s.Accounts = postgres.NewAccountsRepository(pool)
		s.Portfolio = postgres.NewPortfolioRepository(pool)
		s.Snapshots = postgres.NewQuotesRepository(pool)
	}

	if cfg.Redis.Addr != "" {
		log.Info("init redis...")

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = rdb.Close() })

		if err := rdb.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}

		s.Snapshots = redisrepo.NewQuotesRepository(rdb, cfg.Redis.SnapshotTTL)
	}

	return s, nil
}
