package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/kakeibo/internal"
	"github.com/frahmantamala/kakeibo/internal/auth"
	"github.com/frahmantamala/kakeibo/internal/auth/sqlxstore"
	"github.com/frahmantamala/kakeibo/internal/database"
	"github.com/frahmantamala/kakeibo/internal/session"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// initDB opens the configured database and brings its schema up to date.
func initDB(ctx context.Context, cfg internal.DatabaseConfig, lg *slog.Logger) (*gorm.DB, *sql.DB, error) {
	gdb, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if err := database.Migrate(ctx, sqlDB, cfg.Driver, false, lg); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return gdb, sqlDB, nil
}

// initSessionStore returns the configured session store. The memory store
// is also returned on its own so the caller can run its sweeper.
func initSessionStore(ctx context.Context, cfg internal.SessionConfig) (session.Store, *session.MemoryStore, func() error, error) {
	if cfg.Store != "redis" {
		mem := session.NewMemoryStore()
		return mem, mem, func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,

		DialTimeout: cfg.Redis.DialTimeout,
	})

	pingCtx, cancel := internal.WithTimeout(ctx, cfg.Redis.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	return session.NewRedisStore(client, cfg.Redis.KeyPrefix), nil, client.Close, nil
}

func newAuthService(cfg *internal.Config, sqlDB *sql.DB, store session.Store, lg *slog.Logger) *auth.Service {
	credentials := sqlxstore.NewCredentialRepository(sqlx.NewDb(sqlDB, database.SQLXDriverName(cfg.Database.Driver)))
	return auth.NewService(credentials, store, auth.Options{
		AdminUsername:   cfg.Security.AdminUsername,
		DefaultPassword: cfg.Security.DefaultPassword,
		BCryptCost:      cfg.Security.BCryptCost,
		SessionTTL:      cfg.Session.TTL,
		Rolling:         cfg.Session.Rolling,
	}, lg)
}
