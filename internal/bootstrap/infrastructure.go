package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eleven-am/label-scan/internal/entitlement"
	"github.com/eleven-am/label-scan/internal/history"
	"github.com/eleven-am/label-scan/internal/kv"
	"github.com/eleven-am/label-scan/internal/securestore"
	"github.com/eleven-am/label-scan/internal/telemetry"
)

const defaultSQLitePath = "labelscan.db"

func ProvideRedisClient(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func ProvideDatabase(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch cfg.Storage.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.Storage.DSN), gormCfg)
	default:
		dsn := cfg.Storage.DSN
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
}

// ProvideKVStore opens the backend named by storage.driver.
func ProvideKVStore(lc fx.Lifecycle, cfg *Config, log *slog.Logger) (kv.Store, error) {
	if cfg.Storage.Driver == "redis" {
		client := ProvideRedisClient(cfg)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
		log.Info("storage ready", "driver", "redis", "addr", cfg.Redis.Addr)
		return kv.NewRedisStore(client, cfg.Redis.Prefix), nil
	}

	db, err := ProvideDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Storage.Driver, err)
	}

	store := kv.NewGormStore(db)
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", cfg.Storage.Driver, err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	log.Info("storage ready", "driver", cfg.Storage.Driver)
	return store, nil
}

func ProvideSecureStore(backing kv.Store, cfg *Config, log *slog.Logger) *securestore.Store {
	return securestore.New(backing, cfg.SecureStore.Salt, log)
}

func ProvideEntitlementCache(store *securestore.Store) *entitlement.Cache {
	return entitlement.NewCache(store)
}

func ProvideHistoryStore(backing kv.Store, cfg *Config, log *slog.Logger) *history.Store {
	return history.NewStore(backing, cfg.History.Limit, log)
}

// InitTelemetry installs the tracer provider and flushes it on shutdown.
func InitTelemetry(lc fx.Lifecycle, cfg *Config, log *slog.Logger) error {
	shutdown, err := telemetry.InitTracer(telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Pretty:      cfg.Telemetry.Pretty,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: shutdown,
	})
	return nil
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideKVStore,
		ProvideSecureStore,
		ProvideEntitlementCache,
		ProvideHistoryStore,
	),
	fx.Invoke(InitTelemetry),
)
