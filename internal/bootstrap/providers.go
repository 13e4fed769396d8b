package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"forexsync/internal/application"
	"forexsync/internal/config"
	"forexsync/internal/domain"
	"forexsync/internal/infrastructure/alphavantage"
	"forexsync/internal/infrastructure/httpx"
	"forexsync/internal/infrastructure/logx"
	"forexsync/internal/infrastructure/pg"
	redisstore "forexsync/internal/infrastructure/redis"
	"forexsync/internal/infrastructure/sqlite"
	"forexsync/internal/infrastructure/worker"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrUnknownStorage = errors.New("unknown STORAGE backend")

// Stores groups the ports served by one storage backend.
type Stores struct {
	Settings    application.SettingsStore
	CurrentRate application.CurrentRateStore
	RateLog     application.RateLogStore
	SyncLog     application.SyncLogStore
	UoW         application.UnitOfWork
	Ping        func(ctx context.Context) error
}

type Services struct {
	Idem application.IdempotencyStore
	Lock application.RunLock
}

func ProvideLogger() *zap.Logger { return logx.L() }

// ProvideStores opens the configured backend and applies its migrations.
func ProvideStores(ctx context.Context, log *zap.Logger, cfg config.Config) (Stores, func(), error) {
	switch cfg.Storage {
	case "pg":
		db, err := pg.Connect(ctx, cfg.DatabaseURL, cfg.PGMaxConns)
		if err != nil {
			return Stores{}, func() {}, err
		}
		if err := pg.RunMigrations(ctx, db); err != nil {
			db.Close()
			return Stores{}, func() {}, err
		}
		cleanup := func() {
			log.Info("closing pg")
			db.Close()
		}
		return Stores{
			Settings:    pg.NewSettingsRepo(db),
			CurrentRate: pg.NewCurrentRateRepo(db),
			RateLog:     pg.NewRateLogRepo(db),
			SyncLog:     pg.NewSyncLogRepo(db),
			UoW:         &pg.UnitOfWork{DB: db},
			Ping:        db.Ping,
		}, cleanup, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return Stores{}, func() {}, err
		}
		if err := sqlite.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return Stores{}, func() {}, err
		}
		cleanup := func() {
			log.Info("closing sqlite")
			_ = db.Close()
		}
		return Stores{
			Settings:    sqlite.NewSettingsRepo(db),
			CurrentRate: sqlite.NewCurrentRateRepo(db),
			RateLog:     sqlite.NewRateLogRepo(db),
			SyncLog:     sqlite.NewSyncLogRepo(db),
			UoW:         &sqlite.UnitOfWork{DB: db},
			Ping:        db.Ping,
		}, cleanup, nil
	}
	return Stores{}, func() {}, fmt.Errorf("%w: %q", ErrUnknownStorage, cfg.Storage)
}

// SeedSettings stores the default settings on a fresh installation.
func SeedSettings(ctx context.Context, log *zap.Logger, store application.SettingsStore) error {
	_, err := store.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	log.Info("settings.seeded_defaults")
	return store.Save(ctx, domain.DefaultSettings())
}

// ProvideRedisClient returns nil when the redis backend is not selected.
func ProvideRedisClient(ctx context.Context, log *zap.Logger, cfg config.Config) (*redis.Client, func()) {
	if cfg.IdempotencyBackend != "redis" {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis.ping_failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return client, func() { _ = client.Close() }
}

// ProvideServices backs idempotency keys and the run lock with redis when a
// client is available, and with in-process fallbacks otherwise.
func ProvideServices(client *redis.Client, cfg config.Config) Services {
	if client == nil {
		return Services{Idem: application.NoopIdempotency{}, Lock: &application.LocalRunLock{}}
	}
	store := redisstore.New(client, cfg.IdempotencyTTL)
	return Services{Idem: store, Lock: store}
}

func ProvideMarket(cfg config.Config) application.MarketDataFactory {
	if cfg.MarketData == "fake" {
		return alphavantage.NewFake(decimal.NewFromInt(1)).Factory()
	}
	hc := httpx.New(cfg.CallsPerMinute, cfg.RequestTimeout)
	return alphavantage.New(hc, cfg.AlphaVantageBaseURL).Factory()
}

func ProvideSyncService(st Stores, market application.MarketDataFactory, s Services, log *zap.Logger, cfg config.Config) *application.SyncService {
	return application.NewSyncService(st.Settings, st.CurrentRate, st.RateLog, st.SyncLog, market,
		application.WithSyncLogger(log.Named("sync")),
		application.WithLocation(cfg.Location()),
		application.WithBackfillMonths(cfg.BackfillMonths),
		application.WithRunLock(s.Lock, 0),
	)
}

func ProvideFXRatesService(st Stores, market application.MarketDataFactory, sync *application.SyncService, s Services, log *zap.Logger) *application.FXRatesService {
	return application.NewFXRatesService(st.Settings, st.RateLog, st.SyncLog, market, sync,
		application.WithUnitOfWork(st.UoW),
		application.WithIdempotency(s.Idem),
		application.WithLogger(log),
	)
}

func ProvideScheduler(sync *application.SyncService, log *zap.Logger, cfg config.Config) application.Worker {
	return &worker.Scheduler{
		Sync:        sync,
		PollEvery:   cfg.SchedulerPoll,
		DailyHour:   cfg.DailySyncHour,
		MonthlyHour: cfg.MonthlySyncHour,
		Location:    cfg.Location(),
		Log:         log.Named("scheduler"),
	}
}
