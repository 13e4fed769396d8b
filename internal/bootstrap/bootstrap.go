package bootstrap

import (
	"context"

	"forexsync/internal/application"
	"forexsync/internal/config"
	httpserver "forexsync/internal/infrastructure/http"

	"go.uber.org/zap"
)

// App is the fully wired object graph shared by the api and worker binaries.
type App struct {
	Config  config.Config
	Log     *zap.Logger
	Stores  Stores
	Sync    *application.SyncService
	Service *application.FXRatesService
}

// InitApp builds the App. The returned cleanup releases connections in
// reverse order of acquisition.
func InitApp(ctx context.Context, cfg config.Config) (*App, func(), error) {
	log := ProvideLogger()
	stores, closeStores, err := ProvideStores(ctx, log, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := SeedSettings(ctx, log, stores.Settings); err != nil {
		closeStores()
		return nil, nil, err
	}
	client, closeRedis := ProvideRedisClient(ctx, log, cfg)
	services := ProvideServices(client, cfg)
	market := ProvideMarket(cfg)
	sync := ProvideSyncService(stores, market, services, log, cfg)
	svc := ProvideFXRatesService(stores, market, sync, services, log)

	cleanup := func() {
		closeRedis()
		closeStores()
	}
	return &App{Config: cfg, Log: log, Stores: stores, Sync: sync, Service: svc}, cleanup, nil
}

// InitAPI builds the HTTP server on top of InitApp.
func InitAPI(ctx context.Context, cfg config.Config) (*httpserver.Server, func(), error) {
	app, cleanup, err := InitApp(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewAPI(app), cleanup, nil
}

// NewAPI exposes app over HTTP with storage readiness wired in.
func NewAPI(app *App) *httpserver.Server {
	srv := httpserver.NewServer(app.Service)
	srv.SetReadyCheck(app.Stores.Ping)
	return srv
}
