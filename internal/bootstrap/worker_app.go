package bootstrap

import (
	"context"
	"fmt"

	"forexsync/internal/application"
	"forexsync/internal/config"

	"go.uber.org/zap"
)

type WorkerApp func(ctx context.Context) error

// InitWorkerApp returns the scheduler loop, or a single synchronous run of
// once when it is set.
func InitWorkerApp(ctx context.Context, cfg config.Config, once *application.SyncJob) (WorkerApp, func(), error) {
	app, cleanup, err := InitApp(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init app: %w", err)
	}

	if once != nil {
		run := func(ctx context.Context) error {
			app.Log.Info("worker.run_once", zap.String("kind", string(once.Kind)), zap.Int("months", once.Months))
			return app.Sync.Run(ctx, *once)
		}
		return run, cleanup, nil
	}

	w := ProvideScheduler(app.Sync, app.Log, cfg)
	run := func(ctx context.Context) error {
		w.Start(ctx)
		return nil
	}
	return run, cleanup, nil
}
