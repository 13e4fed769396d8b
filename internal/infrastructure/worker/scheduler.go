package worker

import (
	"context"
	"errors"
	"time"

	"forexsync/internal/application"

	"go.uber.org/zap"
)

var _ application.Worker = (*Scheduler)(nil)

// DueRunner runs a scheduled sync if it has not run in the current period.
type DueRunner interface {
	RunDue(ctx context.Context, kind application.SyncKind) (bool, error)
}

// Scheduler polls the clock and triggers the daily sync once DailyHour has
// passed, and the monthly sync once MonthlyHour has passed. The runner
// skips periods that already synced, so polling more often is harmless.
type Scheduler struct {
	Sync DueRunner

	PollEvery   time.Duration
	DailyHour   int
	MonthlyHour int
	Location    *time.Location
	Now         func() time.Time
	Log         *zap.Logger
}

func (w *Scheduler) Start(ctx context.Context) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	if w.PollEvery <= 0 {
		w.PollEvery = time.Minute
	}
	if w.Location == nil {
		w.Location = time.UTC
	}
	if w.Now == nil {
		w.Now = time.Now
	}

	t := time.NewTicker(w.PollEvery)
	defer t.Stop()

	log.Info("scheduler.started",
		zap.Duration("poll_every", w.PollEvery),
		zap.Int("daily_hour", w.DailyHour),
		zap.Int("monthly_hour", w.MonthlyHour),
	)
	w.tick(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler.stopped")
			return
		case <-t.C:
			w.tick(ctx, log)
		}
	}
}

func (w *Scheduler) tick(ctx context.Context, log *zap.Logger) {
	hour := w.Now().In(w.Location).Hour()
	if hour >= w.DailyHour {
		w.runDue(ctx, log, application.SyncKindDaily)
	}
	if hour >= w.MonthlyHour {
		w.runDue(ctx, log, application.SyncKindMonthly)
	}
}

func (w *Scheduler) runDue(ctx context.Context, log *zap.Logger, kind application.SyncKind) {
	log = log.With(zap.String("kind", string(kind)))
	ran, err := w.Sync.RunDue(ctx, kind)
	switch {
	case errors.Is(err, application.ErrRunInProgress):
		log.Debug("scheduler.run_in_progress")
	case err != nil:
		log.Warn("scheduler.run_failed", zap.Error(err))
	case ran:
		log.Info("scheduler.run_done")
	}
}
