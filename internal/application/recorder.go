package application

import (
	"context"

	"forexsync/internal/domain"
)

// Recorder persists sync outcomes: rate log upserts and sync attempts.
// Every call commits on its own so a crash mid-run leaves a usable audit trail.
type Recorder struct {
	rateLog RateLogStore
	syncLog SyncLogStore
	clock   Clock
	idgen   IDGen
}

func NewRecorder(rateLog RateLogStore, syncLog SyncLogStore, clock Clock, idgen IDGen) *Recorder {
	if clock == nil {
		clock = realClock{}
	}
	if idgen == nil {
		idgen = defaultIDGen{}
	}
	return &Recorder{rateLog: rateLog, syncLog: syncLog, clock: clock, idgen: idgen}
}

// UpsertRateLog writes e under its four-part key. Rows are never deleted.
func (r *Recorder) UpsertRateLog(ctx context.Context, e domain.RateLogEntry) error {
	if e.Source == "" {
		e.Source = domain.SourceMarketDataAPI
	}
	e.SyncedAt = r.clock.Now()
	if err := r.rateLog.Upsert(ctx, e); err != nil {
		return &domain.PersistenceError{Op: "rate log upsert " + e.From + "-" + e.To + " " + string(e.RateType), Err: err}
	}
	return nil
}

// RecordAttempt inserts a sync attempt. Attempts are never updated.
func (r *Recorder) RecordAttempt(ctx context.Context, a domain.SyncAttempt) error {
	a.ID = r.idgen.NewID()
	a.SyncTime = r.clock.Now()
	if err := r.syncLog.Insert(ctx, a); err != nil {
		return &domain.PersistenceError{Op: "sync log insert", Err: err}
	}
	return nil
}
