package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campusops/equipment-service/internal/model"
	"github.com/campusops/equipment-service/internal/repository"
)

// Reconciler keeps derived state honest, independent of user traffic.
// Sweep A promotes lapsed active reservations to OVERDUE; sweep B recomputes
// every active equipment type's available count from first principles. One
// mutex serializes sweeps: a tick or a manual trigger that arrives mid-sweep
// waits, two sweeps never run at once.
type Reconciler struct {
	mu       sync.Mutex
	store    repository.Store
	ledger   *Ledger
	clock    Clock
	interval time.Duration
	log      *zap.Logger
}

func NewReconciler(store repository.Store, ledger *Ledger, clock Clock, interval time.Duration, log *zap.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		ledger:   ledger,
		clock:    clock,
		interval: interval,
		log:      log.Named("reconciler"),
	}
}

// Start runs one sweep immediately, then one per interval until ctx ends.
// Sweep failures are logged, never fatal: the next tick retries wholesale.
func (r *Reconciler) Start(ctx context.Context) error {
	if _, err := r.RunSweep(ctx); err != nil {
		r.log.Error("startup sweep", zap.Error(err))
	}
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			if _, err := r.RunSweep(ctx); err != nil {
				r.log.Error("scheduled sweep", zap.Error(err))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reconciler) RunSweep(ctx context.Context) (model.SweepReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := r.clock.Now()
	report := model.SweepReport{StartedAt: started}

	promoted, err := r.store.PromoteOverdue(ctx, started)
	if err != nil {
		r.log.Error("overdue promotion", zap.Error(err))
		report.Errors++
	}
	report.OverduePromoted = promoted

	uids, err := r.store.ActiveEquipmentUids(ctx)
	if err != nil {
		r.log.Error("list equipment for reconcile", zap.Error(err))
		report.Errors++
		report.Duration = r.clock.Now().Sub(started)
		return report, err
	}
	for _, uid := range uids {
		available, changed, err := r.ledger.Reconcile(ctx, uid)
		if err != nil {
			// one bad equipment type must not abort the rest of the sweep
			r.log.Error("reconcile", zap.String("equipment", uid), zap.Error(err))
			report.Errors++
			continue
		}
		report.EquipmentChecked++
		if changed {
			report.DriftCorrected++
			r.log.Warn("drift corrected",
				zap.String("equipment", uid),
				zap.Int("available", available))
		}
	}

	report.Duration = r.clock.Now().Sub(started)
	r.log.Info("sweep done",
		zap.Int("overduePromoted", report.OverduePromoted),
		zap.Int("equipmentChecked", report.EquipmentChecked),
		zap.Int("driftCorrected", report.DriftCorrected),
		zap.Int("errors", report.Errors),
		zap.Duration("took", report.Duration))
	return report, nil
}
