package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/campusops/equipment-service/internal/errs"
	"github.com/campusops/equipment-service/internal/repository"
)

// Ledger is the sole writer of available_count. Atomicity lives in the
// store's conditional updates; the ledger owns the arithmetic contract:
// 0 <= available <= total, always.
type Ledger struct {
	store repository.Store
	log   *zap.Logger
}

func NewLedger(store repository.Store, log *zap.Logger) *Ledger {
	return &Ledger{
		store: store,
		log:   log.Named("ledger"),
	}
}

// Reserve commits quantity units: a single check-and-decrement, never a read
// followed by a write.
func (l *Ledger) Reserve(ctx context.Context, equipmentUid string, quantity int) error {
	if quantity < 1 {
		return errs.ErrValidation
	}
	return l.store.ReserveStock(ctx, equipmentUid, quantity)
}

// Release hands units back, clamped at the total so a double release cannot
// overshoot.
func (l *Ledger) Release(ctx context.Context, equipmentUid string, quantity int) error {
	if quantity < 1 {
		return errs.ErrValidation
	}
	return l.store.ReleaseStock(ctx, equipmentUid, quantity)
}

// Resize takes the old and new totals explicitly so the delta never depends
// on state stashed elsewhere.
func (l *Ledger) Resize(ctx context.Context, equipmentUid string, oldTotal, newTotal int) error {
	if newTotal < 0 {
		return errs.ErrValidation
	}
	l.log.Debug("resize",
		zap.String("equipment", equipmentUid),
		zap.Int("oldTotal", oldTotal),
		zap.Int("newTotal", newTotal))
	return l.store.ResizeStock(ctx, equipmentUid, oldTotal, newTotal)
}

// Reconcile recomputes available = total - committed from the active
// reservations. Idempotent; the reconciler leans on it to erase drift.
// The second result reports whether the count actually moved.
func (l *Ledger) Reconcile(ctx context.Context, equipmentUid string) (int, bool, error) {
	return l.store.ReconcileStock(ctx, equipmentUid)
}
