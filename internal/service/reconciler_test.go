package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/equipment-service/internal/model"
	"github.com/campusops/equipment-service/internal/service"
)

func newReconciler(f *fixture) *service.Reconciler {
	return service.NewReconciler(f.store, f.ledger, f.clock, time.Hour, zap.NewExample().Named("test"))
}

func TestReconciler_PromotesOverdue(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	eq := f.addEquipment(t, 5, model.ConditionGood)

	issued := f.pendingReservation(t, eq.EquipmentUid, 2)
	_, err := f.borrowing.Approve(ctx, issued.ReservationUid, "bob")
	require.NoError(t, err)
	_, err = f.borrowing.Issue(ctx, issued.ReservationUid)
	require.NoError(t, err)

	approved := f.pendingReservation(t, eq.EquipmentUid, 1)
	_, err = f.borrowing.Approve(ctx, approved.ReservationUid, "bob")
	require.NoError(t, err)

	pending := f.pendingReservation(t, eq.EquipmentUid, 1)

	r := newReconciler(f)

	// nothing due yet
	report, err := r.RunSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, report.OverduePromoted)

	f.clock.Advance(8 * 24 * time.Hour)
	report, err = r.RunSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.OverduePromoted)
	require.Equal(t, 1, report.EquipmentChecked)
	require.Equal(t, 0, report.Errors)

	for uid, want := range map[string]model.Status{
		issued.ReservationUid:   model.StatusOverdue,
		approved.ReservationUid: model.StatusOverdue,
		pending.ReservationUid:  model.StatusPending,
	} {
		got, err := f.borrowing.Get(ctx, uid)
		require.NoError(t, err)
		require.Equal(t, want, got.Status)
	}

	// promotion has no ledger effect: units stay committed
	require.Equal(t, 2, f.available(t, eq.EquipmentUid))

	// an overdue reservation still returns, and the ledger recovers
	_, err = f.borrowing.Return(ctx, issued.ReservationUid, model.ConditionGood, "", "bob")
	require.NoError(t, err)
	require.Equal(t, 4, f.available(t, eq.EquipmentUid))
}

func TestReconciler_SweepCorrectsDrift(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	eq := f.addEquipment(t, 5, model.ConditionGood)

	rsv := f.pendingReservation(t, eq.EquipmentUid, 3)
	_, err := f.borrowing.Approve(ctx, rsv.ReservationUid, "bob")
	require.NoError(t, err)

	// inject drift
	require.NoError(t, f.store.ReleaseStock(ctx, eq.EquipmentUid, 3))
	require.Equal(t, 5, f.available(t, eq.EquipmentUid))

	report, err := newReconciler(f).RunSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.EquipmentChecked)
	require.Equal(t, 1, report.DriftCorrected)

	// available == total - committed again
	require.Equal(t, 2, f.available(t, eq.EquipmentUid))

	// a second sweep finds nothing to fix
	report, err = newReconciler(f).RunSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, report.DriftCorrected)
}

func TestReconciler_StartSweepsOnTicks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eq := f.addEquipment(t, 5, model.ConditionGood)

	rsv := f.pendingReservation(t, eq.EquipmentUid, 2)
	_, err := f.borrowing.Approve(ctx, rsv.ReservationUid, "bob")
	require.NoError(t, err)

	r := newReconciler(f)
	done := make(chan error, 1)
	go func() {
		done <- r.Start(ctx)
	}()

	// the reservation lapses; the next tick must promote it
	f.clock.Advance(8 * 24 * time.Hour)
	f.clock.Tick()

	require.Eventually(t, func() bool {
		got, err := f.borrowing.Get(ctx, rsv.ReservationUid)
		return err == nil && got.Status == model.StatusOverdue
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
