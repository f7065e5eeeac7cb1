package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campusops/equipment-service/internal/errs"
	"github.com/campusops/equipment-service/internal/model"
)

func TestLedger_ReleaseClampsAtTotal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	eq := f.addEquipment(t, 5, model.ConditionGood)

	rsv := f.pendingReservation(t, eq.EquipmentUid, 2)
	_, err := f.borrowing.Approve(ctx, rsv.ReservationUid, "bob")
	require.NoError(t, err)
	require.Equal(t, 3, f.available(t, eq.EquipmentUid))

	// double release must not push available past total
	require.NoError(t, f.ledger.Release(ctx, eq.EquipmentUid, 2))
	require.NoError(t, f.ledger.Release(ctx, eq.EquipmentUid, 2))
	require.Equal(t, 5, f.available(t, eq.EquipmentUid))
}

func TestLedger_ReserveRejectsBadQuantity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	eq := f.addEquipment(t, 5, model.ConditionGood)

	require.ErrorIs(t, f.ledger.Reserve(ctx, eq.EquipmentUid, 0), errs.ErrValidation)
	require.ErrorIs(t, f.ledger.Reserve(ctx, "missing", 1), errs.ErrNotFound)
	require.ErrorIs(t, f.ledger.Reserve(ctx, eq.EquipmentUid, 6), errs.ErrInsufficientStock)
	require.Equal(t, 5, f.available(t, eq.EquipmentUid))
}

func TestLedger_Resize(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	eq := f.addEquipment(t, 5, model.ConditionGood)

	rsv := f.pendingReservation(t, eq.EquipmentUid, 3)
	_, err := f.borrowing.Approve(ctx, rsv.ReservationUid, "bob")
	require.NoError(t, err)
	// total 5, available 2, committed 3

	// grow: delta rides onto available
	require.NoError(t, f.ledger.Resize(ctx, eq.EquipmentUid, 5, 8))
	require.Equal(t, 5, f.available(t, eq.EquipmentUid))

	// shrink below committed: available clamps at zero, never negative
	require.NoError(t, f.ledger.Resize(ctx, eq.EquipmentUid, 8, 2))
	got, err := f.store.GetEquipment(ctx, eq.EquipmentUid)
	require.NoError(t, err)
	require.Equal(t, 2, got.TotalCount)
	require.Equal(t, 0, got.AvailableCount)
}

func TestLedger_ReconcileErasesDrift(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	eq := f.addEquipment(t, 5, model.ConditionGood)

	rsv := f.pendingReservation(t, eq.EquipmentUid, 3)
	_, err := f.borrowing.Approve(ctx, rsv.ReservationUid, "bob")
	require.NoError(t, err)
	require.Equal(t, 2, f.available(t, eq.EquipmentUid))

	// simulate a crash between a transition and its ledger call: the count
	// drifts away from the reservation rows
	require.NoError(t, f.store.ReleaseStock(ctx, eq.EquipmentUid, 3))
	require.Equal(t, 5, f.available(t, eq.EquipmentUid))

	available, changed, err := f.ledger.Reconcile(ctx, eq.EquipmentUid)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 2, available)
	require.Equal(t, 2, f.available(t, eq.EquipmentUid))

	// idempotent: a second pass changes nothing
	available, changed, err = f.ledger.Reconcile(ctx, eq.EquipmentUid)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 2, available)
}
