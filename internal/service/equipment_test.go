package service_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/equipment-service/internal/model"
	"github.com/campusops/equipment-service/internal/repository/inmem"
	"github.com/campusops/equipment-service/internal/service"
)

type captureEnqueuer struct {
	fail bool
	msgs []any
}

func (q *captureEnqueuer) Enqueue(_ string, v any) error {
	if q.fail {
		return errors.New("broker down")
	}
	q.msgs = append(q.msgs, v)
	return nil
}

func TestEquipment_CreateStartsFullyAvailable(t *testing.T) {
	t.Parallel()
	store := inmem.New()
	log := zap.NewExample().Named("test")
	svc := service.NewEquipment(store, service.NewLedger(store, log), &captureEnqueuer{}, log)

	eq, err := svc.Create(context.Background(), model.CreateEquipmentRequest{
		Name:       "kayak",
		Condition:  model.ConditionExcellent,
		TotalCount: 4,
	})
	require.NoError(t, err)
	require.Equal(t, 4, eq.TotalCount)
	require.Equal(t, 4, eq.AvailableCount)
	require.True(t, eq.Active)
	require.NotEmpty(t, eq.EquipmentUid)
}

func TestEquipment_UpdatePublishesResize(t *testing.T) {
	t.Parallel()
	store := inmem.New()
	log := zap.NewExample().Named("test")
	q := &captureEnqueuer{}
	svc := service.NewEquipment(store, service.NewLedger(store, log), q, log)
	ctx := context.Background()

	eq, err := svc.Create(ctx, model.CreateEquipmentRequest{
		Name: "kayak", Condition: model.ConditionGood, TotalCount: 4,
	})
	require.NoError(t, err)

	newTotal := 6
	_, err = svc.Update(ctx, eq.EquipmentUid, model.UpdateEquipmentRequest{TotalCount: &newTotal})
	require.NoError(t, err)

	require.Len(t, q.msgs, 1)
	require.Equal(t, model.ResizeMsg{
		EquipmentUid: eq.EquipmentUid,
		OldTotal:     4,
		NewTotal:     6,
	}, q.msgs[0])
}

func TestEquipment_UpdateResizesInProcessWhenPublishFails(t *testing.T) {
	t.Parallel()
	store := inmem.New()
	log := zap.NewExample().Named("test")
	svc := service.NewEquipment(store, service.NewLedger(store, log), &captureEnqueuer{fail: true}, log)
	ctx := context.Background()

	eq, err := svc.Create(ctx, model.CreateEquipmentRequest{
		Name: "kayak", Condition: model.ConditionGood, TotalCount: 4,
	})
	require.NoError(t, err)

	newTotal := 7
	got, err := svc.Update(ctx, eq.EquipmentUid, model.UpdateEquipmentRequest{TotalCount: &newTotal})
	require.NoError(t, err)
	require.Equal(t, 7, got.TotalCount)
	require.Equal(t, 7, got.AvailableCount)
}

func TestEquipment_SoftDelete(t *testing.T) {
	t.Parallel()
	store := inmem.New()
	log := zap.NewExample().Named("test")
	svc := service.NewEquipment(store, service.NewLedger(store, log), &captureEnqueuer{}, log)
	ctx := context.Background()

	eq, err := svc.Create(ctx, model.CreateEquipmentRequest{
		Name: "kayak", Condition: model.ConditionGood, TotalCount: 4,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, eq.EquipmentUid))

	// soft-deleted: still readable, filtered from the active listing
	got, err := svc.Get(ctx, eq.EquipmentUid)
	require.NoError(t, err)
	require.False(t, got.Active)

	list, err := svc.List(ctx, false, 0, 0)
	require.NoError(t, err)
	require.Empty(t, list.Items)

	all, err := svc.List(ctx, true, 0, 0)
	require.NoError(t, err)
	require.Len(t, all.Items, 1)
}
