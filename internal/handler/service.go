package handler

import (
	"context"

	"github.com/campusops/equipment-service/internal/model"
	"github.com/campusops/equipment-service/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type EquipmentService interface {
	Create(ctx context.Context, req model.CreateEquipmentRequest) (model.Equipment, error)
	Get(ctx context.Context, uid string) (model.Equipment, error)
	List(ctx context.Context, showAll bool, page, size int) (model.ListEquipment, error)
	Update(ctx context.Context, uid string, req model.UpdateEquipmentRequest) (model.Equipment, error)
	Delete(ctx context.Context, uid string) error
}

type BorrowingService interface {
	Create(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error)
	Approve(ctx context.Context, reservationUid, approver string) (model.Reservation, error)
	Reject(ctx context.Context, reservationUid, approver, notes string) (model.Reservation, error)
	Issue(ctx context.Context, reservationUid string) (model.Reservation, error)
	Return(ctx context.Context, reservationUid string, conditionAfter model.Condition, notes, reporter string) (model.Reservation, error)
	Get(ctx context.Context, reservationUid string) (model.Reservation, error)
	List(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error)
}

type SweepService interface {
	RunSweep(ctx context.Context) (model.SweepReport, error)
}

var (
	_ EquipmentService = (*service.Equipment)(nil)
	_ BorrowingService = (*service.Borrowing)(nil)
	_ SweepService     = (*service.Reconciler)(nil)
)
