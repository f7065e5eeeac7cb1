package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/campusops/equipment-service/internal/errs"
	"github.com/campusops/equipment-service/internal/model"
	"github.com/campusops/equipment-service/internal/repository"
)

// Borrowing owns the reservation lifecycle:
//
//	PENDING -> APPROVED -> ISSUED -> RETURNED
//	PENDING -> REJECTED
//	APPROVED|ISSUED -> OVERDUE -> RETURNED
//
// Every transition is a compare-and-set on status, so concurrent calls on one
// reservation yield exactly one winner. Stock commits at approval, not at
// request time: pending requests may oversubscribe scarce stock and staff
// resolve them first-approved-first-served.
type Borrowing struct {
	store     repository.Store
	ledger    *Ledger
	clock     Clock
	admission admission
	log       *zap.Logger
}

func NewBorrowing(store repository.Store, ledger *Ledger, clock Clock, log *zap.Logger) *Borrowing {
	return &Borrowing{
		store:     store,
		ledger:    ledger,
		clock:     clock,
		admission: admission{store: store, clock: clock},
		log:       log.Named("borrowing"),
	}
}

func (b *Borrowing) Create(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error) {
	eq, err := b.admission.checkAdmissible(ctx, req.EquipmentUid, req.Quantity, req.DueDate)
	if err != nil {
		return model.Reservation{}, err
	}
	rsv := model.Reservation{
		ReservationUid:  uuid.New().String(),
		EquipmentUid:    eq.EquipmentUid,
		Username:        req.Username,
		Quantity:        req.Quantity,
		Status:          model.StatusPending,
		BorrowDate:      b.clock.Now(),
		DueDate:         req.DueDate,
		ConditionBefore: eq.Condition,
	}
	return b.store.CreateReservation(ctx, rsv)
}

// Approve is the point of stock commitment. The status CAS wins first, then
// the ledger decrements; if stock is short the status reverts to PENDING and
// the request stays in the queue.
func (b *Borrowing) Approve(ctx context.Context, reservationUid, approver string) (model.Reservation, error) {
	now := b.clock.Now()
	rsv, err := b.store.TransitionReservation(ctx, reservationUid, repository.Transition{
		From:       []model.Status{model.StatusPending},
		To:         model.StatusApproved,
		ApprovedBy: &approver,
		ApprovedAt: &now,
	})
	if err != nil {
		if errors.Is(err, errs.ErrInvalidTransition) {
			return rsv, errs.ErrAlreadyProcessed
		}
		return model.Reservation{}, err
	}

	if err := b.ledger.Reserve(ctx, rsv.EquipmentUid, rsv.Quantity); err != nil {
		if _, revertErr := b.store.TransitionReservation(ctx, reservationUid, repository.Transition{
			From: []model.Status{model.StatusApproved},
			To:   model.StatusPending,
		}); revertErr != nil {
			// the next reconciliation sweep recounts from the reservation
			// rows, so a failed revert self-heals
			b.log.Error("approve revert", zap.String("reservation", reservationUid), zap.Error(revertErr))
		}
		return model.Reservation{}, err
	}
	return rsv, nil
}

func (b *Borrowing) Reject(ctx context.Context, reservationUid, approver, notes string) (model.Reservation, error) {
	now := b.clock.Now()
	tr := repository.Transition{
		From:       []model.Status{model.StatusPending},
		To:         model.StatusRejected,
		ApprovedBy: &approver,
		ApprovedAt: &now,
	}
	if notes != "" {
		tr.Notes = &notes
	}
	rsv, err := b.store.TransitionReservation(ctx, reservationUid, tr)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidTransition) {
			return rsv, errs.ErrAlreadyProcessed
		}
		return model.Reservation{}, err
	}
	return rsv, nil
}

func (b *Borrowing) Issue(ctx context.Context, reservationUid string) (model.Reservation, error) {
	now := b.clock.Now()
	rsv, err := b.store.TransitionReservation(ctx, reservationUid, repository.Transition{
		From:     []model.Status{model.StatusApproved},
		To:       model.StatusIssued,
		IssuedAt: &now,
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return rsv, nil
}

// Return closes out an issued or overdue reservation and hands the units
// back to the ledger. A condition change attaches the damage report, created
// exactly once, right here.
func (b *Borrowing) Return(ctx context.Context, reservationUid string, conditionAfter model.Condition, notes, reporter string) (model.Reservation, error) {
	current, err := b.store.GetReservation(ctx, reservationUid)
	if err != nil {
		return model.Reservation{}, err
	}

	now := b.clock.Now()
	tr := repository.Transition{
		From:           []model.Status{model.StatusIssued, model.StatusOverdue},
		To:             model.StatusReturned,
		ReturnDate:     &now,
		ConditionAfter: &conditionAfter,
	}
	if notes != "" {
		tr.Notes = &notes
	}
	if conditionAfter != current.ConditionBefore {
		tr.Damage = &model.DamageReport{
			Description:  damageDescription(current.ConditionBefore, conditionAfter, notes),
			ReportedAt:   now,
			ReportedBy:   reporter,
			RepairStatus: model.RepairReported,
		}
	}

	rsv, err := b.store.TransitionReservation(ctx, reservationUid, tr)
	if err != nil {
		return model.Reservation{}, err
	}

	if err := b.ledger.Release(ctx, rsv.EquipmentUid, rsv.Quantity); err != nil {
		// reservation is RETURNED either way; the sweep recomputes the count
		b.log.Error("release on return", zap.String("reservation", reservationUid), zap.Error(err))
	}
	return rsv, nil
}

func (b *Borrowing) Get(ctx context.Context, reservationUid string) (model.Reservation, error) {
	return b.store.GetReservation(ctx, reservationUid)
}

func (b *Borrowing) List(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	return b.store.ListReservations(ctx, filter)
}

func damageDescription(before, after model.Condition, notes string) string {
	desc := "condition changed from " + string(before) + " to " + string(after)
	if notes != "" {
		desc += ": " + notes
	}
	return desc
}
