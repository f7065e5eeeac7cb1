package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/campusops/equipment-service/internal/errs"
	"github.com/campusops/equipment-service/internal/model"
	"github.com/campusops/equipment-service/internal/repository"
)

// admission rejects inadmissible creation requests before they touch the
// store. Units are fungible, so a date window needs no overlap rule here: the
// stock check happens at approval, where the ledger decrements atomically.
type admission struct {
	store repository.Store
	clock Clock
}

func (a admission) checkAdmissible(ctx context.Context, equipmentUid string, quantity int, dueDate time.Time) (model.Equipment, error) {
	if quantity < 1 {
		return model.Equipment{}, errors.Wrap(errs.ErrValidation, "quantity must be at least 1")
	}
	if !dueDate.After(a.clock.Now()) {
		return model.Equipment{}, errors.Wrap(errs.ErrValidation, "due date must be in the future")
	}
	eq, err := a.store.GetEquipment(ctx, equipmentUid)
	if err != nil {
		return model.Equipment{}, err
	}
	if !eq.Active {
		return model.Equipment{}, errs.ErrInactive
	}
	return eq, nil
}
