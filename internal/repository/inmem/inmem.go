// Package inmem is a mutex-guarded Store for dev boxes and tests. It keeps
// the exact atomicity contract of the Postgres store: reserve is a single
// check-and-decrement under the lock, transitions are compare-and-set on
// status.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/campusops/equipment-service/internal/errs"
	"github.com/campusops/equipment-service/internal/model"
	"github.com/campusops/equipment-service/internal/repository"
)

type store struct {
	mu           sync.Mutex
	nextID       int
	equipment    map[string]*model.Equipment
	reservations map[string]*model.Reservation
	// insertion order, so listings are stable
	equipmentOrder   []string
	reservationOrder []string
}

var _ repository.Store = (*store)(nil)

func New() *store {
	return &store{
		equipment:    make(map[string]*model.Equipment),
		reservations: make(map[string]*model.Reservation),
	}
}

func (s *store) CreateEquipment(_ context.Context, eq model.Equipment) (model.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	eq.ID = s.nextID
	eq.Active = true
	eq.CreatedAt = time.Now().UTC()
	eq.UpdatedAt = eq.CreatedAt
	cp := eq
	s.equipment[eq.EquipmentUid] = &cp
	s.equipmentOrder = append(s.equipmentOrder, eq.EquipmentUid)
	return eq, nil
}

func (s *store) GetEquipment(_ context.Context, uid string) (model.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eq, ok := s.equipment[uid]
	if !ok {
		return model.Equipment{}, errs.ErrNotFound
	}
	return *eq, nil
}

func (s *store) ListEquipment(_ context.Context, showAll bool, page, size int) (model.ListEquipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]model.Equipment, 0, len(s.equipmentOrder))
	for _, uid := range s.equipmentOrder {
		eq := s.equipment[uid]
		if !showAll && !eq.Active {
			continue
		}
		items = append(items, *eq)
	}
	if page != 0 && size != 0 {
		lo := (page - 1) * size
		if lo > len(items) {
			lo = len(items)
		}
		hi := lo + size
		if hi > len(items) {
			hi = len(items)
		}
		items = items[lo:hi]
	}
	return model.ListEquipment{
		Paging: model.Paging{Page: page, PageSize: size, TotalElements: len(items)},
		Items:  items,
	}, nil
}

func (s *store) UpdateEquipmentMeta(_ context.Context, uid string, req model.UpdateEquipmentRequest) (model.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eq, ok := s.equipment[uid]
	if !ok {
		return model.Equipment{}, errs.ErrNotFound
	}
	if req.Name != nil {
		eq.Name = *req.Name
	}
	if req.Description != nil {
		eq.Description = *req.Description
	}
	if req.Condition != nil {
		eq.Condition = *req.Condition
	}
	eq.UpdatedAt = time.Now().UTC()
	return *eq, nil
}

func (s *store) DeactivateEquipment(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	eq, ok := s.equipment[uid]
	if !ok {
		return errs.ErrNotFound
	}
	eq.Active = false
	eq.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *store) ReserveStock(_ context.Context, uid string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	eq, ok := s.equipment[uid]
	if !ok {
		return errs.ErrNotFound
	}
	if !eq.Active {
		return errs.ErrInactive
	}
	if eq.AvailableCount < quantity {
		return errs.ErrInsufficientStock
	}
	eq.AvailableCount -= quantity
	eq.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *store) ReleaseStock(_ context.Context, uid string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	eq, ok := s.equipment[uid]
	if !ok {
		return errs.ErrNotFound
	}
	eq.AvailableCount += quantity
	if eq.AvailableCount > eq.TotalCount {
		eq.AvailableCount = eq.TotalCount
	}
	eq.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *store) ResizeStock(_ context.Context, uid string, oldTotal, newTotal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	eq, ok := s.equipment[uid]
	if !ok {
		return errs.ErrNotFound
	}
	eq.TotalCount = newTotal
	eq.AvailableCount += newTotal - oldTotal
	if eq.AvailableCount > newTotal {
		eq.AvailableCount = newTotal
	}
	if eq.AvailableCount < 0 {
		eq.AvailableCount = 0
	}
	eq.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *store) ReconcileStock(_ context.Context, uid string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eq, ok := s.equipment[uid]
	if !ok {
		return 0, false, errs.ErrNotFound
	}
	committed := 0
	for _, rsv := range s.reservations {
		if rsv.EquipmentUid != uid {
			continue
		}
		switch rsv.Status {
		case model.StatusApproved, model.StatusIssued, model.StatusOverdue:
			committed += rsv.Quantity
		}
	}
	available := eq.TotalCount - committed
	if available < 0 {
		available = 0
	}
	changed := eq.AvailableCount != available
	eq.AvailableCount = available
	eq.UpdatedAt = time.Now().UTC()
	return available, changed, nil
}

func (s *store) ActiveEquipmentUids(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uids := make([]string, 0, len(s.equipmentOrder))
	for _, uid := range s.equipmentOrder {
		if s.equipment[uid].Active {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

func (s *store) CreateReservation(_ context.Context, rsv model.Reservation) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.equipment[rsv.EquipmentUid]; !ok {
		return model.Reservation{}, errs.ErrNotFound
	}
	s.nextID++
	rsv.ID = s.nextID
	rsv.CreatedAt = time.Now().UTC()
	cp := rsv
	s.reservations[rsv.ReservationUid] = &cp
	s.reservationOrder = append(s.reservationOrder, rsv.ReservationUid)
	return rsv, nil
}

func (s *store) GetReservation(_ context.Context, uid string) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rsv, ok := s.reservations[uid]
	if !ok {
		return model.Reservation{}, errs.ErrNotFound
	}
	return *rsv, nil
}

func (s *store) ListReservations(_ context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]model.Reservation, 0, len(s.reservationOrder))
	for _, uid := range s.reservationOrder {
		rsv := s.reservations[uid]
		if filter.Username != "" && rsv.Username != filter.Username {
			continue
		}
		if filter.Status != "" && rsv.Status != filter.Status {
			continue
		}
		items = append(items, *rsv)
	}
	return items, nil
}

func (s *store) TransitionReservation(_ context.Context, uid string, tr repository.Transition) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rsv, ok := s.reservations[uid]
	if !ok {
		return model.Reservation{}, errs.ErrNotFound
	}
	matched := false
	for _, from := range tr.From {
		if rsv.Status == from {
			matched = true
			break
		}
	}
	if !matched {
		return *rsv, errs.ErrInvalidTransition
	}
	rsv.Status = tr.To
	if tr.ApprovedBy != nil {
		rsv.ApprovedBy = tr.ApprovedBy
	}
	if tr.ApprovedAt != nil {
		rsv.ApprovedAt = tr.ApprovedAt
	}
	if tr.IssuedAt != nil {
		rsv.IssuedAt = tr.IssuedAt
	}
	if tr.ReturnDate != nil {
		rsv.ReturnDate = tr.ReturnDate
	}
	if tr.ConditionAfter != nil {
		rsv.ConditionAfter = tr.ConditionAfter
	}
	if tr.Notes != nil {
		rsv.Notes = tr.Notes
	}
	if tr.Damage != nil {
		damage := *tr.Damage
		rsv.Damage = &damage
	}
	return *rsv, nil
}

func (s *store) PromoteOverdue(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	promoted := 0
	for _, uid := range s.reservationOrder {
		rsv := s.reservations[uid]
		if rsv.ReturnDate != nil || !rsv.DueDate.Before(now) {
			continue
		}
		if rsv.Status == model.StatusApproved || rsv.Status == model.StatusIssued {
			rsv.Status = model.StatusOverdue
			promoted++
		}
	}
	return promoted, nil
}
