package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusops/equipment-service/internal/model"
	"github.com/campusops/equipment-service/internal/repository"
	"github.com/campusops/equipment-service/pkg/circuit_breaker"
	"github.com/campusops/equipment-service/pkg/kafka"
)

// Equipment is the metadata plumbing around the ledger: create, list, edit,
// soft delete. A total-count edit publishes a ResizeMsg on the stock topic;
// the consumer side drives Ledger.Resize. If the broker is unreachable the
// resize applies synchronously so metadata edits never block on Kafka.
type Equipment struct {
	store    repository.Store
	ledger   *Ledger
	enqueuer kafka.Enqueuer
	cb       circuit_breaker.CircuitBreaker
	log      *zap.Logger
}

func NewEquipment(store repository.Store, ledger *Ledger, enqueuer kafka.Enqueuer, log *zap.Logger) *Equipment {
	return &Equipment{
		store:    store,
		ledger:   ledger,
		enqueuer: enqueuer,
		cb:       circuit_breaker.New(20, 30*time.Second, 0.5, 5),
		log:      log.Named("equipment"),
	}
}

func (e *Equipment) Create(ctx context.Context, req model.CreateEquipmentRequest) (model.Equipment, error) {
	eq := model.Equipment{
		EquipmentUid: uuid.New().String(),
		Name:         req.Name,
		Description:  req.Description,
		Condition:    req.Condition,
		TotalCount:   req.TotalCount,
		// a fresh pool starts fully available
		AvailableCount: req.TotalCount,
		Active:         true,
	}
	return e.store.CreateEquipment(ctx, eq)
}

func (e *Equipment) Get(ctx context.Context, uid string) (model.Equipment, error) {
	return e.store.GetEquipment(ctx, uid)
}

func (e *Equipment) List(ctx context.Context, showAll bool, page, size int) (model.ListEquipment, error) {
	return e.store.ListEquipment(ctx, showAll, page, size)
}

func (e *Equipment) Update(ctx context.Context, uid string, req model.UpdateEquipmentRequest) (model.Equipment, error) {
	current, err := e.store.GetEquipment(ctx, uid)
	if err != nil {
		return model.Equipment{}, err
	}

	eq := current
	if req.Name != nil || req.Description != nil || req.Condition != nil {
		if eq, err = e.store.UpdateEquipmentMeta(ctx, uid, req); err != nil {
			return model.Equipment{}, err
		}
	}

	if req.TotalCount != nil && *req.TotalCount != current.TotalCount {
		msg := model.ResizeMsg{
			EquipmentUid: uid,
			OldTotal:     current.TotalCount,
			NewTotal:     *req.TotalCount,
		}
		pubErr := e.cb.Call(func() error {
			return e.enqueuer.Enqueue(kafka.StockTopic, msg)
		})
		if pubErr != nil {
			e.log.Warn("stock event publish, resizing in-process",
				zap.String("equipment", uid), zap.Error(pubErr))
			if err := e.ledger.Resize(ctx, uid, msg.OldTotal, msg.NewTotal); err != nil {
				return model.Equipment{}, err
			}
		}
		return e.store.GetEquipment(ctx, uid)
	}
	return eq, nil
}

// Delete flips active off; rows are never physically removed, the
// reservation history stays auditable.
func (e *Equipment) Delete(ctx context.Context, uid string) error {
	return e.store.DeactivateEquipment(ctx, uid)
}
