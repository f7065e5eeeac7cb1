package handler

import (
	"context"
	"sync"

	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/campusops/equipment-service/internal/model"
)

type resizeFn func(ctx context.Context, equipmentUid string, oldTotal, newTotal int) error

// Consumer drains the equipment-stock topic: every total-count edit lands
// here and is applied through the ledger's resize.
type Consumer struct {
	resizeHandler resizeFn
	log           *zap.Logger
	ready         chan bool
	readyOnce     sync.Once
}

func NewConsumer(resize resizeFn, log *zap.Logger) *Consumer {
	return &Consumer{
		resizeHandler: resize,
		log:           log.Named("consumer"),
		ready:         make(chan bool),
	}
}

// Setup runs on every rebalance; the ready gate closes once.
func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	consumer.readyOnce.Do(func() { close(consumer.ready) })
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			var msg model.ResizeMsg
			if err := json.Unmarshal(message.Value, &msg); err != nil {
				consumer.log.Error("resize unmarshal", zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}

			if err := consumer.resizeHandler(context.Background(), msg.EquipmentUid, msg.OldTotal, msg.NewTotal); err != nil {
				consumer.log.Error("consumer.resizeHandler", zap.Error(err))
				continue
			}

			consumer.log.Debug("Message claimed:", zap.String("value", string(message.Value)), zap.Time("timestamp", message.Timestamp), zap.String("topic", message.Topic))
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
