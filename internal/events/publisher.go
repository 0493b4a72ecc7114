// Package events publishes order transitions for downstream consumers
// (order history, notifications). Publishing is best effort; the state
// machine never blocks on the broker.
package events

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const TransitionsTopic = "order.transitions"

type TransitionEvent struct {
	OrderID string    `json:"order_id"`
	EventID string    `json:"event_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
}

type Publisher interface {
	PublishTransition(event TransitionEvent)
}

type kafkaPublisher struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
}

// NewKafkaPublisher connects a sync producer to broker. Callers fall
// back to Nop when no broker is configured.
func NewKafkaPublisher(broker string, logger *zap.Logger) (Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer([]string{broker}, cfg)
	if err != nil {
		return nil, err
	}
	return &kafkaPublisher{producer: producer, logger: logger}, nil
}

func (p *kafkaPublisher) PublishTransition(event TransitionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal transition event", zap.Error(err))
		return
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: TransitionsTopic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		p.logger.Error("publish transition event",
			zap.String("order_id", event.OrderID),
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
}

type nopPublisher struct{}

func Nop() Publisher { return nopPublisher{} }

func (nopPublisher) PublishTransition(TransitionEvent) {}
