package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payment-service/internal/data/entity"
	"payment-service/pkg/apperror"

	"github.com/IBM/sarama"
)

const targetKafka = "kafka"

// Event is the payload published for every reconciled transaction.
type Event struct {
	TransactionID   string    `json:"transaction_id"`
	OrderCode       string    `json:"order_code"`
	PaymentMethodID string    `json:"payment_method_id"`
	Status          string    `json:"status"`
	Amount          string    `json:"amount"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func NewEvent(tx *entity.Transaction, at time.Time) Event {
	return Event{
		TransactionID:   tx.ID.String(),
		OrderCode:       tx.OrderCode,
		PaymentMethodID: tx.PaymentMethodID,
		Status:          string(tx.Status),
		Amount:          tx.Amount.StringFixed(2),
		ReferenceNumber: tx.Reference(),
		OccurredAt:      at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Timeout = 5 * time.Second
	config.Net.DialTimeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish keys messages by order code so one order's events stay ordered within a partition.
func (p *KafkaPublisher) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return &apperror.DownstreamNotificationError{OrderCode: event.OrderCode, Target: targetKafka, Err: err}
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.OrderCode),
		Value:     sarama.ByteEncoder(data),
		Timestamp: event.OccurredAt,
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return &apperror.DownstreamNotificationError{OrderCode: event.OrderCode, Target: targetKafka, Err: err}
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
