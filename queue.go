package receiptgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// ErrUnableToQueue wraps enqueue failures so callers can distinguish them
// from storage errors.
var ErrUnableToQueue = errors.New("unable to enqueue message")

// Queue re-enqueues raw biz-event messages for another generation attempt.
type Queue interface {
	Enqueue(ctx context.Context, key string, payload []byte) error
	Close() error
}

// NopQueue is a queue that does nothing. Useful for testing.
type NopQueue struct{}

func NewNopQueue() *NopQueue {
	return &NopQueue{}
}

func (q *NopQueue) Enqueue(_ context.Context, _ string, _ []byte) error {
	return nil
}

func (q *NopQueue) Close() error {
	return nil
}

// KafkaQueue sends messages to a Kafka topic.
type KafkaQueue struct {
	logger        *zap.Logger
	producer      *kafka.Producer
	producerProps kafka.ConfigMap
	topic         string
}

type KafkaQueueOption func(*KafkaQueue)

// WithKafkaTopic overrides the destination topic.
func WithKafkaTopic(topic string) KafkaQueueOption {
	return func(q *KafkaQueue) {
		q.topic = topic
	}
}

// WithKafkaConfig merges extra producer properties over the defaults.
func WithKafkaConfig(props kafka.ConfigMap) KafkaQueueOption {
	return func(q *KafkaQueue) {
		for k, v := range props {
			q.producerProps[k] = v
		}
	}
}

// NewKafkaQueue creates a new KafkaQueue with functional options.
func NewKafkaQueue(logger *zap.Logger, opts ...KafkaQueueOption) (*KafkaQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &KafkaQueue{
		logger: logger,
		producerProps: kafka.ConfigMap{
			"acks":               "all",
			"retries":            3,
			"linger.ms":          10,
			"enable.idempotence": true,
			"compression.type":   "snappy",
		},
		topic: "receipt-generation",
	}

	for _, opt := range opts {
		opt(q)
	}

	producer, err := kafka.NewProducer(&q.producerProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	q.producer = producer

	go q.handleDeliveryReports()

	return q, nil
}

// Enqueue sends a message keyed by the work-item reference.
func (q *KafkaQueue) Enqueue(_ context.Context, key string, payload []byte) error {
	q.logger.Debug("Enqueueing message",
		zap.String("key", key),
		zap.String("topic", q.topic),
	)

	message := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &q.topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          payload,
		Timestamp:      time.Now(),
	}

	if err := q.producer.Produce(message, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUnableToQueue, err)
	}
	return nil
}

// Close flushes the producer and closes the Kafka connection.
func (q *KafkaQueue) Close() error {
	q.logger.Info("Closing kafka producer")
	q.producer.Flush(15 * 1000) // 15 sec
	q.producer.Close()
	return nil
}

// handleDeliveryReports consumes delivery reports from the producer's events channel.
func (q *KafkaQueue) handleDeliveryReports() {
	for e := range q.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				q.logger.Error("Delivery failed",
					zap.String("topic", *ev.TopicPartition.Topic),
					zap.Error(ev.TopicPartition.Error),
				)
			}
		case kafka.Error:
			q.logger.Error("Kafka error", zap.Error(ev))
		}
	}
}
