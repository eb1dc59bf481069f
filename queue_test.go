package receiptgen

import (
	"context"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
)

func TestNopQueue(t *testing.T) {
	queue := NewNopQueue()
	assert.NotNil(t, queue)
	assert.NoError(t, queue.Enqueue(context.Background(), "evt-1", []byte("payload")))
	assert.NoError(t, queue.Close())
}

func TestKafkaQueueOptions(t *testing.T) {
	q := &KafkaQueue{
		producerProps: kafka.ConfigMap{"acks": "all"},
		topic:         "receipt-generation",
	}

	WithKafkaTopic("receipt-retries")(q)
	WithKafkaConfig(kafka.ConfigMap{"acks": "1", "linger.ms": 5})(q)

	assert.Equal(t, "receipt-retries", q.topic)
	assert.Equal(t, "1", q.producerProps["acks"])
	assert.Equal(t, 5, q.producerProps["linger.ms"])
}
