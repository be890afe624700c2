// README: Kafka producer for the audit event stream.
package infra

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter builds an async producer. Keys pick the partition, so events
// of one channel stay ordered.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
	}
}
