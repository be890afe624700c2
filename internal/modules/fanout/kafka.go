// README: Kafka sink; every fanout event is appended to one audit topic keyed by channel.
package fanout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	now := time.Now()
	env, err := NewEnvelope(channel, event, payload, now)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	// Same channel, same partition: per-match ordering survives the broker.
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(channel),
		Value: data,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
		},
	})
}
