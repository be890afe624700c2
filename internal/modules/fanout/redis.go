// README: Redis pub/sub sink; the websocket stream subscribes to the same channels.
package fanout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "agrimatch:"

type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	env, err := NewEnvelope(channel, event, payload, time.Now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, redisChannelPrefix+channel, data).Err()
}

// Subscribe opens a pub/sub session on the given fanout channels.
func (p *RedisPublisher) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	keys := make([]string, len(channels))
	for i, c := range channels {
		keys[i] = redisChannelPrefix + c
	}
	return p.redis.Subscribe(ctx, keys...)
}

// Listen adapts Subscribe to the Subscriber contract used by the live stream.
func (p *RedisPublisher) Listen(ctx context.Context, channels ...string) (<-chan []byte, func()) {
	ps := p.Subscribe(ctx, channels...)
	out := make(chan []byte, hubBuffer)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, func() { _ = ps.Close() }
}
