// README: Event fanout contract and channel naming (per actor, match, topic, urgency).
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agrimatch/internal/types"
)

type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// Envelope is the wire form every sink receives.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

func NewEnvelope(channel, event string, payload any, at time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("fanout: marshal %s payload: %w", event, err)
	}
	return Envelope{Channel: channel, Event: event, Payload: raw, At: at.UTC()}, nil
}

func ActorChannel(id types.ID) string {
	return "actor:" + string(id)
}

func MatchChannel(id types.ID) string {
	return "match:" + string(id)
}

// TopicChannel groups supply/demand announcements by crop and county.
func TopicChannel(crop, county string) string {
	return "topic:" + types.NormalizeCrop(crop) + ":" + types.NormalizeCrop(county)
}

func UrgencyChannel(urgency string) string {
	return "urgency:" + urgency
}

// Multi publishes to every sink and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, channel, event string, payload any) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, channel, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }
