// README: Log sink used when no broker is configured (memory mode).
package fanout

import (
	"context"
	"log"
)

type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, channel, event string, _ any) error {
	log.Printf("fanout %s -> %s", event, channel)
	return nil
}
