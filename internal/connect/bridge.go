package connect

import (
	"context"
	"sync"
)

// bridge resolves one connect attempt from its adapter's event stream.
// The first terminal event of the attempt wins; events of other attempts,
// intermediate events, and any terminal event after the first leave it
// untouched.
type bridge struct {
	attemptID string
	once      sync.Once
	done      chan StatusEvent
}

func newBridge(attemptID string) *bridge {
	return &bridge{
		attemptID: attemptID,
		done:      make(chan StatusEvent, 1),
	}
}

// observe feeds one stream event to the bridge.
func (b *bridge) observe(event StatusEvent) {
	if event.AttemptID != b.attemptID || !event.Terminal() {
		return
	}
	b.once.Do(func() {
		b.done <- event
	})
}

// wait blocks until the attempt resolves or ctx ends.
func (b *bridge) wait(ctx context.Context) (StatusEvent, error) {
	select {
	case event := <-b.done:
		return event, nil
	case <-ctx.Done():
		return StatusEvent{}, ctx.Err()
	}
}
