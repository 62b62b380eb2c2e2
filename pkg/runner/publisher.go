package runner

import (
	"context"

	"github.com/opsforge/agentcore/pkg/events"
	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/stream"
)

// QueuePublisher adapts a *events.Broadcaster bound to one session's
// output stream into the narrow Publisher interface Runner depends on,
// so Runner never needs to hold a *stream.Queue itself.
type QueuePublisher struct {
	broadcaster *events.Broadcaster
	out         *stream.Queue
}

// NewQueuePublisher builds a QueuePublisher that durably appends to out
// and broadcasts through broadcaster.
func NewQueuePublisher(broadcaster *events.Broadcaster, out *stream.Queue) *QueuePublisher {
	return &QueuePublisher{broadcaster: broadcaster, out: out}
}

func (p *QueuePublisher) Publish(ctx context.Context, sessionID string, event model.Event) (string, error) {
	return p.broadcaster.Publish(ctx, p.out, sessionID, event)
}
