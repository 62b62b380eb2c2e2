package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/stream"
)

// Broadcaster appends an event to its session's durable output stream
// and fans the same event out to any WebSocket clients currently
// subscribed to that session's channel. The stream write happens first:
// a client that catches up immediately after seeing the live broadcast
// will always find the event already present.
type Broadcaster struct {
	manager *ConnectionManager
}

// NewBroadcaster builds a Broadcaster delivering through manager.
func NewBroadcaster(manager *ConnectionManager) *Broadcaster {
	return &Broadcaster{manager: manager}
}

// Publish appends event to sessionID's output stream and broadcasts it
// to the session channel (plus the global sessions channel for a
// session.status-shaped event, mirroring the teacher's dual-publish for
// session lifecycle transitions).
func (b *Broadcaster) Publish(ctx context.Context, out *stream.Queue, sessionID string, event model.Event) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("events: marshal event: %w", err)
	}
	id, err := out.Put(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("events: put event: %w", err)
	}

	channel := SessionChannel(sessionID)
	b.manager.Broadcast(channel, newWSEvent(channel, id, event))

	if event.Type == model.EventDone || event.Type == model.EventError {
		b.manager.Broadcast(GlobalSessionsChannel, newWSEvent(GlobalSessionsChannel, id, event))
	}

	return id, nil
}

// StreamCatchupQuerier implements CatchupQuerier by replaying a session's
// output stream range, translating raw stream payloads back into events.
type StreamCatchupQuerier struct {
	streamFor func(channel string) *stream.Queue
}

// NewStreamCatchupQuerier builds a StreamCatchupQuerier. streamFor maps a
// channel name (as produced by SessionChannel) to the Queue backing it;
// the caller owns Queue lifecycle and connection pooling.
func NewStreamCatchupQuerier(streamFor func(channel string) *stream.Queue) *StreamCatchupQuerier {
	return &StreamCatchupQuerier{streamFor: streamFor}
}

func (q *StreamCatchupQuerier) Catchup(ctx context.Context, channel, lastEventID string, limit int) ([]WSEvent, bool, error) {
	queue := q.streamFor(channel)
	if queue == nil {
		return nil, false, nil
	}

	start := "(" + lastEventID
	if lastEventID == "0" || lastEventID == "" {
		start = "-"
	}

	entries := queue.Range(ctx, start, "+", int64(limit+1))
	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	out := make([]WSEvent, 0, len(entries))
	for _, e := range entries {
		var evt model.Event
		if err := json.Unmarshal(e.Payload, &evt); err != nil {
			continue
		}
		out = append(out, newWSEvent(channel, e.ID, evt))
	}
	return out, hasMore, nil
}
