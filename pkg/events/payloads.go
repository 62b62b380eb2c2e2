package events

import "github.com/opsforge/agentcore/pkg/model"

// WSEvent is the envelope delivered to WebSocket clients for both live
// broadcasts and catchup replay. StreamID is the Redis stream entry ID
// the event was appended under, letting clients resume from exactly
// where they left off on reconnect.
type WSEvent struct {
	Type     string      `json:"type"` // always WSTypeEvent
	Channel  string      `json:"channel"`
	StreamID string      `json:"stream_id"`
	Event    model.Event `json:"event"`
}

func newWSEvent(channel, streamID string, event model.Event) WSEvent {
	return WSEvent{Type: WSTypeEvent, Channel: channel, StreamID: streamID, Event: event}
}
