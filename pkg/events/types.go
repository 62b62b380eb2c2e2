// Package events provides real-time event delivery to connected
// WebSocket clients. The durable record of a session's events lives in
// the Redis-backed stream (pkg/stream, pkg/store); this package is the
// single-process live fan-out layer plus catchup for clients that
// reconnect mid-conversation.
//
// Broadcaster.Publish appends to the session's output stream (durable)
// and then fans the same event out to subscribed connections (live).
// Late subscribers replay the missed range straight from the stream via
// CatchupQuerier, so there is no separate at-rest event log to keep in
// sync — the stream IS the log.
package events

// WSMessageType discriminates the small set of control/event envelopes
// sent over a WebSocket connection.
const (
	WSTypeConnectionEstablished = "connection.established"
	WSTypeSubscriptionConfirmed = "subscription.confirmed"
	WSTypeSubscriptionError     = "subscription.error"
	WSTypeCatchupOverflow       = "catchup.overflow"
	WSTypeError                 = "error"
	WSTypePong                  = "pong"
	WSTypeEvent                 = "event"
)

// GlobalSessionsChannel carries session-list-level status events (used by
// the session list page for live status updates).
const GlobalSessionsChannel = "sessions"

// SessionChannel returns the channel name for one session's event stream.
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action      string `json:"action"`                  // "subscribe", "unsubscribe", "catchup", "ping"
	Channel     string `json:"channel,omitempty"`       // e.g. "session:abc-123"
	LastEventID string `json:"last_event_id,omitempty"` // stream ID cursor for catchup
}
