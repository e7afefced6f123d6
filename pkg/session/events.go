package session

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventConnecting      EventType = "connecting"
	EventConnected       EventType = "connected"
	EventConnectFailed   EventType = "connect_failed"
	EventDisconnected    EventType = "disconnected"
	EventSnapshotUpdated EventType = "snapshot_updated"
	EventQueryFailed     EventType = "query_failed"
)

// Event represents a session event.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
