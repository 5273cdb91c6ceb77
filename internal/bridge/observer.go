package bridge

import "time"

// EventType classifies session events.
type EventType string

// Session event types.
const (
	EventOpened   EventType = "opened"
	EventClosed   EventType = "closed"
	EventRejected EventType = "rejected"
	EventUplink   EventType = "uplink"
	EventDownlink EventType = "downlink"
)

// Event describes something that happened to a session.
// For EventRejected only Session.ConnID and Session.NodeID are set.
type Event struct {
	Type    EventType   `json:"type"`
	Session SessionInfo `json:"session"`
	Bytes   int         `json:"bytes,omitempty"`
	Error   string      `json:"error,omitempty"`
	Time    time.Time   `json:"time"`
}

// Observer receives session events. Implementations must not block and
// must not call back into the Registry.
type Observer interface {
	OnSessionEvent(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

// OnSessionEvent calls f(ev).
func (f ObserverFunc) OnSessionEvent(ev Event) { f(ev) }
