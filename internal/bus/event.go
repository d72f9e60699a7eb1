package bus

import "time"

// Event kinds published on the bus. The push.* kinds mirror the named
// events delivered on the server socket; ui.* kinds are one-way
// notifications for a presentation layer and never touch the store.
const (
	KindPushMessage    = "push.message"
	KindPushJoinedRoom = "push.joined_room"
	KindPushDisconnect = "push.disconnect"

	KindConnStatusChanged = "conn.status_changed"

	KindStateChannels = "state.channels_changed"
	KindStateMessages = "state.messages_changed"

	KindUIScrollLatest = "ui.scroll_latest"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
