package bus

import "time"

// Event kinds published on the bus. Subscribers filter by namespace prefix,
// e.g. "message." receives every message-related kind.
const (
	KindRealtimeUp   = "realtime.up"
	KindRealtimeDown = "realtime.down"

	KindMessageIngested   = "message.ingested"
	KindMessageSendFailed = "message.send_failed"

	KindChatOpened       = "chat.opened"
	KindChatClosed       = "chat.closed"
	KindChatReconciled   = "chat.reconciled"
	KindChatStateChanged = "chat.state_changed"

	KindListChanged = "list.changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
