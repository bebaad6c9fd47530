package bus

import "time"

// Event kinds published by the client. Subscribers filter on the namespace
// prefix (everything up to and including the first dot).
const (
	ConversationsUpdated = "conversations.updated"
	ConversationsError   = "conversations.error"
	MessagesUpdated      = "messages.updated"
	MessagesClosed       = "messages.closed"
	MessagesError        = "messages.error"
	NotifyLocal          = "notify.local"
	SessionStatus        = "session.status_changed"
	SessionSignedIn      = "session.signed_in"
	SessionSignedOut     = "session.signed_out"

	// Store change events drive the SQLite live queries.
	StoreConversation = "store.conversation"
	StoreMessage      = "store.message"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// ConversationChange is the payload of StoreConversation events.
type ConversationChange struct {
	ConversationID string
	Participants   []string
}

// MessageChange is the payload of StoreMessage events.
type MessageChange struct {
	ConversationID string
	MessageID      string
}
