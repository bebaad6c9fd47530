package api

import (
	"encoding/json"
	"time"
)

// Conversation is a conversation as seen by the signed-in user.
type Conversation struct {
	ID            string    `json:"id"`
	Participants  []string  `json:"participants"`
	Peer          string    `json:"peer"`
	PeerName      string    `json:"peer_name,omitempty"`
	Preview       string    `json:"preview"`
	LastMessageAt time.Time `json:"last_message_at"`
	Pinned        bool      `json:"pinned"`
	Unread        int       `json:"unread"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty"`
	Status         string    `json:"status"`
	SentAt         time.Time `json:"sent_at"`
	FromMe         bool      `json:"from_me"`
}

type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Handle      string `json:"handle,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Event is one bus event forwarded to a watcher.
type Event struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type Empty struct{}

type StatusRequest struct{}

type StatusResponse struct {
	Profile          string `json:"profile"`
	State            string `json:"state"`
	Detail           string `json:"detail,omitempty"`
	UserID           string `json:"user_id,omitempty"`
	UptimeMs         int64  `json:"uptime_ms"`
	OpenConversation string `json:"open_conversation,omitempty"`
	Conversations    int    `json:"conversations"`
	// Stored counts span the whole local store, every account included.
	StoredConversations int64  `json:"stored_conversations,omitempty"`
	StoredMessages      int64  `json:"stored_messages,omitempty"`
	ListError           string `json:"list_error,omitempty"`
	StreamError         string `json:"stream_error,omitempty"`
}

type SignUpRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type SignInRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type PasswordRequest struct {
	Password string `json:"password"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetResponse struct {
	Token string `json:"token"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type ProfileResponse struct {
	Profile Profile `json:"profile"`
}

type ListConversationsRequest struct {
	PinnedOnly bool `json:"pinned_only,omitempty"`
}

type SearchConversationsRequest struct {
	Query string `json:"query"`
}

type ListConversationsResponse struct {
	Query    string         `json:"query,omitempty"`
	Pinned   []Conversation `json:"pinned"`
	Unpinned []Conversation `json:"unpinned,omitempty"`
}

type OpenConversationRequest struct {
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type ConversationRequest struct {
	ConversationID string `json:"conversation_id"`
}

type ConversationResponse struct {
	Conversation Conversation `json:"conversation"`
}

type SendTextRequest struct {
	Text string `json:"text"`
}

type SendImageRequest struct {
	Data    []byte `json:"data"`
	Caption string `json:"caption,omitempty"`
}

type MessagesResponse struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
}

type FindMessagesRequest struct {
	Query string `json:"query"`
	// All searches every conversation through the full-text index instead
	// of scanning the open one.
	All   bool `json:"all,omitempty"`
	Limit int  `json:"limit,omitempty"`
}

type SearchHit struct {
	Message Message `json:"message"`
	Snippet string  `json:"snippet,omitempty"`
}

type FindMessagesResponse struct {
	Hits []SearchHit `json:"hits"`
}

type DeleteMessageRequest struct {
	MessageID string `json:"message_id"`
}

type ExportRequest struct {
	Path string `json:"path"`
}

type ExportResponse struct {
	Path     string `json:"path"`
	Messages int    `json:"messages"`
	Pages    int    `json:"pages"`
}

type SettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

type SettingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type WatchEventsRequest struct {
	// Namespaces limits the stream to these prefixes, e.g. "messages.".
	// Empty means all of conversations, messages, notify and session.
	Namespaces []string `json:"namespaces,omitempty"`
}
