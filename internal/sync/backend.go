package sync

import (
	"context"
	"errors"
	"io"

	"github.com/matheus3301/chatsync/internal/feed"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/notify"
)

var (
	// ErrNotStarted is returned by list operations before Start.
	ErrNotStarted = errors.New("synchronizer not started")
	// ErrNoConversation is returned when an operation needs an open or existing conversation.
	ErrNoConversation = errors.New("no such conversation")
)

// Backend is the document store the synchronizers read from and write to.
type Backend interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, c *model.Conversation) error
	SetPinned(ctx context.Context, conversationID, userID string, pinned bool) error
	ResetUnread(ctx context.Context, conversationID, userID string) error
	DeleteConversation(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, m *model.Message, recipientID string) (*model.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	MarkSeen(ctx context.Context, conversationID string, messageIDs []string) error
	DeleteMessage(ctx context.Context, conversationID, messageID string) error
	DeleteMessages(ctx context.Context, conversationID string) error

	WatchConversations(ctx context.Context, userID string) *feed.Subscription[[]model.Conversation]
	WatchMessages(ctx context.Context, conversationID string) *feed.Subscription[[]model.Message]
}

// Notifier raises user-facing alerts for new activity.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// ImageUploader validates and hosts an image, returning its URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, r io.Reader) (string, error)
}
