package model

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// ImagePreview is the preview text shown for messages that carry only an image.
const ImagePreview = "📷 Photo"

// ErrEmptyMessage is returned when a message has neither text nor an image.
var ErrEmptyMessage = errors.New("message has no text and no image")

// Conversation is the record shared by exactly two participants.
type Conversation struct {
	ID            string
	Participants  []string
	Preview       string
	LastMessageAt time.Time
	Pinned        map[string]bool
	Unread        map[string]int
}

// UnreadFor returns the unread counter of userID (0 when absent).
func (c *Conversation) UnreadFor(userID string) int {
	if c.Unread == nil {
		return 0
	}
	return c.Unread[userID]
}

// PinnedFor reports whether userID pinned the conversation.
func (c *Conversation) PinnedFor(userID string) bool {
	if c.Pinned == nil {
		return false
	}
	return c.Pinned[userID]
}

// OtherParticipant returns the participant that is not userID, or "" if none.
func (c *Conversation) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// Clone returns a deep copy so callers can hand snapshots to observers.
func (c Conversation) Clone() Conversation {
	c.Participants = slices.Clone(c.Participants)
	if c.Pinned != nil {
		p := make(map[string]bool, len(c.Pinned))
		for k, v := range c.Pinned {
			p[k] = v
		}
		c.Pinned = p
	}
	if c.Unread != nil {
		u := make(map[string]int, len(c.Unread))
		for k, v := range c.Unread {
			u[k] = v
		}
		c.Unread = u
	}
	return c
}

// Message is a single entry of a conversation.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Text           string
	ImageURL       string
	SentAt         time.Time
	Status         Status
}

// NewMessage builds a client-side message in the Sending state.
func NewMessage(conversationID, senderID, text, imageURL string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && imageURL == "" {
		return nil, ErrEmptyMessage
	}
	return &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		ImageURL:       imageURL,
		SentAt:         time.Now(),
		Status:         Sending,
	}, nil
}

// Validate enforces that a message carries text, an image, or both.
func (m *Message) Validate() error {
	if !m.HasText() && !m.HasImage() {
		return ErrEmptyMessage
	}
	return nil
}

// HasText reports whether the message body is non-empty.
func (m *Message) HasText() bool { return strings.TrimSpace(m.Text) != "" }

// HasImage reports whether the message references an image.
func (m *Message) HasImage() bool { return m.ImageURL != "" }

// Preview returns the conversation preview text for this message.
func (m *Message) Preview() string {
	if m.HasImage() && !m.HasText() {
		return ImagePreview
	}
	return m.Text
}

// Profile is the cached summary of a user.
type Profile struct {
	UserID      string
	DisplayName string
	Handle      string
	PhotoURL    string
}

// Name returns the display name, falling back to handle and then the id.
func (p *Profile) Name() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Handle != "":
		return p.Handle
	default:
		return p.UserID
	}
}
