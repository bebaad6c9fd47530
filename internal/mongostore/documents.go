package mongostore

import (
	"time"

	"github.com/matheus3301/chatsync/internal/model"
)

type conversationDoc struct {
	ID            string          `bson:"_id"`
	Participants  []string        `bson:"participants"`
	Preview       string          `bson:"preview"`
	LastMessageAt time.Time       `bson:"last_message_at"`
	Pinned        map[string]bool `bson:"pinned,omitempty"`
	Unread        map[string]int  `bson:"unread,omitempty"`
}

func conversationToDoc(c *model.Conversation) conversationDoc {
	return conversationDoc{
		ID:            c.ID,
		Participants:  c.Participants,
		Preview:       c.Preview,
		LastMessageAt: c.LastMessageAt.UTC(),
		Pinned:        c.Pinned,
		Unread:        c.Unread,
	}
}

func (d conversationDoc) model() model.Conversation {
	return model.Conversation{
		ID:            d.ID,
		Participants:  d.Participants,
		Preview:       d.Preview,
		LastMessageAt: d.LastMessageAt,
		Pinned:        d.Pinned,
		Unread:        d.Unread,
	}
}

type messageDoc struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	SenderID       string    `bson:"sender_id"`
	Text           string    `bson:"text"`
	ImageURL       string    `bson:"image_url,omitempty"`
	Status         string    `bson:"status"`
	SentAt         time.Time `bson:"sent_at"`
}

func messageToDoc(m *model.Message) messageDoc {
	return messageDoc{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		ImageURL:       m.ImageURL,
		Status:         m.Status.String(),
		SentAt:         m.SentAt.UTC(),
	}
}

func (d messageDoc) model() (model.Message, error) {
	st, err := model.ParseStatus(d.Status)
	if err != nil {
		return model.Message{}, err
	}
	return model.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Text:           d.Text,
		ImageURL:       d.ImageURL,
		Status:         st,
		SentAt:         d.SentAt,
	}, nil
}

type profileDoc struct {
	UserID      string `bson:"_id"`
	DisplayName string `bson:"display_name"`
	Handle      string `bson:"handle"`
	PhotoURL    string `bson:"photo_url,omitempty"`
}
