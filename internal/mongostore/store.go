package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	conversationsColl = "conversations"
	messagesColl      = "messages"
	profilesColl      = "profiles"
)

// Store is the MongoDB document backend. Live queries use change streams,
// so the server must run as a replica set.
type Store struct {
	client        *mongo.Client
	conversations *mongo.Collection
	messages      *mongo.Collection
	profiles      *mongo.Collection
	logger        *zap.Logger
}

// Connect opens a client for uri, checks it with a ping and makes sure the
// indexes exist.
func Connect(ctx context.Context, uri, database string, logger *zap.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:        client,
		conversations: db.Collection(conversationsColl),
		messages:      db.Collection(messagesColl),
		profiles:      db.Collection(profilesColl),
		logger:        logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	logger.Info("mongo connected", zap.String("database", database))
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}},
		Options: options.Index().SetName("participants_recent_idx"),
	}); err != nil {
		return fmt.Errorf("create conversations index: %w", err)
	}
	if _, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "sent_at", Value: 1}},
		Options: options.Index().SetName("conversation_sent_idx"),
	}); err != nil {
		return fmt.Errorf("create messages index: %w", err)
	}
	if _, err := s.profiles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "handle", Value: 1}},
		Options: options.Index().SetName("handle_idx"),
	}); err != nil {
		return fmt.Errorf("create profiles index: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// GetConversation returns the conversation with id, or nil if it does not exist.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var d conversationDoc
	err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c := d.model()
	return &c, nil
}

// CreateConversation writes the whole document; a concurrent create of the
// same id simply overwrites an equal document.
func (s *Store) CreateConversation(ctx context.Context, c *model.Conversation) error {
	_, err := s.conversations.ReplaceOne(ctx, bson.M{"_id": c.ID}, conversationToDoc(c), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// ListConversations returns userID's conversations, most recent first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	cur, err := s.conversations.Find(ctx, bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	out := []model.Conversation{}
	for cur.Next(ctx) {
		var d conversationDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.model())
	}
	return out, cur.Err()
}

// SetPinned updates only pinned.<userID>.
func (s *Store) SetPinned(ctx context.Context, conversationID, userID string, pinned bool) error {
	return s.updateConversation(ctx, conversationID, bson.M{"$set": bson.M{"pinned." + userID: pinned}})
}

// ResetUnread sets unread.<userID> to zero.
func (s *Store) ResetUnread(ctx context.Context, conversationID, userID string) error {
	return s.updateConversation(ctx, conversationID, bson.M{"$set": bson.M{"unread." + userID: 0}})
}

func (s *Store) updateConversation(ctx context.Context, id string, update bson.M) error {
	res, err := s.conversations.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("conversation %q: %w", id, store.ErrNotFound)
	}
	return nil
}

// DeleteConversation removes the conversation document only.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	_, err := s.conversations.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// AppendMessage inserts m with status sent and then moves the parent
// conversation forward. The two writes are separate: when the second fails
// the message stays and the preview lags until the next send.
func (s *Store) AppendMessage(ctx context.Context, m *model.Message, recipientID string) (*model.Message, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	stored := *m
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.SentAt.IsZero() {
		stored.SentAt = time.Now()
	}
	stored.Status = stored.Status.Advance(model.Sent)

	if _, err := s.messages.InsertOne(ctx, messageToDoc(&stored)); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if err := s.updateConversation(ctx, stored.ConversationID, bson.M{
		"$set": bson.M{"preview": stored.Preview(), "last_message_at": stored.SentAt.UTC()},
		"$inc": bson.M{"unread." + recipientID: 1},
	}); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	return &stored, nil
}

// ListMessages returns a conversation's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	cur, err := s.messages.Find(ctx, bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	out := []model.Message{}
	for cur.Next(ctx) {
		var d messageDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		m, err := d.model()
		if err != nil {
			return nil, fmt.Errorf("message %q: %w", d.ID, err)
		}
		out = append(out, m)
	}
	return out, cur.Err()
}

// MarkSeen moves the given messages to seen in a single update.
func (s *Store) MarkSeen(ctx context.Context, conversationID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := s.messages.UpdateMany(ctx, bson.M{
		"_id":             bson.M{"$in": messageIDs},
		"conversation_id": conversationID,
		"status":          bson.M{"$ne": model.Seen.String()},
	}, bson.M{"$set": bson.M{"status": model.Seen.String()}})
	return err
}

// DeleteMessage hard-deletes one message.
func (s *Store) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	res, err := s.messages.DeleteOne(ctx, bson.M{"_id": messageID, "conversation_id": conversationID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("message %q: %w", messageID, store.ErrNotFound)
	}
	return nil
}

// DeleteMessages hard-deletes every message of a conversation.
func (s *Store) DeleteMessages(ctx context.Context, conversationID string) error {
	_, err := s.messages.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	return err
}

// UpsertProfile writes the non-empty fields of p.
func (s *Store) UpsertProfile(ctx context.Context, p *model.Profile) error {
	set := bson.M{}
	if p.DisplayName != "" {
		set["display_name"] = p.DisplayName
	}
	if p.Handle != "" {
		set["handle"] = p.Handle
	}
	if p.PhotoURL != "" {
		set["photo_url"] = p.PhotoURL
	}
	onInsert := bson.M{}
	for _, k := range []string{"display_name", "handle"} {
		if _, ok := set[k]; !ok {
			onInsert[k] = ""
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(onInsert) > 0 {
		update["$setOnInsert"] = onInsert
	}
	_, err := s.profiles.UpdateByID(ctx, p.UserID, update, options.Update().SetUpsert(true))
	return err
}

// GetProfile returns the profile of userID, or nil.
func (s *Store) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var d profileDoc
	err := s.profiles.FindOne(ctx, bson.M{"_id": userID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.Profile{UserID: d.UserID, DisplayName: d.DisplayName, Handle: d.Handle, PhotoURL: d.PhotoURL}, nil
}
