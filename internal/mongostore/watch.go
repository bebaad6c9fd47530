package mongostore

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatsync/internal/feed"
	"github.com/matheus3301/chatsync/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// changeFilter matches inserts, updates and replaces whose document has
// field == value, plus every delete (deletes carry only the document key).
func changeFilter(field, value string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"fullDocument." + field: value},
			bson.M{"operationType": "delete"},
		}}}},
	}
}

// WatchConversations streams userID's conversation list, most recent first.
func (s *Store) WatchConversations(ctx context.Context, userID string) *feed.Subscription[[]model.Conversation] {
	return feed.Start(ctx, 1, func(ctx context.Context, emit func([]model.Conversation) bool) error {
		return s.watch(ctx, s.conversations, changeFilter("participants", userID), func() error {
			convs, err := s.ListConversations(ctx, userID)
			if err != nil {
				return err
			}
			if !emit(convs) {
				return context.Canceled
			}
			return nil
		})
	})
}

// WatchMessages streams the messages of one conversation, oldest first.
func (s *Store) WatchMessages(ctx context.Context, conversationID string) *feed.Subscription[[]model.Message] {
	return feed.Start(ctx, 1, func(ctx context.Context, emit func([]model.Message) bool) error {
		return s.watch(ctx, s.messages, changeFilter("conversation_id", conversationID), func() error {
			msgs, err := s.ListMessages(ctx, conversationID)
			if err != nil {
				return err
			}
			if !emit(msgs) {
				return context.Canceled
			}
			return nil
		})
	})
}

// watch opens the change stream before the first query so no write between
// the two is missed, then re-runs query after every batch of changes.
func (s *Store) watch(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, query func() error) error {
	cs, err := coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return fmt.Errorf("open change stream on %s: %w", coll.Name(), err)
	}
	defer func() { _ = cs.Close(context.WithoutCancel(ctx)) }()

	if err := query(); err != nil {
		return err
	}

	for cs.Next(ctx) {
		for cs.RemainingBatchLength() > 0 && cs.TryNext(ctx) {
		}
		if err := query(); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.logger.Warn("change stream ended", zap.String("collection", coll.Name()), zap.Error(cs.Err()))
	return cs.Err()
}
