package store

import (
	"context"
	"slices"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/feed"
	"github.com/matheus3301/chatsync/internal/model"
)

const changeBuffer = 128

// WatchConversations streams userID's conversation list, most recent first.
// The first snapshot is sent immediately; later ones follow every write that
// touches a conversation the user takes part in.
func (db *DB) WatchConversations(ctx context.Context, userID string) *feed.Subscription[[]model.Conversation] {
	return feed.Start(ctx, 1, func(ctx context.Context, emit func([]model.Conversation) bool) error {
		return db.watch(ctx, bus.StoreConversation,
			func(evt bus.Event) bool {
				change, ok := evt.Payload.(bus.ConversationChange)
				return ok && slices.Contains(change.Participants, userID)
			},
			func() error {
				convs, err := db.ListConversations(ctx, userID)
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
func (db *DB) WatchMessages(ctx context.Context, conversationID string) *feed.Subscription[[]model.Message] {
	return feed.Start(ctx, 1, func(ctx context.Context, emit func([]model.Message) bool) error {
		return db.watch(ctx, bus.StoreMessage,
			func(evt bus.Event) bool {
				change, ok := evt.Payload.(bus.MessageChange)
				return ok && change.ConversationID == conversationID
			},
			func() error {
				msgs, err := db.ListMessages(ctx, conversationID)
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

// watch re-runs query after every matching change event. Bursts of events
// that arrive while a query runs collapse into one re-run.
func (db *DB) watch(ctx context.Context, kind string, match func(bus.Event) bool, query func() error) error {
	ch, unsub := db.changes.Subscribe(kind, changeBuffer)
	defer unsub()

	if err := query(); err != nil {
		return err
	}

	for {
		select {
		case evt := <-ch:
			if !match(evt) {
				continue
			}
			drain(ch)
			if err := query(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func drain(ch <-chan bus.Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
