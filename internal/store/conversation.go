package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/model"
)

// GetConversation returns a conversation by id, or nil if it does not exist.
func (db *DB) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	c := model.Conversation{ID: id}
	var lastAt int64
	err := db.QueryRowContext(ctx, `
		SELECT preview, last_message_at FROM conversations WHERE id = ?`, id).
		Scan(&c.Preview, &lastAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.LastMessageAt = time.UnixMilli(lastAt)

	byID := map[string]*model.Conversation{id: &c}
	if err := db.loadMembers(ctx, `WHERE conversation_id = ?`, []any{id}, byID); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation writes a conversation and its members. An existing
// record with the same id is overwritten (last write wins).
func (db *DB) CreateConversation(ctx context.Context, c *model.Conversation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, preview, last_message_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			preview = excluded.preview,
			last_message_at = excluded.last_message_at`,
		c.ID, c.Preview, c.LastMessageAt.UnixMilli(), now); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	for _, userID := range c.Participants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_members (conversation_id, user_id, pinned, unread)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(conversation_id, user_id) DO UPDATE SET
				pinned = excluded.pinned,
				unread = excluded.unread`,
			c.ID, userID, c.PinnedFor(userID), c.UnreadFor(userID)); err != nil {
			return fmt.Errorf("upsert member %q: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	db.conversationChanged(c.ID, c.Participants)
	return nil
}

// ListConversations returns the conversations userID takes part in, most
// recent activity first.
func (db *DB) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.id, c.preview, c.last_message_at
		FROM conversations c
		JOIN conversation_members m ON m.conversation_id = c.id
		WHERE m.user_id = ?
		ORDER BY c.last_message_at DESC, c.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	convs := []model.Conversation{}
	for rows.Next() {
		var c model.Conversation
		var lastAt int64
		if err := rows.Scan(&c.ID, &c.Preview, &lastAt); err != nil {
			return nil, err
		}
		c.LastMessageAt = time.UnixMilli(lastAt)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Conversation, len(convs))
	for i := range convs {
		byID[convs[i].ID] = &convs[i]
	}
	err = db.loadMembers(ctx, `
		WHERE conversation_id IN (SELECT conversation_id FROM conversation_members WHERE user_id = ?)`,
		[]any{userID}, byID)
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (db *DB) loadMembers(ctx context.Context, where string, args []any, byID map[string]*model.Conversation) error {
	rows, err := db.QueryContext(ctx, `
		SELECT conversation_id, user_id, pinned, unread
		FROM conversation_members `+where+`
		ORDER BY conversation_id, user_id`, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var convID, userID string
		var pinned bool
		var unread int
		if err := rows.Scan(&convID, &userID, &pinned, &unread); err != nil {
			return err
		}
		c, ok := byID[convID]
		if !ok {
			continue
		}
		c.Participants = append(c.Participants, userID)
		if pinned {
			if c.Pinned == nil {
				c.Pinned = make(map[string]bool)
			}
			c.Pinned[userID] = true
		}
		if unread > 0 {
			if c.Unread == nil {
				c.Unread = make(map[string]int)
			}
			c.Unread[userID] = unread
		}
	}
	return rows.Err()
}

// SetPinned updates a single member's pinned flag.
func (db *DB) SetPinned(ctx context.Context, conversationID, userID string, pinned bool) error {
	return db.updateMember(ctx, conversationID, userID, `pinned = ?`, pinned)
}

// ResetUnread sets a member's unread counter back to zero.
func (db *DB) ResetUnread(ctx context.Context, conversationID, userID string) error {
	return db.updateMember(ctx, conversationID, userID, `unread = ?`, 0)
}

func (db *DB) updateMember(ctx context.Context, conversationID, userID, set string, value any) error {
	res, err := db.ExecContext(ctx, `
		UPDATE conversation_members SET `+set+`
		WHERE conversation_id = ? AND user_id = ?`, value, conversationID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("conversation %q member %q: %w", conversationID, userID, ErrNotFound)
	}
	participants, err := db.participants(ctx, conversationID)
	if err != nil {
		return err
	}
	db.conversationChanged(conversationID, participants)
	return nil
}

// DeleteConversation removes the conversation record and its memberships.
// Messages are removed separately with DeleteMessages.
func (db *DB) DeleteConversation(ctx context.Context, id string) error {
	participants, err := db.participants(ctx, id)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	db.conversationChanged(id, participants)
	return nil
}

func (db *DB) participants(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id FROM conversation_members WHERE conversation_id = ? ORDER BY user_id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ConversationCount returns the total number of conversations.
func (db *DB) ConversationCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&count)
	return count, err
}
