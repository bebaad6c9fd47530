package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/model"
)

// AppendMessage stores m with status sent and, in the same transaction,
// moves the conversation preview and timestamp forward and bumps the
// recipient's unread counter. The stored copy is returned.
func (db *DB) AppendMessage(ctx context.Context, m *model.Message, recipientID string) (*model.Message, error) {
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

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, image_url, status, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.ConversationID, stored.SenderID, stored.Text, stored.ImageURL,
		stored.Status.String(), stored.SentAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE conversations SET preview = ?, last_message_at = ? WHERE id = ?`,
		stored.Preview(), stored.SentAt.UnixMilli(), stored.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("update preview: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("conversation %q: %w", stored.ConversationID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversation_members SET unread = unread + 1
		WHERE conversation_id = ? AND user_id = ?`,
		stored.ConversationID, recipientID); err != nil {
		return nil, fmt.Errorf("bump unread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	db.messageChanged(stored.ConversationID, stored.ID)
	participants, err := db.participants(ctx, stored.ConversationID)
	if err == nil {
		db.conversationChanged(stored.ConversationID, participants)
	}
	return &stored, nil
}

// ListMessages returns every message of a conversation, oldest first.
func (db *DB) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, body, image_url, status, sent_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY sent_at ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	msgs := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner, extra ...any) (model.Message, error) {
	var m model.Message
	var status string
	var sentAt int64
	dest := append([]any{&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.ImageURL, &status, &sentAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return m, err
	}
	st, err := model.ParseStatus(status)
	if err != nil {
		return m, err
	}
	m.Status = st
	m.SentAt = time.UnixMilli(sentAt)
	return m, nil
}

// MarkSeen moves the given messages to seen. Messages already seen are left alone.
func (db *DB) MarkSeen(ctx context.Context, conversationID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE messages SET status = 'seen'
		WHERE conversation_id = ? AND id = ? AND status != 'seen'`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	changed := 0
	for _, id := range messageIDs {
		res, err := stmt.ExecContext(ctx, conversationID, id)
		if err != nil {
			return fmt.Errorf("mark %q seen: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			changed++
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if changed > 0 {
		db.messageChanged(conversationID, "")
	}
	return nil
}

// DeleteMessage hard-deletes one message.
func (db *DB) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ? AND id = ?`, conversationID, messageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %q: %w", messageID, ErrNotFound)
	}
	db.messageChanged(conversationID, messageID)
	return nil
}

// DeleteMessages hard-deletes every message of a conversation.
func (db *DB) DeleteMessages(ctx context.Context, conversationID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}
	db.messageChanged(conversationID, "")
	return nil
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
