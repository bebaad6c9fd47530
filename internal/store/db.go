package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/matheus3301/chatsync/internal/bus"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when an update targets a missing document.
var ErrNotFound = errors.New("not found")

// DB wraps the SQLite database that plays the document backend for a profile.
// Every write is announced on an internal change bus that feeds live queries.
type DB struct {
	*sql.DB
	changes *bus.Bus
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, changes: bus.New()}, nil
}

func (db *DB) conversationChanged(id string, participants []string) {
	db.changes.Emit(bus.StoreConversation, bus.ConversationChange{ConversationID: id, Participants: participants})
}

func (db *DB) messageChanged(conversationID, messageID string) {
	db.changes.Emit(bus.StoreMessage, bus.MessageChange{ConversationID: conversationID, MessageID: messageID})
}
