package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func TestConversationDocRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &model.Conversation{
		ID:            "alice_bob",
		Participants:  []string{"alice", "bob"},
		Preview:       "hi",
		LastMessageAt: at,
		Pinned:        map[string]bool{"alice": true},
		Unread:        map[string]int{"bob": 2},
	}

	raw, err := bson.Marshal(conversationToDoc(c))
	if err != nil {
		t.Fatal(err)
	}
	var d conversationDoc
	if err := bson.Unmarshal(raw, &d); err != nil {
		t.Fatal(err)
	}
	got := d.model()
	if got.ID != c.ID || got.Preview != "hi" || !got.LastMessageAt.Equal(at) {
		t.Errorf("round trip = %+v", got)
	}
	if !got.PinnedFor("alice") || got.UnreadFor("bob") != 2 {
		t.Errorf("maps lost: pinned=%v unread=%v", got.Pinned, got.Unread)
	}
}

func TestMessageDocStatusNames(t *testing.T) {
	m := &model.Message{ID: "m1", ConversationID: "c", SenderID: "alice", Text: "yo", Status: model.Seen}
	d := messageToDoc(m)
	if d.Status != "seen" {
		t.Errorf("status stored as %q, want seen", d.Status)
	}
	back, err := d.model()
	if err != nil {
		t.Fatal(err)
	}
	if back.Status != model.Seen {
		t.Errorf("status = %s", back.Status)
	}

	d.Status = "bogus"
	if _, err := d.model(); err == nil {
		t.Error("unknown status should fail to decode")
	}
}

func TestChangeFilterMatchesFieldAndDeletes(t *testing.T) {
	p := changeFilter("conversation_id", "c1")
	if len(p) != 1 {
		t.Fatalf("pipeline stages = %d, want 1", len(p))
	}
	match, ok := p[0][0].Value.(bson.M)
	if p[0][0].Key != "$match" || !ok {
		t.Fatalf("stage = %v", p[0])
	}
	or, ok := match["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("$or = %v", match["$or"])
	}
	if or[0].(bson.M)["fullDocument.conversation_id"] != "c1" {
		t.Errorf("field clause = %v", or[0])
	}
	if or[1].(bson.M)["operationType"] != "delete" {
		t.Errorf("delete clause = %v", or[1])
	}
}

// testStore connects to CHATSYNC_TEST_MONGO_URI, which must point at a
// replica set. Each test gets its own database.
func testStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("CHATSYNC_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CHATSYNC_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := Connect(ctx, uri, "chatsync_test_"+uuid.NewString()[:8], zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = s.conversations.Database().Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestAppendMessageUpdatesConversation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv := &model.Conversation{ID: "alice_bob", Participants: []string{"alice", "bob"}}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}
	m, _ := model.NewMessage(conv.ID, "alice", "", "https://img/1.jpg")
	stored, err := s.AppendMessage(ctx, m, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID == "" || stored.Status != model.Sent {
		t.Errorf("stored = %+v", stored)
	}

	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil || got == nil {
		t.Fatalf("GetConversation = %v, %v", got, err)
	}
	if got.Preview != model.ImagePreview || got.UnreadFor("bob") != 1 {
		t.Errorf("conversation = %+v", got)
	}

	if err := s.MarkSeen(ctx, conv.ID, []string{stored.ID}); err != nil {
		t.Fatal(err)
	}
	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil || len(msgs) != 1 || msgs[0].Status != model.Seen {
		t.Errorf("ListMessages = %+v, %v", msgs, err)
	}

	if err := s.DeleteMessage(ctx, conv.ID, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteMessage(missing) = %v, want ErrNotFound", err)
	}
}

func TestWatchMessagesFollowsInserts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv := &model.Conversation{ID: "alice_bob", Participants: []string{"alice", "bob"}}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}

	sub := s.WatchMessages(ctx, conv.ID)
	defer sub.Cancel()

	select {
	case msgs := <-sub.C():
		if len(msgs) != 0 {
			t.Fatalf("initial snapshot = %d messages", len(msgs))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no initial snapshot")
	}

	m, _ := model.NewMessage(conv.ID, "bob", "hello", "")
	if _, err := s.AppendMessage(ctx, m, "alice"); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case msgs := <-sub.C():
			if len(msgs) == 1 && msgs[0].Text == "hello" {
				return
			}
		case <-deadline:
			t.Fatal("insert never reached the feed")
		}
	}
}
