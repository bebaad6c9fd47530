package model

import (
	"errors"
	"testing"
)

func TestNewMessageRejectsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		image   string
		wantErr bool
	}{
		{"text only", "hi", "", false},
		{"image only", "", "https://img/1.jpg", false},
		{"text and image", "look", "https://img/1.jpg", false},
		{"empty", "", "", true},
		{"whitespace", "   \n", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMessage("a_b", "a", tt.text, tt.image)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrEmptyMessage) {
				t.Errorf("error = %v, want ErrEmptyMessage", err)
			}
		})
	}
}

func TestImageOnlyMessage(t *testing.T) {
	m, err := NewMessage("a_b", "a", "", "https://img/1.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !m.HasImage() || m.HasText() {
		t.Errorf("HasImage=%v HasText=%v, want true/false", m.HasImage(), m.HasText())
	}
	if m.Status != Sending {
		t.Errorf("status = %s, want sending", m.Status)
	}
	if m.Preview() != ImagePreview {
		t.Errorf("preview = %q, want %q", m.Preview(), ImagePreview)
	}
}

func TestStatusAdvanceIsMonotonic(t *testing.T) {
	if got := Seen.Advance(Sent); got != Seen {
		t.Errorf("Seen.Advance(Sent) = %s, want seen", got)
	}
	if got := Sent.Advance(Seen); got != Seen {
		t.Errorf("Sent.Advance(Seen) = %s, want seen", got)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{Sending, Sent, Delivered, Seen} {
		got, err := ParseStatus(s.String())
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseStatus("read"); err == nil {
		t.Error("ParseStatus(read) should fail")
	}
}

func TestConversationDefaults(t *testing.T) {
	c := &Conversation{ID: "alice_bob", Participants: []string{"alice", "bob"}}
	if c.UnreadFor("bob") != 0 {
		t.Error("absent unread entry should default to 0")
	}
	if c.PinnedFor("bob") {
		t.Error("absent pinned entry should default to false")
	}
	if got := c.OtherParticipant("alice"); got != "bob" {
		t.Errorf("OtherParticipant(alice) = %q, want bob", got)
	}
}

func TestConversationCloneIsDeep(t *testing.T) {
	c := Conversation{ID: "a_b", Participants: []string{"a", "b"}, Unread: map[string]int{"b": 1}}
	cp := c.Clone()
	cp.Unread["b"] = 9
	cp.Participants[0] = "z"
	if c.Unread["b"] != 1 || c.Participants[0] != "a" {
		t.Error("Clone shares state with the original")
	}
}
