package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/chatsync/internal/model"
)

type fakeDirectory struct {
	profiles map[string]*model.Profile
	calls    map[string]int
	err      error
}

func (f *fakeDirectory) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[userID]++
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles[userID], nil
}

func TestEnsureFetchesOnce(t *testing.T) {
	dir := &fakeDirectory{profiles: map[string]*model.Profile{
		"alice": {UserID: "alice", DisplayName: "Alice"},
	}}
	c := NewCache(dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := c.Ensure(ctx, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if p.DisplayName != "Alice" {
			t.Errorf("display name = %q, want Alice", p.DisplayName)
		}
	}
	if dir.calls["alice"] != 1 {
		t.Errorf("directory called %d times, want 1", dir.calls["alice"])
	}
}

func TestLookupDoesNotFetch(t *testing.T) {
	dir := &fakeDirectory{}
	c := NewCache(dir)

	if _, ok := c.Lookup("bob"); ok {
		t.Error("Lookup should miss on empty cache")
	}
	if len(dir.calls) != 0 {
		t.Error("Lookup must not call the directory")
	}

	c.Put(model.Profile{UserID: "bob", Handle: "b"})
	if p, ok := c.Lookup("bob"); !ok || p.Handle != "b" {
		t.Errorf("Lookup(bob) = %+v, %v", p, ok)
	}
}

func TestEnsureErrors(t *testing.T) {
	c := NewCache(&fakeDirectory{})
	if _, err := c.Ensure(context.Background(), "ghost"); err == nil {
		t.Error("missing profile should fail")
	}
	if c.Len() != 0 {
		t.Error("failed fetch must not be cached")
	}

	boom := errors.New("permission denied")
	c = NewCache(&fakeDirectory{err: boom})
	if _, err := c.Ensure(context.Background(), "alice"); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}
