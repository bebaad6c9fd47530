package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type recorder struct {
	got []Notification
	err error
}

func (r *recorder) Notify(_ context.Context, n Notification) error {
	r.got = append(r.got, n)
	return r.err
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestBusPublishesLocalEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("notify.", 1)
	defer unsub()

	n := Notification{Title: "Alice", Body: "hi", ConversationID: "alice_bob"}
	if err := NewBus(b).Notify(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.NotifyLocal {
			t.Errorf("kind = %q, want %q", evt.Kind, bus.NotifyLocal)
		}
		if got, ok := evt.Payload.(Notification); !ok || got != n {
			t.Errorf("payload = %#v, want %#v", evt.Payload, n)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notify.local")
	}
}

func TestKafkaKeysByConversation(t *testing.T) {
	w := &fakeWriter{}
	k := newKafka(w, func() string { return "bob" }, zap.NewNop())

	if err := k.Notify(context.Background(), Notification{Title: "Alice", Body: "hi", ConversationID: "alice_bob"}); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "alice_bob" {
		t.Errorf("key = %q, want alice_bob", w.msgs[0].Key)
	}

	var p pushPayload
	if err := json.Unmarshal(w.msgs[0].Value, &p); err != nil {
		t.Fatal(err)
	}
	if p.RecipientID != "bob" || p.Title != "Alice" || p.Body != "hi" {
		t.Errorf("payload = %+v", p)
	}

	if err := k.Close(); err != nil || !w.closed {
		t.Error("Close did not close the writer")
	}
}

func TestKafkaWriteError(t *testing.T) {
	boom := errors.New("broker down")
	k := newKafka(&fakeWriter{err: boom}, nil, zap.NewNop())
	if err := k.Notify(context.Background(), Notification{}); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestFanoutDeliversToAll(t *testing.T) {
	boom := errors.New("offline")
	a, b := &recorder{}, &recorder{err: boom}
	err := Fanout{a, nil, b}.Notify(context.Background(), Notification{Body: "x"})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Errorf("deliveries = %d, %d; want 1, 1", len(a.got), len(b.got))
	}
}

func TestGateFollowsToggle(t *testing.T) {
	r := &recorder{}
	enabled := false
	g := &Gate{Next: r, Enabled: func() bool { return enabled }}

	_ = g.Notify(context.Background(), Notification{Body: "muted"})
	enabled = true
	_ = g.Notify(context.Background(), Notification{Body: "loud"})

	if len(r.got) != 1 || r.got[0].Body != "loud" {
		t.Errorf("got %+v, want only the unmuted notification", r.got)
	}
}
