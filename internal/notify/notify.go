package notify

import (
	"context"
	"errors"
)

// Notification is a user-facing alert. ConversationID is the routing payload
// a UI uses to open the conversation when the alert is tapped.
type Notification struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	ConversationID string `json:"conversation_id"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range f {
		if nt == nil {
			continue
		}
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Gate drops notifications while Enabled reports false. Enabled is read on
// every call so a settings change takes effect immediately.
type Gate struct {
	Next    Notifier
	Enabled func() bool
}

func (g *Gate) Notify(ctx context.Context, n Notification) error {
	if g.Enabled != nil && !g.Enabled() {
		return nil
	}
	return g.Next.Notify(ctx, n)
}
