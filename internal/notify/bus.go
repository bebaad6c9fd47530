package notify

import (
	"context"

	"github.com/matheus3301/chatsync/internal/bus"
)

// Bus publishes notifications as notify.local events for a foreground UI.
type Bus struct {
	bus *bus.Bus
}

// NewBus creates a notifier that publishes on b.
func NewBus(b *bus.Bus) *Bus {
	return &Bus{bus: b}
}

func (b *Bus) Notify(_ context.Context, n Notification) error {
	b.bus.Emit(bus.NotifyLocal, n)
	return nil
}
