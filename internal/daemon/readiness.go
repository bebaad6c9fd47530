package daemon

import (
	"context"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/status"
	"go.uber.org/zap"
)

// trackReadiness moves the machine from SYNCING to READY on every first
// conversation snapshot after a (re)start of the feed.
func trackReadiness(ctx context.Context, b *bus.Bus, machine *status.Machine, logger *zap.Logger) {
	ch, unsub := b.Subscribe("conversations.", 16)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if evt.Kind != bus.ConversationsUpdated {
				continue
			}
			if machine.Advance(status.Syncing, status.Ready) {
				logger.Info("conversation list synced")
			}
		case <-ctx.Done():
			return
		}
	}
}
