package api

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/bus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const eventBuffer = 256

var defaultNamespaces = []string{"conversations.", "messages.", "notify.", "session."}

// WatchEvents forwards bus events to the caller until it disconnects. The
// store's own change events are internal and never forwarded.
func (s *Service) WatchEvents(req *WatchEventsRequest, stream grpc.ServerStream) error {
	namespaces := req.Namespaces
	if len(namespaces) == 0 {
		namespaces = defaultNamespaces
	}

	merged := make(chan bus.Event, eventBuffer)
	for _, ns := range namespaces {
		if !strings.HasSuffix(ns, ".") {
			ns += "."
		}
		if ns == "store." {
			continue
		}
		ch, unsub := s.Bus.Subscribe(ns, eventBuffer)
		defer unsub()
		go forward(stream, ch, merged)
	}

	for {
		select {
		case evt := <-merged:
			out := &Event{ID: uuid.NewString(), Kind: evt.Kind, OccurredAt: evt.Timestamp}
			if evt.Payload != nil {
				raw, err := json.Marshal(evt.Payload)
				if err != nil {
					s.Logger.Warn("event payload not encodable", zap.String("kind", evt.Kind), zap.Error(err))
				} else {
					out.Payload = raw
				}
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func forward(stream grpc.ServerStream, in <-chan bus.Event, out chan<- bus.Event) {
	for {
		select {
		case evt, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- evt:
			case <-stream.Context().Done():
				return
			}
		case <-stream.Context().Done():
			return
		}
	}
}
