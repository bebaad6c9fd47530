package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	stdsync "sync"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/feed"
	"github.com/matheus3301/chatsync/internal/media"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/profile"
	"go.uber.org/zap"
)

const localIDPrefix = "local-"

// StreamSync follows the messages of the one open conversation. It marks
// the peer's messages seen and notifies about new ones.
type StreamSync struct {
	backend  Backend
	profiles *profile.Cache
	notifier Notifier
	images   ImageUploader
	bus      *bus.Bus
	logger   *zap.Logger

	startMu stdsync.Mutex

	mu             stdsync.Mutex
	userID         string
	conversationID string
	peer           string
	sub            *feed.Subscription[[]model.Message]
	gen            uint64
	primed         bool
	messages       []model.Message
	pending        []model.Message
	err            error
}

// NewStreamSync creates a message stream synchronizer.
func NewStreamSync(backend Backend, profiles *profile.Cache, notifier Notifier, images ImageUploader, b *bus.Bus, logger *zap.Logger) *StreamSync {
	return &StreamSync{
		backend:  backend,
		profiles: profiles,
		notifier: notifier,
		images:   images,
		bus:      b,
		logger:   logger,
	}
}

func (s *StreamSync) setUser(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

func (s *StreamSync) setPeer(peer string) {
	s.mu.Lock()
	s.peer = peer
	s.mu.Unlock()
}

// Start follows conversationID. Any previous subscription is cancelled
// before the new one is opened, so at most one conversation is watched.
func (s *StreamSync) Start(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation id is required")
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	old := s.sub
	s.resetLocked()
	s.conversationID = conversationID
	s.mu.Unlock()

	old.Cancel()

	sub := s.backend.WatchMessages(context.WithoutCancel(ctx), conversationID)

	s.mu.Lock()
	s.sub = sub
	gen := s.gen
	s.mu.Unlock()

	s.logger.Info("message stream started", zap.String("conversation_id", conversationID))
	go s.consume(context.WithoutCancel(ctx), gen, sub)
	return nil
}

// Stop cancels the subscription and clears the cached messages. Observers
// get a messages.closed event unless silent is set.
func (s *StreamSync) Stop(silent bool) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	old, id := s.sub, s.conversationID
	s.resetLocked()
	s.mu.Unlock()

	old.Cancel()
	if id != "" && !silent {
		s.bus.Emit(bus.MessagesClosed, id)
	}
}

func (s *StreamSync) resetLocked() {
	s.sub = nil
	s.gen++
	s.conversationID = ""
	s.peer = ""
	s.primed = false
	s.messages = nil
	s.pending = nil
	s.err = nil
}

func (s *StreamSync) consume(ctx context.Context, gen uint64, sub *feed.Subscription[[]model.Message]) {
	for msgs := range sub.C() {
		s.handleSnapshot(ctx, gen, msgs)
	}
	if err := sub.Err(); err != nil && s.live(gen) {
		s.fail("message feed", err)
	}
}

func (s *StreamSync) live(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// handleSnapshot replaces the cached messages with msgs, notifies about a
// newly arrived peer message and marks the peer's messages seen.
func (s *StreamSync) handleSnapshot(ctx context.Context, gen uint64, msgs []model.Message) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	userID, conversationID := s.userID, s.conversationID

	var alert *notify.Notification
	if s.primed && len(msgs) > len(s.messages) {
		newest := msgs[len(msgs)-1]
		if newest.SenderID != userID {
			if p, ok := s.profiles.Lookup(newest.SenderID); ok {
				alert = &notify.Notification{
					Title:          p.Name(),
					Body:           newest.Preview(),
					ConversationID: conversationID,
				}
			}
		}
	}
	s.primed = true
	s.messages = msgs
	s.pending = slices.DeleteFunc(s.pending, func(p model.Message) bool {
		return containsID(msgs, p.ID)
	})

	var unseen []string
	for _, m := range msgs {
		if m.SenderID != userID && m.Status != model.Seen {
			unseen = append(unseen, m.ID)
		}
	}
	s.mu.Unlock()

	if alert != nil {
		if err := s.notifier.Notify(ctx, *alert); err != nil {
			s.logger.Warn("notify failed", zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}

	if len(unseen) > 0 {
		if err := s.backend.MarkSeen(ctx, conversationID, unseen); err != nil {
			s.fail("mark seen", err)
		}
	}

	s.emitLive(gen, bus.MessagesUpdated, conversationID)
}

// emitLive publishes only while gen is the active subscription, so nothing
// about a replaced conversation reaches observers.
func (s *StreamSync) emitLive(gen uint64, kind string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.bus.Emit(kind, payload)
	}
}

func containsID(msgs []model.Message, id string) bool {
	return slices.ContainsFunc(msgs, func(m model.Message) bool { return m.ID == id })
}

// SendText appends a text message to the open conversation. Blank text and
// a closed stream are no-ops.
func (s *StreamSync) SendText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.send(ctx, text, "")
}

// SendImage uploads the image and then appends it with an optional caption.
func (s *StreamSync) SendImage(ctx context.Context, image io.Reader, caption string) error {
	if s.ConversationID() == "" {
		return nil
	}
	url, err := s.images.UploadImage(ctx, image)
	if err != nil {
		if errors.Is(err, media.ErrImageTooLarge) {
			return err
		}
		return s.fail("upload image", err)
	}
	return s.send(ctx, caption, url)
}

// send shows a placeholder in the sending state right away and replaces it
// once the backend accepts the message. The feed snapshot carrying the
// stored message retires the placeholder.
func (s *StreamSync) send(ctx context.Context, text, imageURL string) error {
	s.mu.Lock()
	userID, conversationID, peer, gen := s.userID, s.conversationID, s.peer, s.gen
	s.mu.Unlock()
	if conversationID == "" {
		return nil
	}

	msg, err := model.NewMessage(conversationID, userID, text, imageURL)
	if err != nil {
		return err
	}

	if peer == "" {
		if peer, err = s.resolvePeer(ctx, conversationID, userID); err != nil {
			return s.fail("send message", err)
		}
	}

	msg.ID = localIDPrefix + uuid.NewString()
	localID := msg.ID
	s.mu.Lock()
	if s.gen == gen {
		s.pending = append(s.pending, *msg)
	}
	s.mu.Unlock()
	s.emitLive(gen, bus.MessagesUpdated, conversationID)

	toStore := *msg
	toStore.ID = ""
	stored, err := s.backend.AppendMessage(ctx, &toStore, peer)

	s.mu.Lock()
	i := slices.IndexFunc(s.pending, func(p model.Message) bool { return p.ID == localID })
	switch {
	case i < 0:
	case err != nil || containsID(s.messages, stored.ID):
		s.pending = slices.Delete(s.pending, i, i+1)
	default:
		s.pending[i] = *stored
	}
	s.mu.Unlock()

	if err != nil {
		s.emitLive(gen, bus.MessagesUpdated, conversationID)
		return s.fail("send message", err)
	}
	s.logger.Debug("message sent", zap.String("conversation_id", conversationID), zap.String("msg_id", stored.ID))
	return nil
}

func (s *StreamSync) resolvePeer(ctx context.Context, conversationID, userID string) (string, error) {
	c, err := s.backend.GetConversation(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", fmt.Errorf("%q: %w", conversationID, ErrNoConversation)
	}
	peer := c.OtherParticipant(userID)
	s.mu.Lock()
	if s.conversationID == conversationID {
		s.peer = peer
	}
	s.mu.Unlock()
	return peer, nil
}

// DeleteMessage hard-deletes a message of the open conversation.
func (s *StreamSync) DeleteMessage(ctx context.Context, messageID string) error {
	conversationID := s.ConversationID()
	if conversationID == "" {
		return ErrNoConversation
	}
	if err := s.backend.DeleteMessage(ctx, conversationID, messageID); err != nil {
		return s.fail("delete message", err)
	}
	return nil
}

// SearchInConversation reads the open conversation once and returns the
// messages whose text contains query, ignoring case. The cached list is
// left alone.
func (s *StreamSync) SearchInConversation(ctx context.Context, query string) ([]model.Message, error) {
	conversationID := s.ConversationID()
	if conversationID == "" {
		return nil, ErrNoConversation
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}
	msgs, err := s.backend.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, s.fail("search messages", err)
	}
	var out []model.Message
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.Text), query) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Messages returns the cached messages oldest first, followed by any
// messages still being sent.
func (s *StreamSync) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, 0, len(s.messages)+len(s.pending))
	out = append(out, s.messages...)
	return append(out, s.pending...)
}

// ConversationID returns the open conversation, or "".
func (s *StreamSync) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Err returns the last failure, if any.
func (s *StreamSync) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *StreamSync) fail(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	s.logger.Error("message stream", zap.String("op", op), zap.Error(err))
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.bus.Emit(bus.MessagesError, err.Error())
	return err
}
