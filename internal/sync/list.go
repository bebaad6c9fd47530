package sync

import (
	"context"
	"fmt"
	"slices"
	"strings"
	stdsync "sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chatid"
	"github.com/matheus3301/chatsync/internal/feed"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/profile"
	"go.uber.org/zap"
)

// ListSync keeps the signed-in user's conversation list in step with the
// backend and raises a notification whenever a conversation's unread counter
// goes up.
type ListSync struct {
	backend  Backend
	profiles *profile.Cache
	notifier Notifier
	stream   *StreamSync
	bus      *bus.Bus
	logger   *zap.Logger

	startMu stdsync.Mutex

	mu            stdsync.Mutex
	userID        string
	sub           *feed.Subscription[[]model.Conversation]
	gen           uint64
	conversations []model.Conversation
	shadow        map[string]int
	query         string
	current       string
	err           error
}

// NewListSync creates a list synchronizer. stream is driven when a
// conversation is opened or closed.
func NewListSync(backend Backend, profiles *profile.Cache, notifier Notifier, stream *StreamSync, b *bus.Bus, logger *zap.Logger) *ListSync {
	return &ListSync{
		backend:  backend,
		profiles: profiles,
		notifier: notifier,
		stream:   stream,
		bus:      b,
		logger:   logger,
		shadow:   make(map[string]int),
	}
}

// Start subscribes to userID's conversations. Calling it again for the same
// user is a no-op while the feed is live; a different user tears the previous
// subscription down first.
func (l *ListSync) Start(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	l.startMu.Lock()
	defer l.startMu.Unlock()

	l.mu.Lock()
	if l.userID == userID && l.sub != nil && !isDone(l.sub.Done()) {
		l.mu.Unlock()
		return nil
	}
	old, prevUser, current := l.sub, l.userID, l.current
	l.resetLocked()
	if prevUser == userID {
		l.current = current
	}
	l.mu.Unlock()

	old.Cancel()
	if prevUser != userID {
		l.stream.Stop(true)
	}
	l.stream.setUser(userID)

	sub := l.backend.WatchConversations(context.WithoutCancel(ctx), userID)

	l.mu.Lock()
	l.userID = userID
	l.sub = sub
	gen := l.gen
	l.mu.Unlock()

	l.logger.Info("conversation feed started", zap.String("user_id", userID))
	go l.consume(context.WithoutCancel(ctx), gen, sub)
	return nil
}

// Stop cancels the conversation feed and forgets the user. The open
// conversation, if any, is closed silently.
func (l *ListSync) Stop() {
	l.startMu.Lock()
	defer l.startMu.Unlock()

	l.mu.Lock()
	old := l.sub
	l.resetLocked()
	l.userID = ""
	l.mu.Unlock()

	old.Cancel()
	l.stream.Stop(true)
	l.stream.setUser("")
}

func (l *ListSync) resetLocked() {
	l.sub = nil
	l.gen++
	l.conversations = nil
	l.shadow = make(map[string]int)
	l.current = ""
	l.err = nil
}

func (l *ListSync) consume(ctx context.Context, gen uint64, sub *feed.Subscription[[]model.Conversation]) {
	for convs := range sub.C() {
		l.handleSnapshot(ctx, gen, convs)
	}
	if err := sub.Err(); err != nil && l.live(gen) {
		l.fail("conversation feed", err)
	}
}

func (l *ListSync) live(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen == gen
}

// handleSnapshot replaces the cached list with convs and raises one
// notification per conversation whose unread counter went up.
func (l *ListSync) handleSnapshot(ctx context.Context, gen uint64, convs []model.Conversation) {
	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		return
	}
	userID := l.userID
	l.conversations = convs

	var edges []model.Conversation
	for _, c := range convs {
		unread := c.UnreadFor(userID)
		if unread > l.shadow[c.ID] {
			edges = append(edges, c)
		}
		l.shadow[c.ID] = unread
	}
	l.mu.Unlock()

	for _, c := range edges {
		other := c.OtherParticipant(userID)
		p, err := l.profiles.Ensure(ctx, other)
		if err != nil {
			l.logger.Warn("sender profile unavailable", zap.String("conversation_id", c.ID), zap.Error(err))
			continue
		}
		if !l.live(gen) {
			return
		}
		if err := l.notifier.Notify(ctx, notify.Notification{
			Title:          p.Name(),
			Body:           c.Preview,
			ConversationID: c.ID,
		}); err != nil {
			l.logger.Warn("notify failed", zap.String("conversation_id", c.ID), zap.Error(err))
		}
	}

	for _, c := range convs {
		other := c.OtherParticipant(userID)
		if other == "" {
			continue
		}
		if _, err := l.profiles.Ensure(ctx, other); err != nil {
			l.logger.Debug("profile fetch failed", zap.String("user_id", other), zap.Error(err))
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return
	}
	l.logger.Debug("conversations updated", zap.Int("count", len(convs)), zap.Int("new_activity", len(edges)))
	l.bus.Emit(bus.ConversationsUpdated, userID)
}

// Search sets a case-insensitive filter over participant name, handle and
// preview. It only affects what Conversations returns.
func (l *ListSync) Search(query string) {
	l.mu.Lock()
	l.query = strings.TrimSpace(query)
	l.mu.Unlock()
}

// ClearSearch removes the filter.
func (l *ListSync) ClearSearch() {
	l.Search("")
}

// Query returns the active search filter.
func (l *ListSync) Query() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query
}

// Conversations returns the cached list, most recent first, with the
// search filter applied.
func (l *ListSync) Conversations() []model.Conversation {
	l.mu.Lock()
	convs, query, userID := l.conversations, strings.ToLower(l.query), l.userID
	l.mu.Unlock()

	out := make([]model.Conversation, 0, len(convs))
	for _, c := range convs {
		if query != "" && !l.matches(c, userID, query) {
			continue
		}
		out = append(out, c.Clone())
	}
	return out
}

func (l *ListSync) matches(c model.Conversation, userID, query string) bool {
	if strings.Contains(strings.ToLower(c.Preview), query) {
		return true
	}
	p, ok := l.profiles.Lookup(c.OtherParticipant(userID))
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(p.DisplayName), query) ||
		strings.Contains(strings.ToLower(p.Handle), query)
}

// Pinned returns the conversations the user pinned, in list order.
func (l *ListSync) Pinned() []model.Conversation {
	pinned, _ := l.partition()
	return pinned
}

// Unpinned returns the remaining conversations, in list order.
func (l *ListSync) Unpinned() []model.Conversation {
	_, rest := l.partition()
	return rest
}

func (l *ListSync) partition() (pinned, rest []model.Conversation) {
	userID := l.UserID()
	for _, c := range l.Conversations() {
		if c.PinnedFor(userID) {
			pinned = append(pinned, c)
		} else {
			rest = append(rest, c)
		}
	}
	return pinned, rest
}

// TogglePin flips the user's pinned flag. The cached list is not touched;
// the change shows up once the feed echoes it.
func (l *ListSync) TogglePin(ctx context.Context, conversationID string) error {
	userID := l.UserID()
	if userID == "" {
		return ErrNotStarted
	}
	c, err := l.member(ctx, userID, conversationID)
	if err != nil {
		return l.fail("toggle pin", err)
	}
	if err := l.backend.SetPinned(ctx, conversationID, userID, !c.PinnedFor(userID)); err != nil {
		return l.fail("toggle pin", err)
	}
	return nil
}

// OpenConversation gets or creates the conversation with otherUserID, makes
// it current, starts its message stream and resets the user's unread counter.
func (l *ListSync) OpenConversation(ctx context.Context, otherUserID string) (*model.Conversation, error) {
	userID := l.UserID()
	if userID == "" {
		return nil, ErrNotStarted
	}
	if err := chatid.Validate(userID, otherUserID); err != nil {
		return nil, err
	}

	id := chatid.Resolve(userID, otherUserID)
	c, err := l.backend.GetConversation(ctx, id)
	if err != nil {
		return nil, l.fail("open conversation", err)
	}
	if c == nil {
		participants := []string{userID, otherUserID}
		slices.Sort(participants)
		c = &model.Conversation{
			ID:            id,
			Participants:  participants,
			LastMessageAt: time.Now(),
		}
		if err := l.backend.CreateConversation(ctx, c); err != nil {
			return nil, l.fail("create conversation", err)
		}
		l.logger.Info("conversation created", zap.String("conversation_id", id))
	}
	return l.open(ctx, userID, c)
}

// OpenConversationByID opens a conversation the caller already knows exists.
func (l *ListSync) OpenConversationByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	userID := l.UserID()
	if userID == "" {
		return nil, ErrNotStarted
	}
	c, err := l.member(ctx, userID, conversationID)
	if err != nil {
		return nil, l.fail("open conversation", err)
	}
	return l.open(ctx, userID, c)
}

func (l *ListSync) open(ctx context.Context, userID string, c *model.Conversation) (*model.Conversation, error) {
	l.mu.Lock()
	l.current = c.ID
	l.mu.Unlock()

	if err := l.stream.Start(ctx, c.ID); err != nil {
		return nil, l.fail("start message stream", err)
	}
	l.stream.setPeer(c.OtherParticipant(userID))

	if err := l.backend.ResetUnread(ctx, c.ID, userID); err != nil {
		l.fail("reset unread", err)
	}
	return c, nil
}

// Get returns a conversation from the cached list, or reads it from the
// backend when the feed has not delivered it yet.
func (l *ListSync) Get(ctx context.Context, id string) (*model.Conversation, error) {
	return l.lookup(ctx, id)
}

// lookup finds a conversation in the cached list, falling back to the backend.
func (l *ListSync) lookup(ctx context.Context, id string) (*model.Conversation, error) {
	l.mu.Lock()
	for _, c := range l.conversations {
		if c.ID == id {
			cp := c.Clone()
			l.mu.Unlock()
			return &cp, nil
		}
	}
	l.mu.Unlock()

	c, err := l.backend.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%q: %w", id, ErrNoConversation)
	}
	return c, nil
}

// member looks up conversationID and requires userID to take part in it.
// Other pairs' conversations read as missing.
func (l *ListSync) member(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	c, err := l.lookup(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, fmt.Errorf("%q: %w", conversationID, ErrNoConversation)
	}
	return c, nil
}

// CloseConversation stops the message stream and clears the current marker.
func (l *ListSync) CloseConversation() {
	l.closeConversation(false)
}

// CloseConversationSilently is CloseConversation without telling observers,
// for teardown when no UI is left to update.
func (l *ListSync) CloseConversationSilently() {
	l.closeConversation(true)
}

func (l *ListSync) closeConversation(silent bool) {
	l.mu.Lock()
	l.current = ""
	l.mu.Unlock()
	l.stream.Stop(silent)
}

// DeleteConversation removes every message and then the conversation itself.
// The two steps are separate writes.
func (l *ListSync) DeleteConversation(ctx context.Context, conversationID string) error {
	userID := l.UserID()
	if userID == "" {
		return ErrNotStarted
	}
	if _, err := l.member(ctx, userID, conversationID); err != nil {
		return l.fail("delete conversation", err)
	}
	if l.Current() == conversationID {
		l.CloseConversation()
	}
	if err := l.backend.DeleteMessages(ctx, conversationID); err != nil {
		return l.fail("delete messages", err)
	}
	if err := l.backend.DeleteConversation(ctx, conversationID); err != nil {
		return l.fail("delete conversation", err)
	}

	l.mu.Lock()
	delete(l.shadow, conversationID)
	l.mu.Unlock()
	l.logger.Info("conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}

// UserID returns the user the feed runs for, or "" before Start.
func (l *ListSync) UserID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.userID
}

// Current returns the id of the open conversation, or "".
func (l *ListSync) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Err returns the last failure, if any.
func (l *ListSync) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// fail records err as the user-facing error and returns it wrapped.
func (l *ListSync) fail(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	l.logger.Error("conversation list", zap.String("op", op), zap.Error(err))
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	l.bus.Emit(bus.ConversationsError, err.Error())
	return err
}

func isDone(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
