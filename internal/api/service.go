package api

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chatid"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/export"
	"github.com/matheus3301/chatsync/internal/media"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// MessageSearcher runs full-text queries over stored messages.
type MessageSearcher interface {
	SearchMessages(ctx context.Context, query, conversationID string, limit int) ([]store.SearchResult, error)
}

// StoreStats reports document counts of the local store.
type StoreStats interface {
	ConversationCount(ctx context.Context) (int64, error)
	MessageCount(ctx context.Context) (int64, error)
}

// ProfileWriter publishes the signed-in user's profile to the user directory.
type ProfileWriter interface {
	UpsertProfile(ctx context.Context, p *model.Profile) error
}

// Deps are the collaborators of a Service. Searcher and Stats may be nil
// when the backend is not the local store.
type Deps struct {
	ProfileName string
	Auth        *auth.Provider
	List        *intsync.ListSync
	Stream      *intsync.StreamSync
	Machine     *status.Machine
	Settings    *config.Settings
	Profiles    *profile.Cache
	Directory   ProfileWriter
	Searcher    MessageSearcher
	Stats       StoreStats
	Bus         *bus.Bus
	Logger      *zap.Logger
}

// Service exposes the synchronizers and the auth provider to clients of
// the daemon.
type Service struct {
	Deps
	startedAt time.Time
}

// NewService creates the daemon API.
func NewService(d Deps) *Service {
	return &Service{Deps: d, startedAt: time.Now()}
}

func (s *Service) Status(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	resp := &StatusResponse{
		Profile:          s.ProfileName,
		State:            string(s.Machine.Current()),
		Detail:           s.Machine.Detail(),
		UserID:           s.List.UserID(),
		UptimeMs:         time.Since(s.startedAt).Milliseconds(),
		OpenConversation: s.List.Current(),
		Conversations:    len(s.List.Conversations()),
	}
	if err := s.List.Err(); err != nil {
		resp.ListError = err.Error()
	}
	if err := s.Stream.Err(); err != nil {
		resp.StreamError = err.Error()
	}
	if s.Stats != nil {
		if n, err := s.Stats.ConversationCount(ctx); err == nil {
			resp.StoredConversations = n
		}
		if n, err := s.Stats.MessageCount(ctx); err == nil {
			resp.StoredMessages = n
		}
	}
	return resp, nil
}

func (s *Service) SignUp(ctx context.Context, req *SignUpRequest) (*ProfileResponse, error) {
	p, err := s.Auth.SignUp(ctx, auth.SignUpRequest{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.beginSync(ctx, p); err != nil {
		return nil, toStatus(err)
	}
	return &ProfileResponse{Profile: profileDTO(*p)}, nil
}

func (s *Service) SignIn(ctx context.Context, req *SignInRequest) (*ProfileResponse, error) {
	p, err := s.Auth.SignIn(ctx, req.Identifier, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.beginSync(ctx, p); err != nil {
		return nil, toStatus(err)
	}
	return &ProfileResponse{Profile: profileDTO(*p)}, nil
}

func (s *Service) SignOut(ctx context.Context, _ *Empty) (*Empty, error) {
	s.endSync()
	if err := s.Auth.SignOut(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Service) Reauthenticate(ctx context.Context, req *PasswordRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.Auth.Reauthenticate(ctx, req.Password))
}

func (s *Service) ChangePassword(ctx context.Context, req *PasswordRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.Auth.ChangePassword(ctx, req.Password))
}

func (s *Service) RequestPasswordReset(ctx context.Context, req *PasswordResetRequest) (*PasswordResetResponse, error) {
	token, err := s.Auth.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PasswordResetResponse{Token: token}, nil
}

func (s *Service) ResetPassword(ctx context.Context, req *ResetPasswordRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.Auth.ResetPassword(ctx, req.Token, req.Password))
}

func (s *Service) ListConversations(_ context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	if s.List.UserID() == "" {
		return nil, toStatus(auth.ErrNotSignedIn)
	}
	return s.listing(req.PinnedOnly), nil
}

// SearchConversations sets the list filter; a blank query clears it.
func (s *Service) SearchConversations(_ context.Context, req *SearchConversationsRequest) (*ListConversationsResponse, error) {
	if s.List.UserID() == "" {
		return nil, toStatus(auth.ErrNotSignedIn)
	}
	s.List.Search(req.Query)
	return s.listing(false), nil
}

func (s *Service) listing(pinnedOnly bool) *ListConversationsResponse {
	userID := s.List.UserID()
	resp := &ListConversationsResponse{
		Query:  s.List.Query(),
		Pinned: s.conversationDTOs(userID, s.List.Pinned()),
	}
	if !pinnedOnly {
		resp.Unpinned = s.conversationDTOs(userID, s.List.Unpinned())
	}
	return resp
}

// OpenConversation opens by peer user id, or by conversation id when given.
func (s *Service) OpenConversation(ctx context.Context, req *OpenConversationRequest) (*ConversationResponse, error) {
	var (
		c   *model.Conversation
		err error
	)
	switch {
	case req.ConversationID != "":
		c, err = s.List.OpenConversationByID(ctx, req.ConversationID)
	case req.UserID != "":
		c, err = s.List.OpenConversation(ctx, req.UserID)
	default:
		return nil, grpcstatus.Error(codes.InvalidArgument, "user_id or conversation_id is required")
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &ConversationResponse{Conversation: s.conversationDTO(s.List.UserID(), *c)}, nil
}

func (s *Service) CloseConversation(_ context.Context, _ *Empty) (*Empty, error) {
	s.List.CloseConversation()
	return &Empty{}, nil
}

func (s *Service) TogglePin(ctx context.Context, req *ConversationRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.List.TogglePin(ctx, req.ConversationID))
}

func (s *Service) DeleteConversation(ctx context.Context, req *ConversationRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.List.DeleteConversation(ctx, req.ConversationID))
}

func (s *Service) SendText(ctx context.Context, req *SendTextRequest) (*Empty, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	return &Empty{}, toStatus(s.Stream.SendText(ctx, req.Text))
}

func (s *Service) SendImage(ctx context.Context, req *SendImageRequest) (*Empty, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "image data is required")
	}
	return &Empty{}, toStatus(s.Stream.SendImage(ctx, bytes.NewReader(req.Data), req.Caption))
}

func (s *Service) ListMessages(_ context.Context, _ *Empty) (*MessagesResponse, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	userID := s.List.UserID()
	msgs := s.Stream.Messages()
	resp := &MessagesResponse{ConversationID: s.Stream.ConversationID(), Messages: make([]Message, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageDTO(userID, m))
	}
	return resp, nil
}

func (s *Service) FindMessages(ctx context.Context, req *FindMessagesRequest) (*FindMessagesResponse, error) {
	userID := s.List.UserID()
	resp := &FindMessagesResponse{Hits: []SearchHit{}}

	if req.All {
		if s.Searcher == nil {
			return nil, grpcstatus.Error(codes.Unimplemented, "full-text search is not available on this backend")
		}
		results, err := s.Searcher.SearchMessages(ctx, req.Query, "", req.Limit)
		if err != nil {
			return nil, toStatus(err)
		}
		for _, r := range results {
			a, b, err := chatid.Participants(r.Message.ConversationID)
			if err != nil || (a != userID && b != userID) {
				continue
			}
			resp.Hits = append(resp.Hits, SearchHit{Message: messageDTO(userID, r.Message), Snippet: r.Snippet})
		}
		return resp, nil
	}

	msgs, err := s.Stream.SearchInConversation(ctx, req.Query)
	if err != nil {
		return nil, toStatus(err)
	}
	for _, m := range msgs {
		resp.Hits = append(resp.Hits, SearchHit{Message: messageDTO(userID, m)})
	}
	return resp, nil
}

func (s *Service) DeleteMessage(ctx context.Context, req *DeleteMessageRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.Stream.DeleteMessage(ctx, req.MessageID))
}

// Export writes the open conversation as a paginated transcript.
func (s *Service) Export(ctx context.Context, req *ExportRequest) (*ExportResponse, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	if req.Path == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "path is required")
	}
	userID := s.List.UserID()
	c, err := s.List.Get(ctx, s.Stream.ConversationID())
	if err != nil {
		return nil, toStatus(err)
	}
	self, err := s.Profiles.Ensure(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	peer, err := s.Profiles.Ensure(ctx, c.OtherParticipant(userID))
	if err != nil {
		return nil, toStatus(err)
	}

	msgs := s.Stream.Messages()
	pages, err := export.WriteFile(req.Path, msgs, self, peer, export.DefaultOptions)
	if err != nil {
		return nil, toStatus(fmt.Errorf("export transcript: %w", err))
	}
	s.Logger.Info("transcript exported", zap.String("conversation_id", c.ID), zap.Int("messages", len(msgs)), zap.Int("pages", pages))
	return &ExportResponse{Path: req.Path, Messages: len(msgs), Pages: pages}, nil
}

func (s *Service) GetSetting(_ context.Context, req *SettingRequest) (*SettingResponse, error) {
	v, err := s.Settings.Get(req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SettingResponse{Key: req.Key, Value: v}, nil
}

func (s *Service) SetSetting(_ context.Context, req *SettingRequest) (*SettingResponse, error) {
	if err := s.Settings.Set(req.Key, req.Value); err != nil {
		return nil, toStatus(err)
	}
	v, _ := s.Settings.Get(req.Key)
	s.Logger.Info("setting changed", zap.String("key", req.Key), zap.String("value", v))
	return &SettingResponse{Key: req.Key, Value: v}, nil
}

func (s *Service) requireOpen() error {
	if s.Stream.ConversationID() == "" {
		return toStatus(intsync.ErrNoConversation)
	}
	return nil
}

func (s *Service) conversationDTOs(userID string, convs []model.Conversation) []Conversation {
	out := make([]Conversation, 0, len(convs))
	for _, c := range convs {
		out = append(out, s.conversationDTO(userID, c))
	}
	return out
}

func (s *Service) conversationDTO(userID string, c model.Conversation) Conversation {
	peer := c.OtherParticipant(userID)
	dto := Conversation{
		ID:            c.ID,
		Participants:  c.Participants,
		Peer:          peer,
		Preview:       c.Preview,
		LastMessageAt: c.LastMessageAt,
		Pinned:        c.PinnedFor(userID),
		Unread:        c.UnreadFor(userID),
	}
	if p, ok := s.Profiles.Lookup(peer); ok {
		dto.PeerName = p.Name()
	}
	return dto
}

// thumbnail is the rendition clients show inline; the full image stays at ImageURL.
var thumbnail = media.Options{Width: 320, Height: 320, Quality: 70, Crop: "thumb"}

func messageDTO(userID string, m model.Message) Message {
	dto := Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		ImageURL:       m.ImageURL,
		Status:         m.Status.String(),
		SentAt:         m.SentAt,
		FromMe:         m.SenderID == userID,
	}
	if strings.HasPrefix(m.ImageURL, "https://") {
		if u, err := media.Transform(m.ImageURL, thumbnail); err == nil {
			dto.ThumbnailURL = u
		}
	}
	return dto
}

func profileDTO(p model.Profile) Profile {
	return Profile{UserID: p.UserID, DisplayName: p.DisplayName, Handle: p.Handle, PhotoURL: p.PhotoURL}
}
