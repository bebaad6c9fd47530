package api

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/status"
	"go.uber.org/zap"
)

// Resume restarts the conversation feed for a sign-in saved by an earlier
// run. Without one the client waits signed out.
func (s *Service) Resume(ctx context.Context) error {
	p, err := s.Auth.Current(ctx)
	if err != nil {
		_ = s.Machine.TransitionWithDetail(status.Error, err.Error())
		return fmt.Errorf("load saved session: %w", err)
	}
	if p == nil {
		s.Logger.Info("no saved session, sign in required")
		return s.Machine.Transition(status.SignedOut)
	}
	s.Logger.Info("resuming saved session", zap.String("user_id", p.UserID))
	return s.beginSync(ctx, p)
}

// Shutdown tears the synchronizers down without notifying observers.
func (s *Service) Shutdown() {
	s.List.CloseConversationSilently()
	s.List.Stop()
}

func (s *Service) beginSync(ctx context.Context, p *model.Profile) error {
	s.Profiles.Put(*p)
	if s.Directory != nil {
		if err := s.Directory.UpsertProfile(ctx, p); err != nil {
			return fmt.Errorf("publish profile: %w", err)
		}
	}
	if s.Machine.Current() != status.Syncing {
		if err := s.Machine.Transition(status.Syncing); err != nil {
			return err
		}
	}
	return s.List.Start(ctx, p.UserID)
}

func (s *Service) endSync() {
	s.Shutdown()
	switch s.Machine.Current() {
	case status.Syncing, status.Ready:
		_ = s.Machine.Transition(status.SignedOut)
	}
}
