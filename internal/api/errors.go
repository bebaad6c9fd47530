package api

import (
	"context"
	"errors"

	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/chatid"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/media"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/store"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps domain errors onto gRPC codes. nil stays nil.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, model.ErrEmptyMessage),
		errors.Is(err, chatid.ErrSelfChat),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, media.ErrImageTooLarge),
		errors.Is(err, config.ErrUnknownKey):
		code = codes.InvalidArgument
	case errors.Is(err, intsync.ErrNoConversation),
		errors.Is(err, store.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNotSignedIn),
		errors.Is(err, auth.ErrReauthRequired),
		errors.Is(err, intsync.ErrNotStarted):
		code = codes.Unauthenticated
	case errors.Is(err, auth.ErrAccountExists):
		code = codes.AlreadyExists
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return grpcstatus.Error(code, err.Error())
}
