package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chatsync.v1.Chat"

const watchEventsMethod = "WatchEvents"

type eventWatcher interface {
	WatchEvents(*WatchEventsRequest, grpc.ServerStream) error
}

func unary[Req, Resp any](name string, call func(*Service, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			s := srv.(*Service)
			if interceptor == nil {
				return call(s, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
				return call(s, ctx, r.(*Req))
			})
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	req := new(WatchEventsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(eventWatcher).WatchEvents(req, stream)
}

// serviceDesc is written by hand; messages are plain structs carried by the
// JSON codec.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*eventWatcher)(nil),
	Methods: []grpc.MethodDesc{
		unary("Status", (*Service).Status),
		unary("SignUp", (*Service).SignUp),
		unary("SignIn", (*Service).SignIn),
		unary("SignOut", (*Service).SignOut),
		unary("Reauthenticate", (*Service).Reauthenticate),
		unary("ChangePassword", (*Service).ChangePassword),
		unary("RequestPasswordReset", (*Service).RequestPasswordReset),
		unary("ResetPassword", (*Service).ResetPassword),
		unary("ListConversations", (*Service).ListConversations),
		unary("SearchConversations", (*Service).SearchConversations),
		unary("OpenConversation", (*Service).OpenConversation),
		unary("CloseConversation", (*Service).CloseConversation),
		unary("TogglePin", (*Service).TogglePin),
		unary("DeleteConversation", (*Service).DeleteConversation),
		unary("SendText", (*Service).SendText),
		unary("SendImage", (*Service).SendImage),
		unary("ListMessages", (*Service).ListMessages),
		unary("FindMessages", (*Service).FindMessages),
		unary("DeleteMessage", (*Service).DeleteMessage),
		unary("Export", (*Service).Export),
		unary("GetSetting", (*Service).GetSetting),
		unary("SetSetting", (*Service).SetSetting),
	},
	Streams: []grpc.StreamDesc{
		{StreamName: watchEventsMethod, Handler: watchEventsHandler, ServerStreams: true},
	},
}

// Register attaches s to a gRPC server.
func Register(srv *grpc.Server, s *Service) {
	srv.RegisterService(&serviceDesc, s)
}
