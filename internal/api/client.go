package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matheus3301/chatsync/internal/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client talks to a daemon over its Unix socket.
type Client struct {
	conn *grpc.ClientConn
}

// DialOption configures Dial.
type DialOption func(*dialOptions)

type dialOptions struct {
	maxImageBytes int64
}

// WithMaxImageBytes sizes the connection for images up to n bytes. It
// should match the daemon's media.max_bytes.
func WithMaxImageBytes(n int64) DialOption {
	return func(o *dialOptions) { o.maxImageBytes = n }
}

// Dial connects to the daemon listening on socketPath.
func Dial(socketPath string, opts ...DialOption) (*Client, error) {
	o := dialOptions{maxImageBytes: config.Default().Media.MaxBytes}
	for _, opt := range opts {
		opt(&o)
	}
	size := MaxMessageSize(o.maxImageBytes)
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(codecName),
			grpc.MaxCallSendMsgSize(size),
			grpc.MaxCallRecvMsgSize(size),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Conn exposes the underlying connection, e.g. for health checks.
func (c *Client) Conn() *grpc.ClientConn { return c.conn }

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func call[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	resp := new(Resp)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	return call[StatusResponse](ctx, c, "Status", &StatusRequest{})
}

func (c *Client) SignUp(ctx context.Context, req *SignUpRequest) (*ProfileResponse, error) {
	return call[ProfileResponse](ctx, c, "SignUp", req)
}

func (c *Client) SignIn(ctx context.Context, identifier, password string) (*ProfileResponse, error) {
	return call[ProfileResponse](ctx, c, "SignIn", &SignInRequest{Identifier: identifier, Password: password})
}

func (c *Client) SignOut(ctx context.Context) error {
	_, err := call[Empty](ctx, c, "SignOut", &Empty{})
	return err
}

func (c *Client) Reauthenticate(ctx context.Context, password string) error {
	_, err := call[Empty](ctx, c, "Reauthenticate", &PasswordRequest{Password: password})
	return err
}

func (c *Client) ChangePassword(ctx context.Context, password string) error {
	_, err := call[Empty](ctx, c, "ChangePassword", &PasswordRequest{Password: password})
	return err
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) (*PasswordResetResponse, error) {
	return call[PasswordResetResponse](ctx, c, "RequestPasswordReset", &PasswordResetRequest{Email: email})
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	_, err := call[Empty](ctx, c, "ResetPassword", &ResetPasswordRequest{Token: token, Password: password})
	return err
}

func (c *Client) ListConversations(ctx context.Context, pinnedOnly bool) (*ListConversationsResponse, error) {
	return call[ListConversationsResponse](ctx, c, "ListConversations", &ListConversationsRequest{PinnedOnly: pinnedOnly})
}

func (c *Client) SearchConversations(ctx context.Context, query string) (*ListConversationsResponse, error) {
	return call[ListConversationsResponse](ctx, c, "SearchConversations", &SearchConversationsRequest{Query: query})
}

func (c *Client) OpenConversation(ctx context.Context, req *OpenConversationRequest) (*ConversationResponse, error) {
	return call[ConversationResponse](ctx, c, "OpenConversation", req)
}

func (c *Client) CloseConversation(ctx context.Context) error {
	_, err := call[Empty](ctx, c, "CloseConversation", &Empty{})
	return err
}

func (c *Client) TogglePin(ctx context.Context, conversationID string) error {
	_, err := call[Empty](ctx, c, "TogglePin", &ConversationRequest{ConversationID: conversationID})
	return err
}

func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	_, err := call[Empty](ctx, c, "DeleteConversation", &ConversationRequest{ConversationID: conversationID})
	return err
}

func (c *Client) SendText(ctx context.Context, text string) error {
	_, err := call[Empty](ctx, c, "SendText", &SendTextRequest{Text: text})
	return err
}

func (c *Client) SendImage(ctx context.Context, data []byte, caption string) error {
	_, err := call[Empty](ctx, c, "SendImage", &SendImageRequest{Data: data, Caption: caption})
	return err
}

func (c *Client) ListMessages(ctx context.Context) (*MessagesResponse, error) {
	return call[MessagesResponse](ctx, c, "ListMessages", &Empty{})
}

func (c *Client) FindMessages(ctx context.Context, req *FindMessagesRequest) (*FindMessagesResponse, error) {
	return call[FindMessagesResponse](ctx, c, "FindMessages", req)
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	_, err := call[Empty](ctx, c, "DeleteMessage", &DeleteMessageRequest{MessageID: messageID})
	return err
}

func (c *Client) Export(ctx context.Context, path string) (*ExportResponse, error) {
	return call[ExportResponse](ctx, c, "Export", &ExportRequest{Path: path})
}

func (c *Client) GetSetting(ctx context.Context, key string) (*SettingResponse, error) {
	return call[SettingResponse](ctx, c, "GetSetting", &SettingRequest{Key: key})
}

func (c *Client) SetSetting(ctx context.Context, key, value string) (*SettingResponse, error) {
	return call[SettingResponse](ctx, c, "SetSetting", &SettingRequest{Key: key, Value: value})
}

// WatchEvents calls fn for every event until ctx ends, the stream fails or
// fn returns an error.
func (c *Client) WatchEvents(ctx context.Context, namespaces []string, fn func(*Event) error) error {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], "/"+ServiceName+"/"+watchEventsMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&WatchEventsRequest{Namespaces: namespaces}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		evt := new(Event)
		if err := stream.RecvMsg(evt); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}
