package api

import (
	"math"

	"google.golang.org/grpc"
)

const (
	defaultMaxMessageSize = 4 << 20
	messageHeadroom       = 64 << 10
)

// MaxMessageSize is the largest message needed to carry an image of
// maxImageBytes. The JSON codec base64-encodes image data, so the payload
// grows by a third. Sizes a little over the limit still fit, so the
// daemon can reject them with a validation error of its own.
func MaxMessageSize(maxImageBytes int64) int {
	n := (maxImageBytes+messageHeadroom)*4/3 + messageHeadroom
	switch {
	case n < defaultMaxMessageSize:
		return defaultMaxMessageSize
	case n > math.MaxInt32:
		return math.MaxInt32
	}
	return int(n)
}

// ServerOptions sizes the server's receive limit for images up to
// maxImageBytes.
func ServerOptions(maxImageBytes int64) []grpc.ServerOption {
	return []grpc.ServerOption{grpc.MaxRecvMsgSize(MaxMessageSize(maxImageBytes))}
}
