package chatid

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins the two participant ids of a conversation id.
const Separator = "_"

// ErrSelfChat is returned when both participants are the same user.
var ErrSelfChat = errors.New("conversation with self is not supported")

// Resolve derives the conversation id for a pair of users. The result does
// not depend on argument order, so both clients converge on one record.
func Resolve(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + Separator + b
}

// Validate checks that a pair can form a conversation.
func Validate(a, b string) error {
	if a == "" || b == "" {
		return fmt.Errorf("participant id is required")
	}
	if a == b {
		return ErrSelfChat
	}
	return nil
}

// Participants splits a conversation id back into its ordered pair.
// It only works for ids whose participants contain no separator.
func Participants(id string) (string, string, error) {
	a, b, ok := strings.Cut(id, Separator)
	if !ok || a == "" || b == "" || strings.Contains(b, Separator) {
		return "", "", fmt.Errorf("malformed conversation id %q", id)
	}
	return a, b, nil
}
