package model

import "fmt"

// Status is the delivery state of a message. Values are ordered.
type Status int

const (
	Sending Status = iota
	Sent
	// Delivered exists in the document shape but nothing in this client produces it.
	Delivered
	Seen
)

var statusNames = [...]string{"sending", "sent", "delivered", "seen"}

func (s Status) String() string {
	if s < Sending || s > Seen {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus converts a stored status name back into a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return Sending, fmt.Errorf("unknown message status %q", name)
}

// Advance returns the later of s and to; status never moves backwards.
func (s Status) Advance(to Status) Status {
	if to > s {
		return to
	}
	return s
}
