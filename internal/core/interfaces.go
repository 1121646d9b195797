package core

import "errors"

// Frame is a raw wire payload.
type Frame []byte

type SessionID string

// SignalConnection abstracts a session's messaging transport.
// Owned by the adapter; the adapter must Close() it. Sending to a
// closed connection is a recoverable error, never a panic.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// ErrNoActiveVideo is returned when playback chatter is broadcast to a
// room that is not watching anything.
var ErrNoActiveVideo = errors.New("room has no active video")

// PublishResult reports delivery stats of a fan-out.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}

// MemberEntry pairs a member id with its transport endpoint.
type MemberEntry struct {
	SID  SessionID
	Conn SignalConnection
}
