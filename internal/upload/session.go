package upload

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a session is asked to move backwards
// or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid upload state transition")

// Status is the position of an upload in its lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusInitiated
	StatusTransferring
	StatusTransferred
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInitiated:
		return "initiated"
	case StatusTransferring:
		return "transferring"
	case StatusTransferred:
		return "transferred"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further phase may run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Session is the bookkeeping of one upload. It lives for a single Upload
// call and is not shared between goroutines.
type Session struct {
	ChannelID       string
	FileID          string
	DestinationPath string
	Status          Status
}

func (s *Session) advance(to Status) error {
	if s.Status.Terminal() || to <= s.Status || to == StatusFailed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	return nil
}

func (s *Session) fail() error {
	if s.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, StatusFailed)
	}
	s.Status = StatusFailed
	return nil
}
