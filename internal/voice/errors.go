package voice

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a request from a previous turn is in flight
	ErrBusy = errors.New("voice: request in flight")

	// ErrNotIdle is returned when a turn is requested outside Idle
	ErrNotIdle = errors.New("voice: controller not idle")

	// ErrStaleTurn marks a result that belongs to a superseded turn
	ErrStaleTurn = errors.New("voice: stale turn")

	// ErrMicDenied is returned by microphones when access is refused
	ErrMicDenied = errors.New("voice: microphone access denied")

	// ErrNoSnapshot is returned when no message list has been loaded
	ErrNoSnapshot = errors.New("voice: no snapshot loaded")

	// ErrJobTimeout is returned when job polling runs out of attempts
	ErrJobTimeout = errors.New("voice: job polling timed out")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("voice: controller closed")

	// ErrNoMicrophone is returned by Arm when no microphone is configured
	ErrNoMicrophone = errors.New("voice: no microphone configured")

	// ErrNoPending is returned when resolving a confirmation nobody asked for
	ErrNoPending = errors.New("voice: no pending confirmation")

	// ErrEmptyText is returned by SubmitText for blank input
	ErrEmptyText = errors.New("voice: empty text")
)

// Kind groups errors by how the controller recovers from them
type Kind int

const (
	KindTransient Kind = iota
	KindPermission
	KindTimeout
	KindProtocol
	KindStale
)

func (k Kind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	case KindStale:
		return "stale"
	default:
		return "transient"
	}
}

// KindOf classifies err
func KindOf(err error) Kind {
	var te interface{ Timeout() bool }
	switch {
	case errors.Is(err, ErrStaleTurn), errors.Is(err, context.Canceled):
		return KindStale
	case errors.Is(err, ErrMicDenied):
		return KindPermission
	case errors.Is(err, ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &te) && te.Timeout():
		return KindTimeout
	case errors.Is(err, ErrBusy), errors.Is(err, ErrNotIdle), errors.Is(err, ErrClosed),
		errors.Is(err, ErrNoPending), errors.Is(err, ErrEmptyText):
		return KindProtocol
	}
	return KindTransient
}

// UserFacing is implemented by collaborator errors whose message is meant
// to reach the user unchanged, such as rate limits or billing problems.
type UserFacing interface {
	error
	UserMessage() string
}

// JobError is a failed background job
type JobError struct {
	JobID   string
	Code    string
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed (%s): %s", e.JobID, e.Code, e.Message)
}

// UserMessage returns the backend message
func (e *JobError) UserMessage() string {
	return e.Message
}

// Timeout reports whether the job itself timed out on the backend
func (e *JobError) Timeout() bool {
	return e.Code == "timeout"
}
