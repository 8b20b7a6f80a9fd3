package rabbitmq

import (
	"errors"
	"fmt"
)

var (
	// ErrAborted is returned when the context is cancelled before a connection is established.
	ErrAborted = errors.New("rabbitmq connect aborted")
	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("rabbitmq manager closed")
	// ErrPublishNacked is returned when the broker refuses responsibility for a message.
	ErrPublishNacked = errors.New("rabbitmq publish not confirmed")
)

// ConnectError describes one failed connection attempt.
type ConnectError struct {
	Attempt int
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("rabbitmq connect attempt %d: %v", e.Attempt, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
