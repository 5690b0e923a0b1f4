package session

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by Send outside the Connected state.
var ErrNotConnected = errors.New("session not connected")

// ConnectionError is a transport-level failure while connecting or writing.
type ConnectionError struct {
	Address string
	Op      string // "connect" or "write"
	Err     error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Address, e.Err)
}

// Unwrap returns the transport error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsNotConnected checks if an error is ErrNotConnected
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

// IsConnectionError checks if an error is a ConnectionError
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
