package protocol

import (
	"errors"
	"fmt"
)

// FrameErrorKind classifies malformed wire data.
type FrameErrorKind int

const (
	FrameErrBadPrefix FrameErrorKind = iota
	FrameErrTruncated
	FrameErrLengthMismatch
	FrameErrPayloadTooLarge
)

// String returns a human-readable representation of the kind
func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrBadPrefix:
		return "BadPrefix"
	case FrameErrTruncated:
		return "Truncated"
	case FrameErrLengthMismatch:
		return "LengthMismatch"
	case FrameErrPayloadTooLarge:
		return "PayloadTooLarge"
	default:
		return "Unknown"
	}
}

// FrameError reports bytes that are not a well-formed QXW frame, or a
// payload that can not be framed.
type FrameError struct {
	Kind    FrameErrorKind
	Message string
	Raw     []byte // offending bytes, may be nil
}

// Sentinels for errors.Is. Only the kind is compared.
var (
	ErrBadPrefix       = &FrameError{Kind: FrameErrBadPrefix}
	ErrTruncated       = &FrameError{Kind: FrameErrTruncated}
	ErrLengthMismatch  = &FrameError{Kind: FrameErrLengthMismatch}
	ErrPayloadTooLarge = &FrameError{Kind: FrameErrPayloadTooLarge}
)

// Error implements the error interface
func (e *FrameError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("frame error: %s", e.Kind)
	}
	return fmt.Sprintf("frame error: %s: %s", e.Kind, e.Message)
}

// Is matches any FrameError of the same kind.
func (e *FrameError) Is(target error) bool {
	var fe *FrameError
	if !errors.As(target, &fe) {
		return false
	}
	return fe.Kind == e.Kind
}

func newFrameError(kind FrameErrorKind, raw []byte, format string, args ...interface{}) *FrameError {
	return &FrameError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Raw:     raw,
	}
}

// ValidationError reports caller-supplied arguments the protocol can not
// carry: band index out of range, wrong band count, unknown preset.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Message)
}

// IsFrameError checks if an error is a FrameError
func IsFrameError(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe)
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
