package protocol

import (
	"bytes"
	"fmt"
)

// Frame is one QXW frame.
type Frame struct {
	Command byte
	Type    byte
	Payload []byte
}

// BuildFrame creates a frame, rejecting payloads that do not fit the
// single length byte.
func BuildFrame(command, typ byte, payload []byte) (*Frame, error) {
	if len(payload) > MaxPayloadSize {
		return nil, newFrameError(FrameErrPayloadTooLarge, nil,
			"payload is %d bytes (max %d)", len(payload), MaxPayloadSize)
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	return &Frame{Command: command, Type: typ, Payload: p}, nil
}

// ParseFrame decodes exactly one frame from data.
//
// Frame Structure:
//
//	[0-2]   51 58 57   prefix
//	[3]     command
//	[4]     type
//	[5]     length     number of payload bytes that follow
//	[6+]    payload
//
// Errors:
//   - BadPrefix: the first three bytes are not "QXW"
//   - Truncated: data is shorter than the header or the declared length
//   - LengthMismatch: bytes trail the declared payload
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) >= len(Prefix) && !bytes.Equal(data[:len(Prefix)], Prefix[:]) {
		return nil, newFrameError(FrameErrBadPrefix, data,
			"got % x, want % x", data[:len(Prefix)], Prefix[:])
	}
	if len(data) < HeaderSize {
		if len(data) < len(Prefix) && !bytes.HasPrefix(Prefix[:], data) {
			return nil, newFrameError(FrameErrBadPrefix, data, "got % x", data)
		}
		return nil, newFrameError(FrameErrTruncated, data,
			"%d bytes, header needs %d", len(data), HeaderSize)
	}

	declared := int(data[5])
	actual := len(data) - HeaderSize
	if actual < declared {
		return nil, newFrameError(FrameErrTruncated, data,
			"declared %d payload bytes, got %d", declared, actual)
	}
	if actual > declared {
		return nil, newFrameError(FrameErrLengthMismatch, data,
			"declared %d payload bytes, got %d", declared, actual)
	}

	payload := make([]byte, declared)
	copy(payload, data[HeaderSize:])

	return &Frame{
		Command: data[3],
		Type:    data[4],
		Payload: payload,
	}, nil
}

// Bytes returns the wire encoding of the frame.
func (f *Frame) Bytes() []byte {
	out := make([]byte, 0, HeaderSize+len(f.Payload))
	out = append(out, Prefix[:]...)
	out = append(out, f.Command, f.Type, byte(len(f.Payload)))
	out = append(out, f.Payload...)
	return out
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{cmd=%s, type=%s, len=%d, payload=% x}",
		CommandName(f.Command), TypeName(f.Type), len(f.Payload), f.Payload)
}
