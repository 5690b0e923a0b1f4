package bridge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fairbuds/internal/logging"
	"github.com/muurk/fairbuds/internal/protocol"
)

// CapturedFrame is one relayed frame as written to the capture file.
type CapturedFrame struct {
	Timestamp  time.Time `json:"timestamp"`
	Seq        int       `json:"seq"`
	Client     string    `json:"client"`
	Direction  string    `json:"direction"`
	Length     int       `json:"length"`
	Hex        string    `json:"hex"`
	ASCII      string    `json:"ascii"`
	Decoded    string    `json:"decoded,omitempty"`
	ParseError string    `json:"parse_error,omitempty"`
}

// Capture appends relayed frames to a JSON Lines file, one file per day.
// A nil *Capture records nothing.
type Capture struct {
	dir string
	mu  sync.Mutex
	seq int
	now func() time.Time
}

// NewCapture writes captures under dir.
func NewCapture(dir string) *Capture {
	return &Capture{dir: dir, now: time.Now}
}

// Record appends one frame. Failures are logged, never returned: a capture
// problem must not break the relay.
func (c *Capture) Record(clientID, direction string, data []byte) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	ts := c.now()
	rec := CapturedFrame{
		Timestamp: ts,
		Seq:       c.seq,
		Client:    clientID,
		Direction: direction,
		Length:    len(data),
		Hex:       hex.EncodeToString(data),
		ASCII:     toASCII(data),
	}
	if frame, err := protocol.ParseFrame(data); err != nil {
		rec.ParseError = err.Error()
	} else {
		rec.Decoded = frame.String()
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		logging.Error("Failed to create capture directory", zap.String("dir", c.dir), zap.Error(err))
		return
	}

	filename := filepath.Join(c.dir, fmt.Sprintf("capture-%s.jsonl", ts.Format("20060102")))
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Error("Failed to open capture file",
			zap.String("filename", filename),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = f.Close() }()

	line, err := json.Marshal(rec)
	if err != nil {
		logging.Error("Failed to marshal captured frame", zap.Error(err))
		return
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		logging.Error("Failed to write capture file",
			zap.String("filename", filename),
			zap.Error(err),
		)
	}
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
