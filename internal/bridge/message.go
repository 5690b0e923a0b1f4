package bridge

import (
	"encoding/json"
	"fmt"
)

// Path is the websocket endpoint served by the bridge.
const Path = "/qxw"

// Control message types. Binary websocket messages carry raw QXW frames;
// text messages carry one ControlMessage as JSON.
const (
	MsgConnect      = "connect"      // client → bridge
	MsgDisconnect   = "disconnect"   // client → bridge
	MsgConnected    = "connected"    // bridge → client
	MsgDisconnected = "disconnected" // bridge → client
	MsgLinkLost     = "link_lost"    // bridge → client
	MsgError        = "error"        // bridge → client
)

// ControlMessage is a text-frame control message.
type ControlMessage struct {
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EncodeControl marshals a control message.
func EncodeControl(msg ControlMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeControl unmarshals a control message and checks it has a type.
func DecodeControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("invalid control message: %w", err)
	}
	if msg.Type == "" {
		return msg, fmt.Errorf("control message has no type")
	}
	return msg, nil
}
