// Package bridge exposes a local QXW link over a websocket.
//
// A fairbuds-bridge runs on a host that can reach the earbuds over BLE
// (a Raspberry Pi next to the sofa, say) and lets fairbuds on another
// machine drive them through the wsbridge transport.
//
// # Wire Format
//
// One websocket endpoint, /qxw, carries two kinds of message:
//   - Binary: one raw QXW frame, in either direction. Frames from the client
//     are checked with protocol.ParseFrame before they reach the earbuds.
//   - Text: one ControlMessage as JSON.
//
// Control exchange:
//
//	client → {"type":"connect","address":"AA:BB:CC:DD:EE:FF"}
//	bridge → {"type":"connected","address":"AA:BB:CC:DD:EE:FF"}
//	client → {"type":"disconnect"}
//	bridge → {"type":"disconnected"}
//	bridge → {"type":"link_lost","error":"..."}   (unsolicited)
//	bridge → {"type":"error","error":"..."}       (any failed request)
//
// # Clients
//
// The bridge serves one client at a time; a second connection is refused
// with 409 Conflict. When the client leaves, the link is disconnected.
//
// # Usage Example
//
//	srv := bridge.New(&bridge.Config{
//	    Listen:      ":8765",
//	    MetricsPath: "/metrics",
//	}, ble.New(), nil)
//
//	// Start blocks until SIGINT/SIGTERM or ctx is cancelled
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Capture
//
// With Config.CaptureDir set, every relayed frame is appended to
// capture-YYYYMMDD.jsonl with a hex and decoded rendering, for protocol
// analysis.
package bridge
