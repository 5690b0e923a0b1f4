// Package protocol implements the QXW binary protocol spoken by Fairphone
// Fairbuds over BLE.
//
// The package is pure: it encodes and decodes frames, builds outbound
// commands and classifies inbound notifications. It never touches a
// transport and holds no state.
//
// # Frame Format
//
// Every frame, in both directions, has the same layout:
//
//	[0-2]  51 58 57   "QXW" prefix
//	[3]    command    0x10 select EQ, 0x20 custom EQ, 0x27 device info
//	[4]    type       0x01 request, 0x02 response, 0x03 notify
//	[5]    length     payload length (0-255)
//	[6+]   payload
//
// There is no checksum and no sequence number. A reply can not be matched
// to the request that caused it.
//
// # Numeric Encoding
//
// Gains are sent as one byte in 0.1 dB steps around an offset of 120:
//
//	byte = clamp(round(dB*10) + 120, 0, 255)   // -12.0 .. +13.5 dB
//
// Q values are sent as one byte in 0.1 steps:
//
//	byte = clamp(round(q*10), 0, 255)
//
// Encoding clamps silently and is lossy. Decoding an encoded value gives back
// the input to within 0.05.
//
// # Usage Example - Building
//
//	frame, err := protocol.BuildFullCustomEQ([]protocol.BandConfig{
//	    {Band: 0, GainDB: -2.8, Q: protocol.DefaultQ},
//	    // ... one entry per band
//	}, protocol.NumBands)
//	if err != nil {
//	    return err
//	}
//	transport.Write(ctx, frame.Bytes())
//
// # Usage Example - Parsing
//
//	event, err := protocol.ParseNotification(data)
//	if err != nil {
//	    // framing error, the bytes were not a QXW frame
//	}
//	switch ev := event.(type) {
//	case *protocol.DeviceInfoEvent:
//	    fmt.Println(ev.Info.BatteryLeft, ev.Info.Name)
//	case *protocol.AckEvent:
//	    fmt.Println("device acknowledged", protocol.CommandName(ev.Command))
//	}
package protocol
