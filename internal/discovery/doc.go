// Package discovery finds fairbuds bridges on the local network over mDNS.
//
// A bridge advertises itself with Advertise as a "_qxw-bridge._tcp"
// service; fairbuds browses for it so the user does not have to know the
// bridge's address.
//
// # TXT Records
//
//   - path: websocket path (default "/qxw")
//   - version: fairbuds-bridge version
//
// # Usage Example
//
//	bridges, err := discovery.BrowseBridges(ctx, 3*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, b := range bridges {
//	    fmt.Println(b.Instance, b.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - The bridge must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
