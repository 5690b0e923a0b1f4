// Package config loads and saves the fairbuds user configuration.
//
// Values come from three layers, later ones winning: built-in defaults,
// a YAML file, and FAIRBUDS_* environment variables (nested keys joined
// with underscores, e.g. FAIRBUDS_DEVICE_ADDRESS).
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/fairbuds/config.yaml or $HOME/.config/fairbuds/config.yaml
//   - macOS: $HOME/.config/fairbuds/config.yaml
//   - Windows: %LOCALAPPDATA%\fairbuds\config.yaml
//
// # Example
//
//	device:
//	  address: "AA:BB:CC:DD:EE:FF"
//	  transport: ble
//	session:
//	  settleDelay: 2s
//	  commandInterval: 300ms
//	logging:
//	  level: info
//	  file:
//	    filename: /tmp/fairbuds.log
//
// Save writes through a temp file and rename, so a crash never leaves a
// half-written config behind.
package config
