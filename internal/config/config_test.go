package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Device.Transport != TransportBLE {
		t.Errorf("Transport = %q, want %q", cfg.Device.Transport, TransportBLE)
	}
	if cfg.Session.SettleDelay != 2*time.Second {
		t.Errorf("SettleDelay = %v, want 2s", cfg.Session.SettleDelay)
	}
	if cfg.Session.CommandInterval != 300*time.Millisecond {
		t.Errorf("CommandInterval = %v, want 300ms", cfg.Session.CommandInterval)
	}
	if cfg.Session.EventBuffer != 32 {
		t.Errorf("EventBuffer = %d, want 32", cfg.Session.EventBuffer)
	}
	if cfg.Bridge.Listen != ":8765" {
		t.Errorf("Bridge.Listen = %q", cfg.Bridge.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Device.Address = "AA:BB:CC:DD:EE:FF"
	cfg.Session.SettleDelay = 1500 * time.Millisecond
	cfg.Logging.Level = "debug"
	cfg.Logging.File.Filename = "/tmp/fairbuds.log"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "settleDelay: 1.5s") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Device.Address != cfg.Device.Address {
		t.Errorf("Address = %q, want %q", got.Device.Address, cfg.Device.Address)
	}
	if got.Session.SettleDelay != cfg.Session.SettleDelay {
		t.Errorf("SettleDelay = %v, want %v", got.Session.SettleDelay, cfg.Session.SettleDelay)
	}
	if got.Logging.File.Filename != cfg.Logging.File.Filename {
		t.Errorf("Filename = %q, want %q", got.Logging.File.Filename, cfg.Logging.File.Filename)
	}
}

func TestSaveFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(Default(), path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "device:\n  transport: bridge\n  bridgeURL: ws://pi.local:8765/qxw\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.Transport != TransportBridge {
		t.Errorf("Transport = %q, want %q", cfg.Device.Transport, TransportBridge)
	}
	if cfg.Device.BridgeURL != "ws://pi.local:8765/qxw" {
		t.Errorf("BridgeURL = %q", cfg.Device.BridgeURL)
	}
	if cfg.Session.CommandInterval != 300*time.Millisecond {
		t.Errorf("CommandInterval = %v, want default", cfg.Session.CommandInterval)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("FAIRBUDS_DEVICE_ADDRESS", "11:22:33:44:55:66")
	t.Setenv("FAIRBUDS_SESSION_COMMANDINTERVAL", "500ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.Address != "11:22:33:44:55:66" {
		t.Errorf("Address = %q", cfg.Device.Address)
	}
	if cfg.Session.CommandInterval != 500*time.Millisecond {
		t.Errorf("CommandInterval = %v, want 500ms", cfg.Session.CommandInterval)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load(missing explicit path) expected error")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("device:\n  transport: carrier-pigeon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "device.transport") {
		t.Errorf("Load(bad transport) error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bridge transport", func(c *Config) { c.Device.Transport = TransportBridge }, false},
		{"empty transport", func(c *Config) { c.Device.Transport = "" }, true},
		{"negative settle", func(c *Config) { c.Session.SettleDelay = -time.Second }, true},
		{"zero buffer", func(c *Config) { c.Session.EventBuffer = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout")
	}
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != filepath.Join("/xdg", "fairbuds") {
		t.Errorf("GetConfigDir() = %q", dir)
	}

	path, err := GetConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("GetConfigPath() = %q", path)
	}
}
