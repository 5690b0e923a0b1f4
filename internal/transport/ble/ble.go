// Package ble implements transport.Transport over a local Bluetooth LE
// adapter.
package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/muurk/fairbuds/internal/logging"
	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/transport"
)

// DefaultScanTimeout bounds how long Connect scans for the address.
const DefaultScanTimeout = 10 * time.Second

// NamePrefix matches the advertised name of Fairbuds when no address is
// given.
const NamePrefix = "Fairbuds"

// Transport is a GATT connection to the QXW service.
type Transport struct {
	ScanTimeout time.Duration

	adapter *bluetooth.Adapter

	mu         sync.Mutex
	device     *bluetooth.Device
	address    string
	writeChar  bluetooth.DeviceCharacteristic
	notifyChar bluetooth.DeviceCharacteristic
	connected  bool
	closing    bool

	handler  transport.NotifyHandler
	linkLoss transport.LinkLossHandler
}

// New creates a transport on the default adapter.
func New() *Transport {
	return &Transport{
		ScanTimeout: DefaultScanTimeout,
		adapter:     bluetooth.DefaultAdapter,
	}
}

// Connect enables the adapter, scans for address (or the first device
// whose name starts with NamePrefix when address is empty), connects and
// subscribes to the notify characteristic.
func (t *Transport) Connect(ctx context.Context, address string) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable bluetooth: %w", err)
	}
	t.adapter.SetConnectHandler(t.onConnectChange)

	result, err := t.scan(ctx, address)
	if err != nil {
		return err
	}

	logging.Info("Connecting to earbuds",
		zap.String("address", result.Address.String()),
		zap.String("name", result.LocalName()),
	)

	device, err := t.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", result.Address.String(), err)
	}

	writeChar, notifyChar, err := qxwCharacteristics(device)
	if err != nil {
		_ = device.Disconnect()
		return err
	}

	t.mu.Lock()
	t.device = &device
	t.address = result.Address.String()
	t.writeChar = writeChar
	t.notifyChar = notifyChar
	t.connected = true
	t.closing = false
	t.mu.Unlock()

	if err := notifyChar.EnableNotifications(t.onNotify); err != nil {
		_ = t.Disconnect()
		return fmt.Errorf("failed to enable notifications: %w", err)
	}

	return nil
}

func (t *Transport) scan(ctx context.Context, address string) (bluetooth.ScanResult, error) {
	timeout := t.ScanTimeout
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		found  bluetooth.ScanResult
		ok     bool
		scanMu sync.Mutex
	)

	go func() {
		<-ctx.Done()
		_ = t.adapter.StopScan()
	}()

	err := t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !matches(result, address) {
			return
		}
		scanMu.Lock()
		found, ok = result, true
		scanMu.Unlock()
		_ = adapter.StopScan()
	})
	if err != nil {
		return found, fmt.Errorf("scan failed: %w", err)
	}

	scanMu.Lock()
	defer scanMu.Unlock()
	if !ok {
		if address == "" {
			return found, fmt.Errorf("no device named %s*: %w", NamePrefix, transport.ErrDeviceNotFound)
		}
		return found, fmt.Errorf("%s: %w", address, transport.ErrDeviceNotFound)
	}
	return found, nil
}

func matches(result bluetooth.ScanResult, address string) bool {
	if address == "" {
		return strings.HasPrefix(result.LocalName(), NamePrefix)
	}
	return strings.EqualFold(result.Address.String(), address)
}

func qxwCharacteristics(device bluetooth.Device) (writeChar, notifyChar bluetooth.DeviceCharacteristic, err error) {
	serviceUUID, err := bluetooth.ParseUUID(protocol.ServiceUUID)
	if err != nil {
		return writeChar, notifyChar, fmt.Errorf("failed to parse service UUID: %w", err)
	}
	writeUUID, _ := bluetooth.ParseUUID(protocol.WriteCharUUID)
	notifyUUID, _ := bluetooth.ParseUUID(protocol.NotifyCharUUID)

	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil || len(services) == 0 {
		return writeChar, notifyChar, fmt.Errorf("discover service %s: %w", protocol.ServiceUUID, transport.ErrServiceMissing)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{writeUUID, notifyUUID})
	if err != nil {
		return writeChar, notifyChar, fmt.Errorf("discover characteristics: %w", transport.ErrServiceMissing)
	}

	var haveWrite, haveNotify bool
	for _, c := range chars {
		switch c.UUID() {
		case writeUUID:
			writeChar, haveWrite = c, true
		case notifyUUID:
			notifyChar, haveNotify = c, true
		}
	}
	if !haveWrite || !haveNotify {
		return writeChar, notifyChar, transport.ErrServiceMissing
	}
	return writeChar, notifyChar, nil
}

func (t *Transport) onNotify(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)

	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		h(buf)
	}
}

func (t *Transport) onConnectChange(device bluetooth.Device, connected bool) {
	if connected {
		return
	}

	t.mu.Lock()
	if !t.connected || t.closing || !strings.EqualFold(device.Address.String(), t.address) {
		t.mu.Unlock()
		return
	}
	t.connected = false
	t.device = nil
	h := t.linkLoss
	t.mu.Unlock()

	logging.Warn("BLE link lost", zap.String("address", device.Address.String()))
	if h != nil {
		h(fmt.Errorf("%s disconnected", device.Address.String()))
	}
}

// Disconnect implements transport.Transport
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	device := t.device
	t.device = nil
	t.connected = false
	t.closing = true
	t.mu.Unlock()

	if device == nil {
		return nil
	}
	if err := device.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

// Write sends data with write-without-response, as the vendor app does.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	connected := t.connected
	char := t.writeChar
	t.mu.Unlock()

	if !connected {
		return transport.ErrNotConnected
	}
	if _, err := char.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("GATT write failed: %w", err)
	}
	return nil
}

// Subscribe implements transport.Transport
func (t *Transport) Subscribe(h transport.NotifyHandler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// OnLinkLoss implements transport.Transport
func (t *Transport) OnLinkLoss(h transport.LinkLossHandler) {
	t.mu.Lock()
	t.linkLoss = h
	t.mu.Unlock()
}

// Connected implements transport.Transport
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

var _ transport.Transport = (*Transport)(nil)
