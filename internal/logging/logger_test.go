package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger should be a no-op when no level is set")
	}
}

func TestInitializeFromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	core := GetLogger().Core()
	if !core.Enabled(zapcore.WarnLevel) || core.Enabled(zapcore.InfoLevel) {
		t.Error("logger should log warn and above only")
	}
}

func TestInitializeUnknownLevel(t *testing.T) {
	if err := Initialize("loud"); err == nil {
		t.Error("Initialize(\"loud\") expected error")
	}
}

func TestInitializeWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fairbuds.log")

	if err := InitializeWithFile("info", FileConfig{Path: path}); err != nil {
		t.Fatalf("InitializeWithFile() error = %v", err)
	}
	Info("hello file", zap.String("k", "v"))
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty")
	}
	SetLogger(zap.NewNop())
}

func TestLogFrame(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	LogFrame("tx", []byte{0x51, 0x58, 0x57})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if got := fields["hex"]; got != "515857" {
		t.Errorf("hex = %v, want 515857", got)
	}
	if got := fields["ascii"]; got != "QXW" {
		t.Errorf("ascii = %v, want QXW", got)
	}
}

func TestLogFrameSkippedAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	LogFrame("rx", []byte{0x51, 0x58, 0x57})

	if n := logs.Len(); n != 0 {
		t.Errorf("got %d entries at info level, want 0", n)
	}
}

func TestAsciiDump(t *testing.T) {
	if got := asciiDump([]byte{'Q', 0x00, 'X'}); got != "Q.X" {
		t.Errorf("asciiDump() = %q, want %q", got, "Q.X")
	}
}
