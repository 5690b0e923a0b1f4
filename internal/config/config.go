package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "fairbuds"
	configFile = "config.yaml"

	// EnvPrefix prefixes environment overrides, e.g.
	// FAIRBUDS_DEVICE_ADDRESS or FAIRBUDS_SESSION_SETTLEDELAY.
	EnvPrefix = "FAIRBUDS"
)

// Transport names accepted in device.transport.
const (
	TransportBLE    = "ble"
	TransportBridge = "bridge"
)

// Config is the full user configuration.
type Config struct {
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Bridge  BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// DeviceConfig selects the earbuds and how to reach them.
type DeviceConfig struct {
	Address   string `mapstructure:"address" yaml:"address"`
	Transport string `mapstructure:"transport" yaml:"transport"`
	BridgeURL string `mapstructure:"bridgeURL" yaml:"bridgeURL"`
}

// SessionConfig tunes link timing.
type SessionConfig struct {
	SettleDelay     time.Duration `mapstructure:"settleDelay"`
	CommandInterval time.Duration `mapstructure:"commandInterval"`
	ScanTimeout     time.Duration `mapstructure:"scanTimeout"`
	EventBuffer     int           `mapstructure:"eventBuffer"`
}

// MarshalYAML writes durations as strings ("2s") so the file stays
// readable and loads back through viper.
func (s SessionConfig) MarshalYAML() (interface{}, error) {
	return struct {
		SettleDelay     string `yaml:"settleDelay"`
		CommandInterval string `yaml:"commandInterval"`
		ScanTimeout     string `yaml:"scanTimeout"`
		EventBuffer     int    `yaml:"eventBuffer"`
	}{
		SettleDelay:     s.SettleDelay.String(),
		CommandInterval: s.CommandInterval.String(),
		ScanTimeout:     s.ScanTimeout.String(),
		EventBuffer:     s.EventBuffer,
	}, nil
}

// LumberjackConfig configures the rotated log file.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize" yaml:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge" yaml:"maxAge"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// LoggingConfig holds the log level and optional file. An empty level
// keeps the tools silent.
type LoggingConfig struct {
	Level string           `mapstructure:"level" yaml:"level"`
	File  LumberjackConfig `mapstructure:"file" yaml:"file"`
}

// BridgeConfig configures fairbuds-bridge.
type BridgeConfig struct {
	Listen    string `mapstructure:"listen" yaml:"listen"`
	Advertise bool   `mapstructure:"advertise" yaml:"advertise"`
	Name      string `mapstructure:"name" yaml:"name"`
}

// MetricsConfig configures the prometheus endpoint on the bridge.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable" yaml:"enable"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/fairbuds or $HOME/.config/fairbuds
//   - macOS: $HOME/.config/fairbuds
//   - Windows: %LOCALAPPDATA%\fairbuds
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.address", "")
	v.SetDefault("device.transport", TransportBLE)
	v.SetDefault("device.bridgeURL", "")

	v.SetDefault("session.settleDelay", "2s")
	v.SetDefault("session.commandInterval", "300ms")
	v.SetDefault("session.scanTimeout", "10s")
	v.SetDefault("session.eventBuffer", 32)

	v.SetDefault("logging.level", "")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 28)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("bridge.listen", ":8765")
	v.SetDefault("bridge.advertise", true)
	v.SetDefault("bridge.name", "fairbuds-bridge")

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Default returns the configuration used when no file or environment
// overrides exist.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return &cfg
}

// Load reads the configuration. An explicit path must exist; with an empty
// path the default location is used when present. Environment variables
// override both.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		defaultPath, err := GetConfigPath()
		if err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				path = defaultPath
			}
		}
	}

	return load(v, path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper can not.
func (c *Config) Validate() error {
	switch c.Device.Transport {
	case TransportBLE, TransportBridge:
	default:
		return fmt.Errorf("device.transport %q: must be %q or %q", c.Device.Transport, TransportBLE, TransportBridge)
	}
	if c.Session.SettleDelay < 0 || c.Session.CommandInterval < 0 {
		return fmt.Errorf("session delays must not be negative")
	}
	if c.Session.EventBuffer <= 0 {
		return fmt.Errorf("session.eventBuffer must be positive")
	}
	return nil
}

// Save writes cfg as YAML to path, or to the default location when path
// is empty. The directory is created with 0700 and the file with 0600.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to a temp file first, then rename
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
