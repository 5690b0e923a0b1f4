package session

import (
	"time"

	"github.com/muurk/fairbuds/internal/metrics"
	"github.com/muurk/fairbuds/internal/protocol"
)

// Defaults taken from what the earbuds tolerate in practice.
const (
	// DefaultSettleDelay is the pause between disconnect and connect in
	// Reconnect; the earbuds refuse a new link while the old one is held.
	DefaultSettleDelay = 2 * time.Second

	// DefaultCommandInterval spaces consecutive writes. Commands sent
	// back-to-back are sometimes ignored.
	DefaultCommandInterval = 300 * time.Millisecond

	// DefaultEventBuffer is the capacity of the Events channel.
	DefaultEventBuffer = 32
)

// Config holds session settings.
type Config struct {
	SettleDelay     time.Duration
	CommandInterval time.Duration
	EventBuffer     int
	Parser          *protocol.Parser
	Metrics         *metrics.Metrics
	Sinks           []EventSink
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		SettleDelay:     DefaultSettleDelay,
		CommandInterval: DefaultCommandInterval,
		EventBuffer:     DefaultEventBuffer,
		Parser:          &protocol.Parser{},
	}
}

// Option configures a Session.
type Option func(*Config)

// WithSettleDelay sets the Reconnect settle delay.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Config) {
		c.SettleDelay = d
	}
}

// WithCommandInterval sets the minimum spacing between writes. Zero
// disables pacing.
func WithCommandInterval(d time.Duration) Option {
	return func(c *Config) {
		c.CommandInterval = d
	}
}

// WithEventBuffer sets the Events channel capacity.
func WithEventBuffer(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.EventBuffer = n
		}
	}
}

// WithParser replaces the notification parser, e.g. to use a different
// device info decoder.
func WithParser(p *protocol.Parser) Option {
	return func(c *Config) {
		if p != nil {
			c.Parser = p
		}
	}
}

// WithMetrics enables prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithSink registers an event sink at construction time.
func WithSink(sink EventSink) Option {
	return func(c *Config) {
		if sink != nil {
			c.Sinks = append(c.Sinks, sink)
		}
	}
}
