package kim

import (
	"log/slog"
	"time"
)

const (
	// DefaultMaxAttempts is the number of line reads per command.
	DefaultMaxAttempts = 10
	// DefaultReadTimeout bounds a single line read.
	DefaultReadTimeout = time.Second
	// DefaultMaxLineLength is the largest line read in one attempt,
	// terminator included.
	DefaultMaxLineLength = 20
	// DefaultSettleDelay is the pause after driving the ON/OFF pin active
	// before the UART line is usable.
	DefaultSettleDelay = 20 * time.Millisecond
)

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	if c.power == nil {
		return ErrNoPowerControl
	}
	return nil
}

type Config struct {
	dialer        Dialer
	power         PowerControl
	maxAttempts   int
	readTimeout   time.Duration
	maxLineLength int
	settleDelay   time.Duration
	debug         bool
	logger        *slog.Logger
}

func (c *Config) setDefaults() {
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.readTimeout <= 0 {
		c.readTimeout = DefaultReadTimeout
	}
	if c.maxLineLength <= 0 {
		c.maxLineLength = DefaultMaxLineLength
	}
	if c.settleDelay < 0 {
		c.settleDelay = 0
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder whose settle delay defaults to
// DefaultSettleDelay.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: Config{settleDelay: DefaultSettleDelay}}
}

// WithDialer sets how the serial line is opened on every wake-up.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithPowerControl sets the ON/OFF pin driver.
func (b *ConfigBuilder) WithPowerControl(p PowerControl) *ConfigBuilder {
	b.config.power = p
	return b
}

func (b *ConfigBuilder) WithMaxAttempts(n int) *ConfigBuilder {
	b.config.maxAttempts = n
	return b
}

func (b *ConfigBuilder) WithReadTimeout(d time.Duration) *ConfigBuilder {
	b.config.readTimeout = d
	return b
}

func (b *ConfigBuilder) WithMaxLineLength(n int) *ConfigBuilder {
	b.config.maxLineLength = n
	return b
}

func (b *ConfigBuilder) WithSettleDelay(d time.Duration) *ConfigBuilder {
	b.config.settleDelay = d
	return b
}

// WithDebug enables tracing of every raw exchange at debug level.
func (b *ConfigBuilder) WithDebug(debug bool) *ConfigBuilder {
	b.config.debug = debug
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
