package main

import (
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// SerialPort is the path to the module's serial port (e.g. "/dev/ttyS0")
	SerialPort string
	// BaudRate is the baud rate for serial communication with the module (e.g. 9600)
	BaudRate int
	// PowerChip is the GPIO chip of the ON/OFF pin (e.g. "gpiochip0")
	PowerChip string
	// PowerLine is the offset of the ON/OFF pin on PowerChip
	PowerLine int
	// PowerActiveLow inverts the ON/OFF pin
	PowerActiveLow bool
	// PowerPinUnused means the ON/OFF pin is not wired and the module is
	// always powered
	PowerPinUnused bool
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// Debug traces every raw AT exchange at debug level
	Debug bool
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyS0"
		c.BaudRate = 9600
		c.PowerChip = "gpiochip0"
		c.PowerLine = 18
		c.LogLevel = "info"
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if chip := os.Getenv("POWER_CHIP"); chip != "" {
			c.PowerChip = chip
		}

		if line := os.Getenv("POWER_LINE"); line != "" {
			if l, err := strconv.Atoi(line); err == nil {
				c.PowerLine = l
			}
		}

		setBool(&c.PowerActiveLow, os.Getenv("POWER_ACTIVE_LOW"))
		setBool(&c.PowerPinUnused, os.Getenv("POWER_PIN_UNUSED"))

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		setBool(&c.Debug, os.Getenv("KIM_DEBUG"))

		return nil
	}
}

// WithFlags loads configuration from command-line flags that were set
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "power-chip":
				c.PowerChip = f.Value.String()
			case "power-line":
				if l, err := strconv.Atoi(f.Value.String()); err == nil {
					c.PowerLine = l
				}
			case "power-active-low":
				setBool(&c.PowerActiveLow, f.Value.String())
			case "power-pin-unused":
				setBool(&c.PowerPinUnused, f.Value.String())
			case "log-level":
				c.LogLevel = f.Value.String()
			case "debug":
				setBool(&c.Debug, f.Value.String())
			}
		})
		return nil
	}
}

// setBool leaves dst untouched when s is empty or not a boolean.
func setBool(dst *bool, s string) {
	if s == "" {
		return
	}
	if b, err := strconv.ParseBool(s); err == nil {
		*dst = b
	}
}
