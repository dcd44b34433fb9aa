package power

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// line is the part of *gpiocdev.Line the pin driver uses.
type line interface {
	SetValue(value int) error
	Close() error
}

var _ line = (*gpiocdev.Line)(nil)

// GPIO drives the ON/OFF pin through the Linux GPIO character device.
type GPIO struct {
	mu     sync.Mutex
	line   line
	active bool
}

// Open requests the pin as an output driven inactive.
func Open(opts Options) (*GPIO, error) {
	if opts.Chip == "" {
		return nil, errors.New("gpio chip is required")
	}
	if opts.Line < 0 {
		return nil, errors.Errorf("invalid gpio line %d", opts.Line)
	}
	consumer := opts.Consumer
	if consumer == "" {
		consumer = DefaultConsumer
	}

	reqOpts := []gpiocdev.LineReqOption{
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(consumer),
	}
	if opts.ActiveLow {
		reqOpts = append(reqOpts, gpiocdev.AsActiveLow)
	}

	l, err := gpiocdev.RequestLine(opts.Chip, opts.Line, reqOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to request GPIO line %s:%d", opts.Chip, opts.Line)
	}
	return newGPIO(l), nil
}

func newGPIO(l line) *GPIO {
	return &GPIO{line: l}
}

func (g *GPIO) Wired() bool { return true }

// SetActive drives the pin. Polarity is handled by the line request, so
// active is always logical 1.
func (g *GPIO) SetActive(active bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.line == nil {
		return errors.New("GPIO not initialized")
	}
	value := 0
	if active {
		value = 1
	}
	if err := g.line.SetValue(value); err != nil {
		return errors.Wrapf(err, "failed to set GPIO to %d", value)
	}
	g.active = active
	return nil
}

// Active returns the last level successfully driven.
func (g *GPIO) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Close releases the line. Closing twice is a no-op.
func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.line == nil {
		return nil
	}
	err := g.line.Close()
	g.line = nil
	g.active = false
	return errors.Wrap(err, "failed to release GPIO line")
}
