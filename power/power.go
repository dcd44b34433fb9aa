// Package power drives the ON/OFF pin of a KIM module.
package power

import (
	"i4.energy/across/kimgw/kim"
)

// DefaultConsumer is the label the pin request carries in the kernel.
const DefaultConsumer = "kim-power"

// Options selects which pin, if any, powers the module.
type Options struct {
	// Unused means the pin is not wired and the module is always powered.
	Unused bool
	// Chip is the GPIO character device, e.g. "gpiochip0".
	Chip string
	// Line is the offset of the ON/OFF pin on Chip.
	Line int
	// ActiveLow inverts the pin so that active drives it low.
	ActiveLow bool
	// Consumer labels the request. Defaults to DefaultConsumer.
	Consumer string
}

// New returns the power control described by opts: NoOp when the pin is
// unused, a requested GPIO line otherwise.
func New(opts Options) (kim.PowerControl, error) {
	if opts.Unused {
		return NoOp{}, nil
	}
	return Open(opts)
}

// NoOp stands in for a pin that is not wired. The module is powered
// permanently, so it always reports active.
type NoOp struct{}

func (NoOp) Wired() bool { return false }
func (NoOp) SetActive(bool) error { return nil }
func (NoOp) Active() bool { return true }
func (NoOp) Close() error { return nil }

var (
	_ kim.PowerControl = NoOp{}
	_ kim.PowerControl = (*GPIO)(nil)
)
