package kim

// PowerControl drives the module's ON/OFF pin.
//
// Implementations live in the power package: power.GPIO for a wired pin and
// power.NoOp when the pin is not used.
type PowerControl interface {
	// Wired reports whether a physical pin is driven. When false the Module
	// only tracks a belief and treats the module as permanently awake.
	Wired() bool
	// SetActive drives the pin to its active (module on) or inactive level.
	SetActive(active bool) error
	// Active returns the last level driven.
	Active() bool
	// Close releases the pin.
	Close() error
}
