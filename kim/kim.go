package kim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/kimgw/at"
)

type PowerState int

const (
	Sleeping PowerState = iota
	Awake
)

func (s PowerState) String() string {
	if s == Awake {
		return "awake"
	}
	return "sleeping"
}

// Module drives a KIM satellite radio module: it sequences the ON/OFF pin and
// the serial line between Sleeping and Awake and executes AT commands while
// the module is confirmed awake.
//
// All methods are safe for concurrent use. Each command holds the lock for
// the full write and read cycle, so transactions never interleave.
type Module struct {
	mu sync.Mutex

	// dialer opens a fresh serial line on every wake-up
	dialer Dialer
	// power drives the ON/OFF pin
	power PowerControl
	// engine runs commands over the current transport
	engine *Engine
	// transport is nil while the line is closed
	transport Transport

	settleDelay time.Duration
	logger      *slog.Logger

	// state is the believed power state; Awake only after a successful ping
	state       PowerState
	initialized bool
	closed      bool
}

// New creates a Module from a validated configuration. No hardware is
// touched until Initialize.
func New(config Config) (*Module, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	return &Module{
		dialer:      config.dialer,
		power:       config.power,
		engine:      NewEngine(nil, config),
		settleDelay: config.settleDelay,
		logger:      config.logger,
		state:       Sleeping,
	}, nil
}

// Initialize puts the module in its start-up state. With a wired pin the
// pin is driven inactive and the module is Sleeping until SetAwake(true).
// Without one the serial line is opened at once and the module is treated
// as permanently Awake.
func (m *Module) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}

	if !m.power.Wired() {
		if m.transport == nil {
			if err := m.openTransport(ctx); err != nil {
				return err
			}
		}
		m.state = Awake
		m.initialized = true
		m.logger.Info("Serial initialised, power pin not used")
		return nil
	}

	if err := m.power.SetActive(false); err != nil {
		return fmt.Errorf("drive power pin inactive: %w", err)
	}
	m.state = Sleeping
	m.initialized = true
	m.logger.Info("Power pin initialised, module sleeping")
	return nil
}

// Shutdown releases the power pin and closes the serial line. After
// Shutdown the Module cannot be reused.
func (m *Module) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true
	m.state = Sleeping
	m.logger.Info("Shutting down module")

	var errs []error
	if err := m.closeTransport(); err != nil {
		errs = append(errs, err)
	}
	if err := m.power.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release power pin: %w", err))
	}
	return errors.Join(errs...)
}

// IsSleeping reports the believed power state. Once initialized it is
// always false when the power pin is not used.
func (m *Module) IsSleeping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Sleeping
}

// State returns the believed power state.
func (m *Module) State() PowerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetAwake requests a power transition and returns whether the module is
// sleeping afterwards. Requesting the current state is a no-op.
//
// A wake-up is only committed when the module answers a ping. Otherwise the
// module is powered back down and the error wraps ErrWakeFailed.
func (m *Module) SetAwake(ctx context.Context, awake bool) (sleeping bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return m.state == Sleeping, ErrAlreadyClosed
	}
	if !m.initialized {
		return m.state == Sleeping, ErrNotInitialized
	}
	if !m.power.Wired() {
		return false, nil
	}
	if awake == (m.state == Awake) {
		return m.state == Sleeping, nil
	}

	if awake {
		err = m.wake(ctx)
	} else {
		err = m.sleep()
	}
	return m.state == Sleeping, err
}

func (m *Module) wake(ctx context.Context) error {
	if err := m.closeTransport(); err != nil {
		m.logger.Warn("Failed to close stale transport", "error", err)
	}
	if err := m.openTransport(ctx); err != nil {
		return err
	}
	if err := m.resetBuffers(); err != nil {
		m.abortWake()
		return err
	}
	if err := m.power.SetActive(true); err != nil {
		m.abortWake()
		return fmt.Errorf("drive power pin active: %w", err)
	}

	// The UART is unusable until the line has settled after power-up.
	time.Sleep(m.settleDelay)

	outcome, err := m.engine.Execute(at.Ping())
	if err == nil {
		err = outcome.Err()
	}
	if err != nil {
		m.logger.Error("Ping not received", "error", err)
		m.abortWake()
		return fmt.Errorf("%w: %w", ErrWakeFailed, err)
	}

	m.state = Awake
	m.logger.Info("Module awake", "ping", outcome.Payload)
	return nil
}

// abortWake returns the hardware to the sleeping configuration after a
// failed wake-up.
func (m *Module) abortWake() {
	if err := m.power.SetActive(false); err != nil {
		m.logger.Warn("Failed to drive power pin inactive", "error", err)
	}
	if err := m.closeTransport(); err != nil {
		m.logger.Warn("Failed to close transport", "error", err)
	}
	m.state = Sleeping
}

func (m *Module) sleep() error {
	if err := m.power.SetActive(false); err != nil {
		return fmt.Errorf("drive power pin inactive: %w", err)
	}
	m.state = Sleeping

	var errs []error
	if m.transport != nil {
		if err := m.resetBuffers(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.closeTransport(); err != nil {
		errs = append(errs, err)
	}
	m.logger.Info("Module sleeping")
	return errors.Join(errs...)
}

func (m *Module) openTransport(ctx context.Context) error {
	transport, err := m.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	if transport == nil {
		return ErrNotInitialized
	}
	m.transport = transport
	m.engine.transport = transport
	return nil
}

func (m *Module) closeTransport() error {
	if m.transport == nil {
		return nil
	}
	err := m.transport.Close()
	m.transport = nil
	m.engine.transport = nil
	if err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

func (m *Module) resetBuffers() error {
	if err := m.transport.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("reset output buffer: %w", err)
	}
	if err := m.transport.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer: %w", err)
	}
	return nil
}

// Execute runs one command while the module is awake. This is the entry
// point the typed command methods build on.
func (m *Module) Execute(cmd at.Command) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Outcome{}, ErrAlreadyClosed
	}
	if !m.initialized {
		return Outcome{}, ErrNotInitialized
	}
	if m.state != Awake {
		return Outcome{}, ErrSleeping
	}
	return m.engine.Execute(cmd)
}
