package kim

import "errors"

var (
	// ErrNoDialer is returned when a Module is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// open the serial line to the module.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNoPowerControl is returned when a Module is constructed without a
	// PowerControl. Use power.NoOp when the ON/OFF pin is not wired.
	ErrNoPowerControl = errors.New("no power control configured")

	// ErrNotInitialized is returned when an operation is attempted on a
	// Module that has not been successfully initialized.
	ErrNotInitialized = errors.New("module not initialized")

	// ErrAlreadyClosed is returned when an operation is attempted on a Module
	// that has already been shut down.
	ErrAlreadyClosed = errors.New("module already closed")

	// ErrTransportUnavailable is returned when a command is attempted while
	// no transport is open. No I/O is attempted.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrSleeping is returned when a command is attempted while the module
	// is powered down, or while its wake-up has not been confirmed by a ping.
	ErrSleeping = errors.New("module is sleeping")

	// ErrModule is returned when the module explicitly rejected a command
	// with an +ERROR reply. The errno is part of the wrapped message.
	ErrModule = errors.New("module reported error")

	// ErrUnknownResponse is returned when the module answered with a line
	// that does not match any known reply shape.
	ErrUnknownResponse = errors.New("unknown response")

	// ErrTimeout is returned when no classifiable reply arrived within the
	// attempt budget.
	ErrTimeout = errors.New("no response from module")

	// ErrWakeFailed is returned when the module did not answer the ping
	// after being powered up. No further command can be trusted; callers
	// usually abort.
	ErrWakeFailed = errors.New("wake-up failed, check wiring and jumpers")
)
