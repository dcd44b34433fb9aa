package kim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"i4.energy/across/kimgw/at"
)

//go:generate go tool mockgen -destination=mock_kim.go -package=kim . Dialer,PowerControl,Transport

// Transport represents an open, bidirectional serial line to a KIM module.
//
// A Transport is assumed to be already connected and ready for use. Typical
// implementations are the serial port returned by SerialDialer and the
// in-memory fakes used for testing.
type Transport interface {
	io.WriteCloser

	// ReadLine reads one response line of at most max bytes, terminator
	// included. It returns whatever was received when the timeout elapses,
	// which may be nothing.
	ReadLine(max int, timeout time.Duration) ([]byte, error)

	// ResetInputBuffer discards bytes received but not yet read.
	ResetInputBuffer() error

	// ResetOutputBuffer discards bytes written but not yet transmitted.
	ResetOutputBuffer() error
}

// Dialer opens a Transport to a KIM module.
//
// The module's UART is power-cycled together with the module, so the Module
// dials a fresh Transport on every wake-up.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport.
	// It should respect cancellation and deadlines provided by the context.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultBaudRate is the factory UART speed of the KIM1 module.
const DefaultBaudRate = 9600

// SerialDialer opens a KIM module over a serial port using go.bug.st/serial.
type SerialDialer struct {
	// PortName is the serial device, e.g. "/dev/ttyS0".
	PortName string
	// BaudRate is used when Mode is nil. Zero means DefaultBaudRate.
	BaudRate int
	// Mode overrides the 8N1 default line settings.
	Mode *serial.Mode
}

func (d SerialDialer) mode() *serial.Mode {
	if d.Mode != nil {
		return d.Mode
	}
	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Dial opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, errors.New("kim: serial port name is required")
	}
	if ctx == nil {
		return nil, errors.New("kim: context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := serial.Open(d.PortName, d.mode())
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return newSerialTransport(port), nil
}

// serialPort is the part of serial.Port the transport relies on.
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

var _ serialPort = serial.Port(nil)

type serialTransport struct {
	port serialPort
	now  func() time.Time
}

func newSerialTransport(port serialPort) *serialTransport {
	return &serialTransport{port: port, now: time.Now}
}

func (t *serialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}

func (t *serialTransport) ResetInputBuffer() error {
	return t.port.ResetInputBuffer()
}

func (t *serialTransport) ResetOutputBuffer() error {
	return t.port.ResetOutputBuffer()
}

// ReadLine reads byte by byte so nothing past the line terminator is
// consumed. A read returning no data means the port timeout expired.
func (t *serialTransport) ReadLine(max int, timeout time.Duration) ([]byte, error) {
	deadline := t.now().Add(timeout)
	line := make([]byte, 0, max)
	b := make([]byte, 1)

	for len(line) < max {
		remaining := deadline.Sub(t.now())
		if remaining <= 0 {
			break
		}
		if err := t.port.SetReadTimeout(remaining); err != nil {
			return line, fmt.Errorf("set read timeout: %w", err)
		}
		n, err := t.port.Read(b)
		if n > 0 {
			line = append(line, b[0])
			if advance, _, _ := at.Splitter(line, false); advance > 0 {
				return line, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return line, nil
			}
			return line, err
		}
		if n == 0 {
			break
		}
	}
	return line, nil
}
