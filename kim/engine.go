package kim

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"i4.energy/across/kimgw/at"
)

type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeModuleError
	OutcomeUnknownResponse
	OutcomeTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeModuleError:
		return "module error"
	case OutcomeUnknownResponse:
		return "unknown response"
	case OutcomeTimeout:
		return "timeout"
	}
	return "invalid"
}

// Outcome is the result of executing one command.
type Outcome struct {
	Kind OutcomeKind
	// Payload is the classified response line without its terminator.
	// It is empty for OutcomeTimeout.
	Payload string
	// Reads is the number of line reads performed.
	Reads int
}

// OK reports whether the module acknowledged the command.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}

// Err converts a failed outcome into an error wrapping ErrModule,
// ErrUnknownResponse or ErrTimeout.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeOK:
		return nil
	case OutcomeModuleError:
		return fmt.Errorf("%w: %s (%q)", ErrModule, at.ParseErrorCode(o.Payload), o.Payload)
	case OutcomeUnknownResponse:
		return fmt.Errorf("%w: %q", ErrUnknownResponse, o.Payload)
	case OutcomeTimeout:
		return fmt.Errorf("%w after %d reads", ErrTimeout, o.Reads)
	}
	return fmt.Errorf("invalid outcome kind %d", o.Kind)
}

// Engine executes AT commands over a Transport one at a time. It does not
// lock; the Module serializes access to it.
type Engine struct {
	transport     Transport
	maxAttempts   int
	readTimeout   time.Duration
	maxLineLength int
	debug         bool
	logger        *slog.Logger
}

// NewEngine returns an Engine using the attempt budget and logging settings
// of config. The transport may be nil and attached later.
func NewEngine(transport Transport, config Config) *Engine {
	config.setDefaults()
	return &Engine{
		transport:     transport,
		maxAttempts:   config.maxAttempts,
		readTimeout:   config.readTimeout,
		maxLineLength: config.maxLineLength,
		debug:         config.debug,
		logger:        config.logger,
	}
}

// Execute writes cmd and reads lines until one classifies, or until the
// attempt budget is spent and Timeout is returned. Empty and one byte reads
// are retried; module errors and unknown replies are final.
//
// The returned error is non-nil only for transport failures, in which case
// the Outcome is meaningless.
func (e *Engine) Execute(cmd at.Command) (Outcome, error) {
	if e.transport == nil {
		return Outcome{}, ErrTransportUnavailable
	}

	// A late reply to a previous command must not be read as ours.
	if err := e.transport.ResetOutputBuffer(); err != nil {
		return Outcome{}, fmt.Errorf("reset output buffer: %w", err)
	}
	if err := e.transport.ResetInputBuffer(); err != nil {
		return Outcome{}, fmt.Errorf("reset input buffer: %w", err)
	}

	wire := cmd.String() + at.CRLF
	if _, err := e.transport.Write([]byte(wire)); err != nil {
		return Outcome{}, fmt.Errorf("write command %q: %w", cmd, err)
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		raw, err := e.transport.ReadLine(e.maxLineLength, e.readTimeout)
		e.trace(cmd, attempt, raw)
		if err != nil {
			return Outcome{}, fmt.Errorf("read response to %q: %w", cmd, err)
		}
		if len(raw) <= 1 {
			continue
		}

		line := strings.TrimRight(string(raw), at.CRLF)
		switch at.Classify(cmd, line) {
		case at.ClassOK:
			return Outcome{Kind: OutcomeOK, Payload: line, Reads: attempt}, nil
		case at.ClassError:
			return Outcome{Kind: OutcomeModuleError, Payload: line, Reads: attempt}, nil
		case at.ClassUnknown:
			e.logger.Warn("Unknown response from module", "command", cmd.String(), "response", line)
			return Outcome{Kind: OutcomeUnknownResponse, Payload: line, Reads: attempt}, nil
		}
	}

	return Outcome{Kind: OutcomeTimeout, Reads: e.maxAttempts}, nil
}

func (e *Engine) trace(cmd at.Command, attempt int, raw []byte) {
	if !e.debug {
		return
	}
	e.logger.Debug("AT exchange", "command", cmd.String(), "attempt", attempt, "response", string(raw))
}
