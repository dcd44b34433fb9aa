package at

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidArgument is returned by the command constructors when an
// argument is outside the range accepted by the module.
var ErrInvalidArgument = errors.New("invalid command argument")

// Command is a single AT command ready to be written to the module. The zero
// value is not usable; build commands with the constructors in this file.
type Command struct {
	name Name
	args []string
}

// NewCommand returns a command with the given ordered arguments. The
// arguments are copied so the Command cannot be changed afterwards.
func NewCommand(name Name, args ...string) Command {
	return Command{name: name, args: append([]string(nil), args...)}
}

// Name returns the command identifier.
func (c Command) Name() Name {
	return c.name
}

// Args returns a copy of the command arguments.
func (c Command) Args() []string {
	return append([]string(nil), c.args...)
}

// IsTransmit reports whether the command is a satellite data transmission.
func (c Command) IsTransmit() bool {
	return c.name == NameTransmit
}

// String returns the wire form of the command without the line terminator,
// e.g. "AT+PWR=500" or "AT+SAVE_CFG".
func (c Command) String() string {
	if len(c.args) == 0 {
		return Prefix + string(c.name)
	}
	return Prefix + string(c.name) + Assign + strings.Join(c.args, Sep)
}

func query(name Name) Command {
	return NewCommand(name, Request)
}

// Ping returns the communication test command.
func Ping() Command { return query(NamePing) }

// QueryID returns the command requesting the module identifier.
func QueryID() Command { return query(NameID) }

// QuerySN returns the command requesting the module serial number.
func QuerySN() Command { return query(NameSN) }

// QueryFW returns the command requesting the firmware version.
func QueryFW() Command { return query(NameFW) }

// QueryFrequency returns the command requesting the transmit frequency offset.
func QueryFrequency() Command { return query(NameFrequency) }

// QueryPower returns the command requesting the transmit power.
func QueryPower() Command { return query(NamePower) }

// QueryFormat returns the command requesting the message format.
func QueryFormat() Command { return query(NameFormat) }

// SaveConfig returns the command persisting the current configuration.
func SaveConfig() Command { return NewCommand(NameSaveConfig) }

// Power levels accepted by AT+PWR, in milliwatts.
var PowerLevels = []int{100, 250, 500, 750, 1000}

// SetPower returns the command selecting the transmit power.
func SetPower(pwr int) (Command, error) {
	for _, p := range PowerLevels {
		if p == pwr {
			return NewCommand(NamePower, strconv.Itoa(pwr)), nil
		}
	}
	return Command{}, fmt.Errorf("%w: power %d not in %v", ErrInvalidArgument, pwr, PowerLevels)
}

// Format selects the message framing applied by the module.
type Format int

const (
	FormatRaw      Format = 0
	FormatStandard Format = 1
)

// SetFormat returns the command selecting the message format, leaving the
// CRC and BCH lengths as configured on the module.
func SetFormat(f Format) (Command, error) {
	if f != FormatRaw && f != FormatStandard {
		return Command{}, fmt.Errorf("%w: format %d", ErrInvalidArgument, f)
	}
	return NewCommand(NameFormat, strconv.Itoa(int(f))), nil
}

// SetFormatCodes returns the command selecting the message format together
// with the CRC length (0 or 16) and the BCH length (0 or 32).
func SetFormatCodes(f Format, crc, bch int) (Command, error) {
	cmd, err := SetFormat(f)
	if err != nil {
		return Command{}, err
	}
	if crc != 0 && crc != 16 {
		return Command{}, fmt.Errorf("%w: crc length %d", ErrInvalidArgument, crc)
	}
	if bch != 0 && bch != 32 {
		return Command{}, fmt.Errorf("%w: bch length %d", ErrInvalidArgument, bch)
	}
	return NewCommand(NameFormat, cmd.args[0], strconv.Itoa(crc), strconv.Itoa(bch)), nil
}

// Transmit returns the command sending data to the satellites. The payload
// is the hexadecimal representation of the message.
func Transmit(data string) (Command, error) {
	if data == "" {
		return Command{}, fmt.Errorf("%w: empty payload", ErrInvalidArgument)
	}
	for i := 0; i < len(data); i++ {
		if !isHex(data[i]) {
			return Command{}, fmt.Errorf("%w: payload byte %d (%q) is not hexadecimal", ErrInvalidArgument, i, data[i])
		}
	}
	return NewCommand(NameTransmit, data), nil
}

func isHex(b byte) bool {
	return ('0' <= b && b <= '9') || ('a' <= b && b <= 'f') || ('A' <= b && b <= 'F')
}

// MaxCWDuration is the longest carrier wave, in 100 ms steps (300 s).
const MaxCWDuration = 3000

// CW describes a carrier-wave test transmission. Frequency and Power are
// optional; zero leaves them out. Power can only be given with a Frequency.
type CW struct {
	// Duration in steps of 100 milliseconds
	Duration int
	// Frequency of the signal in Hz
	Frequency int
	// Power of the signal
	Power int
}

// CarrierWave returns the carrier-wave test command.
func CarrierWave(cw CW) (Command, error) {
	if cw.Duration <= 0 || cw.Duration > MaxCWDuration {
		return Command{}, fmt.Errorf("%w: duration %d not in 1..%d", ErrInvalidArgument, cw.Duration, MaxCWDuration)
	}
	if cw.Frequency < 0 || cw.Power < 0 {
		return Command{}, fmt.Errorf("%w: negative frequency or power", ErrInvalidArgument)
	}
	args := []string{strconv.Itoa(cw.Duration)}
	switch {
	case cw.Frequency == 0 && cw.Power != 0:
		return Command{}, fmt.Errorf("%w: power requires a frequency", ErrInvalidArgument)
	case cw.Frequency != 0 && cw.Power != 0:
		args = append(args, strconv.Itoa(cw.Frequency), strconv.Itoa(cw.Power))
	case cw.Frequency != 0:
		args = append(args, strconv.Itoa(cw.Frequency))
	}
	return NewCommand(NameCW, args...), nil
}
