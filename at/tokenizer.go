package at

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// Splitter is used for tokenizing KIM module responses. It uses the
// signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// Lines are terminated by LF; a CR preceding the LF is dropped from the
// token. The atEOF parameter indicates whether any more data will be
// available. When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimSuffix(data[0:i], []byte{'\r'}), nil
	}

	if atEOF {
		return len(data), bytes.TrimSuffix(data, []byte{'\r'}), nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

type replyTag struct {
	prefix string
	class  Class
}

// replyTags lists every reply shape the module is known to send. The first
// matching prefix wins.
var replyTags = []replyTag{
	{TagError, ClassError},
	{TagOK, ClassOK},
	{TagID, ClassOK},
	{TagSN, ClassOK},
	{TagFW, ClassOK},
	{TagFrequency, ClassOK},
	{TagPower, ClassOK},
	{TagFormat, ClassOK},
	{TagTransmit, ClassOK},
}

// Classify identifies the meaning of one response line for the command that
// produced it. The line must not carry its terminator.
//
// A transmit command only succeeds on a +TX reply with status 0; any other
// status and any other acknowledgement is reported as ClassUnknown.
func Classify(cmd Command, line string) Class {
	if len(line) < 2 {
		return ClassNeedsMoreData
	}

	if cmd.IsTransmit() && strings.HasPrefix(line, TagTransmit) {
		if status, ok := TransmitStatus(line); ok && status == 0 {
			return ClassOK
		}
		return ClassUnknown
	}

	for _, tag := range replyTags {
		if !strings.HasPrefix(line, tag.prefix) {
			continue
		}
		if tag.class == ClassOK && cmd.IsTransmit() {
			return ClassUnknown
		}
		return tag.class
	}
	return ClassUnknown
}

// TransmitStatus extracts the status of a "+TX=<status>,<data>" reply.
func TransmitStatus(line string) (int, bool) {
	rest, ok := strings.CutPrefix(line, TagTransmit)
	if !ok {
		return 0, false
	}
	status, _, _ := strings.Cut(rest, Sep)
	n, err := strconv.Atoi(strings.TrimSpace(status))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Value returns the text following the reply tag, e.g. "1000" for
// "+PWR=1000". Replies without a value, such as "+OK", yield "".
func Value(line string) string {
	if _, v, ok := strings.Cut(line, Assign); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// ErrorCode is the errno carried by a "+ERROR=<n>" reply.
type ErrorCode int

const (
	ErrCodeNone ErrorCode = iota
	ErrCodeUnknown
	ErrCodeParameterFormat
	ErrCodeMissingParameters
	ErrCodeTooManyParameters
	ErrCodeIncompatibleValue
	ErrCodeUnknownCommand
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeNone:
		return "no error code"
	case ErrCodeUnknown:
		return "unknown error"
	case ErrCodeParameterFormat:
		return "format of parameter is incorrect"
	case ErrCodeMissingParameters:
		return "parameters are missing"
	case ErrCodeTooManyParameters:
		return "too many parameters"
	case ErrCodeIncompatibleValue:
		return "value of the parameter is incompatible"
	case ErrCodeUnknownCommand:
		return "AT command is unknown"
	}
	return "error " + strconv.Itoa(int(c)) + " (contact Kineis support)"
}

// ParseErrorCode extracts the errno of an error reply. ErrCodeNone is
// returned when the line is not an error reply or carries no number.
func ParseErrorCode(line string) ErrorCode {
	if !strings.HasPrefix(line, TagError) {
		return ErrCodeNone
	}
	n, err := strconv.Atoi(Value(line))
	if err != nil {
		return ErrCodeNone
	}
	return ErrorCode(n)
}
