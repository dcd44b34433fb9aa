package kim_test

import (
	"time"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/kimgw/kim"
)

const testReadTimeout = 5 * time.Millisecond

type MockSequenceBuilder struct {
	transport *kim.MockTransport
	calls     []any
}

func NewMockSequence(transport *kim.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Flush expects the output buffer to be cleared, then the input buffer.
func (b *MockSequenceBuilder) Flush() *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().ResetOutputBuffer().Return(nil),
		b.transport.EXPECT().ResetInputBuffer().Return(nil),
	)
	return b
}

// Command expects a flushed write of wire followed by CRLF.
func (b *MockSequenceBuilder) Command(wire string) *MockSequenceBuilder {
	b.Flush()
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(wire+"\r\n")).Return(len(wire)+2, nil),
	)
	return b
}

// Reply expects one line read returning line.
func (b *MockSequenceBuilder) Reply(line string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().ReadLine(kim.DefaultMaxLineLength, gomock.Any()).Return([]byte(line), nil),
	)
	return b
}

// Silence expects n line reads returning nothing.
func (b *MockSequenceBuilder) Silence(n int) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().ReadLine(kim.DefaultMaxLineLength, gomock.Any()).Return(nil, nil).Times(n),
	)
	return b
}

func (b *MockSequenceBuilder) Ping() *MockSequenceBuilder {
	return b.Command("AT+PING=?").Reply("+OK\r\n")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// newConfigBuilder returns a builder wired to the given mocks with fast
// timeouts and no settle delay.
func newConfigBuilder(dialer kim.Dialer, power kim.PowerControl) *kim.ConfigBuilder {
	return kim.NewConfigBuilder().
		WithDialer(dialer).
		WithPowerControl(power).
		WithReadTimeout(testReadTimeout).
		WithSettleDelay(0)
}
