package kim_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/kimgw/at"
	"i4.energy/across/kimgw/kim"
)

func newEngine(t *testing.T, ctrl *gomock.Controller, transport kim.Transport, opts ...func(*kim.ConfigBuilder)) *kim.Engine {
	t.Helper()
	b := newConfigBuilder(kim.NewMockDialer(ctrl), kim.NewMockPowerControl(ctrl))
	for _, opt := range opts {
		opt(b)
	}
	config, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	return kim.NewEngine(transport, config)
}

func TestEngineExecute(t *testing.T) {
	t.Run("Ping acknowledged on first read", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := kim.NewMockTransport(ctrl)
		gomock.InOrder(NewMockSequence(mockTransport).Ping().Build()...)

		outcome, err := newEngine(t, ctrl, mockTransport).Execute(at.Ping())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Kind != kim.OutcomeOK || outcome.Payload != "+OK" {
			t.Errorf("expected Ok(\"+OK\"), got %v(%q)", outcome.Kind, outcome.Payload)
		}
		if outcome.Reads != 1 {
			t.Errorf("expected exactly one read, got %d", outcome.Reads)
		}
		if outcome.Err() != nil {
			t.Errorf("expected nil error from OK outcome, got %v", outcome.Err())
		}
	})

	t.Run("Empty line is skipped before serial number", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := kim.NewMockTransport(ctrl)
		gomock.InOrder(NewMockSequence(mockTransport).
			Command("AT+SN=?").
			Reply("\n").
			Reply("+SN=KIM12345678900").
			Build()...)

		outcome, err := newEngine(t, ctrl, mockTransport).Execute(at.QuerySN())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !outcome.OK() || outcome.Payload != "+SN=KIM12345678900" {
			t.Errorf("expected Ok with serial number, got %v(%q)", outcome.Kind, outcome.Payload)
		}
		if outcome.Reads != 2 {
			t.Errorf("expected two reads, got %d", outcome.Reads)
		}
	})

	t.Run("Terminator-only line is retried", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := kim.NewMockTransport(ctrl)
		gomock.InOrder(NewMockSequence(mockTransport).
			Command("AT+PWR=?").
			Reply("\r\n").
			Silence(1).
			Reply("+PWR=1000\r\n").
			Build()...)

		outcome, err := newEngine(t, ctrl, mockTransport).Execute(at.QueryPower())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !outcome.OK() || outcome.Payload != "+PWR=1000" || outcome.Reads != 3 {
			t.Errorf("unexpected outcome: %+v", outcome)
		}
	})

	t.Run("Timeout when nothing is received", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := kim.NewMockTransport(ctrl)
		gomock.InOrder(NewMockSequence(mockTransport).
			Command("AT+ID=?").
			Silence(kim.DefaultMaxAttempts).
			Build()...)

		outcome, err := newEngine(t, ctrl, mockTransport).Execute(at.QueryID())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Kind != kim.OutcomeTimeout {
			t.Errorf("expected timeout, got %v", outcome.Kind)
		}
		if !errors.Is(outcome.Err(), kim.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", outcome.Err())
		}
	})

	t.Run("Module error is not retried", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := kim.NewMockTransport(ctrl)
		gomock.InOrder(NewMockSequence(mockTransport).
			Command("AT+PWR=500").
			Reply("+ERROR=5\r\n").
			Build()...)

		cmd, _ := at.SetPower(500)
		outcome, err := newEngine(t, ctrl, mockTransport).Execute(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Kind != kim.OutcomeModuleError {
			t.Errorf("expected module error, got %v", outcome.Kind)
		}
		if !errors.Is(outcome.Err(), kim.ErrModule) {
			t.Errorf("expected ErrModule, got %v", outcome.Err())
		}
		if !strings.Contains(outcome.Err().Error(), at.ErrCodeIncompatibleValue.String()) {
			t.Errorf("expected errno to be described, got %v", outcome.Err())
		}
	})

	t.Run("Unknown response is not retried", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := kim.NewMockTransport(ctrl)
		gomock.InOrder(NewMockSequence(mockTransport).
			Command("AT+TX=BB75").
			Reply("+TX=1,BB75\r\n").
			Build()...)

		cmd, _ := at.Transmit("BB75")
		outcome, err := newEngine(t, ctrl, mockTransport).Execute(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Kind != kim.OutcomeUnknownResponse || outcome.Payload != "+TX=1,BB75" {
			t.Errorf("expected unknown response, got %v(%q)", outcome.Kind, outcome.Payload)
		}
		if !errors.Is(outcome.Err(), kim.ErrUnknownResponse) {
			t.Errorf("expected ErrUnknownResponse, got %v", outcome.Err())
		}
	})

	t.Run("ErrTransportUnavailable without transport", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, err := newEngine(t, ctrl, nil).Execute(at.Ping())
		if !errors.Is(err, kim.ErrTransportUnavailable) {
			t.Errorf("expected ErrTransportUnavailable, got: %v", err)
		}
	})

	t.Run("Write error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		writeErr := errors.New("line down")
		mockTransport := kim.NewMockTransport(ctrl)
		gomock.InOrder(
			mockTransport.EXPECT().ResetOutputBuffer().Return(nil),
			mockTransport.EXPECT().ResetInputBuffer().Return(nil),
			mockTransport.EXPECT().Write(gomock.Any()).Return(0, writeErr),
		)

		_, err := newEngine(t, ctrl, mockTransport).Execute(at.Ping())
		if !errors.Is(err, writeErr) {
			t.Errorf("expected write error to be wrapped, got: %v", err)
		}
	})

	t.Run("Read error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		readErr := errors.New("device removed")
		mockTransport := kim.NewMockTransport(ctrl)
		gomock.InOrder(append(
			NewMockSequence(mockTransport).Command("AT+PING=?").Build(),
			mockTransport.EXPECT().ReadLine(gomock.Any(), gomock.Any()).Return(nil, readErr),
		)...)

		_, err := newEngine(t, ctrl, mockTransport).Execute(at.Ping())
		if !errors.Is(err, readErr) {
			t.Errorf("expected read error to be wrapped, got: %v", err)
		}
	})

	t.Run("Reset error stops before writing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		resetErr := errors.New("ioctl failed")
		mockTransport := kim.NewMockTransport(ctrl)
		mockTransport.EXPECT().ResetOutputBuffer().Return(resetErr)

		_, err := newEngine(t, ctrl, mockTransport).Execute(at.Ping())
		if !errors.Is(err, resetErr) {
			t.Errorf("expected reset error to be wrapped, got: %v", err)
		}
	})
}

func TestEngineBoundedTime(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	transport := kim.NewTestTransport()
	engine := newEngine(t, ctrl, transport)

	start := time.Now()
	outcome, err := engine.Execute(at.QueryFW())
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != kim.OutcomeTimeout {
		t.Errorf("expected timeout, got %v", outcome.Kind)
	}
	if transport.Reads() != kim.DefaultMaxAttempts {
		t.Errorf("expected %d reads, got %d", kim.DefaultMaxAttempts, transport.Reads())
	}
	budget := kim.DefaultMaxAttempts * testReadTimeout
	if elapsed < budget || elapsed > budget+500*time.Millisecond {
		t.Errorf("expected execution bounded by %v, took %v", budget, elapsed)
	}
}

func TestEngineFlushesBeforeEachCommand(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	transport := kim.NewTestTransport("+ID=123456b\r\n", "+FW=KIM1_V2.1\r\n")
	engine := newEngine(t, ctrl, transport)

	for _, cmd := range []at.Command{at.QueryID(), at.QueryFW()} {
		if _, err := engine.Execute(cmd); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if transport.InputResets() != 2 {
		t.Errorf("expected input buffer to be reset per command, got %d resets", transport.InputResets())
	}
	written := transport.Written()
	if len(written) != 2 || written[0] != "AT+ID=?\r\n" || written[1] != "AT+FW=?\r\n" {
		t.Errorf("unexpected writes: %q", written)
	}
}

func TestEngineLongLineIsBounded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// 15-digit serial: the first read stops at the line length limit.
	transport := kim.NewTestTransport("+SN=KIM123456789000\r\n")
	outcome, err := newEngine(t, ctrl, transport).Execute(at.QuerySN())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.OK() || outcome.Payload != "+SN=KIM123456789000" {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if transport.Reads() != 1 {
		t.Errorf("expected one read, got %d", transport.Reads())
	}
}

func TestEngineDebugTrace(t *testing.T) {
	for _, debug := range []bool{false, true} {
		ctrl := gomock.NewController(t)

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		transport := kim.NewTestTransport("", "+OK\r\n")
		engine := newEngine(t, ctrl, transport, func(b *kim.ConfigBuilder) {
			b.WithDebug(debug).WithLogger(logger)
		})

		outcome, err := engine.Execute(at.Ping())
		if err != nil || !outcome.OK() || outcome.Reads != 2 {
			t.Errorf("debug=%v: unexpected result %+v, %v", debug, outcome, err)
		}

		traced := strings.Count(buf.String(), "AT exchange")
		if debug && traced != 2 {
			t.Errorf("expected 2 trace records, got %d:\n%s", traced, buf.String())
		}
		if !debug && traced != 0 {
			t.Errorf("expected no trace records, got %d", traced)
		}
		ctrl.Finish()
	}
}
