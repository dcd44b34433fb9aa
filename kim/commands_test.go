package kim_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"
	"i4.energy/across/kimgw/at"
	"i4.energy/across/kimgw/kim"
)

// newAwakeModule returns a Module without a power pin, so it is awake as
// soon as it is initialized, talking to transport.
func newAwakeModule(t *testing.T, transport *kim.TestTransport) *kim.Module {
	t.Helper()
	mocks := newModuleMocks(t, false)
	mocks.dialer.EXPECT().Dial(gomock.Any()).Return(transport, nil)

	m := mocks.newModule(t)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("unexpected error from Initialize(): %v", err)
	}
	return m
}

func TestModuleQueries(t *testing.T) {
	tests := []struct {
		name  string
		query func(*kim.Module) (string, error)
		wire  string
		reply string
		want  string
	}{
		{"ID", (*kim.Module).ID, "AT+ID=?\r\n", "+ID=123456b\r\n", "+ID=123456b"},
		{"SerialNumber", (*kim.Module).SerialNumber, "AT+SN=?\r\n", "+SN=KIM12345678900\r\n", "+SN=KIM12345678900"},
		{"Firmware", (*kim.Module).Firmware, "AT+FW=?\r\n", "+FW=KIM1_V2.1\r\n", "+FW=KIM1_V2.1"},
		{"FrequencyOffset", (*kim.Module).FrequencyOffset, "AT+ATXFRQ=?\r\n", "+ATXFRQ=401650000\r\n", "+ATXFRQ=401650000"},
		{"Power", (*kim.Module).Power, "AT+PWR=?\r\n", "+PWR=1000\r\n", "+PWR=1000"},
		{"Format", (*kim.Module).Format, "AT+AFMT=?\r\n", "+AFMT=0,0,0\r\n", "+AFMT=0,0,0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := kim.NewTestTransport(tt.reply)
			m := newAwakeModule(t, transport)

			got, err := tt.query(m)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if written := transport.Written(); len(written) != 1 || written[0] != tt.wire {
				t.Errorf("unexpected writes: %q", written)
			}
		})
	}
}

func TestModuleSetters(t *testing.T) {
	t.Run("SetPower", func(t *testing.T) {
		transport := kim.NewTestTransport("+OK\r\n")
		m := newAwakeModule(t, transport)

		if err := m.SetPower(500); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if written := transport.Written(); written[0] != "AT+PWR=500\r\n" {
			t.Errorf("unexpected write: %q", written[0])
		}
	})

	t.Run("SetPower rejects unsupported level without I/O", func(t *testing.T) {
		transport := kim.NewTestTransport()
		m := newAwakeModule(t, transport)

		if err := m.SetPower(300); !errors.Is(err, at.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got: %v", err)
		}
		if len(transport.Written()) != 0 {
			t.Error("expected no command to be sent")
		}
	})

	t.Run("SetPower rejected by module", func(t *testing.T) {
		transport := kim.NewTestTransport("+ERROR=5\r\n")
		m := newAwakeModule(t, transport)

		if err := m.SetPower(750); !errors.Is(err, kim.ErrModule) {
			t.Errorf("expected ErrModule, got: %v", err)
		}
	})

	t.Run("SetFormat", func(t *testing.T) {
		transport := kim.NewTestTransport("+OK\r\n")
		m := newAwakeModule(t, transport)

		if err := m.SetFormat(at.FormatRaw); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if written := transport.Written(); written[0] != "AT+AFMT=0\r\n" {
			t.Errorf("unexpected write: %q", written[0])
		}
	})

	t.Run("SetFormatCodes", func(t *testing.T) {
		transport := kim.NewTestTransport("+OK\r\n")
		m := newAwakeModule(t, transport)

		if err := m.SetFormatCodes(at.FormatStandard, 16, 32); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if written := transport.Written(); written[0] != "AT+AFMT=1,16,32\r\n" {
			t.Errorf("unexpected write: %q", written[0])
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		transport := kim.NewTestTransport("+OK\r\n")
		m := newAwakeModule(t, transport)

		if err := m.SaveConfig(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if written := transport.Written(); written[0] != "AT+SAVE_CFG\r\n" {
			t.Errorf("unexpected write: %q", written[0])
		}
	})
}

func TestModuleTransmit(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		transport := kim.NewTestTransport("+TX=0,BB75\r\n")
		m := newAwakeModule(t, transport)

		if err := m.Transmit("BB75"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if written := transport.Written(); written[0] != "AT+TX=BB75\r\n" {
			t.Errorf("unexpected write: %q", written[0])
		}
	})

	t.Run("Non-zero status is unknown", func(t *testing.T) {
		transport := kim.NewTestTransport("+TX=1,BB75\r\n")
		m := newAwakeModule(t, transport)

		if err := m.Transmit("BB75"); !errors.Is(err, kim.ErrUnknownResponse) {
			t.Errorf("expected ErrUnknownResponse, got: %v", err)
		}
	})

	t.Run("Invalid payload", func(t *testing.T) {
		transport := kim.NewTestTransport()
		m := newAwakeModule(t, transport)

		for _, data := range []string{"", "XYZ"} {
			if err := m.Transmit(data); !errors.Is(err, at.ErrInvalidArgument) {
				t.Errorf("Transmit(%q): expected ErrInvalidArgument, got: %v", data, err)
			}
		}
		if len(transport.Written()) != 0 {
			t.Error("expected no command to be sent")
		}
	})

	t.Run("Silent module times out", func(t *testing.T) {
		transport := kim.NewTestTransport()
		m := newAwakeModule(t, transport)

		if err := m.Transmit("00"); !errors.Is(err, kim.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got: %v", err)
		}
	})
}

func TestModuleCarrierWave(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		transport := kim.NewTestTransport("+OK\r\n")
		m := newAwakeModule(t, transport)

		err := m.CarrierWave(at.CW{Duration: 1000, Frequency: 401650000, Power: 500})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(transport.Written()) != 1 {
			t.Errorf("expected one command, got %q", transport.Written())
		}
	})

	t.Run("Too long", func(t *testing.T) {
		transport := kim.NewTestTransport()
		m := newAwakeModule(t, transport)

		err := m.CarrierWave(at.CW{Duration: at.MaxCWDuration + 1})
		if !errors.Is(err, at.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got: %v", err)
		}
	})
}
