package kim

import (
	"fmt"

	"i4.energy/across/kimgw/at"
)

// query executes cmd and returns the raw reply line. On failure the line is
// still returned when one was received.
func (m *Module) query(cmd at.Command) (string, error) {
	outcome, err := m.Execute(cmd)
	if err != nil {
		return "", fmt.Errorf("%s: %w", cmd, err)
	}
	if err := outcome.Err(); err != nil {
		return outcome.Payload, fmt.Errorf("%s: %w", cmd, err)
	}
	return outcome.Payload, nil
}

func (m *Module) expectOK(cmd at.Command) error {
	_, err := m.query(cmd)
	return err
}

// Ping runs the communication test.
func (m *Module) Ping() error {
	return m.expectOK(at.Ping())
}

// ID returns the identifier reply, e.g. "+ID=123456b".
func (m *Module) ID() (string, error) {
	return m.query(at.QueryID())
}

// SerialNumber returns the serial number reply, e.g. "+SN=KIM12345678900".
func (m *Module) SerialNumber() (string, error) {
	return m.query(at.QuerySN())
}

// Firmware returns the firmware version reply, e.g. "+FW=KIM1_V2.1".
func (m *Module) Firmware() (string, error) {
	return m.query(at.QueryFW())
}

// FrequencyOffset returns the frequency reply, e.g. "+ATXFRQ=401650000".
func (m *Module) FrequencyOffset() (string, error) {
	return m.query(at.QueryFrequency())
}

// Power returns the transmit power reply, e.g. "+PWR=1000".
func (m *Module) Power() (string, error) {
	return m.query(at.QueryPower())
}

// Format returns the message format reply, e.g. "+AFMT=0,0,0".
func (m *Module) Format() (string, error) {
	return m.query(at.QueryFormat())
}

// SetPower selects the transmit power: 100, 250, 500, 750 or 1000.
func (m *Module) SetPower(pwr int) error {
	cmd, err := at.SetPower(pwr)
	if err != nil {
		return err
	}
	return m.expectOK(cmd)
}

// SetFormat selects the message format.
func (m *Module) SetFormat(f at.Format) error {
	cmd, err := at.SetFormat(f)
	if err != nil {
		return err
	}
	return m.expectOK(cmd)
}

// SetFormatCodes selects the message format with its CRC and BCH lengths.
func (m *Module) SetFormatCodes(f at.Format, crc, bch int) error {
	cmd, err := at.SetFormatCodes(f, crc, bch)
	if err != nil {
		return err
	}
	return m.expectOK(cmd)
}

// SaveConfig persists the current configuration on the module.
func (m *Module) SaveConfig() error {
	return m.expectOK(at.SaveConfig())
}

// Transmit sends a hexadecimal payload to the satellites. It succeeds only
// when the module reports transmit status 0.
func (m *Module) Transmit(data string) error {
	cmd, err := at.Transmit(data)
	if err != nil {
		return err
	}
	return m.expectOK(cmd)
}

// CarrierWave starts an unmodulated test transmission.
func (m *Module) CarrierWave(cw at.CW) error {
	cmd, err := at.CarrierWave(cw)
	if err != nil {
		return err
	}
	return m.expectOK(cmd)
}
