// internal/driver/meskernel/response_test.go
package meskernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cmdPtr(c Command) *Command { return &c }

func TestDecodeMeasurement(t *testing.T) {
	tests := []struct {
		name             string
		payload          []byte // bytes [6:12]
		expectedDistance uint32
		expectedQuality  int
	}{
		{
			name:             "one meter, quality already a percentage",
			payload:          []byte{0x00, 0x00, 0x03, 0xE8, 0x00, 0x32},
			expectedDistance: 1000,
			expectedQuality:  50,
		},
		{
			name:             "full scale raw quality normalizes to 100",
			payload:          []byte{0x00, 0x01, 0x86, 0xA0, 0xFF, 0xFF},
			expectedDistance: 100000,
			expectedQuality:  100,
		},
		{
			name:             "low raw quality on the 16-bit scale rounds down",
			payload:          []byte{0x00, 0x00, 0x00, 0x64, 0x01, 0x00},
			expectedDistance: 100,
			expectedQuality:  0, // 256/65535 of full scale
		},
		{
			name:             "boundary quality 100 passes through unscaled",
			payload:          []byte{0x00, 0x00, 0x27, 0x10, 0x00, 0x64},
			expectedDistance: 10000,
			expectedQuality:  100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := append([]byte{0xAA, 0x00, 0x00, 0x22, 0x00, 0x03}, tt.payload...)
			frame = append(frame, 0x00) // checksum byte, not verified

			resp := Decode(frame, nil)
			require.Equal(t, ResponseMeasurement, resp.Type, "reason: %s", resp.Reason)
			assert.Equal(t, tt.expectedDistance, resp.DistanceMM)
			assert.Equal(t, tt.expectedQuality, resp.SignalQuality)
			assert.NotEmpty(t, resp.RawHex)
		})
	}
}

func TestDecodeVoltage(t *testing.T) {
	voltageFrame := func(b1, b2 byte) []byte {
		return []byte{0xAA, 0x80, 0x00, 0x06, 0x00, 0x01, b1, b2, 0x00}
	}

	t.Run("packed BCD", func(t *testing.T) {
		resp := Decode(voltageFrame(0x12, 0x34), nil)
		require.Equal(t, ResponseVoltage, resp.Type)
		assert.Equal(t, 1234, resp.VoltageMV)
		assert.InDelta(t, 1.234, resp.Voltage, 1e-9)
	})

	t.Run("invalid BCD falls back to big-endian millivolts", func(t *testing.T) {
		resp := Decode(voltageFrame(0xFA, 0x00), nil)
		require.Equal(t, ResponseVoltage, resp.Type)
		assert.Equal(t, 64000, resp.VoltageMV)
		assert.InDelta(t, 64.0, resp.Voltage, 1e-9)
	})

	t.Run("zero volts", func(t *testing.T) {
		resp := Decode(voltageFrame(0x00, 0x00), nil)
		require.Equal(t, ResponseVoltage, resp.Type)
		assert.Equal(t, 0, resp.VoltageMV)
	})
}

func TestDecodeStatus(t *testing.T) {
	statusFrameWithCode := func(code byte) []byte {
		return []byte{0xAA, code, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	}

	tests := []struct {
		code     byte
		expected string
	}{
		{0x00, "OK - Normal operation"},
		{0x01, "Error - Measurement failed"},
		{0x02, "Error - Laser malfunction"},
		{0x03, "Error - Temperature too high"},
		{0x04, "Error - Voltage too low"},
		{0x05, "Warning - Signal quality low"},
		{0xFF, "Error - Unknown error"},
		{0x42, "Unknown status: 0x42"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			resp := Decode(statusFrameWithCode(tt.code), cmdPtr(CmdReadStatus))
			require.Equal(t, ResponseStatus, resp.Type)
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, tt.expected, resp.StatusText)
		})
	}
}

func TestDecodeVersion(t *testing.T) {
	frame := []byte{0xAA, 0x02, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

	hw := Decode(frame, cmdPtr(CmdReadHardwareVersion))
	require.Equal(t, ResponseHardwareVersion, hw.Type)
	assert.Equal(t, 2, hw.VersionMajor)
	assert.Equal(t, 5, hw.VersionMinor)

	sw := Decode(frame, cmdPtr(CmdReadSoftwareVersion))
	require.Equal(t, ResponseSoftwareVersion, sw.Type)
	assert.Equal(t, 2, sw.VersionMajor)
	assert.Equal(t, 5, sw.VersionMinor)
}

func TestDecodeSerialNumber(t *testing.T) {
	t.Run("printable ASCII payload", func(t *testing.T) {
		frame := []byte{0xAA, 0x80, 0x00, 0x0E, 0x00, 0x02, 'A', 'B', '1', '2', 0x90}
		resp := Decode(frame, nil)
		require.Equal(t, ResponseSerialNumber, resp.Type)
		assert.Equal(t, "AB12", resp.SerialNumber)
	})

	t.Run("binary payload renders as hex", func(t *testing.T) {
		frame := []byte{0xAA, 0x80, 0x00, 0x0E, 0x00, 0x02, 0x01, 0x02, 0x03, 0x04, 0x90}
		resp := Decode(frame, nil)
		require.Equal(t, ResponseSerialNumber, resp.Type)
		assert.Equal(t, "01020304", resp.SerialNumber)
	})

	t.Run("13-byte firmware variant is accepted under command context", func(t *testing.T) {
		frame := []byte{0xAA, 0x80, 0x00, 0x0E, 0x00, 0x04, 'L', 'D', 'J', '1', '0', '0', 0x90}
		resp := Decode(frame, cmdPtr(CmdReadSerialNumber))
		require.Equal(t, ResponseSerialNumber, resp.Type)
		assert.Equal(t, "LDJ100", resp.SerialNumber)
	})

	t.Run("whitespace padding is trimmed", func(t *testing.T) {
		frame := []byte{0xAA, 0x80, 0x00, 0x0E, 0x00, 0x02, ' ', 'X', '7', ' ', 0x90}
		resp := Decode(frame, nil)
		require.Equal(t, ResponseSerialNumber, resp.Type)
		assert.Equal(t, "X7", resp.SerialNumber)
	})
}

func TestDecodeLaserControl(t *testing.T) {
	laserFrame := func(status byte) []byte {
		return []byte{0xAA, status, 0x01, 0xBE, 0x00, 0x01, 0x00, 0x00, 0x00}
	}

	on := Decode(laserFrame(0x01), cmdPtr(CmdLaserOn))
	require.Equal(t, ResponseLaserControl, on.Type)
	assert.True(t, on.LaserOn)

	off := Decode(laserFrame(0x00), cmdPtr(CmdLaserOff))
	require.Equal(t, ResponseLaserControl, off.Type)
	assert.False(t, off.LaserOn)
}

func TestDecodeContextWinsOverPrefix(t *testing.T) {
	// A frame whose prefix says "status" decoded under a voltage command
	// context must be treated as a voltage response.
	frame := []byte{0xAA, 0x80, 0x00, 0x00, 0x00, 0x01, 0x12, 0x34, 0x00}
	resp := Decode(frame, cmdPtr(CmdReadInputVoltage))
	require.Equal(t, ResponseVoltage, resp.Type)
	assert.Equal(t, 1234, resp.VoltageMV)
}

func TestDecodeUnsolicitedThirteenByteDefaultsToMeasurement(t *testing.T) {
	frame := []byte{0xAA, 0x77, 0x77, 0x77, 0x00, 0x03, 0x00, 0x00, 0x01, 0x00, 0x00, 0x10, 0x00}
	resp := Decode(frame, nil)
	require.Equal(t, ResponseMeasurement, resp.Type)
	assert.Equal(t, uint32(256), resp.DistanceMM)
}

func TestDecodeUnknown(t *testing.T) {
	frame := []byte{0xAA, 0x11, 0x22, 0x33, 0x00, 0x00, 0x00, 0x00, 0x00}
	resp := Decode(frame, nil)
	assert.Equal(t, ResponseUnknown, resp.Type)
	assert.Equal(t, "AA 11 22 33 00 00 00 00 00", resp.RawHex)
}

func TestDecodeLengthMismatchYieldsError(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		context *Command
	}{
		{"short status", []byte{0xAA, 0x00, 0x00}, cmdPtr(CmdReadStatus)},
		{"short measurement", []byte{0xAA, 0x00, 0x00, 0x22, 0x00}, cmdPtr(CmdSingleAutoMeasure)},
		{"short voltage", []byte{0xAA, 0x80, 0x00, 0x06}, cmdPtr(CmdReadInputVoltage)},
		{"empty frame", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Decode(tt.frame, tt.context)
			assert.Equal(t, ResponseError, resp.Type)
			assert.NotEmpty(t, resp.Reason)
		})
	}
}
