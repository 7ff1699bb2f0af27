// internal/driver/meskernel/commands_test.go
package meskernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBytes(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		expected []byte
	}{
		{"laser on", CmdLaserOn, []byte{0xAA, 0x00, 0x01, 0xBE, 0x00, 0x01, 0x00, 0x01, 0xC1}},
		{"laser off", CmdLaserOff, []byte{0xAA, 0x00, 0x01, 0xBE, 0x00, 0x01, 0x00, 0x00, 0xC0}},
		{"single auto", CmdSingleAutoMeasure, []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x00, 0x21}},
		{"single low", CmdSingleLowSpeedMeasure, []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x01, 0x22}},
		{"single high", CmdSingleHighSpeedMeasure, []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x02, 0x23}},
		{"continuous auto", CmdContinuousAutoMeasure, []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x04, 0x25}},
		{"continuous low", CmdContinuousLowSpeedMeasure, []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x05, 0x26}},
		{"continuous high", CmdContinuousHighSpeedMeasure, []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x06, 0x27}},
		{"exit continuous is a bare X", CmdExitContinuousMode, []byte{'X'}},
		{"read status", CmdReadStatus, []byte{0xAA, 0x80, 0x00, 0x00, 0x80}},
		{"read hardware version", CmdReadHardwareVersion, []byte{0xAA, 0x80, 0x00, 0x0A, 0x8A}},
		{"read software version", CmdReadSoftwareVersion, []byte{0xAA, 0x80, 0x00, 0x0C, 0x8C}},
		{"read serial number", CmdReadSerialNumber, []byte{0xAA, 0x80, 0x00, 0x0E, 0x8E}},
		{"read input voltage", CmdReadInputVoltage, []byte{0xAA, 0x80, 0x00, 0x06, 0x86}},
		{"read last measurement", CmdReadLastMeasurement, []byte{0xAA, 0x80, 0x00, 0x22, 0xA2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cmd.Bytes())
		})
	}
}

func TestCommandResponseLen(t *testing.T) {
	tests := []struct {
		cmd      Command
		expected int
	}{
		{CmdLaserOn, 9},
		{CmdLaserOff, 9},
		{CmdSingleAutoMeasure, 13},
		{CmdContinuousHighSpeedMeasure, 13},
		{CmdExitContinuousMode, 0},
		{CmdReadStatus, 9},
		{CmdReadHardwareVersion, 9},
		{CmdReadSoftwareVersion, 9},
		{CmdReadSerialNumber, 11},
		{CmdReadInputVoltage, 9},
		{CmdReadLastMeasurement, 13},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cmd.ResponseLen())
		})
	}
}

func TestCommandIsContinuous(t *testing.T) {
	assert.True(t, CmdContinuousAutoMeasure.IsContinuous())
	assert.True(t, CmdContinuousLowSpeedMeasure.IsContinuous())
	assert.True(t, CmdContinuousHighSpeedMeasure.IsContinuous())

	assert.False(t, CmdSingleAutoMeasure.IsContinuous())
	assert.False(t, CmdExitContinuousMode.IsContinuous())
	assert.False(t, CmdReadStatus.IsContinuous())
}

func TestAllCommandsComplete(t *testing.T) {
	cmds := AllCommands()
	require.Len(t, cmds, 15)

	for _, cmd := range cmds {
		assert.NotEmpty(t, cmd.Bytes(), "command %s has no encoding", cmd)
		assert.NotEqual(t, "UNKNOWN_COMMAND", cmd.String())
		// Every framed command starts with the protocol header.
		if cmd != CmdExitContinuousMode {
			assert.Equal(t, byte(HeaderByte), cmd.Bytes()[0])
		}
	}
}
