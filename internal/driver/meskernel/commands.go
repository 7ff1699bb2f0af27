// internal/driver/meskernel/commands.go
package meskernel

// HeaderByte starts every framed command and response of the LDJ protocol.
const HeaderByte = 0xAA

// Expected response lengths in bytes. Zero means fire-and-forget.
const (
	LenStatusResponse       = 9
	LenVersionResponse      = 9
	LenSerialResponse       = 11
	LenVoltageResponse      = 9
	LenMeasurementResponse  = 13
	LenLaserControlResponse = 9
)

// Command identifies one of the fixed commands the LDJ-series sensor accepts.
// The set is closed: unknown commands cannot be constructed from outside the
// package, so encoding is total and has no error path.
type Command int

const (
	CmdLaserOn Command = iota
	CmdLaserOff
	CmdSingleAutoMeasure
	CmdSingleLowSpeedMeasure
	CmdSingleHighSpeedMeasure
	CmdContinuousAutoMeasure
	CmdContinuousLowSpeedMeasure
	CmdContinuousHighSpeedMeasure
	CmdExitContinuousMode
	CmdReadStatus
	CmdReadHardwareVersion
	CmdReadSoftwareVersion
	CmdReadSerialNumber
	CmdReadInputVoltage
	CmdReadLastMeasurement
)

// LDJ_COMMANDS contains the raw command byte sequences from the Meskernel
// LDJ user manual. The trailing byte of each framed command is the device's
// checksum; it is part of the fixed sequence and never recomputed.
var LDJ_COMMANDS = struct {
	LASER_ON  []byte
	LASER_OFF []byte

	SINGLE_AUTO_MEASURE       []byte
	SINGLE_LOW_SPEED_MEASURE  []byte
	SINGLE_HIGH_SPEED_MEASURE []byte

	CONTINUOUS_AUTO_MEASURE       []byte
	CONTINUOUS_LOW_SPEED_MEASURE  []byte
	CONTINUOUS_HIGH_SPEED_MEASURE []byte
	EXIT_CONTINUOUS_MODE          []byte

	READ_STATUS           []byte
	READ_HARDWARE_VERSION []byte
	READ_SOFTWARE_VERSION []byte
	READ_SERIAL_NUMBER    []byte
	READ_INPUT_VOLTAGE    []byte
	READ_LAST_MEASUREMENT []byte
}{
	LASER_ON:  []byte{0xAA, 0x00, 0x01, 0xBE, 0x00, 0x01, 0x00, 0x01, 0xC1},
	LASER_OFF: []byte{0xAA, 0x00, 0x01, 0xBE, 0x00, 0x01, 0x00, 0x00, 0xC0},

	SINGLE_AUTO_MEASURE:       []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x00, 0x21},
	SINGLE_LOW_SPEED_MEASURE:  []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x01, 0x22},
	SINGLE_HIGH_SPEED_MEASURE: []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x02, 0x23},

	CONTINUOUS_AUTO_MEASURE:       []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x04, 0x25},
	CONTINUOUS_LOW_SPEED_MEASURE:  []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x05, 0x26},
	CONTINUOUS_HIGH_SPEED_MEASURE: []byte{0xAA, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x06, 0x27},
	EXIT_CONTINUOUS_MODE:          []byte{'X'}, // single ASCII byte, no framing

	READ_STATUS:           []byte{0xAA, 0x80, 0x00, 0x00, 0x80},
	READ_HARDWARE_VERSION: []byte{0xAA, 0x80, 0x00, 0x0A, 0x8A},
	READ_SOFTWARE_VERSION: []byte{0xAA, 0x80, 0x00, 0x0C, 0x8C},
	READ_SERIAL_NUMBER:    []byte{0xAA, 0x80, 0x00, 0x0E, 0x8E},
	READ_INPUT_VOLTAGE:    []byte{0xAA, 0x80, 0x00, 0x06, 0x86},
	READ_LAST_MEASUREMENT: []byte{0xAA, 0x80, 0x00, 0x22, 0xA2},
}

var commandBytes = map[Command][]byte{
	CmdLaserOn:                    LDJ_COMMANDS.LASER_ON,
	CmdLaserOff:                   LDJ_COMMANDS.LASER_OFF,
	CmdSingleAutoMeasure:          LDJ_COMMANDS.SINGLE_AUTO_MEASURE,
	CmdSingleLowSpeedMeasure:      LDJ_COMMANDS.SINGLE_LOW_SPEED_MEASURE,
	CmdSingleHighSpeedMeasure:     LDJ_COMMANDS.SINGLE_HIGH_SPEED_MEASURE,
	CmdContinuousAutoMeasure:      LDJ_COMMANDS.CONTINUOUS_AUTO_MEASURE,
	CmdContinuousLowSpeedMeasure:  LDJ_COMMANDS.CONTINUOUS_LOW_SPEED_MEASURE,
	CmdContinuousHighSpeedMeasure: LDJ_COMMANDS.CONTINUOUS_HIGH_SPEED_MEASURE,
	CmdExitContinuousMode:         LDJ_COMMANDS.EXIT_CONTINUOUS_MODE,
	CmdReadStatus:                 LDJ_COMMANDS.READ_STATUS,
	CmdReadHardwareVersion:        LDJ_COMMANDS.READ_HARDWARE_VERSION,
	CmdReadSoftwareVersion:        LDJ_COMMANDS.READ_SOFTWARE_VERSION,
	CmdReadSerialNumber:           LDJ_COMMANDS.READ_SERIAL_NUMBER,
	CmdReadInputVoltage:           LDJ_COMMANDS.READ_INPUT_VOLTAGE,
	CmdReadLastMeasurement:        LDJ_COMMANDS.READ_LAST_MEASUREMENT,
}

var commandResponseLen = map[Command]int{
	CmdLaserOn:                    LenLaserControlResponse,
	CmdLaserOff:                   LenLaserControlResponse,
	CmdSingleAutoMeasure:          LenMeasurementResponse,
	CmdSingleLowSpeedMeasure:      LenMeasurementResponse,
	CmdSingleHighSpeedMeasure:     LenMeasurementResponse,
	CmdContinuousAutoMeasure:      LenMeasurementResponse,
	CmdContinuousLowSpeedMeasure:  LenMeasurementResponse,
	CmdContinuousHighSpeedMeasure: LenMeasurementResponse,
	CmdExitContinuousMode:         0,
	CmdReadStatus:                 LenStatusResponse,
	CmdReadHardwareVersion:        LenVersionResponse,
	CmdReadSoftwareVersion:        LenVersionResponse,
	CmdReadSerialNumber:           LenSerialResponse,
	CmdReadInputVoltage:           LenVoltageResponse,
	CmdReadLastMeasurement:        LenMeasurementResponse,
}

var commandNames = map[Command]string{
	CmdLaserOn:                    "LASER_ON",
	CmdLaserOff:                   "LASER_OFF",
	CmdSingleAutoMeasure:          "SINGLE_AUTO_MEASURE",
	CmdSingleLowSpeedMeasure:      "SINGLE_LOW_SPEED_MEASURE",
	CmdSingleHighSpeedMeasure:     "SINGLE_HIGH_SPEED_MEASURE",
	CmdContinuousAutoMeasure:      "CONTINUOUS_AUTO_MEASURE",
	CmdContinuousLowSpeedMeasure:  "CONTINUOUS_LOW_SPEED_MEASURE",
	CmdContinuousHighSpeedMeasure: "CONTINUOUS_HIGH_SPEED_MEASURE",
	CmdExitContinuousMode:         "EXIT_CONTINUOUS_MODE",
	CmdReadStatus:                 "READ_STATUS",
	CmdReadHardwareVersion:        "READ_HARDWARE_VERSION",
	CmdReadSoftwareVersion:        "READ_SOFTWARE_VERSION",
	CmdReadSerialNumber:           "READ_SERIAL_NUMBER",
	CmdReadInputVoltage:           "READ_INPUT_VOLTAGE",
	CmdReadLastMeasurement:        "READ_LAST_MEASUREMENT",
}

// Bytes returns the immutable wire encoding of the command. The caller must
// not modify the returned slice.
func (c Command) Bytes() []byte {
	return commandBytes[c]
}

// ResponseLen returns the expected response length in bytes, or 0 for
// fire-and-forget commands.
func (c Command) ResponseLen() int {
	return commandResponseLen[c]
}

// IsContinuous reports whether the command puts the sensor into continuous
// measurement mode, after which it emits unsolicited measurement frames.
func (c Command) IsContinuous() bool {
	switch c {
	case CmdContinuousAutoMeasure, CmdContinuousLowSpeedMeasure, CmdContinuousHighSpeedMeasure:
		return true
	}
	return false
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "UNKNOWN_COMMAND"
}

// AllCommands lists every command in the closed set, mainly for tests and
// diagnostics endpoints.
func AllCommands() []Command {
	cmds := make([]Command, 0, len(commandBytes))
	for c := range commandBytes {
		cmds = append(cmds, c)
	}
	return cmds
}
