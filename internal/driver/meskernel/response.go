// internal/driver/meskernel/response.go
package meskernel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ResponseType tags the variants of a decoded response frame.
type ResponseType string

const (
	ResponseStatus          ResponseType = "STATUS"
	ResponseHardwareVersion ResponseType = "HARDWARE_VERSION"
	ResponseSoftwareVersion ResponseType = "SOFTWARE_VERSION"
	ResponseSerialNumber    ResponseType = "SERIAL_NUMBER"
	ResponseVoltage         ResponseType = "VOLTAGE"
	ResponseMeasurement     ResponseType = "MEASUREMENT"
	ResponseLaserControl    ResponseType = "LASER_CONTROL"
	ResponseUnknown         ResponseType = "UNKNOWN"
	ResponseError           ResponseType = "ERROR"
)

// ParsedResponse is the tagged union over all decodable response frames.
// Only the fields of the tagged variant are meaningful.
type ParsedResponse struct {
	Type   ResponseType `json:"type"`
	RawHex string       `json:"raw_hex"`

	// Measurement
	DistanceMM    uint32 `json:"distance_mm,omitempty"`
	SignalQuality int    `json:"signal_quality,omitempty"`

	// Voltage
	VoltageMV int     `json:"voltage_mv,omitempty"`
	Voltage   float64 `json:"voltage,omitempty"`

	// Version (hardware or software per Type)
	VersionMajor int `json:"version_major,omitempty"`
	VersionMinor int `json:"version_minor,omitempty"`

	// Serial number
	SerialNumber string `json:"serial_number,omitempty"`

	// Status
	StatusCode byte   `json:"status_code,omitempty"`
	StatusText string `json:"status_text,omitempty"`

	// Laser control
	LaserOn bool `json:"laser_on,omitempty"`

	// Error
	Reason string `json:"reason,omitempty"`
}

// statusTexts maps the documented status codes to human-readable strings.
var statusTexts = map[byte]string{
	0x00: "OK - Normal operation",
	0x01: "Error - Measurement failed",
	0x02: "Error - Laser malfunction",
	0x03: "Error - Temperature too high",
	0x04: "Error - Voltage too low",
	0x05: "Warning - Signal quality low",
	0xFF: "Error - Unknown error",
}

// StatusText renders a status code using the documented code table.
func StatusText(code byte) string {
	if text, ok := statusTexts[code]; ok {
		return text
	}
	return fmt.Sprintf("Unknown status: 0x%02X", code)
}

// hexString renders bytes as spaced uppercase hex for diagnostics.
func hexString(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// Decode interprets a complete frame as a typed response. context is the
// command the frame answers, when one is outstanding; pass nil for
// unsolicited frames, in which case the type is resolved from the frame's
// length and 4-byte prefix. Decode is a pure transform: malformed input
// yields the Error variant, never a panic or Go error.
func Decode(frame []byte, context *Command) ParsedResponse {
	if len(frame) == 0 {
		return errorResponse(frame, "empty frame")
	}

	switch resolveType(frame, context) {
	case ResponseStatus:
		return decodeStatus(frame)
	case ResponseHardwareVersion:
		return decodeVersion(frame, ResponseHardwareVersion)
	case ResponseSoftwareVersion:
		return decodeVersion(frame, ResponseSoftwareVersion)
	case ResponseSerialNumber:
		return decodeSerial(frame)
	case ResponseVoltage:
		return decodeVoltage(frame)
	case ResponseMeasurement:
		return decodeMeasurement(frame)
	case ResponseLaserControl:
		return decodeLaserControl(frame)
	default:
		return ParsedResponse{Type: ResponseUnknown, RawHex: hexString(frame)}
	}
}

// resolveType picks the decode variant: the outstanding command wins,
// otherwise the frame's length and prefix decide.
func resolveType(frame []byte, context *Command) ResponseType {
	if context != nil {
		switch *context {
		case CmdReadStatus:
			return ResponseStatus
		case CmdReadHardwareVersion:
			return ResponseHardwareVersion
		case CmdReadSoftwareVersion:
			return ResponseSoftwareVersion
		case CmdReadSerialNumber:
			return ResponseSerialNumber
		case CmdReadInputVoltage:
			return ResponseVoltage
		case CmdReadLastMeasurement,
			CmdSingleAutoMeasure, CmdSingleLowSpeedMeasure, CmdSingleHighSpeedMeasure,
			CmdContinuousAutoMeasure, CmdContinuousLowSpeedMeasure, CmdContinuousHighSpeedMeasure:
			return ResponseMeasurement
		case CmdLaserOn, CmdLaserOff:
			return ResponseLaserControl
		}
	}

	if len(frame) >= 4 {
		prefix := frame[:4]
		switch {
		case bytes.Equal(prefix, prefixMeasurement):
			return ResponseMeasurement
		case bytes.Equal(prefix, prefixSerialNumber):
			return ResponseSerialNumber
		case bytes.Equal(prefix, prefixStatus):
			return ResponseStatus
		case bytes.Equal(prefix, prefixVoltage):
			return ResponseVoltage
		case bytes.Equal(prefix, prefixHardwareVersion):
			return ResponseHardwareVersion
		case bytes.Equal(prefix, prefixSoftwareVersion):
			return ResponseSoftwareVersion
		case bytes.Equal(prefix, prefixLaserControl):
			return ResponseLaserControl
		}
	}

	// Same-length frames with an unknown prefix: prefer measurement for
	// 13-byte frames since continuous mode makes them the common case.
	switch len(frame) {
	case LenMeasurementResponse:
		return ResponseMeasurement
	default:
		return ResponseUnknown
	}
}

func errorResponse(frame []byte, reason string) ParsedResponse {
	return ParsedResponse{
		Type:   ResponseError,
		RawHex: hexString(frame),
		Reason: reason,
	}
}

func decodeStatus(frame []byte) ParsedResponse {
	if len(frame) != LenStatusResponse {
		return errorResponse(frame, fmt.Sprintf("invalid status response length: %d (expected %d)", len(frame), LenStatusResponse))
	}
	code := frame[1]
	return ParsedResponse{
		Type:       ResponseStatus,
		RawHex:     hexString(frame),
		StatusCode: code,
		StatusText: StatusText(code),
	}
}

func decodeVersion(frame []byte, t ResponseType) ParsedResponse {
	if len(frame) != LenVersionResponse {
		return errorResponse(frame, fmt.Sprintf("invalid version response length: %d (expected %d)", len(frame), LenVersionResponse))
	}
	return ParsedResponse{
		Type:         t,
		RawHex:       hexString(frame),
		VersionMajor: int(frame[1]),
		VersionMinor: int(frame[2]),
	}
}

// decodeSerial accepts both the documented 11-byte frame and the 13-byte
// variant some firmware revisions emit. The payload runs from byte 6 up
// to the trailing checksum byte; printable ASCII is preferred, anything
// else is rendered as uppercase hex.
func decodeSerial(frame []byte) ParsedResponse {
	if len(frame) != LenSerialResponse && len(frame) != LenMeasurementResponse {
		return errorResponse(frame, fmt.Sprintf("invalid serial response length: %d (expected %d or %d)", len(frame), LenSerialResponse, LenMeasurementResponse))
	}
	payload := frame[6 : len(frame)-1]

	printable := len(payload) > 0
	for _, b := range payload {
		if b < 32 || b > 126 {
			printable = false
			break
		}
	}

	serial := ""
	if printable {
		serial = strings.TrimSpace(string(payload))
	}
	if serial == "" {
		var sb strings.Builder
		for _, b := range payload {
			fmt.Fprintf(&sb, "%02X", b)
		}
		serial = sb.String()
	}

	return ParsedResponse{
		Type:         ResponseSerialNumber,
		RawHex:       hexString(frame),
		SerialNumber: serial,
	}
}

// decodeVoltage reads the two payload bytes as packed BCD nibbles forming
// a 4-digit millivolt value. Invalid BCD falls back to a big-endian
// integer millivolt interpretation.
func decodeVoltage(frame []byte) ParsedResponse {
	if len(frame) != LenVoltageResponse {
		return errorResponse(frame, fmt.Sprintf("invalid voltage response length: %d (expected %d)", len(frame), LenVoltageResponse))
	}
	b1, b2 := frame[6], frame[7]
	nibbles := [4]byte{b1 >> 4, b1 & 0x0F, b2 >> 4, b2 & 0x0F}

	validBCD := true
	for _, n := range nibbles {
		if n > 9 {
			validBCD = false
			break
		}
	}

	var millivolts int
	if validBCD {
		millivolts = int(nibbles[0])*1000 + int(nibbles[1])*100 + int(nibbles[2])*10 + int(nibbles[3])
	} else {
		millivolts = int(b1)<<8 | int(b2)
	}

	return ParsedResponse{
		Type:      ResponseVoltage,
		RawHex:    hexString(frame),
		VoltageMV: millivolts,
		Voltage:   float64(millivolts) / 1000.0,
	}
}

// decodeMeasurement reads a big-endian u32 distance in millimeters at
// bytes [6:10] and a big-endian u16 raw signal quality at [10:12]. Raw
// quality above 100 is on the device's 16-bit scale and is normalized
// to a 0..100 percentage.
func decodeMeasurement(frame []byte) ParsedResponse {
	if len(frame) != LenMeasurementResponse {
		return errorResponse(frame, fmt.Sprintf("invalid measurement response length: %d (expected %d)", len(frame), LenMeasurementResponse))
	}
	distance := binary.BigEndian.Uint32(frame[6:10])
	rawQuality := binary.BigEndian.Uint16(frame[10:12])

	quality := int(rawQuality)
	if rawQuality > 100 {
		quality = int(math.Round(float64(rawQuality) / 65535.0 * 100.0))
		if quality < 0 {
			quality = 0
		}
		if quality > 100 {
			quality = 100
		}
	}

	return ParsedResponse{
		Type:          ResponseMeasurement,
		RawHex:        hexString(frame),
		DistanceMM:    distance,
		SignalQuality: quality,
	}
}

func decodeLaserControl(frame []byte) ParsedResponse {
	if len(frame) != LenLaserControlResponse {
		return errorResponse(frame, fmt.Sprintf("invalid laser control response length: %d (expected %d)", len(frame), LenLaserControlResponse))
	}
	status := frame[1]
	return ParsedResponse{
		Type:       ResponseLaserControl,
		RawHex:     hexString(frame),
		StatusCode: status,
		LaserOn:    status == 1,
	}
}
