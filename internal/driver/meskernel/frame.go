// internal/driver/meskernel/frame.go
package meskernel

import (
	"bytes"
)

// Known 4-byte response prefixes used for frame auto-detection when no
// command is outstanding. Several response types share the same total
// length (9 bytes) but differ in prefix, and continuous mode produces
// unsolicited measurement frames, so prefix-based detection is required
// as a fallback to command-context tracking.
var (
	prefixMeasurement     = []byte{0xAA, 0x00, 0x00, 0x22}
	prefixStatus          = []byte{0xAA, 0x80, 0x00, 0x00}
	prefixVoltage         = []byte{0xAA, 0x80, 0x00, 0x06}
	prefixHardwareVersion = []byte{0xAA, 0x80, 0x00, 0x0A}
	prefixSoftwareVersion = []byte{0xAA, 0x80, 0x00, 0x0C}
	prefixSerialNumber    = []byte{0xAA, 0x80, 0x00, 0x0E}
	prefixLaserControl    = []byte{0xAA, 0x00, 0x01, 0xBE}
)

// knownFrameLengths, longest first, for the unrecognized-prefix fallback.
var knownFrameLengths = []int{LenMeasurementResponse, LenSerialResponse, LenStatusResponse}

// FrameSynchronizer converts an append-only byte stream into complete
// protocol frames. It tolerates frames split across deliveries, multiple
// frames per delivery, and leading garbage. It always makes progress:
// when no frame can be formed from the data at hand it consumes at least
// the bytes that can never start a frame.
type FrameSynchronizer struct {
	buf []byte
}

// NewFrameSynchronizer creates an empty synchronizer.
func NewFrameSynchronizer() *FrameSynchronizer {
	return &FrameSynchronizer{}
}

// Feed appends raw transport bytes to the internal buffer.
func (s *FrameSynchronizer) Feed(data []byte) {
	s.buf = append(s.buf, data...)
}

// Pending returns the number of buffered bytes not yet consumed.
func (s *FrameSynchronizer) Pending() int {
	return len(s.buf)
}

// Reset discards all buffered bytes.
func (s *FrameSynchronizer) Reset() {
	s.buf = nil
}

// Next extracts the next complete frame from the buffer. expectedLen is
// the response length implied by an outstanding command, or 0 when no
// command is outstanding and the frame length must be auto-detected from
// its 4-byte prefix. The returned frame is a copy; the consumed bytes are
// removed from the buffer. ok is false when no complete frame is
// available yet (wait for more data).
func (s *FrameSynchronizer) Next(expectedLen int) (frame []byte, ok bool) {
	for {
		start := bytes.IndexByte(s.buf, HeaderByte)
		if start < 0 {
			// No header anywhere: nothing recoverable.
			s.buf = nil
			return nil, false
		}
		if start > 0 {
			// Drop leading garbage, keep everything from the header on.
			s.buf = s.buf[start:]
		}

		frameLen, decided := s.frameLength(expectedLen)
		if !decided {
			// Not enough bytes to classify the frame yet.
			return nil, false
		}
		if frameLen == 0 {
			// Header byte cannot start any known frame here; treat it as
			// noise and resynchronize one byte later.
			s.buf = s.buf[1:]
			continue
		}
		if len(s.buf) < frameLen {
			return nil, false
		}

		frame = make([]byte, frameLen)
		copy(frame, s.buf[:frameLen])
		s.buf = s.buf[frameLen:]
		return frame, true
	}
}

// frameLength determines the length of the frame at the head of the
// buffer. Priority: outstanding-command context, then prefix detection.
// decided=false means more bytes are needed before a decision is
// possible; frameLen=0 with decided=true means the header byte should be
// skipped as noise.
func (s *FrameSynchronizer) frameLength(expectedLen int) (frameLen int, decided bool) {
	if expectedLen > 0 {
		return expectedLen, true
	}

	if len(s.buf) < 4 {
		return 0, false
	}

	prefix := s.buf[:4]
	switch {
	case bytes.Equal(prefix, prefixMeasurement):
		return LenMeasurementResponse, true
	case bytes.Equal(prefix, prefixStatus),
		bytes.Equal(prefix, prefixVoltage),
		bytes.Equal(prefix, prefixHardwareVersion),
		bytes.Equal(prefix, prefixSoftwareVersion),
		bytes.Equal(prefix, prefixLaserControl):
		return LenStatusResponse, true
	case bytes.Equal(prefix, prefixSerialNumber):
		return LenSerialResponse, true
	}

	// Unrecognized prefix: fall back to the longest known frame length
	// that fits in the buffered data, else skip the header byte.
	for _, l := range knownFrameLengths {
		if len(s.buf) >= l {
			return l, true
		}
	}
	return 0, true
}
