package framer

import "fmt"

// Wire format constants.
const (
	SyncByte byte = 0x5A

	HeaderSize          = 4
	PayloadSizeIndex    = 2
	HeaderChecksumIndex = HeaderSize - 1
	// OverheadSize is the size of a frame without its payload.
	OverheadSize = HeaderSize + 1

	MinPayloadSize = 4
	MaxPayloadSize = 256

	MinFrameSize = OverheadSize + MinPayloadSize
	MaxFrameSize = OverheadSize + MaxPayloadSize
)

// XOR folds p into seed.
func XOR(seed byte, p []byte) byte {
	for _, c := range p {
		seed ^= c
	}
	return seed
}

// HeaderChecksum computes the checksum byte of a header from its
// preceding bytes. h must hold at least HeaderChecksumIndex bytes.
func HeaderChecksum(h []byte) byte {
	return XOR(0, h[:HeaderChecksumIndex])
}

// AppendFrame encodes payload as a frame and appends it to dst.
func AppendFrame(dst []byte, route byte, payload []byte) ([]byte, error) {
	if l := len(payload); l < MinPayloadSize || l > MaxPayloadSize {
		return dst, fmt.Errorf("%w: %d", ErrPayloadSize, l)
	}
	header := [HeaderSize]byte{SyncByte, route, byte(len(payload) - 1)}
	header[HeaderChecksumIndex] = HeaderChecksum(header[:])
	dst = append(dst, header[:]...)
	dst = append(dst, payload...)
	return append(dst, XOR(0, payload)), nil
}

// FrameSize returns the size of the frame described by a valid header.
func FrameSize(header []byte) int {
	return OverheadSize + int(header[PayloadSizeIndex]) + 1
}

// SplitFrame checks a complete frame, as returned by CopyFrame, and
// returns its route byte and payload. The payload aliases frame.
func SplitFrame(frame []byte) (route byte, payload []byte, err error) {
	switch {
	case len(frame) < MinFrameSize || len(frame) > MaxFrameSize:
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(frame))
	case frame[0] != SyncByte:
		return 0, nil, fmt.Errorf("%w: no sync byte", ErrMalformedFrame)
	case HeaderChecksum(frame) != frame[HeaderChecksumIndex]:
		return 0, nil, fmt.Errorf("%w: header checksum", ErrMalformedFrame)
	case FrameSize(frame) != len(frame):
		return 0, nil, fmt.Errorf("%w: size %d, expected %d", ErrMalformedFrame, len(frame), FrameSize(frame))
	}
	payload = frame[HeaderSize : len(frame)-1]
	if XOR(0, payload) != frame[len(frame)-1] {
		return 0, nil, fmt.Errorf("%w: data checksum", ErrMalformedFrame)
	}
	return frame[1], payload, nil
}
