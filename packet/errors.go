package packet

import "errors"

var (
	// ErrShortFrame is returned when a frame is shorter than the 3-byte
	// tag+length header, or when the declared length exceeds the bytes
	// actually present.
	ErrShortFrame = errors.New("packet: frame too short")

	// ErrValueTooLarge is returned when a value does not fit the 16-bit
	// length field.
	ErrValueTooLarge = errors.New("packet: value exceeds 65535 bytes")
)
