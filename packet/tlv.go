package packet

import (
	"encoding/binary"
	"fmt"
)

// TLV is the tag ∥ u16-be length ∥ value envelope used on every layer of the
// pipeline. The length field always equals len(Value); trailing bytes after
// the declared value are discarded by Parse.
type TLV struct {
	Tag   byte
	Value []byte
}

func (t TLV) String() string {
	if name, ok := TagName[t.Tag]; ok {
		return fmt.Sprintf("%s: Len=%d", name, len(t.Value))
	}
	return fmt.Sprintf("[0x%02X]UNKNOWN: Len=%d", t.Tag, len(t.Value))
}

// headerSize is tag (1) + length (2).
const headerSize = 3

// Assemble encodes (tag, value) as tag ∥ u16_be(len(value)) ∥ value.
// Returns nil when value does not fit the 16-bit length field; callers treat
// a nil packet as a processing failure.
func Assemble(tag byte, value []byte) []byte {
	if len(value) > 0xFFFF {
		return nil
	}
	b := make([]byte, headerSize, headerSize+len(value))
	b[0] = tag
	binary.BigEndian.PutUint16(b[1:3], uint16(len(value)))
	return append(b, value...)
}

// Parse decodes the first TLV of b and reports how many bytes it consumed.
// Inputs shorter than the header, or announcing more bytes than are present,
// fail with ErrShortFrame. Bytes past the declared value are left for the
// caller.
func Parse(b []byte) (TLV, int, error) {
	if len(b) < headerSize {
		return TLV{}, 0, fmt.Errorf("%w: have %d bytes", ErrShortFrame, len(b))
	}
	length := int(binary.BigEndian.Uint16(b[1:3]))
	if len(b) < headerSize+length {
		return TLV{}, 0, fmt.Errorf("%w: declared %d bytes, have %d", ErrShortFrame, length, len(b)-headerSize)
	}
	return TLV{Tag: b[0], Value: b[headerSize : headerSize+length]}, headerSize + length, nil
}
