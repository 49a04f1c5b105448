package umqtt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrPacketTooLarge    = errors.New("umqtt: packet too large")
	ErrMalformedFlags    = errors.New("umqtt: malformed fixed-header flags")
	ErrUnsupportedPacket = errors.New("umqtt: unsupported packet type")
	ErrInvalidPacket     = errors.New("umqtt: invalid packet received")
)

// Packet is one MQTT 3.1.1 control packet. Only the client-side QoS 0 subset
// is modelled; anything else fails Unpack with ErrUnsupportedPacket.
type Packet interface {
	Kind() byte
	Pack(io.Writer) error
	Unpack(*bytes.Buffer) error
}

// FixedHeader is the 2+ byte header every control packet starts with:
// type and flags in byte 1, then the remaining length.
type FixedHeader struct {
	Kind            byte
	Dup             uint8
	QoS             uint8
	Retain          uint8
	RemainingLength uint32
}

func (h *FixedHeader) String() string {
	return fmt.Sprintf("%s: Len=%d", Kind[h.Kind], h.RemainingLength)
}

func (h *FixedHeader) Pack(w io.Writer) error {
	b := make([]byte, 1)
	b[0] |= h.Kind << 4
	b[0] |= h.Dup << 3
	b[0] |= h.QoS << 1
	b[0] |= h.Retain
	enc, err := encodeLength(h.RemainingLength)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, enc...))
	return err
}

func (h *FixedHeader) Unpack(r io.Reader) error {
	b := []uint8{0x00}
	if _, err := io.ReadFull(r, b); err != nil {
		return err
	}
	h.Kind = b[0] >> 4
	h.Dup = b[0] & 0b00001000 >> 3
	h.QoS = b[0] & 0b00000110 >> 1
	h.Retain = b[0] & 0b00000001

	switch h.Kind {
	case PUBLISH:
		if h.QoS > 2 {
			return ErrMalformedFlags
		}
	case PUBREL, SUBSCRIBE, UNSUBSCRIBE:
		if h.Dup != 0 || h.QoS != 1 || h.Retain != 0 {
			return ErrMalformedFlags
		}
	default:
		if h.Dup != 0 || h.QoS != 0 || h.Retain != 0 {
			return ErrMalformedFlags
		}
	}

	var err error
	h.RemainingLength, err = decodeLength(r)
	return err
}

// Unpack reads one control packet off r.
func Unpack(r io.Reader) (Packet, error) {
	fixed := &FixedHeader{}
	if err := fixed.Unpack(r); err != nil {
		return nil, err
	}

	buf := getBuffer()
	defer putBuffer(buf)
	if _, err := buf.ReadFrom(io.LimitReader(r, int64(fixed.RemainingLength))); err != nil {
		return nil, err
	}

	var pkt Packet
	switch fixed.Kind {
	case CONNACK:
		pkt = &ConnackPacket{FixedHeader: fixed}
	case PUBLISH:
		pkt = &PublishPacket{FixedHeader: fixed}
	case SUBACK:
		pkt = &SubackPacket{FixedHeader: fixed}
	case UNSUBACK:
		pkt = &UnsubackPacket{FixedHeader: fixed}
	case PINGRESP:
		pkt = &PingrespPacket{FixedHeader: fixed}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPacket, Kind[fixed.Kind])
	}
	return pkt, pkt.Unpack(buf)
}

var protocolName = []byte{0x00, 0x04, 'M', 'Q', 'T', 'T'}

// ConnectPacket opens the session. Clean session is always requested; the
// client keeps no broker-side state between runs.
type ConnectPacket struct {
	*FixedHeader
	ClientID  string
	Username  string
	Password  string
	KeepAlive uint16
}

func (pkt *ConnectPacket) Kind() byte { return CONNECT }

func (pkt *ConnectPacket) Pack(w io.Writer) error {
	buf := getBuffer()
	defer putBuffer(buf)

	buf.Write(protocolName)
	buf.WriteByte(VERSION311)

	var flags byte = 0x02 // clean session
	if pkt.Username != "" {
		flags |= 0x80
	}
	if pkt.Password != "" {
		flags |= 0x40
	}
	buf.WriteByte(flags)
	buf.Write(i2b(pkt.KeepAlive))

	buf.Write(s2b(pkt.ClientID))
	if pkt.Username != "" {
		buf.Write(s2b(pkt.Username))
	}
	if pkt.Password != "" {
		buf.Write(s2b(pkt.Password))
	}

	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *ConnectPacket) Unpack(*bytes.Buffer) error { return ErrUnsupportedPacket }

// ConnackPacket acknowledges CONNECT. A non-zero return code is a refused
// connection.
type ConnackPacket struct {
	*FixedHeader
	SessionPresent uint8
	ReturnCode     uint8
}

func (pkt *ConnackPacket) Kind() byte { return CONNACK }

func (pkt *ConnackPacket) Pack(w io.Writer) error {
	buf := getBuffer()
	defer putBuffer(buf)
	buf.WriteByte(pkt.SessionPresent)
	buf.WriteByte(pkt.ReturnCode)
	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *ConnackPacket) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrInvalidPacket
	}
	pkt.SessionPresent = buf.Next(1)[0]
	pkt.ReturnCode = buf.Next(1)[0]
	return nil
}

// PublishPacket carries one application message, QoS 0 only.
type PublishPacket struct {
	*FixedHeader
	TopicName string
	Payload   []byte
}

func (pkt *PublishPacket) Kind() byte { return PUBLISH }

func (pkt *PublishPacket) Pack(w io.Writer) error {
	if pkt.TopicName == "" {
		return fmt.Errorf("%w: empty topic name", ErrInvalidPacket)
	}
	buf := getBuffer()
	defer putBuffer(buf)
	buf.Write(s2b(pkt.TopicName))
	buf.Write(pkt.Payload)
	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *PublishPacket) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrInvalidPacket
	}
	topicLength := int(binary.BigEndian.Uint16(buf.Next(2)))
	if buf.Len() < topicLength {
		return ErrInvalidPacket
	}
	pkt.TopicName = string(buf.Next(topicLength))
	if pkt.QoS > 0 {
		// Inbound QoS > 0 is downgraded by reading and dropping the packet
		// id; this client never acknowledges.
		if buf.Len() < 2 {
			return ErrInvalidPacket
		}
		buf.Next(2)
	}
	pkt.Payload = append([]byte(nil), buf.Bytes()...)
	return nil
}

// SubscribePacket requests one topic filter at QoS 0.
type SubscribePacket struct {
	*FixedHeader
	PacketID    uint16
	TopicFilter string
}

func (pkt *SubscribePacket) Kind() byte { return SUBSCRIBE }

func (pkt *SubscribePacket) Pack(w io.Writer) error {
	buf := getBuffer()
	defer putBuffer(buf)
	buf.Write(i2b(pkt.PacketID))
	buf.Write(s2b(pkt.TopicFilter))
	buf.WriteByte(0x00) // requested maximum QoS
	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *SubscribePacket) Unpack(*bytes.Buffer) error { return ErrUnsupportedPacket }

// SubackPacket acknowledges SUBSCRIBE. Return code 0x80 is a rejected
// subscription.
type SubackPacket struct {
	*FixedHeader
	PacketID    uint16
	ReturnCodes []byte
}

func (pkt *SubackPacket) Kind() byte { return SUBACK }

func (pkt *SubackPacket) Pack(w io.Writer) error {
	buf := getBuffer()
	defer putBuffer(buf)
	buf.Write(i2b(pkt.PacketID))
	buf.Write(pkt.ReturnCodes)
	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *SubackPacket) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrInvalidPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	pkt.ReturnCodes = append([]byte(nil), buf.Bytes()...)
	return nil
}

// UnsubscribePacket cancels one topic filter.
type UnsubscribePacket struct {
	*FixedHeader
	PacketID    uint16
	TopicFilter string
}

func (pkt *UnsubscribePacket) Kind() byte { return UNSUBSCRIBE }

func (pkt *UnsubscribePacket) Pack(w io.Writer) error {
	buf := getBuffer()
	defer putBuffer(buf)
	buf.Write(i2b(pkt.PacketID))
	buf.Write(s2b(pkt.TopicFilter))
	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *UnsubscribePacket) Unpack(*bytes.Buffer) error { return ErrUnsupportedPacket }

// UnsubackPacket acknowledges UNSUBSCRIBE.
type UnsubackPacket struct {
	*FixedHeader
	PacketID uint16
}

func (pkt *UnsubackPacket) Kind() byte { return UNSUBACK }

func (pkt *UnsubackPacket) Pack(w io.Writer) error {
	buf := getBuffer()
	defer putBuffer(buf)
	buf.Write(i2b(pkt.PacketID))
	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *UnsubackPacket) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrInvalidPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	return nil
}

// PingreqPacket keeps the connection alive.
type PingreqPacket struct{ *FixedHeader }

func (pkt *PingreqPacket) Kind() byte { return PINGREQ }

func (pkt *PingreqPacket) Pack(w io.Writer) error {
	pkt.RemainingLength = 0
	return pkt.FixedHeader.Pack(w)
}

func (pkt *PingreqPacket) Unpack(*bytes.Buffer) error { return ErrUnsupportedPacket }

// PingrespPacket answers PINGREQ.
type PingrespPacket struct{ *FixedHeader }

func (pkt *PingrespPacket) Kind() byte { return PINGRESP }

func (pkt *PingrespPacket) Pack(w io.Writer) error {
	pkt.RemainingLength = 0
	return pkt.FixedHeader.Pack(w)
}

func (pkt *PingrespPacket) Unpack(*bytes.Buffer) error { return nil }

// DisconnectPacket ends the session cleanly.
type DisconnectPacket struct{ *FixedHeader }

func (pkt *DisconnectPacket) Kind() byte { return DISCONNECT }

func (pkt *DisconnectPacket) Pack(w io.Writer) error {
	pkt.RemainingLength = 0
	return pkt.FixedHeader.Pack(w)
}

func (pkt *DisconnectPacket) Unpack(*bytes.Buffer) error { return ErrUnsupportedPacket }
