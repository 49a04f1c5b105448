package umqtt

import (
	"bytes"
	"errors"
	"testing"
)

func TestConnectPack(t *testing.T) {
	connect := &ConnectPacket{
		FixedHeader: &FixedHeader{Kind: CONNECT},
		ClientID:    "utim-1",
		Username:    "test",
		Password:    "secret",
		KeepAlive:   60,
	}
	var buf bytes.Buffer
	if err := connect.Pack(&buf); err != nil {
		t.Fatalf("Pack error: %v", err)
	}
	b := buf.Bytes()
	if b[0] != 0x10 {
		t.Errorf("first byte = 0x%02X, want 0x10", b[0])
	}
	// Variable header: protocol name, level 4, flags, keepalive.
	body := b[2:]
	if !bytes.Equal(body[:6], []byte{0x00, 0x04, 'M', 'Q', 'T', 'T'}) {
		t.Errorf("protocol name = %x", body[:6])
	}
	if body[6] != VERSION311 {
		t.Errorf("protocol level = %d, want 4", body[6])
	}
	if body[7] != 0x80|0x40|0x02 {
		t.Errorf("connect flags = 0x%02X, want username+password+clean", body[7])
	}
	if body[8] != 0x00 || body[9] != 60 {
		t.Errorf("keepalive = %x", body[8:10])
	}
	if !bytes.Equal(body[10:18], append([]byte{0x00, 0x06}, "utim-1"...)) {
		t.Errorf("client id = %x", body[10:18])
	}
}

func TestPublishRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		topic   string
		payload []byte
	}{
		{"Empty", "t", nil},
		{"Data", "7574696D", []byte("sender message")},
		{"Binary", "test", bytes.Repeat([]byte{0x00, 0xFF}, 100)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pub := &PublishPacket{
				FixedHeader: &FixedHeader{Kind: PUBLISH},
				TopicName:   tc.topic,
				Payload:     tc.payload,
			}
			var buf bytes.Buffer
			if err := pub.Pack(&buf); err != nil {
				t.Fatalf("Pack error: %v", err)
			}
			pkt, err := Unpack(&buf)
			if err != nil {
				t.Fatalf("Unpack error: %v", err)
			}
			got, ok := pkt.(*PublishPacket)
			if !ok {
				t.Fatalf("Unpack type = %T", pkt)
			}
			if got.TopicName != tc.topic {
				t.Errorf("TopicName = %q, want %q", got.TopicName, tc.topic)
			}
			if !bytes.Equal(got.Payload, tc.payload) {
				t.Errorf("Payload = %x, want %x", got.Payload, tc.payload)
			}
		})
	}
}

func TestPublishEmptyTopic(t *testing.T) {
	pub := &PublishPacket{FixedHeader: &FixedHeader{Kind: PUBLISH}}
	if err := pub.Pack(&bytes.Buffer{}); err == nil {
		t.Error("Pack should reject an empty topic")
	}
}

func TestConnackRoundTrip(t *testing.T) {
	connack := &ConnackPacket{
		FixedHeader: &FixedHeader{Kind: CONNACK},
		ReturnCode:  0x05,
	}
	var buf bytes.Buffer
	if err := connack.Pack(&buf); err != nil {
		t.Fatalf("Pack error: %v", err)
	}
	pkt, err := Unpack(&buf)
	if err != nil {
		t.Fatalf("Unpack error: %v", err)
	}
	got, ok := pkt.(*ConnackPacket)
	if !ok {
		t.Fatalf("Unpack type = %T", pkt)
	}
	if got.ReturnCode != 0x05 {
		t.Errorf("ReturnCode = %d, want 5", got.ReturnCode)
	}
}

func TestSubackRoundTrip(t *testing.T) {
	suback := &SubackPacket{
		FixedHeader: &FixedHeader{Kind: SUBACK},
		PacketID:    7,
		ReturnCodes: []byte{0x00},
	}
	var buf bytes.Buffer
	if err := suback.Pack(&buf); err != nil {
		t.Fatalf("Pack error: %v", err)
	}
	pkt, err := Unpack(&buf)
	if err != nil {
		t.Fatalf("Unpack error: %v", err)
	}
	got, ok := pkt.(*SubackPacket)
	if !ok {
		t.Fatalf("Unpack type = %T", pkt)
	}
	if got.PacketID != 7 {
		t.Errorf("PacketID = %d, want 7", got.PacketID)
	}
	if !bytes.Equal(got.ReturnCodes, []byte{0x00}) {
		t.Errorf("ReturnCodes = %x", got.ReturnCodes)
	}
}

func TestSubscribePackFlags(t *testing.T) {
	sub := &SubscribePacket{
		FixedHeader: &FixedHeader{Kind: SUBSCRIBE, QoS: 1},
		PacketID:    1,
		TopicFilter: "7574696D",
	}
	var buf bytes.Buffer
	if err := sub.Pack(&buf); err != nil {
		t.Fatalf("Pack error: %v", err)
	}
	if b := buf.Bytes()[0]; b != 0x82 {
		t.Errorf("first byte = 0x%02X, want 0x82", b)
	}
}

func TestUnpackMalformedFlags(t *testing.T) {
	// CONNACK with a stray QoS bit.
	buf := bytes.NewBuffer([]byte{0x22, 0x02, 0x00, 0x00})
	if _, err := Unpack(buf); !errors.Is(err, ErrMalformedFlags) {
		t.Errorf("Unpack error = %v, want ErrMalformedFlags", err)
	}
}

func TestUnpackUnsupportedKind(t *testing.T) {
	// PUBREL is outside the QoS 0 subset.
	buf := bytes.NewBuffer([]byte{0x62, 0x02, 0x00, 0x01})
	if _, err := Unpack(buf); !errors.Is(err, ErrUnsupportedPacket) {
		t.Errorf("Unpack error = %v, want ErrUnsupportedPacket", err)
	}
}

func TestEncodeDecodeLength(t *testing.T) {
	testCases := []uint32{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, 268435454}
	for _, v := range testCases {
		enc, err := encodeLength(v)
		if err != nil {
			t.Fatalf("encodeLength(%d) error: %v", v, err)
		}
		got, err := decodeLength(bytes.NewReader(enc))
		if err != nil {
			t.Fatalf("decodeLength(%d) error: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip = %d, want %d", got, v)
		}
	}
	if _, err := encodeLength(uint32(max4 + 1)); err == nil {
		t.Error("encodeLength should reject values above the 4-byte limit")
	}
}
