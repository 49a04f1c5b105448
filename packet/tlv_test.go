package packet

import (
	"bytes"
	"errors"
	"testing"
)

func TestAssembleParseRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		tag   byte
		value []byte
	}{
		{"Empty", UCommandHello, nil},
		{"Short", UCommandTryFirst, []byte{0x01}},
		{"Text", UCommandError, []byte("try processing")},
		{"Large", UCommandCheck, bytes.Repeat([]byte{0xAB}, 4096)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := Assemble(tc.tag, tc.value)
			if b == nil {
				t.Fatal("Assemble returned nil")
			}
			if len(b) != 3+len(tc.value) {
				t.Errorf("len = %d, want %d", len(b), 3+len(tc.value))
			}
			tlv, n, err := Parse(b)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if n != len(b) {
				t.Errorf("consumed = %d, want %d", n, len(b))
			}
			if tlv.Tag != tc.tag {
				t.Errorf("Tag = 0x%02X, want 0x%02X", tlv.Tag, tc.tag)
			}
			if !bytes.Equal(tlv.Value, tc.value) {
				t.Errorf("Value = %x, want %x", tlv.Value, tc.value)
			}
		})
	}
}

func TestAssembleOversized(t *testing.T) {
	if b := Assemble(UCommandHello, make([]byte, 0x10000)); b != nil {
		t.Errorf("Assemble = %d bytes, want nil", len(b))
	}
}

func TestParseRejectsShortFrames(t *testing.T) {
	testCases := []struct {
		name  string
		frame []byte
	}{
		{"Empty", nil},
		{"OneByte", []byte{0x01}},
		{"HeaderOnly", []byte{0x01, 0x00}},
		{"DeclaredTooLong", []byte{0x01, 0x00, 0x10, 0xAA}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := Parse(tc.frame); !errors.Is(err, ErrShortFrame) {
				t.Errorf("Parse error = %v, want ErrShortFrame", err)
			}
		})
	}
}

func TestParseDiscardsTrailingBytes(t *testing.T) {
	frame := append(Assemble(UCommandInit, []byte{0xDE, 0xAD}), 0xFF, 0xFF)
	tlv, n, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !bytes.Equal(tlv.Value, []byte{0xDE, 0xAD}) {
		t.Errorf("Value = %x, want dead", tlv.Value)
	}
	if n != 5 {
		t.Errorf("consumed = %d, want 5", n)
	}
}

func TestParseBackToBack(t *testing.T) {
	salt := []byte{0x01, 0x02, 0x03, 0x04}
	b := []byte{0x05, 0x06}
	body := append(Assemble(UCommandTryFirst, salt), Assemble(UCommandTrySecond, b)...)

	first, n, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse first error: %v", err)
	}
	second, _, err := Parse(body[n:])
	if err != nil {
		t.Fatalf("Parse second error: %v", err)
	}
	if first.Tag != UCommandTryFirst || !bytes.Equal(first.Value, salt) {
		t.Errorf("first = %+v", first)
	}
	if second.Tag != UCommandTrySecond || !bytes.Equal(second.Value, b) {
		t.Errorf("second = %+v", second)
	}
}

func TestAssembleHelpers(t *testing.T) {
	testCases := []struct {
		name string
		body []byte
		tag  byte
	}{
		{"Hello", AssembleHello([]byte{0xAA}), UCommandHello},
		{"Check", AssembleCheck([]byte{0xBB}), UCommandCheck},
		{"Trusted", AssembleTrusted([]byte{0xCC}), UCommandTrusted},
		{"Error", AssembleError([]byte("reason")), UCommandError},
		{"Verify", AssembleVerify([]byte{0xDD}), UCommandTestPlatformData},
		{"ForNetwork", AssembleForNetwork([]byte{0xEE}), OutboundToNetwork},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tlv, _, err := Parse(tc.body)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if tlv.Tag != tc.tag {
				t.Errorf("Tag = 0x%02X, want 0x%02X", tlv.Tag, tc.tag)
			}
		})
	}

	if got := KeepaliveAnswer(); len(got) != 1 || got[0] != UCommandKeepaliveAnswer {
		t.Errorf("KeepaliveAnswer = %x", got)
	}
}
