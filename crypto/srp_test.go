package crypto

import (
	"bytes"
	"testing"

	srp "github.com/kong/go-srp"
)

// TestSRPExchange runs the full client flow against the library's own
// server side and checks that both ends derive the same session key.
func TestSRPExchange(t *testing.T) {
	username := []byte("utim")
	password := []byte("key")
	salt := []byte{0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10, 0x11}

	params := srp.GetParams(srpGroupBits)
	verifier := srp.ComputeVerifier(params, salt, username, password)
	server := srp.NewServer(params, verifier, srp.GenKey())
	b := server.ComputeB()

	client := NewSRPClient(username, password)

	gotUser, a := client.StartAuthentication()
	if !bytes.Equal(gotUser, username) {
		t.Errorf("username = %x, want %x", gotUser, username)
	}
	if len(a) == 0 {
		t.Fatal("empty client public value")
	}
	server.SetA(a)

	if client.IsAuthenticated() {
		t.Error("authenticated before the exchange")
	}
	if key := client.SessionKey(); key != nil {
		t.Errorf("SessionKey = %x before verification", key)
	}

	m1 := client.ProcessChallenge(salt, b)
	if m1 == nil {
		t.Fatal("ProcessChallenge returned nil")
	}
	m2, err := server.CheckM1(m1)
	if err != nil {
		t.Fatalf("server rejected client proof: %v", err)
	}

	if err := client.VerifySession(m2); err != nil {
		t.Fatalf("VerifySession error: %v", err)
	}
	if !client.IsAuthenticated() {
		t.Error("not authenticated after VerifySession")
	}
	key := client.SessionKey()
	if len(key) != 32 {
		t.Errorf("session key len = %d, want 32", len(key))
	}
	if !bytes.Equal(key, server.ComputeK()) {
		t.Error("client and server session keys differ")
	}
}

func TestSRPWrongPassword(t *testing.T) {
	username := []byte("utim")
	salt := []byte{0x01, 0x02, 0x03, 0x04}

	params := srp.GetParams(srpGroupBits)
	verifier := srp.ComputeVerifier(params, salt, username, []byte("key"))
	server := srp.NewServer(params, verifier, srp.GenKey())
	b := server.ComputeB()

	client := NewSRPClient(username, []byte("wrong"))
	_, a := client.StartAuthentication()
	server.SetA(a)

	m1 := client.ProcessChallenge(salt, b)
	if m1 == nil {
		t.Fatal("ProcessChallenge returned nil")
	}
	if _, err := server.CheckM1(m1); err == nil {
		t.Error("server accepted a proof for the wrong password")
	}
	if client.SessionKey() != nil {
		t.Error("session key available without verification")
	}
}

func TestSRPChallengeValidation(t *testing.T) {
	client := NewSRPClient([]byte("utim"), []byte("key"))
	client.StartAuthentication()

	if m := client.ProcessChallenge(nil, []byte{0x01}); m != nil {
		t.Error("ProcessChallenge accepted an empty salt")
	}
	if m := client.ProcessChallenge([]byte{0x01}, nil); m != nil {
		t.Error("ProcessChallenge accepted an empty B")
	}
	if err := client.VerifySession([]byte{0x00}); err == nil {
		t.Error("VerifySession without a session should fail")
	}
}
