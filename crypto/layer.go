// Package crypto implements the symmetric channel protection applied to
// Uhost traffic (AES-CBC encryption, HMAC-SHA256 signing) and the SRP-6a
// client that produces the session key both depend on.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/connax-utim/utim/packet"
)

// Sign and crypto mode bytes, carried on the wire right after the CRYPTO tag.
const (
	SignModeNone   byte = 0x00
	SignModeSHA256 byte = 0x01

	CryptoModeNone byte = 0x00
	CryptoModeAES  byte = 0x01
)

const signSHA256Length = sha256.Size

// iv is the CBC initialization vector shared by every deployment. Reusing a
// fixed IV across sessions is a known weakness of the wire format; it is kept
// for compatibility with fielded Uhost peers.
var iv = []byte{
	0x75, 0xbe, 0x38, 0x2b, 0x42, 0x51, 0xc7, 0x05,
	0xa2, 0x43, 0x23, 0x5d, 0xe0, 0xf4, 0xb5, 0x08,
}

var (
	ErrMessageTooShort = errors.New("crypto: message too short")
	ErrVerifyFailed    = errors.New("crypto: signature mismatch")
	ErrBadCiphertext   = errors.New("crypto: ciphertext not block aligned")
	ErrUnknownMode     = errors.New("crypto: unknown mode")
)

// Layer applies the secured envelope for one key. A nil key produces and
// accepts the unkeyed passthrough forms (mode byte NONE).
type Layer struct {
	key []byte
}

// NewLayer builds a layer around key. For AES the key must be 16, 24 or 32
// bytes; a key of any other length fails at Encrypt/Decrypt time.
func NewLayer(key []byte) *Layer {
	return &Layer{key: key}
}

// IsSecured reports whether message carries a secured envelope with a
// non-NONE mode byte.
func IsSecured(message []byte) bool {
	if len(message) < 2 {
		return false
	}
	switch message[0] {
	case packet.CryptoEncrypted:
		return message[1] != CryptoModeNone
	case packet.CryptoSigned:
		return message[1] != SignModeNone
	}
	return false
}

// Encrypt produces CRYPTO.ENCRYPTED ∥ mode ∥ ciphertext. The plaintext is
// right-padded with ASCII spaces to the AES block size; the padding carries
// no length marker, so trailing 0x20 bytes of the original plaintext are
// unrecoverable by the receiver. Without a key, or with mode NONE, the
// plaintext passes through under mode byte NONE.
func (l *Layer) Encrypt(mode byte, message []byte) ([]byte, error) {
	if l.key != nil && mode != CryptoModeNone {
		if mode != CryptoModeAES {
			return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownMode, mode)
		}
		block, err := aes.NewCipher(l.key)
		if err != nil {
			return nil, fmt.Errorf("crypto: %w", err)
		}
		padded := pad(message)
		ct := make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
		out := make([]byte, 0, 2+len(ct))
		out = append(out, packet.CryptoEncrypted, mode)
		return append(out, ct...), nil
	}
	out := make([]byte, 0, 2+len(message))
	out = append(out, packet.CryptoEncrypted, CryptoModeNone)
	return append(out, message...), nil
}

// Decrypt reverses Encrypt. With no key only the mode-NONE passthrough is
// accepted; with a key only AES is. Padding is not stripped: the plaintext
// comes back right-padded with 0x20 to the block boundary and consumers are
// expected to tolerate it.
func (l *Layer) Decrypt(message []byte) ([]byte, error) {
	if len(message) < 2 {
		return nil, ErrMessageTooShort
	}
	if l.key == nil {
		if message[1] == CryptoModeNone {
			return message[2:], nil
		}
		return nil, fmt.Errorf("%w: 0x%02X without key", ErrUnknownMode, message[1])
	}
	if message[1] != CryptoModeAES {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownMode, message[1])
	}
	ct := message[2:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, ErrBadCiphertext
	}
	block, err := aes.NewCipher(l.key)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	return pt, nil
}

// Sign produces CRYPTO.SIGNED ∥ mode ∥ message ∥ hmac_sha256(message).
// Without a key, or with mode NONE, the message passes through under mode
// byte NONE.
func (l *Layer) Sign(mode byte, message []byte) ([]byte, error) {
	if l.key != nil && mode != SignModeNone {
		if mode != SignModeSHA256 {
			return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownMode, mode)
		}
		mac := hmac.New(sha256.New, l.key)
		mac.Write(message)
		out := make([]byte, 0, 2+len(message)+signSHA256Length)
		out = append(out, packet.CryptoSigned, mode)
		out = append(out, message...)
		return mac.Sum(out), nil
	}
	out := make([]byte, 0, 2+len(message))
	out = append(out, packet.CryptoSigned, SignModeNone)
	return append(out, message...), nil
}

// Unsign verifies the trailing HMAC and returns the message portion. With no
// key only the mode-NONE passthrough is accepted.
func (l *Layer) Unsign(message []byte) ([]byte, error) {
	if len(message) < 2 {
		return nil, ErrMessageTooShort
	}
	if l.key == nil {
		if message[1] == SignModeNone {
			return message[2:], nil
		}
		return nil, fmt.Errorf("%w: 0x%02X without key", ErrUnknownMode, message[1])
	}
	if message[1] != SignModeSHA256 {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownMode, message[1])
	}
	if len(message) < 2+signSHA256Length {
		return nil, ErrMessageTooShort
	}
	end := len(message) - signSHA256Length
	useful, signature := message[2:end], message[end:]
	mac := hmac.New(sha256.New, l.key)
	mac.Write(useful)
	if !hmac.Equal(signature, mac.Sum(nil)) {
		return nil, ErrVerifyFailed
	}
	return useful, nil
}

func pad(message []byte) []byte {
	if rem := len(message) % aes.BlockSize; rem != 0 {
		padded := make([]byte, len(message), len(message)+aes.BlockSize-rem)
		copy(padded, message)
		for i := 0; i < aes.BlockSize-rem; i++ {
			padded = append(padded, ' ')
		}
		return padded
	}
	return message
}
